package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/thecompanyunltd/nightvibe/internal/domain/enums"
	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
)

type recordingChat struct {
	texts []string
	err   error
}

func (c *recordingChat) Notify(_ context.Context, text string) error {
	c.texts = append(c.texts, text)
	return c.err
}

type recordingEvents struct {
	types []string
	err   error
}

func (e *recordingEvents) Publish(_ context.Context, _, eventType string, _ any) error {
	e.types = append(e.types, eventType)
	return e.err
}

type staticSettings model.Settings

func (s staticSettings) Get(context.Context) (model.Settings, error) {
	return model.Settings(s), nil
}

func TestReportFiledFansOutToAllSinks(t *testing.T) {
	chat := &recordingChat{}
	events := &recordingEvents{}
	n := NewNotifier(Dependencies{Chat: chat, Events: events, Settings: staticSettings(model.DefaultSettings())})

	n.ReportFiled(context.Background(), model.Report{
		ID:             "r1",
		ReportedUserID: "u2",
		Reasons:        []enums.ReportReason{enums.ReportReasonSpam, enums.ReportReasonFake},
	})

	if len(chat.texts) != 1 || !strings.Contains(chat.texts[0], "spam, fake") {
		t.Fatalf("unexpected chat texts: %v", chat.texts)
	}
	if len(events.types) != 1 || events.types[0] != EventReportFiled {
		t.Fatalf("unexpected events: %v", events.types)
	}
}

func TestSettingsGateNotifications(t *testing.T) {
	chat := &recordingChat{}
	settings := model.DefaultSettings()
	settings.SendReportNotifications = false
	settings.SendSystemAlerts = false
	n := NewNotifier(Dependencies{Chat: chat, Settings: staticSettings(settings)})

	n.ReportFiled(context.Background(), model.Report{ID: "r1"})
	n.SystemAlert(context.Background(), "disk full")
	if len(chat.texts) != 0 {
		t.Fatalf("disabled notifications were sent: %v", chat.texts)
	}
}

func TestSinkFailuresAreLoggedTogether(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	chat := &recordingChat{err: errors.New("chat down")}
	events := &recordingEvents{err: errors.New("broker down")}
	n := NewNotifier(Dependencies{Chat: chat, Events: events, Logger: zap.New(core)})

	n.SystemAlert(context.Background(), "bans lifted: 2")

	if len(chat.texts) != 1 || len(events.types) != 1 {
		t.Fatalf("both sinks must be attempted")
	}
	entries := logs.FilterMessage("notification delivery failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one combined warning, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["failed_sinks"]; got != int64(2) {
		t.Fatalf("unexpected failed sink count: %v", got)
	}
}
