package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
)

const (
	EventReportFiled = "report.filed"
	EventSystemAlert = "system.alert"
)

// ChatSink posts plain text to the moderators' chat.
type ChatSink interface {
	Notify(ctx context.Context, text string) error
}

// EventSink publishes structured events to the event stream.
type EventSink interface {
	Publish(ctx context.Context, key, eventType string, payload any) error
}

type SettingsReader interface {
	Get(ctx context.Context) (model.Settings, error)
}

type Dependencies struct {
	Chat     ChatSink
	Events   EventSink
	Settings SettingsReader
	Logger   *zap.Logger
}

// Notifier fans moderation events out to every configured sink. Sink
// failures are logged and never reach the caller.
type Notifier struct {
	chat     ChatSink
	events   EventSink
	settings SettingsReader
	log      *zap.Logger
}

func NewNotifier(deps Dependencies) *Notifier {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		chat:     deps.Chat,
		events:   deps.Events,
		settings: deps.Settings,
		log:      log,
	}
}

func (n *Notifier) ReportFiled(ctx context.Context, rep model.Report) {
	if !n.enabled(ctx, func(s model.Settings) bool { return s.SendReportNotifications }) {
		return
	}

	reasons := make([]string, 0, len(rep.Reasons))
	for _, r := range rep.Reasons {
		reasons = append(reasons, string(r))
	}
	text := fmt.Sprintf("New report %s\nReported user: %s\nReasons: %s", rep.ID, rep.ReportedUserID, strings.Join(reasons, ", "))
	if rep.MessageID != "" {
		text += "\nMessage: " + rep.MessageID
	}
	if rep.Details != "" {
		text += "\nDetails: " + rep.Details
	}

	n.fanOut(ctx, EventReportFiled, rep.ID, text, rep)
}

func (n *Notifier) SystemAlert(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if !n.enabled(ctx, func(s model.Settings) bool { return s.SendSystemAlerts }) {
		return
	}
	n.fanOut(ctx, EventSystemAlert, "system", "System alert: "+text, map[string]string{"text": text})
}

// enabled reads the admin switch. Unreadable settings fall back to the
// defaults, which have notifications on.
func (n *Notifier) enabled(ctx context.Context, pick func(model.Settings) bool) bool {
	if n.settings == nil {
		return pick(model.DefaultSettings())
	}
	s, err := n.settings.Get(ctx)
	if err != nil {
		n.log.Warn("read notification settings", zap.Error(err))
		return pick(model.DefaultSettings())
	}
	return pick(s)
}

func (n *Notifier) fanOut(ctx context.Context, eventType, key, text string, payload any) {
	var errs error
	if n.chat != nil {
		if err := n.chat.Notify(ctx, text); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("telegram: %w", err))
		}
	}
	if n.events != nil {
		if err := n.events.Publish(ctx, key, eventType, payload); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("kafka: %w", err))
		}
	}
	if errs != nil {
		n.log.Warn("notification delivery failed",
			zap.String("event", eventType),
			zap.Int("failed_sinks", len(multierr.Errors(errs))),
			zap.Error(errs),
		)
	}
}
