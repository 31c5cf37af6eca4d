package workerapp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/thecompanyunltd/nightvibe/internal/domain/enums"
	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
	tginfra "github.com/thecompanyunltd/nightvibe/internal/infra/telegram"
	adminsvc "github.com/thecompanyunltd/nightvibe/internal/services/admin"
)

const (
	maxListedReports = 10
	helpText         = "Commands:\n/stats\n/reports\n/resolve <report id> <resolution>\n/dismiss <report id>"
)

// Moderation is the part of the admin console the chat bot exposes.
type Moderation interface {
	Stats(ctx context.Context) (adminsvc.Stats, error)
	ListReports(ctx context.Context, status string) ([]model.Report, error)
	ResolveReport(ctx context.Context, actor, id, resolution string) error
	DismissReport(ctx context.Context, actor, id string) error
}

type Commands struct {
	mod Moderation
}

func NewCommands(mod Moderation) *Commands {
	return &Commands{mod: mod}
}

// Handle answers one moderator command. The returned text is sent back to
// the chat.
func (c *Commands) Handle(ctx context.Context, update tginfra.CommandUpdate) (string, error) {
	actor := fmt.Sprintf("telegram:%d", update.UserID)

	switch strings.ToLower(strings.TrimSpace(update.Command)) {
	case "stats":
		st, err := c.mod.Stats(ctx)
		if err != nil {
			return "", err
		}
		return formatStats(st), nil
	case "reports":
		reps, err := c.mod.ListReports(ctx, string(enums.ReportStatusPending))
		if err != nil {
			return "", err
		}
		return formatReports(reps), nil
	case "resolve":
		id, resolution, _ := strings.Cut(strings.TrimSpace(update.Args), " ")
		if id == "" || strings.TrimSpace(resolution) == "" {
			return "Usage: /resolve <report id> <resolution>", nil
		}
		if err := c.mod.ResolveReport(ctx, actor, id, resolution); err != nil {
			return replyFor(err, id)
		}
		return "Report " + id + " resolved.", nil
	case "dismiss":
		id := strings.TrimSpace(update.Args)
		if id == "" {
			return "Usage: /dismiss <report id>", nil
		}
		if err := c.mod.DismissReport(ctx, actor, id); err != nil {
			return replyFor(err, id)
		}
		return "Report " + id + " dismissed.", nil
	case "start", "help":
		return helpText, nil
	default:
		return "", nil
	}
}

func replyFor(err error, id string) (string, error) {
	switch {
	case errors.Is(err, adminsvc.ErrNotFound):
		return "Report " + id + " not found.", nil
	case errors.Is(err, adminsvc.ErrValidation):
		return "Invalid input: " + err.Error(), nil
	default:
		return "", err
	}
}

func formatStats(st adminsvc.Stats) string {
	return strings.Join([]string{
		fmt.Sprintf("Users: %d (new today %d, active today %d)", st.TotalUsers, st.NewUsersToday, st.ActiveToday),
		fmt.Sprintf("Messages: %d (today %d)", st.TotalMessages, st.MessagesToday),
		fmt.Sprintf("Reports: %d (pending %d)", st.TotalReports, st.PendingReports),
	}, "\n")
}

func formatReports(reps []model.Report) string {
	if len(reps) == 0 {
		return "No pending reports."
	}
	lines := []string{fmt.Sprintf("Pending reports: %d", len(reps))}
	for i, r := range reps {
		if i == maxListedReports {
			lines = append(lines, fmt.Sprintf("...and %d more", len(reps)-maxListedReports))
			break
		}
		reasons := make([]string, 0, len(r.Reasons))
		for _, reason := range r.Reasons {
			reasons = append(reasons, string(reason))
		}
		lines = append(lines, fmt.Sprintf("- %s: user %s (%s)", r.ID, r.ReportedUserID, strings.Join(reasons, ", ")))
	}
	return strings.Join(lines, "\n")
}
