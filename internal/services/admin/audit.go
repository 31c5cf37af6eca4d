package admin

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	ActionBlockUser        = "user.block"
	ActionUnblockUser      = "user.unblock"
	ActionBanUser          = "user.ban"
	ActionWarnUser         = "user.warn"
	ActionMakeAdmin        = "user.make_admin"
	ActionEditUser         = "user.edit"
	ActionCreateUser       = "user.create"
	ActionDeleteUser       = "user.delete"
	ActionDeleteMessage    = "message.delete"
	ActionDeleteAllMessage = "message.delete_all"
	ActionResolveReport    = "report.resolve"
	ActionDismissReport    = "report.dismiss"
	ActionSaveSettings     = "settings.save"
	ActionExport           = "data.export"
)

// AuditEntry is one row of the admin trail.
type AuditEntry struct {
	ID         int64          `json:"id"`
	ActorID    string         `json:"actorId"`
	Action     string         `json:"action"`
	TargetID   string         `json:"targetId,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

func (s *Service) AuditLog(ctx context.Context, limit int) ([]AuditEntry, error) {
	if s.audit == nil {
		return []AuditEntry{}, nil
	}
	if limit <= 0 {
		limit = 100
	}
	entries, err := s.audit.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	return entries, nil
}

// record writes the trail entry and counts the action. A failed audit write
// never undoes the action it describes.
func (s *Service) record(ctx context.Context, actor, action, target string, payload map[string]any) {
	if s.metrics != nil {
		s.metrics.AdminAction(action)
	}
	s.log.Info("admin action",
		zap.String("actor_id", actor),
		zap.String("action", action),
		zap.String("target_id", target),
	)
	if s.audit == nil {
		return
	}
	entry := AuditEntry{
		ActorID:    actor,
		Action:     action,
		TargetID:   target,
		Payload:    payload,
		OccurredAt: s.now().UTC(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn("append audit entry", zap.String("action", action), zap.Error(err))
	}
}
