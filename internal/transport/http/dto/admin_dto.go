package dto

import (
	"time"

	adminsvc "github.com/thecompanyunltd/nightvibe/internal/services/admin"
)

// Admin responses carry the stored documents in their camelCase shape so
// the console can round-trip them.

type BanRequest struct {
	Duration string `json:"duration" validate:"required"`
}

type WarnRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type ResolveReportRequest struct {
	Resolution string `json:"resolution" validate:"required,max=1000"`
}

type DeletedResponse struct {
	Deleted int `json:"deleted"`
}

type AuditEntryResponse struct {
	ID         int64          `json:"id"`
	ActorID    string         `json:"actor_id"`
	Action     string         `json:"action"`
	TargetID   string         `json:"target_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type AuditLogResponse struct {
	Items []AuditEntryResponse `json:"items"`
}

func AuditLog(entries []adminsvc.AuditEntry) AuditLogResponse {
	items := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, AuditEntryResponse{
			ID:         e.ID,
			ActorID:    e.ActorID,
			Action:     e.Action,
			TargetID:   e.TargetID,
			Payload:    e.Payload,
			OccurredAt: e.OccurredAt,
		})
	}
	return AuditLogResponse{Items: items}
}
