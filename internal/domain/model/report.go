package model

import (
	"time"

	"github.com/thecompanyunltd/nightvibe/internal/domain/enums"
)

type Report struct {
	ID             string               `json:"id"`
	ReporterID     string               `json:"reporterId"`
	ReportedUserID string               `json:"reportedUserId"`
	MessageID      string               `json:"messageId,omitempty"`
	Reasons        []enums.ReportReason `json:"reasons"`
	Details        string               `json:"details"`
	Status         enums.ReportStatus   `json:"status"`
	Resolution     string               `json:"resolution,omitempty"`
	CreatedAt      *time.Time           `json:"timestamp,omitempty"`
	ResolvedAt     *time.Time           `json:"resolvedAt,omitempty"`
	ResolvedBy     string               `json:"resolvedBy,omitempty"`
	DismissedAt    *time.Time           `json:"dismissedAt,omitempty"`
	DismissedBy    string               `json:"dismissedBy,omitempty"`
}
