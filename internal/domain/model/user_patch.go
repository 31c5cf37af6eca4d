package model

import (
	"time"

	"github.com/thecompanyunltd/nightvibe/internal/domain/enums"
)

// UserPatch is a merge update of a user document. Nil fields are left
// unchanged.
type UserPatch struct {
	Username    *string
	DisplayName *string
	RealName    *string
	Phone       *string
	About       *string

	Age                *int
	Position           *string
	IAmInto            *string
	RelationshipStatus *string

	Status          *enums.Presence
	LastActive      *time.Time
	IsAdmin         *bool
	IsModerator     *bool
	IsBlocked       *bool
	ProfileComplete *bool

	// Preferences is keyed by preference name.
	Preferences map[string]bool
	Photos      *[]Photo

	BlockedAt      *time.Time
	BlockedBy      *string
	UnblockedAt    *time.Time
	UnblockedBy    *string
	BanUntil       *time.Time
	ClearBanUntil  bool
	AdminSince     *time.Time
	AdminGrantedBy *string
	AddWarning     *Warning
}

type Counter string

const (
	CounterProfileViews  Counter = "profileViews"
	CounterLikes         Counter = "likes"
	CounterReportedCount Counter = "reportedCount"
)

func (c Counter) Valid() bool {
	switch c {
	case CounterProfileViews, CounterLikes, CounterReportedCount:
		return true
	}
	return false
}

const (
	PrefShowAge         = "showAge"
	PrefShowStatus      = "showStatus"
	PrefReceiveMessages = "receiveMessages"
	PrefShowOnline      = "showOnline"
)

func ValidPreference(name string) bool {
	switch name {
	case PrefShowAge, PrefShowStatus, PrefReceiveMessages, PrefShowOnline:
		return true
	}
	return false
}

type UserCountQuery struct {
	CreatedSince *time.Time
	ActiveSince  *time.Time
}

func Ptr[T any](v T) *T {
	return &v
}
