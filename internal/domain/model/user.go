package model

import (
	"time"

	"github.com/thecompanyunltd/nightvibe/internal/domain/enums"
)

type User struct {
	ID              string         `json:"id"`
	Username        string         `json:"username"`
	DisplayName     string         `json:"displayName,omitempty"`
	RealName        string         `json:"realName"`
	Phone           string         `json:"phone"`
	About           string         `json:"about,omitempty"`
	Stats           Stats          `json:"stats"`
	Photos          []Photo        `json:"photos"`
	CreatedAt       *time.Time     `json:"createdAt,omitempty"`
	LastActive      *time.Time     `json:"lastActive,omitempty"`
	IsAdmin         bool           `json:"isAdmin"`
	IsModerator     bool           `json:"isModerator"`
	IsBlocked       bool           `json:"isBlocked"`
	Status          enums.Presence `json:"status"`
	ProfileComplete bool           `json:"profileComplete"`
	ProfileViews    int64          `json:"profileViews"`
	Likes           int64          `json:"likes"`
	ReportedCount   int64          `json:"reportedCount"`
	Preferences     Preferences    `json:"preferences"`
	Moderation      Moderation     `json:"moderation"`
}

type Stats struct {
	Age                int    `json:"age"`
	Position           string `json:"position"`
	IAmInto            string `json:"iamInto"`
	RelationshipStatus string `json:"relationshipStatus"`
}

type Preferences struct {
	ShowAge         bool `json:"showAge"`
	ShowStatus      bool `json:"showStatus"`
	ReceiveMessages bool `json:"receiveMessages"`
	ShowOnline      bool `json:"showOnline"`
}

type Moderation struct {
	BlockedAt      *time.Time `json:"blockedAt,omitempty"`
	BlockedBy      string     `json:"blockedBy,omitempty"`
	UnblockedAt    *time.Time `json:"unblockedAt,omitempty"`
	UnblockedBy    string     `json:"unblockedBy,omitempty"`
	BanUntil       *time.Time `json:"banUntil,omitempty"`
	Warnings       []Warning  `json:"warnings,omitempty"`
	AdminSince     *time.Time `json:"adminSince,omitempty"`
	AdminGrantedBy string     `json:"adminGrantedBy,omitempty"`
}

type Warning struct {
	Reason   string    `json:"reason"`
	IssuedBy string    `json:"issuedBy"`
	IssuedAt time.Time `json:"issuedAt"`
}

// Photo is the single photo shape. Legacy documents that stored a bare URL
// string are converted to Photo{URL: s} when read.
type Photo struct {
	URL        string     `json:"url"`
	AssetID    string     `json:"assetId,omitempty"`
	UploadedAt *time.Time `json:"uploadedAt,omitempty"`
	Format     string     `json:"format,omitempty"`
	Bytes      int64      `json:"bytes,omitempty"`
	Width      int        `json:"width,omitempty"`
	Height     int        `json:"height,omitempty"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		ShowAge:         true,
		ShowStatus:      true,
		ReceiveMessages: true,
		ShowOnline:      true,
	}
}

func (u User) Role() enums.Role {
	switch {
	case u.IsAdmin:
		return enums.RoleAdmin
	case u.IsModerator:
		return enums.RoleModerator
	default:
		return enums.RoleUser
	}
}

// Banned reports whether the user is blocked at now. A block without
// BanUntil is permanent.
func (u User) Banned(now time.Time) bool {
	if !u.IsBlocked {
		return false
	}
	if u.Moderation.BanUntil == nil {
		return true
	}
	return now.Before(*u.Moderation.BanUntil)
}

// SenderName is the name stamped on non-anonymous messages.
func (u User) SenderName() string {
	switch {
	case u.Username != "":
		return u.Username
	case u.DisplayName != "":
		return u.DisplayName
	default:
		return "User"
	}
}

func (u User) PrimaryPhotoURL() string {
	if len(u.Photos) == 0 {
		return ""
	}
	return u.Photos[0].URL
}
