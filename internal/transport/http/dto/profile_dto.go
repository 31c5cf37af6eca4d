package dto

import (
	"time"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
	profilesvc "github.com/thecompanyunltd/nightvibe/internal/services/profiles"
)

type StatsResponse struct {
	Age                int    `json:"age"`
	Position           string `json:"position"`
	IAmInto            string `json:"iam_into"`
	RelationshipStatus string `json:"relationship_status"`
}

type PreferencesResponse struct {
	ShowAge         bool `json:"show_age"`
	ShowStatus      bool `json:"show_status"`
	ReceiveMessages bool `json:"receive_messages"`
	ShowOnline      bool `json:"show_online"`
}

// MeResponse is the signed-in member's own profile.
type MeResponse struct {
	ID              string              `json:"id"`
	Username        string              `json:"username"`
	DisplayName     string              `json:"display_name,omitempty"`
	RealName        string              `json:"real_name"`
	Phone           string              `json:"phone"`
	About           string              `json:"about,omitempty"`
	Role            string              `json:"role"`
	Stats           StatsResponse       `json:"stats"`
	Preferences     PreferencesResponse `json:"preferences"`
	Photos          []PhotoResponse     `json:"photos"`
	Status          string              `json:"status"`
	ProfileComplete bool                `json:"profile_complete"`
	ProfileViews    int64               `json:"profile_views"`
	Likes           int64               `json:"likes"`
	CreatedAt       *time.Time          `json:"created_at,omitempty"`
	LastActive      *time.Time          `json:"last_active,omitempty"`
}

type ProfileResponse struct {
	ID                 string          `json:"id"`
	Username           string          `json:"username"`
	DisplayName        string          `json:"display_name,omitempty"`
	About              string          `json:"about,omitempty"`
	Age                *int            `json:"age,omitempty"`
	Position           string          `json:"position,omitempty"`
	IAmInto            string          `json:"iam_into,omitempty"`
	RelationshipStatus string          `json:"relationship_status,omitempty"`
	Status             string          `json:"status,omitempty"`
	LastActive         *time.Time      `json:"last_active,omitempty"`
	PhotoURL           string          `json:"photo_url,omitempty"`
	Photos             []PhotoResponse `json:"photos"`
	ProfileViews       int64           `json:"profile_views"`
	Likes              int64           `json:"likes"`
}

type ProfilesListResponse struct {
	Items []ProfileResponse `json:"items"`
	Total int               `json:"total"`
}

type UpdateStatsRequest struct {
	Age                *int    `json:"age" validate:"omitempty,gte=18,lte=65"`
	Position           *string `json:"position"`
	IAmInto            *string `json:"iam_into"`
	RelationshipStatus *string `json:"relationship_status"`
}

type UpdateAboutRequest struct {
	About string `json:"about" validate:"max=500"`
}

type PreferenceRequest struct {
	Value *bool `json:"value" validate:"required"`
}

type ViewTargetRequest struct {
	ProfileID string `json:"profile_id" validate:"required"`
}

type ViewTargetResponse struct {
	ProfileID string `json:"profile_id"`
}

func Me(u model.User) MeResponse {
	return MeResponse{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		RealName:    u.RealName,
		Phone:       u.Phone,
		About:       u.About,
		Role:        string(u.Role()),
		Stats: StatsResponse{
			Age:                u.Stats.Age,
			Position:           u.Stats.Position,
			IAmInto:            u.Stats.IAmInto,
			RelationshipStatus: u.Stats.RelationshipStatus,
		},
		Preferences: PreferencesResponse{
			ShowAge:         u.Preferences.ShowAge,
			ShowStatus:      u.Preferences.ShowStatus,
			ReceiveMessages: u.Preferences.ReceiveMessages,
			ShowOnline:      u.Preferences.ShowOnline,
		},
		Photos:          Photos(u.Photos).Items,
		Status:          string(u.Status),
		ProfileComplete: u.ProfileComplete,
		ProfileViews:    u.ProfileViews,
		Likes:           u.Likes,
		CreatedAt:       u.CreatedAt,
		LastActive:      u.LastActive,
	}
}

func Profile(p profilesvc.PublicProfile) ProfileResponse {
	resp := ProfileResponse{
		ID:                 p.ID,
		Username:           p.Username,
		DisplayName:        p.DisplayName,
		About:              p.About,
		Age:                p.Age,
		Position:           p.Position,
		IAmInto:            p.IAmInto,
		RelationshipStatus: p.RelationshipStatus,
		Status:             string(p.Status),
		LastActive:         p.LastActive,
		Photos:             Photos(p.Photos).Items,
		ProfileViews:       p.ProfileViews,
		Likes:              p.Likes,
	}
	if len(p.Photos) > 0 {
		resp.PhotoURL = p.Photos[0].URL
	}
	return resp
}

func Profiles(users []model.User) ProfilesListResponse {
	items := make([]ProfileResponse, 0, len(users))
	for _, u := range users {
		items = append(items, Profile(profilesvc.PublicView(u)))
	}
	return ProfilesListResponse{Items: items, Total: len(items)}
}
