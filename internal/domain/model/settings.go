package model

import "time"

// Settings is the admin/settings document.
type Settings struct {
	MaintenanceMode          bool       `json:"maintenanceMode"`
	MaintenanceMessage       string     `json:"maintenanceMessage"`
	AllowRegistrations       bool       `json:"allowRegistrations"`
	RequireEmailVerification bool       `json:"requireEmailVerification"`
	RequirePhoneVerification bool       `json:"requirePhoneVerification"`
	AutoFilterContent        bool       `json:"autoFilterContent"`
	ScanPhotos               bool       `json:"scanPhotos"`
	MonitorMessages          bool       `json:"monitorMessages"`
	SessionTimeout           int        `json:"sessionTimeout"`
	MaxLoginAttempts         int        `json:"maxLoginAttempts"`
	PasswordResetTimeout     int        `json:"passwordResetTimeout"`
	SendWelcomeEmails        bool       `json:"sendWelcomeEmails"`
	SendReportNotifications  bool       `json:"sendReportNotifications"`
	SendSystemAlerts         bool       `json:"sendSystemAlerts"`
	LastUpdated              *time.Time `json:"lastUpdated,omitempty"`
	UpdatedBy                string     `json:"updatedBy,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		MaintenanceMessage:      "NightVibe is under maintenance. Please check back soon.",
		AllowRegistrations:      true,
		SessionTimeout:          60,
		MaxLoginAttempts:        5,
		PasswordResetTimeout:    24,
		SendReportNotifications: true,
		SendSystemAlerts:        true,
	}
}
