package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
)

type SettingsRepo struct {
	base
}

func NewSettingsRepo(db *mongodrv.Database, timeout time.Duration) *SettingsRepo {
	return &SettingsRepo{base: newBase(db, adminCollection, timeout)}
}

// settingsDoc uses pointers so absent keys fall back to defaults.
type settingsDoc struct {
	MaintenanceMode          *bool      `bson:"maintenanceMode,omitempty"`
	MaintenanceMessage       *string    `bson:"maintenanceMessage,omitempty"`
	AllowRegistrations       *bool      `bson:"allowRegistrations,omitempty"`
	RequireEmailVerification *bool      `bson:"requireEmailVerification,omitempty"`
	RequirePhoneVerification *bool      `bson:"requirePhoneVerification,omitempty"`
	AutoFilterContent        *bool      `bson:"autoFilterContent,omitempty"`
	ScanPhotos               *bool      `bson:"scanPhotos,omitempty"`
	MonitorMessages          *bool      `bson:"monitorMessages,omitempty"`
	SessionTimeout           *int       `bson:"sessionTimeout,omitempty"`
	MaxLoginAttempts         *int       `bson:"maxLoginAttempts,omitempty"`
	PasswordResetTimeout     *int       `bson:"passwordResetTimeout,omitempty"`
	SendWelcomeEmails        *bool      `bson:"sendWelcomeEmails,omitempty"`
	SendReportNotifications  *bool      `bson:"sendReportNotifications,omitempty"`
	SendSystemAlerts         *bool      `bson:"sendSystemAlerts,omitempty"`
	LastUpdated              *time.Time `bson:"lastUpdated,omitempty"`
	UpdatedBy                *string    `bson:"updatedBy,omitempty"`
}

func (d settingsDoc) mergeInto(s *model.Settings) {
	mergeBool(&s.MaintenanceMode, d.MaintenanceMode)
	mergeString(&s.MaintenanceMessage, d.MaintenanceMessage)
	mergeBool(&s.AllowRegistrations, d.AllowRegistrations)
	mergeBool(&s.RequireEmailVerification, d.RequireEmailVerification)
	mergeBool(&s.RequirePhoneVerification, d.RequirePhoneVerification)
	mergeBool(&s.AutoFilterContent, d.AutoFilterContent)
	mergeBool(&s.ScanPhotos, d.ScanPhotos)
	mergeBool(&s.MonitorMessages, d.MonitorMessages)
	mergeInt(&s.SessionTimeout, d.SessionTimeout)
	mergeInt(&s.MaxLoginAttempts, d.MaxLoginAttempts)
	mergeInt(&s.PasswordResetTimeout, d.PasswordResetTimeout)
	mergeBool(&s.SendWelcomeEmails, d.SendWelcomeEmails)
	mergeBool(&s.SendReportNotifications, d.SendReportNotifications)
	mergeBool(&s.SendSystemAlerts, d.SendSystemAlerts)
	if d.LastUpdated != nil {
		s.LastUpdated = d.LastUpdated
	}
	mergeString(&s.UpdatedBy, d.UpdatedBy)
}

func mergeBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func mergeInt(dst *int, v *int) {
	if v != nil && *v > 0 {
		*dst = *v
	}
}

func mergeString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// Get returns the stored settings merged over the defaults.
func (r *SettingsRepo) Get(ctx context.Context) (model.Settings, error) {
	out := model.DefaultSettings()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var doc settingsDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": settingsDocID}).Decode(&doc); err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return out, nil
		}
		return model.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	doc.mergeInto(&out)
	return out, nil
}

// Save merges s into the settings document. Keys not in Settings survive.
func (r *SettingsRepo) Save(ctx context.Context, s model.Settings) error {
	set := bson.M{
		"maintenanceMode":          s.MaintenanceMode,
		"maintenanceMessage":       s.MaintenanceMessage,
		"allowRegistrations":       s.AllowRegistrations,
		"requireEmailVerification": s.RequireEmailVerification,
		"requirePhoneVerification": s.RequirePhoneVerification,
		"autoFilterContent":        s.AutoFilterContent,
		"scanPhotos":               s.ScanPhotos,
		"monitorMessages":          s.MonitorMessages,
		"sessionTimeout":           s.SessionTimeout,
		"maxLoginAttempts":         s.MaxLoginAttempts,
		"passwordResetTimeout":     s.PasswordResetTimeout,
		"sendWelcomeEmails":        s.SendWelcomeEmails,
		"sendReportNotifications":  s.SendReportNotifications,
		"sendSystemAlerts":         s.SendSystemAlerts,
		"updatedBy":                s.UpdatedBy,
	}
	if s.LastUpdated != nil {
		set["lastUpdated"] = s.LastUpdated.UTC()
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": settingsDocID}, bson.M{"$set": set}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
