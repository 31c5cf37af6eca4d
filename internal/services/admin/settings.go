package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
)

// Settings returns the stored settings over the defaults.
func (s *Service) Settings(ctx context.Context) (model.Settings, error) {
	if s.settings == nil {
		return model.DefaultSettings(), nil
	}
	out, err := s.settings.Get(ctx)
	if err != nil {
		return model.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return out, nil
}

func (s *Service) SaveSettings(ctx context.Context, actor string, in model.Settings) (model.Settings, error) {
	if s.settings == nil {
		return model.Settings{}, ErrDependenciesNil
	}
	switch {
	case in.SessionTimeout <= 0:
		return model.Settings{}, fmt.Errorf("%w: session timeout must be positive", ErrValidation)
	case in.MaxLoginAttempts <= 0:
		return model.Settings{}, fmt.Errorf("%w: max login attempts must be positive", ErrValidation)
	case in.PasswordResetTimeout <= 0:
		return model.Settings{}, fmt.Errorf("%w: password reset timeout must be positive", ErrValidation)
	}

	in.MaintenanceMessage = strings.TrimSpace(in.MaintenanceMessage)
	if in.MaintenanceMessage == "" {
		in.MaintenanceMessage = model.DefaultSettings().MaintenanceMessage
	}
	now := s.now().UTC()
	in.LastUpdated = &now
	in.UpdatedBy = actor

	if err := s.settings.Save(ctx, in); err != nil {
		return model.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	s.record(ctx, actor, ActionSaveSettings, "", map[string]any{
		"maintenanceMode":    in.MaintenanceMode,
		"allowRegistrations": in.AllowRegistrations,
	})
	return in, nil
}
