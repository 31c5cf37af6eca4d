package admin

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/thecompanyunltd/nightvibe/internal/domain/enums"
	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
	"github.com/thecompanyunltd/nightvibe/internal/domain/rules"
)

// ListReports lists reports newest first. An empty status or "all" lists
// every report.
func (s *Service) ListReports(ctx context.Context, status string) ([]model.Report, error) {
	if s.reports == nil {
		return nil, ErrDependenciesNil
	}
	st := enums.ReportStatus(strings.ToLower(strings.TrimSpace(status)))
	if st == "all" {
		st = ""
	}
	if st != "" && !st.Valid() {
		return nil, fmt.Errorf("%w: unknown report status %q", ErrValidation, status)
	}
	reps, err := s.reports.List(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reps, nil
}

func (s *Service) ResolveReport(ctx context.Context, actor, id, resolution string) error {
	if s.reports == nil {
		return ErrDependenciesNil
	}
	id = strings.TrimSpace(id)
	resolution = strings.TrimSpace(resolution)
	switch {
	case id == "":
		return ErrValidation
	case resolution == "":
		return fmt.Errorf("%w: a resolution is required", ErrValidation)
	case utf8.RuneCountInString(resolution) > rules.MaxReportDetails:
		return fmt.Errorf("%w: resolution exceeds %d characters", ErrValidation, rules.MaxReportDetails)
	}

	if err := s.reports.Resolve(ctx, id, resolution, actor, s.now().UTC()); err != nil {
		if notFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("resolve report: %w", err)
	}
	s.record(ctx, actor, ActionResolveReport, id, map[string]any{"resolution": resolution})
	return nil
}

func (s *Service) DismissReport(ctx context.Context, actor, id string) error {
	if s.reports == nil {
		return ErrDependenciesNil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrValidation
	}
	if err := s.reports.Dismiss(ctx, id, actor, s.now().UTC()); err != nil {
		if notFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("dismiss report: %w", err)
	}
	s.record(ctx, actor, ActionDismissReport, id, nil)
	return nil
}
