package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thecompanyunltd/nightvibe/internal/domain/enums"
	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
	"github.com/thecompanyunltd/nightvibe/internal/domain/rules"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrUserNotFound    = errors.New("reported user not found")
	ErrRateLimited     = errors.New("too many reports")
	ErrDependenciesNil = errors.New("reports dependencies are not configured")
)

type ReportStore interface {
	Insert(ctx context.Context, rep model.Report) error
}

type UserStore interface {
	Get(ctx context.Context, id string) (model.User, error)
	Increment(ctx context.Context, id string, counter model.Counter, by int64) error
}

type MessageFlagger interface {
	SetReported(ctx context.Context, id string) error
}

// Notifier tells moderators about new reports. It decides itself whether
// notifications are enabled.
type Notifier interface {
	ReportFiled(ctx context.Context, rep model.Report)
}

type Limiter interface {
	Allow(ctx context.Context, subject string) (int64, bool, error)
}

type Dependencies struct {
	Reports  ReportStore
	Users    UserStore
	Messages MessageFlagger
	Notifier Notifier
	Limiter  Limiter
	Logger   *zap.Logger
}

type FileInput struct {
	ReportedUserID string
	MessageID      string
	Reasons        []enums.ReportReason
	Details        string
}

type Service struct {
	reports  ReportStore
	users    UserStore
	messages MessageFlagger
	notifier Notifier
	limiter  Limiter
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
}

func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		reports:  deps.Reports,
		users:    deps.Users,
		messages: deps.Messages,
		notifier: deps.Notifier,
		limiter:  deps.Limiter,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// File stores a pending report against another member. Counting the
// report on the user and flagging the message are best effort.
func (s *Service) File(ctx context.Context, reporterID string, in FileInput) (model.Report, error) {
	if s.reports == nil || s.users == nil {
		return model.Report{}, ErrDependenciesNil
	}

	reporterID = strings.TrimSpace(reporterID)
	in.ReportedUserID = strings.TrimSpace(in.ReportedUserID)
	in.MessageID = strings.TrimSpace(in.MessageID)
	in.Details = strings.TrimSpace(in.Details)

	reasons, err := normalizeReasons(in.Reasons)
	if err != nil {
		return model.Report{}, err
	}
	switch {
	case reporterID == "" || in.ReportedUserID == "":
		return model.Report{}, fmt.Errorf("%w: reporter and reported user are required", ErrValidation)
	case reporterID == in.ReportedUserID:
		return model.Report{}, fmt.Errorf("%w: cannot report yourself", ErrValidation)
	case utf8.RuneCountInString(in.Details) > rules.MaxReportDetails:
		return model.Report{}, fmt.Errorf("%w: details exceed %d characters", ErrValidation, rules.MaxReportDetails)
	}

	if _, err := s.users.Get(ctx, in.ReportedUserID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Report{}, ErrUserNotFound
		}
		return model.Report{}, fmt.Errorf("load reported user: %w", err)
	}

	if s.limiter != nil {
		if _, allowed, err := s.limiter.Allow(ctx, reporterID); err != nil {
			return model.Report{}, fmt.Errorf("check report rate: %w", err)
		} else if !allowed {
			return model.Report{}, ErrRateLimited
		}
	}

	now := s.now().UTC()
	rep := model.Report{
		ID:             s.newID(),
		ReporterID:     reporterID,
		ReportedUserID: in.ReportedUserID,
		MessageID:      in.MessageID,
		Reasons:        reasons,
		Details:        in.Details,
		Status:         enums.ReportStatusPending,
		CreatedAt:      &now,
	}
	if err := s.reports.Insert(ctx, rep); err != nil {
		return model.Report{}, fmt.Errorf("insert report: %w", err)
	}

	if err := s.users.Increment(ctx, rep.ReportedUserID, model.CounterReportedCount, 1); err != nil {
		s.log.Warn("count report on user", zap.String("user_id", rep.ReportedUserID), zap.Error(err))
	}
	if rep.MessageID != "" && s.messages != nil {
		if err := s.messages.SetReported(ctx, rep.MessageID); err != nil {
			s.log.Warn("flag reported message", zap.String("message_id", rep.MessageID), zap.Error(err))
		}
	}
	if s.notifier != nil {
		s.notifier.ReportFiled(ctx, rep)
	}

	s.log.Info("report filed",
		zap.String("report_id", rep.ID),
		zap.String("reported_user_id", rep.ReportedUserID),
	)
	return rep, nil
}

func normalizeReasons(in []enums.ReportReason) ([]enums.ReportReason, error) {
	out := make([]enums.ReportReason, 0, len(in))
	seen := make(map[enums.ReportReason]struct{}, len(in))
	for _, r := range in {
		r = enums.ReportReason(strings.ToLower(strings.TrimSpace(string(r))))
		if !r.Valid() {
			return nil, fmt.Errorf("%w: unknown reason %q", ErrValidation, r)
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: select at least one reason", ErrValidation)
	}
	return out, nil
}
