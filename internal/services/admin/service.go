package admin

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/thecompanyunltd/nightvibe/internal/domain/enums"
	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
	authsvc "github.com/thecompanyunltd/nightvibe/internal/services/auth"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrConfirmation    = errors.New("confirmation phrase mismatch")
	ErrSelfAction      = errors.New("administrators cannot do this to themselves")
	ErrDependenciesNil = errors.New("admin dependencies are not configured")
)

const (
	DefaultPerPage     = 20
	MessageListLimit   = 50
	ExportMessageLimit = 1000
	MaxDeleteBatch     = 500

	inactiveAfter = 30 * 24 * time.Hour
)

type UserStore interface {
	List(ctx context.Context) ([]model.User, error)
	Get(ctx context.Context, id string) (model.User, error)
	Update(ctx context.Context, id string, patch model.UserPatch) error
	UsernameExists(ctx context.Context, username string) (bool, error)
	SearchByUsernamePrefix(ctx context.Context, prefix string, limit int) ([]model.User, error)
	Count(ctx context.Context, q model.UserCountQuery) (int64, error)
}

type MessageStore interface {
	Get(ctx context.Context, id string) (model.RawMessage, error)
	Query(ctx context.Context, q model.MessageListQuery) ([]model.RawMessage, error)
	Count(ctx context.Context, q model.MessageCountQuery) (int64, error)
	AllIDs(ctx context.Context) ([]string, error)
	DeleteBatch(ctx context.Context, ids []string) error
	Delete(ctx context.Context, id string) error
}

type ReportStore interface {
	Get(ctx context.Context, id string) (model.Report, error)
	List(ctx context.Context, status enums.ReportStatus) ([]model.Report, error)
	Resolve(ctx context.Context, id, resolution, actor string, at time.Time) error
	Dismiss(ctx context.Context, id, actor string, at time.Time) error
	Count(ctx context.Context, status enums.ReportStatus) (int64, error)
}

type SettingsStore interface {
	Get(ctx context.Context) (model.Settings, error)
	Save(ctx context.Context, s model.Settings) error
}

type AuditStore interface {
	Append(ctx context.Context, entries ...AuditEntry) error
	List(ctx context.Context, limit int) ([]AuditEntry, error)
}

type SessionRevoker interface {
	DeleteAllForUser(ctx context.Context, userID string) error
}

type AccountCreator interface {
	CreateAccount(ctx context.Context, in authsvc.NewAccountInput) (model.User, error)
}

type UserEraser interface {
	EraseUser(ctx context.Context, actorID, userID string) error
}

type Metrics interface {
	AdminAction(action string)
}

type Dependencies struct {
	Users    UserStore
	Messages MessageStore
	Reports  ReportStore
	Settings SettingsStore
	Audit    AuditStore
	Sessions SessionRevoker
	Accounts AccountCreator
	Eraser   UserEraser
	Metrics  Metrics
	Logger   *zap.Logger
}

type Config struct {
	// Location decides where "today" starts. Defaults to UTC.
	Location *time.Location
}

type Service struct {
	users    UserStore
	messages MessageStore
	reports  ReportStore
	settings SettingsStore
	audit    AuditStore
	sessions SessionRevoker
	accounts AccountCreator
	eraser   UserEraser
	metrics  Metrics
	log      *zap.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewService(deps Dependencies, cfg Config) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		users:    deps.Users,
		messages: deps.Messages,
		reports:  deps.Reports,
		settings: deps.Settings,
		audit:    deps.Audit,
		sessions: deps.Sessions,
		accounts: deps.Accounts,
		eraser:   deps.Eraser,
		metrics:  deps.Metrics,
		log:      log,
		loc:      loc,
		now:      time.Now,
	}
}

func notFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}
