package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/thecompanyunltd/nightvibe/internal/domain/enums"
	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
	"github.com/thecompanyunltd/nightvibe/internal/domain/rules"
)

const (
	MinRefreshTTL = 24 * time.Hour
	MaxRefreshTTL = 90 * 24 * time.Hour

	// selfActor is recorded when users remove their own account.
	selfActor = "self"
)

type SessionStore interface {
	Create(ctx context.Context, session SessionRecord, refreshToken string) error
	GetSession(ctx context.Context, sid string) (SessionRecord, error)
	GetByRefreshToken(ctx context.Context, refreshToken string) (SessionRecord, error)
	RotateRefresh(ctx context.Context, sid, oldRefreshToken, newRefreshToken string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, sid string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

type AccountStore interface {
	CreateAccount(ctx context.Context, account Account) error
	AccountByEmail(ctx context.Context, email string) (Account, error)
	AccountByUserID(ctx context.Context, userID string) (Account, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	DeleteAccount(ctx context.Context, userID string) error
}

type UserStore interface {
	Get(ctx context.Context, id string) (model.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, u model.User) error
	Update(ctx context.Context, id string, patch model.UserPatch) error
}

type SettingsReader interface {
	Get(ctx context.Context) (model.Settings, error)
}

// AttemptStore counts failed logins in fixed windows.
type AttemptStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	WindowState(ctx context.Context, key string) (int64, time.Duration, error)
	Reset(ctx context.Context, key string) error
}

// UserEraser removes a user and everything that hangs off it.
type UserEraser interface {
	EraseUser(ctx context.Context, actorID, userID string) error
}

type Dependencies struct {
	JWT      *JWTManager
	Sessions SessionStore
	Accounts AccountStore
	Users    UserStore
	Settings SettingsReader
	Attempts AttemptStore
	Eraser   UserEraser
	Logger   *zap.Logger
}

type Config struct {
	RefreshTTL          time.Duration
	EmailDomain         string
	BcryptCost          int
	LoginWindow         time.Duration
	OnboardingMinPhotos int
}

type Service struct {
	jwt      *JWTManager
	sessions SessionStore
	accounts AccountStore
	users    UserStore
	settings SettingsReader
	attempts AttemptStore
	eraser   UserEraser
	log      *zap.Logger
	cfg      Config
	now      func() time.Time
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.RefreshTTL < MinRefreshTTL {
		cfg.RefreshTTL = MinRefreshTTL
	}
	if cfg.RefreshTTL > MaxRefreshTTL {
		cfg.RefreshTTL = MaxRefreshTTL
	}
	if cfg.EmailDomain == "" {
		cfg.EmailDomain = "nightvibe.com"
	}
	if cfg.LoginWindow <= 0 {
		cfg.LoginWindow = 15 * time.Minute
	}
	if cfg.OnboardingMinPhotos <= 0 {
		cfg.OnboardingMinPhotos = 5
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		jwt:      deps.JWT,
		sessions: deps.Sessions,
		accounts: deps.Accounts,
		users:    deps.Users,
		settings: deps.Settings,
		attempts: deps.Attempts,
		eraser:   deps.Eraser,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.RealName = strings.TrimSpace(in.RealName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.IAmInto = strings.TrimSpace(in.IAmInto)

	if in.Username == "" || in.Password == "" || in.RealName == "" || in.Phone == "" ||
		in.Age == 0 || in.Position == "" || in.RelationshipStatus == "" {
		return AuthResult{}, invalid("Please fill in all required fields")
	}
	if !rules.ValidAge(in.Age) {
		return AuthResult{}, invalid(fmt.Sprintf("Age must be between %d and %d", rules.MinAge, rules.MaxAge))
	}
	if !rules.ValidUsername(in.Username) {
		return AuthResult{}, invalid(fmt.Sprintf("Username must be at least %d characters", rules.MinUsernameLength))
	}
	if !rules.ValidPassword(in.Password) {
		return AuthResult{}, ErrWeakPassword
	}
	if !rules.ValidPhone(in.Phone) {
		return AuthResult{}, invalid("Please enter a valid phone number")
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return AuthResult{}, fmt.Errorf("load settings: %w", err)
	}
	if !settings.AllowRegistrations {
		return AuthResult{}, ErrRegistrationClosed
	}

	user, err := s.createUser(ctx, in.Username, in.Password, model.User{
		RealName: in.RealName,
		Phone:    in.Phone,
		Stats: model.Stats{
			Age:                in.Age,
			Position:           in.Position,
			IAmInto:            in.IAmInto,
			RelationshipStatus: in.RelationshipStatus,
		},
		Status: enums.PresenceOnline,
	})
	if err != nil {
		return AuthResult{}, err
	}

	s.log.Info("user registered", zap.String("user_id", user.ID))
	return s.issueForUser(ctx, user, s.Redirect(&user))
}

// CreateAccount creates credentials and a user document without signing
// anyone in.
func (s *Service) CreateAccount(ctx context.Context, in NewAccountInput) (model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" {
		return model.User{}, invalid("Username and password are required")
	}
	if !rules.ValidUsername(in.Username) {
		return model.User{}, invalid(fmt.Sprintf("Username must be at least %d characters", rules.MinUsernameLength))
	}
	if !rules.ValidPassword(in.Password) {
		return model.User{}, ErrWeakPassword
	}
	if in.Age != 0 && !rules.ValidAge(in.Age) {
		return model.User{}, invalid(fmt.Sprintf("Age must be between %d and %d", rules.MinAge, rules.MaxAge))
	}
	if in.Role == "" {
		in.Role = enums.RoleUser
	}
	if !in.Role.Valid() {
		return model.User{}, invalid("Unknown user type")
	}

	user := model.User{
		RealName:    strings.TrimSpace(in.RealName),
		Phone:       strings.TrimSpace(in.Phone),
		Stats:       model.Stats{Age: in.Age},
		Status:      enums.PresenceOffline,
		IsAdmin:     in.Role == enums.RoleAdmin,
		IsModerator: in.Role == enums.RoleModerator,
	}
	if user.IsAdmin {
		now := s.now().UTC()
		user.Moderation.AdminSince = &now
		user.Moderation.AdminGrantedBy = in.ActorID
	}
	return s.createUser(ctx, in.Username, in.Password, user)
}

func (s *Service) createUser(ctx context.Context, username, password string, user model.User) (model.User, error) {
	if !validLoginName(username) {
		return model.User{}, ErrInvalidUsername
	}

	exists, err := s.users.UsernameExists(ctx, username)
	if err != nil {
		return model.User{}, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return model.User{}, ErrUsernameTaken
	}

	hash, err := HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return model.User{}, err
	}

	now := s.now().UTC()
	user.ID = uuid.NewString()
	user.Username = username
	user.Photos = []model.Photo{}
	user.Preferences = model.DefaultPreferences()
	user.ProfileComplete = false
	user.CreatedAt = &now
	user.LastActive = &now

	if err := s.accounts.CreateAccount(ctx, Account{
		UserID:       user.ID,
		Email:        rules.SyntheticEmail(username, s.cfg.EmailDomain),
		PasswordHash: hash,
		CreatedAt:    now,
	}); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return model.User{}, ErrUsernameTaken
		}
		return model.User{}, fmt.Errorf("create account: %w", err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		err = fmt.Errorf("create user document: %w", err)
		if rbErr := s.accounts.DeleteAccount(ctx, user.ID); rbErr != nil {
			err = multierr.Append(err, fmt.Errorf("remove orphaned account: %w", rbErr))
		}
		return model.User{}, err
	}

	return user, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return AuthResult{}, invalid("Please fill in all fields")
	}
	if !validLoginName(username) {
		return AuthResult{}, ErrInvalidUsername
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return AuthResult{}, fmt.Errorf("load settings: %w", err)
	}
	key := attemptKey(username)
	if settings.MaxLoginAttempts > 0 {
		failed, _, err := s.attempts.WindowState(ctx, key)
		if err != nil {
			return AuthResult{}, fmt.Errorf("read login attempts: %w", err)
		}
		if failed >= int64(settings.MaxLoginAttempts) {
			return AuthResult{}, ErrTooManyRequests
		}
	}

	account, err := s.accounts.AccountByEmail(ctx, rules.SyntheticEmail(username, s.cfg.EmailDomain))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return AuthResult{}, ErrUserNotFound
		}
		return AuthResult{}, fmt.Errorf("load account: %w", err)
	}

	ok, err := CheckPassword(account.PasswordHash, password)
	if err != nil {
		return AuthResult{}, err
	}
	if !ok {
		if _, _, err := s.attempts.IncrementWindow(ctx, key, s.cfg.LoginWindow); err != nil {
			s.log.Warn("count failed login", zap.Error(err))
		}
		return AuthResult{}, ErrWrongPassword
	}
	if err := s.attempts.Reset(ctx, key); err != nil {
		s.log.Warn("reset login attempts", zap.Error(err))
	}

	var user *model.User
	u, err := s.users.Get(ctx, account.UserID)
	switch {
	case err == nil:
		if u.Banned(s.now()) {
			return AuthResult{}, ErrBlocked
		}
		user = &u
	case errors.Is(err, model.ErrNotFound):
		// No profile yet; the onboarding flow creates it.
		u = model.User{ID: account.UserID, Username: username}
	default:
		return AuthResult{}, fmt.Errorf("load user: %w", err)
	}

	if user != nil {
		now := s.now().UTC()
		if err := s.users.Update(ctx, u.ID, model.UserPatch{
			Status:     model.Ptr(enums.PresenceOnline),
			LastActive: &now,
		}); err != nil {
			s.log.Warn("mark user online", zap.String("user_id", u.ID), zap.Error(err))
		}
	}

	return s.issueForUser(ctx, u, s.Redirect(user))
}

// Redirect picks the landing page for a signed-in user. A nil user means
// the profile document does not exist yet.
func (s *Service) Redirect(user *model.User) Destination {
	if user == nil {
		return DestinationUpload
	}
	if user.IsAdmin {
		return DestinationAdmin
	}
	if len(user.Photos) < s.cfg.OnboardingMinPhotos {
		return DestinationUpload
	}
	return DestinationDashboard
}

func (s *Service) RedirectFor(ctx context.Context, userID string) (Destination, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return DestinationUpload, nil
		}
		return "", fmt.Errorf("load user: %w", err)
	}
	return s.Redirect(&u), nil
}

func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidInput
	}
	if !rules.ValidPassword(next) {
		return ErrWeakPassword
	}

	account, err := s.accounts.AccountByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load account: %w", err)
	}
	ok, err := CheckPassword(account.PasswordHash, current)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWrongPassword
	}

	hash, err := HashPassword(next, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.accounts.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// DeleteAccount removes the caller's own account after the typed
// confirmation phrase.
func (s *Service) DeleteAccount(ctx context.Context, userID, confirmation string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidInput
	}
	if !rules.Confirmed(confirmation, rules.DeleteConfirmation) {
		return ErrConfirmation
	}
	if s.eraser == nil {
		return fmt.Errorf("user eraser is not configured")
	}
	return s.eraser.EraseUser(ctx, selfActor, userID)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return AuthResult{}, ErrInvalidInput
	}

	session, err := s.sessions.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, fmt.Errorf("get refresh token session: %w", err)
	}
	if s.now().After(session.ExpiresAt) {
		return AuthResult{}, ErrUnauthorized
	}

	newRefreshToken, err := NewRefreshToken()
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate refresh token: %w", err)
	}

	newExpiresAt := s.now().Add(s.cfg.RefreshTTL)
	if err := s.sessions.RotateRefresh(ctx, session.SID, refreshToken, newRefreshToken, newExpiresAt); err != nil {
		if errors.Is(err, ErrRefreshNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	accessToken, accessExpires, err := s.jwt.GenerateAccessToken(session.UserID, session.SID, session.Role)
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate access token: %w", err)
	}

	return AuthResult{
		AccessToken:   accessToken,
		RefreshToken:  newRefreshToken,
		AccessExpires: accessExpires,
		Me: Me{
			ID:   session.UserID,
			Role: session.Role,
		},
	}, nil
}

// Logout ends one session and marks the user offline.
func (s *Service) Logout(ctx context.Context, sid string) error {
	if strings.TrimSpace(sid) == "" {
		return ErrInvalidInput
	}

	session, err := s.sessions.GetSession(ctx, sid)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("get session: %w", err)
	}
	if err := s.sessions.DeleteSession(ctx, sid); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if session.UserID != "" {
		if err := s.users.Update(ctx, session.UserID, model.UserPatch{
			Status: model.Ptr(enums.PresenceOffline),
		}); err != nil && !errors.Is(err, model.ErrNotFound) {
			s.log.Warn("mark user offline", zap.String("user_id", session.UserID), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidInput
	}
	if err := s.sessions.DeleteAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("delete all sessions: %w", err)
	}
	return nil
}

func (s *Service) ValidateAccessToken(ctx context.Context, accessToken string) (AccessClaims, error) {
	claims, err := s.jwt.ParseAccessToken(accessToken)
	if err != nil {
		return AccessClaims{}, ErrUnauthorized
	}

	session, err := s.sessions.GetSession(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return AccessClaims{}, ErrUnauthorized
		}
		return AccessClaims{}, fmt.Errorf("get session: %w", err)
	}

	if session.UserID != claims.UserID || session.Role != claims.Role {
		return AccessClaims{}, ErrUnauthorized
	}
	if s.now().After(session.ExpiresAt) {
		return AccessClaims{}, ErrUnauthorized
	}

	return claims, nil
}

func (s *Service) issueForUser(ctx context.Context, user model.User, redirect Destination) (AuthResult, error) {
	sessionID, err := NewSessionID()
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate session id: %w", err)
	}
	refreshToken, err := NewRefreshToken()
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate refresh token: %w", err)
	}

	role := string(user.Role())
	session := SessionRecord{
		SID:       sessionID,
		UserID:    user.ID,
		Role:      role,
		ExpiresAt: s.now().Add(s.cfg.RefreshTTL),
	}
	if err := s.sessions.Create(ctx, session, refreshToken); err != nil {
		return AuthResult{}, fmt.Errorf("create session: %w", err)
	}

	accessToken, accessExpires, err := s.jwt.GenerateAccessToken(user.ID, sessionID, role)
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate access token: %w", err)
	}

	return AuthResult{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		AccessExpires: accessExpires,
		Me: Me{
			ID:       user.ID,
			Username: user.Username,
			Role:     role,
		},
		Redirect: redirect,
	}, nil
}

// validLoginName rejects names that cannot form the synthetic email.
func validLoginName(username string) bool {
	if username == "" {
		return false
	}
	for _, r := range username {
		if r == '@' || r == ' ' || r == '\t' || r == '\n' || r == '/' {
			return false
		}
	}
	return true
}

func attemptKey(username string) string {
	return "auth:failed:" + strings.ToLower(username)
}
