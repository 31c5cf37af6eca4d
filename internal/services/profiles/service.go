package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/thecompanyunltd/nightvibe/internal/domain/enums"
	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
	"github.com/thecompanyunltd/nightvibe/internal/domain/rules"
)

const maxAboutLength = 500

var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("profile not found")
	ErrDependenciesNil = errors.New("profiles dependencies are not configured")
)

type UserStore interface {
	List(ctx context.Context) ([]model.User, error)
	Get(ctx context.Context, id string) (model.User, error)
	Update(ctx context.Context, id string, patch model.UserPatch) error
	Increment(ctx context.Context, id string, counter model.Counter, by int64) error
}

// ViewTargetStore keeps the profile a session last opened.
type ViewTargetStore interface {
	Set(ctx context.Context, sid, targetID string) error
	Get(ctx context.Context, sid string) (string, error)
}

type Dependencies struct {
	Users       UserStore
	ViewTargets ViewTargetStore
	Logger      *zap.Logger
}

type Service struct {
	users   UserStore
	targets ViewTargetStore
	log     *zap.Logger
	now     func() time.Time
}

// Filter narrows the directory. Empty fields mean no constraint.
type Filter struct {
	Age      string
	Position string
	Status   string
}

// StatsUpdate is a merge update of profile stats.
type StatsUpdate struct {
	Age                *int
	Position           *string
	IAmInto            *string
	RelationshipStatus *string
}

// PublicProfile is a user as other members see it. Fields hidden by the
// owner's preferences are left empty.
type PublicProfile struct {
	ID                 string
	Username           string
	DisplayName        string
	About              string
	Age                *int
	Position           string
	IAmInto            string
	RelationshipStatus string
	Status             enums.Presence
	LastActive         *time.Time
	Photos             []model.Photo
	ProfileViews       int64
	Likes              int64
}

func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		users:   deps.Users,
		targets: deps.ViewTargets,
		log:     log,
		now:     time.Now,
	}
}

// Directory lists every member the viewer may browse: everyone except the
// viewer, administrators and blocked accounts.
func (s *Service) Directory(ctx context.Context, viewerID string) ([]model.User, error) {
	if s.users == nil {
		return nil, ErrDependenciesNil
	}
	all, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	now := s.now()
	out := make([]model.User, 0, len(all))
	for _, u := range all {
		if u.ID == viewerID || u.IsAdmin || u.Banned(now) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *Service) Browse(ctx context.Context, viewerID string, f Filter) ([]model.User, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	profiles, err := s.Directory(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return Apply(profiles, f)
}

func (f Filter) Validate() error {
	if strings.TrimSpace(f.Age) == "" {
		return nil
	}
	if _, err := rules.ParseAgeRange(f.Age); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Apply returns the profiles of master that satisfy every set filter.
// master is not modified, so callers can re-filter the same list.
func Apply(master []model.User, f Filter) ([]model.User, error) {
	preds := make([]func(model.User) bool, 0, 3)

	if raw := strings.TrimSpace(f.Age); raw != "" {
		r, err := rules.ParseAgeRange(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		preds = append(preds, func(u model.User) bool {
			return u.Stats.Age > 0 && r.Contains(u.Stats.Age)
		})
	}
	if pos := strings.TrimSpace(f.Position); pos != "" {
		preds = append(preds, func(u model.User) bool {
			return u.Stats.Position == pos
		})
	}
	if status := strings.TrimSpace(f.Status); status != "" {
		want := rules.StatusSegment(status)
		preds = append(preds, func(u model.User) bool {
			return rules.StatusSegment(u.Stats.RelationshipStatus) == want
		})
	}

	out := make([]model.User, 0, len(master))
next:
	for _, u := range master {
		for _, p := range preds {
			if !p(u) {
				continue next
			}
		}
		out = append(out, u)
	}
	return out, nil
}

// View loads a member's public profile and counts the view. Viewing your
// own profile is not counted.
func (s *Service) View(ctx context.Context, viewerID, targetID string) (PublicProfile, error) {
	if s.users == nil {
		return PublicProfile{}, ErrDependenciesNil
	}
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return PublicProfile{}, fmt.Errorf("%w: profile id is required", ErrValidation)
	}

	u, err := s.users.Get(ctx, targetID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return PublicProfile{}, ErrNotFound
		}
		return PublicProfile{}, fmt.Errorf("load profile: %w", err)
	}

	if viewerID != targetID {
		if err := s.users.Increment(ctx, targetID, model.CounterProfileViews, 1); err != nil {
			s.log.Warn("count profile view", zap.String("user_id", targetID), zap.Error(err))
		} else {
			u.ProfileViews++
		}
	}
	return PublicView(u), nil
}

func PublicView(u model.User) PublicProfile {
	p := PublicProfile{
		ID:           u.ID,
		Username:     u.Username,
		DisplayName:  u.DisplayName,
		About:        u.About,
		Position:     u.Stats.Position,
		IAmInto:      u.Stats.IAmInto,
		Photos:       u.Photos,
		ProfileViews: u.ProfileViews,
		Likes:        u.Likes,
	}
	if u.Preferences.ShowAge && u.Stats.Age > 0 {
		age := u.Stats.Age
		p.Age = &age
	}
	if u.Preferences.ShowStatus {
		p.RelationshipStatus = u.Stats.RelationshipStatus
	}
	if u.Preferences.ShowOnline {
		p.Status = u.Status
		p.LastActive = u.LastActive
	}
	return p
}

func (s *Service) SetViewTarget(ctx context.Context, sessionID, targetID string) error {
	if s.targets == nil {
		return ErrDependenciesNil
	}
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(targetID) == "" {
		return fmt.Errorf("%w: session and target are required", ErrValidation)
	}
	return s.targets.Set(ctx, sessionID, strings.TrimSpace(targetID))
}

// ViewTarget returns the profile id stored for the session, or "" when
// none is set.
func (s *Service) ViewTarget(ctx context.Context, sessionID string) (string, error) {
	if s.targets == nil {
		return "", ErrDependenciesNil
	}
	return s.targets.Get(ctx, sessionID)
}

func (s *Service) Me(ctx context.Context, userID string) (model.User, error) {
	if s.users == nil {
		return model.User{}, ErrDependenciesNil
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("load profile: %w", err)
	}
	return u, nil
}

func (s *Service) UpdateStats(ctx context.Context, userID string, in StatsUpdate) (model.User, error) {
	patch := model.UserPatch{}
	if in.Age != nil {
		if !rules.ValidAge(*in.Age) {
			return model.User{}, fmt.Errorf("%w: age must be between %d and %d", ErrValidation, rules.MinAge, rules.MaxAge)
		}
		patch.Age = in.Age
	}
	patch.Position = trimmed(in.Position)
	patch.IAmInto = trimmed(in.IAmInto)
	patch.RelationshipStatus = trimmed(in.RelationshipStatus)

	return s.write(ctx, userID, patch)
}

func (s *Service) UpdateAbout(ctx context.Context, userID, about string) (model.User, error) {
	about = strings.TrimSpace(about)
	if len([]rune(about)) > maxAboutLength {
		return model.User{}, fmt.Errorf("%w: about exceeds %d characters", ErrValidation, maxAboutLength)
	}
	return s.write(ctx, userID, model.UserPatch{About: &about})
}

func (s *Service) SetPreference(ctx context.Context, userID, name string, value bool) (model.User, error) {
	if !model.ValidPreference(name) {
		return model.User{}, fmt.Errorf("%w: unknown preference %q", ErrValidation, name)
	}
	return s.write(ctx, userID, model.UserPatch{Preferences: map[string]bool{name: value}})
}

// ExportOwnData returns the member's profile document as indented JSON and
// the download file name.
func (s *Service) ExportOwnData(ctx context.Context, userID string) ([]byte, string, error) {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	body, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("marshal profile export: %w", err)
	}
	return body, fmt.Sprintf("nightvibe-data-%s.json", u.ID), nil
}

// write applies patch, refreshes lastActive and returns the stored result.
func (s *Service) write(ctx context.Context, userID string, patch model.UserPatch) (model.User, error) {
	if s.users == nil {
		return model.User{}, ErrDependenciesNil
	}
	if strings.TrimSpace(userID) == "" {
		return model.User{}, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	now := s.now().UTC()
	patch.LastActive = &now
	if err := s.users.Update(ctx, userID, patch); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("update profile: %w", err)
	}
	return s.Me(ctx, userID)
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
