package admin

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/thecompanyunltd/nightvibe/internal/domain/enums"
	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
	"github.com/thecompanyunltd/nightvibe/internal/domain/rules"
	authsvc "github.com/thecompanyunltd/nightvibe/internal/services/auth"
)

const (
	UserFilterAll      = "all"
	UserFilterAdmin    = "admin"
	UserFilterActive   = "active"
	UserFilterInactive = "inactive"
	UserFilterReported = "reported"
	UserFilterBlocked  = "blocked"

	maxWarningLength = 500
	maxPrefixResults = 50
)

type UserQuery struct {
	Search  string
	Filter  string
	Page    int
	PerPage int
}

type UserPage struct {
	Users      []model.User `json:"users"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	PerPage    int          `json:"perPage"`
	TotalPages int          `json:"totalPages"`
	// Pages lists the page buttons; 0 marks an ellipsis.
	Pages []int `json:"pages"`
}

type UserDetail struct {
	User             model.User `json:"user"`
	SentMessages     int64      `json:"sentMessages"`
	ReceivedMessages int64      `json:"receivedMessages"`
}

// UserEdit is a merge update. Nil fields stay as they are.
type UserEdit struct {
	Username           *string `json:"username"`
	DisplayName        *string `json:"displayName"`
	RealName           *string `json:"realName"`
	Phone              *string `json:"phone"`
	About              *string `json:"about"`
	Age                *int    `json:"age"`
	Position           *string `json:"position"`
	IAmInto            *string `json:"iamInto"`
	RelationshipStatus *string `json:"relationshipStatus"`
	IsModerator        *bool   `json:"isModerator"`
}

type NewUserInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	RealName string `json:"realName"`
	Phone    string `json:"phone"`
	Age      int    `json:"age"`
	UserType string `json:"userType"`
}

func (s *Service) ListUsers(ctx context.Context, q UserQuery) (UserPage, error) {
	if s.users == nil {
		return UserPage{}, ErrDependenciesNil
	}
	filter := strings.ToLower(strings.TrimSpace(q.Filter))
	if filter == "" {
		filter = UserFilterAll
	}
	switch filter {
	case UserFilterAll, UserFilterAdmin, UserFilterActive, UserFilterInactive, UserFilterReported, UserFilterBlocked:
	default:
		return UserPage{}, fmt.Errorf("%w: unknown user filter %q", ErrValidation, q.Filter)
	}
	if q.PerPage <= 0 {
		q.PerPage = DefaultPerPage
	}

	all, err := s.users.List(ctx)
	if err != nil {
		return UserPage{}, fmt.Errorf("list users: %w", err)
	}

	search := strings.TrimSpace(q.Search)
	matched := make([]model.User, 0, len(all))
	for _, u := range all {
		if matchesSearch(u, search) && s.matchesFilter(u, filter) {
			matched = append(matched, u)
		}
	}

	total := len(matched)
	pages := rules.TotalPages(total, q.PerPage)
	page := q.Page
	if page < 1 {
		page = 1
	}
	if pages > 0 && page > pages {
		page = pages
	}
	start := min((page-1)*q.PerPage, total)
	end := min(start+q.PerPage, total)

	return UserPage{
		Users:      matched[start:end],
		Total:      total,
		Page:       page,
		PerPage:    q.PerPage,
		TotalPages: pages,
		Pages:      rules.VisiblePages(page, pages),
	}, nil
}

func matchesSearch(u model.User, search string) bool {
	if search == "" {
		return true
	}
	term := strings.ToLower(search)
	return strings.Contains(strings.ToLower(u.Username), term) ||
		strings.Contains(strings.ToLower(u.RealName), term) ||
		strings.Contains(strings.ToLower(u.ID), term) ||
		strings.Contains(u.Phone, search)
}

func (s *Service) matchesFilter(u model.User, filter string) bool {
	now := s.now()
	switch filter {
	case UserFilterAdmin:
		return u.IsAdmin
	case UserFilterActive:
		return u.LastActive != nil && rules.SameDay(*u.LastActive, now, s.loc)
	case UserFilterInactive:
		return u.LastActive == nil || u.LastActive.Before(now.Add(-inactiveAfter))
	case UserFilterReported:
		return u.ReportedCount > 0
	case UserFilterBlocked:
		return u.IsBlocked
	default:
		return true
	}
}

func (s *Service) SearchByUsernamePrefix(ctx context.Context, prefix string, limit int) ([]model.User, error) {
	if s.users == nil {
		return nil, ErrDependenciesNil
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return []model.User{}, nil
	}
	if limit <= 0 || limit > maxPrefixResults {
		limit = 10
	}
	users, err := s.users.SearchByUsernamePrefix(ctx, prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

func (s *Service) UserDetails(ctx context.Context, id string) (UserDetail, error) {
	u, err := s.loadUser(ctx, id)
	if err != nil {
		return UserDetail{}, err
	}
	out := UserDetail{User: u}
	if s.messages == nil {
		return out, nil
	}
	if out.SentMessages, err = s.messages.Count(ctx, model.MessageCountQuery{SenderID: u.ID}); err != nil {
		return UserDetail{}, fmt.Errorf("count sent messages: %w", err)
	}
	if out.ReceivedMessages, err = s.messages.Count(ctx, model.MessageCountQuery{ReceiverID: u.ID}); err != nil {
		return UserDetail{}, fmt.Errorf("count received messages: %w", err)
	}
	return out, nil
}

func (s *Service) Block(ctx context.Context, actor, id string) error {
	u, err := s.loadTarget(ctx, actor, id)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if err := s.users.Update(ctx, u.ID, model.UserPatch{
		IsBlocked: model.Ptr(true),
		BlockedAt: &now,
		BlockedBy: &actor,
		Status:    model.Ptr(enums.PresenceOffline),
	}); err != nil {
		return fmt.Errorf("block user: %w", err)
	}
	s.revokeSessions(ctx, u.ID)
	s.record(ctx, actor, ActionBlockUser, u.ID, nil)
	return nil
}

func (s *Service) Unblock(ctx context.Context, actor, id string) error {
	u, err := s.loadUser(ctx, id)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if err := s.users.Update(ctx, u.ID, model.UserPatch{
		IsBlocked:     model.Ptr(false),
		UnblockedAt:   &now,
		UnblockedBy:   &actor,
		ClearBanUntil: true,
	}); err != nil {
		return fmt.Errorf("unblock user: %w", err)
	}
	s.record(ctx, actor, ActionUnblockUser, u.ID, nil)
	return nil
}

// Ban blocks the user for one of the allowed durations. A permanent ban is
// a block without an end.
func (s *Service) Ban(ctx context.Context, actor, id, duration string) error {
	d, permanent, err := rules.BanDuration(duration)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	u, err := s.loadTarget(ctx, actor, id)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	patch := model.UserPatch{
		IsBlocked: model.Ptr(true),
		BlockedAt: &now,
		BlockedBy: &actor,
		Status:    model.Ptr(enums.PresenceOffline),
	}
	payload := map[string]any{"duration": strings.ToLower(strings.TrimSpace(duration))}
	if permanent {
		patch.ClearBanUntil = true
	} else {
		until := now.Add(d)
		patch.BanUntil = &until
		payload["until"] = until
	}
	if err := s.users.Update(ctx, u.ID, patch); err != nil {
		return fmt.Errorf("ban user: %w", err)
	}
	s.revokeSessions(ctx, u.ID)
	s.record(ctx, actor, ActionBanUser, u.ID, payload)
	return nil
}

func (s *Service) Warn(ctx context.Context, actor, id, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("%w: a reason is required", ErrValidation)
	}
	if utf8.RuneCountInString(reason) > maxWarningLength {
		return fmt.Errorf("%w: reason exceeds %d characters", ErrValidation, maxWarningLength)
	}
	u, err := s.loadUser(ctx, id)
	if err != nil {
		return err
	}
	if err := s.users.Update(ctx, u.ID, model.UserPatch{AddWarning: &model.Warning{
		Reason:   reason,
		IssuedBy: actor,
		IssuedAt: s.now().UTC(),
	}}); err != nil {
		return fmt.Errorf("warn user: %w", err)
	}
	s.record(ctx, actor, ActionWarnUser, u.ID, map[string]any{"reason": reason})
	return nil
}

func (s *Service) MakeAdmin(ctx context.Context, actor, id string) error {
	u, err := s.loadUser(ctx, id)
	if err != nil {
		return err
	}
	if u.IsAdmin {
		return nil
	}
	now := s.now().UTC()
	if err := s.users.Update(ctx, u.ID, model.UserPatch{
		IsAdmin:        model.Ptr(true),
		AdminSince:     &now,
		AdminGrantedBy: &actor,
	}); err != nil {
		return fmt.Errorf("grant admin: %w", err)
	}
	s.record(ctx, actor, ActionMakeAdmin, u.ID, nil)
	return nil
}

func (s *Service) EditUser(ctx context.Context, actor, id string, in UserEdit) (model.User, error) {
	u, err := s.loadUser(ctx, id)
	if err != nil {
		return model.User{}, err
	}

	patch := model.UserPatch{
		DisplayName:        trimmed(in.DisplayName),
		RealName:           trimmed(in.RealName),
		About:              trimmed(in.About),
		Position:           trimmed(in.Position),
		IAmInto:            trimmed(in.IAmInto),
		RelationshipStatus: trimmed(in.RelationshipStatus),
		IsModerator:        in.IsModerator,
	}
	changed := []string{}

	if name := trimmed(in.Username); name != nil && *name != u.Username {
		if !rules.ValidUsername(*name) {
			return model.User{}, fmt.Errorf("%w: username must be at least %d characters", ErrValidation, rules.MinUsernameLength)
		}
		taken, err := s.users.UsernameExists(ctx, *name)
		if err != nil {
			return model.User{}, fmt.Errorf("check username: %w", err)
		}
		if taken {
			return model.User{}, fmt.Errorf("%w: username already exists", ErrValidation)
		}
		patch.Username = name
		changed = append(changed, "username")
	}
	if phone := trimmed(in.Phone); phone != nil {
		if *phone != "" && !rules.ValidPhone(*phone) {
			return model.User{}, fmt.Errorf("%w: phone must be at least %d digits", ErrValidation, rules.MinPhoneLength)
		}
		patch.Phone = phone
		changed = append(changed, "phone")
	}
	if in.Age != nil {
		if !rules.ValidAge(*in.Age) {
			return model.User{}, fmt.Errorf("%w: age must be between %d and %d", ErrValidation, rules.MinAge, rules.MaxAge)
		}
		patch.Age = in.Age
		changed = append(changed, "age")
	}
	for name, set := range map[string]bool{
		"displayName":        in.DisplayName != nil,
		"realName":           in.RealName != nil,
		"about":              in.About != nil,
		"position":           in.Position != nil,
		"iamInto":            in.IAmInto != nil,
		"relationshipStatus": in.RelationshipStatus != nil,
		"isModerator":        in.IsModerator != nil,
	} {
		if set {
			changed = append(changed, name)
		}
	}

	if err := s.users.Update(ctx, u.ID, patch); err != nil {
		return model.User{}, fmt.Errorf("edit user: %w", err)
	}
	s.record(ctx, actor, ActionEditUser, u.ID, map[string]any{"fields": changed})
	return s.loadUser(ctx, u.ID)
}

// CreateUser registers an account on someone's behalf. The new user still
// has to go through onboarding.
func (s *Service) CreateUser(ctx context.Context, actor string, in NewUserInput) (model.User, error) {
	if s.accounts == nil {
		return model.User{}, ErrDependenciesNil
	}
	role := enums.Role(strings.ToLower(strings.TrimSpace(in.UserType)))
	if role == "" {
		role = enums.RoleUser
	}
	if !role.Valid() {
		return model.User{}, fmt.Errorf("%w: unknown user type %q", ErrValidation, in.UserType)
	}

	u, err := s.accounts.CreateAccount(ctx, authsvc.NewAccountInput{
		Username: in.Username,
		Password: in.Password,
		RealName: in.RealName,
		Phone:    in.Phone,
		Age:      in.Age,
		Role:     role,
		ActorID:  actor,
	})
	if err != nil {
		return model.User{}, err
	}
	s.record(ctx, actor, ActionCreateUser, u.ID, map[string]any{"username": u.Username, "role": string(role)})
	return u, nil
}

// DeleteUser erases the user with their messages, account and sessions.
// A partial failure is still audited.
func (s *Service) DeleteUser(ctx context.Context, actor, id, confirmation string) error {
	if s.eraser == nil {
		return ErrDependenciesNil
	}
	if !rules.Confirmed(confirmation, rules.DeleteConfirmation) {
		return ErrConfirmation
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrValidation
	}
	if id == actor {
		return ErrSelfAction
	}

	err := s.eraser.EraseUser(ctx, actor, id)
	payload := map[string]any{}
	if err != nil {
		payload["failedSteps"] = len(multierr.Errors(err))
		payload["error"] = err.Error()
	}
	s.record(ctx, actor, ActionDeleteUser, id, payload)
	return err
}

func (s *Service) revokeSessions(ctx context.Context, userID string) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.DeleteAllForUser(ctx, userID); err != nil {
		s.log.Warn("revoke sessions", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *Service) loadUser(ctx context.Context, id string) (model.User, error) {
	if s.users == nil {
		return model.User{}, ErrDependenciesNil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return model.User{}, ErrValidation
	}
	u, err := s.users.Get(ctx, id)
	if err != nil {
		if notFound(err) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// loadTarget loads a user an action is aimed at, refusing the actor.
func (s *Service) loadTarget(ctx context.Context, actor, id string) (model.User, error) {
	id = strings.TrimSpace(id)
	if id != "" && id == strings.TrimSpace(actor) {
		return model.User{}, ErrSelfAction
	}
	return s.loadUser(ctx, id)
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
