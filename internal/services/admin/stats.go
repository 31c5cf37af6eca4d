package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thecompanyunltd/nightvibe/internal/domain/enums"
	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
	"github.com/thecompanyunltd/nightvibe/internal/domain/rules"
	"github.com/thecompanyunltd/nightvibe/internal/services/messaging"
)

type Stats struct {
	TotalUsers     int64 `json:"totalUsers"`
	ActiveToday    int64 `json:"activeToday"`
	NewUsersToday  int64 `json:"newUsersToday"`
	TotalMessages  int64 `json:"totalMessages"`
	MessagesToday  int64 `json:"messagesToday"`
	TotalReports   int64 `json:"totalReports"`
	PendingReports int64 `json:"pendingReports"`
}

// Stats runs every counter in parallel and fails if any of them does.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if s.users == nil || s.messages == nil || s.reports == nil {
		return Stats{}, ErrDependenciesNil
	}
	today := rules.StartOfDay(s.now(), s.loc)

	var out Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.TotalUsers, err = s.users.Count(gctx, model.UserCountQuery{})
		return wrap("count users", err)
	})
	g.Go(func() (err error) {
		out.ActiveToday, err = s.users.Count(gctx, model.UserCountQuery{ActiveSince: &today})
		return wrap("count active users", err)
	})
	g.Go(func() (err error) {
		out.NewUsersToday, err = s.users.Count(gctx, model.UserCountQuery{CreatedSince: &today})
		return wrap("count new users", err)
	})
	g.Go(func() (err error) {
		out.TotalMessages, err = s.messages.Count(gctx, model.MessageCountQuery{})
		return wrap("count messages", err)
	})
	g.Go(func() (err error) {
		out.MessagesToday, err = s.messages.Count(gctx, model.MessageCountQuery{Since: &today})
		return wrap("count today's messages", err)
	})
	g.Go(func() (err error) {
		out.TotalReports, err = s.reports.Count(gctx, "")
		return wrap("count reports", err)
	})
	g.Go(func() (err error) {
		out.PendingReports, err = s.reports.Count(gctx, enums.ReportStatusPending)
		return wrap("count pending reports", err)
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return out, nil
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", what, err)
}

type exportUser struct {
	ID         string         `json:"id"`
	Username   string         `json:"username"`
	RealName   string         `json:"realName"`
	Phone      string         `json:"phone"`
	Stats      model.Stats    `json:"stats"`
	CreatedAt  *time.Time     `json:"createdAt,omitempty"`
	LastActive *time.Time     `json:"lastActive,omitempty"`
	IsAdmin    bool           `json:"isAdmin"`
	IsBlocked  bool           `json:"isBlocked"`
	Status     enums.Presence `json:"status"`
}

type exportMessage struct {
	ID          string     `json:"id"`
	SenderID    string     `json:"senderId"`
	ReceiverID  string     `json:"receiverId"`
	Content     string     `json:"content"`
	IsAnonymous bool       `json:"isAnonymous"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	ReadBy      []string   `json:"readBy"`
}

type exportDocument struct {
	Users      []exportUser    `json:"users"`
	Messages   []exportMessage `json:"messages"`
	Reports    []model.Report  `json:"reports"`
	ExportDate time.Time       `json:"exportDate"`
	ExportedBy string          `json:"exportedBy"`
}

// Export dumps users, the newest ExportMessageLimit messages and all reports
// as indented JSON named after the current day.
func (s *Service) Export(ctx context.Context, actor string) ([]byte, string, error) {
	if s.users == nil || s.messages == nil || s.reports == nil {
		return nil, "", ErrDependenciesNil
	}

	var (
		users   []model.User
		raws    []model.RawMessage
		reports []model.Report
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = s.users.List(gctx)
		return wrap("list users", err)
	})
	g.Go(func() (err error) {
		raws, err = s.messages.Query(gctx, model.MessageListQuery{Limit: ExportMessageLimit})
		return wrap("list messages", err)
	})
	g.Go(func() (err error) {
		reports, err = s.reports.List(gctx, "")
		return wrap("list reports", err)
	})
	if err := g.Wait(); err != nil {
		return nil, "", err
	}

	now := s.now().UTC()
	doc := exportDocument{
		Users:      make([]exportUser, 0, len(users)),
		Messages:   make([]exportMessage, 0, len(raws)),
		Reports:    reports,
		ExportDate: now,
		ExportedBy: actor,
	}
	if doc.Reports == nil {
		doc.Reports = []model.Report{}
	}
	for _, u := range users {
		doc.Users = append(doc.Users, exportUser{
			ID:         u.ID,
			Username:   u.Username,
			RealName:   u.RealName,
			Phone:      u.Phone,
			Stats:      u.Stats,
			CreatedAt:  u.CreatedAt,
			LastActive: u.LastActive,
			IsAdmin:    u.IsAdmin,
			IsBlocked:  u.IsBlocked,
			Status:     u.Status,
		})
	}
	for _, m := range messaging.NormalizeAll(raws) {
		doc.Messages = append(doc.Messages, exportMessage{
			ID:          m.ID,
			SenderID:    m.SenderID,
			ReceiverID:  m.ReceiverID,
			Content:     m.Content,
			IsAnonymous: m.IsAnonymous,
			Timestamp:   m.Timestamp,
			ReadBy:      m.ReadBy,
		})
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("marshal export: %w", err)
	}
	s.record(ctx, actor, ActionExport, "", map[string]any{
		"users":    len(doc.Users),
		"messages": len(doc.Messages),
		"reports":  len(doc.Reports),
	})
	return body, "nightvibe-export-" + rules.DayKey(now, s.loc) + ".json", nil
}
