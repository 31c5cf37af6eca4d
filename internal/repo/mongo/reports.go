package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/thecompanyunltd/nightvibe/internal/domain/enums"
	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
)

type ReportRepo struct {
	base
}

func NewReportRepo(db *mongodrv.Database, timeout time.Duration) *ReportRepo {
	return &ReportRepo{base: newBase(db, reportsCollection, timeout)}
}

type reportDoc struct {
	ID             string     `bson:"_id"`
	ReporterID     string     `bson:"reporterId"`
	ReportedUserID string     `bson:"reportedUserId"`
	MessageID      string     `bson:"messageId,omitempty"`
	Reasons        []string   `bson:"reasons"`
	Details        string     `bson:"details"`
	Status         string     `bson:"status"`
	Resolution     string     `bson:"resolution,omitempty"`
	Timestamp      *time.Time `bson:"timestamp,omitempty"`
	ResolvedAt     *time.Time `bson:"resolvedAt,omitempty"`
	ResolvedBy     string     `bson:"resolvedBy,omitempty"`
	DismissedAt    *time.Time `bson:"dismissedAt,omitempty"`
	DismissedBy    string     `bson:"dismissedBy,omitempty"`
}

func (d reportDoc) toModel() model.Report {
	reasons := make([]enums.ReportReason, 0, len(d.Reasons))
	for _, r := range d.Reasons {
		reasons = append(reasons, enums.ReportReason(r))
	}
	status := enums.ReportStatus(d.Status)
	if status == "" {
		status = enums.ReportStatusPending
	}
	return model.Report{
		ID:             d.ID,
		ReporterID:     d.ReporterID,
		ReportedUserID: d.ReportedUserID,
		MessageID:      d.MessageID,
		Reasons:        reasons,
		Details:        d.Details,
		Status:         status,
		Resolution:     d.Resolution,
		CreatedAt:      d.Timestamp,
		ResolvedAt:     d.ResolvedAt,
		ResolvedBy:     d.ResolvedBy,
		DismissedAt:    d.DismissedAt,
		DismissedBy:    d.DismissedBy,
	}
}

func (r *ReportRepo) Insert(ctx context.Context, rep model.Report) error {
	reasons := make([]string, 0, len(rep.Reasons))
	for _, reason := range rep.Reasons {
		reasons = append(reasons, string(reason))
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.coll.InsertOne(ctx, reportDoc{
		ID:             rep.ID,
		ReporterID:     rep.ReporterID,
		ReportedUserID: rep.ReportedUserID,
		MessageID:      rep.MessageID,
		Reasons:        reasons,
		Details:        rep.Details,
		Status:         string(rep.Status),
		Timestamp:      rep.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (r *ReportRepo) Get(ctx context.Context, id string) (model.Report, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var doc reportDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return model.Report{}, ErrNotFound
		}
		return model.Report{}, fmt.Errorf("get report: %w", err)
	}
	return doc.toModel(), nil
}

// List returns reports newest first. An empty status lists all of them.
func (r *ReportRepo) List(ctx context.Context, status enums.ReportStatus) ([]model.Report, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = string(status)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find reports: %w", err)
	}
	docs, err := decodeAll[reportDoc](ctx, cur)
	if err != nil {
		return nil, err
	}
	out := make([]model.Report, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (r *ReportRepo) Resolve(ctx context.Context, id, resolution, actor string, at time.Time) error {
	return r.setStatus(ctx, id, bson.M{
		"status":     string(enums.ReportStatusResolved),
		"resolution": resolution,
		"resolvedAt": at.UTC(),
		"resolvedBy": actor,
	})
}

func (r *ReportRepo) Dismiss(ctx context.Context, id, actor string, at time.Time) error {
	return r.setStatus(ctx, id, bson.M{
		"status":      string(enums.ReportStatusDismissed),
		"dismissedAt": at.UTC(),
		"dismissedBy": actor,
	})
}

func (r *ReportRepo) setStatus(ctx context.Context, id string, set bson.M) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ReportRepo) Count(ctx context.Context, status enums.ReportStatus) (int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = string(status)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}
