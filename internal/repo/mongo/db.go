package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/thecompanyunltd/nightvibe/internal/config"
	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
)

const (
	usersCollection    = "users"
	messagesCollection = "messages"
	reportsCollection  = "reports"
	adminCollection    = "admin"
	settingsDocID      = "settings"

	// MaxBatch is the most operations one bulk write may carry.
	MaxBatch = 500
)

var (
	ErrNotFound      = model.ErrNotFound
	ErrBatchTooLarge = fmt.Errorf("batch exceeds %d operations", MaxBatch)
)

func Connect(ctx context.Context, cfg config.MongoConfig) (*mongodrv.Client, *mongodrv.Database, error) {
	if cfg.URI == "" {
		return nil, nil, fmt.Errorf("mongo uri is required")
	}
	if cfg.Database == "" {
		return nil, nil, fmt.Errorf("mongo database is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongodrv.Connect(connectCtx, options.Client().ApplyURI(cfg.URI).SetTimeout(timeout))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	return client, client.Database(cfg.Database), nil
}

// EnsureIndexes creates the indexes the queries rely on. Existing indexes
// are left alone.
func EnsureIndexes(ctx context.Context, db *mongodrv.Database) error {
	specs := map[string][]mongodrv.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetName("username_idx")},
			{Keys: bson.D{{Key: "isBlocked", Value: 1}, {Key: "banUntil", Value: 1}}, Options: options.Index().SetName("ban_idx")},
		},
		messagesCollection: {
			{Keys: bson.D{{Key: "senderId", Value: 1}}, Options: options.Index().SetName("sender_idx")},
			{Keys: bson.D{{Key: "receiverId", Value: 1}}, Options: options.Index().SetName("receiver_idx")},
			{Keys: bson.D{{Key: "senderrId", Value: 1}}, Options: options.Index().SetName("legacy_sender_idx").SetSparse(true)},
			{Keys: bson.D{{Key: "receiverrId", Value: 1}}, Options: options.Index().SetName("legacy_receiver_idx").SetSparse(true)},
			{Keys: bson.D{{Key: "timestamp", Value: -1}}, Options: options.Index().SetName("timestamp_idx")},
		},
		reportsCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "timestamp", Value: -1}}, Options: options.Index().SetName("status_idx")},
		},
	}

	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

type base struct {
	coll    *mongodrv.Collection
	timeout time.Duration
}

func newBase(db *mongodrv.Database, name string, timeout time.Duration) base {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return base{coll: db.Collection(name), timeout: timeout}
}

func (b base) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.timeout)
}

func decodeAll[T any](ctx context.Context, cur *mongodrv.Cursor) ([]T, error) {
	defer cur.Close(ctx)

	var out []T
	for cur.Next(ctx) {
		var doc T
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate cursor: %w", err)
	}
	return out, nil
}

// bulk runs ops as one unordered bulk write. It refuses more than
// MaxBatch operations.
func (b base) bulk(ctx context.Context, ops []mongodrv.WriteModel) error {
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > MaxBatch {
		return ErrBatchTooLarge
	}

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	if _, err := b.coll.BulkWrite(ctx, ops, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("bulk write %s: %w", b.coll.Name(), err)
	}
	return nil
}

func (b base) ids(ctx context.Context, filter bson.M) ([]string, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	cur, err := b.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("find %s ids: %w", b.coll.Name(), err)
	}
	docs, err := decodeAll[idDoc](ctx, cur)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out, nil
}

type idDoc struct {
	ID string `bson:"_id"`
}
