package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
)

type MessageRepo struct {
	base
}

func NewMessageRepo(db *mongodrv.Database, timeout time.Duration) *MessageRepo {
	return &MessageRepo{base: newBase(db, messagesCollection, timeout)}
}

// messageDoc carries both the canonical and the misspelled legacy keys.
type messageDoc struct {
	ID           string     `bson:"_id"`
	SenderID     string     `bson:"senderId,omitempty"`
	SenderrID    string     `bson:"senderrId,omitempty"`
	ReceiverID   string     `bson:"receiverId,omitempty"`
	ReceiverrID  string     `bson:"receiverrId,omitempty"`
	SenderName   string     `bson:"senderName,omitempty"`
	SenderrName  string     `bson:"senderrName,omitempty"`
	Content      *string    `bson:"content,omitempty"`
	Message      *string    `bson:"message,omitempty"`
	Participants []string   `bson:"participants,omitempty"`
	IsAnonymous  bool       `bson:"isAnonymous"`
	Timestamp    *time.Time `bson:"timestamp,omitempty"`
	Read         bool       `bson:"read"`
	ReadBy       []string   `bson:"readBy,omitempty"`
	Reported     bool       `bson:"reported,omitempty"`
}

func (d messageDoc) toRaw() model.RawMessage {
	return model.RawMessage{
		ID:           d.ID,
		SenderID:     d.SenderID,
		SenderrID:    d.SenderrID,
		ReceiverID:   d.ReceiverID,
		ReceiverrID:  d.ReceiverrID,
		SenderName:   d.SenderName,
		SenderrName:  d.SenderrName,
		Content:      d.Content,
		Message:      d.Message,
		Participants: d.Participants,
		IsAnonymous:  d.IsAnonymous,
		Timestamp:    d.Timestamp,
		Read:         d.Read,
		ReadBy:       d.ReadBy,
		Reported:     d.Reported,
	}
}

func (r *MessageRepo) list(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]model.RawMessage, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	docs, err := decodeAll[messageDoc](ctx, cur)
	if err != nil {
		return nil, err
	}
	out := make([]model.RawMessage, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toRaw())
	}
	return out, nil
}

// ListForUser returns messages where userID is the canonical sender or
// receiver.
func (r *MessageRepo) ListForUser(ctx context.Context, userID string) ([]model.RawMessage, error) {
	return r.list(ctx, bson.M{"$or": bson.A{
		bson.M{"senderId": userID},
		bson.M{"receiverId": userID},
	}}, options.Find())
}

// ListForUserLegacy is ListForUser over the misspelled legacy keys.
func (r *MessageRepo) ListForUserLegacy(ctx context.Context, userID string) ([]model.RawMessage, error) {
	return r.list(ctx, bson.M{"$or": bson.A{
		bson.M{"senderrId": userID},
		bson.M{"receiverrId": userID},
	}}, options.Find())
}

func (r *MessageRepo) Get(ctx context.Context, id string) (model.RawMessage, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var doc messageDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return model.RawMessage{}, ErrNotFound
		}
		return model.RawMessage{}, fmt.Errorf("get message: %w", err)
	}
	return doc.toRaw(), nil
}

// Insert writes the message with both body keys set.
func (r *MessageRepo) Insert(ctx context.Context, m model.Message) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	content := m.Content
	doc := messageDoc{
		ID:           m.ID,
		SenderID:     m.SenderID,
		ReceiverID:   m.ReceiverID,
		SenderName:   m.SenderName,
		Content:      &content,
		Message:      &content,
		Participants: m.Participants,
		IsAnonymous:  m.IsAnonymous,
		Timestamp:    m.Timestamp,
		Read:         m.Read,
		ReadBy:       m.ReadBy,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// MarkRead adds userID to readBy and sets read=true on every id, as one
// bulk write.
func (r *MessageRepo) MarkRead(ctx context.Context, userID string, ids []string) error {
	ops := make([]mongodrv.WriteModel, 0, len(ids))
	for _, id := range ids {
		ops = append(ops, mongodrv.NewUpdateOneModel().
			SetFilter(bson.M{"_id": id}).
			SetUpdate(bson.M{
				"$addToSet": bson.M{"readBy": userID},
				"$set":      bson.M{"read": true},
			}))
	}
	return r.bulk(ctx, ops)
}

func (r *MessageRepo) IDsBySender(ctx context.Context, userID string) ([]string, error) {
	return r.ids(ctx, senderFilter(userID))
}

func (r *MessageRepo) IDsByReceiver(ctx context.Context, userID string) ([]string, error) {
	return r.ids(ctx, receiverFilter(userID))
}

// senderFilter matches the canonical and the legacy sender key.
func senderFilter(userID string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"senderId": userID},
		bson.M{"senderrId": userID},
	}}
}

func receiverFilter(userID string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"receiverId": userID},
		bson.M{"receiverrId": userID},
	}}
}

func (r *MessageRepo) AllIDs(ctx context.Context) ([]string, error) {
	return r.ids(ctx, bson.M{})
}

// DeleteBatch deletes ids as one bulk write.
func (r *MessageRepo) DeleteBatch(ctx context.Context, ids []string) error {
	ops := make([]mongodrv.WriteModel, 0, len(ids))
	for _, id := range ids {
		ops = append(ops, mongodrv.NewDeleteOneModel().SetFilter(bson.M{"_id": id}))
	}
	return r.bulk(ctx, ops)
}

func (r *MessageRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MessageRepo) SetReported(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"reported": true}})
	if err != nil {
		return fmt.Errorf("mark message reported: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MessageRepo) Query(ctx context.Context, q model.MessageListQuery) ([]model.RawMessage, error) {
	filter := bson.M{}
	if q.Since != nil {
		filter["timestamp"] = bson.M{"$gte": q.Since.UTC()}
	}
	if q.AnonymousOnly {
		filter["isAnonymous"] = true
	}
	if q.ReportedOnly {
		filter["reported"] = true
	}
	if q.Search != "" {
		filter["$or"] = bson.A{
			bson.M{"content": containsFold(q.Search)},
			bson.M{"message": containsFold(q.Search)},
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return r.list(ctx, filter, opts)
}

func (r *MessageRepo) Count(ctx context.Context, q model.MessageCountQuery) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, countFilter(q))
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// countFilter matches participants under either key spelling, like the
// id listings used for deletes.
func countFilter(q model.MessageCountQuery) bson.M {
	filter := bson.M{}
	if q.Since != nil {
		filter["timestamp"] = bson.M{"$gte": q.Since.UTC()}
	}
	var parts bson.A
	if q.SenderID != "" {
		parts = append(parts, senderFilter(q.SenderID))
	}
	if q.ReceiverID != "" {
		parts = append(parts, receiverFilter(q.ReceiverID))
	}
	if len(parts) > 0 {
		filter["$and"] = parts
	}
	return filter
}
