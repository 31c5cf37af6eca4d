package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/thecompanyunltd/nightvibe/internal/domain/enums"
	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
)

type UserRepo struct {
	base
}

func NewUserRepo(db *mongodrv.Database, timeout time.Duration) *UserRepo {
	return &UserRepo{base: newBase(db, usersCollection, timeout)}
}

type userDoc struct {
	ID              string          `bson:"_id"`
	Username        string          `bson:"username"`
	DisplayName     string          `bson:"displayName,omitempty"`
	RealName        string          `bson:"realName"`
	Phone           string          `bson:"phone"`
	About           string          `bson:"about,omitempty"`
	Stats           statsDoc        `bson:"stats"`
	Photos          []bson.RawValue `bson:"photos"`
	CreatedAt       *time.Time      `bson:"createdAt,omitempty"`
	LastActive      *time.Time      `bson:"lastActive,omitempty"`
	IsAdmin         bool            `bson:"isAdmin"`
	IsModerator     bool            `bson:"isModerator"`
	IsBlocked       bool            `bson:"isBlocked"`
	Status          string          `bson:"status"`
	ProfileComplete bool            `bson:"profileComplete"`
	ProfileViews    int64           `bson:"profileViews"`
	Likes           int64           `bson:"likes"`
	ReportedCount   int64           `bson:"reportedCount"`
	Preferences     *prefsDoc       `bson:"preferences,omitempty"`

	BlockedAt      *time.Time   `bson:"blockedAt,omitempty"`
	BlockedBy      string       `bson:"blockedBy,omitempty"`
	UnblockedAt    *time.Time   `bson:"unblockedAt,omitempty"`
	UnblockedBy    string       `bson:"unblockedBy,omitempty"`
	BanUntil       *time.Time   `bson:"banUntil,omitempty"`
	Warnings       []warningDoc `bson:"warnings,omitempty"`
	AdminSince     *time.Time   `bson:"adminSince,omitempty"`
	AdminGrantedBy string       `bson:"adminGrantedBy,omitempty"`

	// Pre-stats documents kept these at the top level.
	LegacyAge                bson.RawValue `bson:"age,omitempty"`
	LegacyPosition           string        `bson:"position,omitempty"`
	LegacyRelationshipStatus string        `bson:"relationshipStatus,omitempty"`
}

type statsDoc struct {
	Age                bson.RawValue `bson:"age,omitempty"`
	Position           string        `bson:"position,omitempty"`
	IAmInto            string        `bson:"iamInto,omitempty"`
	RelationshipStatus string        `bson:"relationshipStatus,omitempty"`
}

type prefsDoc struct {
	ShowAge         *bool `bson:"showAge,omitempty"`
	ShowStatus      *bool `bson:"showStatus,omitempty"`
	ReceiveMessages *bool `bson:"receiveMessages,omitempty"`
	ShowOnline      *bool `bson:"showOnline,omitempty"`
}

type photoDoc struct {
	URL        string     `bson:"url"`
	PublicID   string     `bson:"publicId,omitempty"`
	AssetID    string     `bson:"assetId,omitempty"`
	UploadedAt *time.Time `bson:"uploadedAt,omitempty"`
	Format     string     `bson:"format,omitempty"`
	Bytes      int64      `bson:"bytes,omitempty"`
	Width      int        `bson:"width,omitempty"`
	Height     int        `bson:"height,omitempty"`
}

type warningDoc struct {
	Reason   string    `bson:"reason"`
	IssuedBy string    `bson:"issuedBy"`
	IssuedAt time.Time `bson:"issuedAt"`
}

func (d userDoc) toModel() model.User {
	u := model.User{
		ID:              d.ID,
		Username:        d.Username,
		DisplayName:     d.DisplayName,
		RealName:        d.RealName,
		Phone:           d.Phone,
		About:           d.About,
		CreatedAt:       d.CreatedAt,
		LastActive:      d.LastActive,
		IsAdmin:         d.IsAdmin,
		IsModerator:     d.IsModerator,
		IsBlocked:       d.IsBlocked,
		Status:          enums.Presence(d.Status),
		ProfileComplete: d.ProfileComplete,
		ProfileViews:    d.ProfileViews,
		Likes:           d.Likes,
		ReportedCount:   d.ReportedCount,
		Preferences:     d.Preferences.toModel(),
		Moderation: model.Moderation{
			BlockedAt:      d.BlockedAt,
			BlockedBy:      d.BlockedBy,
			UnblockedAt:    d.UnblockedAt,
			UnblockedBy:    d.UnblockedBy,
			BanUntil:       d.BanUntil,
			AdminSince:     d.AdminSince,
			AdminGrantedBy: d.AdminGrantedBy,
		},
	}

	u.Stats = model.Stats{
		Position:           firstNonEmpty(d.Stats.Position, d.LegacyPosition),
		IAmInto:            d.Stats.IAmInto,
		RelationshipStatus: firstNonEmpty(d.Stats.RelationshipStatus, d.LegacyRelationshipStatus),
	}
	if age, ok := intFromRaw(d.Stats.Age); ok {
		u.Stats.Age = age
	} else if age, ok := intFromRaw(d.LegacyAge); ok {
		u.Stats.Age = age
	}

	u.Photos = make([]model.Photo, 0, len(d.Photos))
	for _, raw := range d.Photos {
		if p, ok := photoFromRaw(raw); ok {
			u.Photos = append(u.Photos, p)
		}
	}

	for _, w := range d.Warnings {
		u.Moderation.Warnings = append(u.Moderation.Warnings, model.Warning(w))
	}
	return u
}

func (p *prefsDoc) toModel() model.Preferences {
	out := model.DefaultPreferences()
	if p == nil {
		return out
	}
	if p.ShowAge != nil {
		out.ShowAge = *p.ShowAge
	}
	if p.ShowStatus != nil {
		out.ShowStatus = *p.ShowStatus
	}
	if p.ReceiveMessages != nil {
		out.ReceiveMessages = *p.ReceiveMessages
	}
	if p.ShowOnline != nil {
		out.ShowOnline = *p.ShowOnline
	}
	return out
}

// photoFromRaw accepts both the legacy bare URL string and the photo
// document.
func photoFromRaw(raw bson.RawValue) (model.Photo, bool) {
	switch raw.Type {
	case bsontype.String:
		s := strings.TrimSpace(raw.StringValue())
		return model.Photo{URL: s}, s != ""
	case bsontype.EmbeddedDocument:
		var doc photoDoc
		if err := raw.Unmarshal(&doc); err != nil || doc.URL == "" {
			return model.Photo{}, false
		}
		return model.Photo{
			URL:        doc.URL,
			AssetID:    firstNonEmpty(doc.AssetID, doc.PublicID),
			UploadedAt: doc.UploadedAt,
			Format:     doc.Format,
			Bytes:      doc.Bytes,
			Width:      doc.Width,
			Height:     doc.Height,
		}, true
	default:
		return model.Photo{}, false
	}
}

func photoToDoc(p model.Photo) photoDoc {
	return photoDoc{
		URL:        p.URL,
		PublicID:   p.AssetID,
		AssetID:    p.AssetID,
		UploadedAt: p.UploadedAt,
		Format:     p.Format,
		Bytes:      p.Bytes,
		Width:      p.Width,
		Height:     p.Height,
	}
}

func intFromRaw(raw bson.RawValue) (int, bool) {
	switch raw.Type {
	case bsontype.Int32:
		return int(raw.Int32()), true
	case bsontype.Int64:
		return int(raw.Int64()), true
	case bsontype.Double:
		return int(raw.Double()), true
	case bsontype.String:
		n, err := strconv.Atoi(strings.TrimSpace(raw.StringValue()))
		return n, err == nil
	default:
		return 0, false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (r *UserRepo) Get(ctx context.Context, id string) (model.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var doc userDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return doc.toModel(), nil
}

func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	return r.find(ctx, bson.M{}, options.Find())
}

func (r *UserRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]model.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	docs, err := decodeAll[userDoc](ctx, cur)
	if err != nil {
		return nil, err
	}
	out := make([]model.User, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (r *UserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, bson.M{"username": username}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count users by username: %w", err)
	}
	return n > 0, nil
}

// SearchByUsernamePrefix is a range scan over username.
func (r *UserRepo) SearchByUsernamePrefix(ctx context.Context, prefix string, limit int) ([]model.User, error) {
	if limit <= 0 {
		limit = 20
	}
	filter := bson.M{"username": bson.M{"$gte": prefix, "$lt": prefix + "\uf8ff"}}
	opts := options.Find().SetSort(bson.D{{Key: "username", Value: 1}}).SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

func (r *UserRepo) Create(ctx context.Context, u model.User) error {
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("user id is required")
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	photos := make([]photoDoc, 0, len(u.Photos))
	for _, p := range u.Photos {
		photos = append(photos, photoToDoc(p))
	}

	doc := bson.M{
		"_id":             u.ID,
		"username":        u.Username,
		"realName":        u.RealName,
		"phone":           u.Phone,
		"about":           u.About,
		"stats":           statsToDoc(u.Stats),
		"photos":          photos,
		"createdAt":       u.CreatedAt,
		"lastActive":      u.LastActive,
		"isAdmin":         u.IsAdmin,
		"isModerator":     u.IsModerator,
		"isBlocked":       u.IsBlocked,
		"status":          string(u.Status),
		"profileComplete": u.ProfileComplete,
		"profileViews":    u.ProfileViews,
		"likes":           u.Likes,
		"reportedCount":   u.ReportedCount,
		"preferences": bson.M{
			"showAge":         u.Preferences.ShowAge,
			"showStatus":      u.Preferences.ShowStatus,
			"receiveMessages": u.Preferences.ReceiveMessages,
			"showOnline":      u.Preferences.ShowOnline,
		},
	}
	if u.DisplayName != "" {
		doc["displayName"] = u.DisplayName
	}
	if u.Moderation.AdminSince != nil {
		doc["adminSince"] = u.Moderation.AdminSince
		doc["adminGrantedBy"] = u.Moderation.AdminGrantedBy
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func statsToDoc(s model.Stats) bson.M {
	out := bson.M{
		"position":           s.Position,
		"iamInto":            s.IAmInto,
		"relationshipStatus": s.RelationshipStatus,
	}
	if s.Age > 0 {
		out["age"] = s.Age
	}
	return out
}

// Update applies a partial update. Fields left nil in the patch are not
// touched.
func (r *UserRepo) Update(ctx context.Context, id string, patch model.UserPatch) error {
	update := patchToUpdate(patch)
	if len(update) == 0 {
		return nil
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func patchToUpdate(p model.UserPatch) bson.M {
	set := bson.M{}
	unset := bson.M{}

	setString := func(key string, v *string) {
		if v != nil {
			set[key] = *v
		}
	}
	setBool := func(key string, v *bool) {
		if v != nil {
			set[key] = *v
		}
	}
	setTime := func(key string, v *time.Time) {
		if v != nil {
			set[key] = v.UTC()
		}
	}

	setString("username", p.Username)
	setString("displayName", p.DisplayName)
	setString("realName", p.RealName)
	setString("phone", p.Phone)
	setString("about", p.About)
	if p.Age != nil {
		set["stats.age"] = *p.Age
	}
	setString("stats.position", p.Position)
	setString("stats.iamInto", p.IAmInto)
	setString("stats.relationshipStatus", p.RelationshipStatus)
	if p.Status != nil {
		set["status"] = string(*p.Status)
	}
	setTime("lastActive", p.LastActive)
	setBool("isAdmin", p.IsAdmin)
	setBool("isModerator", p.IsModerator)
	setBool("isBlocked", p.IsBlocked)
	setBool("profileComplete", p.ProfileComplete)
	for name, v := range p.Preferences {
		set["preferences."+name] = v
	}
	if p.Photos != nil {
		photos := make([]photoDoc, 0, len(*p.Photos))
		for _, ph := range *p.Photos {
			photos = append(photos, photoToDoc(ph))
		}
		set["photos"] = photos
	}
	setTime("blockedAt", p.BlockedAt)
	setString("blockedBy", p.BlockedBy)
	setTime("unblockedAt", p.UnblockedAt)
	setString("unblockedBy", p.UnblockedBy)
	setTime("banUntil", p.BanUntil)
	if p.ClearBanUntil {
		unset["banUntil"] = ""
	}
	setTime("adminSince", p.AdminSince)
	setString("adminGrantedBy", p.AdminGrantedBy)

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if p.AddWarning != nil {
		update["$push"] = bson.M{"warnings": warningDoc(*p.AddWarning)}
	}
	return update
}

func (r *UserRepo) Increment(ctx context.Context, id string, counter model.Counter, by int64) error {
	if !counter.Valid() {
		return fmt.Errorf("unknown counter %q", counter)
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{string(counter): by}})
	if err != nil {
		return fmt.Errorf("increment user %s: %w", counter, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) Count(ctx context.Context, q model.UserCountQuery) (int64, error) {
	filter := bson.M{}
	if q.CreatedSince != nil {
		filter["createdAt"] = bson.M{"$gte": q.CreatedSince.UTC()}
	}
	if q.ActiveSince != nil {
		filter["lastActive"] = bson.M{"$gte": q.ActiveSince.UTC()}
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// LiftExpiredBans unblocks every user whose banUntil is at or before now.
func (r *UserRepo) LiftExpiredBans(ctx context.Context, now time.Time, actor string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.coll.UpdateMany(ctx,
		bson.M{"isBlocked": true, "banUntil": bson.M{"$lte": now.UTC()}},
		bson.M{
			"$set":   bson.M{"isBlocked": false, "unblockedAt": now.UTC(), "unblockedBy": actor},
			"$unset": bson.M{"banUntil": ""},
		},
	)
	if err != nil {
		return 0, fmt.Errorf("lift expired bans: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *UserRepo) MarkStaleOffline(ctx context.Context, activeBefore time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.coll.UpdateMany(ctx,
		bson.M{
			"status": string(enums.PresenceOnline),
			"$or": bson.A{
				bson.M{"lastActive": bson.M{"$lt": activeBefore.UTC()}},
				bson.M{"lastActive": bson.M{"$exists": false}},
			},
		},
		bson.M{"$set": bson.M{"status": string(enums.PresenceOffline)}},
	)
	if err != nil {
		return 0, fmt.Errorf("mark stale users offline: %w", err)
	}
	return res.ModifiedCount, nil
}

// containsFold builds a case-insensitive substring regex.
func containsFold(s string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}
}
