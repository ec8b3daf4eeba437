// Package mongo stores sessions in a MongoDB collection. Every fragment is one
// aggregation-pipeline update, so concurrent fragments for a session are merged
// server-side without read-modify-write races.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"

	mongodb "github.com/dmitrymomot/triage/integration/database/mongo"
	"github.com/dmitrymomot/triage/internal/session"
)

// DefaultCollection is the collection used unless WithCollection overrides it.
const DefaultCollection = "sessions"

// Store implements aggregator.Store on top of a MongoDB collection.
type Store struct {
	coll *mongo.Collection
	now  func() time.Time
}

// Option configures a Store.
type Option func(*options)

type options struct {
	collection string
	now        func() time.Time
}

// WithCollection overrides the collection name.
func WithCollection(name string) Option {
	return func(o *options) {
		if name != "" {
			o.collection = name
		}
	}
}

// WithClock sets the clock used for created_at on FindOrInit.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// New returns a store over db and makes sure its indexes exist.
func New(ctx context.Context, db *mongo.Database, opts ...Option) (*Store, error) {
	o := options{
		collection: DefaultCollection,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store{coll: db.Collection(o.collection), now: o.now}
	if err := s.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the unique session_id index that backs find-or-init,
// plus the created_at index used for listing.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: mongoopts.Index().SetUnique(true).SetName("session_id_unique"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: mongoopts.Index().SetName("created_at_desc"),
		},
	})
	if err != nil {
		return wrapErr("create indexes", err)
	}
	return nil
}

func (s *Store) FindOrInit(ctx context.Context, id string, deviceInfo map[string]string) (session.Session, bool, error) {
	fresh := session.New(id, deviceInfo, s.now())

	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "session_id", Value: id}},
		bson.D{{Key: "$setOnInsert", Value: bson.D{
			{Key: "device_info", Value: fresh.DeviceInfo},
			{Key: "collected_categories", Value: fresh.CollectedCategories},
			{Key: "category_data", Value: bson.D{}},
			{Key: "status", Value: string(fresh.Status)},
			{Key: "created_at", Value: fresh.CreatedAt},
			{Key: "updated_at", Value: fresh.UpdatedAt},
		}}},
		mongoopts.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return session.Session{}, false, wrapErr("find or init", err)
	}

	got, err := s.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		// Deleted between the upsert and the read; let the engine retry.
		return session.Session{}, false, fmt.Errorf("mongo find or init: %w", session.ErrConflict)
	}
	if err != nil {
		return session.Session{}, false, err
	}
	return got, res.UpsertedCount == 1, nil
}

func (s *Store) ApplyUpdate(ctx context.Context, id string, m session.Mutation) (session.Session, error) {
	var doc document
	err := s.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "session_id", Value: id}},
		updatePipeline(m),
		mongoopts.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(mongoopts.After),
	).Decode(&doc)
	if err != nil {
		return session.Session{}, wrapErr("apply update", err)
	}
	return doc.toSession(), nil
}

func (s *Store) List(ctx context.Context, limit int) ([]session.Summary, error) {
	opts := mongoopts.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "session_id", Value: 1}}).
		SetProjection(bson.D{{Key: "category_data", Value: 0}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, wrapErr("list", err)
	}

	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, wrapErr("list", err)
	}

	out := make([]session.Summary, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toSession().Summary())
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (session.Session, error) {
	var doc document
	err := s.coll.FindOne(ctx, bson.D{{Key: "session_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, wrapErr("get", err)
	}
	return doc.toSession(), nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "session_id", Value: id}})
	if err != nil {
		return false, wrapErr("delete", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *Store) Rename(ctx context.Context, id, targetName string) (session.Session, error) {
	var doc document
	err := s.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "session_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "target_name", Value: targetName}}}},
		mongoopts.FindOneAndUpdate().SetReturnDocument(mongoopts.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, wrapErr("rename", err)
	}
	return doc.toSession(), nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := mongodb.Healthcheck(s.coll.Database().Client())(ctx); err != nil {
		return wrapErr("ping", err)
	}
	return nil
}

// wrapErr classifies driver errors so the engine knows what to retry.
// A duplicate key means a racing upsert won; the retry will find the document.
func wrapErr(op string, err error) error {
	var se mongo.ServerError
	switch {
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("mongo %s: %w: %w", op, session.ErrConflict, err)
	case mongo.IsTimeout(err),
		mongo.IsNetworkError(err),
		errors.Is(err, mongo.ErrClientDisconnected),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &se) && se.HasErrorLabel("RetryableWriteError"):
		return fmt.Errorf("mongo %s: %w: %w", op, session.ErrStorageUnavailable, err)
	default:
		return fmt.Errorf("mongo %s: %w", op, err)
	}
}
