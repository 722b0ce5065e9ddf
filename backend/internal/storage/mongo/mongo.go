// Package mongo is the document store backend. Threads and users live in
// their own collections, child and authored id lists are appended with $push.
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/itchan-dev/threads/shared/config"
	"github.com/itchan-dev/threads/shared/logger"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	threadsCollection  = "threads"
	usersCollection    = "users"
	countersCollection = "counters"
)

type Storage struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

func New(ctx context.Context, cfg *config.Config) (*Storage, error) {
	logger.Log.Info("connecting to mongo", "database", cfg.Private.Mongo.Database)
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.Private.Mongo.Uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	logger.Log.Info("successfully connected to mongo")

	return &Storage{
		client:  client,
		db:      client.Database(cfg.Private.Mongo.Database),
		timeout: cfg.QueryTimeout(),
	}, nil
}

// Migrate creates the indexes the queries rely on. Safe to call repeatedly.
func (s *Storage) Migrate(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		threadsCollection: {
			{Keys: bson.D{{Key: "parent_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "seq", Value: 1}}},
			{Keys: bson.D{{Key: "author_id", Value: 1}, {Key: "seq", Value: 1}}},
		},
		usersCollection: {
			{
				Keys:    bson.D{{Key: "username", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}},
		},
	}
	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Storage) Cleanup() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Storage) threads() *mongo.Collection  { return s.db.Collection(threadsCollection) }
func (s *Storage) users() *mongo.Collection    { return s.db.Collection(usersCollection) }
func (s *Storage) counters() *mongo.Collection { return s.db.Collection(countersCollection) }

func (s *Storage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// nextSeq hands out a monotonically increasing number per counter name
func (s *Storage) nextSeq(ctx context.Context, name string) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters().FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s sequence: %w", name, err)
	}
	return doc.Seq, nil
}

// mongo keeps milliseconds, truncate so what we return equals what we read later
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
