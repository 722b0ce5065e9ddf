package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/itchan-dev/threads/shared/domain"
	internal_errors "github.com/itchan-dev/threads/shared/errors"
	"github.com/itchan-dev/threads/shared/logger"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type threadDoc struct {
	ID        string    `bson:"_id"`
	Seq       int64     `bson:"seq"`
	Text      string    `bson:"text"`
	AuthorID  string    `bson:"author_id"`
	ParentID  *string   `bson:"parent_id,omitempty"`
	Children  []string  `bson:"children"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d threadDoc) toDomain() domain.Thread {
	children := d.Children
	if children == nil {
		children = []domain.ThreadId{}
	}
	return domain.Thread{
		Id:        d.ID,
		Text:      d.Text,
		Author:    d.AuthorID,
		ParentId:  d.ParentID,
		Children:  children,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

func decodeThreads(ctx context.Context, cursor *mongo.Cursor) ([]domain.Thread, error) {
	var docs []threadDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode threads: %w", err)
	}
	threads := make([]domain.Thread, 0, len(docs))
	for _, d := range docs {
		threads = append(threads, d.toDomain())
	}
	return threads, nil
}

func (s *Storage) exists(ctx context.Context, coll *mongo.Collection, id string) (bool, error) {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateThread validates author and parent, inserts the thread and $pushes its id
// to the author's threads and the parent's children. Standalone servers have no
// transactions, so a failed push deletes what was written before it.
// Reads are not isolated either: a reply can be visible before its parent's children lists it.
func (s *Storage) CreateThread(ctx context.Context, data domain.ThreadCreationData) (domain.Thread, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ok, err := s.exists(ctx, s.users(), data.Author)
	if err != nil {
		return domain.Thread{}, fmt.Errorf("failed to validate author: %w", err)
	}
	if !ok {
		return domain.Thread{}, internal_errors.NotFound("User %s not found", data.Author)
	}
	if data.ParentId != nil {
		ok, err := s.exists(ctx, s.threads(), *data.ParentId)
		if err != nil {
			return domain.Thread{}, fmt.Errorf("failed to validate parent: %w", err)
		}
		if !ok {
			return domain.Thread{}, internal_errors.NotFound("Thread %s not found", *data.ParentId)
		}
	}

	seq, err := s.nextSeq(ctx, threadsCollection)
	if err != nil {
		return domain.Thread{}, err
	}
	doc := threadDoc{
		ID:        uuid.NewString(),
		Seq:       seq,
		Text:      data.Text,
		AuthorID:  data.Author,
		ParentID:  data.ParentId,
		Children:  []string{},
		CreatedAt: now(),
	}
	if _, err := s.threads().InsertOne(ctx, doc); err != nil {
		return domain.Thread{}, fmt.Errorf("failed to insert thread: %w", err)
	}

	res, err := s.users().UpdateOne(ctx, bson.M{"_id": data.Author}, bson.M{"$push": bson.M{"threads": doc.ID}})
	if err != nil || res.MatchedCount == 0 {
		s.rollbackThread(ctx, doc, false)
		if err != nil {
			return domain.Thread{}, fmt.Errorf("failed to append thread to author: %w", err)
		}
		return domain.Thread{}, internal_errors.NotFound("User %s not found", data.Author)
	}

	if data.ParentId != nil {
		res, err := s.threads().UpdateOne(ctx, bson.M{"_id": *data.ParentId}, bson.M{"$push": bson.M{"children": doc.ID}})
		if err != nil || res.MatchedCount == 0 {
			s.rollbackThread(ctx, doc, true)
			if err != nil {
				return domain.Thread{}, fmt.Errorf("failed to append reply to parent: %w", err)
			}
			return domain.Thread{}, internal_errors.NotFound("Thread %s not found", *data.ParentId)
		}
	}

	return doc.toDomain(), nil
}

// rollbackThread undoes a partially created thread, errors are only logged
func (s *Storage) rollbackThread(ctx context.Context, doc threadDoc, pushedToAuthor bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if pushedToAuthor {
		if _, err := s.users().UpdateOne(ctx, bson.M{"_id": doc.AuthorID}, bson.M{"$pull": bson.M{"threads": doc.ID}}); err != nil {
			logger.Log.Error("failed to pull thread from author", "thread", doc.ID, "error", err)
		}
	}
	if _, err := s.threads().DeleteOne(ctx, bson.M{"_id": doc.ID}); err != nil {
		logger.Log.Error("failed to delete orphan thread", "thread", doc.ID, "error", err)
	}
}

func (s *Storage) GetThread(ctx context.Context, id domain.ThreadId) (domain.Thread, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc threadDoc
	if err := s.threads().FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Thread{}, internal_errors.NotFound("Thread %s not found", id)
		}
		return domain.Thread{}, fmt.Errorf("failed to fetch thread: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *Storage) GetThreads(ctx context.Context, ids []domain.ThreadId) ([]domain.Thread, error) {
	if len(ids) == 0 {
		return []domain.Thread{}, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cursor, err := s.threads().Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch threads: %w", err)
	}
	return decodeThreads(ctx, cursor)
}

func (s *Storage) GetTopLevelThreads(ctx context.Context, page domain.Page) ([]domain.Thread, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "seq", Value: 1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Size))
	cursor, err := s.threads().Find(ctx, bson.M{"parent_id": nil}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch top level threads: %w", err)
	}
	return decodeThreads(ctx, cursor)
}

func (s *Storage) CountTopLevelThreads(ctx context.Context) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.threads().CountDocuments(ctx, bson.M{"parent_id": nil})
	if err != nil {
		return 0, fmt.Errorf("failed to count top level threads: %w", err)
	}
	return int(n), nil
}

func (s *Storage) GetThreadsByAuthor(ctx context.Context, userId domain.UserId) ([]domain.Thread, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cursor, err := s.threads().Find(ctx, bson.M{"author_id": userId}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch threads of user: %w", err)
	}
	return decodeThreads(ctx, cursor)
}
