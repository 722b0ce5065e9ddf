package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/itchan-dev/threads/shared/domain"
	internal_errors "github.com/itchan-dev/threads/shared/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type userDoc struct {
	ID        string    `bson:"_id"`
	Username  string    `bson:"username"`
	Name      string    `bson:"name"`
	Bio       string    `bson:"bio"`
	Image     string    `bson:"image"`
	Onboarded bool      `bson:"onboarded"`
	Threads   []string  `bson:"threads"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d userDoc) toDomain() domain.User {
	threads := d.Threads
	if threads == nil {
		threads = []domain.ThreadId{}
	}
	return domain.User{
		Id:        d.ID,
		Username:  d.Username,
		Name:      d.Name,
		Bio:       d.Bio,
		Image:     d.Image,
		Onboarded: d.Onboarded,
		Threads:   threads,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

func decodeUsers(ctx context.Context, cursor *mongo.Cursor) ([]domain.User, error) {
	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	users := make([]domain.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toDomain())
	}
	return users, nil
}

func (s *Storage) UpsertUser(ctx context.Context, p domain.UserProfileData) (domain.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"username":  p.Username,
			"name":      p.Name,
			"bio":       p.Bio,
			"image":     p.Image,
			"onboarded": true,
		},
		"$setOnInsert": bson.M{
			"threads":    []string{},
			"created_at": now(),
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc userDoc
	if err := s.users().FindOneAndUpdate(ctx, bson.M{"_id": p.Id}, update, opts).Decode(&doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.User{}, internal_errors.Validation("Username %s is already taken", p.Username)
		}
		return domain.User{}, fmt.Errorf("failed to upsert user: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *Storage) GetUser(ctx context.Context, id domain.UserId) (domain.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc userDoc
	if err := s.users().FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, internal_errors.NotFound("User %s not found", id)
		}
		return domain.User{}, fmt.Errorf("failed to fetch user: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *Storage) GetUsers(ctx context.Context, ids []domain.UserId) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cursor, err := s.users().Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	return decodeUsers(ctx, cursor)
}

// userFilter is shared by SearchUsers and CountUsers so count and page never disagree
func userFilter(search domain.UserSearch) bson.M {
	filter := bson.M{"_id": bson.M{"$ne": search.ExcludeId}}
	if search.Search != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(search.Search), "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"username": pattern},
			bson.M{"name": pattern},
		}
	}
	return filter
}

func (s *Storage) SearchUsers(ctx context.Context, search domain.UserSearch) ([]domain.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	direction := -1
	if search.Sort == domain.SortAsc {
		direction = 1
	}
	page := domain.Page{Number: search.PageNumber, Size: search.PageSize}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: direction}, {Key: "_id", Value: direction}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Size))

	cursor, err := s.users().Find(ctx, userFilter(search), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return decodeUsers(ctx, cursor)
}

func (s *Storage) CountUsers(ctx context.Context, search domain.UserSearch) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.users().CountDocuments(ctx, userFilter(search))
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return int(n), nil
}
