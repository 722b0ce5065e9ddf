package pg

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/itchan-dev/threads/shared/config"
	"github.com/itchan-dev/threads/shared/logger"
	sharedpg "github.com/itchan-dev/threads/shared/storage/pg"
	"github.com/lib/pq"
)

//go:embed migrations/init.sql
var Schema string

// postgres error codes we translate
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type Storage struct {
	db      *sql.DB
	timeout time.Duration
}

func New(ctx context.Context, cfg *config.Config) (*Storage, error) {
	return NewWithPool(ctx, cfg, sharedpg.DefaultConnectionConfig())
}

func NewWithPool(ctx context.Context, cfg *config.Config, pool sharedpg.ConnectionConfig) (*Storage, error) {
	logger.Log.Info("connecting to postgres", "host", cfg.Private.Pg.Host, "dbname", cfg.Private.Pg.Dbname)
	db, err := sharedpg.Connect(ctx, cfg.Private.Pg, pool)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("successfully connected to postgres")
	return &Storage{db: db, timeout: cfg.QueryTimeout()}, nil
}

// Migrate applies the embedded schema
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) Cleanup() error {
	return s.db.Close()
}

func (s *Storage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return sharedpg.WithTimeout(ctx, s.timeout)
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// validThreadIds drops ids that can't be a thread id, postgres would reject the whole query
func validThreadIds(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	return valid
}
