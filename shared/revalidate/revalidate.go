// Package revalidate tells the host which rendered paths became stale after a write.
//
// Invalidation is fire-and-forget: implementations log failures and never
// return them, a stale page is preferable to a failed post.
package revalidate

import (
	"context"

	"github.com/itchan-dev/threads/shared/logger"
)

type Invalidator interface {
	Invalidate(ctx context.Context, path string)
}

// Log only records the invalidation, used when no cache is configured
type Log struct{}

func (Log) Invalidate(ctx context.Context, path string) {
	logger.Log.DebugContext(ctx, "path invalidated", "path", path)
}

// Func adapts a plain function
type Func func(ctx context.Context, path string)

func (f Func) Invalidate(ctx context.Context, path string) {
	f(ctx, path)
}
