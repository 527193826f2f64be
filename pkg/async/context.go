package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/vambora/dispatch/pkg/logger"
	"go.uber.org/zap"
)

// Go runs fn in a goroutine with panic recovery. The correlation ID of ctx is
// carried into a fresh background context so the task survives the caller's
// cancellation but keeps its trace identity.
//
// Usage:
//
//	async.Go(ctx, "publish-ride-event", func(ctx context.Context) {
//	    bus.Publish(ctx, evt)
//	})
func Go(ctx context.Context, taskName string, fn func(ctx context.Context)) {
	correlationID := logger.CorrelationIDFromContext(ctx)
	start := time.Now()

	go func() {
		taskCtx := context.Background()
		if correlationID != "" {
			taskCtx = logger.ContextWithCorrelationID(taskCtx, correlationID)
		}

		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(taskCtx, "async task panicked",
					zap.String("task", taskName),
					zap.Any("panic", r),
					zap.String("stack", string(debug.Stack())),
				)
			}
		}()

		fn(taskCtx)

		logger.DebugContext(taskCtx, "async task completed",
			zap.String("task", taskName),
			zap.Duration("duration", time.Since(start)),
		)
	}()
}

// GoWithTimeout runs fn like Go but bounds it with a deadline. fn is expected
// to honor ctx; the watchdog only logs when the deadline passes.
func GoWithTimeout(ctx context.Context, taskName string, timeout time.Duration, fn func(ctx context.Context)) {
	correlationID := logger.CorrelationIDFromContext(ctx)
	start := time.Now()

	go func() {
		base := context.Background()
		if correlationID != "" {
			base = logger.ContextWithCorrelationID(base, correlationID)
		}
		taskCtx, cancel := context.WithTimeout(base, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(taskCtx, "async task panicked",
					zap.String("task", taskName),
					zap.Any("panic", r),
					zap.String("stack", string(debug.Stack())),
				)
			}
		}()

		done := make(chan struct{})
		go func() {
			defer close(done)
			fn(taskCtx)
		}()

		select {
		case <-done:
			logger.DebugContext(taskCtx, "async task completed",
				zap.String("task", taskName),
				zap.Duration("duration", time.Since(start)),
			)
		case <-taskCtx.Done():
			logger.WarnContext(taskCtx, "async task timed out",
				zap.String("task", taskName),
				zap.Duration("timeout", timeout),
			)
		}
	}()
}
