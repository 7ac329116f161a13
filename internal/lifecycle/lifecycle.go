// Package lifecycle runs the long-lived tasks of the process and stops all of
// them as soon as one ends or the parent context is cancelled.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Task is a named unit of work that runs until ctx is cancelled.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Run starts every task and waits for all of them. The first task to return,
// a task error, or cancellation of ctx cancels the context shared by the
// others. The result combines task errors, leaving out context.Canceled.
func Run(ctx context.Context, logger *zap.Logger, tasks ...Task) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	errs := make([]error, len(tasks))
	for i, task := range tasks {
		g.Go(func() error {
			logger.Info("task started", zap.String("task", task.Name))
			err := task.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("task failed", zap.String("task", task.Name), zap.Error(err))
				errs[i] = fmt.Errorf("%s: %w", task.Name, err)
				return errs[i]
			}
			logger.Info("task stopped", zap.String("task", task.Name))
			cancel()
			return nil
		})
	}
	if err := g.Wait(); err == nil {
		return nil
	}
	return multierr.Combine(errs...)
}

// HTTPServer returns a task that serves srv until ctx is cancelled, then
// drains in-flight requests for at most drain.
func HTTPServer(srv *http.Server, drain time.Duration, logger *zap.Logger) Task {
	return Task{
		Name: "api",
		Run: func(ctx context.Context) error {
			serveErr := make(chan error, 1)
			go func() {
				logger.Info("starting server", zap.String("addr", srv.Addr))
				serveErr <- srv.ListenAndServe()
			}()

			select {
			case err := <-serveErr:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("listen on %s: %w", srv.Addr, err)
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drain)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown server: %w", err)
			}
			logger.Info("server stopped")
			return nil
		},
	}
}
