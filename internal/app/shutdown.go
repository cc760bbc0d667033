package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/aatumaykin/cmsjobs/internal/runtime"
)

// Shutdown stops the components in reverse dependency order:
//  1. Admin API and config watcher
//  2. Job runner (in-flight ticks finish first)
//  3. Background queue (pending items drain)
//  4. Notification subscriptions
//  5. MainDom lease and server registration
//  6. Delivery index and database
//
// Errors are logged and joined. Calling Shutdown on an App that was never
// started is a no-op.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return nil
	}

	err := a.shutdownInternal(ctx)
	a.started = false
	a.logger.Info("application shutdown complete")
	return err
}

// shutdownAfterFailure releases whatever a failed Initialize left running.
func (a *App) shutdownAfterFailure() {
	ctx, cancel := context.WithTimeout(context.Background(), a.config.Runtime.ShutdownTimeout())
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		a.logger.Error("cleanup after failed start", err)
	}
}

func (a *App) shutdownInternal(ctx context.Context) error {
	var errs []error
	collect := func(what string, err error) {
		if err != nil {
			a.logger.Error("failed to stop "+what, err)
			errs = append(errs, fmt.Errorf("%s: %w", what, err))
		}
	}

	a.state.SetLevel(runtime.LevelUnknown)

	if a.admin != nil {
		collect("admin api", a.admin.Shutdown(ctx))
		a.admin = nil
	}
	if a.watcher != nil {
		collect("config watcher", a.watcher.Stop())
		a.watcher = nil
	}

	if a.runner != nil {
		a.runner.Stop(ctx)
	}

	if a.queue != nil {
		collect("background queue", a.queue.Stop(ctx))
	}

	for i := len(a.unsubscribe) - 1; i >= 0; i-- {
		a.unsubscribe[i]()
	}
	a.unsubscribe = nil

	if a.cluster != nil {
		if a.cluster.Lock != nil {
			collect("main dom lease", a.cluster.Lock.Stop(ctx))
		}
		if a.cluster.Registration != nil {
			collect("server registration", a.cluster.Registration.Unregister(ctx, a.cluster.Identity))
		}
	}

	if a.index != nil {
		collect("delivery index", a.index.Close())
	}
	if a.storage != nil {
		collect("database", a.storage.Close())
	}

	return errors.Join(errs...)
}
