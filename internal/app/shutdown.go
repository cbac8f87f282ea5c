package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CloseFunc releases one component. It should give up once ctx is done.
type CloseFunc func(ctx context.Context) error

type namedCloser struct {
	name  string
	close CloseFunc
}

// ShutdownHandler closes registered components in reverse order.
type ShutdownHandler struct {
	logger  *zap.Logger
	mu      sync.Mutex
	closers []namedCloser
	timeout time.Duration
}

func NewShutdownHandler(logger *zap.Logger, timeout time.Duration) *ShutdownHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownHandler{
		logger:  logger.Named("shutdown"),
		timeout: timeout,
	}
}

// Add registers a component for shutdown.
func (sh *ShutdownHandler) Add(name string, fn CloseFunc) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.closers = append(sh.closers, namedCloser{name: name, close: fn})
	sh.logger.Debug("Registered component for shutdown", zap.String("component", name))
}

// AddCloser registers a component whose Close ignores contexts.
func (sh *ShutdownHandler) AddCloser(name string, fn func() error) {
	sh.Add(name, func(context.Context) error { return fn() })
}

// Shutdown closes every component, last registered first, and reports all
// failures. Each component gets the remainder of the handler's timeout.
func (sh *ShutdownHandler) Shutdown(ctx context.Context) error {
	sh.mu.Lock()
	closers := sh.closers
	sh.closers = nil
	sh.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, sh.timeout)
	defer cancel()

	sh.logger.Info("Starting graceful shutdown", zap.Int("components", len(closers)))

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		done := make(chan error, 1)
		go func() { done <- c.close(ctx) }()

		select {
		case err := <-done:
			if err != nil {
				sh.logger.Error("Failed to shut down component", zap.String("component", c.name), zap.Error(err))
				errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
				continue
			}
			sh.logger.Debug("Component shut down", zap.String("component", c.name))
		case <-ctx.Done():
			sh.logger.Error("Shutdown timeout for component", zap.String("component", c.name))
			errs = append(errs, fmt.Errorf("%s: shutdown timeout", c.name))
		}
	}

	if err := errors.Join(errs...); err != nil {
		sh.logger.Error("Shutdown completed with errors", zap.Int("error_count", len(errs)))
		return err
	}
	sh.logger.Info("Graceful shutdown completed")
	return nil
}
