package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Completer resumes the continuation waiting for a batch outcome.
type Completer interface {
	Complete(ctx context.Context, id uuid.UUID, result error) error
}

// RetryObserver is told about every retried transfer.
type RetryObserver interface {
	SettlementRetried(kind Kind)
}

// Dispatcher applies settlement batches and reports their outcome to the
// waiting continuation.
type Dispatcher struct {
	completer       Completer
	logger          *zap.Logger
	maxTries        uint
	initialInterval time.Duration
	observer        RetryObserver
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRetries sets the attempts per transfer and the first backoff interval.
func WithRetries(maxTries uint, initialInterval time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if maxTries > 0 {
			d.maxTries = maxTries
		}
		if initialInterval > 0 {
			d.initialInterval = initialInterval
		}
	}
}

func WithRetryObserver(o RetryObserver) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

func NewDispatcher(completer Completer, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		completer:       completer,
		logger:          logger.Named("settlement"),
		maxTries:        3,
		initialInterval: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch applies batch to ledger in order and completes the continuation
// registered under id with the outcome. The returned error only reports a
// failure to deliver that outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, id uuid.UUID, ledger Ledger, batch Batch) error {
	result := d.apply(ctx, id, ledger, batch)
	if err := d.completer.Complete(ctx, id, result); err != nil {
		return fmt.Errorf("failed to complete settlement %s: %w", id, err)
	}
	return nil
}

func (d *Dispatcher) apply(ctx context.Context, id uuid.UUID, ledger Ledger, batch Batch) error {
	for i, t := range batch.Transfers {
		if err := d.applyWithRetry(ctx, id, ledger, t); err != nil {
			d.logger.Warn("Settlement transfer failed",
				zap.String("correlation_id", id.String()),
				zap.Int("leg", i),
				zap.Stringer("transfer", t),
				zap.Error(err))
			return fmt.Errorf("transfer %d (%s): %w", i, t, err)
		}
	}

	d.logger.Debug("Settlement applied",
		zap.String("correlation_id", id.String()),
		zap.Int("transfers", len(batch.Transfers)))
	return nil
}

func (d *Dispatcher) applyWithRetry(ctx context.Context, id uuid.UUID, ledger Ledger, t Transfer) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.initialInterval
	policy.MaxInterval = d.initialInterval * 10

	notify := func(err error, next time.Duration) {
		d.logger.Info("Retrying settlement transfer",
			zap.String("correlation_id", id.String()),
			zap.Stringer("transfer", t),
			zap.Error(err),
			zap.Duration("backoff", next))
		if d.observer != nil {
			d.observer.SettlementRetried(t.Kind)
		}
	}

	// a failed statement can poison the surrounding transaction, so each
	// attempt gets its own savepoint when the ledger offers one
	attempt := func() error { return Apply(ctx, ledger, t) }
	if a, ok := ledger.(Atomic); ok {
		attempt = func() error {
			return a.Atomically(ctx, func(l Ledger) error { return Apply(ctx, l, t) })
		}
	}

	operation := func() (struct{}, error) {
		err := attempt()
		if err != nil && IsPermanent(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(d.maxTries),
		backoff.WithNotify(notify))
	return err
}
