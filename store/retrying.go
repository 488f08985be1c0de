package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nomis52/vetflow/archetype"
)

const (
	defaultMaxRetries      = 3
	defaultInitialInterval = 50 * time.Millisecond
)

// Retrying retries failed operations of an underlying Store with exponential
// backoff. ErrNotFound and context errors are returned immediately.
type Retrying struct {
	next            Store
	logger          *slog.Logger
	maxRetries      uint64
	initialInterval time.Duration
}

// RetryOption configures a Retrying store.
type RetryOption func(*Retrying)

// WithMaxRetries sets the number of retries after the first attempt.
func WithMaxRetries(n uint64) RetryOption {
	return func(r *Retrying) {
		r.maxRetries = n
	}
}

// WithInitialInterval sets the first backoff interval.
func WithInitialInterval(d time.Duration) RetryOption {
	return func(r *Retrying) {
		r.initialInterval = d
	}
}

// WithLogger sets the logger used to report retries.
func WithLogger(logger *slog.Logger) RetryOption {
	return func(r *Retrying) {
		r.logger = logger
	}
}

// NewRetrying wraps next.
func NewRetrying(next Store, opts ...RetryOption) *Retrying {
	r := &Retrying{
		next:            next,
		logger:          slog.Default(),
		maxRetries:      defaultMaxRetries,
		initialInterval: defaultInitialInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "store")
	return r
}

func (r *Retrying) Get(ctx context.Context, ref archetype.Reference) (archetype.Object, error) {
	return retry(ctx, r, "get", func() (archetype.Object, error) {
		return r.next.Get(ctx, ref)
	})
}

func (r *Retrying) Save(ctx context.Context, obj archetype.Object) error {
	_, err := retry(ctx, r, "save", func() (struct{}, error) {
		return struct{}{}, r.next.Save(ctx, obj)
	})
	return err
}

func (r *Retrying) Remove(ctx context.Context, ref archetype.Reference) error {
	_, err := retry(ctx, r, "remove", func() (struct{}, error) {
		return struct{}{}, r.next.Remove(ctx, ref)
	})
	return err
}

func (r *Retrying) Find(ctx context.Context, patterns ...string) ([]archetype.Object, error) {
	return retry(ctx, r, "find", func() ([]archetype.Object, error) {
		return r.next.Find(ctx, patterns...)
	})
}

func retry[T any](ctx context.Context, r *Retrying, op string, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, r.maxRetries), ctx)

	return backoff.RetryNotifyWithData(func() (T, error) {
		v, err := fn()
		if err != nil && permanent(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, policy, func(err error, wait time.Duration) {
		r.logger.Warn("store operation failed, retrying", "op", op, "error", err, "wait", wait)
	})
}

func permanent(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
