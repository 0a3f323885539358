package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"watchtower/internal/engine/alert"
)

// Channel is one concrete delivery mechanism. Send returns nil on delivery,
// a *RetryableError for transient failures worth retrying, and any other
// error for terminal failures (bad credentials, malformed payload).
type Channel interface {
	Name() string
	Send(ctx context.Context, msg alert.Message) error
}

// RetryableError marks a transient delivery failure. RetryAfter, when
// positive, is the server-requested delay before the next attempt.
type RetryableError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Result reports the delivery outcome for one channel.
type Result struct {
	Channel   string
	Delivered bool
	Attempts  int
	Err       error
}

type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Dispatcher fans an alert out to every configured channel concurrently.
// Each channel runs its own retry loop with no shared state, so one broken
// channel never blocks or fails delivery to the others.
type Dispatcher struct {
	cfg    Config
	logger *zap.Logger
}

func NewDispatcher(cfg Config, logger *zap.Logger) *Dispatcher {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	return &Dispatcher{
		cfg:    cfg,
		logger: logger,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg alert.Message, channels []Channel) []Result {
	results := make([]Result, len(channels))
	var wg sync.WaitGroup
	wg.Add(len(channels))
	for i, ch := range channels {
		go func(i int, ch Channel) {
			defer wg.Done()
			results[i] = d.deliver(ctx, msg, ch)
		}(i, ch)
	}
	wg.Wait()
	return results
}

func (d *Dispatcher) deliver(ctx context.Context, msg alert.Message, ch Channel) Result {
	res := Result{Channel: ch.Name()}
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		res.Attempts = attempt
		err := ch.Send(ctx, msg)
		if err == nil {
			res.Delivered = true
			return res
		}
		res.Err = fmt.Errorf("Dispatcher.deliver: %w", err)

		var retryable *RetryableError
		if !errors.As(err, &retryable) {
			d.logger.Error("channel rejected alert, not retrying",
				zap.String("channel", ch.Name()), zap.String("key", msg.Key), zap.Error(err))
			return res
		}
		if attempt == d.cfg.MaxAttempts {
			break
		}

		delay := d.backoff(attempt)
		if retryable.RetryAfter > 0 {
			delay = retryable.RetryAfter
		}
		d.logger.Warn("channel send failed, retrying",
			zap.String("channel", ch.Name()), zap.String("key", msg.Key),
			zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			res.Err = fmt.Errorf("Dispatcher.deliver: %w", ctx.Err())
			return res
		}
	}
	d.logger.Error("channel delivery failed after all attempts",
		zap.String("channel", ch.Name()), zap.String("key", msg.Key),
		zap.Int("attempts", res.Attempts), zap.Error(res.Err))
	return res
}

// backoff returns base * 2^attempt plus jitter in [0, base/2), capped.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.cfg.BaseDelay << uint(attempt)
	delay += time.Duration(rand.Int63n(int64(d.cfg.BaseDelay)/2 + 1))
	if delay > d.cfg.MaxDelay {
		delay = d.cfg.MaxDelay
	}
	return delay
}
