package runner

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"watchtower/internal/engine/alert"
	"watchtower/internal/engine/check"
	"watchtower/internal/engine/dispatch"
)

// Evaluator decides whether a result becomes an alert. Satisfied by
// *policy.Policy.
type Evaluator interface {
	Evaluate(ctx context.Context, spec check.Spec, res check.Result) *alert.Message
}

// Dispatcher delivers an alert to the configured channels. Satisfied by
// *dispatch.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg alert.Message, channels []dispatch.Channel) []dispatch.Result
}

// boundCheck is a spec paired with its resolved check implementation. Kinds
// are resolved once at construction so a bad config fails startup instead of
// the first tick.
type boundCheck struct {
	spec  check.Spec
	check check.Check
}

// Runner drives one goroutine per check on its own interval. First fires are
// jittered so a restart does not probe every target at once. Evaluations for
// a single key never overlap: the loop finishes one evaluation (including
// dispatch) before the next tick is taken, and ticks arriving meanwhile are
// dropped by the ticker.
type Runner struct {
	checks     []boundCheck
	policy     Evaluator
	dispatcher Dispatcher
	channels   []dispatch.Channel
	logger     *zap.Logger

	wg sync.WaitGroup
}

func NewRunner(registry *check.Registry, specs []check.Spec, policy Evaluator,
	dispatcher Dispatcher, channels []dispatch.Channel, logger *zap.Logger) (*Runner, error) {
	checks := make([]boundCheck, 0, len(specs))
	for _, spec := range specs {
		c, err := registry.Lookup(spec.Kind)
		if err != nil {
			return nil, err
		}
		checks = append(checks, boundCheck{spec: spec, check: c})
	}
	return &Runner{
		checks:     checks,
		policy:     policy,
		dispatcher: dispatcher,
		channels:   channels,
		logger:     logger,
	}, nil
}

// Start launches the per-check loops. It returns immediately; cancel ctx to
// stop and Wait to join.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(len(r.checks))
	for _, bc := range r.checks {
		go r.loop(ctx, bc)
	}
	r.logger.Info("runner started", zap.Int("checks", len(r.checks)))
}

// Wait blocks until every check loop has exited or the grace period passes,
// whichever comes first. Remaining in-flight work is abandoned after grace.
func (r *Runner) Wait(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Info("runner stopped")
	case <-time.After(grace):
		r.logger.Warn("shutdown grace period exceeded, abandoning in-flight checks",
			zap.Duration("grace", grace))
	}
}

func (r *Runner) loop(ctx context.Context, bc boundCheck) {
	defer r.wg.Done()

	initial := time.Duration(rand.Int63n(int64(bc.spec.Interval)))
	select {
	case <-time.After(initial):
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(bc.spec.Interval)
	defer ticker.Stop()
	for {
		r.runOnce(ctx, bc)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, bc boundCheck) {
	res := check.Run(ctx, bc.check, bc.spec)
	if ctx.Err() != nil {
		// shutting down; a cancelled probe is not a real failure
		return
	}
	r.logger.Debug("check evaluated",
		zap.String("key", bc.spec.Key), zap.Bool("ok", res.OK),
		zap.String("info", res.Info), zap.Duration("duration", res.Duration))

	msg := r.policy.Evaluate(ctx, bc.spec, res)
	if msg == nil {
		return
	}
	r.logger.Info("alert triggered",
		zap.String("key", msg.Key), zap.String("severity", msg.Severity),
		zap.String("correlation_id", msg.CorrelationID))
	results := r.dispatcher.Dispatch(ctx, *msg, r.channels)
	for _, dr := range results {
		if !dr.Delivered {
			r.logger.Error("alert delivery failed",
				zap.String("key", msg.Key), zap.String("channel", dr.Channel),
				zap.Int("attempts", dr.Attempts), zap.Error(dr.Err))
		}
	}
}
