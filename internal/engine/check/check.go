package check

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	KindPing   = "ping"
	KindTCP    = "tcp"
	KindHTTP   = "http"
	KindMetric = "metric"
	KindLog    = "log"
)

// MaxInfoLen bounds the diagnostic string so alert text stays compatible with
// chat channels.
const MaxInfoLen = 500

// extra time a probe gets past its own timeout before the runner abandons it
const runOverhead = 100 * time.Millisecond

// Spec identifies one monitored target. Key must be unique within a running
// engine instance.
type Spec struct {
	Key      string        `validate:"required"`
	Kind     string        `validate:"required"`
	Target   string        `validate:"required"`
	Timeout  time.Duration `validate:"gt=0"`
	Interval time.Duration `validate:"gt=0"`
	// Cooldown overrides the policy-level cooldown when positive.
	Cooldown time.Duration
	Params   map[string]string
}

// Result is the outcome of a single evaluation. Expected failures (network
// errors, timeouts) are reported as OK=false, never as an error or panic.
type Result struct {
	Key       string
	OK        bool
	Info      string
	Timestamp time.Time
	Duration  time.Duration
}

type Check interface {
	Run(ctx context.Context, spec Spec) Result
}

// Run evaluates a spec against its check with the spec timeout enforced. The
// probe runs in its own goroutine so an implementation that ignores context
// cancellation can be abandoned (leaking its goroutine) instead of hanging
// the caller. A panicking probe is converted into a failing result.
func Run(ctx context.Context, c Check, spec Spec) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Result{
					Key:  spec.Key,
					OK:   false,
					Info: ClampInfo(fmt.Sprintf("check raised an internal error: %v", r)),
				}
			}
		}()
		done <- c.Run(ctx, spec)
	}()

	finish := func(res Result) Result {
		res.Key = spec.Key
		res.Info = ClampInfo(res.Info)
		res.Timestamp = time.Now().UTC()
		res.Duration = time.Since(start)
		return res
	}

	select {
	case res := <-done:
		return finish(res)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return finish(Result{OK: false, Info: "check cancelled"})
		}
		// Deadline hit: give a probe that honors its context the overhead
		// window to report its own result before it is abandoned.
		select {
		case res := <-done:
			return finish(res)
		case <-time.After(runOverhead):
			return finish(Result{OK: false, Info: fmt.Sprintf("timeout after %s", spec.Timeout)})
		}
	}
}

func ClampInfo(info string) string {
	if len(info) > MaxInfoLen {
		return info[:MaxInfoLen]
	}
	return info
}
