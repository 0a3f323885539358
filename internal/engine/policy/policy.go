package policy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"watchtower/internal/engine/alert"
	"watchtower/internal/engine/check"
	"watchtower/internal/engine/state"
)

type Config struct {
	// Cooldown is the minimum time between repeated alerts for the same
	// ongoing failure. A spec-level cooldown overrides it per key.
	Cooldown time.Duration
	// TwoStrike suppresses the very first failure of an incident and alerts
	// from the second consecutive failure onward.
	TwoStrike bool
	// NotifyRecovery emits a resolved alert on the false→true edge.
	NotifyRecovery bool
	// CriticalAfter is the consecutive-failure count at which severity
	// escalates from warning to critical.
	CriticalAfter int
}

func DefaultConfig() Config {
	return Config{
		Cooldown:       5 * time.Minute,
		NotifyRecovery: true,
		CriticalAfter:  3,
	}
}

// Policy decides whether a check result should produce an alert and updates
// the persisted per-key state accordingly. Evaluations for a single key are
// sequential (the runner never overlaps ticks for one key), so the
// read-modify-write here is effectively single-writer per key.
type Policy struct {
	store  state.Store
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

func NewPolicy(store state.Store, cfg Config, logger *zap.Logger) *Policy {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}
	if cfg.CriticalAfter <= 0 {
		cfg.CriticalAfter = DefaultConfig().CriticalAfter
	}
	return &Policy{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate runs one result through the suppression algorithm. It returns the
// alert to dispatch, or nil when the result is suppressed. State persistence
// failure is degraded-mode, not fatal: the evaluation result stands and the
// error is only logged, at the cost of possible duplicate alerts later.
func (p *Policy) Evaluate(ctx context.Context, spec check.Spec, res check.Result) *alert.Message {
	st := p.store.Get(ctx, spec.Key)
	now := p.now()

	var msg *alert.Message
	if res.OK {
		if !st.LastOK && p.cfg.NotifyRecovery {
			msg = &alert.Message{
				Key:           spec.Key,
				Severity:      alert.SeverityResolved,
				Text:          alert.Compose(res, alert.SeverityResolved),
				CorrelationID: st.CorrelationID,
				Timestamp:     now,
			}
		}
		st.LastOK = true
		st.ConsecutiveFailures = 0
		st.CorrelationID = ""
	} else {
		isNewFailure := st.LastOK
		st.ConsecutiveFailures++
		if isNewFailure {
			st.CorrelationID = uuid.NewString()
		}

		cooldown := p.cfg.Cooldown
		if spec.Cooldown > 0 {
			cooldown = spec.Cooldown
		}
		cooldownExpired := st.LastAlertAt == nil || now.Sub(*st.LastAlertAt) >= cooldown

		shouldAlert := isNewFailure || cooldownExpired
		if p.cfg.TwoStrike && st.ConsecutiveFailures == 1 {
			shouldAlert = false
		}

		st.LastOK = false
		if shouldAlert {
			severity := alert.SeverityWarning
			if st.ConsecutiveFailures >= p.cfg.CriticalAfter {
				severity = alert.SeverityCritical
			}
			st.LastAlertAt = &now
			msg = &alert.Message{
				Key:           spec.Key,
				Severity:      severity,
				Text:          alert.Compose(res, severity),
				CorrelationID: st.CorrelationID,
				Timestamp:     now,
			}
		}
	}

	if err := p.store.Put(ctx, spec.Key, st); err != nil {
		p.logger.Error("failed to persist check state, deduplication degraded",
			zap.String("key", spec.Key), zap.Error(err))
	}
	return msg
}
