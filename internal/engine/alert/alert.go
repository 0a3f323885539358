package alert

import (
	"fmt"
	"time"

	"watchtower/internal/engine/check"
)

const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
	SeverityResolved = "resolved"
)

// Message is one alert to be delivered across configured channels.
// CorrelationID is stable for the lifetime of one incident (first failure
// edge through recovery), so channels that support threading or server-side
// deduplication can group repeated alerts.
type Message struct {
	Key           string    `json:"key"`
	Severity      string    `json:"severity"`
	Text          string    `json:"text"`
	CorrelationID string    `json:"correlation_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// Compose builds the alert text from a check result, bounded for chat
// channel compatibility.
func Compose(res check.Result, severity string) string {
	var text string
	switch severity {
	case SeverityResolved:
		text = fmt.Sprintf("[RESOLVED] %s recovered at %s: %s",
			res.Key, res.Timestamp.Format(time.RFC3339), res.Info)
	default:
		text = fmt.Sprintf("[%s] %s failing at %s: %s",
			severity, res.Key, res.Timestamp.Format(time.RFC3339), res.Info)
	}
	return check.ClampInfo(text)
}
