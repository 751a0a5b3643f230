package ports

import "context"

// Severity classifies an alert per the documented policy.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarn     Severity = "WARN"
	SeverityCritical Severity = "CRITICAL"
)

// AlertTransport is the capability set. Delivery is best-effort:
// failures are logged but never abort a session.
type AlertTransport interface {
	Send(ctx context.Context, severity Severity, title, body string) error
}
