package domain

import "time"

// DiagnosticStatus indicates whether a single configuration check passed.
type DiagnosticStatus string

const (
	DiagnosticStatusPass DiagnosticStatus = "pass"
	DiagnosticStatusFail DiagnosticStatus = "fail"
	// DiagnosticStatusWarn marks a problem that only matters for some jobs.
	DiagnosticStatusWarn DiagnosticStatus = "warn"
)

// DiagnosticItem is one check result with an optional hint for operators.
type DiagnosticItem struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Status  DiagnosticStatus `json:"status"`
	Message string           `json:"message"`
	Hint    string           `json:"hint,omitempty"`
}

// DiagnosticReport aggregates the checks run before a service starts.
type DiagnosticReport struct {
	Service     Service          `json:"service,omitempty"`
	GeneratedAt time.Time        `json:"generatedAt"`
	HasFailures bool             `json:"hasFailures"`
	Items       []DiagnosticItem `json:"items"`
}

// Failures returns the failed items in report order.
func (r DiagnosticReport) Failures() []DiagnosticItem {
	var out []DiagnosticItem
	for _, item := range r.Items {
		if item.Status == DiagnosticStatusFail {
			out = append(out, item)
		}
	}
	return out
}
