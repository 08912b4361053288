package model

// FindingKind names the anomaly a Watchdog finding reports.
type FindingKind string

const (
	FindingDuplicate         FindingKind = "duplicate"
	FindingPossibleDuplicate FindingKind = "possible_duplicate"
	FindingLargeOutflow      FindingKind = "large_outflow"
)

// Severity ranks findings for review.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Finding is a read-only observation about a bank line.
type Finding struct {
	ID            string      `json:"id"`
	Kind          FindingKind `json:"kind"`
	Severity      Severity    `json:"severity"`
	LineID        string      `json:"line_id"`
	RelatedLineID string      `json:"related_line_id,omitempty"`
	AmountCents   int64       `json:"amount_cents"`
	Message       string      `json:"message"`
}
