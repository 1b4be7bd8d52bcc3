package constants

// InvoiceStatus is the lifecycle state of an invoice header.
type InvoiceStatus string

// Stable values (store these exact strings in DB).
const (
	InvoiceStatusDraft             InvoiceStatus = "draft"              // created on extraction
	InvoiceStatusPendingValidation InvoiceStatus = "pending_validation" // first save
	InvoiceStatusSubmitted         InvoiceStatus = "submitted"          // terminal
)

// ValidationStatus tracks reconciliation runs independently of submission.
type ValidationStatus string

const (
	ValidationStatusPending    ValidationStatus = "pending"
	ValidationStatusInProgress ValidationStatus = "in_progress"
	ValidationStatusCompleted  ValidationStatus = "completed"
)

// DisputeStatus is the optional dispute marker on a line item.
type DisputeStatus string

const (
	DisputeNone     DisputeStatus = "none"
	DisputeDisputed DisputeStatus = "disputed"
	DisputeResolved DisputeStatus = "resolved"
)

// MatchType is the bucket a scored line falls into. The web client groups rows by
// exactly these three labels.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchFuzzy    MatchType = "fuzzy"
	MatchMismatch MatchType = "mismatch"
)
