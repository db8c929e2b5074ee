package model

// ErrorKind classifies why a query could not be answered normally.
// These are outcomes, not crashes: every kind maps to a fixed user-facing
// narrative and never carries credential material or upstream bodies.
type ErrorKind string

const (
	// ErrSubjectNotExtracted means the interpreter found no candidate
	// name. Surfaced before any network activity.
	ErrSubjectNotExtracted ErrorKind = "subject_not_extracted"

	// ErrUserNotFound means identity resolution failed on both sources.
	ErrUserNotFound ErrorKind = "user_not_found"

	// ErrNoActivity means both sources resolved but the combined record
	// count is zero. The (empty) enriched model is still returned so the
	// caller can render zero-state UI.
	ErrNoActivity ErrorKind = "no_activity"

	// ErrUpstreamFault means a must-propagate fetch failed after
	// exhausting retries. The only kind a caller should treat as
	// unexpected.
	ErrUpstreamFault ErrorKind = "upstream_fault"
)
