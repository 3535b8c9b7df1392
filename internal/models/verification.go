package models

// IssueKind classifies an integrity finding produced by chain verification.
type IssueKind string

const (
	IssueHashMismatch IssueKind = "hash_mismatch"
	IssueChainBreak   IssueKind = "chain_break"
	IssueSequenceGap  IssueKind = "sequence_gap"
)

// IntegrityIssue is a single verification finding. Issues are reported,
// never auto-repaired.
type IntegrityIssue struct {
	RecordID string    `json:"record_id"`
	Kind     IssueKind `json:"kind"`
	Detail   string    `json:"detail"`
}

// VerificationReport summarizes a full walk of one subject's audit chain.
type VerificationReport struct {
	SubjectID       string           `json:"subject_id"`
	Valid           bool             `json:"valid"`
	TotalEntries    int              `json:"total_entries"`
	VerifiedEntries int              `json:"verified_entries"`
	Issues          []IntegrityIssue `json:"issues"`
}
