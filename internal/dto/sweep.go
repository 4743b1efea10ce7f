package dto

// SweepKind names a missed-event sweep.
type SweepKind string

const (
	SweepMissedSignIn  SweepKind = "missed_sign_in"
	SweepMissedSignOut SweepKind = "missed_sign_out"
)

// SweepResult reports what a sweep did. Sweeps never write to the ledger.
type SweepResult struct {
	Kind             SweepKind `json:"kind"`
	Date             string    `json:"date"`
	Evaluated        int       `json:"evaluated"`
	Notified         int       `json:"notified"`
	Failed           int       `json:"failed"`
	SkippedNoContact int       `json:"skipped_no_contact"`
	Skipped          bool      `json:"skipped"`
	Reason           string    `json:"reason,omitempty"`
}
