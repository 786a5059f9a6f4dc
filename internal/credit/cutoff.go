// Package credit decides when a cancellation earns a make-up credit and keeps
// the per-member credit ledger.
package credit

import "time"

// Cutoff is the instant grace before the session starts.
func Cutoff(start time.Time, grace time.Duration) time.Time {
	return start.Add(-grace)
}

// QualifiesForCredit reports whether a cancellation at cancelAt earns a
// credit. Cancellations strictly after the cutoff qualify.
func QualifiesForCredit(cancelAt, start time.Time, grace time.Duration) bool {
	return cancelAt.After(Cutoff(start, grace))
}
