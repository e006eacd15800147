// Package lending derives loan state, pickup availability and grouped views
// from snapshots of keys and loans. Everything here is pure: no I/O, no
// shared state, and the same input always yields the same output.
package lending

import (
	"time"

	"github.com/erazemk/nycklar/internal/model"
)

// LoanStatus is the lifecycle state of a single loan.
type LoanStatus string

// Loan statuses.
const (
	StatusNone        LoanStatus = "NONE"
	StatusNotPickedUp LoanStatus = "NOT_PICKED_UP"
	StatusActive      LoanStatus = "ACTIVE"
	StatusReturned    LoanStatus = "RETURNED"
)

// Classify derives the status of a loan from its timestamps.
// A set ReturnedAt always wins, whatever PickedUpAt holds.
func Classify(loan *model.Loan) LoanStatus {
	switch {
	case loan == nil:
		return StatusNone
	case loan.ReturnedAt != nil:
		return StatusReturned
	case loan.PickedUpAt != nil:
		return StatusActive
	default:
		return StatusNotPickedUp
	}
}

// ActiveLoan returns the most recently created loan that has not been
// returned, or nil. Ties on CreatedAt keep the first one seen.
func ActiveLoan(loans []model.Loan) *model.Loan {
	var active *model.Loan
	for i := range loans {
		l := loans[i]
		if l.ReturnedAt != nil {
			continue
		}
		if active == nil || l.CreatedAt.After(active.CreatedAt) {
			active = &l
		}
	}
	return active
}

// PreviousLoan returns the most recently returned loan, or nil.
func PreviousLoan(loans []model.Loan) *model.Loan {
	var prev *model.Loan
	for i := range loans {
		l := loans[i]
		if l.ReturnedAt == nil {
			continue
		}
		if prev == nil || l.ReturnedAt.After(*prev.ReturnedAt) {
			prev = &l
		}
	}
	return prev
}

// KeyStatus holds the badge tags shown next to a key.
type KeyStatus struct {
	Loaned       bool         `json:"loaned"`
	LoanStatus   LoanStatus   `json:"loan_status"`
	Availability Availability `json:"availability"`
}

// Describe computes the status tags of a key at the given instant.
// LoanStatus reflects the active loan, or the previous one when the key
// is not out on loan.
func Describe(key model.Key, now time.Time) KeyStatus {
	active := ActiveLoan(key.Loans)
	previous := PreviousLoan(key.Loans)

	shown := active
	if shown == nil {
		shown = previous
	}

	return KeyStatus{
		Loaned:       active != nil,
		LoanStatus:   Classify(shown),
		Availability: ResolveAvailability(active, previous, now),
	}
}
