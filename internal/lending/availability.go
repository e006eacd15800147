package lending

import (
	"time"

	"github.com/erazemk/nycklar/internal/model"
)

// AvailabilityKind tells whether a key may be handed to its next holder.
type AvailabilityKind string

// Availability kinds.
const (
	AvailabilityPickedUp      AvailabilityKind = "PICKED_UP"
	AvailabilityAvailable     AvailabilityKind = "AVAILABLE"
	AvailabilityBlockedUntil  AvailabilityKind = "BLOCKED_UNTIL"
	AvailabilityAvailableFrom AvailabilityKind = "AVAILABLE_FROM"
)

// Availability is the pickup availability of a key. Date is set for
// BLOCKED_UNTIL and AVAILABLE_FROM.
type Availability struct {
	Kind AvailabilityKind `json:"kind"`
	Date *time.Time       `json:"date,omitempty"`
}

// ResolveAvailability decides whether a key can be handed out now.
//
// A picked-up active loan settles it. Otherwise the restriction recorded when
// the previous loan was returned applies; a created but not yet picked-up
// loan never blocks by itself.
func ResolveAvailability(active, previous *model.Loan, now time.Time) Availability {
	if active != nil && active.PickedUpAt != nil {
		return Availability{Kind: AvailabilityPickedUp}
	}
	if previous == nil || previous.AvailableToNextTenantFrom == nil {
		return Availability{Kind: AvailabilityAvailable}
	}

	from := *previous.AvailableToNextTenantFrom
	if from.After(now) {
		return Availability{Kind: AvailabilityBlockedUntil, Date: &from}
	}
	return Availability{Kind: AvailabilityAvailableFrom, Date: &from}
}
