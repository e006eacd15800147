package model

import "time"

// Loan represents a set of keys handed out to a holder.
//
// A loan record exists before the physical handover: PickedUpAt stays nil
// until the holder has actually received the keys.
type Loan struct {
	ID                        int64      `json:"id"`
	HolderCode                string     `json:"holder_code"`
	SecondaryHolderCode       string     `json:"secondary_holder_code,omitempty"`
	Kind                      string     `json:"kind"`
	Notes                     string     `json:"notes,omitempty"`
	CreatedAt                 time.Time  `json:"created_at"`
	PickedUpAt                *time.Time `json:"picked_up_at,omitempty"`
	ReturnedAt                *time.Time `json:"returned_at,omitempty"`
	AvailableToNextTenantFrom *time.Time `json:"available_to_next_tenant_from,omitempty"`
	CreatedBy                 *int64     `json:"created_by,omitempty"`

	// Joined field (not always populated).
	KeyIDs []int64 `json:"key_ids,omitempty"`
}

// Loan kinds.
const (
	LoanKindTenant      = "tenant"
	LoanKindMaintenance = "maintenance"
)
