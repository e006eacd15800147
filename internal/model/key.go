package model

import "time"

// Key represents a physical key or key card that can be handed out on loan.
type Key struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Kind             string     `json:"kind"`
	Type             string     `json:"type"`
	SequenceNumber   *int       `json:"sequence_number,omitempty"`
	RentalObjectCode string     `json:"rental_object_code,omitempty"`
	Disposed         bool       `json:"disposed"`
	LatestEvent      string     `json:"latest_event,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`

	// Joined field (not always populated). Order is not significant.
	Loans []Loan `json:"loans,omitempty"`
}

// Key kinds.
const (
	KeyKindKey  = "key"
	KeyKindCard = "card"
)

// Key type codes.
const (
	KeyTypeApartment = "LGH"
	KeyTypeMailbox   = "PB"
	KeyTypeProperty  = "FS"
	KeyTypeMaster    = "HN"
	KeyTypeOther     = "OVR"
)

// Latest event markers. Only used for display.
const (
	KeyEventFlexRequested = "flex_requested"
	KeyEventOrdered       = "ordered"
)
