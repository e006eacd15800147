package model

import "time"

// Bundle is a named, ordered set of keys that belong together.
// Membership is independent of loan state.
type Bundle struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	KeyIDs      []int64   `json:"key_ids"`
}
