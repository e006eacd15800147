package model

import "time"

// Contact represents a tenant or contractor that keys can be loaned to.
// Loans reference contacts by Code.
type Contact struct {
	ID        int64      `json:"id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Contact types.
const (
	ContactTypePerson  = "person"
	ContactTypeCompany = "company"
)
