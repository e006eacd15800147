package model

import (
	"fmt"
	"time"
)

// User is a staff account that signs in to the service. Key holders are
// contacts, not users.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Staff roles, weakest last.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
)

var roleRank = map[string]int{
	RoleUser:    1,
	RoleManager: 2,
	RoleAdmin:   3,
}

// ValidRole reports whether role is one of the staff roles.
func ValidRole(role string) bool {
	_, ok := roleRank[role]
	return ok
}

// RoleAtLeast reports whether role grants at least what minimum grants.
// Unknown roles never satisfy a check.
func RoleAtLeast(role, minimum string) bool {
	have, ok := roleRank[role]
	if !ok {
		return false
	}
	want, ok := roleRank[minimum]
	return ok && have >= want
}

// MinPasswordLength is the shortest password accepted for a staff account.
const MinPasswordLength = 8

// ValidatePassword rejects passwords shorter than MinPasswordLength.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
