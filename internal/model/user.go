// Package model defines the data structures used throughout the application.
package model

import (
	"strings"
	"time"
)

// User is the application-owned profile of an identity-provider principal.
//
// ExternalID is the provider's subject id. It is nil for rows created before
// the account was linked (for example, imported from an older auth system)
// and is UNIQUE once set, so one subject maps to exactly one row.
//
// Industry is nil until the user completes the profile form; its presence,
// not IsOnboarded, is what decides whether the user has onboarded.
type User struct {
	ID          string    `json:"id"`
	ExternalID  *string   `json:"externalId,omitempty"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Industry    *string   `json:"industry"`
	Experience  int       `json:"experience"`
	Bio         string    `json:"bio"`
	Skills      []string  `json:"skills"`
	IsOnboarded bool      `json:"isOnboarded"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// HasIndustry reports whether the industry field is set to a non-empty value.
func (u *User) HasIndustry() bool {
	return u != nil && u.Industry != nil && strings.TrimSpace(*u.Industry) != ""
}

// IsLinkedTo reports whether the row is linked to the given subject id.
func (u *User) IsLinkedTo(subjectID string) bool {
	return u != nil && u.ExternalID != nil && *u.ExternalID == subjectID
}

// ProfileUpdate is the payload of the profile form.
type ProfileUpdate struct {
	Industry   string   `json:"industry"`
	Experience int      `json:"experience"`
	Bio        string   `json:"bio"`
	Skills     []string `json:"skills"`
}
