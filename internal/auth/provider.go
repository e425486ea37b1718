package auth

import (
	"context"
	"errors"
	"strings"
)

// ErrProfileUnavailable is returned by a Directory that has no detail for
// the subject, typically because the session outlived the cached profile.
var ErrProfileUnavailable = errors.New("auth: provider profile unavailable")

// ProviderUser is what the identity provider knows about a principal.
type ProviderUser struct {
	SubjectID string `json:"subjectId"`

	// EmailAddresses lists the principal's addresses, primary first.
	EmailAddresses []string `json:"emailAddresses"`

	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// PrimaryEmail returns the first address, or "" when there is none.
func (u *ProviderUser) PrimaryEmail() string {
	if u == nil {
		return ""
	}
	for _, e := range u.EmailAddresses {
		if e = strings.TrimSpace(e); e != "" {
			return e
		}
	}
	return ""
}

// DisplayName joins first and last name. With neither set it falls back to
// the local part of the primary e-mail.
func (u *ProviderUser) DisplayName() string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	local, _, _ := strings.Cut(u.PrimaryEmail(), "@")
	return local
}

// Directory looks up provider detail for the current subject.
type Directory interface {
	Lookup(ctx context.Context, subjectID string) (*ProviderUser, error)
}
