package apperror

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("user", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("industry", "industry is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("user", "email already linked"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("sign in required"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "UniqueViolation wraps ErrUniqueViolation",
			err:       UniqueViolation("users", "email", nil),
			target:    ErrUniqueViolation,
			wantMatch: true,
		},
		{
			name:      "TransactionFailed wraps ErrTransaction",
			err:       TransactionFailed("failed to update profile", errors.New("boom")),
			target:    ErrTransaction,
			wantMatch: true,
		},
		{
			name:      "TransactionFailed exposes its cause",
			err:       TransactionFailed("failed to update profile", context.DeadlineExceeded),
			target:    context.DeadlineExceeded,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("user", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "wrapped Conflict still matches",
			err:       fmt.Errorf("service/onboarding: %w", Conflict("user", "x")),
			target:    ErrConflict,
			wantMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("user", "abc123"),
			wantMessage: "user not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("industry", "industry is required"),
			wantMessage: "industry is required",
		},
		{
			name:        "UniqueViolation names table and field",
			err:         UniqueViolation("users", "email", nil),
			wantMessage: "unique constraint violated on users.email",
		},
		{
			name:        "TransactionFailed appends the cause",
			err:         TransactionFailed("failed to update profile", errors.New("generator down")),
			wantMessage: "failed to update profile: generator down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("user", "abc123")
	unwrapped := err.Unwrap()

	if len(unwrapped) != 1 || unwrapped[0] != ErrNotFound {
		t.Errorf("Unwrap() = %v, want [%v]", unwrapped, ErrNotFound)
	}

	cause := errors.New("disk full")
	withCause := TransactionFailed("failed", cause)
	if got := withCause.Unwrap(); len(got) != 2 || got[1] != cause {
		t.Errorf("Unwrap() = %v, want kind and cause", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	emailErr := fmt.Errorf("sqlite: inserting user: %w", UniqueViolation("users", "email", nil))

	if !IsUniqueViolation(emailErr, "email") {
		t.Error("IsUniqueViolation(email) = false, want true")
	}
	if !IsUniqueViolation(emailErr, "") {
		t.Error("IsUniqueViolation(any) = false, want true")
	}
	if IsUniqueViolation(emailErr, "external_id") {
		t.Error("IsUniqueViolation(external_id) = true, want false")
	}
	if IsUniqueViolation(Conflict("user", "x"), "") {
		t.Error("IsUniqueViolation(Conflict) = true, want false")
	}
	if IsUniqueViolation(errors.New("UNIQUE constraint failed: users.email"), "email") {
		t.Error("IsUniqueViolation must not sniff plain error strings")
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("experience", "experience must be between 0 and 50")

	if err.Field != "experience" {
		t.Errorf("Field = %q, want %q", err.Field, "experience")
	}
}
