// Package repository declares the persistence contracts used by the service
// layer. Adapters live in the sqlite and postgres sub-packages.
package repository

import (
	"context"
	"time"

	"github.com/sakif/careercoach/internal/model"
)

// UserRepository reads and writes user rows.
//
// Lookups return apperror.ErrNotFound when no row matches. CreateUser and
// LinkExternalID return an apperror.UniqueViolation (Field "email" or
// "external_id") when a unique constraint rejects the write.
type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error

	// LinkExternalID sets external_id on a row whose external_id is still
	// NULL and returns the row as stored afterwards. If the row was linked
	// in the meantime it is returned unchanged; callers compare ExternalID.
	LinkExternalID(ctx context.Context, userID, externalID string) (*model.User, error)

	// UpdateProfile writes the profile fields and marks the row onboarded.
	UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (*model.User, error)
}

// InsightRepository reads and writes industry insight rows.
type InsightRepository interface {
	GetInsightByIndustry(ctx context.Context, industry string) (*model.IndustryInsight, error)

	// CreateInsight inserts a new row. When another row with the same
	// industry already exists it returns apperror.UniqueViolation with
	// Field "industry" and leaves the surrounding transaction usable.
	CreateInsight(ctx context.Context, insight *model.IndustryInsight) error
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	UserRepository
	InsightRepository
}

// TxOptions configures Store.WithTx.
type TxOptions struct {
	// Timeout bounds the whole transaction, including any work fn does
	// with the context it receives. Zero means no extra deadline.
	Timeout time.Duration
}

// Store is a Tx that can also open transactions and manage its lifecycle.
type Store interface {
	Tx

	// WithTx runs fn inside one transaction. It commits when fn returns nil
	// and the deadline has not expired; otherwise everything fn wrote is
	// rolled back and the error is returned.
	WithTx(ctx context.Context, opts TxOptions, fn func(ctx context.Context, tx Tx) error) error

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
