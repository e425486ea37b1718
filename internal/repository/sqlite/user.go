package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/careercoach/internal/apperror"
	"github.com/sakif/careercoach/internal/model"
)

const userColumns = `id, external_id, email, name, industry, experience, bio, skills,
	is_onboarded, created_at, updated_at`

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// scanUser reads one users row in userColumns order.
func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u          model.User
		externalID sql.NullString
		industry   sql.NullString
		skills     string
	)
	err := row.Scan(
		&u.ID,
		&externalID,
		&u.Email,
		&u.Name,
		&industry,
		&u.Experience,
		&u.Bio,
		&skills,
		&u.IsOnboarded,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if externalID.Valid {
		u.ExternalID = &externalID.String
	}
	if industry.Valid {
		u.Industry = &industry.String
	}
	if u.Skills, err = decodeStrings(skills); err != nil {
		return nil, err
	}
	return &u, nil
}

func (q *queries) getUser(ctx context.Context, column, value string) (*model.User, error) {
	u, err := scanUser(q.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", column, err)
	}
	return u, nil
}

// GetUserByID retrieves a user by internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (q *queries) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return q.getUser(ctx, "id", id)
}

// GetUserByExternalID retrieves the user linked to an identity-provider subject.
func (q *queries) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	return q.getUser(ctx, "external_id", externalID)
}

func (q *queries) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return q.getUser(ctx, "email", email)
}

// CreateUser inserts a new user, filling in ID and timestamps.
// A duplicate email or external_id yields apperror.UniqueViolation.
func (q *queries) CreateUser(ctx context.Context, user *model.User) error {
	skills, err := encodeStrings(user.Skills)
	if err != nil {
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}

	now := time.Now().UTC()
	id := xid.New().String()

	_, err = q.q.ExecContext(ctx,
		`INSERT INTO users (id, external_id, email, name, industry, experience, bio, skills,
			is_onboarded, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		nullString(user.ExternalID),
		user.Email,
		user.Name,
		nullString(user.Industry),
		user.Experience,
		user.Bio,
		skills,
		user.IsOnboarded,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, asUniqueViolation(err))
	}

	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Skills == nil {
		user.Skills = []string{}
	}
	return nil
}

// LinkExternalID sets external_id only while it is still NULL, so two
// concurrent links of the same row cannot overwrite each other. The row is
// read back either way; the caller decides what a foreign link means.
func (q *queries) LinkExternalID(ctx context.Context, userID, externalID string) (*model.User, error) {
	_, err := q.q.ExecContext(ctx,
		`UPDATE users SET external_id = ?, updated_at = ?
		 WHERE id = ? AND external_id IS NULL`,
		externalID, time.Now().UTC(), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: linking user %s: %w", userID, asUniqueViolation(err))
	}
	return q.GetUserByID(ctx, userID)
}

// UpdateProfile writes the profile form fields and sets is_onboarded.
func (q *queries) UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (*model.User, error) {
	skills, err := encodeStrings(update.Skills)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating profile: %w", err)
	}

	result, err := q.q.ExecContext(ctx,
		`UPDATE users
		 SET industry = ?, experience = ?, bio = ?, skills = ?, is_onboarded = 1, updated_at = ?
		 WHERE id = ?`,
		update.Industry,
		update.Experience,
		update.Bio,
		skills,
		time.Now().UTC(),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating profile of user %s: %w", userID, asUniqueViolation(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking update result: %w", err)
	}
	if rows == 0 {
		return nil, apperror.NotFound("user", userID)
	}

	return q.GetUserByID(ctx, userID)
}
