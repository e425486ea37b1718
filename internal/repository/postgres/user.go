package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"

	"github.com/sakif/careercoach/internal/apperror"
	"github.com/sakif/careercoach/internal/model"
)

const userColumns = `id, external_id, email, name, industry, experience, bio, skills,
	is_onboarded, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.ExternalID,
		&u.Email,
		&u.Name,
		&u.Industry,
		&u.Experience,
		&u.Bio,
		&u.Skills,
		&u.IsOnboarded,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if u.Skills == nil {
		u.Skills = []string{}
	}
	return &u, nil
}

func (q *queries) getUser(ctx context.Context, column, value string) (*model.User, error) {
	u, err := scanUser(q.q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("postgres: get user by %s: %w", column, err)
	}
	return u, nil
}

func (q *queries) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return q.getUser(ctx, "id", id)
}

func (q *queries) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	return q.getUser(ctx, "external_id", externalID)
}

func (q *queries) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return q.getUser(ctx, "email", email)
}

func (q *queries) CreateUser(ctx context.Context, user *model.User) error {
	skills := user.Skills
	if skills == nil {
		skills = []string{}
	}
	now := time.Now().UTC()
	id := xid.New().String()

	_, err := q.q.Exec(ctx,
		`INSERT INTO users (id, external_id, email, name, industry, experience, bio, skills,
			is_onboarded, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		id, user.ExternalID, user.Email, user.Name, user.Industry,
		user.Experience, user.Bio, skills, user.IsOnboarded, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert user (email=%s): %w", user.Email, asUniqueViolation(err))
	}

	user.ID = id
	user.Skills = skills
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// LinkExternalID only fills a NULL external_id; see the sqlite adapter.
func (q *queries) LinkExternalID(ctx context.Context, userID, externalID string) (*model.User, error) {
	_, err := q.q.Exec(ctx,
		`UPDATE users SET external_id = $1, updated_at = now()
		 WHERE id = $2 AND external_id IS NULL`,
		externalID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: link user %s: %w", userID, asUniqueViolation(err))
	}
	return q.GetUserByID(ctx, userID)
}

func (q *queries) UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (*model.User, error) {
	skills := update.Skills
	if skills == nil {
		skills = []string{}
	}

	u, err := scanUser(q.q.QueryRow(ctx,
		`UPDATE users
		 SET industry = $1, experience = $2, bio = $3, skills = $4,
		     is_onboarded = TRUE, updated_at = now()
		 WHERE id = $5
		 RETURNING `+userColumns,
		update.Industry, update.Experience, update.Bio, skills, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", userID)
		}
		return nil, fmt.Errorf("postgres: update profile of user %s: %w", userID, asUniqueViolation(err))
	}
	return u, nil
}
