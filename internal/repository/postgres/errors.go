package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sakif/careercoach/internal/apperror"
)

const codeUniqueViolation = "23505"

// constraintFields maps the named constraints from Migrate to columns.
var constraintFields = map[string]string{
	"users_email_key":                "email",
	"users_external_id_key":          "external_id",
	"industry_insights_industry_key": "industry",
}

// asUniqueViolation converts a 23505 error into apperror.UniqueViolation.
// Other errors are returned unchanged.
func asUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return err
	}
	return apperror.UniqueViolation(pgErr.TableName, constraintField(pgErr.TableName, pgErr.ConstraintName), err)
}

// constraintField resolves the column behind a unique constraint. Unknown
// names follow the default Postgres pattern <table>_<column>_key.
func constraintField(table, constraint string) string {
	if field, ok := constraintFields[constraint]; ok {
		return field
	}
	field := strings.TrimSuffix(constraint, "_key")
	if table != "" {
		field = strings.TrimPrefix(field, table+"_")
	}
	return field
}
