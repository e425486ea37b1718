package sqlite

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sakif/careercoach/internal/apperror"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const uniqueFailedPrefix = "UNIQUE constraint failed: "

// asUniqueViolation converts a SQLite UNIQUE failure into an
// apperror.UniqueViolation naming the column. Other errors are returned
// unchanged.
//
// SQLite reports the column only in the message text
// ("UNIQUE constraint failed: users.email"), so the extended result code is
// checked first and the message is parsed only to recover the column name.
func asUniqueViolation(err error) error {
	var sqlErr *msqlite.Error
	if !errors.As(err, &sqlErr) {
		return err
	}
	code := sqlErr.Code()
	unique := code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqlErr.Error(), uniqueFailedPrefix))
	if !unique {
		return err
	}

	table, field := uniqueColumn(sqlErr.Error())
	return apperror.UniqueViolation(table, field, err)
}

// uniqueColumn extracts "table", "column" from a UNIQUE failure message.
// For composite constraints only the first column is reported.
func uniqueColumn(msg string) (table, column string) {
	i := strings.Index(msg, uniqueFailedPrefix)
	if i < 0 {
		return "", ""
	}
	rest := msg[i+len(uniqueFailedPrefix):]
	if end := strings.IndexAny(rest, " ,()"); end >= 0 {
		rest = rest[:end]
	}
	table, column, ok := strings.Cut(rest, ".")
	if !ok {
		return "", rest
	}
	return table, column
}

// encodeStrings stores a string slice in a TEXT column as a JSON array.
func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encoding string list: %w", err)
	}
	return string(b), nil
}

func decodeStrings(raw string) ([]string, error) {
	values := []string{}
	if raw == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("decoding string list: %w", err)
	}
	return values, nil
}
