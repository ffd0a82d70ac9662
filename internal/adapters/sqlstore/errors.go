package sqlstore

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

// isUniqueConstraintError reports a unique violation on sqlite, postgres or mysql.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "unique constraint") || // sqlite, postgres
		strings.Contains(msg, "duplicate key") || // postgres
		strings.Contains(msg, "duplicate entry") // mysql
}

func isForeignKeyError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "foreign key")
}

// translate maps driver errors on entity to domain errors.
func translate(err error, entity, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return domain.NewNotFoundError(entity, id)
	case isUniqueConstraintError(err):
		return domain.NewConflictErrorWithDetails(entity, "already exists", err.Error())
	case isForeignKeyError(err):
		return domain.NewNotFoundError("referenced row for "+entity, id)
	default:
		return err
	}
}
