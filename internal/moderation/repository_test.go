package moderation

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapConstraintTranslatesUniqueViolation(t *testing.T) {
	// Two submissions racing past the existence check land on the partial
	// unique index; the loser must surface the domain conflict.
	err := fmt.Errorf("moderation: scan ticket: %w", &pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, mapConstraint(err), ErrPendingExists)
}

func TestMapConstraintPassesOtherErrorsThrough(t *testing.T) {
	other := fmt.Errorf("connection reset")
	assert.Equal(t, other, mapConstraint(other))

	fk := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"})
	assert.Equal(t, fk, mapConstraint(fk))
}
