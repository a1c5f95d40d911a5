package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/setoff/internal/domain/settlement"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSourceLine(t *testing.T) *settlement.SourceLine {
	t.Helper()
	ref, err := settlement.NewSourceLineRef(settlement.SourceKindSalesOrderLine, uuid.New())
	require.NoError(t, err)
	line, err := settlement.NewSourceLine(
		uuid.New(), ref, uuid.New(), "SO-20260301-0001",
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		valueobject.NewMoneyCNYFromFloat(1000))
	require.NoError(t, err)
	return line
}

func TestGormSourceLineRepository_SaveWithLock(t *testing.T) {
	t.Run("writes settled and allocated_amount even when cleared", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormSourceLineRepository(db)

		line := newSourceLine(t)
		require.NoError(t, line.Allocate(valueobject.NewMoneyCNYFromFloat(1000)))
		require.True(t, line.Settled)
		require.NoError(t, line.Release(valueobject.NewMoneyCNYFromFloat(1000)))
		require.False(t, line.Settled)
		require.True(t, line.AllocatedAmount.IsZero())

		// The reopened line carries zero values in its mutable columns;
		// the UPDATE must still include them or the row stays settled.
		mock.ExpectExec(`UPDATE "source_lines" SET .*"allocated_amount"=\$\d+,"settled"=\$\d+ WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.SaveWithLock(context.Background(), line, line.Version)

		assert.NoError(t, err)
		assert.Equal(t, 2, line.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrConcurrencyConflict when the version moved on", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormSourceLineRepository(db)

		line := newSourceLine(t)

		mock.ExpectExec(`UPDATE "source_lines" SET .*`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.SaveWithLock(context.Background(), line, line.Version)

		assert.Equal(t, shared.ErrConcurrencyConflict, err)
		assert.Equal(t, 1, line.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
