package settlement

import (
	"testing"
	"time"

	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fifoLine(t *testing.T, tenantID, counterpartyID uuid.UUID, docNumber string, date time.Time, original, allocated float64) *SourceLine {
	t.Helper()
	ref, err := NewSourceLineRef(SourceKindSalesOrderLine, uuid.New())
	require.NoError(t, err)
	line, err := NewSourceLine(tenantID, ref, counterpartyID, docNumber, date, valueobject.NewMoneyCNYFromFloat(original))
	require.NoError(t, err)
	if allocated > 0 {
		require.NoError(t, line.Allocate(valueobject.NewMoneyCNYFromFloat(allocated)))
	}
	return line
}

func TestBuildFIFOAllocations(t *testing.T) {
	tenantID := uuid.New()
	counterpartyID := uuid.New()
	mar1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mar5 := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	mar9 := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	t.Run("spreads oldest first across open lines", func(t *testing.T) {
		oldest := fifoLine(t, tenantID, counterpartyID, "SO-001", mar1, 300, 0)
		middle := fifoLine(t, tenantID, counterpartyID, "SO-002", mar5, 400, 100)
		newest := fifoLine(t, tenantID, counterpartyID, "SO-003", mar9, 500, 0)

		// deliberately unsorted input
		allocs, remainder, err := BuildFIFOAllocations([]*SourceLine{newest, oldest, middle}, cny(700))
		require.NoError(t, err)
		require.Len(t, allocs, 3)

		assert.Equal(t, oldest.Ref, allocs[0].Ref)
		assert.True(t, allocs[0].Amount.Equals(cny(300)))
		assert.Equal(t, middle.Ref, allocs[1].Ref)
		assert.True(t, allocs[1].Amount.Equals(cny(300)))
		assert.Equal(t, newest.Ref, allocs[2].Ref)
		assert.True(t, allocs[2].Amount.Equals(cny(100)))
		assert.True(t, remainder.IsZero())
	})

	t.Run("breaks date ties by document number", func(t *testing.T) {
		b := fifoLine(t, tenantID, counterpartyID, "SO-B", mar1, 100, 0)
		a := fifoLine(t, tenantID, counterpartyID, "SO-A", mar1, 100, 0)

		allocs, _, err := BuildFIFOAllocations([]*SourceLine{b, a}, cny(150))
		require.NoError(t, err)
		require.Len(t, allocs, 2)
		assert.Equal(t, a.Ref, allocs[0].Ref)
	})

	t.Run("skips fully settled lines and reports remainder", func(t *testing.T) {
		closed := fifoLine(t, tenantID, counterpartyID, "SO-001", mar1, 200, 200)
		open := fifoLine(t, tenantID, counterpartyID, "SO-002", mar5, 100, 0)

		allocs, remainder, err := BuildFIFOAllocations([]*SourceLine{closed, open}, cny(300))
		require.NoError(t, err)
		require.Len(t, allocs, 1)
		assert.Equal(t, open.Ref, allocs[0].Ref)
		assert.True(t, remainder.Equals(cny(200)))
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, _, err := BuildFIFOAllocations(nil, valueobject.ZeroCNY())
		assert.Error(t, err)
	})
}
