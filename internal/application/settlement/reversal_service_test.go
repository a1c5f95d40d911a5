package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/erp/setoff/internal/domain/accounting"
	"github.com/erp/setoff/internal/domain/settlement"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReversalService_ReverseSettlement(t *testing.T) {
	ctx := context.Background()
	reversalDate := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	settle := func(t *testing.T, f *serviceFixture, line *settlement.SourceLine, amount float64) *SettleResult {
		t.Helper()
		req := f.settleRequest(amount)
		req.Allocations = []settlement.AllocationInput{{Ref: line.Ref, Amount: cny(amount)}}
		req.Instruments = []settlement.InstrumentInput{{Method: settlement.MethodBankTransfer, Amount: cny(amount)}}
		result, err := f.setoff.Settle(ctx, req)
		require.NoError(t, err)
		return result
	}

	t.Run("reopens the line and mirrors the entry", func(t *testing.T) {
		f := newServiceFixture(t)
		line := f.seedLine(t, settlement.SourceKindSalesOrderLine, 600)
		settled := settle(t, f, line, 600)
		require.True(t, f.store.lines[line.Ref].Settled)

		result, err := f.reversal.ReverseSettlement(ctx, f.tenantID, settled.Document.ID, reversalDate, "entered against wrong invoice")
		require.NoError(t, err)

		assert.Equal(t, settlement.SettlementStatusReversed, result.Document.Status)
		assert.Equal(t, accounting.EntryTypeReversal, result.ReversalEntry.EntryType)
		require.NotNil(t, result.ReversalEntry.ReversalOfID)
		assert.Equal(t, result.OriginalEntry.ID, *result.ReversalEntry.ReversalOfID)
		assert.True(t, result.OriginalEntry.IsReversed())

		// mirrored amounts: bank credited, receivable debited
		require.Len(t, result.ReversalEntry.Lines, 2)
		for _, l := range result.ReversalEntry.Lines {
			switch l.AccountCode {
			case "1001":
				assert.Equal(t, accounting.SideCredit, l.Side)
			case "1122":
				assert.Equal(t, accounting.SideDebit, l.Side)
			}
		}

		stored := f.store.lines[line.Ref]
		assert.True(t, stored.AllocatedAmount.IsZero())
		assert.False(t, stored.Settled)
	})

	t.Run("second reversal fails with ALREADY_REVERSED", func(t *testing.T) {
		f := newServiceFixture(t)
		line := f.seedLine(t, settlement.SourceKindSalesOrderLine, 600)
		settled := settle(t, f, line, 600)

		_, err := f.reversal.ReverseSettlement(ctx, f.tenantID, settled.Document.ID, reversalDate, "")
		require.NoError(t, err)

		_, err = f.reversal.ReverseSettlement(ctx, f.tenantID, settled.Document.ID, reversalDate, "")
		requireErrCode(t, err, "ALREADY_REVERSED")

		// the failed second attempt changed nothing
		assert.True(t, f.store.lines[line.Ref].AllocatedAmount.IsZero())
		assert.Len(t, f.store.entries, 2)
	})

	t.Run("restores consumed prepayment credit", func(t *testing.T) {
		f := newServiceFixture(t)
		line := f.seedLine(t, settlement.SourceKindSalesOrderLine, 500)
		credit := f.seedCredit(t, settlement.DirectionReceivable, 500)

		req := f.settleRequest(500)
		req.Allocations = []settlement.AllocationInput{{Ref: line.Ref, Amount: cny(500)}}
		req.Usages = []settlement.UsageInput{{CreditID: credit.ID, Amount: cny(500)}}
		settled, err := f.setoff.Settle(ctx, req)
		require.NoError(t, err)
		consumed := f.store.credits[credit.ID]
		require.True(t, consumed.AvailableBalance().IsZero())

		_, err = f.reversal.ReverseSettlement(ctx, f.tenantID, settled.Document.ID, reversalDate, "")
		require.NoError(t, err)

		restored := f.store.credits[credit.ID]
		assert.True(t, restored.AvailableBalance().Equals(cny(500)))
	})

	t.Run("revokes an untouched issued credit", func(t *testing.T) {
		f := newServiceFixture(t)
		line := f.seedLine(t, settlement.SourceKindSalesOrderLine, 400)

		req := f.settleRequest(500)
		req.Allocations = []settlement.AllocationInput{{Ref: line.Ref, Amount: cny(400)}}
		req.NewPrepaymentAmount = cny(100)
		req.Instruments = []settlement.InstrumentInput{{Method: settlement.MethodBankTransfer, Amount: cny(500)}}
		settled, err := f.setoff.Settle(ctx, req)
		require.NoError(t, err)
		require.NotNil(t, settled.IssuedCredit)

		_, err = f.reversal.ReverseSettlement(ctx, f.tenantID, settled.Document.ID, reversalDate, "")
		require.NoError(t, err)

		revoked := f.store.credits[settled.IssuedCredit.ID]
		assert.True(t, revoked.AvailableBalance().IsZero())
	})

	t.Run("blocks reversal when the issued credit was already spent", func(t *testing.T) {
		f := newServiceFixture(t)
		first := f.seedLine(t, settlement.SourceKindSalesOrderLine, 400)

		req := f.settleRequest(500)
		req.Allocations = []settlement.AllocationInput{{Ref: first.Ref, Amount: cny(400)}}
		req.NewPrepaymentAmount = cny(100)
		req.Instruments = []settlement.InstrumentInput{{Method: settlement.MethodBankTransfer, Amount: cny(500)}}
		settled, err := f.setoff.Settle(ctx, req)
		require.NoError(t, err)

		// spend the issued credit in a second settlement
		second := f.seedLine(t, settlement.SourceKindSalesOrderLine, 100)
		spend := f.settleRequest(100)
		spend.Allocations = []settlement.AllocationInput{{Ref: second.Ref, Amount: cny(100)}}
		spend.Usages = []settlement.UsageInput{{CreditID: settled.IssuedCredit.ID, Amount: cny(100)}}
		_, err = f.setoff.Settle(ctx, spend)
		require.NoError(t, err)

		_, err = f.reversal.ReverseSettlement(ctx, f.tenantID, settled.Document.ID, reversalDate, "")
		requireErrCode(t, err, "INVALID_STATE")

		// the aborted reversal restored everything it had touched
		assert.True(t, f.store.lines[first.Ref].Settled)
		stored, err := (&fakeDocRepo{store: f.store}).FindByID(ctx, f.tenantID, settled.Document.ID)
		require.NoError(t, err)
		assert.Equal(t, settlement.SettlementStatusPosted, stored.Status)
	})
}

func TestReversalService_ReverseJournalEntry(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	accrued, err := f.accrual.Record(ctx, AccrualRequest{
		TenantID:       f.tenantID,
		Kind:           settlement.SourceKindPurchaseReceivingLine,
		LineID:         uuid.New(),
		CounterpartyID: f.counterpartyID,
		DocumentNumber: "GR-2026-001",
		BusinessDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Amount:         cny(2500),
	})
	require.NoError(t, err)

	result, err := f.reversal.ReverseJournalEntry(ctx, f.tenantID, accrued.JournalEntry.ID, time.Time{}, "receiving cancelled")
	require.NoError(t, err)
	assert.Equal(t, accounting.EntryTypeReversal, result.ReversalEntry.EntryType)
	assert.True(t, result.OriginalEntry.IsReversed())

	_, err = f.reversal.ReverseJournalEntry(ctx, f.tenantID, accrued.JournalEntry.ID, time.Time{}, "")
	requireErrCode(t, err, "ALREADY_REVERSED")
}
