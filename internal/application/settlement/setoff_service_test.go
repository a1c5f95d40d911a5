package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/erp/setoff/internal/domain/accounting"
	"github.com/erp/setoff/internal/domain/settlement"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func cny(amount float64) valueobject.Money {
	return valueobject.NewMoneyCNYFromFloat(amount)
}

type serviceFixture struct {
	tenantID       uuid.UUID
	counterpartyID uuid.UUID
	store          *fakeStore
	uow            *fakeUnitOfWork
	events         *capturedEvents
	setoff         *SetoffService
	reversal       *ReversalService
	prepayment     *PrepaymentService
	accrual        *AccrualService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	tenantID := uuid.New()

	chart := buildTestChart(t, tenantID)
	tree, err := accounting.BuildAccountTree(chart)
	require.NoError(t, err)
	posting, err := accounting.NewPostingService(testAccountMapping(), tree)
	require.NoError(t, err)

	store := newFakeStore()
	uow := &fakeUnitOfWork{store: store}
	events := &capturedEvents{}
	provider := &fakePostingProvider{service: posting}
	logger := zap.NewNop()

	return &serviceFixture{
		tenantID:       tenantID,
		counterpartyID: uuid.New(),
		store:          store,
		uow:            uow,
		events:         events,
		setoff:         NewSetoffService(uow, provider, events, logger),
		reversal:       NewReversalService(uow, events, logger),
		prepayment:     NewPrepaymentService(uow, provider, events, logger),
		accrual:        NewAccrualService(uow, provider, events, logger),
	}
}

func buildTestChart(t *testing.T, tenantID uuid.UUID) []*accounting.AccountItem {
	t.Helper()
	specs := []struct {
		code, name string
		kind       accounting.AccountKind
		direction  accounting.AccountDirection
		parent     string
	}{
		{"1", "Assets", accounting.AccountKindSummary, accounting.DirectionDebit, ""},
		{"2", "Liabilities", accounting.AccountKindSummary, accounting.DirectionCredit, ""},
		{"1001", "Cash and Bank", accounting.AccountKindDetail, accounting.DirectionDebit, "1"},
		{"1122", "Accounts Receivable", accounting.AccountKindDetail, accounting.DirectionDebit, "1"},
		{"1123", "Supplier Advances", accounting.AccountKindDetail, accounting.DirectionDebit, "1"},
		{"1405", "Inventory", accounting.AccountKindDetail, accounting.DirectionDebit, "1"},
		{"2202", "Accounts Payable", accounting.AccountKindDetail, accounting.DirectionCredit, "2"},
		{"2203", "Customer Prepayments", accounting.AccountKindDetail, accounting.DirectionCredit, "2"},
		{"6001", "Sales Revenue", accounting.AccountKindDetail, accounting.DirectionCredit, ""},
		{"6401", "Sales Allowances", accounting.AccountKindDetail, accounting.DirectionDebit, ""},
		{"6402", "Purchase Allowances", accounting.AccountKindDetail, accounting.DirectionCredit, ""},
	}
	accounts := make([]*accounting.AccountItem, 0, len(specs))
	for _, s := range specs {
		a, err := accounting.NewAccountItem(tenantID, s.code, s.name, s.kind, s.direction, s.parent)
		require.NoError(t, err)
		accounts = append(accounts, a)
	}
	return accounts
}

func testAccountMapping() accounting.AccountMapping {
	return accounting.AccountMapping{
		accounting.RoleCashBank:           "1001",
		accounting.RoleAccountsReceivable: "1122",
		accounting.RoleAccountsPayable:    "2202",
		accounting.RoleCustomerPrepayment: "2203",
		accounting.RoleSupplierAdvance:    "1123",
		accounting.RoleSalesAllowance:     "6401",
		accounting.RolePurchaseAllowance:  "6402",
		accounting.RoleInventory:          "1405",
		accounting.RoleSalesRevenue:       "6001",
	}
}

func (f *serviceFixture) seedLine(t *testing.T, kind settlement.SourceKind, amount float64) *settlement.SourceLine {
	t.Helper()
	ref, err := settlement.NewSourceLineRef(kind, uuid.New())
	require.NoError(t, err)
	line, err := settlement.NewSourceLine(f.tenantID, ref, f.counterpartyID, "DOC-"+ref.LineID.String()[:8],
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), cny(amount))
	require.NoError(t, err)
	f.store.putLine(line)
	return line
}

func (f *serviceFixture) seedCredit(t *testing.T, direction settlement.Direction, amount float64) *settlement.PrepaymentCredit {
	t.Helper()
	credit, err := settlement.NewPrepaymentCredit(f.tenantID, f.counterpartyID, direction, "", cny(amount), time.Now())
	require.NoError(t, err)
	credit.ClearDomainEvents()
	f.store.putCredit(credit)
	return credit
}

func (f *serviceFixture) settleRequest(total float64) settlement.SettleRequest {
	return settlement.SettleRequest{
		TenantID:       f.tenantID,
		Direction:      settlement.DirectionReceivable,
		CounterpartyID: f.counterpartyID,
		SettlementDate: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		TotalAmount:    cny(total),
	}
}

func requireErrCode(t *testing.T, err error, code string) {
	t.Helper()
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, code, de.Code)
}

func TestSetoffService_Settle(t *testing.T) {
	ctx := context.Background()

	t.Run("commits document, balances and journal entry together", func(t *testing.T) {
		f := newServiceFixture(t)
		line := f.seedLine(t, settlement.SourceKindSalesOrderLine, 1000)

		req := f.settleRequest(600)
		req.Allocations = []settlement.AllocationInput{{Ref: line.Ref, Amount: cny(600)}}
		req.Instruments = []settlement.InstrumentInput{{Method: settlement.MethodBankTransfer, BankAccount: "6222-0001", Amount: cny(600)}}

		result, err := f.setoff.Settle(ctx, req)
		require.NoError(t, err)

		assert.NotEmpty(t, result.Document.DocumentNumber)
		require.NotNil(t, result.Document.JournalEntryID)
		assert.Equal(t, accounting.EntryTypeReceivableSettlement, result.JournalEntry.EntryType)
		assert.True(t, result.JournalEntry.TotalDebit().Equals(cny(600)))

		stored, ok := f.store.lines[line.Ref]
		require.True(t, ok)
		assert.True(t, stored.AllocatedAmount.Equals(cny(600)))
		assert.Len(t, f.store.docs, 1)
		assert.Len(t, f.store.entries, 1)
		assert.NotEmpty(t, f.events.events)
	})

	t.Run("consumes prepayment credit inside the same transaction", func(t *testing.T) {
		f := newServiceFixture(t)
		line := f.seedLine(t, settlement.SourceKindSalesOrderLine, 500)
		credit := f.seedCredit(t, settlement.DirectionReceivable, 500)

		req := f.settleRequest(500)
		req.Allocations = []settlement.AllocationInput{{Ref: line.Ref, Amount: cny(500)}}
		req.Usages = []settlement.UsageInput{{CreditID: credit.ID, Amount: cny(500)}}

		result, err := f.setoff.Settle(ctx, req)
		require.NoError(t, err)
		assert.True(t, result.Document.PrepaymentConsumed.Equals(cny(500)))

		storedCredit := f.store.credits[credit.ID]
		assert.True(t, storedCredit.AvailableBalance().IsZero())
		storedLine := f.store.lines[line.Ref]
		assert.True(t, storedLine.Settled)
	})

	t.Run("banks overpayment as a fresh credit", func(t *testing.T) {
		f := newServiceFixture(t)
		line := f.seedLine(t, settlement.SourceKindSalesOrderLine, 400)

		req := f.settleRequest(500)
		req.Allocations = []settlement.AllocationInput{{Ref: line.Ref, Amount: cny(400)}}
		req.NewPrepaymentAmount = cny(100)
		req.Instruments = []settlement.InstrumentInput{{Method: settlement.MethodBankTransfer, Amount: cny(500)}}

		result, err := f.setoff.Settle(ctx, req)
		require.NoError(t, err)
		require.NotNil(t, result.IssuedCredit)
		assert.Equal(t, result.Document.DocumentNumber, result.IssuedCredit.SourceDocumentCode)

		stored := f.store.credits[result.IssuedCredit.ID]
		assert.True(t, stored.AvailableBalance().Equals(cny(100)))
	})

	t.Run("validation failure leaves no trace", func(t *testing.T) {
		f := newServiceFixture(t)
		line := f.seedLine(t, settlement.SourceKindSalesOrderLine, 1000)

		req := f.settleRequest(1000)
		req.Allocations = []settlement.AllocationInput{{Ref: line.Ref, Amount: cny(950)}}
		req.Instruments = []settlement.InstrumentInput{{Method: settlement.MethodBankTransfer, Amount: cny(950)}}

		_, err := f.setoff.Settle(ctx, req)
		requireErrCode(t, err, "UNBALANCED_ALLOCATION")

		stored := f.store.lines[line.Ref]
		assert.True(t, stored.AllocatedAmount.IsZero())
		assert.Empty(t, f.store.docs)
		assert.Empty(t, f.store.entries)
		assert.Empty(t, f.events.events)
	})

	t.Run("posting failure rolls the settlement back", func(t *testing.T) {
		f := newServiceFixture(t)
		line := f.seedLine(t, settlement.SourceKindSalesOrderLine, 1000)

		broken := NewSetoffService(f.uow, &fakePostingProvider{err: shared.NewDomainError("ACCOUNT_NOT_FOUND", "mapping broken")}, f.events, zap.NewNop())

		req := f.settleRequest(600)
		req.Allocations = []settlement.AllocationInput{{Ref: line.Ref, Amount: cny(600)}}
		req.Instruments = []settlement.InstrumentInput{{Method: settlement.MethodCash, Amount: cny(600)}}

		_, err := broken.Settle(ctx, req)
		require.Error(t, err)

		stored := f.store.lines[line.Ref]
		assert.True(t, stored.AllocatedAmount.IsZero(), "allocation must roll back with the failed posting")
		assert.Empty(t, f.store.docs)
		assert.Empty(t, f.store.entries)
	})

	t.Run("unknown line is rejected inside the transaction", func(t *testing.T) {
		f := newServiceFixture(t)
		ref, err := settlement.NewSourceLineRef(settlement.SourceKindSalesOrderLine, uuid.New())
		require.NoError(t, err)

		req := f.settleRequest(100)
		req.Allocations = []settlement.AllocationInput{{Ref: ref, Amount: cny(100)}}
		req.Instruments = []settlement.InstrumentInput{{Method: settlement.MethodCash, Amount: cny(100)}}

		_, err = f.setoff.Settle(ctx, req)
		requireErrCode(t, err, "LINE_NOT_FOUND")
	})
}

func TestSetoffService_TrialBalanceStaysLevel(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	line := f.seedLine(t, settlement.SourceKindSalesOrderLine, 1000)
	credit := f.seedCredit(t, settlement.DirectionReceivable, 300)

	req := f.settleRequest(1000)
	req.Allocations = []settlement.AllocationInput{{Ref: line.Ref, Amount: cny(1000)}}
	req.Usages = []settlement.UsageInput{{CreditID: credit.ID, Amount: cny(300)}}
	req.Instruments = []settlement.InstrumentInput{{Method: settlement.MethodBankTransfer, Amount: cny(700)}}

	_, err := f.setoff.Settle(ctx, req)
	require.NoError(t, err)

	repo := &fakeEntryRepo{store: f.store}
	rows, err := repo.TrialBalance(ctx, f.tenantID, "2026-03")
	require.NoError(t, err)

	debits := cny(0)
	credits := cny(0)
	for _, row := range rows {
		debits = debits.MustAdd(row.TotalDebit)
		credits = credits.MustAdd(row.TotalCredit)
	}
	assert.True(t, debits.Equals(credits))
}
