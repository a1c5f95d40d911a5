package settlement

import (
	"testing"
	"time"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cny(amount float64) valueobject.Money {
	return valueobject.NewMoneyCNYFromFloat(amount)
}

type engineFixture struct {
	tenantID       uuid.UUID
	counterpartyID uuid.UUID
	engine         *Engine
}

func newEngineFixture() engineFixture {
	return engineFixture{
		tenantID:       uuid.New(),
		counterpartyID: uuid.New(),
		engine:         NewEngine(),
	}
}

func (f engineFixture) line(t *testing.T, kind SourceKind, amount float64) *SourceLine {
	t.Helper()
	ref, err := NewSourceLineRef(kind, uuid.New())
	require.NoError(t, err)
	line, err := NewSourceLine(f.tenantID, ref, f.counterpartyID, "DOC-"+ref.LineID.String()[:8], time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), cny(amount))
	require.NoError(t, err)
	return line
}

func (f engineFixture) credit(t *testing.T, direction Direction, amount float64) *PrepaymentCredit {
	t.Helper()
	credit, err := NewPrepaymentCredit(f.tenantID, f.counterpartyID, direction, "SD-SRC", cny(amount), time.Now())
	require.NoError(t, err)
	return credit
}

func (f engineFixture) request(total float64) SettleRequest {
	return SettleRequest{
		TenantID:       f.tenantID,
		DocumentNumber: "SD-2026-03-0001",
		Direction:      DirectionReceivable,
		CounterpartyID: f.counterpartyID,
		SettlementDate: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		TotalAmount:    cny(total),
	}
}

func linesByRef(lines ...*SourceLine) map[SourceLineRef]*SourceLine {
	m := make(map[SourceLineRef]*SourceLine, len(lines))
	for _, l := range lines {
		m[l.Ref] = l
	}
	return m
}

func creditsByID(credits ...*PrepaymentCredit) map[uuid.UUID]*PrepaymentCredit {
	m := make(map[uuid.UUID]*PrepaymentCredit, len(credits))
	for _, c := range credits {
		m[c.ID] = c
	}
	return m
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, code, de.Code)
}

func TestEngine_Settle_CashAgainstSingleLine(t *testing.T) {
	f := newEngineFixture()
	line := f.line(t, SourceKindSalesOrderLine, 1000)

	req := f.request(600)
	req.Allocations = []AllocationInput{{Ref: line.Ref, Amount: cny(600)}}
	req.Instruments = []InstrumentInput{{Method: MethodBankTransfer, BankAccount: "6222-0001", Amount: cny(600)}}

	doc, err := f.engine.Settle(req, linesByRef(line), nil)
	require.NoError(t, err)

	assert.Equal(t, SettlementStatusPosted, doc.Status)
	assert.True(t, doc.InstrumentTotal.Equals(cny(600)))
	assert.True(t, doc.PrepaymentConsumed.IsZero())
	require.Len(t, doc.Allocations, 1)
	assert.True(t, doc.Allocations[0].CumulativeAfter.Equals(cny(600)))
	assert.False(t, doc.Allocations[0].FullySettled)

	assert.True(t, line.AllocatedAmount.Equals(cny(600)))
	assert.False(t, line.Settled)

	require.Len(t, doc.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeSettlementPosted, doc.GetDomainEvents()[0].EventType())
}

func TestEngine_Settle_SecondSettlementClosesLine(t *testing.T) {
	f := newEngineFixture()
	line := f.line(t, SourceKindSalesOrderLine, 1000)
	require.NoError(t, line.Allocate(cny(600)))

	req := f.request(400)
	req.Allocations = []AllocationInput{{Ref: line.Ref, Amount: cny(400)}}
	req.Instruments = []InstrumentInput{{Method: MethodCash, Amount: cny(400)}}

	doc, err := f.engine.Settle(req, linesByRef(line), nil)
	require.NoError(t, err)
	assert.True(t, doc.Allocations[0].FullySettled)
	assert.True(t, line.Settled)

	// third attempt against the closed line
	again := f.request(1)
	again.Allocations = []AllocationInput{{Ref: line.Ref, Amount: cny(1)}}
	again.Instruments = []InstrumentInput{{Method: MethodCash, Amount: cny(1)}}

	_, err = f.engine.Settle(again, linesByRef(line), nil)
	requireCode(t, err, "OVER_ALLOCATION")
	assert.True(t, line.AllocatedAmount.Equals(cny(1000)))
}

func TestEngine_Settle_PrepaymentOnlyFunding(t *testing.T) {
	f := newEngineFixture()
	line := f.line(t, SourceKindSalesOrderLine, 500)
	credit := f.credit(t, DirectionReceivable, 500)

	req := f.request(500)
	req.Allocations = []AllocationInput{{Ref: line.Ref, Amount: cny(500)}}
	req.Usages = []UsageInput{{CreditID: credit.ID, Amount: cny(500)}}

	doc, err := f.engine.Settle(req, linesByRef(line), creditsByID(credit))
	require.NoError(t, err)

	assert.True(t, doc.InstrumentTotal.IsZero())
	assert.True(t, doc.PrepaymentConsumed.Equals(cny(500)))
	assert.True(t, credit.AvailableBalance().IsZero())
	assert.True(t, line.Settled)

	// the drained credit refuses one more cent
	other := f.line(t, SourceKindSalesOrderLine, 100)
	next := f.request(1)
	next.Allocations = []AllocationInput{{Ref: other.Ref, Amount: cny(1)}}
	next.Usages = []UsageInput{{CreditID: credit.ID, Amount: cny(1)}}

	_, err = f.engine.Settle(next, linesByRef(other), creditsByID(credit))
	requireCode(t, err, "INSUFFICIENT_CREDIT")
}

func TestEngine_Settle_UnaccountedResidualRejected(t *testing.T) {
	f := newEngineFixture()
	line := f.line(t, SourceKindSalesOrderLine, 2000)

	req := f.request(1000)
	req.Allocations = []AllocationInput{{Ref: line.Ref, Amount: cny(950)}}
	req.Instruments = []InstrumentInput{{Method: MethodBankTransfer, Amount: cny(950)}}

	_, err := f.engine.Settle(req, linesByRef(line), nil)
	requireCode(t, err, "UNBALANCED_ALLOCATION")
	assert.True(t, line.AllocatedAmount.IsZero(), "rejected settlement must not move the line")
}

func TestEngine_Settle_AllowanceAndIssuedPrepayment(t *testing.T) {
	f := newEngineFixture()
	line := f.line(t, SourceKindSalesOrderLine, 400)

	req := f.request(500)
	req.Allocations = []AllocationInput{{Ref: line.Ref, Amount: cny(400)}}
	req.AllowanceAmount = cny(20)
	req.NewPrepaymentAmount = cny(80)
	req.Instruments = []InstrumentInput{{Method: MethodBankTransfer, Amount: cny(480)}}

	doc, err := f.engine.Settle(req, linesByRef(line), nil)
	require.NoError(t, err)

	assert.True(t, doc.AllowanceAmount.Equals(cny(20)))
	assert.True(t, doc.PrepaymentIssued.Equals(cny(80)))
	assert.True(t, doc.InstrumentTotal.Equals(cny(480)))
	assert.True(t, line.Settled)
}

func TestEngine_Settle_InstrumentMismatch(t *testing.T) {
	f := newEngineFixture()
	line := f.line(t, SourceKindSalesOrderLine, 600)
	credit := f.credit(t, DirectionReceivable, 200)

	req := f.request(600)
	req.Allocations = []AllocationInput{{Ref: line.Ref, Amount: cny(600)}}
	req.Usages = []UsageInput{{CreditID: credit.ID, Amount: cny(200)}}
	// instruments should be 400, caller sent 500
	req.Instruments = []InstrumentInput{{Method: MethodBankTransfer, Amount: cny(500)}}

	_, err := f.engine.Settle(req, linesByRef(line), creditsByID(credit))
	requireCode(t, err, "INSTRUMENT_MISMATCH")
	assert.True(t, line.AllocatedAmount.IsZero())
	assert.True(t, credit.UsedAmount.IsZero(), "rejected settlement must not consume credit")
}

func TestEngine_Settle_ResolutionAndOwnershipChecks(t *testing.T) {
	f := newEngineFixture()

	t.Run("unknown line", func(t *testing.T) {
		ref, _ := NewSourceLineRef(SourceKindSalesOrderLine, uuid.New())
		req := f.request(100)
		req.Allocations = []AllocationInput{{Ref: ref, Amount: cny(100)}}
		req.Instruments = []InstrumentInput{{Method: MethodCash, Amount: cny(100)}}

		_, err := f.engine.Settle(req, nil, nil)
		requireCode(t, err, "LINE_NOT_FOUND")
	})

	t.Run("line of another counterparty", func(t *testing.T) {
		stranger := newEngineFixture()
		line := stranger.line(t, SourceKindSalesOrderLine, 100)

		req := f.request(100)
		req.Allocations = []AllocationInput{{Ref: line.Ref, Amount: cny(100)}}
		req.Instruments = []InstrumentInput{{Method: MethodCash, Amount: cny(100)}}

		_, err := f.engine.Settle(req, linesByRef(line), nil)
		requireCode(t, err, "COUNTERPARTY_MISMATCH")
	})

	t.Run("payable line in receivable settlement", func(t *testing.T) {
		line := f.line(t, SourceKindPurchaseReceivingLine, 100)

		req := f.request(100)
		req.Allocations = []AllocationInput{{Ref: line.Ref, Amount: cny(100)}}
		req.Instruments = []InstrumentInput{{Method: MethodCash, Amount: cny(100)}}

		_, err := f.engine.Settle(req, linesByRef(line), nil)
		requireCode(t, err, "COUNTERPARTY_MISMATCH")
	})

	t.Run("unknown credit", func(t *testing.T) {
		line := f.line(t, SourceKindSalesOrderLine, 100)
		req := f.request(100)
		req.Allocations = []AllocationInput{{Ref: line.Ref, Amount: cny(100)}}
		req.Usages = []UsageInput{{CreditID: uuid.New(), Amount: cny(100)}}

		_, err := f.engine.Settle(req, linesByRef(line), nil)
		requireCode(t, err, "CREDIT_NOT_FOUND")
	})
}

func TestEngine_Settle_ShapeValidation(t *testing.T) {
	f := newEngineFixture()
	line := f.line(t, SourceKindSalesOrderLine, 100)

	t.Run("duplicate line reference", func(t *testing.T) {
		req := f.request(100)
		req.Allocations = []AllocationInput{
			{Ref: line.Ref, Amount: cny(50)},
			{Ref: line.Ref, Amount: cny(50)},
		}
		req.Instruments = []InstrumentInput{{Method: MethodCash, Amount: cny(100)}}

		_, err := f.engine.Settle(req, linesByRef(line), nil)
		requireCode(t, err, "INVALID_INPUT")
	})

	t.Run("non-positive total", func(t *testing.T) {
		req := f.request(0)
		req.Allocations = []AllocationInput{{Ref: line.Ref, Amount: cny(1)}}
		_, err := f.engine.Settle(req, linesByRef(line), nil)
		requireCode(t, err, "INVALID_AMOUNT")
	})

	t.Run("no destination at all", func(t *testing.T) {
		req := f.request(100)
		req.Instruments = []InstrumentInput{{Method: MethodCash, Amount: cny(100)}}
		_, err := f.engine.Settle(req, nil, nil)
		requireCode(t, err, "INVALID_INPUT")
	})

	t.Run("invalid payment method", func(t *testing.T) {
		req := f.request(100)
		req.Allocations = []AllocationInput{{Ref: line.Ref, Amount: cny(100)}}
		req.Instruments = []InstrumentInput{{Method: PaymentMethod("IOU"), Amount: cny(100)}}
		_, err := f.engine.Settle(req, linesByRef(line), nil)
		requireCode(t, err, "INVALID_INPUT")
	})
}

func usd(amount float64) valueobject.Money {
	m, err := valueobject.NewMoney(decimal.NewFromFloat(amount), valueobject.USD)
	if err != nil {
		panic(err)
	}
	return m
}

func TestEngine_Settle_RejectsMixedCurrencies(t *testing.T) {
	f := newEngineFixture()

	t.Run("allocation in a different currency", func(t *testing.T) {
		line := f.line(t, SourceKindSalesOrderLine, 1000)
		req := f.request(600)
		req.Allocations = []AllocationInput{{Ref: line.Ref, Amount: usd(600)}}
		req.Instruments = []InstrumentInput{{Method: MethodBankTransfer, Amount: cny(600)}}

		_, err := f.engine.Settle(req, linesByRef(line), nil)
		requireCode(t, err, "INVALID_INPUT")
		assert.True(t, line.AllocatedAmount.IsZero())
	})

	t.Run("instrument in a different currency", func(t *testing.T) {
		line := f.line(t, SourceKindSalesOrderLine, 1000)
		req := f.request(600)
		req.Allocations = []AllocationInput{{Ref: line.Ref, Amount: cny(600)}}
		req.Instruments = []InstrumentInput{{Method: MethodBankTransfer, Amount: usd(600)}}

		_, err := f.engine.Settle(req, linesByRef(line), nil)
		requireCode(t, err, "INVALID_INPUT")
		assert.True(t, line.AllocatedAmount.IsZero())
	})

	t.Run("usage in a different currency", func(t *testing.T) {
		line := f.line(t, SourceKindSalesOrderLine, 1000)
		credit := f.credit(t, DirectionReceivable, 300)
		req := f.request(600)
		req.Allocations = []AllocationInput{{Ref: line.Ref, Amount: cny(600)}}
		req.Usages = []UsageInput{{CreditID: credit.ID, Amount: usd(300)}}
		req.Instruments = []InstrumentInput{{Method: MethodBankTransfer, Amount: cny(300)}}

		_, err := f.engine.Settle(req, linesByRef(line), creditsByID(credit))
		requireCode(t, err, "INVALID_INPUT")
		assert.True(t, credit.UsedAmount.IsZero())
	})

	t.Run("allowance in a different currency", func(t *testing.T) {
		line := f.line(t, SourceKindSalesOrderLine, 1000)
		req := f.request(600)
		req.Allocations = []AllocationInput{{Ref: line.Ref, Amount: cny(550)}}
		req.AllowanceAmount = usd(50)
		req.Instruments = []InstrumentInput{{Method: MethodBankTransfer, Amount: cny(550)}}

		_, err := f.engine.Settle(req, linesByRef(line), nil)
		requireCode(t, err, "INVALID_INPUT")
	})
}

func TestEngine_Settle_PayableDirection(t *testing.T) {
	f := newEngineFixture()
	line := f.line(t, SourceKindPurchaseReceivingLine, 1000)
	credit := f.credit(t, DirectionPayable, 300)

	req := f.request(1000)
	req.Direction = DirectionPayable
	req.Allocations = []AllocationInput{{Ref: line.Ref, Amount: cny(1000)}}
	req.Usages = []UsageInput{{CreditID: credit.ID, Amount: cny(300)}}
	req.Instruments = []InstrumentInput{{Method: MethodBankTransfer, Amount: cny(700)}}

	doc, err := f.engine.Settle(req, linesByRef(line), creditsByID(credit))
	require.NoError(t, err)

	assert.Equal(t, DirectionPayable, doc.Direction)
	assert.True(t, line.Settled)
	assert.True(t, credit.AvailableBalance().IsZero())
}

func TestEngine_Settle_PureOverpaymentBanksCredit(t *testing.T) {
	f := newEngineFixture()

	req := f.request(500)
	req.NewPrepaymentAmount = cny(500)
	req.Instruments = []InstrumentInput{{Method: MethodBankTransfer, Amount: cny(500)}}

	doc, err := f.engine.Settle(req, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, doc.Allocations)
	assert.True(t, doc.PrepaymentIssued.Equals(cny(500)))
}
