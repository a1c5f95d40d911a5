package handler

import (
	"testing"
	"time"

	"github.com/erp/setoff/internal/domain/settlement"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettleHTTPRequest_ToServiceRequest(t *testing.T) {
	tenantID := uuid.New()
	counterpartyID := uuid.New()
	lineID := uuid.New()
	creditID := uuid.New()

	req := SettleHTTPRequest{
		Direction:      "RECEIVABLE",
		CounterpartyID: counterpartyID.String(),
		SettlementDate: "2026-03-15",
		TotalAmount:    1000.50,
		Allocations: []AllocationRequest{
			{SourceKind: "SALES_ORDER_LINE", LineID: lineID.String(), Amount: 800},
		},
		Usages: []UsageRequest{
			{CreditID: creditID.String(), Amount: 200.50},
		},
		Instruments: []InstrumentRequest{
			{Method: "CHEQUE", ChequeNumber: "CHQ-001", ChequeDueDate: "2026-04-15", Amount: 800},
		},
		Remark: "march collection",
	}

	got, err := req.ToServiceRequest(tenantID)

	require.NoError(t, err)
	assert.Equal(t, tenantID, got.TenantID)
	assert.Equal(t, settlement.DirectionReceivable, got.Direction)
	assert.Equal(t, counterpartyID, got.CounterpartyID)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), got.SettlementDate)
	assert.True(t, got.TotalAmount.Equals(valueobject.NewMoneyCNYFromFloat(1000.50)))

	require.Len(t, got.Allocations, 1)
	assert.Equal(t, settlement.SourceKindSalesOrderLine, got.Allocations[0].Ref.Kind)
	assert.Equal(t, lineID, got.Allocations[0].Ref.LineID)

	require.Len(t, got.Usages, 1)
	assert.Equal(t, creditID, got.Usages[0].CreditID)

	require.Len(t, got.Instruments, 1)
	assert.Equal(t, settlement.MethodCheque, got.Instruments[0].Method)
	require.NotNil(t, got.Instruments[0].ChequeDueDate)
	assert.Equal(t, time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC), *got.Instruments[0].ChequeDueDate)
}

func TestSettleHTTPRequest_ToServiceRequest_Invalid(t *testing.T) {
	tenantID := uuid.New()

	t.Run("malformed settlement date", func(t *testing.T) {
		req := SettleHTTPRequest{
			Direction:      "RECEIVABLE",
			CounterpartyID: uuid.New().String(),
			SettlementDate: "15/03/2026",
			TotalAmount:    100,
		}

		_, err := req.ToServiceRequest(tenantID)
		assert.Error(t, err)
	})

	t.Run("malformed allocation line id", func(t *testing.T) {
		req := SettleHTTPRequest{
			Direction:      "RECEIVABLE",
			CounterpartyID: uuid.New().String(),
			SettlementDate: "2026-03-15",
			TotalAmount:    100,
			Allocations: []AllocationRequest{
				{SourceKind: "SALES_ORDER_LINE", LineID: "nope", Amount: 100},
			},
		}

		_, err := req.ToServiceRequest(tenantID)
		assert.Error(t, err)
	})
}

func TestToSettlementDocumentResponse(t *testing.T) {
	tenantID := uuid.New()
	counterpartyID := uuid.New()
	lineID := uuid.New()
	settlementDate := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	ref, err := settlement.NewSourceLineRef(settlement.SourceKindSalesOrderLine, lineID)
	require.NoError(t, err)

	line, err := settlement.NewSourceLine(tenantID, ref, counterpartyID, "SO-001", settlementDate.AddDate(0, -1, 0), valueobject.NewMoneyCNYFromFloat(1000))
	require.NoError(t, err)

	engine := settlement.NewEngine()
	doc, err := engine.Settle(settlement.SettleRequest{
		TenantID:       tenantID,
		DocumentNumber: "RS-20260315-00001",
		Direction:      settlement.DirectionReceivable,
		CounterpartyID: counterpartyID,
		SettlementDate: settlementDate,
		TotalAmount:    valueobject.NewMoneyCNYFromFloat(1000),
		Allocations: []settlement.AllocationInput{
			{Ref: ref, Amount: valueobject.NewMoneyCNYFromFloat(1000)},
		},
		Instruments: []settlement.InstrumentInput{
			{Method: settlement.MethodBankTransfer, BankAccount: "6222-0001", Amount: valueobject.NewMoneyCNYFromFloat(1000)},
		},
	}, map[settlement.SourceLineRef]*settlement.SourceLine{ref: line}, nil)
	require.NoError(t, err)

	resp := ToSettlementDocumentResponse(doc)

	assert.Equal(t, "RS-20260315-00001", resp.DocumentNumber)
	assert.Equal(t, "RECEIVABLE", resp.Direction)
	assert.Equal(t, "2026-03-15", resp.SettlementDate)
	assert.Equal(t, 1000.0, resp.TotalAmount)
	assert.Equal(t, "POSTED", resp.Status)

	require.Len(t, resp.Allocations, 1)
	assert.Equal(t, "SALES_ORDER_LINE", resp.Allocations[0].SourceKind)
	assert.Equal(t, lineID, resp.Allocations[0].LineID)
	assert.True(t, resp.Allocations[0].FullySettled)

	require.Len(t, resp.Instruments, 1)
	assert.Equal(t, "BANK_TRANSFER", resp.Instruments[0].Method)
}
