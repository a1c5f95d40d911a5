package handler

import (
	"time"

	"github.com/erp/setoff/internal/domain/settlement"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// dateLayout is the wire format for business dates
const dateLayout = "2006-01-02"

// AllocationRequest is one requested slice against a source line
type AllocationRequest struct {
	SourceKind string  `json:"source_kind" binding:"required,oneof=SALES_ORDER_LINE SALES_RETURN_LINE PURCHASE_RECEIVING_LINE PURCHASE_RETURN_LINE"`
	LineID     string  `json:"line_id" binding:"required,uuid"`
	Amount     float64 `json:"amount" binding:"required,gt=0"`
}

// UsageRequest is one requested prepayment credit consumption
type UsageRequest struct {
	CreditID string  `json:"credit_id" binding:"required,uuid"`
	Amount   float64 `json:"amount" binding:"required,gt=0"`
}

// InstrumentRequest is one payment instrument backing the settlement
type InstrumentRequest struct {
	Method        string  `json:"method" binding:"required,oneof=CASH BANK_TRANSFER CHEQUE ONLINE"`
	BankAccount   string  `json:"bank_account"`
	ChequeNumber  string  `json:"cheque_number"`
	ChequeDueDate string  `json:"cheque_due_date"`
	Amount        float64 `json:"amount" binding:"required,gt=0"`
}

// SettleHTTPRequest is the request body for posting a settlement
type SettleHTTPRequest struct {
	DocumentNumber      string              `json:"document_number"`
	Direction           string              `json:"direction" binding:"required,oneof=RECEIVABLE PAYABLE"`
	CounterpartyID      string              `json:"counterparty_id" binding:"required,uuid"`
	SettlementDate      string              `json:"settlement_date" binding:"required"`
	TotalAmount         float64             `json:"total_amount" binding:"required,gt=0"`
	Allocations         []AllocationRequest `json:"allocations" binding:"omitempty,dive"`
	Usages              []UsageRequest      `json:"usages" binding:"omitempty,dive"`
	AllowanceAmount     float64             `json:"allowance_amount" binding:"gte=0"`
	NewPrepaymentAmount float64             `json:"new_prepayment_amount" binding:"gte=0"`
	Instruments         []InstrumentRequest `json:"instruments" binding:"omitempty,dive"`
	Remark              string              `json:"remark" binding:"max=500"`
}

// ToServiceRequest converts the HTTP payload into the application request
func (r *SettleHTTPRequest) ToServiceRequest(tenantID uuid.UUID) (settlement.SettleRequest, error) {
	counterpartyID, err := uuid.Parse(r.CounterpartyID)
	if err != nil {
		return settlement.SettleRequest{}, err
	}
	settlementDate, err := time.Parse(dateLayout, r.SettlementDate)
	if err != nil {
		return settlement.SettleRequest{}, err
	}

	req := settlement.SettleRequest{
		TenantID:            tenantID,
		DocumentNumber:      r.DocumentNumber,
		Direction:           settlement.Direction(r.Direction),
		CounterpartyID:      counterpartyID,
		SettlementDate:      settlementDate,
		TotalAmount:         valueobject.NewMoneyCNYFromFloat(r.TotalAmount),
		AllowanceAmount:     valueobject.NewMoneyCNYFromFloat(r.AllowanceAmount),
		NewPrepaymentAmount: valueobject.NewMoneyCNYFromFloat(r.NewPrepaymentAmount),
		Remark:              r.Remark,
	}

	for _, a := range r.Allocations {
		lineID, err := uuid.Parse(a.LineID)
		if err != nil {
			return settlement.SettleRequest{}, err
		}
		ref, err := settlement.NewSourceLineRef(settlement.SourceKind(a.SourceKind), lineID)
		if err != nil {
			return settlement.SettleRequest{}, err
		}
		req.Allocations = append(req.Allocations, settlement.AllocationInput{
			Ref:    ref,
			Amount: valueobject.NewMoneyCNYFromFloat(a.Amount),
		})
	}

	for _, u := range r.Usages {
		creditID, err := uuid.Parse(u.CreditID)
		if err != nil {
			return settlement.SettleRequest{}, err
		}
		req.Usages = append(req.Usages, settlement.UsageInput{
			CreditID: creditID,
			Amount:   valueobject.NewMoneyCNYFromFloat(u.Amount),
		})
	}

	for _, i := range r.Instruments {
		input := settlement.InstrumentInput{
			Method:       settlement.PaymentMethod(i.Method),
			BankAccount:  i.BankAccount,
			ChequeNumber: i.ChequeNumber,
			Amount:       valueobject.NewMoneyCNYFromFloat(i.Amount),
		}
		if i.ChequeDueDate != "" {
			due, err := time.Parse(dateLayout, i.ChequeDueDate)
			if err != nil {
				return settlement.SettleRequest{}, err
			}
			input.ChequeDueDate = &due
		}
		req.Instruments = append(req.Instruments, input)
	}

	return req, nil
}

// IssuePrepaymentRequest is the request body for banking a standalone credit
type IssuePrepaymentRequest struct {
	CounterpartyID string  `json:"counterparty_id" binding:"required,uuid"`
	Direction      string  `json:"direction" binding:"required,oneof=RECEIVABLE PAYABLE"`
	Amount         float64 `json:"amount" binding:"required,gt=0"`
	IssueDate      string  `json:"issue_date"`
	Reference      string  `json:"reference" binding:"max=100"`
}

// RecordAccrualRequest is the request body for registering a source line
type RecordAccrualRequest struct {
	SourceKind     string  `json:"source_kind" binding:"required,oneof=SALES_ORDER_LINE SALES_RETURN_LINE PURCHASE_RECEIVING_LINE PURCHASE_RETURN_LINE"`
	LineID         string  `json:"line_id" binding:"required,uuid"`
	CounterpartyID string  `json:"counterparty_id" binding:"required,uuid"`
	DocumentNumber string  `json:"document_number" binding:"required,max=50"`
	BusinessDate   string  `json:"business_date" binding:"required"`
	Amount         float64 `json:"amount" binding:"required"`
}

// ReverseRequest is the request body for reversing a document or entry
type ReverseRequest struct {
	ReversalDate string `json:"reversal_date"`
	Reason       string `json:"reason" binding:"max=500"`
}

// PreviewFIFORequest is the request body for an oldest-first allocation preview
type PreviewFIFORequest struct {
	CounterpartyID string  `json:"counterparty_id" binding:"required,uuid"`
	Direction      string  `json:"direction" binding:"required,oneof=RECEIVABLE PAYABLE"`
	Amount         float64 `json:"amount" binding:"required,gt=0"`
}

// AllocationResponse is one settled slice on a settlement document
type AllocationResponse struct {
	ID              uuid.UUID `json:"id"`
	SourceKind      string    `json:"source_kind"`
	LineID          uuid.UUID `json:"line_id"`
	Amount          float64   `json:"amount"`
	CumulativeAfter float64   `json:"cumulative_after"`
	FullySettled    bool      `json:"fully_settled"`
}

// UsageResponse is one consumed credit on a settlement document
type UsageResponse struct {
	ID       uuid.UUID `json:"id"`
	CreditID uuid.UUID `json:"credit_id"`
	Amount   float64   `json:"amount"`
}

// InstrumentResponse is one payment instrument on a settlement document
type InstrumentResponse struct {
	ID            uuid.UUID `json:"id"`
	Method        string    `json:"method"`
	BankAccount   string    `json:"bank_account,omitempty"`
	ChequeNumber  string    `json:"cheque_number,omitempty"`
	ChequeDueDate string    `json:"cheque_due_date,omitempty"`
	Amount        float64   `json:"amount"`
}

// SettlementDocumentResponse is the API shape of a settlement document
type SettlementDocumentResponse struct {
	ID                 uuid.UUID            `json:"id"`
	DocumentNumber     string               `json:"document_number"`
	Direction          string               `json:"direction"`
	CounterpartyID     uuid.UUID            `json:"counterparty_id"`
	SettlementDate     string               `json:"settlement_date"`
	TotalAmount        float64              `json:"total_amount"`
	InstrumentTotal    float64              `json:"instrument_total"`
	AllowanceAmount    float64              `json:"allowance_amount"`
	PrepaymentIssued   float64              `json:"prepayment_issued"`
	PrepaymentConsumed float64              `json:"prepayment_consumed"`
	Status             string               `json:"status"`
	Remark             string               `json:"remark,omitempty"`
	JournalEntryID     *uuid.UUID           `json:"journal_entry_id,omitempty"`
	Allocations        []AllocationResponse `json:"allocations"`
	Usages             []UsageResponse      `json:"usages,omitempty"`
	Instruments        []InstrumentResponse `json:"instruments,omitempty"`
	Version            int                  `json:"version"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// ToSettlementDocumentResponse converts a settlement document to its API shape
func ToSettlementDocumentResponse(doc *settlement.SettlementDocument) SettlementDocumentResponse {
	resp := SettlementDocumentResponse{
		ID:                 doc.ID,
		DocumentNumber:     doc.DocumentNumber,
		Direction:          string(doc.Direction),
		CounterpartyID:     doc.CounterpartyID,
		SettlementDate:     doc.SettlementDate.Format(dateLayout),
		TotalAmount:        doc.TotalAmount.Amount().InexactFloat64(),
		InstrumentTotal:    doc.InstrumentTotal.Amount().InexactFloat64(),
		AllowanceAmount:    doc.AllowanceAmount.Amount().InexactFloat64(),
		PrepaymentIssued:   doc.PrepaymentIssued.Amount().InexactFloat64(),
		PrepaymentConsumed: doc.PrepaymentConsumed.Amount().InexactFloat64(),
		Status:             string(doc.Status),
		Remark:             doc.Remark,
		JournalEntryID:     doc.JournalEntryID,
		Allocations:        make([]AllocationResponse, 0, len(doc.Allocations)),
		Version:            doc.Version,
		CreatedAt:          doc.CreatedAt,
		UpdatedAt:          doc.UpdatedAt,
	}

	for _, a := range doc.Allocations {
		resp.Allocations = append(resp.Allocations, AllocationResponse{
			ID:              a.ID,
			SourceKind:      string(a.Ref.Kind),
			LineID:          a.Ref.LineID,
			Amount:          a.Amount.Amount().InexactFloat64(),
			CumulativeAfter: a.CumulativeAfter.Amount().InexactFloat64(),
			FullySettled:    a.FullySettled,
		})
	}
	for _, u := range doc.Usages {
		resp.Usages = append(resp.Usages, UsageResponse{
			ID:       u.ID,
			CreditID: u.CreditID,
			Amount:   u.Amount.Amount().InexactFloat64(),
		})
	}
	for _, i := range doc.Instruments {
		instrument := InstrumentResponse{
			ID:           i.ID,
			Method:       string(i.Method),
			BankAccount:  i.BankAccount,
			ChequeNumber: i.ChequeNumber,
			Amount:       i.Amount.Amount().InexactFloat64(),
		}
		if i.ChequeDueDate != nil {
			instrument.ChequeDueDate = i.ChequeDueDate.Format(dateLayout)
		}
		resp.Instruments = append(resp.Instruments, instrument)
	}

	return resp
}

// SourceLineResponse is the API shape of a registered source line
type SourceLineResponse struct {
	ID              uuid.UUID `json:"id"`
	SourceKind      string    `json:"source_kind"`
	LineID          uuid.UUID `json:"line_id"`
	CounterpartyID  uuid.UUID `json:"counterparty_id"`
	DocumentNumber  string    `json:"document_number"`
	BusinessDate    string    `json:"business_date"`
	Direction       string    `json:"direction"`
	OriginalAmount  float64   `json:"original_amount"`
	AllocatedAmount float64   `json:"allocated_amount"`
	Outstanding     float64   `json:"outstanding"`
	Settled         bool      `json:"settled"`
}

// ToSourceLineResponse converts a source line to its API shape
func ToSourceLineResponse(line *settlement.SourceLine) SourceLineResponse {
	return SourceLineResponse{
		ID:              line.ID,
		SourceKind:      string(line.Ref.Kind),
		LineID:          line.Ref.LineID,
		CounterpartyID:  line.CounterpartyID,
		DocumentNumber:  line.DocumentNumber,
		BusinessDate:    line.BusinessDate.Format(dateLayout),
		Direction:       string(line.Direction()),
		OriginalAmount:  line.OriginalAmount.Amount().InexactFloat64(),
		AllocatedAmount: line.AllocatedAmount.Amount().InexactFloat64(),
		Outstanding:     line.Outstanding().Amount().InexactFloat64(),
		Settled:         line.Settled,
	}
}

// PrepaymentCreditResponse is the API shape of a prepayment credit
type PrepaymentCreditResponse struct {
	ID                 uuid.UUID `json:"id"`
	CounterpartyID     uuid.UUID `json:"counterparty_id"`
	Direction          string    `json:"direction"`
	SourceDocumentCode string    `json:"source_document_code,omitempty"`
	Amount             float64   `json:"amount"`
	UsedAmount         float64   `json:"used_amount"`
	AvailableBalance   float64   `json:"available_balance"`
	IssuedAt           string    `json:"issued_at"`
}

// ToPrepaymentCreditResponse converts a credit to its API shape
func ToPrepaymentCreditResponse(credit *settlement.PrepaymentCredit) PrepaymentCreditResponse {
	return PrepaymentCreditResponse{
		ID:                 credit.ID,
		CounterpartyID:     credit.CounterpartyID,
		Direction:          string(credit.Direction),
		SourceDocumentCode: credit.SourceDocumentCode,
		Amount:             credit.Amount.Amount().InexactFloat64(),
		UsedAmount:         credit.UsedAmount.Amount().InexactFloat64(),
		AvailableBalance:   credit.AvailableBalance().Amount().InexactFloat64(),
		IssuedAt:           credit.IssuedAt.Format(dateLayout),
	}
}

// FIFOAllocationResponse is one suggested slice in a preview
type FIFOAllocationResponse struct {
	SourceKind string  `json:"source_kind"`
	LineID     uuid.UUID `json:"line_id"`
	Amount     float64 `json:"amount"`
}

// FIFOPreviewResponse is the API shape of an allocation preview
type FIFOPreviewResponse struct {
	Allocations []FIFOAllocationResponse `json:"allocations"`
	Remainder   float64                  `json:"remainder"`
}

// SettleResponse bundles the posted document with its journal entry
type SettleResponse struct {
	Document     SettlementDocumentResponse `json:"document"`
	JournalEntry *JournalEntryResponse      `json:"journal_entry,omitempty"`
	IssuedCredit *PrepaymentCreditResponse  `json:"issued_credit,omitempty"`
}

// ReversalResponse bundles a reversed document with both entries
type ReversalResponse struct {
	Document      *SettlementDocumentResponse `json:"document,omitempty"`
	OriginalEntry *JournalEntryResponse       `json:"original_entry,omitempty"`
	ReversalEntry *JournalEntryResponse       `json:"reversal_entry,omitempty"`
}
