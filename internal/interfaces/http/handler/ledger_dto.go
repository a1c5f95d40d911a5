package handler

import (
	"time"

	appaccounting "github.com/erp/setoff/internal/application/accounting"
	"github.com/erp/setoff/internal/domain/accounting"
	"github.com/google/uuid"
)

// JournalLineResponse is one debit or credit within an entry
type JournalLineResponse struct {
	ID          uuid.UUID `json:"id"`
	AccountID   uuid.UUID `json:"account_id"`
	AccountCode string    `json:"account_code"`
	Side        string    `json:"side"`
	Amount      float64   `json:"amount"`
	Memo        string    `json:"memo,omitempty"`
}

// JournalEntryResponse is the API shape of a journal entry
type JournalEntryResponse struct {
	ID               uuid.UUID             `json:"id"`
	EntryNumber      string                `json:"entry_number"`
	EntryType        string                `json:"entry_type"`
	Status           string                `json:"status"`
	BusinessDate     string                `json:"business_date"`
	FiscalPeriod     string                `json:"fiscal_period"`
	SourceDocumentID *uuid.UUID            `json:"source_document_id,omitempty"`
	Description      string                `json:"description,omitempty"`
	Lines            []JournalLineResponse `json:"lines"`
	TotalDebit       float64               `json:"total_debit"`
	TotalCredit      float64               `json:"total_credit"`
	ReversalOfID     *uuid.UUID            `json:"reversal_of_id,omitempty"`
	ReversedByID     *uuid.UUID            `json:"reversed_by_id,omitempty"`
	Version          int                   `json:"version"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// ToJournalEntryResponse converts a journal entry to its API shape
func ToJournalEntryResponse(entry *accounting.JournalEntry) JournalEntryResponse {
	resp := JournalEntryResponse{
		ID:               entry.ID,
		EntryNumber:      entry.EntryNumber,
		EntryType:        string(entry.EntryType),
		Status:           string(entry.Status),
		BusinessDate:     entry.BusinessDate.Format(dateLayout),
		FiscalPeriod:     entry.FiscalPeriod,
		SourceDocumentID: entry.SourceDocumentID,
		Description:      entry.Description,
		Lines:            make([]JournalLineResponse, 0, len(entry.Lines)),
		TotalDebit:       entry.TotalDebit().Amount().InexactFloat64(),
		TotalCredit:      entry.TotalCredit().Amount().InexactFloat64(),
		ReversalOfID:     entry.ReversalOfID,
		ReversedByID:     entry.ReversedByID,
		Version:          entry.Version,
		CreatedAt:        entry.CreatedAt,
		UpdatedAt:        entry.UpdatedAt,
	}
	for _, line := range entry.Lines {
		resp.Lines = append(resp.Lines, JournalLineResponse{
			ID:          line.ID,
			AccountID:   line.AccountID,
			AccountCode: line.AccountCode,
			Side:        string(line.Side),
			Amount:      line.Amount.Amount().InexactFloat64(),
			Memo:        line.Memo,
		})
	}
	return resp
}

// toJournalEntryResponsePtr maps an optional entry, keeping nil as nil
func toJournalEntryResponsePtr(entry *accounting.JournalEntry) *JournalEntryResponse {
	if entry == nil {
		return nil
	}
	resp := ToJournalEntryResponse(entry)
	return &resp
}

// TrialBalanceRowResponse is one account's period aggregate
type TrialBalanceRowResponse struct {
	AccountCode string  `json:"account_code"`
	AccountName string  `json:"account_name"`
	Direction   string  `json:"direction"`
	TotalDebit  float64 `json:"total_debit"`
	TotalCredit float64 `json:"total_credit"`
}

// TrialBalanceResponse is the API shape of a trial balance report
type TrialBalanceResponse struct {
	FiscalPeriod string                    `json:"fiscal_period"`
	Rows         []TrialBalanceRowResponse `json:"rows"`
	TotalDebit   float64                   `json:"total_debit"`
	TotalCredit  float64                   `json:"total_credit"`
	Balanced     bool                      `json:"balanced"`
}

// ToTrialBalanceResponse converts a trial balance report to its API shape
func ToTrialBalanceResponse(report *appaccounting.TrialBalanceReport) TrialBalanceResponse {
	resp := TrialBalanceResponse{
		FiscalPeriod: report.FiscalPeriod,
		Rows:         make([]TrialBalanceRowResponse, 0, len(report.Rows)),
		TotalDebit:   report.TotalDebit.Amount().InexactFloat64(),
		TotalCredit:  report.TotalCredit.Amount().InexactFloat64(),
		Balanced:     report.Balanced,
	}
	for _, row := range report.Rows {
		resp.Rows = append(resp.Rows, TrialBalanceRowResponse{
			AccountCode: row.AccountCode,
			AccountName: row.AccountName,
			Direction:   string(row.Direction),
			TotalDebit:  row.TotalDebit.Amount().InexactFloat64(),
			TotalCredit: row.TotalCredit.Amount().InexactFloat64(),
		})
	}
	return resp
}

// AccountResponse is the API shape of a chart of accounts node
type AccountResponse struct {
	ID         uuid.UUID `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	Direction  string    `json:"direction"`
	Status     string    `json:"status"`
	ParentCode string    `json:"parent_code,omitempty"`
	Level      int       `json:"level"`
}

// ToAccountResponse converts an account item to its API shape
func ToAccountResponse(account *accounting.AccountItem) AccountResponse {
	return AccountResponse{
		ID:         account.ID,
		Code:       account.Code,
		Name:       account.Name,
		Kind:       string(account.Kind),
		Direction:  string(account.Direction),
		Status:     string(account.Status),
		ParentCode: account.ParentCode,
		Level:      account.Level,
	}
}
