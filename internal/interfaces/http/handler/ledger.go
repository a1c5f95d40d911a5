package handler

import (
	accountingapp "github.com/erp/setoff/internal/application/accounting"
	settlementapp "github.com/erp/setoff/internal/application/settlement"
	"github.com/erp/setoff/internal/domain/accounting"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LedgerHandler handles journal entry and reporting API endpoints
type LedgerHandler struct {
	BaseHandler
	queryService    *accountingapp.LedgerQueryService
	reversalService *settlementapp.ReversalService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(
	queryService *accountingapp.LedgerQueryService,
	reversalService *settlementapp.ReversalService,
) *LedgerHandler {
	return &LedgerHandler{
		queryService:    queryService,
		reversalService: reversalService,
	}
}

// entryListQuery binds the entry list endpoint's query parameters
type entryListQuery struct {
	EntryType        string `form:"entry_type" binding:"omitempty,oneof=RECEIVABLE_SETTLEMENT PAYABLE_SETTLEMENT PREPAYMENT_ISSUE ADVANCE_ISSUE SALES_ACCRUAL SALES_RETURN_ACCRUAL PURCHASE_ACCRUAL PURCHASE_RETURN_ACCRUAL REVERSAL"`
	Status           string `form:"status" binding:"omitempty,oneof=POSTED REVERSED"`
	FiscalPeriod     string `form:"fiscal_period" binding:"omitempty,len=7"`
	SourceDocumentID string `form:"source_document_id" binding:"omitempty,uuid"`
	AccountCode      string `form:"account_code"`
	Page             int    `form:"page"`
	PageSize         int    `form:"page_size"`
}

// ListEntries godoc
// @Summary      List journal entries
// @Description  Retrieve a paginated list of journal entries with filtering
// @Tags         ledger
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        entry_type query string false "Entry type"
// @Param        status query string false "Status" Enums(POSTED, REVERSED)
// @Param        fiscal_period query string false "Fiscal period (YYYY-MM)"
// @Param        source_document_id query string false "Source document ID" format(uuid)
// @Param        account_code query string false "Account code touched by the entry"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=[]JournalEntryResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /ledger/entries [get]
func (h *LedgerHandler) ListEntries(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var query entryListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}

	filter := accounting.JournalEntryFilter{
		FiscalPeriod: query.FiscalPeriod,
		AccountCode:  query.AccountCode,
		Page:         query.Page,
		PageSize:     query.PageSize,
	}
	if query.EntryType != "" {
		entryType := accounting.EntryType(query.EntryType)
		filter.EntryType = &entryType
	}
	if query.Status != "" {
		status := accounting.EntryStatus(query.Status)
		filter.Status = &status
	}
	if query.SourceDocumentID != "" {
		sourceDocumentID, err := uuid.Parse(query.SourceDocumentID)
		if err != nil {
			h.BadRequest(c, "Invalid source document ID format")
			return
		}
		filter.SourceDocumentID = &sourceDocumentID
	}

	page, err := h.queryService.ListEntries(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]JournalEntryResponse, 0, len(page.Items))
	for _, entry := range page.Items {
		items = append(items, ToJournalEntryResponse(entry))
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}

// GetEntry godoc
// @Summary      Get journal entry by ID
// @Tags         ledger
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Entry ID" format(uuid)
// @Success      200 {object} dto.Response{data=JournalEntryResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /ledger/entries/{id} [get]
func (h *LedgerHandler) GetEntry(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid entry ID format")
		return
	}

	entry, err := h.queryService.GetEntry(c.Request.Context(), tenantID, entryID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ToJournalEntryResponse(entry))
}

// GetEntryByNumber godoc
// @Summary      Get journal entry by number
// @Tags         ledger
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        number path string true "Entry number"
// @Success      200 {object} dto.Response{data=JournalEntryResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /ledger/entries/number/{number} [get]
func (h *LedgerHandler) GetEntryByNumber(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	number := c.Param("number")
	if number == "" {
		h.BadRequest(c, "Entry number is required")
		return
	}

	entry, err := h.queryService.GetEntryByNumber(c.Request.Context(), tenantID, number)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ToJournalEntryResponse(entry))
}

// ListEntriesForDocument godoc
// @Summary      List journal entries for a source document
// @Description  Retrieve every entry posted against one business document, reversals included
// @Tags         ledger
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Source document ID" format(uuid)
// @Success      200 {object} dto.Response{data=[]JournalEntryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /ledger/documents/{id}/entries [get]
func (h *LedgerHandler) ListEntriesForDocument(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid document ID format")
		return
	}

	entries, err := h.queryService.EntriesForDocument(c.Request.Context(), tenantID, documentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]JournalEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, ToJournalEntryResponse(entry))
	}
	h.Success(c, items)
}

// ReverseEntry godoc
// @Summary      Reverse a journal entry
// @Description  Post a mirror entry against the original. Ledger-only; the originating business document is untouched
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Entry ID" format(uuid)
// @Param        request body ReverseRequest false "Reversal details"
// @Success      200 {object} dto.Response{data=ReversalResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /ledger/entries/{id}/reverse [post]
func (h *LedgerHandler) ReverseEntry(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid entry ID format")
		return
	}

	reversalDate, reason, ok := h.bindReversal(c)
	if !ok {
		return
	}

	result, err := h.reversalService.ReverseJournalEntry(c.Request.Context(), tenantID, entryID, reversalDate, reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toReversalResponse(result))
}

// GetTrialBalance godoc
// @Summary      Get a period's trial balance
// @Description  Aggregate the period's postings per account and check that total debits equal total credits
// @Tags         ledger
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        period path string true "Fiscal period (YYYY-MM)"
// @Success      200 {object} dto.Response{data=TrialBalanceResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /ledger/trial-balance/{period} [get]
func (h *LedgerHandler) GetTrialBalance(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	period := c.Param("period")
	report, err := h.queryService.TrialBalance(c.Request.Context(), tenantID, period)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ToTrialBalanceResponse(report))
}
