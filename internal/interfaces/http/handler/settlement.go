package handler

import (
	"time"

	settlementapp "github.com/erp/setoff/internal/application/settlement"
	"github.com/erp/setoff/internal/domain/settlement"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SettlementHandler handles settlement-related API endpoints
type SettlementHandler struct {
	BaseHandler
	setoffService     *settlementapp.SetoffService
	prepaymentService *settlementapp.PrepaymentService
	accrualService    *settlementapp.AccrualService
	reversalService   *settlementapp.ReversalService
	queryService      *settlementapp.QueryService
}

// NewSettlementHandler creates a new SettlementHandler
func NewSettlementHandler(
	setoffService *settlementapp.SetoffService,
	prepaymentService *settlementapp.PrepaymentService,
	accrualService *settlementapp.AccrualService,
	reversalService *settlementapp.ReversalService,
	queryService *settlementapp.QueryService,
) *SettlementHandler {
	return &SettlementHandler{
		setoffService:     setoffService,
		prepaymentService: prepaymentService,
		accrualService:    accrualService,
		reversalService:   reversalService,
		queryService:      queryService,
	}
}

// documentListQuery binds the list endpoint's query parameters
type documentListQuery struct {
	Direction      string `form:"direction" binding:"omitempty,oneof=RECEIVABLE PAYABLE"`
	Status         string `form:"status" binding:"omitempty,oneof=POSTED REVERSED"`
	CounterpartyID string `form:"counterparty_id" binding:"omitempty,uuid"`
	DateFrom       string `form:"date_from"`
	DateTo         string `form:"date_to"`
	Page           int    `form:"page"`
	PageSize       int    `form:"page_size"`
}

// Settle godoc
// @Summary      Post a settlement
// @Description  Validate and commit one settlement event: allocate the received or paid amount across open source lines, consume and issue prepayment credits, and post the journal entry atomically
// @Tags         settlement
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        request body SettleHTTPRequest true "Settlement request"
// @Success      201 {object} dto.Response{data=SettleResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/settle [post]
func (h *SettlementHandler) Settle(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req SettleHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	serviceReq, err := req.ToServiceRequest(tenantID)
	if err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.setoffService.Settle(c.Request.Context(), serviceReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := SettleResponse{
		Document:     ToSettlementDocumentResponse(result.Document),
		JournalEntry: toJournalEntryResponsePtr(result.JournalEntry),
	}
	if result.IssuedCredit != nil {
		credit := ToPrepaymentCreditResponse(result.IssuedCredit)
		resp.IssuedCredit = &credit
	}
	h.Created(c, resp)
}

// ListDocuments godoc
// @Summary      List settlement documents
// @Description  Retrieve a paginated list of settlement documents with filtering
// @Tags         settlement
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        direction query string false "Direction" Enums(RECEIVABLE, PAYABLE)
// @Param        status query string false "Status" Enums(POSTED, REVERSED)
// @Param        counterparty_id query string false "Counterparty ID" format(uuid)
// @Param        date_from query string false "Settlement date lower bound" format(date)
// @Param        date_to query string false "Settlement date upper bound" format(date)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=[]SettlementDocumentResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/documents [get]
func (h *SettlementHandler) ListDocuments(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var query documentListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}

	filter := settlement.SettlementDocumentFilter{
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if query.Direction != "" {
		direction := settlement.Direction(query.Direction)
		filter.Direction = &direction
	}
	if query.Status != "" {
		status := settlement.SettlementStatus(query.Status)
		filter.Status = &status
	}
	if query.CounterpartyID != "" {
		counterpartyID, err := uuid.Parse(query.CounterpartyID)
		if err != nil {
			h.BadRequest(c, "Invalid counterparty ID format")
			return
		}
		filter.CounterpartyID = &counterpartyID
	}
	if query.DateFrom != "" {
		from, err := time.Parse(dateLayout, query.DateFrom)
		if err != nil {
			h.BadRequest(c, "Invalid date_from format, expected YYYY-MM-DD")
			return
		}
		filter.DateFrom = &from
	}
	if query.DateTo != "" {
		to, err := time.Parse(dateLayout, query.DateTo)
		if err != nil {
			h.BadRequest(c, "Invalid date_to format, expected YYYY-MM-DD")
			return
		}
		filter.DateTo = &to
	}

	page, err := h.queryService.ListDocuments(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]SettlementDocumentResponse, 0, len(page.Items))
	for _, doc := range page.Items {
		items = append(items, ToSettlementDocumentResponse(doc))
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}

// GetDocument godoc
// @Summary      Get settlement document by ID
// @Tags         settlement
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Document ID" format(uuid)
// @Success      200 {object} dto.Response{data=SettlementDocumentResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/documents/{id} [get]
func (h *SettlementHandler) GetDocument(c *gin.Context) {
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

	doc, err := h.queryService.GetDocument(c.Request.Context(), tenantID, documentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ToSettlementDocumentResponse(doc))
}

// GetDocumentByNumber godoc
// @Summary      Get settlement document by number
// @Tags         settlement
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        number path string true "Document number"
// @Success      200 {object} dto.Response{data=SettlementDocumentResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/documents/number/{number} [get]
func (h *SettlementHandler) GetDocumentByNumber(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	number := c.Param("number")
	if number == "" {
		h.BadRequest(c, "Document number is required")
		return
	}

	doc, err := h.queryService.GetDocumentByNumber(c.Request.Context(), tenantID, number)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ToSettlementDocumentResponse(doc))
}

// ReverseDocument godoc
// @Summary      Reverse a settlement document
// @Description  Mirror the settlement's journal entry, reopen its source lines and restore consumed credits. A second reversal fails with ALREADY_REVERSED
// @Tags         settlement
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Document ID" format(uuid)
// @Param        request body ReverseRequest false "Reversal details"
// @Success      200 {object} dto.Response{data=ReversalResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/documents/{id}/reverse [post]
func (h *SettlementHandler) ReverseDocument(c *gin.Context) {
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

	reversalDate, reason, ok := h.bindReversal(c)
	if !ok {
		return
	}

	result, err := h.reversalService.ReverseSettlement(c.Request.Context(), tenantID, documentID, reversalDate, reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toReversalResponse(result))
}

// PreviewFIFO godoc
// @Summary      Preview an oldest-first allocation
// @Description  Spread an amount over the counterparty's open lines oldest-first without committing anything
// @Tags         settlement
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        request body PreviewFIFORequest true "Preview request"
// @Success      200 {object} dto.Response{data=FIFOPreviewResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/preview-fifo [post]
func (h *SettlementHandler) PreviewFIFO(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req PreviewFIFORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	counterpartyID, err := uuid.Parse(req.CounterpartyID)
	if err != nil {
		h.BadRequest(c, "Invalid counterparty ID format")
		return
	}

	preview, err := h.queryService.PreviewFIFO(
		c.Request.Context(),
		tenantID,
		counterpartyID,
		settlement.Direction(req.Direction),
		valueobject.NewMoneyCNYFromFloat(req.Amount),
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := FIFOPreviewResponse{
		Allocations: make([]FIFOAllocationResponse, 0, len(preview.Allocations)),
		Remainder:   preview.Remainder.Amount().InexactFloat64(),
	}
	for _, a := range preview.Allocations {
		resp.Allocations = append(resp.Allocations, FIFOAllocationResponse{
			SourceKind: string(a.Ref.Kind),
			LineID:     a.Ref.LineID,
			Amount:     a.Amount.Amount().InexactFloat64(),
		})
	}
	h.Success(c, resp)
}

// GetOutstanding godoc
// @Summary      Get a source line's outstanding balance
// @Tags         settlement
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        kind path string true "Source kind" Enums(SALES_ORDER_LINE, SALES_RETURN_LINE, PURCHASE_RECEIVING_LINE, PURCHASE_RETURN_LINE)
// @Param        line_id path string true "Source line ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/lines/{kind}/{line_id}/outstanding [get]
func (h *SettlementHandler) GetOutstanding(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	lineID, err := uuid.Parse(c.Param("line_id"))
	if err != nil {
		h.BadRequest(c, "Invalid line ID format")
		return
	}

	ref, err := settlement.NewSourceLineRef(settlement.SourceKind(c.Param("kind")), lineID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	outstanding, err := h.queryService.Outstanding(c.Request.Context(), tenantID, ref)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{
		"source_kind": string(ref.Kind),
		"line_id":     ref.LineID,
		"outstanding": outstanding.Amount().InexactFloat64(),
	})
}

// ListOpenLines godoc
// @Summary      List a counterparty's open source lines
// @Tags         settlement
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        counterparty_id query string true "Counterparty ID" format(uuid)
// @Param        direction query string true "Direction" Enums(RECEIVABLE, PAYABLE)
// @Success      200 {object} dto.Response{data=[]SourceLineResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/lines [get]
func (h *SettlementHandler) ListOpenLines(c *gin.Context) {
	tenantID, counterpartyID, direction, ok := h.bindCounterpartyQuery(c)
	if !ok {
		return
	}

	lines, err := h.queryService.OpenLines(c.Request.Context(), tenantID, counterpartyID, direction)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]SourceLineResponse, 0, len(lines))
	for _, line := range lines {
		items = append(items, ToSourceLineResponse(line))
	}
	h.Success(c, items)
}

// ListAvailableCredits godoc
// @Summary      List a counterparty's available prepayment credits
// @Tags         settlement
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        counterparty_id query string true "Counterparty ID" format(uuid)
// @Param        direction query string true "Direction" Enums(RECEIVABLE, PAYABLE)
// @Success      200 {object} dto.Response{data=[]PrepaymentCreditResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/credits [get]
func (h *SettlementHandler) ListAvailableCredits(c *gin.Context) {
	tenantID, counterpartyID, direction, ok := h.bindCounterpartyQuery(c)
	if !ok {
		return
	}

	credits, err := h.queryService.AvailableCredits(c.Request.Context(), tenantID, counterpartyID, direction)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]PrepaymentCreditResponse, 0, len(credits))
	for _, credit := range credits {
		items = append(items, ToPrepaymentCreditResponse(credit))
	}
	h.Success(c, items)
}

// IssuePrepayment godoc
// @Summary      Issue a standalone prepayment credit
// @Description  Bank money received or paid outside any settlement as a credit and post its ledger entry
// @Tags         settlement
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        request body IssuePrepaymentRequest true "Prepayment issue request"
// @Success      201 {object} dto.Response{data=PrepaymentCreditResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/credits [post]
func (h *SettlementHandler) IssuePrepayment(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req IssuePrepaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	counterpartyID, err := uuid.Parse(req.CounterpartyID)
	if err != nil {
		h.BadRequest(c, "Invalid counterparty ID format")
		return
	}

	serviceReq := settlementapp.IssueRequest{
		TenantID:       tenantID,
		CounterpartyID: counterpartyID,
		Direction:      settlement.Direction(req.Direction),
		Amount:         valueobject.NewMoneyCNYFromFloat(req.Amount),
		Reference:      req.Reference,
	}
	if req.IssueDate != "" {
		issueDate, err := time.Parse(dateLayout, req.IssueDate)
		if err != nil {
			h.BadRequest(c, "Invalid issue_date format, expected YYYY-MM-DD")
			return
		}
		serviceReq.IssueDate = issueDate
	}

	result, err := h.prepaymentService.Issue(c.Request.Context(), serviceReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, gin.H{
		"credit":        ToPrepaymentCreditResponse(result.Credit),
		"journal_entry": toJournalEntryResponsePtr(result.JournalEntry),
	})
}

// RecordAccrual godoc
// @Summary      Register a source line
// @Description  Register one business document line as settleable and post its accrual entry
// @Tags         settlement
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        request body RecordAccrualRequest true "Accrual request"
// @Success      201 {object} dto.Response{data=SourceLineResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/lines [post]
func (h *SettlementHandler) RecordAccrual(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req RecordAccrualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	lineID, err := uuid.Parse(req.LineID)
	if err != nil {
		h.BadRequest(c, "Invalid line ID format")
		return
	}
	counterpartyID, err := uuid.Parse(req.CounterpartyID)
	if err != nil {
		h.BadRequest(c, "Invalid counterparty ID format")
		return
	}
	businessDate, err := time.Parse(dateLayout, req.BusinessDate)
	if err != nil {
		h.BadRequest(c, "Invalid business_date format, expected YYYY-MM-DD")
		return
	}

	result, err := h.accrualService.Record(c.Request.Context(), settlementapp.AccrualRequest{
		TenantID:       tenantID,
		Kind:           settlement.SourceKind(req.SourceKind),
		LineID:         lineID,
		CounterpartyID: counterpartyID,
		DocumentNumber: req.DocumentNumber,
		BusinessDate:   businessDate,
		Amount:         valueobject.NewMoneyCNYFromFloat(req.Amount),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, gin.H{
		"line":          ToSourceLineResponse(result.Line),
		"journal_entry": toJournalEntryResponsePtr(result.JournalEntry),
	})
}

// bindCounterpartyQuery binds the counterparty_id and direction query
// parameters shared by the open-lines and credits endpoints
func (h *SettlementHandler) bindCounterpartyQuery(c *gin.Context) (tenantID, counterpartyID uuid.UUID, direction settlement.Direction, ok bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return tenantID, counterpartyID, direction, false
	}

	counterpartyID, err = uuid.Parse(c.Query("counterparty_id"))
	if err != nil {
		h.BadRequest(c, "Invalid counterparty ID format")
		return tenantID, counterpartyID, direction, false
	}

	direction = settlement.Direction(c.Query("direction"))
	if !direction.IsValid() {
		h.BadRequest(c, "Invalid direction, expected RECEIVABLE or PAYABLE")
		return tenantID, counterpartyID, direction, false
	}

	return tenantID, counterpartyID, direction, true
}

// bindReversal parses the optional reversal body shared by the
// settlement and journal entry reversal endpoints
func (h *BaseHandler) bindReversal(c *gin.Context) (time.Time, string, bool) {
	var req ReverseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return time.Time{}, "", false
		}
	}

	var reversalDate time.Time
	if req.ReversalDate != "" {
		parsed, err := time.Parse(dateLayout, req.ReversalDate)
		if err != nil {
			h.BadRequest(c, "Invalid reversal_date format, expected YYYY-MM-DD")
			return time.Time{}, "", false
		}
		reversalDate = parsed
	}

	return reversalDate, req.Reason, true
}

// toReversalResponse maps a reversal result to its API shape
func toReversalResponse(result *settlementapp.ReversalResult) ReversalResponse {
	resp := ReversalResponse{
		OriginalEntry: toJournalEntryResponsePtr(result.OriginalEntry),
		ReversalEntry: toJournalEntryResponsePtr(result.ReversalEntry),
	}
	if result.Document != nil {
		doc := ToSettlementDocumentResponse(result.Document)
		resp.Document = &doc
	}
	return resp
}
