package handler

import (
	accountingapp "github.com/erp/setoff/internal/application/accounting"
	"github.com/erp/setoff/internal/domain/accounting"
	"github.com/gin-gonic/gin"
)

// AccountHandler handles chart of accounts API endpoints
type AccountHandler struct {
	BaseHandler
	accountService *accountingapp.AccountService
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accountService *accountingapp.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
	}
}

// CreateAccountHTTPRequest is the request body for adding a chart node
type CreateAccountHTTPRequest struct {
	Code       string `json:"code" binding:"required,max=20"`
	Name       string `json:"name" binding:"required,max=100"`
	Kind       string `json:"kind" binding:"required,oneof=DETAIL SUMMARY"`
	Direction  string `json:"direction" binding:"required,oneof=DEBIT CREDIT"`
	ParentCode string `json:"parent_code" binding:"max=20"`
}

// RenameAccountRequest is the request body for renaming an account
type RenameAccountRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// AccountTreeNodeResponse is one chart node with its children inline
type AccountTreeNodeResponse struct {
	AccountResponse
	Children []AccountTreeNodeResponse `json:"children,omitempty"`
}

// CreateAccount godoc
// @Summary      Create an account
// @Description  Add a node to the chart of accounts. Detail accounts accept postings; summary accounts group them
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        request body CreateAccountHTTPRequest true "Account details"
// @Success      201 {object} dto.Response{data=AccountResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /accounts [post]
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req CreateAccountHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	account, err := h.accountService.CreateAccount(c.Request.Context(), accountingapp.CreateAccountRequest{
		TenantID:   tenantID,
		Code:       req.Code,
		Name:       req.Name,
		Kind:       accounting.AccountKind(req.Kind),
		Direction:  accounting.AccountDirection(req.Direction),
		ParentCode: req.ParentCode,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, ToAccountResponse(account))
}

// GetTree godoc
// @Summary      Get the chart of accounts
// @Description  Retrieve the full chart as a tree, roots first
// @Tags         accounts
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Success      200 {object} dto.Response{data=[]AccountTreeNodeResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /accounts/tree [get]
func (h *AccountHandler) GetTree(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	tree, err := h.accountService.GetTree(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	roots := make([]AccountTreeNodeResponse, 0, len(tree.Roots()))
	for _, code := range tree.Roots() {
		node, err := buildTreeNode(tree, code)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		roots = append(roots, node)
	}
	h.Success(c, roots)
}

// ListAccounts godoc
// @Summary      List accounts
// @Description  Retrieve the chart of accounts as a flat list
// @Tags         accounts
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Success      200 {object} dto.Response{data=[]AccountResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /accounts [get]
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	tree, err := h.accountService.GetTree(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]AccountResponse, 0, tree.Size())
	tree.Walk(func(a *accounting.AccountItem) {
		items = append(items, ToAccountResponse(a))
	})
	h.Success(c, items)
}

// GetAccount godoc
// @Summary      Get account by code
// @Tags         accounts
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        code path string true "Account code"
// @Success      200 {object} dto.Response{data=AccountResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /accounts/{code} [get]
func (h *AccountHandler) GetAccount(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	account, err := h.accountService.GetAccount(c.Request.Context(), tenantID, c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ToAccountResponse(account))
}

// RenameAccount godoc
// @Summary      Rename an account
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        code path string true "Account code"
// @Param        request body RenameAccountRequest true "New name"
// @Success      204 "No Content"
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /accounts/{code}/name [put]
func (h *AccountHandler) RenameAccount(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req RenameAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	if err := h.accountService.RenameAccount(c.Request.Context(), tenantID, c.Param("code"), req.Name); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// DisableAccount godoc
// @Summary      Disable an account
// @Description  Mark an account disabled. Disabled accounts reject new postings; history stays intact
// @Tags         accounts
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        code path string true "Account code"
// @Success      204 "No Content"
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /accounts/{code}/disable [post]
func (h *AccountHandler) DisableAccount(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	if err := h.accountService.DisableAccount(c.Request.Context(), tenantID, c.Param("code")); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// DeleteAccount godoc
// @Summary      Delete an account
// @Description  Remove a leaf account that has never been posted to
// @Tags         accounts
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        code path string true "Account code"
// @Success      204 "No Content"
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /accounts/{code} [delete]
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	if err := h.accountService.DeleteAccount(c.Request.Context(), tenantID, c.Param("code")); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// buildTreeNode materializes one subtree of the chart
func buildTreeNode(tree *accounting.AccountTree, code string) (AccountTreeNodeResponse, error) {
	account, err := tree.Get(code)
	if err != nil {
		return AccountTreeNodeResponse{}, err
	}

	node := AccountTreeNodeResponse{AccountResponse: ToAccountResponse(account)}
	for _, childCode := range tree.Children(code) {
		child, err := buildTreeNode(tree, childCode)
		if err != nil {
			return AccountTreeNodeResponse{}, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}
