package accounting

import (
	"fmt"
	"strings"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/google/uuid"
)

// AccountKind classifies a chart-of-accounts node
type AccountKind string

const (
	AccountKindDetail  AccountKind = "DETAIL"  // leaf account, accepts postings
	AccountKindSummary AccountKind = "SUMMARY" // grouping node, postings forbidden
)

// IsValid checks if the account kind is valid
func (k AccountKind) IsValid() bool {
	return k == AccountKindDetail || k == AccountKindSummary
}

// AccountDirection is the normal balance side of an account
type AccountDirection string

const (
	DirectionDebit  AccountDirection = "DEBIT"
	DirectionCredit AccountDirection = "CREDIT"
)

// IsValid checks if the account direction is valid
func (d AccountDirection) IsValid() bool {
	return d == DirectionDebit || d == DirectionCredit
}

// AccountStatus represents the lifecycle state of an account
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "ACTIVE"
	AccountStatusDisabled AccountStatus = "DISABLED"
)

// IsValid checks if the account status is valid
func (s AccountStatus) IsValid() bool {
	return s == AccountStatusActive || s == AccountStatusDisabled
}

// AccountItem is a node in the chart of accounts.
// Accounts form a tree by parent code; only active DETAIL accounts
// accept journal postings.
type AccountItem struct {
	shared.TenantAggregateRoot
	Code       string
	Name       string
	Kind       AccountKind
	Direction  AccountDirection
	Status     AccountStatus
	ParentCode string // empty for root accounts
	Level      int
}

// NewAccountItem creates a new chart-of-accounts node
func NewAccountItem(tenantID uuid.UUID, code, name string, kind AccountKind, direction AccountDirection, parentCode string) (*AccountItem, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "account code cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "account name cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("invalid account kind: %s", kind))
	}
	if !direction.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("invalid account direction: %s", direction))
	}
	if parentCode == code {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("account %s cannot be its own parent", code))
	}

	return &AccountItem{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Code:                code,
		Name:                name,
		Kind:                kind,
		Direction:           direction,
		Status:              AccountStatusActive,
		ParentCode:          parentCode,
	}, nil
}

// IsPostable reports whether journal lines may reference this account
func (a *AccountItem) IsPostable() bool {
	return a.Kind == AccountKindDetail && a.Status == AccountStatusActive
}

// Disable marks the account unusable for new postings
func (a *AccountItem) Disable() {
	a.Status = AccountStatusDisabled
}

// Enable re-activates a disabled account
func (a *AccountItem) Enable() {
	a.Status = AccountStatusActive
}

// Rename updates the display name
func (a *AccountItem) Rename(name string) error {
	if strings.TrimSpace(name) == "" {
		return shared.NewDomainError("INVALID_INPUT", "account name cannot be empty")
	}
	a.Name = name
	return nil
}
