package accounting

import (
	"fmt"
	"time"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// AccountRole is a business-level slot in the posting rule table.
// Roles decouple the rules from tenant-specific account codes; an
// AccountMapping binds each role to a concrete chart-of-accounts code.
type AccountRole string

const (
	RoleCashBank           AccountRole = "CASH_BANK"
	RoleAccountsReceivable AccountRole = "ACCOUNTS_RECEIVABLE"
	RoleAccountsPayable    AccountRole = "ACCOUNTS_PAYABLE"
	RoleCustomerPrepayment AccountRole = "CUSTOMER_PREPAYMENT"
	RoleSupplierAdvance    AccountRole = "SUPPLIER_ADVANCE"
	RoleSalesAllowance     AccountRole = "SALES_ALLOWANCE"
	RolePurchaseAllowance  AccountRole = "PURCHASE_ALLOWANCE"
	RoleInventory          AccountRole = "INVENTORY"
	RoleSalesRevenue       AccountRole = "SALES_REVENUE"
)

// AccountMapping binds posting roles to account codes for one tenant
type AccountMapping map[AccountRole]string

// Validate checks that every role the rule table can reference is bound
// to a postable account in the tree
func (m AccountMapping) Validate(tree *AccountTree) error {
	roles := []AccountRole{
		RoleCashBank, RoleAccountsReceivable, RoleAccountsPayable,
		RoleCustomerPrepayment, RoleSupplierAdvance,
		RoleSalesAllowance, RolePurchaseAllowance,
		RoleInventory, RoleSalesRevenue,
	}
	for _, role := range roles {
		code, ok := m[role]
		if !ok || code == "" {
			return shared.NewDomainError("UNMAPPED_ACCOUNT_ROLE", fmt.Sprintf("no account mapped for role %s", role))
		}
		if _, err := tree.Postable(code); err != nil {
			return err
		}
	}
	return nil
}

// PostingAmounts carries the monetary components of one business
// transaction into the rule table. Unused components stay zero and
// produce no journal line.
type PostingAmounts struct {
	Instruments    valueobject.Money // cash and bank instrument total
	ConsumedCredit valueobject.Money // prepayment or advance consumed
	IssuedCredit   valueobject.Money // new prepayment or advance issued
	Allowance      valueobject.Money // discount written off
	LinesTotal     valueobject.Money // source line principal settled
	Gross          valueobject.Money // accrual gross amount
}

// amountSelector picks one component out of PostingAmounts
type amountSelector func(PostingAmounts) valueobject.Money

func selInstruments(a PostingAmounts) valueobject.Money { return a.Instruments }
func selConsumed(a PostingAmounts) valueobject.Money    { return a.ConsumedCredit }
func selIssued(a PostingAmounts) valueobject.Money      { return a.IssuedCredit }
func selAllowance(a PostingAmounts) valueobject.Money   { return a.Allowance }
func selGross(a PostingAmounts) valueobject.Money       { return a.Gross }

// selLinesWithAllowance is the receivable/payable relief amount: the
// settled principal plus the allowance written off against it
func selLinesWithAllowance(a PostingAmounts) valueobject.Money {
	return addComponent(a.LinesTotal, a.Allowance)
}

// addComponent sums two amount components, tolerating the zero value
// a caller leaves unset
func addComponent(a, b valueobject.Money) valueobject.Money {
	if b.IsZero() {
		return a
	}
	if a.IsZero() {
		return b
	}
	return a.MustAdd(b)
}

// postingRule emits one candidate journal line
type postingRule struct {
	role   AccountRole
	side   JournalSide
	amount amountSelector
	memo   string
}

// postingRules is the fixed rule table. Each entry type maps to the
// lines it produces; zero amounts are dropped at build time.
var postingRules = map[EntryType][]postingRule{
	EntryTypeReceivableSettlement: {
		{RoleCashBank, SideDebit, selInstruments, "payment received"},
		{RoleCustomerPrepayment, SideDebit, selConsumed, "prepayment applied"},
		{RoleSalesAllowance, SideDebit, selAllowance, "allowance granted"},
		{RoleAccountsReceivable, SideCredit, selLinesWithAllowance, "receivable settled"},
		{RoleCustomerPrepayment, SideCredit, selIssued, "prepayment issued"},
	},
	EntryTypePayableSettlement: {
		{RoleAccountsPayable, SideDebit, selLinesWithAllowance, "payable settled"},
		{RoleSupplierAdvance, SideDebit, selIssued, "advance issued"},
		{RoleCashBank, SideCredit, selInstruments, "payment made"},
		{RoleSupplierAdvance, SideCredit, selConsumed, "advance applied"},
		{RolePurchaseAllowance, SideCredit, selAllowance, "allowance received"},
	},
	EntryTypePrepaymentIssue: {
		{RoleCashBank, SideDebit, selIssued, "prepayment received"},
		{RoleCustomerPrepayment, SideCredit, selIssued, "prepayment liability"},
	},
	EntryTypeAdvanceIssue: {
		{RoleSupplierAdvance, SideDebit, selIssued, "advance paid"},
		{RoleCashBank, SideCredit, selIssued, "advance disbursed"},
	},
	EntryTypeSalesAccrual: {
		{RoleAccountsReceivable, SideDebit, selGross, "sales on account"},
		{RoleSalesRevenue, SideCredit, selGross, "revenue recognized"},
	},
	EntryTypeSalesReturnAccrual: {
		{RoleSalesRevenue, SideDebit, selGross, "revenue reversed"},
		{RoleAccountsReceivable, SideCredit, selGross, "receivable reduced"},
	},
	EntryTypePurchaseAccrual: {
		{RoleInventory, SideDebit, selGross, "goods received"},
		{RoleAccountsPayable, SideCredit, selGross, "payable accrued"},
	},
	EntryTypePurchaseReturnAccrual: {
		{RoleAccountsPayable, SideDebit, selGross, "payable reduced"},
		{RoleInventory, SideCredit, selGross, "goods returned"},
	},
}

// PostingService turns business amounts into balanced journal entries
// using the fixed rule table and a tenant's account mapping.
type PostingService struct {
	mapping AccountMapping
	tree    *AccountTree
}

// NewPostingService creates a posting service. The mapping is validated
// against the tree up front so BuildEntry never hits an unmapped role.
func NewPostingService(mapping AccountMapping, tree *AccountTree) (*PostingService, error) {
	if err := mapping.Validate(tree); err != nil {
		return nil, err
	}
	return &PostingService{mapping: mapping, tree: tree}, nil
}

// BuildEntry assembles the journal entry for one business transaction.
// Lines with a zero amount are skipped; a negative component is a bug
// in the caller and rejected. The balance invariant is re-checked by
// NewJournalEntry, so a broken rule table cannot produce an imbalanced
// entry, it produces an IMBALANCED_ENTRY error instead.
func (s *PostingService) BuildEntry(tenantID uuid.UUID, entryNumber string, entryType EntryType, businessDate time.Time, sourceDocumentID *uuid.UUID, description string, amounts PostingAmounts) (*JournalEntry, error) {
	rules, ok := postingRules[entryType]
	if !ok {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("no posting rules for entry type %s", entryType))
	}

	lines := make([]JournalLine, 0, len(rules))
	for _, rule := range rules {
		amount := rule.amount(amounts)
		if amount.IsZero() {
			continue
		}
		if amount.IsNegative() {
			return nil, shared.NewDomainError("INVALID_INPUT",
				fmt.Sprintf("negative posting amount %s for role %s", amount, rule.role))
		}

		account, err := s.tree.Postable(s.mapping[rule.role])
		if err != nil {
			return nil, err
		}
		lines = append(lines, JournalLine{
			ID:          uuid.New(),
			AccountID:   account.ID,
			AccountCode: account.Code,
			Side:        rule.side,
			Amount:      amount,
			Memo:        rule.memo,
		})
	}

	return NewJournalEntry(tenantID, entryNumber, entryType, businessDate, sourceDocumentID, description, lines)
}
