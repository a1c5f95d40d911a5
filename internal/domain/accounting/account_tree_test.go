package accounting

import (
	"testing"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAccount(t *testing.T, tenantID uuid.UUID, code, name string, kind AccountKind, direction AccountDirection, parentCode string) *AccountItem {
	t.Helper()
	a, err := NewAccountItem(tenantID, code, name, kind, direction, parentCode)
	require.NoError(t, err)
	return a
}

func testChart(t *testing.T, tenantID uuid.UUID) []*AccountItem {
	t.Helper()
	return []*AccountItem{
		mustAccount(t, tenantID, "1", "Assets", AccountKindSummary, DirectionDebit, ""),
		mustAccount(t, tenantID, "2", "Liabilities", AccountKindSummary, DirectionCredit, ""),
		mustAccount(t, tenantID, "1001", "Cash and Bank", AccountKindDetail, DirectionDebit, "1"),
		mustAccount(t, tenantID, "1122", "Accounts Receivable", AccountKindDetail, DirectionDebit, "1"),
		mustAccount(t, tenantID, "1123", "Supplier Advances", AccountKindDetail, DirectionDebit, "1"),
		mustAccount(t, tenantID, "1405", "Inventory", AccountKindDetail, DirectionDebit, "1"),
		mustAccount(t, tenantID, "2202", "Accounts Payable", AccountKindDetail, DirectionCredit, "2"),
		mustAccount(t, tenantID, "2203", "Customer Prepayments", AccountKindDetail, DirectionCredit, "2"),
		mustAccount(t, tenantID, "6001", "Sales Revenue", AccountKindDetail, DirectionCredit, ""),
		mustAccount(t, tenantID, "6401", "Sales Allowances", AccountKindDetail, DirectionDebit, ""),
		mustAccount(t, tenantID, "6402", "Purchase Allowances", AccountKindDetail, DirectionCredit, ""),
	}
}

func TestBuildAccountTree(t *testing.T) {
	tenantID := uuid.New()

	t.Run("builds valid tree with levels", func(t *testing.T) {
		tree, err := BuildAccountTree(testChart(t, tenantID))
		require.NoError(t, err)

		assert.Equal(t, 11, tree.Size())
		assert.Equal(t, []string{"1", "2", "6001", "6401", "6402"}, tree.Roots())
		assert.Equal(t, []string{"1001", "1122", "1123", "1405"}, tree.Children("1"))

		assets, err := tree.Get("1")
		require.NoError(t, err)
		assert.Equal(t, 1, assets.Level)

		cash, err := tree.Get("1001")
		require.NoError(t, err)
		assert.Equal(t, 2, cash.Level)
	})

	t.Run("rejects duplicate codes", func(t *testing.T) {
		accounts := []*AccountItem{
			mustAccount(t, tenantID, "1001", "Cash", AccountKindDetail, DirectionDebit, ""),
			mustAccount(t, tenantID, "1001", "Cash Again", AccountKindDetail, DirectionDebit, ""),
		}
		_, err := BuildAccountTree(accounts)
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "DUPLICATE_ACCOUNT_CODE", de.Code)
	})

	t.Run("rejects missing parent", func(t *testing.T) {
		accounts := []*AccountItem{
			mustAccount(t, tenantID, "1001", "Cash", AccountKindDetail, DirectionDebit, "9999"),
		}
		_, err := BuildAccountTree(accounts)
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "PARENT_ACCOUNT_NOT_FOUND", de.Code)
	})

	t.Run("rejects detail account as parent", func(t *testing.T) {
		accounts := []*AccountItem{
			mustAccount(t, tenantID, "1001", "Cash", AccountKindDetail, DirectionDebit, ""),
			mustAccount(t, tenantID, "100101", "Petty Cash", AccountKindDetail, DirectionDebit, "1001"),
		}
		_, err := BuildAccountTree(accounts)
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "INVALID_ACCOUNT_PARENT", de.Code)
	})

	t.Run("rejects parent cycle", func(t *testing.T) {
		a := mustAccount(t, tenantID, "10", "Group A", AccountKindSummary, DirectionDebit, "")
		b := mustAccount(t, tenantID, "20", "Group B", AccountKindSummary, DirectionDebit, "")
		a.ParentCode = "20"
		b.ParentCode = "10"

		_, err := BuildAccountTree([]*AccountItem{a, b})
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "ACCOUNT_CYCLE", de.Code)
	})
}

func TestAccountTree_Postable(t *testing.T) {
	tenantID := uuid.New()
	tree, err := BuildAccountTree(testChart(t, tenantID))
	require.NoError(t, err)

	t.Run("active detail account is postable", func(t *testing.T) {
		a, err := tree.Postable("1001")
		require.NoError(t, err)
		assert.Equal(t, "1001", a.Code)
	})

	t.Run("summary account is not postable", func(t *testing.T) {
		_, err := tree.Postable("1")
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "ACCOUNT_NOT_POSTABLE", de.Code)
	})

	t.Run("unknown code reports account not found", func(t *testing.T) {
		_, err := tree.Postable("9999")
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "ACCOUNT_NOT_FOUND", de.Code)
	})

	t.Run("disabled account is not postable", func(t *testing.T) {
		chart := testChart(t, tenantID)
		for _, a := range chart {
			if a.Code == "1001" {
				a.Disable()
			}
		}
		disabledTree, err := BuildAccountTree(chart)
		require.NoError(t, err)

		_, err = disabledTree.Postable("1001")
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "ACCOUNT_NOT_POSTABLE", de.Code)
	})
}

func TestAccountTree_Walk(t *testing.T) {
	tenantID := uuid.New()
	tree, err := BuildAccountTree(testChart(t, tenantID))
	require.NoError(t, err)

	var codes []string
	tree.Walk(func(a *AccountItem) { codes = append(codes, a.Code) })

	assert.Len(t, codes, tree.Size())
	assert.Equal(t, "1", codes[0])
	assert.Equal(t, "1001", codes[1])
}
