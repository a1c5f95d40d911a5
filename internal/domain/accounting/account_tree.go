package accounting

import (
	"fmt"
	"sort"

	"github.com/erp/setoff/internal/domain/shared"
)

// AccountTree is an in-memory index over a tenant's chart of accounts.
// It validates structural integrity on construction so lookups during
// posting never have to re-check parent references.
type AccountTree struct {
	byCode   map[string]*AccountItem
	children map[string][]string
	roots    []string
}

// BuildAccountTree indexes the given accounts and validates the structure:
// codes must be unique, every parent must exist, parent chains must be
// acyclic, and only SUMMARY accounts may have children.
func BuildAccountTree(accounts []*AccountItem) (*AccountTree, error) {
	t := &AccountTree{
		byCode:   make(map[string]*AccountItem, len(accounts)),
		children: make(map[string][]string),
	}

	for _, a := range accounts {
		if _, dup := t.byCode[a.Code]; dup {
			return nil, shared.NewDomainError("DUPLICATE_ACCOUNT_CODE", fmt.Sprintf("duplicate account code: %s", a.Code))
		}
		t.byCode[a.Code] = a
	}

	for _, a := range t.byCode {
		if a.ParentCode == "" {
			t.roots = append(t.roots, a.Code)
			continue
		}
		parent, ok := t.byCode[a.ParentCode]
		if !ok {
			return nil, shared.NewDomainError("PARENT_ACCOUNT_NOT_FOUND", fmt.Sprintf("account %s references missing parent %s", a.Code, a.ParentCode))
		}
		if parent.Kind != AccountKindSummary {
			return nil, shared.NewDomainError("INVALID_ACCOUNT_PARENT", fmt.Sprintf("account %s has non-summary parent %s", a.Code, a.ParentCode))
		}
		t.children[a.ParentCode] = append(t.children[a.ParentCode], a.Code)
	}

	if err := t.assignLevels(); err != nil {
		return nil, err
	}

	sort.Strings(t.roots)
	for _, codes := range t.children {
		sort.Strings(codes)
	}
	return t, nil
}

// assignLevels walks the tree from the roots and sets each node's depth.
// Any node unreachable from a root sits on a parent cycle.
func (t *AccountTree) assignLevels() error {
	visited := make(map[string]bool, len(t.byCode))
	queue := make([]string, 0, len(t.roots))
	for _, code := range t.roots {
		t.byCode[code].Level = 1
		visited[code] = true
		queue = append(queue, code)
	}

	for len(queue) > 0 {
		code := queue[0]
		queue = queue[1:]
		for _, child := range t.children[code] {
			t.byCode[child].Level = t.byCode[code].Level + 1
			visited[child] = true
			queue = append(queue, child)
		}
	}

	if len(visited) != len(t.byCode) {
		for code := range t.byCode {
			if !visited[code] {
				return shared.NewDomainError("ACCOUNT_CYCLE", fmt.Sprintf("account %s is part of a parent cycle", code))
			}
		}
	}
	return nil
}

// Get returns the account with the given code
func (t *AccountTree) Get(code string) (*AccountItem, error) {
	a, ok := t.byCode[code]
	if !ok {
		return nil, shared.NewDomainError("ACCOUNT_NOT_FOUND", fmt.Sprintf("account not found: %s", code))
	}
	return a, nil
}

// Postable returns the account with the given code if it accepts postings
func (t *AccountTree) Postable(code string) (*AccountItem, error) {
	a, err := t.Get(code)
	if err != nil {
		return nil, err
	}
	if !a.IsPostable() {
		return nil, shared.NewDomainError("ACCOUNT_NOT_POSTABLE", fmt.Sprintf("account %s is not a postable detail account", code))
	}
	return a, nil
}

// Children returns the direct child codes of the given account
func (t *AccountTree) Children(code string) []string {
	return t.children[code]
}

// Roots returns the top-level account codes
func (t *AccountTree) Roots() []string {
	return t.roots
}

// Size returns the number of accounts in the tree
func (t *AccountTree) Size() int {
	return len(t.byCode)
}

// Walk visits every account in depth-first order starting from the roots
func (t *AccountTree) Walk(fn func(a *AccountItem)) {
	var visit func(code string)
	visit = func(code string) {
		fn(t.byCode[code])
		for _, child := range t.children[code] {
			visit(child)
		}
	}
	for _, root := range t.roots {
		visit(root)
	}
}
