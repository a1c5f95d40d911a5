package accounting

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/setoff/internal/domain/accounting"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TreeInvalidator drops a tenant's cached account tree after a chart change
type TreeInvalidator interface {
	Invalidate(ctx context.Context, tenantID uuid.UUID) error
}

// AccountService maintains the chart of accounts. Every mutation is
// validated against the full tree before it is persisted, so a broken
// parent chain never reaches storage.
type AccountService struct {
	accounts    accounting.AccountItemRepository
	invalidator TreeInvalidator
	logger      *zap.Logger
}

// NewAccountService creates a new AccountService
func NewAccountService(accounts accounting.AccountItemRepository, invalidator TreeInvalidator, logger *zap.Logger) *AccountService {
	return &AccountService{accounts: accounts, invalidator: invalidator, logger: logger}
}

// CreateAccountRequest describes a new chart-of-accounts node
type CreateAccountRequest struct {
	TenantID   uuid.UUID
	Code       string
	Name       string
	Kind       accounting.AccountKind
	Direction  accounting.AccountDirection
	ParentCode string
}

// CreateAccount adds a node to the chart
func (s *AccountService) CreateAccount(ctx context.Context, req CreateAccountRequest) (*accounting.AccountItem, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "account", "create")
	defer span.End()

	account, err := accounting.NewAccountItem(req.TenantID, req.Code, req.Name, req.Kind, req.Direction, req.ParentCode)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	existing, err := s.accounts.FindAll(ctx, req.TenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load chart of accounts: %w", err)
	}
	if _, err := accounting.BuildAccountTree(append(existing, account)); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.accounts.Save(ctx, account); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("save account: %w", err)
	}
	s.invalidateTree(ctx, req.TenantID)

	s.logger.Info("account created",
		zap.String("code", account.Code),
		zap.String("kind", string(account.Kind)),
	)
	return account, nil
}

// DisableAccount stops an account from accepting new postings
func (s *AccountService) DisableAccount(ctx context.Context, tenantID uuid.UUID, code string) error {
	account, err := s.accounts.FindByCode(ctx, tenantID, code)
	if err != nil {
		return err
	}
	account.Disable()
	if err := s.accounts.Save(ctx, account); err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	s.invalidateTree(ctx, tenantID)
	return nil
}

// RenameAccount updates an account's display name
func (s *AccountService) RenameAccount(ctx context.Context, tenantID uuid.UUID, code, name string) error {
	account, err := s.accounts.FindByCode(ctx, tenantID, code)
	if err != nil {
		return err
	}
	if err := account.Rename(name); err != nil {
		return err
	}
	if err := s.accounts.Save(ctx, account); err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	s.invalidateTree(ctx, tenantID)
	return nil
}

// DeleteAccount removes a leaf node with no children. Accounts with
// posted history are protected at the storage layer by restrict
// constraints; the error surfaces unchanged.
func (s *AccountService) DeleteAccount(ctx context.Context, tenantID uuid.UUID, code string) error {
	existing, err := s.accounts.FindAll(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load chart of accounts: %w", err)
	}
	tree, err := accounting.BuildAccountTree(existing)
	if err != nil {
		return err
	}
	if _, err := tree.Get(code); err != nil {
		return err
	}
	if len(tree.Children(code)) > 0 {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("account %s still has child accounts", code))
	}

	if err := s.accounts.Delete(ctx, tenantID, code); err != nil {
		return err
	}
	s.invalidateTree(ctx, tenantID)
	return nil
}

// GetTree builds the tenant's validated account tree
func (s *AccountService) GetTree(ctx context.Context, tenantID uuid.UUID) (*accounting.AccountTree, error) {
	accounts, err := s.accounts.FindAll(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load chart of accounts: %w", err)
	}
	return accounting.BuildAccountTree(accounts)
}

// GetAccount loads one account by code
func (s *AccountService) GetAccount(ctx context.Context, tenantID uuid.UUID, code string) (*accounting.AccountItem, error) {
	account, err := s.accounts.FindByCode(ctx, tenantID, code)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("ACCOUNT_NOT_FOUND", fmt.Sprintf("account not found: %s", code))
		}
		return nil, err
	}
	return account, nil
}

func (s *AccountService) invalidateTree(ctx context.Context, tenantID uuid.UUID) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, tenantID); err != nil {
		s.logger.Warn("failed to invalidate account tree cache", zap.Error(err))
	}
}
