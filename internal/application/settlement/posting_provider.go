package settlement

import (
	"context"

	"github.com/erp/setoff/internal/domain/accounting"
	"github.com/google/uuid"
)

// PostingProvider hands out a posting service wired to the tenant's
// current chart of accounts and role mapping. Implementations cache the
// account tree; the provider is the only place the tree is assembled.
type PostingProvider interface {
	PostingService(ctx context.Context, tenantID uuid.UUID) (*accounting.PostingService, error)
}
