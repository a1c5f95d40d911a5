package settlement

import (
	"context"
	"errors"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// OutstandingResolver answers "how much of this line is still open".
// Pure read: it consults the line's running allocated total, which the
// engine maintains, instead of summing allocation history.
type OutstandingResolver struct {
	lines SourceLineRepository
}

// NewOutstandingResolver creates an outstanding balance resolver
func NewOutstandingResolver(lines SourceLineRepository) *OutstandingResolver {
	return &OutstandingResolver{lines: lines}
}

// Outstanding returns the unsettled amount of one source line
func (r *OutstandingResolver) Outstanding(ctx context.Context, tenantID uuid.UUID, ref SourceLineRef) (valueobject.Money, error) {
	line, err := r.lines.FindByRef(ctx, tenantID, ref)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return valueobject.Money{}, ErrLineNotFound(ref)
		}
		return valueobject.Money{}, err
	}
	return line.Outstanding(), nil
}

// Resolve loads a batch of lines keyed by reference. Every requested
// reference must resolve; one miss fails the whole batch.
func (r *OutstandingResolver) Resolve(ctx context.Context, tenantID uuid.UUID, refs []SourceLineRef) (map[SourceLineRef]*SourceLine, error) {
	found, err := r.lines.FindByRefs(ctx, tenantID, refs)
	if err != nil {
		return nil, err
	}

	byRef := make(map[SourceLineRef]*SourceLine, len(found))
	for _, line := range found {
		byRef[line.Ref] = line
	}
	for _, ref := range refs {
		if _, ok := byRef[ref]; !ok {
			return nil, ErrLineNotFound(ref)
		}
	}
	return byRef, nil
}
