package settlement

import (
	"sort"

	"github.com/erp/setoff/internal/domain/shared/valueobject"
)

// BuildFIFOAllocations spreads an amount over open lines oldest-first,
// by business date and then document number. It is a caller-side
// selection helper layered above the engine; the engine itself applies
// allocations strictly in the order it receives them.
//
// Returns the allocation list and the unspread remainder. A positive
// remainder is the caller's to handle, typically banked as a new
// prepayment credit.
func BuildFIFOAllocations(lines []*SourceLine, amount valueobject.Money) ([]AllocationInput, valueobject.Money, error) {
	if !amount.IsPositive() {
		return nil, valueobject.Money{}, ErrInvalidAmount("amount to allocate")
	}

	ordered := make([]*SourceLine, len(lines))
	copy(ordered, lines)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].BusinessDate.Equal(ordered[j].BusinessDate) {
			return ordered[i].BusinessDate.Before(ordered[j].BusinessDate)
		}
		return ordered[i].DocumentNumber < ordered[j].DocumentNumber
	})

	remaining := amount
	allocations := make([]AllocationInput, 0, len(ordered))
	for _, line := range ordered {
		if remaining.IsZero() {
			break
		}
		outstanding := line.Outstanding()
		if !outstanding.IsPositive() {
			continue
		}

		slice := outstanding
		less, err := remaining.LessThan(outstanding)
		if err != nil {
			return nil, valueobject.Money{}, err
		}
		if less {
			slice = remaining
		}

		allocations = append(allocations, AllocationInput{Ref: line.Ref, Amount: slice})
		remaining = remaining.MustSubtract(slice)
	}

	return allocations, remaining, nil
}
