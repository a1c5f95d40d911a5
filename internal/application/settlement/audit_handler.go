package settlement

import (
	"context"

	"github.com/erp/setoff/internal/domain/accounting"
	"github.com/erp/setoff/internal/domain/settlement"
	"github.com/erp/setoff/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditLogHandler writes one structured log line per committed
// settlement fact. It is the default subscriber; external integrations
// register their own handlers for the same events.
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates a new AuditLogHandler
func NewAuditLogHandler(logger *zap.Logger) *AuditLogHandler {
	return &AuditLogHandler{logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *AuditLogHandler) EventTypes() []string {
	return []string{
		settlement.EventTypeSettlementPosted,
		settlement.EventTypeSettlementReversed,
		settlement.EventTypePrepaymentIssued,
		accounting.EventTypeJournalEntryPosted,
		accounting.EventTypeJournalEntryReversed,
	}
}

// Handle logs the event with its business identifiers
func (h *AuditLogHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("tenant_id", event.TenantID().String()),
	}

	switch e := event.(type) {
	case *settlement.SettlementPostedEvent:
		fields = append(fields,
			zap.String("document_number", e.DocumentNumber),
			zap.String("direction", string(e.Direction)),
			zap.String("total_amount", e.TotalAmount),
			zap.Int("line_count", e.LineCount),
		)
	case *settlement.SettlementReversedEvent:
		fields = append(fields,
			zap.String("document_number", e.DocumentNumber),
			zap.String("reason", e.Reason),
		)
	case *settlement.PrepaymentIssuedEvent:
		fields = append(fields,
			zap.String("direction", string(e.Direction)),
			zap.String("amount", e.Amount),
		)
	case *accounting.JournalEntryPostedEvent:
		fields = append(fields,
			zap.String("entry_number", e.EntryNumber),
			zap.String("entry_type", string(e.EntryType)),
		)
	case *accounting.JournalEntryReversedEvent:
		fields = append(fields,
			zap.String("entry_number", e.EntryNumber),
		)
	}

	h.logger.Info("settlement audit", fields...)
	return nil
}

var _ shared.EventHandler = (*AuditLogHandler)(nil)
