package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultSlowQueryThreshold flags statements slower than this on the span.
const DefaultSlowQueryThreshold = 200 * time.Millisecond

// DBTracingConfig controls the GORM tracing plugin.
type DBTracingConfig struct {
	Enabled            bool
	RecordSQLVariables bool // bind parameters end up in span attributes, keep off outside development
	SlowQueryThreshold time.Duration
}

// RegisterDBTracing attaches the otelgorm plugin to db, plus callbacks
// that flag slow and failed statements on the active span. A disabled
// config is a no-op.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, log *zap.Logger) error {
	if !cfg.Enabled {
		log.Debug("database tracing disabled")
		return nil
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = DefaultSlowQueryThreshold
	}

	opts := []otelgorm.Option{otelgorm.WithDBName("postgres")}
	if !cfg.RecordSQLVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	marker := &statementMarker{slow: cfg.SlowQueryThreshold}
	if err := marker.register(db); err != nil {
		return err
	}

	log.Info("database tracing enabled",
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
		zap.Bool("record_sql_variables", cfg.RecordSQLVariables),
	)
	return nil
}

type statementStartKey struct{}

// statementMarker annotates the otelgorm span with the touched table,
// affected row count, error status and a slow flag.
type statementMarker struct {
	slow time.Duration
}

func (m *statementMarker) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, statementStartKey{}, time.Now())
	}
}

func (m *statementMarker) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

	// ErrRecordNotFound is an answer, not a failure
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
	}

	if start, ok := ctx.Value(statementStartKey{}).(time.Time); ok {
		if elapsed := time.Since(start); elapsed > m.slow {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
		}
	}
}

func (m *statementMarker) register(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register("db_tracing:before_create", m.before); err != nil {
		return err
	}
	if err := db.Callback().Query().Before("gorm:query").Register("db_tracing:before_query", m.before); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("db_tracing:before_update", m.before); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("db_tracing:before_delete", m.before); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("db_tracing:before_row", m.before); err != nil {
		return err
	}
	if err := db.Callback().Raw().Before("gorm:raw").Register("db_tracing:before_raw", m.before); err != nil {
		return err
	}

	if err := db.Callback().Create().After("gorm:create").Register("db_tracing:after_create", m.after); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register("db_tracing:after_query", m.after); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("db_tracing:after_update", m.after); err != nil {
		return err
	}
	if err := db.Callback().Delete().After("gorm:delete").Register("db_tracing:after_delete", m.after); err != nil {
		return err
	}
	if err := db.Callback().Row().After("gorm:row").Register("db_tracing:after_row", m.after); err != nil {
		return err
	}
	return db.Callback().Raw().After("gorm:raw").Register("db_tracing:after_raw", m.after)
}
