package telemetry

import (
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing
type DBTracingConfig struct {
	Enabled         bool
	DBName          string
	IncludeSQLVars  bool // include bound values in db.statement; keep off outside development
	SlowQueryThresh time.Duration
}

// DefaultDBTracingConfig returns the default database tracing configuration
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:         false,
		DBName:          "invoicing",
		SlowQueryThresh: 200 * time.Millisecond,
	}
}

// DBTracingPlugin is a gorm.Plugin that registers otelgorm spans plus a slow-statement marker
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a new database tracing plugin
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBTracingPlugin{config: cfg, logger: logger}
}

// Name implements gorm.Plugin
func (p *DBTracingPlugin) Name() string {
	return "invoicing:db_tracing"
}

// Initialize implements gorm.Plugin
func (p *DBTracingPlugin) Initialize(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBName)}
	if !p.config.IncludeSQLVars {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register("invoicing:timing_create", markStart); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("invoicing:timing_query", markStart); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("invoicing:timing_update", markStart); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("invoicing:timing_delete", markStart); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("invoicing:slow_create", p.afterStatement); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("invoicing:slow_query", p.afterStatement); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("invoicing:slow_update", p.afterStatement); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("invoicing:slow_delete", p.afterStatement); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.String("db_name", p.config.DBName),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
	)
	return nil
}

const startedAtKey = "invoicing:started_at"

func markStart(db *gorm.DB) {
	db.InstanceSet(startedAtKey, time.Now())
}

// afterStatement annotates the active span with row counts, errors and slowness
func (p *DBTracingPlugin) afterStatement(db *gorm.DB) {
	if db.Statement.Context == nil {
		return
	}
	span := trace.SpanFromContext(db.Statement.Context)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		RecordError(span, db.Error)
	}

	v, ok := db.InstanceGet(startedAtKey)
	if !ok {
		return
	}
	started, ok := v.(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(started); elapsed > p.config.SlowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
}

// Ensure DBTracingPlugin implements gorm.Plugin
var _ gorm.Plugin = (*DBTracingPlugin)(nil)
