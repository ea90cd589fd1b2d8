package telemetry

import (
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig controls the gorm tracing plugin. Slow statements are
// reported by the gorm logger, not here.
type DBTracingConfig struct {
	Enabled bool
	DBName  string
	// IncludeVariables puts bound query arguments on spans; keep off in production
	IncludeVariables bool
	// TracerProvider defaults to the global provider
	TracerProvider trace.TracerProvider
}

// RegisterDBTracing installs otelgorm on db so every statement gets a child
// span of the request or sync span in its context
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.IncludeVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(cfg.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.String("db_name", cfg.DBName),
		zap.Bool("include_variables", cfg.IncludeVariables),
	)
	return nil
}
