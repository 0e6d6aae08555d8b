package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fastygo/taskpulse/internal/config"
)

// NewPool opens the task store pool. Sessions run in the calendar timezone so
// timestamps rendered by SQL (date_trunc, ::date) agree with the views.
func NewPool(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db := cfg.Database

	pgxCfg, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, err
	}

	if db.MaxOpenConns > 0 {
		pgxCfg.MaxConns = int32(db.MaxOpenConns)
	}
	if db.MaxIdleConns > 0 {
		pgxCfg.MinConns = int32(db.MaxIdleConns)
	}
	if db.MaxConnLifetime > 0 {
		pgxCfg.MaxConnLifetime = db.MaxConnLifetime
	}
	pgxCfg.HealthCheckPeriod = 30 * time.Second

	params := pgxCfg.ConnConfig.RuntimeParams
	if cfg.AppName != "" {
		params["application_name"] = cfg.AppName
	}
	if tz := cfg.Calendar.Timezone; tz != "" {
		params["timezone"] = tz
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("task store connected",
		zap.String("host", pgxCfg.ConnConfig.Host),
		zap.String("db", pgxCfg.ConnConfig.Database),
		zap.Int32("max_conns", pgxCfg.MaxConns),
		zap.String("timezone", params["timezone"]),
	)
	return pool, nil
}

// Close releases the pool, logging how many connections were still checked out.
func Close(pool *pgxpool.Pool, logger *zap.Logger) {
	if pool == nil {
		return
	}
	inUse := pool.Stat().AcquiredConns()
	pool.Close()
	if logger != nil {
		logger.Info("task store pool closed", zap.Int32("acquired_at_close", inUse))
	}
}
