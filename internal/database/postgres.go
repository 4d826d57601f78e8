package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stemsi/classcard/internal/config"
)

// NewPostgresPool connects to the class and enrollment database and checks
// that the schema from migrations/ has been applied.
func NewPostgresPool(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pgxpool.Pool, error) {
	log = log.With().Str("component", "postgres").Logger()

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxDBConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	var migrated bool
	if err := pool.QueryRow(ctx,
		`SELECT to_regclass('public.classes') IS NOT NULL AND to_regclass('public.students') IS NOT NULL`,
	).Scan(&migrated); err != nil {
		pool.Close()
		return nil, fmt.Errorf("check schema: %w", err)
	}
	if !migrated {
		log.Warn().Msg("classes/students tables missing; run `migrate up` before serving cards")
	}

	log.Info().
		Str("database", poolCfg.ConnConfig.Database).
		Int32("max_conns", cfg.MaxDBConns).
		Bool("migrated", migrated).
		Msg("PostgreSQL connected")

	return pool, nil
}
