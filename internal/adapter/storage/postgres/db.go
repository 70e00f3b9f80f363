package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"note-issuance-engine/config"
	"note-issuance-engine/internal/core/ports"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

//go:embed schema.sql
var schema string

// NewPool creates a PostgreSQL connection pool using pgx.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("dbname", cfg.DBName).
		Int32("max_conns", cfg.MaxConns).
		Msg("PostgreSQL connection pool established")

	return pool, nil
}

// Migrate applies the idempotent schema.
func Migrate(ctx context.Context, pool Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// NewRepositories wires every PostgreSQL repository over one pool.
func NewRepositories(pool Pool) ports.Repositories {
	return ports.Repositories{
		Series:        NewSeriesRepo(pool),
		Denominations: NewDenominationRepo(pool),
		Rarities:      NewRarityRepo(pool),
		Rewards:       NewRewardRepo(pool),
		Notes:         NewNoteRepo(pool),
		Serials:       NewSerialCounterRepo(pool),
		Settlements:   NewSettlementRepo(pool),
		GrantLogs:     NewGrantLogRepo(pool),
		Events:        NewEventRepo(pool),
		Transactor:    NewTransactor(pool),
	}
}
