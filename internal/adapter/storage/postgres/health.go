package postgres

import (
	"context"
	"fmt"
)

// HealthCheck implements ports.HealthChecker for PostgreSQL.
type HealthCheck struct {
	pool Pool
}

// NewHealthCheck creates a PostgreSQL health checker.
func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping checks connectivity and that the schema has been applied.
func (h *HealthCheck) Ping(ctx context.Context) error {
	var settingsRows int
	if err := h.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reward_settings`).Scan(&settingsRows); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	if settingsRows == 0 {
		return fmt.Errorf("postgres ping: schema not migrated")
	}
	return nil
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "postgresql"
}
