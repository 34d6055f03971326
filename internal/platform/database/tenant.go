package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InstanceSetting is the session variable the row-level security policies
// compare against.
const InstanceSetting = "app.current_instance_id"

// Querier abstracts pgx query methods so callers can work with both
// pool connections and transactions.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// WithTenantConnection acquires a dedicated connection from the pool,
// scopes it to one site instance for RLS, then calls fn. The setting is
// cleared before the connection goes back to the pool.
func WithTenantConnection(ctx context.Context, pool *pgxpool.Pool, instanceID string, fn func(ctx context.Context, q Querier) error) error {
	if instanceID == "" {
		return fmt.Errorf("instance id is required")
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer func() {
		// The request context may already be canceled here.
		_, _ = conn.Exec(context.Background(), "SELECT set_config($1, '', false)", InstanceSetting)
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "SELECT set_config($1, $2, false)", InstanceSetting, instanceID); err != nil {
		return fmt.Errorf("setting instance context: %w", err)
	}

	return fn(ctx, conn)
}
