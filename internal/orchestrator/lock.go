package orchestrator

import (
	"context"
	"database/sql"
)

// advisoryLockKey is the fixed Postgres advisory lock key serializing runs
// across processes. A single fixed key is correct because exactly one
// logical pipeline runs against a given database.
const advisoryLockKey int64 = 847291640125

// lockHolder pins the advisory lock's acquire and release to the exact same
// backend session. pg_try_advisory_lock/pg_advisory_unlock are session-scoped
// in Postgres: calling them against a *sql.DB directly lets the pool hand
// back a different physical connection for each call, so the release can
// silently fail to unlock the session that actually holds it. Routing both
// calls through one dedicated *sql.Conn for the run's lifetime avoids that.
type lockHolder struct {
	conn *sql.Conn
}

// acquireLock reserves a single connection from db and attempts the named
// advisory lock on it without blocking. A false result means another process
// already holds it, and the reserved connection is released back to the pool
// before returning; the caller only needs to call release on a non-nil
// holder.
func acquireLock(ctx context.Context, db *sql.DB) (*lockHolder, bool, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, false, err
	}

	var acquired bool

	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, advisoryLockKey).Scan(&acquired); err != nil {
		conn.Close() //nolint:errcheck

		return nil, false, err
	}

	if !acquired {
		conn.Close() //nolint:errcheck

		return nil, false, nil
	}

	return &lockHolder{conn: conn}, true, nil
}

// release unlocks the advisory lock on the session that acquired it, then
// returns the connection to the pool. It logs nothing itself; callers decide
// how to report a failed release.
func (h *lockHolder) release(ctx context.Context) error {
	defer h.conn.Close() //nolint:errcheck

	_, err := h.conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, advisoryLockKey)

	return err
}
