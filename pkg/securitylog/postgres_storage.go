package securitylog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage persists events in a single append-only table.
//
// Expected schema:
//
//	CREATE TABLE security_events (
//	    id         UUID PRIMARY KEY,
//	    event_type TEXT NOT NULL,
//	    message    TEXT NOT NULL,
//	    ip_masked  TEXT NOT NULL,
//	    ip_hash    TEXT NOT NULL,
//	    account_id TEXT,
//	    context    JSONB,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX security_events_created_at_idx ON security_events (created_at DESC);
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a pgx-backed event storage.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

func (ps *PostgresStorage) Store(ctx context.Context, event Event) error {
	var contextJSON []byte
	if len(event.Context) > 0 {
		var err error
		contextJSON, err = json.Marshal(event.Context)
		if err != nil {
			return fmt.Errorf("marshal event context: %w", err)
		}
	}

	_, err := ps.pool.Exec(ctx,
		`INSERT INTO security_events (id, event_type, message, ip_masked, ip_hash, account_id, context, created_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)`,
		event.ID, string(event.Type), event.Message, event.IPMasked, event.IPHash,
		event.AccountID, contextJSON, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}

func (ps *PostgresStorage) List(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := ps.pool.Query(ctx,
		`SELECT id, event_type, message, ip_masked, ip_hash, COALESCE(account_id, ''), context, created_at
		 FROM security_events
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query security events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e           Event
			eventType   string
			contextJSON []byte
		)
		if err := rows.Scan(&e.ID, &eventType, &e.Message, &e.IPMasked, &e.IPHash, &e.AccountID, &contextJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan security event: %w", err)
		}
		e.Type = EventType(eventType)
		if len(contextJSON) > 0 {
			if err := json.Unmarshal(contextJSON, &e.Context); err != nil {
				return nil, fmt.Errorf("unmarshal event context: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (ps *PostgresStorage) Clear(ctx context.Context) error {
	if _, err := ps.pool.Exec(ctx, `DELETE FROM security_events`); err != nil {
		return fmt.Errorf("clear security events: %w", err)
	}
	return nil
}

func (ps *PostgresStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := ps.pool.Exec(ctx, `DELETE FROM security_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune security events: %w", err)
	}
	return tag.RowsAffected(), nil
}
