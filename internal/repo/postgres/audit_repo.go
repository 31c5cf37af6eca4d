package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	adminsvc "github.com/thecompanyunltd/nightvibe/internal/services/admin"
)

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Append writes entries in one batch.
func (r *AuditRepo) Append(ctx context.Context, entries ...adminsvc.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	const query = `
INSERT INTO admin_audit (
	actor_id,
	action,
	target_id,
	payload,
	occurred_at
) VALUES (
	$1,
	$2,
	$3,
	$4::jsonb,
	$5
)
`

	batch := &pgx.Batch{}
	for _, entry := range entries {
		payload := []byte("{}")
		if len(entry.Payload) > 0 {
			var err error
			payload, err = json.Marshal(entry.Payload)
			if err != nil {
				return fmt.Errorf("marshal audit payload: %w", err)
			}
		}

		occurredAt := entry.OccurredAt.UTC()
		if occurredAt.IsZero() {
			occurredAt = time.Now().UTC()
		}
		batch.Queue(query, entry.ActorID, entry.Action, entry.TargetID, string(payload), occurredAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert audit batch item #%d: %w", i, err)
		}
	}
	return nil
}

func (r *AuditRepo) List(ctx context.Context, limit int) ([]adminsvc.AuditEntry, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, actor_id, action, target_id, payload, occurred_at
FROM admin_audit
ORDER BY occurred_at DESC, id DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	out := make([]adminsvc.AuditEntry, 0, limit)
	for rows.Next() {
		var (
			entry   adminsvc.AuditEntry
			payload []byte
		)
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.TargetID, &payload, &entry.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &entry.Payload); err != nil {
				return nil, fmt.Errorf("decode audit payload: %w", err)
			}
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}
	return out, nil
}
