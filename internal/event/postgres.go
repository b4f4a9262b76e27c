package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresNotifier persists events in the wallet_event table.
type PostgresNotifier struct {
	db *pgxpool.Pool
}

// NewPostgresNotifier creates a PostgresNotifier.
func NewPostgresNotifier(db *pgxpool.Pool) *PostgresNotifier {
	return &PostgresNotifier{db: db}
}

// LogEvent inserts a single event row.
func (n *PostgresNotifier) LogEvent(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	q := `INSERT INTO wallet_event (id, wallet_id, type, payload, created_at)
	      VALUES ($1, $2, $3, $4, $5)`
	if _, err := n.db.Exec(ctx, q, uuid.New(), ev.WalletID, string(ev.Type), payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert wallet event: %w", err)
	}
	return nil
}
