package trust

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the trust relationship store against PostgreSQL.
//
// Two pieces of locking discipline live here and nowhere else: creation
// races are resolved by the wallet_trust_live_uniq partial unique index,
// and transition races by a conditional UPDATE that only fires while the
// row is still in the requested state.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a trust Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const trustColumns = `id, actor_wallet_id, target_wallet_id, originator_wallet_id,
	request_type, state, created_at, updated_at`

func scanTrust(row pgx.Row) (*TrustRelationship, error) {
	var tr TrustRelationship
	if err := row.Scan(
		&tr.ID, &tr.ActorWalletID, &tr.TargetWalletID, &tr.OriginatorWalletID,
		&tr.RequestType, &tr.State, &tr.CreatedAt, &tr.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &tr, nil
}

// GetByID fetches a single relationship.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*TrustRelationship, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+trustColumns+` FROM wallet_trust WHERE id = $1`, id)
	tr, err := scanTrust(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query trust relationship: %w", err)
	}
	return tr, nil
}

// GetScoped fetches a relationship visible to the given wallet. A row the
// wallet is not a party to reads as absent, never as forbidden — the
// caller must not learn the row exists.
func (r *Repository) GetScoped(ctx context.Context, walletID, id uuid.UUID) (*TrustRelationship, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+trustColumns+` FROM wallet_trust
		 WHERE id = $1 AND (actor_wallet_id = $2 OR target_wallet_id = $2)`,
		id, walletID)
	tr, err := scanTrust(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query scoped trust relationship: %w", err)
	}
	return tr, nil
}

// List returns relationships where the wallet is actor or target, with
// optional state/request_type filters and offset/limit paging. The query
// is assembled from the present fields of the filter struct only; filter
// values are always bound as parameters.
func (r *Repository) List(ctx context.Context, f Filter) ([]*TrustRelationship, error) {
	q := `SELECT ` + trustColumns + ` FROM wallet_trust
	      WHERE (actor_wallet_id = $1 OR target_wallet_id = $1)`
	args := []any{f.WalletID}

	if f.State != "" {
		args = append(args, f.State)
		q += fmt.Sprintf(" AND state = $%d", len(args))
	}
	if f.RequestType != "" {
		args = append(args, f.RequestType)
		q += fmt.Sprintf(" AND request_type = $%d", len(args))
	}
	q += " ORDER BY created_at"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list trust relationships: %w", err)
	}
	defer rows.Close()

	var out []*TrustRelationship
	for rows.Next() {
		tr, err := scanTrust(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trust relationship: %w", err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// Create inserts a relationship in the requested state. A live duplicate
// (same actor, target, request_type in requested or trusted state) maps
// to ErrConflict via the partial unique index, so concurrent identical
// requests cannot produce two rows.
func (r *Repository) Create(ctx context.Context, tr *TrustRelationship) error {
	if tr.ActorWalletID == tr.TargetWalletID {
		return ErrSelfTrust
	}
	tr.ID = uuid.New()
	tr.State = StateRequested
	now := time.Now().UTC()
	tr.CreatedAt = now
	tr.UpdatedAt = now

	q := `INSERT INTO wallet_trust
	      (id, actor_wallet_id, target_wallet_id, originator_wallet_id, request_type, state, created_at, updated_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, q,
		tr.ID, tr.ActorWalletID, tr.TargetWalletID, tr.OriginatorWalletID,
		tr.RequestType, tr.State, tr.CreatedAt, tr.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: a live %s relationship between these wallets already exists",
				ErrConflict, tr.RequestType)
		}
		return fmt.Errorf("create trust relationship: %w", err)
	}
	return nil
}

// Accept transitions requested → trusted. Only the target wallet may
// accept.
func (r *Repository) Accept(ctx context.Context, walletID, id uuid.UUID) (*TrustRelationship, error) {
	tr, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tr.TargetWalletID != walletID {
		return nil, fmt.Errorf("%w: only the target wallet may accept", ErrForbidden)
	}
	return r.transition(ctx, id, StateTrusted)
}

// Decline transitions requested → canceled_by_target. Only the target
// wallet may decline.
func (r *Repository) Decline(ctx context.Context, walletID, id uuid.UUID) (*TrustRelationship, error) {
	tr, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tr.TargetWalletID != walletID {
		return nil, fmt.Errorf("%w: only the target wallet may decline", ErrForbidden)
	}
	return r.transition(ctx, id, StateCanceledByTarget)
}

// Cancel transitions requested → canceled_by_originator. Only the wallet
// that originated the request may cancel it.
func (r *Repository) Cancel(ctx context.Context, walletID, id uuid.UUID) (*TrustRelationship, error) {
	tr, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tr.OriginatorWalletID != walletID {
		return nil, fmt.Errorf("%w: only the originator may cancel", ErrForbidden)
	}
	return r.transition(ctx, id, StateCanceledByOriginator)
}

// transition applies a compare-and-set state change: the UPDATE only
// matches while the row is still in the requested state, so of two
// concurrent transitions exactly one wins and the other gets ErrConflict.
func (r *Repository) transition(ctx context.Context, id uuid.UUID, to State) (*TrustRelationship, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE wallet_trust SET state = $2, updated_at = $3
		 WHERE id = $1 AND state = $4
		 RETURNING `+trustColumns,
		id, to, time.Now().UTC(), StateRequested)
	tr, err := scanTrust(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: relationship is no longer in the requested state", ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("transition trust relationship: %w", err)
	}
	return tr, nil
}
