package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a wallet lookup finds no matching record,
// or when a name lookup matches more than one row (a data integrity
// violation that must never be papered over by returning one of them).
var ErrNotFound = errors.New("wallet not found")

// Repository provides wallet lookups against PostgreSQL. The wallet
// hierarchy is not stored as a tree; it is derived from trusted
// manage/yield edges in wallet_trust, so it self-updates as trust
// relationships change.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a wallet Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const walletColumns = `id, name, password_hash, logo_url, created_at`

// GetByName looks up a wallet by exact name. Exactly one row must match.
func (r *Repository) GetByName(ctx context.Context, name string) (*Wallet, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+walletColumns+` FROM wallet WHERE name = $1`, name)
	if err != nil {
		return nil, fmt.Errorf("query wallet by name: %w", err)
	}
	defer rows.Close()

	var list []*Wallet
	for rows.Next() {
		var w Wallet
		if err := rows.Scan(&w.ID, &w.Name, &w.PasswordHash, &w.LogoURL, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		list = append(list, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(list) != 1 {
		return nil, ErrNotFound
	}
	return list[0], nil
}

// GetByID looks up a wallet by its identifier.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Wallet, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+walletColumns+` FROM wallet WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("query wallet by id: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	var w Wallet
	if err := rows.Scan(&w.ID, &w.Name, &w.PasswordHash, &w.LogoURL, &w.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	return &w, rows.Err()
}

// Create inserts a new wallet record. Sets ID and CreatedAt on the wallet.
func (r *Repository) Create(ctx context.Context, w *Wallet) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	q := `INSERT INTO wallet (id, name, password_hash, logo_url)
	      VALUES ($1, $2, $3, $4)
	      RETURNING created_at`
	if err := r.db.QueryRow(ctx, q, w.ID, w.Name, w.PasswordHash, w.LogoURL).Scan(&w.CreatedAt); err != nil {
		return fmt.Errorf("create wallet: %w", err)
	}
	return nil
}

// hierarchyQuery selects the wallet itself plus every wallet reachable
// through its trusted manage/yield edges: targets that granted this wallet
// manage trust, and actors that yielded their assets to it. Only edges in
// the trusted state count; a mere request grants nothing.
const hierarchyQuery = `
	SELECT id, name, logo_url, created_at FROM wallet WHERE id = $1
	UNION
	SELECT w.id, w.name, w.logo_url, w.created_at
	FROM wallet_trust t
	JOIN wallet w ON t.target_wallet_id = w.id
	WHERE t.actor_wallet_id = $1
	  AND t.request_type = 'manage'
	  AND t.state = 'trusted'
	  AND ($2 = '' OR w.name ILIKE '%' || $2 || '%')
	UNION
	SELECT w.id, w.name, w.logo_url, w.created_at
	FROM wallet_trust t
	JOIN wallet w ON t.actor_wallet_id = w.id
	WHERE t.target_wallet_id = $1
	  AND t.request_type = 'yield'
	  AND t.state = 'trusted'
	  AND ($2 = '' OR w.name ILIKE '%' || $2 || '%')`

// GetAllWallets returns the wallet's full span of control: itself plus all
// trusted manage sub-wallets and reciprocal yield wallets. nameFilter is a
// case-insensitive substring match applied to the sub-wallets (the wallet
// itself is always included). When wantCount is true the second return
// value is the total match count before paging; otherwise it is zero.
func (r *Repository) GetAllWallets(ctx context.Context, id uuid.UUID, paging *Paging, nameFilter string, wantCount bool) ([]*Wallet, int, error) {
	q := hierarchyQuery + ` ORDER BY name`
	args := []any{id, nameFilter}
	if paging != nil && paging.Limit > 0 {
		args = append(args, paging.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if paging != nil && paging.Offset > 0 {
		args = append(args, paging.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query wallet hierarchy: %w", err)
	}
	defer rows.Close()

	var wallets []*Wallet
	for rows.Next() {
		var w Wallet
		if err := rows.Scan(&w.ID, &w.Name, &w.LogoURL, &w.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan hierarchy wallet: %w", err)
		}
		wallets = append(wallets, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	count := 0
	if wantCount {
		// Count over the same predicate, decoupled from paging.
		countQ := `SELECT count(*) FROM (` + hierarchyQuery + `) q`
		if err := r.db.QueryRow(ctx, countQ, id, nameFilter).Scan(&count); err != nil {
			return nil, 0, fmt.Errorf("count wallet hierarchy: %w", err)
		}
	}
	return wallets, count, nil
}
