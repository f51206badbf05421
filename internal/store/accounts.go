package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hyperalpha/arena/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// AccountStore persists trading accounts.
type AccountStore struct {
	db *pgxpool.Pool
}

// NewAccountStore creates an account repository.
func NewAccountStore(db *pgxpool.Pool) *AccountStore {
	return &AccountStore{db: db}
}

const accountColumns = `id, name, wallet_address, private_key_enc, model_name,
	model_base_url, model_api_key_enc, environment, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.Name, &a.WalletAddress, &a.PrivateKeyEnc, &a.ModelName,
		&a.ModelBaseURL, &a.ModelAPIKeyEnc, &a.Environment, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return a, ErrNotFound
	}
	return a, err
}

// Create inserts a new account.
func (s *AccountStore) Create(ctx context.Context, a model.Account) (model.Account, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.db.Exec(ctx, `
		INSERT INTO accounts (id, name, wallet_address, private_key_enc, model_name,
			model_base_url, model_api_key_enc, environment, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, a.ID, a.Name, a.WalletAddress, a.PrivateKeyEnc, a.ModelName,
		a.ModelBaseURL, a.ModelAPIKeyEnc, a.Environment, a.IsActive, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return model.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return a, nil
}

// Get fetches one account by ID.
func (s *AccountStore) Get(ctx context.Context, id uuid.UUID) (model.Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// ListActive returns active accounts ordered by name.
func (s *AccountStore) ListActive(ctx context.Context) ([]model.Account, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetActive toggles an account's active flag.
func (s *AccountStore) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	ct, err := s.db.Exec(ctx, `
		UPDATE accounts SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
