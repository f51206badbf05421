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
	"github.com/hyperalpha/arena/internal/prompt"
)

// ErrBuiltinImmutable is returned when a builtin template is modified
// or deleted through the API.
var ErrBuiltinImmutable = errors.New("store: builtin template is immutable")

// PromptStore persists prompt templates and account bindings.
type PromptStore struct {
	db *pgxpool.Pool
}

// NewPromptStore creates a prompt repository.
func NewPromptStore(db *pgxpool.Pool) *PromptStore {
	return &PromptStore{db: db}
}

const templateColumns = `id, name, description, body, is_builtin, created_at, updated_at`

func scanTemplate(row pgx.Row) (model.PromptTemplate, error) {
	var t model.PromptTemplate
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Body, &t.IsBuiltin, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}

// SeedBuiltins inserts the builtin templates if missing. Existing rows
// keep user edits to description but builtin bodies are refreshed.
func (s *PromptStore) SeedBuiltins(ctx context.Context) error {
	for _, b := range prompt.Builtins() {
		_, err := s.db.Exec(ctx, `
			INSERT INTO prompt_templates (id, name, description, body, is_builtin)
			VALUES ($1, $2, $3, $4, true)
			ON CONFLICT (name) DO UPDATE SET
				body = EXCLUDED.body,
				updated_at = now()
			WHERE prompt_templates.is_builtin
		`, uuid.New(), b.Name, b.Description, b.Body)
		if err != nil {
			return fmt.Errorf("seed template %s: %w", b.Name, err)
		}
	}
	return nil
}

// List returns all templates ordered by name.
func (s *PromptStore) List(ctx context.Context) ([]model.PromptTemplate, error) {
	rows, err := s.db.Query(ctx, `SELECT `+templateColumns+` FROM prompt_templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []model.PromptTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Get fetches one template by ID.
func (s *PromptStore) Get(ctx context.Context, id uuid.UUID) (model.PromptTemplate, error) {
	row := s.db.QueryRow(ctx, `SELECT `+templateColumns+` FROM prompt_templates WHERE id = $1`, id)
	return scanTemplate(row)
}

// Create inserts a user template.
func (s *PromptStore) Create(ctx context.Context, t model.PromptTemplate) (model.PromptTemplate, error) {
	t.ID = uuid.New()
	t.IsBuiltin = false
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.Exec(ctx, `
		INSERT INTO prompt_templates (id, name, description, body, is_builtin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, false, $5, $6)
	`, t.ID, t.Name, t.Description, t.Body, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return model.PromptTemplate{}, fmt.Errorf("insert template: %w", err)
	}
	return t, nil
}

// Update modifies a user template. Builtin templates are immutable.
func (s *PromptStore) Update(ctx context.Context, t model.PromptTemplate) (model.PromptTemplate, error) {
	existing, err := s.Get(ctx, t.ID)
	if err != nil {
		return model.PromptTemplate{}, err
	}
	if existing.IsBuiltin {
		return model.PromptTemplate{}, ErrBuiltinImmutable
	}

	t.UpdatedAt = time.Now().UTC()
	_, err = s.db.Exec(ctx, `
		UPDATE prompt_templates SET name = $2, description = $3, body = $4, updated_at = $5
		WHERE id = $1
	`, t.ID, t.Name, t.Description, t.Body, t.UpdatedAt)
	if err != nil {
		return model.PromptTemplate{}, fmt.Errorf("update template: %w", err)
	}
	t.IsBuiltin = false
	t.CreatedAt = existing.CreatedAt
	return t, nil
}

// Delete removes a user template. Builtin templates are immutable.
func (s *PromptStore) Delete(ctx context.Context, id uuid.UUID) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.IsBuiltin {
		return ErrBuiltinImmutable
	}
	_, err = s.db.Exec(ctx, `DELETE FROM prompt_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

// GetBinding returns the template bound to an account, or the builtin
// default when no binding exists.
func (s *PromptStore) GetBinding(ctx context.Context, accountID uuid.UUID) (model.PromptBinding, error) {
	var b model.PromptBinding
	err := s.db.QueryRow(ctx, `
		SELECT account_id, template_id, bound_at FROM prompt_bindings WHERE account_id = $1`,
		accountID).Scan(&b.AccountID, &b.TemplateID, &b.BoundAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return b, ErrNotFound
	}
	return b, err
}

// Bind assigns a template to an account, replacing any previous binding.
func (s *PromptStore) Bind(ctx context.Context, accountID, templateID uuid.UUID) (model.PromptBinding, error) {
	b := model.PromptBinding{AccountID: accountID, TemplateID: templateID, BoundAt: time.Now().UTC()}
	_, err := s.db.Exec(ctx, `
		INSERT INTO prompt_bindings (account_id, template_id, bound_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id) DO UPDATE SET
			template_id = EXCLUDED.template_id,
			bound_at = EXCLUDED.bound_at
	`, b.AccountID, b.TemplateID, b.BoundAt)
	if err != nil {
		return model.PromptBinding{}, fmt.Errorf("bind template: %w", err)
	}
	return b, nil
}

// TemplateForAccount resolves the account's effective template: the
// bound template, or the builtin default when unbound.
func (s *PromptStore) TemplateForAccount(ctx context.Context, accountID uuid.UUID) (model.PromptTemplate, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+templateColumns+` FROM prompt_templates t
		JOIN prompt_bindings b ON b.template_id = t.id
		WHERE b.account_id = $1`, accountID)
	t, err := scanTemplate(row)
	if errors.Is(err, ErrNotFound) {
		row = s.db.QueryRow(ctx, `
			SELECT `+templateColumns+` FROM prompt_templates WHERE name = $1`, prompt.TemplateDefault)
		return scanTemplate(row)
	}
	return t, err
}
