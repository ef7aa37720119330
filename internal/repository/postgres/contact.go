package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fluentive/campaigns/internal/domain"
	"github.com/fluentive/campaigns/internal/service/contact"
)

// ContactRepo implements contact.Repository against PostgreSQL.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact repository.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

const contactColumns = `id, email, COALESCE(first_name,''), COALESCE(last_name,''),
	       COALESCE(tags,''), COALESCE(source,''), subscribed, unsubscribe_token,
	       created_at, updated_at`

func scanContact(row interface{ Scan(...interface{}) error }) (*domain.Contact, error) {
	c := &domain.Contact{}
	err := row.Scan(
		&c.ID, &c.Email, &c.FirstName, &c.LastName,
		&c.Tags, &c.Source, &c.Subscribed, &c.UnsubscribeToken,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, contact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan contact: %w", err)
	}
	return c, nil
}

func (r *ContactRepo) Get(ctx context.Context, id string) (*domain.Contact, error) {
	return scanContact(r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id))
}

func (r *ContactRepo) GetByEmail(ctx context.Context, email string) (*domain.Contact, error) {
	return scanContact(r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE email = $1`, email))
}

func (r *ContactRepo) GetByUnsubscribeToken(ctx context.Context, token string) (*domain.Contact, error) {
	return scanContact(r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE unsubscribe_token = $1`, token))
}

func (r *ContactRepo) Upsert(ctx context.Context, c *domain.Contact) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts
			(id, email, first_name, last_name, tags, source, subscribed,
			 unsubscribe_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (email) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name  = EXCLUDED.last_name,
			tags       = EXCLUDED.tags,
			source     = EXCLUDED.source,
			updated_at = NOW()
	`, c.ID, c.Email, c.FirstName, c.LastName, c.Tags, c.Source, c.Subscribed, c.UnsubscribeToken)
	if err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	return nil
}

func (r *ContactRepo) SetSubscribed(ctx context.Context, id string, subscribed bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE contacts SET subscribed = $1, updated_at = NOW() WHERE id = $2`,
		subscribed, id,
	)
	if err != nil {
		return fmt.Errorf("set subscribed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return contact.ErrNotFound
	}
	return nil
}

func (r *ContactRepo) List(ctx context.Context, f contact.ListFilter) ([]domain.Contact, int, error) {
	where := "TRUE"
	args := []interface{}{}
	idx := 1
	add := func(cond string, val interface{}) {
		where += fmt.Sprintf(" AND "+cond, idx)
		args = append(args, val)
		idx++
	}

	if f.Search != "" {
		add("(email ILIKE $%d OR first_name ILIKE $%[1]d OR last_name ILIKE $%[1]d)", "%"+f.Search+"%")
	}
	if f.Tag != "" {
		// Exact token match within the comma-delimited tags column.
		add("(',' || COALESCE(tags,'') || ',') LIKE '%%,' || $%d || ',%%'", f.Tag)
	}
	if f.Source != "" {
		add("source = $%d", f.Source)
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contacts WHERE `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	q := fmt.Sprintf(`SELECT `+contactColumns+` FROM contacts WHERE `+where+
		` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *ContactRepo) ListSubscribed(ctx context.Context) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE subscribed = true ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list subscribed contacts: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *ContactRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return contact.ErrNotFound
	}
	return nil
}
