package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fluentive/campaigns/internal/domain"
)

// ErrSendNotFound is returned for tracking hits on unknown send IDs.
var ErrSendNotFound = errors.New("send record not found")

// SendRepo implements the send ledger against PostgreSQL. The dispatcher
// writes through it during a send; the tracking service writes engagement
// through it afterwards.
type SendRepo struct{ db *sql.DB }

// NewSendRepo creates a Postgres-backed send ledger.
func NewSendRepo(db *sql.DB) *SendRepo { return &SendRepo{db: db} }

// CreateBatch inserts pending rows in one transaction. The unique
// (campaign_id, contact_id) index makes re-runs idempotent: rows that
// already exist are left untouched.
func (r *SendRepo) CreateBatch(ctx context.Context, records []*domain.SendRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO campaign_sends (id, campaign_id, contact_id, status, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (campaign_id, contact_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.CampaignID, rec.ContactID, rec.Status); err != nil {
			return fmt.Errorf("insert send record: %w", err)
		}
	}
	return tx.Commit()
}

func (r *SendRepo) ListByCampaign(ctx context.Context, campaignID string) ([]domain.SendRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, contact_id, status, sent_at, opened_at, clicked_at,
		       open_count, click_count, COALESCE(error_message,''), created_at
		FROM campaign_sends
		WHERE campaign_id = $1
		ORDER BY created_at
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list send records: %w", err)
	}
	defer rows.Close()

	var out []domain.SendRecord
	for rows.Next() {
		var rec domain.SendRecord
		if err := rows.Scan(
			&rec.ID, &rec.CampaignID, &rec.ContactID, &rec.Status,
			&rec.SentAt, &rec.OpenedAt, &rec.ClickedAt,
			&rec.OpenCount, &rec.ClickCount, &rec.ErrorMsg, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan send record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SendRepo) MarkSent(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_sends SET status = 'sent', sent_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrSendNotFound
	}
	return nil
}

func (r *SendRepo) MarkFailed(ctx context.Context, id, errMsg string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_sends SET status = 'failed', error_message = $1
		WHERE id = $2 AND status = 'pending'
	`, errMsg, id)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrSendNotFound
	}
	return nil
}

// RecordOpen bumps the row's open counter and stamps opened_at on the first
// hit. Firstness is decided by the database in a single statement, so
// concurrent opens agree on exactly one first.
func (r *SendRepo) RecordOpen(ctx context.Context, sendID string, at time.Time) (bool, string, error) {
	var (
		campaignID string
		openCount  int
	)
	err := r.db.QueryRowContext(ctx, `
		UPDATE campaign_sends
		SET open_count = open_count + 1,
		    opened_at = COALESCE(opened_at, $2)
		WHERE id = $1
		RETURNING campaign_id, open_count
	`, sendID, at).Scan(&campaignID, &openCount)
	if err == sql.ErrNoRows {
		return false, "", ErrSendNotFound
	}
	if err != nil {
		return false, "", fmt.Errorf("record open: %w", err)
	}
	return openCount == 1, campaignID, nil
}

// RecordClick mirrors RecordOpen for clicks.
func (r *SendRepo) RecordClick(ctx context.Context, sendID string, at time.Time) (bool, string, error) {
	var (
		campaignID string
		clickCount int
	)
	err := r.db.QueryRowContext(ctx, `
		UPDATE campaign_sends
		SET click_count = click_count + 1,
		    clicked_at = COALESCE(clicked_at, $2)
		WHERE id = $1
		RETURNING campaign_id, click_count
	`, sendID, at).Scan(&campaignID, &clickCount)
	if err == sql.ErrNoRows {
		return false, "", ErrSendNotFound
	}
	if err != nil {
		return false, "", fmt.Errorf("record click: %w", err)
	}
	return clickCount == 1, campaignID, nil
}

// MarkBounced flags a delivered send as bounced from provider feedback.
func (r *SendRepo) MarkBounced(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_sends SET status = 'bounced' WHERE id = $1 AND status = 'sent'
	`, id)
	if err != nil {
		return fmt.Errorf("mark bounced: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrSendNotFound
	}
	return nil
}
