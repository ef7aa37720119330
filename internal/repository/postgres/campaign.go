package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/fluentive/campaigns/internal/domain"
	"github.com/fluentive/campaigns/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `id, name, audience_type, COALESCE(audience_filter,''),
	       COALESCE(subject,''), COALESCE(preheader,''), COALESCE(body_html,''),
	       COALESCE(body_text,''), COALESCE(cta_text,''), COALESCE(cta_link,''),
	       status, scheduled_at, sent_at, targeted_count, sent_count, failed_count,
	       opened_count, clicked_count, COALESCE(created_by,''), created_at, updated_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := row.Scan(
		&c.ID, &c.Name, &c.AudienceType, &c.AudienceFilter,
		&c.Subject, &c.Preheader, &c.BodyHTML,
		&c.BodyText, &c.CTAText, &c.CTALink,
		&c.Status, &c.ScheduledAt, &c.SentAt, &c.TargetedCount, &c.SentCount,
		&c.FailedCount, &c.OpenedCount, &c.ClickedCount, &c.CreatedBy,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
}

func (r *CampaignRepo) List(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	where := "TRUE"
	args := []interface{}{}
	idx := 1
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(" AND name ILIKE $%d", idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM campaigns WHERE `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	q := fmt.Sprintf(`SELECT `+campaignColumns+` FROM campaigns WHERE `+where+
		` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *CampaignRepo) ListDue(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns
		 WHERE status = 'scheduled' AND scheduled_at <= $1
		 ORDER BY scheduled_at`, now)
	if err != nil {
		return nil, fmt.Errorf("list due campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, name, audience_type, audience_filter, subject, preheader,
			 body_html, body_text, cta_text, cta_link, status, created_by,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
	`, c.ID, c.Name, c.AudienceType, c.AudienceFilter, c.Subject, c.Preheader,
		c.BodyHTML, c.BodyText, c.CTAText, c.CTALink, c.Status, c.CreatedBy)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepo) Update(ctx context.Context, id string, u campaign.UpdateFields) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.AudienceType != nil {
		add("audience_type", *u.AudienceType)
	}
	if u.AudienceFilter != nil {
		add("audience_filter", *u.AudienceFilter)
	}
	if u.Subject != nil {
		add("subject", *u.Subject)
	}
	if u.Preheader != nil {
		add("preheader", *u.Preheader)
	}
	if u.BodyHTML != nil {
		add("body_html", *u.BodyHTML)
	}
	if u.BodyText != nil {
		add("body_text", *u.BodyText)
	}
	if u.CTAText != nil {
		add("cta_text", *u.CTAText)
	}
	if u.CTALink != nil {
		add("cta_link", *u.CTALink)
	}
	if u.ScheduledAt != nil {
		// A zero time clears the schedule.
		if u.ScheduledAt.IsZero() {
			add("scheduled_at", nil)
		} else {
			add("scheduled_at", *u.ScheduledAt)
		}
	}

	if len(sets) == 0 {
		return nil
	}

	q := fmt.Sprintf("UPDATE campaigns SET %s, updated_at = NOW() WHERE id = $%d",
		strings.Join(sets, ", "), idx)
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM campaigns
		WHERE id = $1 AND status IN ('draft','cancelled')
	`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

// UpdateStatus doubles as a claim: the guarded WHERE means exactly one caller
// can move a campaign into sending.
func (r *CampaignRepo) UpdateStatus(ctx context.Context, id string, from []domain.CampaignStatus, to domain.CampaignStatus) error {
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = ANY($3)
	`, to, id, pq.Array(fromStrs))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrInvalidTransition
	}
	return nil
}

func (r *CampaignRepo) SetTargeted(ctx context.Context, id string, targeted int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET targeted_count = $1, updated_at = NOW() WHERE id = $2
	`, targeted, id)
	if err != nil {
		return fmt.Errorf("set targeted: %w", err)
	}
	return nil
}

// SetCompleted finalizes a sending campaign. A campaign cancelled mid-send
// keeps its cancelled status: the guard makes this a no-op then.
func (r *CampaignRepo) SetCompleted(ctx context.Context, id string, sent, failed int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = 'completed', sent_count = $1, failed_count = $2,
		    sent_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND status = 'sending'
	`, sent, failed, id)
	if err != nil {
		return fmt.Errorf("complete campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepo) IncrementOpened(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE campaigns SET opened_count = opened_count + 1 WHERE id = $1`, id)
	return err
}

func (r *CampaignRepo) IncrementClicked(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE campaigns SET clicked_count = clicked_count + 1 WHERE id = $1`, id)
	return err
}
