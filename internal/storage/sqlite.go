package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"social_monitor/internal/model"
	"social_monitor/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if dsn == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateAIProvider inserts a provider and populates its ID.
func (s *SQLite) CreateAIProvider(ctx context.Context, p *model.AIProvider) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ai_providers (name, provider_type, api_key, model, base_url, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Name, string(p.Type), p.APIKey, p.Model, p.BaseURL, boolToInt(p.IsActive), now,
	)
	if err != nil {
		return fmt.Errorf("insert provider: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	p.ID = id
	return nil
}

const providerColumns = `id, name, provider_type, api_key, model, base_url, is_active`

// GetAIProvider returns a provider by its ID.
func (s *SQLite) GetAIProvider(ctx context.Context, id int64) (*model.AIProvider, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+providerColumns+` FROM ai_providers WHERE id = ?`, id,
	)
	p, err := scanProvider(row)
	return nilIfMissing(p, err)
}

// ListAIProviders returns all providers ordered by ID.
func (s *SQLite) ListAIProviders(ctx context.Context) ([]model.AIProvider, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+providerColumns+` FROM ai_providers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var providers []model.AIProvider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		providers = append(providers, *p)
	}
	return providers, rows.Err()
}

// ResolveAIProvider returns the provider assigned to the campaign, falling
// back to the first active provider.
func (s *SQLite) ResolveAIProvider(ctx context.Context, campaignID int64) (*model.AIProvider, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT p.id, p.name, p.provider_type, p.api_key, p.model, p.base_url, p.is_active
		 FROM campaigns c JOIN ai_providers p ON p.id = c.ai_provider_id
		 WHERE c.id = ?`, campaignID,
	)
	p, err := scanProvider(row)
	if p, err = nilIfMissing(p, err); err != nil || p != nil {
		return p, err
	}

	row = s.db.QueryRowContext(ctx,
		`SELECT `+providerColumns+` FROM ai_providers WHERE is_active = 1 ORDER BY id LIMIT 1`,
	)
	p, err = scanProvider(row)
	return nilIfMissing(p, err)
}

// CreateCampaign inserts a new campaign and populates its ID and CreatedAt.
func (s *SQLite) CreateCampaign(ctx context.Context, c *model.Campaign) error {
	now := time.Now().UTC().Format(timeLayout)
	if c.Status == "" {
		c.Status = model.StatusInactive
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns (title, status, start_date, end_date, frequency_minutes,
		                        per_channel_limit, max_channels, network, ai_provider_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Title, string(c.Status), formatTimePtr(c.StartDate), formatTimePtr(c.EndDate), c.FrequencyMinutes,
		c.PerChannelLimit, c.MaxChannels, c.Network, c.AIProviderID, now,
	)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	c.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

const campaignColumns = `id, title, status, start_date, end_date, frequency_minutes,
	per_channel_limit, max_channels, network, ai_provider_id, created_at`

// GetCampaign returns a single campaign by its ID.
func (s *SQLite) GetCampaign(ctx context.Context, id int64) (*model.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id)
	c, err := scanCampaign(row)
	return nilIfMissing(c, err)
}

// ListCampaigns returns all campaigns ordered by ID.
func (s *SQLite) ListCampaigns(ctx context.Context) ([]model.Campaign, error) {
	return s.queryCampaigns(ctx, `SELECT `+campaignColumns+` FROM campaigns ORDER BY id`)
}

// ListActiveCampaigns returns the campaigns whose status is active. Their
// time windows are not checked here.
func (s *SQLite) ListActiveCampaigns(ctx context.Context) ([]model.Campaign, error) {
	return s.queryCampaigns(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE status = ? ORDER BY id`, string(model.StatusActive),
	)
}

func (s *SQLite) queryCampaigns(ctx context.Context, query string, args ...any) ([]model.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query campaigns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var campaigns []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

// UpdateCampaign persists changes to an existing campaign.
func (s *SQLite) UpdateCampaign(ctx context.Context, c *model.Campaign) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET title = ?, status = ?, start_date = ?, end_date = ?, frequency_minutes = ?,
		        per_channel_limit = ?, max_channels = ?, network = ?, ai_provider_id = ?
		 WHERE id = ?`,
		c.Title, string(c.Status), formatTimePtr(c.StartDate), formatTimePtr(c.EndDate), c.FrequencyMinutes,
		c.PerChannelLimit, c.MaxChannels, c.Network, c.AIProviderID, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	return nil
}

// SetCampaignStatus changes only the status of a campaign.
func (s *SQLite) SetCampaignStatus(ctx context.Context, id int64, status model.CampaignStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE campaigns SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("set campaign status: %w", err)
	}
	return nil
}

// DeleteCampaign removes a campaign together with its keywords and results.
func (s *SQLite) DeleteCampaign(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE campaign_id = ?`, id); err != nil {
		return fmt.Errorf("delete results: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM keywords WHERE campaign_id = ?`, id); err != nil {
		return fmt.Errorf("delete keywords: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM campaigns WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	return tx.Commit()
}

// AddKeywords appends keywords to a campaign. Blank values are skipped.
func (s *SQLite) AddKeywords(ctx context.Context, campaignID int64, values []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO keywords (campaign_id, value) VALUES (?, ?)`, campaignID, v,
		); err != nil {
			return fmt.Errorf("insert keyword: %w", err)
		}
	}
	return tx.Commit()
}

// GetKeywords returns the keywords of a campaign in insertion order.
func (s *SQLite) GetKeywords(ctx context.Context, campaignID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT value FROM keywords WHERE campaign_id = ? ORDER BY id`, campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keywords []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		keywords = append(keywords, v)
	}
	return keywords, rows.Err()
}

const resultColumns = `id, campaign_id, keyword, channel_name, channel_id, post_url, member_count,
	view_count, post_date, is_video, analysis_result, analysis_score, is_reportage, post_text,
	post_id, checked_at`

// FindResult looks up a result by post and channel.
func (s *SQLite) FindResult(ctx context.Context, postID, channelID string) (*model.Result, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM results WHERE post_id = ? AND channel_id = ?`, postID, channelID,
	)
	r, err := scanResult(row)
	return nilIfMissing(r, err)
}

// InsertResult stores a new result and populates its ID. It returns
// ErrDuplicate when the post is already recorded for the channel.
func (s *SQLite) InsertResult(ctx context.Context, r *model.Result) error {
	if r.CheckedAt.IsZero() {
		r.CheckedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO results (campaign_id, keyword, channel_name, channel_id, post_url, member_count,
		                      view_count, post_date, is_video, analysis_result, analysis_score,
		                      is_reportage, post_text, post_id, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(post_id, channel_id) DO NOTHING`,
		r.CampaignID, r.Keyword, r.ChannelName, r.ChannelID, r.PostURL, r.MemberCount,
		r.ViewCount, r.PostDate, boolToInt(r.IsVideo), string(r.AnalysisResult), r.AnalysisScore,
		boolToInt(r.IsReportage), r.PostText, r.PostID, r.CheckedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	r.ID = id
	return nil
}

// UpdateResult applies the non-nil fields of u to a result.
func (s *SQLite) UpdateResult(ctx context.Context, id int64, u model.ResultUpdate) error {
	var sets []string
	var args []any
	if u.MemberCount != nil {
		sets = append(sets, "member_count = ?")
		args = append(args, *u.MemberCount)
	}
	if u.ViewCount != nil {
		sets = append(sets, "view_count = ?")
		args = append(args, *u.ViewCount)
	}
	if u.PostDate != nil {
		sets = append(sets, "post_date = ?")
		args = append(args, *u.PostDate)
	}
	if u.AnalysisResult != nil {
		sets = append(sets, "analysis_result = ?")
		args = append(args, string(*u.AnalysisResult))
	}
	if u.AnalysisScore != nil {
		sets = append(sets, "analysis_score = ?")
		args = append(args, *u.AnalysisScore)
	}
	if u.CheckedAt != nil {
		sets = append(sets, "checked_at = ?")
		args = append(args, u.CheckedAt.UTC().Format(timeLayout))
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	_, err := s.db.ExecContext(ctx,
		`UPDATE results SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...,
	)
	if err != nil {
		return fmt.Errorf("update result: %w", err)
	}
	return nil
}

// ListErrorResults returns up to limit error results of a campaign, most
// recently checked first.
func (s *SQLite) ListErrorResults(ctx context.Context, campaignID int64, limit int) ([]model.Result, error) {
	return s.queryResults(ctx,
		`SELECT `+resultColumns+` FROM results
		 WHERE campaign_id = ? AND analysis_result = ?
		 ORDER BY checked_at DESC, id DESC LIMIT ?`,
		campaignID, string(model.AnalysisError), limit,
	)
}

// ListResults returns all results of a campaign ordered by ID.
func (s *SQLite) ListResults(ctx context.Context, campaignID int64) ([]model.Result, error) {
	return s.queryResults(ctx,
		`SELECT `+resultColumns+` FROM results WHERE campaign_id = ? ORDER BY id`, campaignID,
	)
}

func (s *SQLite) queryResults(ctx context.Context, query string, args ...any) ([]model.Result, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []model.Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.UTC().Format(timeLayout)
	return &v
}

// dateLayouts lists the stored forms accepted for campaign bounds. Rows
// written by other tools may carry a bare date.
var dateLayouts = []string{timeLayout, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseTimePtr(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v.String); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("parse time %q", v.String)
}

func nilIfMissing[T any](v *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProvider(row scannable) (*model.AIProvider, error) {
	var p model.AIProvider
	var typ string
	var isActive int
	if err := row.Scan(&p.ID, &p.Name, &typ, &p.APIKey, &p.Model, &p.BaseURL, &isActive); err != nil {
		return nil, fmt.Errorf("scan provider: %w", err)
	}
	p.Type = model.ProviderType(typ)
	p.IsActive = isActive == 1
	return &p, nil
}

func scanCampaign(row scannable) (*model.Campaign, error) {
	var c model.Campaign
	var status string
	var start, end, created sql.NullString
	var providerID sql.NullInt64
	err := row.Scan(&c.ID, &c.Title, &status, &start, &end, &c.FrequencyMinutes,
		&c.PerChannelLimit, &c.MaxChannels, &c.Network, &providerID, &created)
	if err != nil {
		return nil, fmt.Errorf("scan campaign: %w", err)
	}
	c.Status = model.CampaignStatus(status)
	if c.StartDate, err = parseTimePtr(start); err != nil {
		return nil, fmt.Errorf("scan campaign %d start_date: %w", c.ID, err)
	}
	if c.EndDate, err = parseTimePtr(end); err != nil {
		return nil, fmt.Errorf("scan campaign %d end_date: %w", c.ID, err)
	}
	if providerID.Valid {
		id := providerID.Int64
		c.AIProviderID = &id
	}
	if created.Valid {
		c.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	return &c, nil
}

func scanResult(row scannable) (*model.Result, error) {
	var r model.Result
	var analysis, checked string
	var isVideo, isReportage int
	err := row.Scan(&r.ID, &r.CampaignID, &r.Keyword, &r.ChannelName, &r.ChannelID, &r.PostURL,
		&r.MemberCount, &r.ViewCount, &r.PostDate, &isVideo, &analysis, &r.AnalysisScore,
		&isReportage, &r.PostText, &r.PostID, &checked)
	if err != nil {
		return nil, fmt.Errorf("scan result: %w", err)
	}
	r.IsVideo = isVideo == 1
	r.IsReportage = isReportage == 1
	r.AnalysisResult = model.Analysis(analysis)
	r.CheckedAt, _ = time.Parse(timeLayout, checked)
	return &r, nil
}
