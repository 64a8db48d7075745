package kpi

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/onnwee/leaderhub/internal/ranking"
	"github.com/onnwee/leaderhub/internal/tracing"
)

const metricColumns = `
	on_scene_time_median_seconds, on_scene_time_week_change_seconds,
	chart_closure_rate, chart_closure_rate_week_change,
	survey_capture_rate, survey_capture_rate_week_change,
	net_promoter_score_average, net_promoter_score_week_change,
	on_task_percent, on_task_percent_week_change,
	escalation_rate, escalation_rate_week_change,
	abx_prescribing_rate, abx_prescribing_rate_week_change`

const listByMarketQuery = `
	SELECT provider_id, first_name, last_name, job_title, avatar_url, updated_at,` + metricColumns + `
	FROM provider_metrics
	WHERE market_id = $1
	ORDER BY provider_id`

const upsertProviderQuery = `
	INSERT INTO provider_metrics (
		market_id, provider_id, first_name, last_name, job_title, avatar_url,` + metricColumns + `
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	ON CONFLICT (market_id, provider_id) DO UPDATE SET
		first_name = EXCLUDED.first_name,
		last_name = EXCLUDED.last_name,
		job_title = EXCLUDED.job_title,
		avatar_url = EXCLUDED.avatar_url,
		on_scene_time_median_seconds = EXCLUDED.on_scene_time_median_seconds,
		on_scene_time_week_change_seconds = EXCLUDED.on_scene_time_week_change_seconds,
		chart_closure_rate = EXCLUDED.chart_closure_rate,
		chart_closure_rate_week_change = EXCLUDED.chart_closure_rate_week_change,
		survey_capture_rate = EXCLUDED.survey_capture_rate,
		survey_capture_rate_week_change = EXCLUDED.survey_capture_rate_week_change,
		net_promoter_score_average = EXCLUDED.net_promoter_score_average,
		net_promoter_score_week_change = EXCLUDED.net_promoter_score_week_change,
		on_task_percent = EXCLUDED.on_task_percent,
		on_task_percent_week_change = EXCLUDED.on_task_percent_week_change,
		escalation_rate = EXCLUDED.escalation_rate,
		escalation_rate_week_change = EXCLUDED.escalation_rate_week_change,
		abx_prescribing_rate = EXCLUDED.abx_prescribing_rate,
		abx_prescribing_rate_week_change = EXCLUDED.abx_prescribing_rate_week_change,
		updated_at = NOW()
	RETURNING (xmax = 0) AS inserted`

// PostgresRepository is a PostgreSQL implementation of Repository.
// Open the *sql.DB with the "postgres" driver from github.com/lib/pq.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListByMarket returns ranking records for the market ordered by provider id.
func (r *PostgresRepository) ListByMarket(ctx context.Context, marketID int64) (records []ranking.Record, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "provider_metrics", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	exists, err := r.marketExists(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrMarketNotFound
	}

	rows, err := r.db.QueryContext(ctx, listByMarketQuery, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider metrics: %w", err)
	}
	defer rows.Close()

	records = make([]ranking.Record, 0)
	for rows.Next() {
		p, err := scanProviderMetrics(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, p.ToRecord())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate provider metrics: %w", err)
	}
	return records, nil
}

// ListMarkets returns all markets ordered by id.
func (r *PostgresRepository) ListMarkets(ctx context.Context) (markets []Market, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "markets", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT id, name, short_name FROM markets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query markets: %w", err)
	}
	defer rows.Close()

	markets = make([]Market, 0)
	for rows.Next() {
		var m Market
		if err := rows.Scan(&m.ID, &m.Name, &m.ShortName); err != nil {
			return nil, fmt.Errorf("failed to scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate markets: %w", err)
	}
	return markets, nil
}

// UpsertMarket inserts or renames a market.
func (r *PostgresRepository) UpsertMarket(ctx context.Context, market Market) (err error) {
	if market.ID <= 0 {
		return ErrInvalidMarketID
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "markets", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO markets (id, name, short_name) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, short_name = EXCLUDED.short_name, updated_at = NOW()`,
		market.ID, market.Name, market.ShortName)
	if err != nil {
		return fmt.Errorf("failed to upsert market %d: %w", market.ID, err)
	}
	return nil
}

// Upsert inserts or replaces a provider snapshot. Returns true on insert.
func (r *PostgresRepository) Upsert(ctx context.Context, marketID int64, p ProviderMetrics) (inserted bool, err error) {
	if p.ProviderID <= 0 {
		return false, ErrInvalidProvider
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "provider_metrics", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	exists, err := r.marketExists(ctx, marketID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, ErrMarketNotFound
	}

	m := p.Metrics
	err = r.db.QueryRowContext(ctx, upsertProviderQuery,
		marketID, p.ProviderID, p.FirstName, p.LastName, p.JobTitle, p.AvatarURL,
		m.OnSceneTimeMedianSeconds, m.OnSceneTimeWeekChangeSeconds,
		m.ChartClosureRate, m.ChartClosureRateWeekChange,
		m.SurveyCaptureRate, m.SurveyCaptureRateWeekChange,
		m.NetPromoterScoreAverage, m.NetPromoterScoreWeekChange,
		m.OnTaskPercent, m.OnTaskPercentWeekChange,
		m.EscalationRate, m.EscalationRateWeekChange,
		m.AbxPrescribingRate, m.AbxPrescribingRateWeekChange,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert provider %d in market %d: %w", p.ProviderID, marketID, err)
	}
	return inserted, nil
}

func (r *PostgresRepository) marketExists(ctx context.Context, marketID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM markets WHERE id = $1)`, marketID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up market %d: %w", marketID, err)
	}
	return exists, nil
}

func scanProviderMetrics(rows *sql.Rows) (ProviderMetrics, error) {
	var p ProviderMetrics
	var cols [14]sql.NullFloat64
	dest := []any{&p.ProviderID, &p.FirstName, &p.LastName, &p.JobTitle, &p.AvatarURL, &p.UpdatedAt}
	for i := range cols {
		dest = append(dest, &cols[i])
	}
	if err := rows.Scan(dest...); err != nil {
		return ProviderMetrics{}, fmt.Errorf("failed to scan provider metrics: %w", err)
	}

	p.Metrics = ranking.Metrics{
		OnSceneTimeMedianSeconds:     nullFloat(cols[0]),
		OnSceneTimeWeekChangeSeconds: nullFloat(cols[1]),
		ChartClosureRate:             nullFloat(cols[2]),
		ChartClosureRateWeekChange:   nullFloat(cols[3]),
		SurveyCaptureRate:            nullFloat(cols[4]),
		SurveyCaptureRateWeekChange:  nullFloat(cols[5]),
		NetPromoterScoreAverage:      nullFloat(cols[6]),
		NetPromoterScoreWeekChange:   nullFloat(cols[7]),
		OnTaskPercent:                nullFloat(cols[8]),
		OnTaskPercentWeekChange:      nullFloat(cols[9]),
		EscalationRate:               nullFloat(cols[10]),
		EscalationRateWeekChange:     nullFloat(cols[11]),
		AbxPrescribingRate:           nullFloat(cols[12]),
		AbxPrescribingRateWeekChange: nullFloat(cols[13]),
	}
	return p, nil
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
