// Package leaderboard builds ranked leaderboards for a market by combining
// the KPI store, the deployment's dimension catalog and the ranking engine.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/leaderhub/internal/kpi"
	"github.com/onnwee/leaderhub/internal/ranking"
	"github.com/onnwee/leaderhub/internal/tracing"
)

// ErrDimensionDisabled is returned for a known dimension the catalog turns off.
var ErrDimensionDisabled = errors.New("dimension is disabled")

// Query describes one leaderboard request.
type Query struct {
	MarketID  int64
	Dimension ranking.Dimension
	// Direction overrides the dimension's default order when set.
	Direction ranking.SortDirection
	// Positions limits recognized categories; empty means all.
	Positions []ranking.Category
	// SelfID is the requesting provider's entity id.
	SelfID string
}

// DimensionStanding is a provider's position on one dimension.
type DimensionStanding struct {
	Dimension ranking.Dimension `json:"dimension"`
	Label     string            `json:"label"`
	Rank      int               `json:"rank"`
	Value     float64           `json:"value"`
	Change    float64           `json:"change"`
}

// Summary lists a provider's standing on every enabled dimension where the
// provider has a ranked value.
type Summary struct {
	MarketID   int64               `json:"market_id"`
	ProviderID string              `json:"provider_id"`
	Standings  []DimensionStanding `json:"standings"`
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Repository supplies provider records per market.
	Repository kpi.Repository
	// Catalog decides which dimensions are served. Defaults to all enabled.
	Catalog *ranking.Catalog
	// Metrics is optional.
	Metrics *Metrics
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Service computes leaderboards. Every call reads a fresh snapshot from the
// repository and shares no state with other calls.
type Service struct {
	repo    kpi.Repository
	catalog *ranking.Catalog
	metrics *Metrics
	logger  *slog.Logger
}

// NewService creates a leaderboard service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Catalog == nil {
		cfg.Catalog = ranking.DefaultCatalog()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		repo:    cfg.Repository,
		catalog: cfg.Catalog,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

// Dimensions returns the enabled dimensions in catalog order.
func (s *Service) Dimensions() []ranking.CatalogDimension {
	return s.catalog.Enabled()
}

// Leaderboard ranks the market's providers on q.Dimension.
func (s *Service) Leaderboard(ctx context.Context, q Query) (result *ranking.Result, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "leaderboard.compute")
	defer func() { endSpan(err) }()
	tracing.SetAttributes(ctx,
		attribute.Int64("leaderboard.market_id", q.MarketID),
		attribute.String("leaderboard.dimension", string(q.Dimension)),
	)

	if err := s.checkDimension(q.Dimension); err != nil {
		return nil, err
	}

	start := time.Now()
	records, err := s.repo.ListByMarket(ctx, q.MarketID)
	if err != nil {
		s.incErrors(q.Dimension)
		return nil, fmt.Errorf("failed to load market %d: %w", q.MarketID, err)
	}

	result, err = ranking.Rank(records, ranking.Options{
		Dimension:  q.Dimension,
		Direction:  q.Direction,
		SelfID:     q.SelfID,
		Categories: q.Positions,
	})
	if err != nil {
		s.incErrors(q.Dimension)
		return nil, err
	}

	ranked := rankedCount(result)
	if s.metrics != nil {
		s.metrics.ObserveComputation(string(q.Dimension), time.Since(start).Seconds(), ranked, len(records)-ranked)
	}
	tracing.SetAttributes(ctx,
		attribute.Int("leaderboard.records", len(records)),
		attribute.Int("leaderboard.ranked", ranked),
	)

	s.logger.DebugContext(ctx, "leaderboard computed",
		slog.Int64("market_id", q.MarketID),
		slog.String("dimension", string(q.Dimension)),
		slog.Int("records", len(records)),
		slog.Int("ranked", ranked),
	)
	return result, nil
}

// ProviderSummary ranks every enabled dimension for the market concurrently
// and returns selfID's standings in catalog order. positions filters the
// peer group the same way Query.Positions does.
func (s *Service) ProviderSummary(ctx context.Context, marketID int64, selfID string, positions []ranking.Category) (summary *Summary, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "leaderboard.provider_summary")
	defer func() { endSpan(err) }()
	tracing.SetAttributes(ctx, attribute.Int64("leaderboard.market_id", marketID))

	records, err := s.repo.ListByMarket(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to load market %d: %w", marketID, err)
	}

	enabled := s.catalog.Enabled()
	standings := make([]*DimensionStanding, len(enabled))

	g, gctx := errgroup.WithContext(ctx)
	for i, dim := range enabled {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			result, err := ranking.Rank(records, ranking.Options{
				Dimension:  dim.Key,
				SelfID:     selfID,
				Categories: positions,
			})
			if err != nil {
				s.incErrors(dim.Key)
				return fmt.Errorf("failed to rank %s: %w", dim.Key, err)
			}
			if s.metrics != nil {
				ranked := rankedCount(result)
				s.metrics.ObserveComputation(string(dim.Key), time.Since(start).Seconds(), ranked, len(records)-ranked)
			}
			if result.SelfRow == nil {
				return nil
			}
			standings[i] = &DimensionStanding{
				Dimension: dim.Key,
				Label:     dim.Label,
				Rank:      result.SelfRow.Rank,
				Value:     result.SelfRow.Value,
				Change:    result.SelfRow.Change,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary = &Summary{
		MarketID:   marketID,
		ProviderID: selfID,
		Standings:  make([]DimensionStanding, 0, len(standings)),
	}
	for _, st := range standings {
		if st != nil {
			summary.Standings = append(summary.Standings, *st)
		}
	}
	return summary, nil
}

func (s *Service) checkDimension(d ranking.Dimension) error {
	if _, err := ranking.LookupDimension(d); err != nil {
		return err
	}
	if !s.catalog.IsEnabled(d) {
		return fmt.Errorf("%w: %q", ErrDimensionDisabled, d)
	}
	return nil
}

func (s *Service) incErrors(d ranking.Dimension) {
	if s.metrics != nil {
		s.metrics.IncComputationErrors(string(d))
	}
}

func rankedCount(r *ranking.Result) int {
	return len(r.Podium.FirstPosition) + len(r.Podium.SecondPosition) +
		len(r.Podium.ThirdPosition) + len(r.Remainder)
}
