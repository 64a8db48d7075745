package kpi

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/onnwee/leaderhub/internal/ranking"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu        sync.RWMutex
	markets   map[int64]Market
	providers map[int64][]ProviderMetrics // marketID -> snapshots in insertion order
}

// NewInMemoryRepository creates a new in-memory KPI repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		markets:   make(map[int64]Market),
		providers: make(map[int64][]ProviderMetrics),
	}
}

// ListByMarket returns ranking records in insertion order.
func (r *InMemoryRepository) ListByMarket(_ context.Context, marketID int64) ([]ranking.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.markets[marketID]; !ok {
		return nil, ErrMarketNotFound
	}

	snapshots := r.providers[marketID]
	records := make([]ranking.Record, 0, len(snapshots))
	for _, p := range snapshots {
		records = append(records, p.ToRecord())
	}
	return records, nil
}

// ListMarkets returns all markets ordered by id.
func (r *InMemoryRepository) ListMarkets(_ context.Context) ([]Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	markets := make([]Market, 0, len(r.markets))
	for _, m := range r.markets {
		markets = append(markets, m)
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].ID < markets[j].ID })
	return markets, nil
}

// UpsertMarket inserts or renames a market.
func (r *InMemoryRepository) UpsertMarket(_ context.Context, market Market) error {
	if market.ID <= 0 {
		return ErrInvalidMarketID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.markets[market.ID] = market
	return nil
}

// Upsert inserts or replaces a provider snapshot. Replacing keeps the
// provider's original position in the market.
func (r *InMemoryRepository) Upsert(_ context.Context, marketID int64, metrics ProviderMetrics) (bool, error) {
	if metrics.ProviderID <= 0 {
		return false, ErrInvalidProvider
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.markets[marketID]; !ok {
		return false, ErrMarketNotFound
	}

	metrics.UpdatedAt = time.Now().UTC()
	snapshots := r.providers[marketID]
	for i := range snapshots {
		if snapshots[i].ProviderID == metrics.ProviderID {
			snapshots[i] = metrics
			return false, nil
		}
	}
	r.providers[marketID] = append(snapshots, metrics)
	return true, nil
}
