// Package kpi provides access to the upstream store of per-provider
// clinical KPI snapshots that leaderboards are ranked from.
package kpi

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/leaderhub/internal/ranking"
)

// Common errors for KPI store operations.
var (
	ErrMarketNotFound  = errors.New("market not found")
	ErrInvalidMarketID = errors.New("market id must be positive")
	ErrInvalidProvider = errors.New("provider id must be positive")
)

// Market is a geographic market providers are ranked within.
type Market struct {
	ID        int64  `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	ShortName string `json:"short_name,omitempty" yaml:"short_name"`
}

// ProviderMetrics is one provider's KPI snapshot within a market.
type ProviderMetrics struct {
	ProviderID int64           `json:"provider_id" yaml:"provider_id"`
	FirstName  string          `json:"first_name" yaml:"first_name"`
	LastName   string          `json:"last_name" yaml:"last_name"`
	JobTitle   string          `json:"job_title,omitempty" yaml:"job_title"`
	AvatarURL  string          `json:"avatar_url,omitempty" yaml:"avatar_url"`
	Metrics    ranking.Metrics `json:"metrics" yaml:"metrics"`
	UpdatedAt  time.Time       `json:"updated_at" yaml:"-"`
}

// DisplayName joins first and last name.
func (p ProviderMetrics) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// ToRecord converts the snapshot into a ranking record.
func (p ProviderMetrics) ToRecord() ranking.Record {
	return ranking.Record{
		EntityID:    strconv.FormatInt(p.ProviderID, 10),
		DisplayName: p.DisplayName(),
		Category:    ranking.ParseCategory(p.JobTitle),
		AvatarRef:   p.AvatarURL,
		Metrics:     p.Metrics,
	}
}

// Repository defines the interface for KPI snapshot storage.
type Repository interface {
	// ListByMarket returns ranking records for every provider in the market.
	// Returns ErrMarketNotFound if the market is unknown.
	ListByMarket(ctx context.Context, marketID int64) ([]ranking.Record, error)

	// ListMarkets returns all known markets ordered by id.
	ListMarkets(ctx context.Context) ([]Market, error)

	// UpsertMarket inserts or renames a market.
	UpsertMarket(ctx context.Context, market Market) error

	// Upsert inserts or replaces a provider snapshot within a market.
	// Returns true if a new row was inserted.
	Upsert(ctx context.Context, marketID int64, metrics ProviderMetrics) (bool, error)
}
