package kpi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/onnwee/leaderhub/internal/stats"
)

// DefaultImportConcurrency bounds concurrent upserts per market.
const DefaultImportConcurrency = 8

// Fixture is a YAML document of markets and their provider snapshots, used
// to seed a store for demos and local development.
type Fixture struct {
	Markets []FixtureMarket `yaml:"markets"`
}

// FixtureMarket is a market with the snapshots to store in it.
type FixtureMarket struct {
	Market    `yaml:",inline"`
	Providers []ProviderMetrics `yaml:"providers"`
}

// LoadFixture reads and validates a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes a fixture. Unknown keys are rejected so a misspelled
// metric does not silently import as absent.
func ParseFixture(data []byte) (*Fixture, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f Fixture
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks ids and rejects duplicate markets or providers.
func (f *Fixture) Validate() error {
	var errs []error
	markets := make(map[int64]bool)
	for i, m := range f.Markets {
		if m.ID <= 0 {
			errs = append(errs, fmt.Errorf("markets[%d]: %w", i, ErrInvalidMarketID))
			continue
		}
		if markets[m.ID] {
			errs = append(errs, fmt.Errorf("markets[%d]: duplicate market id %d", i, m.ID))
		}
		markets[m.ID] = true

		providers := make(map[int64]bool)
		for j, p := range m.Providers {
			switch {
			case p.ProviderID <= 0:
				errs = append(errs, fmt.Errorf("markets[%d].providers[%d]: %w", i, j, ErrInvalidProvider))
			case providers[p.ProviderID]:
				errs = append(errs, fmt.Errorf("markets[%d].providers[%d]: duplicate provider id %d", i, j, p.ProviderID))
			}
			providers[p.ProviderID] = true
		}
	}
	return errors.Join(errs...)
}

// Apply writes the fixture into repo. Markets are written in order; the
// snapshots of each market are upserted concurrently, at most concurrency
// at a time. The first failure stops the import. st may be nil.
func (f *Fixture) Apply(ctx context.Context, repo Repository, concurrency int, st *stats.ImportStats) error {
	if st == nil {
		st = stats.NewImportStats()
	}
	if concurrency <= 0 {
		concurrency = DefaultImportConcurrency
	}

	for _, m := range f.Markets {
		if err := repo.UpsertMarket(ctx, m.Market); err != nil {
			return fmt.Errorf("failed to upsert market %d: %w", m.ID, err)
		}
		st.RecordMarket()

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, p := range m.Providers {
			g.Go(func() error {
				inserted, err := repo.Upsert(gctx, m.ID, p)
				if err != nil {
					st.RecordFailure()
					return fmt.Errorf("failed to upsert provider %d in market %d: %w", p.ProviderID, m.ID, err)
				}
				st.RecordUpsert(inserted)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}
