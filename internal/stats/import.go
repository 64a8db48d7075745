// Package stats tracks counts for KPI snapshot imports.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// ImportStats counts the outcome of each snapshot upsert during an import.
// It is safe for concurrent use.
type ImportStats struct {
	markets  atomic.Int64
	inserted atomic.Int64
	updated  atomic.Int64
	failed   atomic.Int64
}

// NewImportStats creates an empty ImportStats.
func NewImportStats() *ImportStats {
	return &ImportStats{}
}

// RecordMarket counts a market that was created or renamed.
func (s *ImportStats) RecordMarket() {
	s.markets.Add(1)
}

// RecordUpsert counts a snapshot upsert. inserted is the value returned by
// the repository's Upsert.
func (s *ImportStats) RecordUpsert(inserted bool) {
	if inserted {
		s.inserted.Add(1)
		return
	}
	s.updated.Add(1)
}

// RecordFailure counts a snapshot that could not be stored.
func (s *ImportStats) RecordFailure() {
	s.failed.Add(1)
}

// Markets returns the number of markets written.
func (s *ImportStats) Markets() int64 { return s.markets.Load() }

// Inserted returns the number of new snapshots.
func (s *ImportStats) Inserted() int64 { return s.inserted.Load() }

// Updated returns the number of replaced snapshots.
func (s *ImportStats) Updated() int64 { return s.updated.Load() }

// Failed returns the number of snapshots that failed to store.
func (s *ImportStats) Failed() int64 { return s.failed.Load() }

// Total returns inserted plus updated.
func (s *ImportStats) Total() int64 {
	return s.Inserted() + s.Updated()
}

// String returns a human-readable summary of the statistics.
func (s *ImportStats) String() string {
	return fmt.Sprintf("markets=%d inserted=%d updated=%d failed=%d",
		s.Markets(), s.Inserted(), s.Updated(), s.Failed())
}

// LogSummary logs the counts at INFO, or WARN when any snapshot failed.
func (s *ImportStats) LogSummary(logger *slog.Logger, source string) {
	level := slog.LevelInfo
	if s.Failed() > 0 {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "kpi import finished",
		"source", source,
		"markets", s.Markets(),
		"inserted", s.Inserted(),
		"updated", s.Updated(),
		"failed", s.Failed(),
	)
}
