package kpi

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/onnwee/leaderhub/internal/ranking"
	"github.com/onnwee/leaderhub/internal/stats"
)

const sampleFixture = `
markets:
  - id: 1
    name: Denver
    short_name: DEN
    providers:
      - provider_id: 10
        first_name: Ava
        last_name: Reyes
        job_title: APP
        metrics:
          on_scene_time_median_seconds: 1260
          on_scene_time_week_change_seconds: -30
          chart_closure_rate: 0.93
      - provider_id: 11
        first_name: Ben
        last_name: Ortiz
        job_title: EMT
        metrics:
          chart_closure_rate: 0.88
  - id: 2
    name: Phoenix
    providers: []
`

func TestParseFixture(t *testing.T) {
	f, err := ParseFixture([]byte(sampleFixture))
	if err != nil {
		t.Fatalf("ParseFixture() error = %v", err)
	}
	if len(f.Markets) != 2 {
		t.Fatalf("expected 2 markets, got %d", len(f.Markets))
	}

	den := f.Markets[0]
	if den.ID != 1 || den.ShortName != "DEN" || len(den.Providers) != 2 {
		t.Fatalf("unexpected market %+v", den)
	}
	ava := den.Providers[0]
	if ava.Metrics.OnSceneTimeMedianSeconds == nil || *ava.Metrics.OnSceneTimeMedianSeconds != 1260 {
		t.Errorf("on scene median = %v", ava.Metrics.OnSceneTimeMedianSeconds)
	}
	if ava.Metrics.SurveyCaptureRate != nil {
		t.Error("metrics absent from the fixture should stay nil")
	}
}

func TestParseFixture_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
		wantMsg string
	}{
		{
			name:    "unknown metric key",
			doc:     "markets:\n  - id: 1\n    providers:\n      - provider_id: 1\n        metrics:\n          chart_closure: 0.9\n",
			wantMsg: "chart_closure",
		},
		{
			name:    "zero market id",
			doc:     "markets:\n  - id: 0\n",
			wantErr: ErrInvalidMarketID,
		},
		{
			name:    "zero provider id",
			doc:     "markets:\n  - id: 1\n    providers:\n      - first_name: Nobody\n",
			wantErr: ErrInvalidProvider,
		},
		{
			name:    "duplicate provider",
			doc:     "markets:\n  - id: 1\n    providers:\n      - provider_id: 4\n      - provider_id: 4\n",
			wantMsg: "duplicate provider id 4",
		},
		{
			name:    "duplicate market",
			doc:     "markets:\n  - id: 3\n  - id: 3\n",
			wantMsg: "duplicate market id 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFixture([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoadFixture_MissingFile(t *testing.T) {
	if _, err := LoadFixture(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFixture_Apply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(sampleFixture), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	f, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture() error = %v", err)
	}

	ctx := context.Background()
	repo := NewInMemoryRepository()
	st := stats.NewImportStats()

	if err := f.Apply(ctx, repo, 2, st); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if st.Markets() != 2 || st.Inserted() != 2 || st.Updated() != 0 {
		t.Errorf("first import stats = %s", st)
	}

	records, err := repo.ListByMarket(ctx, 1)
	if err != nil {
		t.Fatalf("ListByMarket() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for _, r := range records {
		if r.EntityID == "10" && r.Category != ranking.CategoryAPP {
			t.Errorf("provider 10 category = %q", r.Category)
		}
	}

	// Re-applying replaces snapshots in place.
	again := stats.NewImportStats()
	if err := f.Apply(ctx, repo, 0, again); err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	if again.Inserted() != 0 || again.Updated() != 2 {
		t.Errorf("second import stats = %s", again)
	}
}

type failingUpsertRepo struct {
	*InMemoryRepository
}

func (failingUpsertRepo) Upsert(context.Context, int64, ProviderMetrics) (bool, error) {
	return false, errors.New("connection reset")
}

func TestFixture_Apply_StopsOnFailure(t *testing.T) {
	f, err := ParseFixture([]byte(sampleFixture))
	if err != nil {
		t.Fatalf("ParseFixture() error = %v", err)
	}

	st := stats.NewImportStats()
	err = f.Apply(context.Background(), failingUpsertRepo{NewInMemoryRepository()}, 1, st)
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("Apply() error = %v", err)
	}
	if st.Markets() != 1 {
		t.Errorf("import should stop at the first market, got %d markets", st.Markets())
	}
	if st.Failed() == 0 {
		t.Error("expected failures to be counted")
	}
}
