package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// CatalogEntry configures one dimension for a deployment.
type CatalogEntry struct {
	Enabled *bool  `json:"enabled,omitempty"` // nil keeps the default (enabled)
	Label   string `json:"label,omitempty"`   // empty keeps the default label
}

// CatalogConfig represents the JSON structure of the catalog file.
type CatalogConfig struct {
	Version    string                     `json:"version"`
	Dimensions map[Dimension]CatalogEntry `json:"dimensions"`
}

// CatalogDimension is a resolved catalog entry.
type CatalogDimension struct {
	Key       Dimension     `json:"key"`
	Label     string        `json:"label"`
	Direction SortDirection `json:"direction"`
	Enabled   bool          `json:"enabled"`
}

// Catalog lists every known dimension with its deployment settings, in
// dimension table order.
type Catalog struct {
	Dimensions []CatalogDimension `json:"dimensions"`
}

// DefaultCatalog enables every dimension with its built-in label.
func DefaultCatalog() *Catalog {
	c := &Catalog{Dimensions: make([]CatalogDimension, 0, len(dimensions))}
	for _, d := range dimensions {
		c.Dimensions = append(c.Dimensions, CatalogDimension{
			Key:       d.Key,
			Label:     d.Label,
			Direction: d.Direction,
			Enabled:   true,
		})
	}
	return c
}

// Enabled returns the enabled dimensions in table order.
func (c *Catalog) Enabled() []CatalogDimension {
	out := make([]CatalogDimension, 0, len(c.Dimensions))
	for _, d := range c.Dimensions {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

// IsEnabled reports whether key is a known, enabled dimension.
func (c *Catalog) IsEnabled(key Dimension) bool {
	for _, d := range c.Dimensions {
		if d.Key == key {
			return d.Enabled
		}
	}
	return false
}

// Label returns the configured label for key, or the key itself.
func (c *Catalog) Label(key Dimension) string {
	for _, d := range c.Dimensions {
		if d.Key == key {
			return d.Label
		}
	}
	return string(key)
}

// LoadCatalog loads dimension settings from a JSON catalog file.
// An empty path yields the default catalog. If the file can't be read or
// parsed, the default catalog is returned together with the error so callers
// can degrade gracefully. Partial files are merged over the defaults.
func LoadCatalog(filePath string) (*Catalog, error) {
	if filePath == "" {
		return DefaultCatalog(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read dimension catalog, using defaults",
			"path", filePath,
			"error", err)
		return DefaultCatalog(), fmt.Errorf("failed to read dimension catalog: %w", err)
	}

	var config CatalogConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse dimension catalog, using defaults",
			"path", filePath,
			"error", err)
		return DefaultCatalog(), fmt.Errorf("failed to parse dimension catalog: %w", err)
	}

	defaults := DefaultCatalog()
	merged := MergeCatalog(defaults, &config)
	logCatalogOverrides(defaults, merged)

	return merged, nil
}

// MergeCatalog applies override entries to a copy of base. Entries for
// unknown dimensions are ignored.
func MergeCatalog(base *Catalog, override *CatalogConfig) *Catalog {
	if base == nil {
		base = DefaultCatalog()
	}

	result := &Catalog{Dimensions: make([]CatalogDimension, len(base.Dimensions))}
	copy(result.Dimensions, base.Dimensions)
	if override == nil {
		return result
	}

	for key := range override.Dimensions {
		if _, err := LookupDimension(key); err != nil {
			slog.Warn("ignoring unknown dimension in catalog", "dimension", key)
		}
	}

	for i, d := range result.Dimensions {
		entry, ok := override.Dimensions[d.Key]
		if !ok {
			continue
		}
		if entry.Enabled != nil {
			result.Dimensions[i].Enabled = *entry.Enabled
		}
		if entry.Label != "" {
			result.Dimensions[i].Label = entry.Label
		}
	}

	return result
}

// logCatalogOverrides logs which dimensions differ from the defaults.
func logCatalogOverrides(defaults, loaded *Catalog) {
	var overrides []string
	for i, d := range loaded.Dimensions {
		def := defaults.Dimensions[i]
		if d.Enabled != def.Enabled {
			overrides = append(overrides, fmt.Sprintf("%s.enabled: %t -> %t", d.Key, def.Enabled, d.Enabled))
		}
		if d.Label != def.Label {
			overrides = append(overrides, fmt.Sprintf("%s.label: %q -> %q", d.Key, def.Label, d.Label))
		}
	}

	if len(overrides) > 0 {
		slog.Info("loaded dimension catalog with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded dimension catalog (using all defaults)")
	}
}
