package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/onnwee/leaderhub/internal/kpi"
	"github.com/onnwee/leaderhub/internal/leaderboard"
	"github.com/onnwee/leaderhub/internal/middleware"
	"github.com/onnwee/leaderhub/internal/ranking"
)

// LeaderboardService is the subset of *leaderboard.Service the handlers use.
type LeaderboardService interface {
	Leaderboard(ctx context.Context, q leaderboard.Query) (*ranking.Result, error)
	ProviderSummary(ctx context.Context, marketID int64, selfID string, positions []ranking.Category) (*leaderboard.Summary, error)
	Dimensions() []ranking.CatalogDimension
}

// MarketLister lists markets.
type MarketLister interface {
	ListMarkets(ctx context.Context) ([]kpi.Market, error)
}

// LeaderboardResponse is the body of GET /v1/markets/{marketID}/leaderboard.
type LeaderboardResponse struct {
	MarketID  int64                 `json:"market_id"`
	Dimension ranking.Dimension     `json:"dimension"`
	Direction ranking.SortDirection `json:"direction"`
	*ranking.Result
}

// DimensionsResponse is the body of GET /v1/dimensions.
type DimensionsResponse struct {
	Dimensions []ranking.CatalogDimension `json:"dimensions"`
}

// MarketsResponse is the body of GET /v1/markets.
type MarketsResponse struct {
	Markets []kpi.Market `json:"markets"`
}

// LeaderboardHandlers serves leaderboard endpoints.
type LeaderboardHandlers struct {
	service LeaderboardService
	markets MarketLister
}

// NewLeaderboardHandlers creates leaderboard handlers.
func NewLeaderboardHandlers(service LeaderboardService, markets MarketLister) *LeaderboardHandlers {
	return &LeaderboardHandlers{service: service, markets: markets}
}

// RegisterRoutes mounts the handlers on mux. protect wraps every route
// that needs an authenticated provider.
func (h *LeaderboardHandlers) RegisterRoutes(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	mux.Handle("GET /v1/markets/{marketID}/leaderboard", protect(http.HandlerFunc(h.GetLeaderboard)))
	mux.Handle("GET /v1/markets/{marketID}/leaderboard/me", protect(http.HandlerFunc(h.GetProviderSummary)))
	mux.Handle("GET /v1/markets", protect(http.HandlerFunc(h.ListMarkets)))
	mux.HandleFunc("GET /v1/dimensions", h.ListDimensions)

	for _, pattern := range []string{
		"/v1/markets/{marketID}/leaderboard",
		"/v1/markets/{marketID}/leaderboard/me",
		"/v1/markets",
		"/v1/dimensions",
	} {
		mux.Handle(pattern, MethodNotAllowed(http.MethodGet))
	}
}

// GetLeaderboard handles GET /v1/markets/{marketID}/leaderboard.
//
// Query parameters:
//   - dimension (required): a dimension key, e.g. on_scene_time
//   - position (repeatable or comma separated): APP, DHMT or a job title
//     alias. Defaults to the caller's own position.
//   - direction: asc or desc, overriding the dimension default
//
// Callers whose token position is not APP or DHMT get 403.
func (h *LeaderboardHandlers) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	marketID, ok := marketIDFromPath(w, r)
	if !ok {
		return
	}
	caller, ok := callerCategory(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	dimension := strings.TrimSpace(query.Get("dimension"))
	if dimension == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "dimension is required")
		return
	}

	direction, err := ranking.ParseSortDirection(strings.ToLower(strings.TrimSpace(query.Get("direction"))))
	if err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	positions, err := peerPositions(query["position"], caller)
	if err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	result, err := h.service.Leaderboard(r.Context(), leaderboard.Query{
		MarketID:  marketID,
		Dimension: ranking.Dimension(dimension),
		Direction: direction,
		Positions: positions,
		SelfID:    middleware.GetProviderID(r.Context()),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if direction == "" {
		spec, _ := ranking.LookupDimension(ranking.Dimension(dimension))
		direction = spec.Direction
	}
	writeJSON(w, r, LeaderboardResponse{
		MarketID:  marketID,
		Dimension: ranking.Dimension(dimension),
		Direction: direction,
		Result:    result,
	})
}

// GetProviderSummary handles GET /v1/markets/{marketID}/leaderboard/me.
// It accepts the same position parameter as GetLeaderboard.
func (h *LeaderboardHandlers) GetProviderSummary(w http.ResponseWriter, r *http.Request) {
	marketID, ok := marketIDFromPath(w, r)
	if !ok {
		return
	}

	providerID := middleware.GetProviderID(r.Context())
	if providerID == "" {
		WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}
	caller, ok := callerCategory(w, r)
	if !ok {
		return
	}
	positions, err := peerPositions(r.URL.Query()["position"], caller)
	if err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	summary, err := h.service.ProviderSummary(r.Context(), marketID, providerID, positions)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, summary)
}

// ListDimensions handles GET /v1/dimensions.
func (h *LeaderboardHandlers) ListDimensions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, DimensionsResponse{Dimensions: h.service.Dimensions()})
}

// ListMarkets handles GET /v1/markets.
func (h *LeaderboardHandlers) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := h.markets.ListMarkets(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, MarketsResponse{Markets: markets})
}

func marketIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("marketID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, fmt.Sprintf("invalid market id %q", raw))
		return 0, false
	}
	return id, true
}

// callerCategory maps the token's position claim to a category. Only APP and
// DHMT providers have a leaderboard.
func callerCategory(w http.ResponseWriter, r *http.Request) (ranking.Category, bool) {
	c := ranking.ParseCategory(middleware.GetPosition(r))
	if !c.Recognized() {
		WriteError(w, r.Context(), http.StatusForbidden, ErrCodeForbidden,
			"Leaderboards are only available to APP and DHMT providers")
		return "", false
	}
	return c, true
}

// peerPositions returns the requested position filter, or the caller's own
// category when none was given.
func peerPositions(values []string, caller ranking.Category) ([]ranking.Category, error) {
	positions, err := parsePositions(values)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		positions = []ranking.Category{caller}
	}
	return positions, nil
}

// parsePositions accepts repeated and comma separated values. Only
// recognized categories may be used as a filter.
func parsePositions(values []string) ([]ranking.Category, error) {
	var out []ranking.Category
	seen := make(map[ranking.Category]bool)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			c := ranking.ParseCategory(part)
			if !c.Recognized() {
				return nil, fmt.Errorf("unknown position %q", part)
			}
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out, nil
}
