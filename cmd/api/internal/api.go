package internal

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	datafeed "github.com/fazecat/morningscout/Internal/database"
	"github.com/fazecat/morningscout/Internal/metrics"
	"github.com/fazecat/morningscout/Internal/strategy/detection"
	"github.com/fazecat/morningscout/Internal/utils"
	"github.com/fazecat/morningscout/Internal/utils/config"
	"github.com/fazecat/morningscout/Internal/utils/scanner"
	"github.com/fazecat/morningscout/Internal/utils/universe"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const tokenLifetimeHours = 24

type API struct {
	Cfg        *config.Config
	Universe   universe.Options
	JWTManager *JWTManager
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
	// ClientKey must accompany token requests. Token issuance is disabled
	// while it is empty.
	ClientKey string
	// Watchlist is pinged by /health when configured.
	Watchlist *datafeed.WatchlistStore

	NewSource func(mode string, cfg *config.Config) (datafeed.BarSource, error)
	Now       func() time.Time
}

// Router wires every route. Scan endpoints require a bearer token.
func (api *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CorsMiddleware)

	r.Get("/health", api.HandleHealth)
	r.Post("/api/token", api.HandleGenerateToken)
	r.Get("/api/rules", api.HandleRules)
	r.Get("/api/market-status", api.HandleMarketStatus)

	if api.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(api.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(JWTAuthMiddleware(api.JWTManager))
		r.Get("/api/scan", api.HandleScan)
	})
	return r
}

func (api *API) now() time.Time {
	if api.Now != nil {
		return api.Now()
	}
	return time.Now()
}

func (api *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{"status": "healthy"}
	if api.Watchlist != nil {
		if err := api.Watchlist.HealthCheck(r.Context()); err != nil {
			slog.Warn("watchlist database unreachable", "error", err)
			status["database"] = "unreachable"
		} else {
			status["database"] = "ok"
		}
	}
	WriteJSON(w, http.StatusOK, status)
}

type tokenRequest struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	ClientKey string `json:"client_key"`
}

func (api *API) HandleGenerateToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if api.ClientKey == "" {
		WriteError(w, http.StatusServiceUnavailable, "Token issuance is disabled")
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.ClientKey), []byte(api.ClientKey)) != 1 {
		WriteError(w, http.StatusUnauthorized, "Invalid client key")
		return
	}

	token, err := api.JWTManager.GenerateToken(req.UserID, req.Email, tokenLifetimeHours)
	if err != nil {
		slog.Error("token generation failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_in": tokenLifetimeHours * 3600,
	})
}

type ruleInfo struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Kind     string `json:"kind"`
	Polarity string `json:"polarity"`
	Weighted bool   `json:"weighted"`
	Weight   int    `json:"weight"`
}

// HandleRules lists the rule catalog in evaluation order with configured weights.
func (api *API) HandleRules(w http.ResponseWriter, r *http.Request) {
	rules := detection.Rules()
	out := make([]ruleInfo, 0, len(rules))
	for _, rule := range rules {
		out = append(out, ruleInfo{
			Key:      rule.Key,
			Label:    rule.Pattern.Label(),
			Kind:     rule.Kind.String(),
			Polarity: rule.Polarity.String(),
			Weighted: rule.Weighted,
			Weight:   api.Cfg.Weight(rule.Key),
		})
	}
	WriteJSON(w, http.StatusOK, out)
}

func (api *API) HandleMarketStatus(w http.ResponseWriter, r *http.Request) {
	now := api.now()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": utils.CheckMarketStatus(now, api.Cfg.Window()),
		"time":   now.In(api.Cfg.Location()).Format(time.RFC3339),
	})
}

// HandleScan runs a scan for ?universe=&mode= and answers with JSON or,
// for format=csv, the export file as an attachment.
func (api *API) HandleScan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("universe")
	if name == "" {
		name = api.Cfg.UniverseDefault
	}
	mode := q.Get("mode")
	if mode == "" {
		mode = api.Cfg.Data.Mode
	}
	format := strings.ToLower(q.Get("format"))
	if format != "" && format != "json" && format != "csv" {
		WriteError(w, http.StatusBadRequest, "format must be json or csv")
		return
	}
	// universe values are names, never server-side paths
	if strings.ContainsAny(name, `/\.`) {
		WriteError(w, http.StatusBadRequest, "universe must be a name")
		return
	}

	tickers, err := universe.Resolve(r.Context(), name, api.Universe)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	source, err := api.NewSource(mode, api.Cfg)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, datafeed.ErrProviderUnavailable) {
			status = http.StatusServiceUnavailable
		}
		WriteError(w, status, err.Error())
		return
	}

	res, err := scanner.RunScan(r.Context(), tickers, api.Cfg, scanner.NewDataProvider(source, api.Cfg), scanner.Options{Metrics: api.Metrics})
	if err != nil {
		slog.Warn("scan aborted", "universe", name, "error", err)
		WriteError(w, http.StatusServiceUnavailable, "scan canceled")
		return
	}

	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="`+scanner.ExportFilename(api.now())+`"`)
		if err := res.Table.WriteCSV(w); err != nil {
			slog.Error("failed to write csv", "error", err)
		}
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"universe": name,
		"mode":     mode,
		"table":    res.Table,
		"stats":    res.Stats,
	})
}
