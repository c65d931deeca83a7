package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fazecat/morningscout/Internal/metrics"
	"github.com/fazecat/morningscout/Internal/utils/config"
	"github.com/fazecat/morningscout/Internal/utils/scanner"
	"github.com/fazecat/morningscout/Internal/utils/universe"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticWatchlist []string

func (w staticWatchlist) ActiveSymbols(ctx context.Context) ([]string, error) {
	return w, nil
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestAPI(t *testing.T) *API {
	t.Helper()
	dir := t.TempDir()
	fixture := strings.Join([]string{
		"Date,Open,High,Low,Close,Volume",
		"2024-03-11,10,10.5,9.8,9.9,1000000",
		"2024-03-12,9.95,10.05,9.85,10.0,1000000",
		"2024-03-13,10.1,10.6,10.0,10.5,1000000",
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "STAR_daily.csv"), []byte(fixture), 0644))

	cfg := config.Default()
	cfg.Data.Mode = scanner.ModeSample
	cfg.Data.SampleDir = dir
	cfg.Scoring.Weights = map[string]int{"morning_star": 3}
	require.NoError(t, cfg.Validate())

	reg := prometheus.NewRegistry()
	return &API{
		Cfg:        cfg,
		Universe:   universe.Options{Watchlist: staticWatchlist{"STAR", "NOPE"}},
		JWTManager: NewJWTManager("test-secret"),
		Metrics:    metrics.NewMetrics(reg),
		Gatherer:   reg,
		ClientKey:  "letmein",
		NewSource:  scanner.NewBarSource,
		Now:        func() time.Time { return time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC) },
	}
}

func do(t *testing.T, h http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var r response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r), rec.Body.String())
	return r
}

func token(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/token", `{"user_id":"u1","email":"u1@example.com","client_key":"letmein"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func TestHealth(t *testing.T) {
	h := newTestAPI(t).Router()
	rec := do(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	r := decode(t, rec)
	assert.True(t, r.Success)
	assert.JSONEq(t, `{"status":"healthy"}`, string(r.Data))
}

func TestGenerateToken(t *testing.T) {
	h := newTestAPI(t).Router()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"missing user", `{"client_key":"letmein"}`, http.StatusBadRequest},
		{"wrong key", `{"user_id":"u1","client_key":"nope"}`, http.StatusUnauthorized},
		{"ok", `{"user_id":"u1","client_key":"letmein"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/token", tt.body, "")
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestGenerateToken_DisabledWithoutClientKey(t *testing.T) {
	api := newTestAPI(t)
	api.ClientKey = ""
	h := api.Router()

	rec := do(t, h, http.MethodPost, "/api/token", `{"user_id":"u1"}`, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	r := decode(t, rec)
	assert.False(t, r.Success)
	assert.Equal(t, "Token issuance is disabled", r.Error)
	assert.Empty(t, r.Data)

	rec = do(t, h, http.MethodGet, "/api/scan?universe=watchlist", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestScan_RequiresToken(t *testing.T) {
	h := newTestAPI(t).Router()

	rec := do(t, h, http.MethodGet, "/api/scan", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Missing authorization header", decode(t, rec).Error)

	rec = do(t, h, http.MethodGet, "/api/scan", "", "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other := NewJWTManager("other-secret")
	forged, err := other.GenerateToken("u1", "", 1)
	require.NoError(t, err)
	rec = do(t, h, http.MethodGet, "/api/scan", "", forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestScan_JSON(t *testing.T) {
	h := newTestAPI(t).Router()
	rec := do(t, h, http.MethodGet, "/api/scan?universe=watchlist", "", token(t, h))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data struct {
		Universe string `json:"universe"`
		Mode     string `json:"mode"`
		Table    struct {
			Columns []string                 `json:"columns"`
			Rows    []map[string]interface{} `json:"rows"`
		} `json:"table"`
		Stats struct {
			Requested  int               `json:"requested"`
			Rejections map[string]string `json:"rejections"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))

	assert.Equal(t, "watchlist", data.Universe)
	assert.Equal(t, scanner.ModeSample, data.Mode)
	assert.Equal(t, []string{"ticker", "score", "gap_pct", "rel_dollar_vol", "avg20_dollar_vol", "reasons"}, data.Table.Columns)
	require.Len(t, data.Table.Rows, 1)
	assert.Equal(t, "STAR", data.Table.Rows[0]["ticker"])
	assert.EqualValues(t, 3, data.Table.Rows[0]["score"])
	assert.Equal(t, 2, data.Stats.Requested)
	assert.Equal(t, "no sample data", data.Stats.Rejections["NOPE"])
}

func TestScan_CSV(t *testing.T) {
	h := newTestAPI(t).Router()
	rec := do(t, h, http.MethodGet, "/api/scan?universe=watchlist&format=csv", "", token(t, h))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "scan_20240314_120000.csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ticker,score,gap_pct,rel_dollar_vol,avg20_dollar_vol,reasons", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "STAR,3,na,na,"), lines[1])
}

func TestScan_BadRequests(t *testing.T) {
	h := newTestAPI(t).Router()
	tok := token(t, h)

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"format", "?universe=watchlist&format=xml", "format must be json or csv"},
		{"path", "?universe=..%2Fetc%2Fpasswd", "universe must be a name"},
		{"unknown universe", "?universe=russell", "Unknown universe or missing file: russell"},
		{"mode", "?universe=watchlist&mode=paper", "unknown data mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/api/scan"+tt.query, "", tok)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode(t, rec).Error, tt.want)
		})
	}
}

func TestRules(t *testing.T) {
	h := newTestAPI(t).Router()
	rec := do(t, h, http.MethodGet, "/api/rules", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var rules []ruleInfo
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &rules))
	require.NotEmpty(t, rules)
	assert.Equal(t, ruleInfo{Key: "hammer", Label: "Hammer", Kind: "candle", Polarity: "bullish", Weighted: true}, rules[0])

	byKey := map[string]ruleInfo{}
	for _, r := range rules {
		byKey[r.Key] = r
	}
	assert.Equal(t, 3, byKey["morning_star"].Weight)
	assert.False(t, byKey["doji"].Weighted)
	assert.Equal(t, "indecision", byKey["doji"].Polarity)
	assert.Equal(t, "trend", byKey["gap_up"].Kind)
}

func TestMarketStatus(t *testing.T) {
	h := newTestAPI(t).Router()
	rec := do(t, h, http.MethodGet, "/api/market-status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"PREMARKET","time":"2024-03-14T08:00:00-04:00"}`, string(decode(t, rec).Data))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestAPI(t).Router()
	do(t, h, http.MethodGet, "/api/scan?universe=watchlist", "", token(t, h))

	rec := do(t, h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "morningscout_scans_total 1")
}

func TestCORSPreflight(t *testing.T) {
	h := newTestAPI(t).Router()
	rec := do(t, h, http.MethodOptions, "/api/scan", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
