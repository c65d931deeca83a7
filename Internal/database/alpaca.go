package datafeed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/fazecat/morningscout/Internal/types"
	"github.com/fazecat/morningscout/Internal/utils"
)

const defaultTradingURL = "https://paper-api.alpaca.markets"

// MarketDataClient is the slice of the Alpaca market data client used here.
type MarketDataClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

var _ MarketDataClient = (*marketdata.Client)(nil)

type alpacaCredentials struct {
	apiKey    string
	secretKey string
}

func credentialsFromEnv() (alpacaCredentials, error) {
	creds := alpacaCredentials{
		apiKey:    os.Getenv("ALPACA_API_KEY"),
		secretKey: os.Getenv("ALPACA_API_SECRET"),
	}
	if creds.apiKey == "" || creds.secretKey == "" {
		return creds, fmt.Errorf("%w: ALPACA_API_KEY and ALPACA_API_SECRET must be set", ErrProviderUnavailable)
	}
	return creds, nil
}

// NewMarketDataClient builds an Alpaca market data client from the environment.
// ALPACA_DATA_URL overrides the endpoint.
func NewMarketDataClient() (*marketdata.Client, error) {
	creds, err := credentialsFromEnv()
	if err != nil {
		return nil, err
	}
	return marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    creds.apiKey,
		APISecret: creds.secretKey,
		BaseURL:   os.Getenv("ALPACA_DATA_URL"),
	}), nil
}

// NewTradingClient builds the Alpaca trading client used for asset listings.
func NewTradingClient() (*alpaca.Client, error) {
	creds, err := credentialsFromEnv()
	if err != nil {
		return nil, err
	}
	baseURL := os.Getenv("ALPACA_BASE_URL")
	if baseURL == "" {
		baseURL = defaultTradingURL
	}
	return alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    creds.apiKey,
		APISecret: creds.secretKey,
		BaseURL:   baseURL,
	}), nil
}

// AlpacaSource fetches daily and one-minute bars from Alpaca.
type AlpacaSource struct {
	client       MarketDataClient
	lookbackDays int
	feed         string
	location     *time.Location
	retry        utils.RetryConfig
	now          func() time.Time
}

func NewAlpacaSource(client MarketDataClient, lookbackDays int, feed string, loc *time.Location) *AlpacaSource {
	return &AlpacaSource{
		client:       client,
		lookbackDays: lookbackDays,
		feed:         feed,
		location:     loc,
		retry:        utils.DefaultRetryConfig(),
		now:          time.Now,
	}
}

var _ BarSource = (*AlpacaSource)(nil)

// DailyBars returns up to lookbackDays unadjusted daily bars ending now.
func (s *AlpacaSource) DailyBars(ctx context.Context, ticker string) ([]types.Bar, error) {
	now := s.now()
	// trading days are about 5/7 of calendar days, pad for holidays
	calendarDays := s.lookbackDays*7/5 + 10
	bars, err := s.fetch(ctx, ticker, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.Raw,
		Start:      now.AddDate(0, 0, -calendarDays),
		End:        now,
		Feed:       marketdata.Feed(s.feed),
	})
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, &NoDataError{Reason: "no daily"}
	}
	if len(bars) > s.lookbackDays {
		bars = bars[len(bars)-s.lookbackDays:]
	}
	return bars, nil
}

// IntradayBars returns today's one-minute bars, extended hours included.
func (s *AlpacaSource) IntradayBars(ctx context.Context, ticker string) ([]types.Bar, error) {
	now := s.now()
	return s.fetch(ctx, ticker, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneMin,
		Adjustment: marketdata.Raw,
		Start:      utils.SessionDate(now, s.location),
		End:        now,
		Feed:       marketdata.Feed(s.feed),
	})
}

func (s *AlpacaSource) fetch(ctx context.Context, ticker string, req marketdata.GetBarsRequest) ([]types.Bar, error) {
	var raw []marketdata.Bar
	err := utils.RetryWithBackoff(ctx, func() error {
		if err := ctx.Err(); err != nil {
			return utils.Permanent(err)
		}
		var err error
		raw, err = s.client.GetBars(ticker, req)
		return err
	}, s.retry)
	if err != nil {
		return nil, fmt.Errorf("alpaca bars %s: %w", ticker, err)
	}

	slog.Debug("fetched bars", "ticker", ticker, "start", req.Start, "count", len(raw))
	bars := make([]types.Bar, len(raw))
	for i, b := range raw {
		bars[i] = types.Bar{
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    float64(b.Volume),
		}
	}
	return bars, nil
}
