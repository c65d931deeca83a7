package datafeed

import (
	"context"
	"errors"

	"github.com/fazecat/morningscout/Internal/types"
)

var (
	// ErrNoData matches every NoDataError.
	ErrNoData = errors.New("no data")

	ErrProviderUnavailable = errors.New("market data provider unavailable")
)

// NoDataError reports that a source has nothing for a ticker. Reason is the
// text shown as the ticker's failure.
type NoDataError struct {
	Reason string
}

func (e *NoDataError) Error() string { return e.Reason }

func (e *NoDataError) Is(target error) bool { return target == ErrNoData }

// BarSource returns raw bars for one ticker in ascending time order.
// IntradayBars covers the current session including extended hours and may
// be empty.
type BarSource interface {
	DailyBars(ctx context.Context, ticker string) ([]types.Bar, error)
	IntradayBars(ctx context.Context, ticker string) ([]types.Bar, error)
}
