package indicator_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/mock/gomock"
	"stockproxy/internal/cache"
	"stockproxy/internal/indicator"
	"stockproxy/internal/metrics"
	"stockproxy/internal/provider"
)

// dailySeries renders a TIME_SERIES_DAILY payload with n days, newest
// first. Day i (0 = oldest) closes at i+1.
func dailySeries(n int) gjson.Result {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		date := start.AddDate(0, 0, i).Format(time.DateOnly)
		rows = append(rows, fmt.Sprintf(
			`%q: {"1. open": "%d.0", "2. high": "%d.5", "3. low": "%d.0", "4. close": "%d", "5. volume": "%d"}`,
			date, i, i+2, i, i+1, 1000+i,
		))
	}
	return gjson.Parse(`{"Meta Data": {"2. Symbol": "IBM"}, "Time Series (Daily)": {` + strings.Join(rows, ",") + `}}`)
}

func rsiSeries(values ...string) gjson.Result {
	rows := make([]string, 0, len(values))
	for i, v := range values {
		rows = append(rows, fmt.Sprintf(`"2024-02-%02d": {"RSI": %q}`, len(values)-i, v))
	}
	return gjson.Parse(`{"Technical Analysis: RSI": {` + strings.Join(rows, ",") + `}}`)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestService_OHLC_CachedWithinTTL(t *testing.T) {
	t.Parallel()

	// Arrange: provider answers once
	ctrl := gomock.NewController(t)
	fetcher := NewMockFetcher(ctrl)
	fetcher.EXPECT().
		Fetch(gomock.Any(), provider.TimeSeriesDaily, "IBM", gomock.Nil()).
		Return(dailySeries(3), nil).
		Times(1)
	svc := indicator.NewService(fetcher, cache.NewMemory())

	// Act: ask twice
	first, err := svc.OHLC(t.Context(), "IBM")
	require.NoError(t, err)
	second, err := svc.OHLC(t.Context(), "IBM")
	require.NoError(t, err)

	// Assert: same series, one upstream call, provider order kept
	require.Equal(t, first, second)
	require.Len(t, first, 3)
	require.Equal(t, "2024-01-03", first[0].Date)
	require.Equal(t, "2024-01-01", first[2].Date)
	require.Equal(t, indicator.Volume{Value: 1002, Valid: true}, first[0].Volume)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestService_RefetchesAfterTTL(t *testing.T) {
	t.Parallel()

	// Arrange: a store with a controllable clock
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := cache.NewMemory(cache.WithClock(clock.Now))

	ctrl := gomock.NewController(t)
	fetcher := NewMockFetcher(ctrl)
	fetcher.EXPECT().
		Fetch(gomock.Any(), provider.MACD, "IBM", gomock.Nil()).
		Return(gjson.Parse(`{"Technical Analysis: MACD": {"2024-02-01": {"MACD": "1", "MACD_Signal": "2", "MACD_Hist": "-1"}}}`), nil).
		Times(2)
	svc := indicator.NewService(fetcher, store, indicator.WithTTL(time.Minute))

	// Act: miss, hit, then miss again once the entry expires
	_, err := svc.MACD(t.Context(), "IBM")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = svc.MACD(t.Context(), "IBM")
	require.NoError(t, err)
	clock.Advance(time.Second)
	got, err := svc.MACD(t.Context(), "IBM")
	require.NoError(t, err)

	// Assert
	require.Equal(t, []indicator.MACD{{Date: "2024-02-01", MACD: 1, Signal: 2, Histogram: -1}}, got)
}

func TestService_RSI_KeyedByTimePeriod(t *testing.T) {
	t.Parallel()

	// Arrange: each period is a separate upstream request
	ctrl := gomock.NewController(t)
	fetcher := NewMockFetcher(ctrl)
	fetcher.EXPECT().
		Fetch(gomock.Any(), provider.RSI, "IBM", provider.Params{"time_period": "14"}).
		Return(rsiSeries("55.5", "54.1"), nil).
		Times(1)
	fetcher.EXPECT().
		Fetch(gomock.Any(), provider.RSI, "IBM", provider.Params{"time_period": "21"}).
		Return(rsiSeries("60.0"), nil).
		Times(1)
	svc := indicator.NewService(fetcher, cache.NewMemory())

	// Act: 0 falls back to 14 and shares its entry
	p14, err := svc.RSI(t.Context(), "IBM", 14)
	require.NoError(t, err)
	p0, err := svc.RSI(t.Context(), "IBM", 0)
	require.NoError(t, err)
	p21, err := svc.RSI(t.Context(), "IBM", 21)
	require.NoError(t, err)

	// Assert
	require.Equal(t, p14, p0)
	require.Len(t, p14, 2)
	require.Equal(t, "2024-02-02", p14[0].Date)
	require.InDelta(t, 55.5, float64(p14[0].RSI), 1e-9)
	require.Len(t, p21, 1)
	require.InDelta(t, 60.0, float64(p21[0].RSI), 1e-9)
}

func TestService_MissingSectionIsEmpty(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	fetcher := NewMockFetcher(ctrl)
	fetcher.EXPECT().
		Fetch(gomock.Any(), gomock.Any(), "ZZZZ", gomock.Any()).
		Return(gjson.Parse(`{"Information": "nothing here"}`), nil).
		AnyTimes()
	svc := indicator.NewService(fetcher, cache.NewMemory())

	ohlc, err := svc.OHLC(t.Context(), "ZZZZ")
	require.NoError(t, err)
	require.NotNil(t, ohlc)
	require.Empty(t, ohlc)

	rsi, err := svc.RSI(t.Context(), "ZZZZ", 14)
	require.NoError(t, err)
	require.NotNil(t, rsi)
	require.Empty(t, rsi)

	sma, err := svc.DoubleSMA(t.Context(), "ZZZZ")
	require.NoError(t, err)
	require.NotNil(t, sma)
	require.Empty(t, sma)

	// Assert: empty results encode as [] rather than null
	b, err := json.Marshal(sma)
	require.NoError(t, err)
	require.Equal(t, "[]", string(b))
}

func TestService_DoubleSMA_CachedApartFromOHLC(t *testing.T) {
	t.Parallel()

	// Arrange: both indicators read the daily series, each fetches it once
	ctrl := gomock.NewController(t)
	fetcher := NewMockFetcher(ctrl)
	fetcher.EXPECT().
		Fetch(gomock.Any(), provider.TimeSeriesDaily, "IBM", gomock.Nil()).
		Return(dailySeries(25), nil).
		Times(2)
	svc := indicator.NewService(fetcher, cache.NewMemory())

	// Act
	ohlc, err := svc.OHLC(t.Context(), "IBM")
	require.NoError(t, err)
	sma, err := svc.DoubleSMA(t.Context(), "IBM")
	require.NoError(t, err)
	again, err := svc.DoubleSMA(t.Context(), "IBM")
	require.NoError(t, err)

	// Assert: OHLC is newest first, the double SMA oldest first
	require.Len(t, ohlc, 25)
	require.Equal(t, "2024-01-25", ohlc[0].Date)

	require.Equal(t, sma, again)
	require.Len(t, sma, 6)
	require.Equal(t, "2024-01-20", sma[0].Date)
	require.Equal(t, "2024-01-25", sma[5].Date)
	// closes 1..20 average 10.5
	require.InDelta(t, 21.0, float64(sma[0].Mult2), 1e-9)
	require.InDelta(t, 31.0, float64(sma[5].Mult2), 1e-9)
}

func TestService_ErrorsAreNotCached(t *testing.T) {
	t.Parallel()

	// Arrange: the provider rejects the symbol, then the caller retries
	ctrl := gomock.NewController(t)
	fetcher := NewMockFetcher(ctrl)
	fetcher.EXPECT().
		Fetch(gomock.Any(), provider.TimeSeriesDaily, "BAD", gomock.Nil()).
		Return(gjson.Result{}, provider.UpstreamError("Invalid API call.")).
		Times(2)
	svc := indicator.NewService(fetcher, cache.NewMemory())

	for range 2 {
		// Act
		got, err := svc.OHLC(t.Context(), "BAD")

		// Assert: status and message survive the wrapping
		require.Error(t, err)
		require.Nil(t, got)
		require.Equal(t, http.StatusBadRequest, provider.StatusOf(err))
		require.Equal(t, "Invalid API call.", provider.MessageOf(err))
	}
}

func TestService_RateLimitPropagates(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	fetcher := NewMockFetcher(ctrl)
	fetcher.EXPECT().
		Fetch(gomock.Any(), provider.MACD, "IBM", gomock.Nil()).
		Return(gjson.Result{}, provider.RateLimitError(nil))
	svc := indicator.NewService(fetcher, cache.NewMemory())

	_, err := svc.MACD(t.Context(), "IBM")
	require.Equal(t, http.StatusTooManyRequests, provider.StatusOf(err))
	require.Equal(t, provider.RateLimitMessage, provider.MessageOf(err))
}

func TestService_NaNSurvivesCache(t *testing.T) {
	t.Parallel()

	// Arrange: an unparseable close and volume
	ctrl := gomock.NewController(t)
	fetcher := NewMockFetcher(ctrl)
	fetcher.EXPECT().
		Fetch(gomock.Any(), provider.TimeSeriesDaily, "IBM", gomock.Nil()).
		Return(gjson.Parse(`{"Time Series (Daily)": {"2024-01-02": {"1. open": "1", "2. high": "2", "3. low": "0.5", "4. close": "-", "5. volume": "?"}}}`), nil).
		Times(1)
	svc := indicator.NewService(fetcher, cache.NewMemory())

	for range 2 {
		// Act
		got, err := svc.OHLC(t.Context(), "IBM")
		require.NoError(t, err)

		// Assert: the miss and the hit agree
		require.Len(t, got, 1)
		require.True(t, got[0].Close.IsNaN())
		require.False(t, got[0].Volume.Valid)
		require.InDelta(t, 2.0, float64(got[0].High), 1e-9)

		b, err := json.Marshal(got)
		require.NoError(t, err)
		require.JSONEq(t, `[{"date":"2024-01-02","open":1,"high":2,"low":0.5,"close":null,"volume":null}]`, string(b))
	}
}

func TestService_FetchOutlivesCaller(t *testing.T) {
	t.Parallel()

	// Arrange: the caller has already gone away
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	ctrl := gomock.NewController(t)
	fetcher := NewMockFetcher(ctrl)
	fetcher.EXPECT().
		Fetch(gomock.Any(), provider.TimeSeriesDaily, "IBM", gomock.Nil()).
		DoAndReturn(func(ctx context.Context, _ provider.Function, _ string, _ provider.Params) (gjson.Result, error) {
			require.NoError(t, ctx.Err())
			_, ok := ctx.Deadline()
			require.True(t, ok)
			return dailySeries(1), nil
		})
	svc := indicator.NewService(fetcher, cache.NewMemory(), indicator.WithFetchTimeout(time.Second))

	// Act
	got, err := svc.OHLC(ctx, "IBM")

	// Assert: the fetch ran to completion and was cached
	require.NoError(t, err)
	require.Len(t, got, 1)
	_, err = svc.OHLC(t.Context(), "IBM")
	require.NoError(t, err)
}

func TestService_ConcurrentCallersAgree(t *testing.T) {
	t.Parallel()

	// Arrange: the first fetch is held until every caller has started
	ctrl := gomock.NewController(t)
	fetcher := NewMockFetcher(ctrl)
	release := make(chan struct{})
	fetcher.EXPECT().
		Fetch(gomock.Any(), provider.TimeSeriesDaily, "IBM", gomock.Nil()).
		DoAndReturn(func(context.Context, provider.Function, string, provider.Params) (gjson.Result, error) {
			<-release
			return dailySeries(30), nil
		}).
		MinTimes(1)
	svc := indicator.NewService(fetcher, cache.NewMemory())

	const callers = 8
	results := make([][]byte, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.DoubleSMA(t.Context(), "IBM")
			if err != nil {
				t.Error(err)
				return
			}
			results[i], _ = json.Marshal(got)
		}()
	}

	// Act
	close(release)
	wg.Wait()

	// Assert: every caller saw the same bytes
	for i := 1; i < callers; i++ {
		require.Equal(t, results[0], results[i])
	}
	require.NotEmpty(t, results[0])
}

func TestService_RecordsCacheMetrics(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	fetcher := NewMockFetcher(ctrl)
	fetcher.EXPECT().
		Fetch(gomock.Any(), provider.MACD, "IBM", gomock.Nil()).
		Return(gjson.Parse(`{}`), nil)
	m := metrics.New(prometheus.NewRegistry())
	svc := indicator.NewService(fetcher, cache.NewMemory(), indicator.WithMetrics(m))

	for range 3 {
		_, err := svc.MACD(t.Context(), "IBM")
		require.NoError(t, err)
	}

	require.InDelta(t, 1, testutil.ToFloat64(m.CacheLookups.WithLabelValues("macd", "miss")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(m.CacheLookups.WithLabelValues("macd", "hit")), 0)
}

// downStore fails every read and write.
type downStore struct{}

func (downStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("down")
}

func (downStore) Put(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}

func TestService_StoreFailuresDegradeToMisses(t *testing.T) {
	t.Parallel()

	// Arrange: an unusable store, so every request goes upstream
	ctrl := gomock.NewController(t)
	fetcher := NewMockFetcher(ctrl)
	fetcher.EXPECT().
		Fetch(gomock.Any(), provider.RSI, "IBM", provider.Params{"time_period": "14"}).
		Return(rsiSeries("50", "bad"), nil).
		Times(2)

	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))
	svc := indicator.NewService(fetcher, downStore{}, indicator.WithLogger(log))

	for range 2 {
		// Act
		got, err := svc.RSI(t.Context(), "IBM", 14)

		// Assert: records come back, the store errors stay internal
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, "2024-02-02", got[0].Date)
		require.InDelta(t, 50.0, float64(got[0].RSI), 1e-9)
		require.True(t, got[1].RSI.IsNaN())
	}
	require.Contains(t, logs.String(), "cache read failed")
	require.Contains(t, logs.String(), "cache write failed")
}
