// Package binance fetches daily klines and the spot price from the
// Binance REST API.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/igor-bro/btc-cycle-timer/internal/logger"
	"github.com/igor-bro/btc-cycle-timer/internal/models"
)

// klinesPageLimit is the maximum candles Binance returns per request.
const klinesPageLimit = 1000

type Config struct {
	BaseURL    string
	Symbol     string
	Interval   string
	Start      time.Time
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	CacheTTL   time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:    "https://api.binance.com",
		Symbol:     "BTCUSDT",
		Interval:   "1d",
		Start:      time.Date(2017, time.August, 17, 0, 0, 0, 0, time.UTC), // first BTCUSDT daily candle
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		RetryDelay: time.Second,
		CacheTTL:   time.Hour,
	}
}

// Client provides access to the Binance market data API. The daily
// history is cached in-process for the configured TTL.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu       sync.Mutex
	cached   []models.PricePoint
	cachedAt time.Time
}

func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Symbol == "" {
		cfg.Symbol = def.Symbol
	}
	if cfg.Interval == "" {
		cfg.Interval = def.Interval
	}
	if cfg.Start.IsZero() {
		cfg.Start = def.Start
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// History returns the full daily series from the configured start date,
// paging through the klines endpoint. Pages carry up to 1000 candles; the
// cursor advances one day past the last candle of each page.
func (c *Client) History(ctx context.Context) ([]models.PricePoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && time.Since(c.cachedAt) < c.cfg.CacheTTL {
		return copySeries(c.cached), nil
	}

	var series []models.PricePoint
	cursor := c.cfg.Start
	for {
		page, err := c.fetchKlines(ctx, cursor)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		series = append(series, page...)
		if len(page) < klinesPageLimit {
			break
		}
		cursor = page[len(page)-1].Date.AddDate(0, 0, 1)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no klines since %s", c.cfg.Start.Format("2006-01-02"))
	}

	c.cached = series
	c.cachedAt = time.Now()
	logger.Debug("Fetched %d daily candles for %s", len(series), c.cfg.Symbol)
	return copySeries(series), nil
}

// CurrentPrice returns the spot price, falling back to the last cached
// daily close when the ticker request fails.
func (c *Client) CurrentPrice(ctx context.Context) (float64, error) {
	u, err := url.Parse(c.cfg.BaseURL + "/api/v3/ticker/price")
	if err != nil {
		return 0, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("symbol", c.cfg.Symbol)
	u.RawQuery = q.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return c.lastKnownClose(fmt.Errorf("failed to fetch ticker: %w", err))
	}
	defer resp.Body.Close()

	var ticker struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		return c.lastKnownClose(fmt.Errorf("failed to decode ticker: %w", err))
	}
	price, err := decimal.NewFromString(ticker.Price)
	if err != nil {
		return c.lastKnownClose(fmt.Errorf("failed to parse ticker price: %w", err))
	}
	spot := price.InexactFloat64()
	if spot <= 0 {
		return c.lastKnownClose(fmt.Errorf("ticker price %q is not positive", ticker.Price))
	}
	return spot, nil
}

func (c *Client) lastKnownClose(cause error) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.cached) == 0 {
		return 0, cause
	}
	last := c.cached[len(c.cached)-1].Close
	logger.Warn("Using last known close %.2f: %v", last, cause)
	return last, nil
}

func (c *Client) fetchKlines(ctx context.Context, from time.Time) ([]models.PricePoint, error) {
	u, err := url.Parse(c.cfg.BaseURL + "/api/v3/klines")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("symbol", c.cfg.Symbol)
	q.Set("interval", c.cfg.Interval)
	q.Set("startTime", strconv.FormatInt(from.UnixMilli(), 10))
	q.Set("limit", strconv.Itoa(klinesPageLimit))
	u.RawQuery = q.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch klines: %w", err)
	}
	defer resp.Body.Close()

	var raw [][]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode klines: %w", err)
	}

	points := make([]models.PricePoint, 0, len(raw))
	for _, k := range raw {
		point, err := parseKline(k)
		if err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	return points, nil
}

// parseKline maps one kline array onto a price point: index 0 is the open
// time in milliseconds, indices 1-5 are decimal strings for open, high,
// low, close, and volume.
func parseKline(raw []interface{}) (models.PricePoint, error) {
	if len(raw) < 6 {
		return models.PricePoint{}, fmt.Errorf("kline has %d fields, want at least 6", len(raw))
	}
	ms, ok := raw[0].(float64)
	if !ok {
		return models.PricePoint{}, fmt.Errorf("kline open time is %T, want a number", raw[0])
	}

	var fields [5]float64
	for i := 1; i <= 5; i++ {
		s, ok := raw[i].(string)
		if !ok {
			return models.PricePoint{}, fmt.Errorf("kline field %d is %T, want a string", i, raw[i])
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return models.PricePoint{}, fmt.Errorf("failed to parse kline field %d: %w", i, err)
		}
		fields[i-1] = d.InexactFloat64()
	}

	return models.PricePoint{
		Date:   time.UnixMilli(int64(ms)).UTC(),
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
	}, nil
}

// doRequest performs HTTP request with retry logic
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.cfg.MaxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(i+1) * c.cfg.RetryDelay)
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			time.Sleep(time.Duration(i+1) * c.cfg.RetryDelay)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func copySeries(series []models.PricePoint) []models.PricePoint {
	out := make([]models.PricePoint, len(series))
	copy(out, series)
	return out
}
