package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func testClient(baseURL string, start time.Time) *Client {
	return NewClient(Config{
		BaseURL:    baseURL,
		Start:      start,
		Timeout:    5 * time.Second,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		CacheTTL:   time.Hour,
	})
}

func klineRow(d time.Time, close float64) []interface{} {
	return []interface{}{
		d.UnixMilli(),
		fmt.Sprintf("%.2f", close-50),
		fmt.Sprintf("%.2f", close+150),
		fmt.Sprintf("%.2f", close-150),
		fmt.Sprintf("%.2f", close),
		"1234.50",
		d.Add(24*time.Hour).UnixMilli() - 1,
		"0", 0, "0", "0", "0",
	}
}

// serveKlines renders a daily series of n candles from start, honoring
// the startTime cursor and the page limit like the real endpoint.
func serveKlines(t *testing.T, start time.Time, n int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Errorf("Expected path /api/v3/klines, got %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("symbol") != "BTCUSDT" {
			t.Errorf("Expected symbol BTCUSDT, got %s", q.Get("symbol"))
		}
		if q.Get("interval") != "1d" {
			t.Errorf("Expected interval 1d, got %s", q.Get("interval"))
		}
		ms, err := strconv.ParseInt(q.Get("startTime"), 10, 64)
		if err != nil {
			t.Errorf("Bad startTime %q: %v", q.Get("startTime"), err)
		}
		from := time.UnixMilli(ms).UTC()

		rows := [][]interface{}{}
		for i := 0; i < n && len(rows) < klinesPageLimit; i++ {
			d := start.AddDate(0, 0, i)
			if d.Before(from) {
				continue
			}
			rows = append(rows, klineRow(d, 30000+float64(i)))
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(rows); err != nil {
			t.Errorf("Failed to encode klines: %v", err)
		}
	}
}

func TestHistoryPagesThroughKlines(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	var requests int
	handler := serveKlines(t, start, 1200)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		handler(w, r)
	}))
	defer srv.Close()

	client := testClient(srv.URL, start)
	series, err := client.History(context.Background())
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}

	if len(series) != 1200 {
		t.Fatalf("Expected 1200 candles, got %d", len(series))
	}
	if requests != 2 {
		t.Errorf("Expected 2 paged requests, got %d", requests)
	}
	if !series[0].Date.Equal(start) {
		t.Errorf("Expected first candle at %v, got %v", start, series[0].Date)
	}
	if series[0].Close != 30000 || series[0].Open != 29950 {
		t.Errorf("Unexpected first candle: %+v", series[0])
	}
	last := series[len(series)-1]
	if last.Close != 31199 {
		t.Errorf("Expected last close 31199, got %v", last.Close)
	}
	if !last.Date.Equal(start.AddDate(0, 0, 1199)) {
		t.Errorf("Expected last candle at %v, got %v", start.AddDate(0, 0, 1199), last.Date)
	}
	if series[0].Volume != 1234.5 {
		t.Errorf("Expected volume 1234.5, got %v", series[0].Volume)
	}
}

func TestHistoryServesFromCache(t *testing.T) {
	start := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	var requests int
	handler := serveKlines(t, start, 300)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		handler(w, r)
	}))
	defer srv.Close()

	client := testClient(srv.URL, start)
	first, err := client.History(context.Background())
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	fetched := requests

	first[0].Close = -1 // callers must not reach the cache

	second, err := client.History(context.Background())
	if err != nil {
		t.Fatalf("Cached History failed: %v", err)
	}
	if requests != fetched {
		t.Errorf("Expected no extra requests, got %d after %d", requests, fetched)
	}
	if second[0].Close != 30000 {
		t.Errorf("Cache was mutated through a returned slice: got %v", second[0].Close)
	}
}

func TestCurrentPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/price" {
			t.Errorf("Expected path /api/v3/ticker/price, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("Expected symbol BTCUSDT, got %s", got)
		}
		fmt.Fprint(w, `{"symbol":"BTCUSDT","price":"65432.10"}`)
	}))
	defer srv.Close()

	client := testClient(srv.URL, time.Time{})
	price, err := client.CurrentPrice(context.Background())
	if err != nil {
		t.Fatalf("CurrentPrice failed: %v", err)
	}
	if price != 65432.1 {
		t.Errorf("Expected price 65432.1, got %v", price)
	}
}

func TestCurrentPriceRetriesServerErrors(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"symbol":"BTCUSDT","price":"50000.00"}`)
	}))
	defer srv.Close()

	client := testClient(srv.URL, time.Time{})
	price, err := client.CurrentPrice(context.Background())
	if err != nil {
		t.Fatalf("CurrentPrice failed: %v", err)
	}
	if price != 50000 {
		t.Errorf("Expected price 50000, got %v", price)
	}
	if requests != 3 {
		t.Errorf("Expected 3 attempts, got %d", requests)
	}
}

func TestCurrentPriceFallsBackToLastClose(t *testing.T) {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	klines := serveKlines(t, start, 300)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v3/klines" {
			klines(w, r)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := testClient(srv.URL, start)
	if _, err := client.History(context.Background()); err != nil {
		t.Fatalf("History failed: %v", err)
	}

	price, err := client.CurrentPrice(context.Background())
	if err != nil {
		t.Fatalf("Expected the fallback close, got error: %v", err)
	}
	if price != 30299 {
		t.Errorf("Expected last close 30299, got %v", price)
	}
}

func TestCurrentPriceErrorWithoutHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := testClient(srv.URL, time.Time{})
	price, err := client.CurrentPrice(context.Background())
	if err == nil {
		t.Fatal("Expected an error without a cached close")
	}
	if !strings.Contains(err.Error(), "failed to fetch ticker") {
		t.Errorf("Unexpected error: %v", err)
	}
	if price != 0 {
		t.Errorf("Expected zero price, got %v", price)
	}
}

func TestHistoryStopsOnClientError(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := testClient(srv.URL, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	if _, err := client.History(context.Background()); err == nil {
		t.Fatal("Expected an error on a 404 response")
	} else if !strings.Contains(err.Error(), "unexpected status: 404") {
		t.Errorf("Unexpected error: %v", err)
	}
	if requests != 1 {
		t.Errorf("Expected no retries on a client error, got %d requests", requests)
	}
}

func TestParseKline(t *testing.T) {
	date := time.Date(2023, 11, 14, 0, 0, 0, 0, time.UTC)
	point, err := parseKline([]interface{}{
		float64(date.UnixMilli()), "100.50", "110.00", "95.50", "105.25", "5000",
	})
	if err != nil {
		t.Fatalf("parseKline failed: %v", err)
	}
	if !point.Date.Equal(date) {
		t.Errorf("Expected date %v, got %v", date, point.Date)
	}
	if point.Open != 100.5 || point.High != 110 || point.Low != 95.5 || point.Close != 105.25 || point.Volume != 5000 {
		t.Errorf("Unexpected point: %+v", point)
	}

	invalid := map[string][]interface{}{
		"too short":     {float64(1)},
		"bad open time": {"not-a-number", "1", "1", "1", "1", "1"},
		"numeric close": {float64(1), "1", "1", "1", float64(1), "1"},
		"bad decimal":   {float64(1), "x1", "1", "1", "1", "1"},
	}
	for name, raw := range invalid {
		if _, err := parseKline(raw); err == nil {
			t.Errorf("Expected an error for a kline with a %s", name)
		}
	}
}
