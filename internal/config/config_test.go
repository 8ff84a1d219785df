package config

import (
	"os"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	tmpfile, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestLoadAndValidate(t *testing.T) {
	content := `
binance:
  symbol: "BTCUSDT"
  history_start: "2017-08-17"
  timeout: 45s

forecast:
  update_interval: 6h

monitor:
  significant_change_pct: 4.0
  stale_after: 96h

telegram:
  bot_token: "test_token"
  chat_id: "test_chat_id"
  enabled: true

storage:
  db_path: "./data/test.db"

logging:
  level: "debug"
  format: "text"
`
	path := writeTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Binance.Timeout != 45*time.Second {
		t.Errorf("Unexpected binance timeout: %v", cfg.Binance.Timeout)
	}
	if cfg.Forecast.UpdateInterval != 6*time.Hour {
		t.Errorf("Unexpected update interval: %v", cfg.Forecast.UpdateInterval)
	}
	if cfg.Monitor.SignificantChangePct != 4.0 {
		t.Errorf("Unexpected significant change threshold: %f", cfg.Monitor.SignificantChangePct)
	}
	if cfg.Monitor.StaleAfter != 96*time.Hour {
		t.Errorf("Unexpected staleness window: %v", cfg.Monitor.StaleAfter)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Unexpected logging level: %s", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeTempConfig(t, "logging:\n  level: info\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Binance.BaseURL != "https://api.binance.com" {
		t.Errorf("Unexpected default base URL: %s", cfg.Binance.BaseURL)
	}
	if cfg.Binance.Symbol != "BTCUSDT" {
		t.Errorf("Unexpected default symbol: %s", cfg.Binance.Symbol)
	}
	if cfg.Binance.Interval != "1d" {
		t.Errorf("Unexpected default interval: %s", cfg.Binance.Interval)
	}
	if cfg.Binance.MaxRetries != 3 {
		t.Errorf("Unexpected default max retries: %d", cfg.Binance.MaxRetries)
	}
	if cfg.Monitor.MinAgreement != 0.7 {
		t.Errorf("Unexpected default min agreement: %f", cfg.Monitor.MinAgreement)
	}
	if cfg.Monitor.MaxPredictedChangePct != 10.0 {
		t.Errorf("Unexpected default predicted change ceiling: %f", cfg.Monitor.MaxPredictedChangePct)
	}
	if cfg.Forecast.UpdateInterval != 12*time.Hour {
		t.Errorf("Unexpected default update interval: %v", cfg.Forecast.UpdateInterval)
	}
	if !cfg.Forecast.TrainOnStart {
		t.Error("Expected train_on_start to default to true")
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed on defaults: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func validConfig() *Config {
	return &Config{
		Binance: BinanceConfig{
			BaseURL:        "https://api.binance.com",
			Symbol:         "BTCUSDT",
			Interval:       "1d",
			HistoryStart:   "2017-08-17",
			Timeout:        30 * time.Second,
			MaxRetries:     3,
			RetryDelayBase: time.Second,
			CacheTTL:       time.Hour,
		},
		Forecast: ForecastConfig{
			UpdateInterval: 12 * time.Hour,
			TrainOnStart:   true,
		},
		Monitor: MonitorConfig{
			SignificantChangePct:  5.0,
			MaxPredictedChangePct: 10.0,
			MinAgreement:          0.7,
			StaleAfter:            168 * time.Hour,
		},
		Telegram: TelegramConfig{
			BotToken: "test_token",
			ChatID:   "test_chat_id",
			Enabled:  true,
		},
		Storage: StorageConfig{
			DBPath: "./data/test.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing base URL",
			mutate:  func(c *Config) { c.Binance.BaseURL = "" },
			wantErr: true,
		},
		{
			name:    "malformed history start",
			mutate:  func(c *Config) { c.Binance.HistoryStart = "17-08-2017" },
			wantErr: true,
		},
		{
			name:    "timeout too small",
			mutate:  func(c *Config) { c.Binance.Timeout = 100 * time.Millisecond },
			wantErr: true,
		},
		{
			name:    "update interval too small",
			mutate:  func(c *Config) { c.Forecast.UpdateInterval = 10 * time.Second },
			wantErr: true,
		},
		{
			name:    "agreement above one",
			mutate:  func(c *Config) { c.Monitor.MinAgreement = 1.5 },
			wantErr: true,
		},
		{
			name:    "zero change threshold",
			mutate:  func(c *Config) { c.Monitor.SignificantChangePct = 0 },
			wantErr: true,
		},
		{
			name:    "missing telegram token when enabled",
			mutate:  func(c *Config) { c.Telegram.BotToken = "" },
			wantErr: true,
		},
		{
			name:   "telegram disabled without token",
			mutate: func(c *Config) { c.Telegram = TelegramConfig{Enabled: false} },
		},
		{
			name:    "missing db path",
			mutate:  func(c *Config) { c.Storage.DBPath = "" },
			wantErr: true,
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
