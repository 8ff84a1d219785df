package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Binance  BinanceConfig  `mapstructure:"binance"`
	Forecast ForecastConfig `mapstructure:"forecast"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// BinanceConfig holds Binance API configuration
type BinanceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Symbol         string        `mapstructure:"symbol"`
	Interval       string        `mapstructure:"interval"`
	HistoryStart   string        `mapstructure:"history_start"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

// HistoryStartDate parses the configured history start day.
func (c BinanceConfig) HistoryStartDate() (time.Time, error) {
	return time.Parse("2006-01-02", c.HistoryStart)
}

// ForecastConfig holds forecast scheduling configuration
type ForecastConfig struct {
	UpdateInterval time.Duration `mapstructure:"update_interval"`
	TrainOnStart   bool          `mapstructure:"train_on_start"`
}

// MonitorConfig holds monitoring behavior configuration
type MonitorConfig struct {
	SignificantChangePct  float64       `mapstructure:"significant_change_pct"`
	MaxPredictedChangePct float64       `mapstructure:"max_predicted_change_pct"`
	MinAgreement          float64       `mapstructure:"min_agreement"`
	StaleAfter            time.Duration `mapstructure:"stale_after"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("CYCLE_TIMER")
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Binance defaults
	v.SetDefault("binance.base_url", "https://api.binance.com")
	v.SetDefault("binance.symbol", "BTCUSDT")
	v.SetDefault("binance.interval", "1d")
	v.SetDefault("binance.history_start", "2017-08-17") // first BTCUSDT daily candle
	v.SetDefault("binance.timeout", "30s")
	v.SetDefault("binance.max_retries", 3)
	v.SetDefault("binance.retry_delay_base", "1s")
	v.SetDefault("binance.cache_ttl", "1h")

	// Forecast defaults
	v.SetDefault("forecast.update_interval", "12h")
	v.SetDefault("forecast.train_on_start", true)

	// Monitor defaults
	v.SetDefault("monitor.significant_change_pct", 5.0)
	v.SetDefault("monitor.max_predicted_change_pct", 10.0)
	v.SetDefault("monitor.min_agreement", 0.7)
	v.SetDefault("monitor.stale_after", "168h")

	// Telegram defaults
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/cycle-timer.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Binance config
	if c.Binance.BaseURL == "" {
		return fmt.Errorf("binance.base_url is required")
	}
	if c.Binance.Symbol == "" {
		return fmt.Errorf("binance.symbol is required")
	}
	if c.Binance.Interval == "" {
		return fmt.Errorf("binance.interval is required")
	}
	if _, err := c.Binance.HistoryStartDate(); err != nil {
		return fmt.Errorf("binance.history_start must be a YYYY-MM-DD date")
	}
	if c.Binance.Timeout < 1*time.Second {
		return fmt.Errorf("binance.timeout must be at least 1 second")
	}
	if c.Binance.MaxRetries < 1 {
		return fmt.Errorf("binance.max_retries must be at least 1")
	}
	if c.Binance.RetryDelayBase <= 0 {
		return fmt.Errorf("binance.retry_delay_base must be positive")
	}
	if c.Binance.CacheTTL < 1*time.Minute {
		return fmt.Errorf("binance.cache_ttl must be at least 1 minute")
	}

	// Validate Forecast config
	if c.Forecast.UpdateInterval < 1*time.Minute {
		return fmt.Errorf("forecast.update_interval must be at least 1 minute")
	}

	// Validate Monitor config
	if c.Monitor.SignificantChangePct <= 0 || c.Monitor.SignificantChangePct > 100 {
		return fmt.Errorf("monitor.significant_change_pct must be between 0 and 100")
	}
	if c.Monitor.MaxPredictedChangePct <= 0 || c.Monitor.MaxPredictedChangePct > 100 {
		return fmt.Errorf("monitor.max_predicted_change_pct must be between 0 and 100")
	}
	if c.Monitor.MinAgreement < 0.0 || c.Monitor.MinAgreement > 1.0 {
		return fmt.Errorf("monitor.min_agreement must be between 0.0 and 1.0")
	}
	if c.Monitor.StaleAfter < 1*time.Hour {
		return fmt.Errorf("monitor.stale_after must be at least 1 hour")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// GetBinanceConfig returns the Binance configuration
func (c *Config) GetBinanceConfig() BinanceConfig {
	return c.Binance
}

// GetForecastConfig returns the Forecast configuration
func (c *Config) GetForecastConfig() ForecastConfig {
	return c.Forecast
}

// GetMonitorConfig returns the Monitor configuration
func (c *Config) GetMonitorConfig() MonitorConfig {
	return c.Monitor
}

// GetTelegramConfig returns the Telegram configuration
func (c *Config) GetTelegramConfig() TelegramConfig {
	return c.Telegram
}

// GetStorageConfig returns the Storage configuration
func (c *Config) GetStorageConfig() StorageConfig {
	return c.Storage
}

// GetLoggingConfig returns the Logging configuration
func (c *Config) GetLoggingConfig() LoggingConfig {
	return c.Logging
}
