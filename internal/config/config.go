package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port               int      `mapstructure:"port"`
	DatabaseURL        string   `mapstructure:"database_url"`
	LogLevel           string   `mapstructure:"log_level"`
	LogPath            string   `mapstructure:"log_path"`
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
	ShutdownTimeoutSec int      `mapstructure:"shutdown_timeout_sec"` // Graceful shutdown wait
	RequestTimeoutSec  int      `mapstructure:"request_timeout_sec"`  // HTTP read/write; 0 = server default

	// Detection
	AnomalyZThreshold     float64 `mapstructure:"anomaly_z_threshold"`     // |z| above this flags a point
	AnomalySkipDuplicates bool    `mapstructure:"anomaly_skip_duplicates"` // skip points already flagged by a prior run

	// Trend analysis
	TrendWindowDays int `mapstructure:"trend_window_days"` // default window when no range given
	TrendMinPoints  int `mapstructure:"trend_min_points"`  // below this a metric is skipped

	// Training
	ValidationSplit       float64 `mapstructure:"validation_split"`        // fraction held out for validation
	RetrainLookbackMonths int     `mapstructure:"retrain_lookback_months"` // full-refit training window

	// Forecasting
	ForecastLookbackDays int     `mapstructure:"forecast_lookback_days"` // history fed to the predictor
	ForecastBandPct      float64 `mapstructure:"forecast_band_pct"`      // confidence band half-width
	ForecastDailyGrowth  float64 `mapstructure:"forecast_daily_growth"`  // compounded growth assumption

	// Recommendations
	RecommendationMinConfidence     float64 `mapstructure:"recommendation_min_confidence"`
	RecommendationAnomalyWindowDays int     `mapstructure:"recommendation_anomaly_window_days"` // anomaly source lookback
	RecommendationTrendWindowDays   int     `mapstructure:"recommendation_trend_window_days"`   // trend source lookback
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/adlytics/")
	viper.AddConfigPath("$HOME/.adlytics")
	viper.AddConfigPath(".")

	// Defaults
	viper.SetDefault("port", 8080)
	viper.SetDefault("database_url", "postgres://localhost:5432/adlytics?sslmode=disable")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_path", "")
	viper.SetDefault("allowed_origins", []string{"*"})
	viper.SetDefault("shutdown_timeout_sec", 15)
	viper.SetDefault("request_timeout_sec", 30)
	viper.SetDefault("anomaly_z_threshold", 3.0)
	viper.SetDefault("anomaly_skip_duplicates", false)
	viper.SetDefault("trend_window_days", 30)
	viper.SetDefault("trend_min_points", 10)
	viper.SetDefault("validation_split", 0.2)
	viper.SetDefault("retrain_lookback_months", 12)
	viper.SetDefault("forecast_lookback_days", 90)
	viper.SetDefault("forecast_band_pct", 0.10)
	viper.SetDefault("forecast_daily_growth", 0.0)
	viper.SetDefault("recommendation_min_confidence", 0.5)
	viper.SetDefault("recommendation_anomaly_window_days", 7)
	viper.SetDefault("recommendation_trend_window_days", 30)

	// Environment variables
	viper.SetEnvPrefix("ADLYTICS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
