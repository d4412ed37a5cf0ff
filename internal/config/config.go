package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type SettlementConfig struct {
	DefaultTaxRate  decimal.Decimal
	MoneyPlaces     int32
	Currency        string
	ServicePrefix   string
	ClosurePrefix   string
	InvoicePrefix   string
	BulkParallelism int
	BatchAtomic     bool
	OverdueSweep    time.Duration
	EventBufferSize int
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Settlement  SettlementConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	v.SetDefault("SETTLEMENT_DEFAULT_TAX_RATE", "19")
	v.SetDefault("SETTLEMENT_MONEY_PLACES", 0)
	v.SetDefault("SETTLEMENT_BULK_PARALLELISM", 4)
	v.SetDefault("OVERDUE_SWEEP_INTERVAL", "1h")
	v.SetDefault("EVENTBUS_BUFFER", 256)

	_ = v.ReadInConfig()

	taxRate, err := decimal.NewFromString(strings.TrimSpace(v.GetString("SETTLEMENT_DEFAULT_TAX_RATE")))
	if err != nil {
		return nil, fmt.Errorf("SETTLEMENT_DEFAULT_TAX_RATE: %w", err)
	}

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host:           v.GetString("HTTP_HOST"),
			Port:           v.GetInt("HTTP_PORT"),
			AllowedOrigins: parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Settlement: SettlementConfig{
			DefaultTaxRate:  taxRate,
			MoneyPlaces:     int32(v.GetInt("SETTLEMENT_MONEY_PLACES")),
			Currency:        v.GetString("SETTLEMENT_CURRENCY"),
			ServicePrefix:   v.GetString("SETTLEMENT_SERVICE_PREFIX"),
			ClosurePrefix:   v.GetString("SETTLEMENT_CLOSURE_PREFIX"),
			InvoicePrefix:   v.GetString("SETTLEMENT_INVOICE_PREFIX"),
			BulkParallelism: v.GetInt("SETTLEMENT_BULK_PARALLELISM"),
			BatchAtomic:     v.GetBool("BATCH_ATOMIC"),
			OverdueSweep:    v.GetDuration("OVERDUE_SWEEP_INTERVAL"),
			EventBufferSize: v.GetInt("EVENTBUS_BUFFER"),
		},
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if len(cfg.HTTP.AllowedOrigins) == 0 {
		cfg.HTTP.AllowedOrigins = []string{"*"}
	}
	if cfg.Settlement.Currency == "" {
		cfg.Settlement.Currency = "CLP"
	}
	if cfg.Settlement.ServicePrefix == "" {
		cfg.Settlement.ServicePrefix = "SRV"
	}
	if cfg.Settlement.ClosurePrefix == "" {
		cfg.Settlement.ClosurePrefix = "CB"
	}
	if cfg.Settlement.InvoicePrefix == "" {
		cfg.Settlement.InvoicePrefix = "FAC"
	}
	if cfg.Settlement.BulkParallelism <= 0 {
		cfg.Settlement.BulkParallelism = 4
	}
	if cfg.Settlement.EventBufferSize <= 0 {
		cfg.Settlement.EventBufferSize = 256
	}
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Settlement.DefaultTaxRate.IsNegative() {
		return fmt.Errorf("SETTLEMENT_DEFAULT_TAX_RATE must not be negative")
	}
	if cfg.Settlement.MoneyPlaces < 0 {
		return fmt.Errorf("SETTLEMENT_MONEY_PLACES must not be negative")
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
