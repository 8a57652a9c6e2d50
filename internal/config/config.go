package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	AI        AIConfig
	Farm      FarmConfig
	Costs     CostConfig
	Notify    NotifyConfig
	Scheduler SchedulerConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port           string
	AllowedOrigins string
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	URL string
}

// AuthConfig holds session-token signing settings.
type AuthConfig struct {
	JWTSecret string
}

// AIConfig holds settings for the report-parsing LLM. The key is optional;
// without it the parsing endpoints report the feature as disabled.
type AIConfig struct {
	OpenAIKey string
}

// FarmConfig carries the unit constants of the cycle computations.
type FarmConfig struct {
	BagWeightKg           float64
	ChickStartWeightGrams float64
	LowStockThresholdBags int
	TargetCycleDays       int
}

// CostConfig carries the default unit rates for the income estimate. Every
// rate can be overridden per request.
type CostConfig struct {
	ChickCostPerBird decimal.Decimal
	FeedCostPerBag   decimal.Decimal
	FeedCostPerKg    decimal.Decimal
	MedicineCost     decimal.Decimal
	VaccineCost      decimal.Decimal
	OtherCost        decimal.Decimal
	MarketRatePerKg  decimal.Decimal
	PCRatePerBird    decimal.Decimal
	IncomeRatePerKg  decimal.Decimal
	FallbackFCR      float64
}

// NotifyConfig holds the outbound webhook settings for farm alerts.
type NotifyConfig struct {
	WebhookURL string
}

// SchedulerConfig holds the cron expressions for the background jobs.
type SchedulerConfig struct {
	ReminderCron string
	Timezone     string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getenvWithDefault("SERVER_PORT", "8080"),
			AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		AI: AIConfig{
			OpenAIKey: os.Getenv("OPENAI_API_KEY"),
		},
		Notify: NotifyConfig{
			WebhookURL: os.Getenv("ALERT_WEBHOOK_URL"),
		},
		Scheduler: SchedulerConfig{
			ReminderCron: getenvWithDefault("REMINDER_CRON", "0 20 * * *"),
			Timezone:     getenvWithDefault("TIMEZONE", "Asia/Kolkata"),
		},
	}

	var err error
	if cfg.Farm, err = loadFarm(); err != nil {
		return nil, err
	}
	if cfg.Costs, err = loadCosts(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFarm() (FarmConfig, error) {
	f := FarmConfig{}
	var err error
	if f.BagWeightKg, err = getenvFloat("BAG_WEIGHT_KG", 50); err != nil {
		return f, err
	}
	if f.ChickStartWeightGrams, err = getenvFloat("CHICK_START_WEIGHT_GRAMS", 45); err != nil {
		return f, err
	}
	if f.LowStockThresholdBags, err = getenvInt("LOW_STOCK_THRESHOLD_BAGS", 3); err != nil {
		return f, err
	}
	if f.TargetCycleDays, err = getenvInt("TARGET_CYCLE_DAYS", 42); err != nil {
		return f, err
	}
	return f, nil
}

func loadCosts() (CostConfig, error) {
	c := CostConfig{}
	var err error
	if c.ChickCostPerBird, err = getenvDecimal("CHICK_COST_PER_BIRD", "22"); err != nil {
		return c, err
	}
	if c.FeedCostPerBag, err = getenvDecimal("FEED_COST_PER_BAG", "2250"); err != nil {
		return c, err
	}
	if c.FeedCostPerKg, err = getenvDecimal("FEED_COST_PER_KG", "45"); err != nil {
		return c, err
	}
	if c.MedicineCost, err = getenvDecimal("DEFAULT_MEDICINE_COST", "18000"); err != nil {
		return c, err
	}
	if c.VaccineCost, err = getenvDecimal("DEFAULT_VACCINE_COST", "1800"); err != nil {
		return c, err
	}
	if c.OtherCost, err = getenvDecimal("DEFAULT_OTHER_COST", "18000"); err != nil {
		return c, err
	}
	if c.MarketRatePerKg, err = getenvDecimal("MARKET_RATE_PER_KG", "130"); err != nil {
		return c, err
	}
	if c.PCRatePerBird, err = getenvDecimal("PC_RATE_PER_BIRD", "95"); err != nil {
		return c, err
	}
	if c.IncomeRatePerKg, err = getenvDecimal("INCOME_RATE_PER_KG", "6.5"); err != nil {
		return c, err
	}
	if c.FallbackFCR, err = getenvFloat("FALLBACK_FCR", 1.53); err != nil {
		return c, err
	}
	return c, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("SERVER_PORT must be provided")
	}
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL must be provided")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET must be provided")
	}

	switch {
	case c.Farm.BagWeightKg <= 0:
		return errors.New("BAG_WEIGHT_KG must be positive")
	case c.Farm.ChickStartWeightGrams <= 0:
		return errors.New("CHICK_START_WEIGHT_GRAMS must be positive")
	case c.Farm.LowStockThresholdBags < 0:
		return errors.New("LOW_STOCK_THRESHOLD_BAGS must not be negative")
	case c.Farm.TargetCycleDays <= 0:
		return errors.New("TARGET_CYCLE_DAYS must be positive")
	}

	if c.Scheduler.ReminderCron == "" {
		return errors.New("REMINDER_CRON must be provided")
	}
	if c.Scheduler.Timezone == "" {
		return errors.New("TIMEZONE must be provided")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return n, nil
}

func getenvFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, value, err)
	}
	return f, nil
}

func getenvDecimal(key, fallback string) (decimal.Decimal, error) {
	value := os.Getenv(key)
	if value == "" {
		value = fallback
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid amount %q: %w", key, value, err)
	}
	return d, nil
}
