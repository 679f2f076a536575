package config

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// SystemCurrency describes a seeded currency.
type SystemCurrency struct {
	Code   string          `validate:"required,len=3,uppercase"`
	Name   string          `validate:"required"`
	Symbol string          `validate:"required"`
	Rate   decimal.Decimal // Relative to the base currency; ignored for the base itself
}

// BillingConfig holds hotel-level billing settings.
type BillingConfig struct {
	DefaultTaxRate        decimal.Decimal
	DefaultServiceCharge  decimal.Decimal
	DefaultDiscount       decimal.Decimal
	TaxRateCeiling        decimal.Decimal
	OverpaymentTolerance  decimal.Decimal
	PaymentTerms          time.Duration `validate:"gt=0"`
	AutoReconcileDeposits bool
	BaseCurrency          SystemCurrency
	SecondaryCurrency     SystemCurrency
	IdempotencyTTL        time.Duration `validate:"gt=0"`
	InvoiceNumberNode     int64         `validate:"gte=0,lte=1023"`
}

// Config holds application configuration.
type Config struct {
	DatabaseURL    string
	Port           string `validate:"required,numeric"`
	IsProduction   bool
	EnableDBCheck  bool
	Store          string `validate:"oneof=postgres memory"`
	JWTSecret      string `validate:"required"`
	JWTIssuer      string
	RedisURL       string
	RateLimit      string
	MigrationsPath string
	Billing        BillingConfig
}

func getDecimal(key string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(viper.GetString(key))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func setDefaults() {
	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("ENABLE_DB_CHECK", false)
	viper.SetDefault("STORE", StorePostgres)
	viper.SetDefault("JWT_SECRET", "a-very-secret-key-should-be-longer-and-random")
	viper.SetDefault("JWT_ISSUER", "")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("RATE_LIMIT", "200-M")
	viper.SetDefault("MIGRATIONS_PATH", "file://migrations")

	viper.SetDefault("BILLING_DEFAULT_TAX_RATE", "18")
	viper.SetDefault("BILLING_DEFAULT_SERVICE_CHARGE", "10")
	viper.SetDefault("BILLING_DEFAULT_DISCOUNT", "0")
	viper.SetDefault("BILLING_TAX_RATE_CEILING", "100")
	viper.SetDefault("BILLING_OVERPAYMENT_TOLERANCE", "0")
	viper.SetDefault("BILLING_PAYMENT_TERMS", "168h")
	viper.SetDefault("BILLING_AUTO_RECONCILE_DEPOSITS", true)
	viper.SetDefault("SYSTEM_BASE_CURRENCY_CODE", "USD")
	viper.SetDefault("SYSTEM_BASE_CURRENCY_NAME", "US Dollar")
	viper.SetDefault("SYSTEM_BASE_CURRENCY_SYMBOL", "$")
	viper.SetDefault("SYSTEM_SECONDARY_CURRENCY_CODE", "UGX")
	viper.SetDefault("SYSTEM_SECONDARY_CURRENCY_NAME", "Ugandan Shilling")
	viper.SetDefault("SYSTEM_SECONDARY_CURRENCY_SYMBOL", "USh")
	viper.SetDefault("SYSTEM_SECONDARY_CURRENCY_RATE", "3800")
	viper.SetDefault("IDEMPOTENCY_TTL", "24h")
}

func loadBilling() (BillingConfig, error) {
	var (
		b   BillingConfig
		err error
	)
	decimals := []struct {
		key string
		dst *decimal.Decimal
	}{
		{"BILLING_DEFAULT_TAX_RATE", &b.DefaultTaxRate},
		{"BILLING_DEFAULT_SERVICE_CHARGE", &b.DefaultServiceCharge},
		{"BILLING_DEFAULT_DISCOUNT", &b.DefaultDiscount},
		{"BILLING_TAX_RATE_CEILING", &b.TaxRateCeiling},
		{"BILLING_OVERPAYMENT_TOLERANCE", &b.OverpaymentTolerance},
		{"SYSTEM_SECONDARY_CURRENCY_RATE", &b.SecondaryCurrency.Rate},
	}
	for _, d := range decimals {
		if *d.dst, err = getDecimal(d.key); err != nil {
			return b, err
		}
	}
	if b.OverpaymentTolerance.IsNegative() {
		return b, fmt.Errorf("invalid BILLING_OVERPAYMENT_TOLERANCE: must not be negative")
	}
	if !b.SecondaryCurrency.Rate.IsPositive() {
		return b, fmt.Errorf("invalid SYSTEM_SECONDARY_CURRENCY_RATE: must be positive")
	}

	if b.PaymentTerms, err = time.ParseDuration(viper.GetString("BILLING_PAYMENT_TERMS")); err != nil {
		return b, fmt.Errorf("invalid BILLING_PAYMENT_TERMS: %w", err)
	}
	if b.IdempotencyTTL, err = time.ParseDuration(viper.GetString("IDEMPOTENCY_TTL")); err != nil {
		return b, fmt.Errorf("invalid IDEMPOTENCY_TTL: %w", err)
	}

	b.AutoReconcileDeposits = viper.GetBool("BILLING_AUTO_RECONCILE_DEPOSITS")
	if viper.IsSet("SNOWFLAKE_NODE") {
		b.InvoiceNumberNode = viper.GetInt64("SNOWFLAKE_NODE")
	} else {
		b.InvoiceNumberNode = HostNode()
	}
	b.BaseCurrency = SystemCurrency{
		Code:   viper.GetString("SYSTEM_BASE_CURRENCY_CODE"),
		Name:   viper.GetString("SYSTEM_BASE_CURRENCY_NAME"),
		Symbol: viper.GetString("SYSTEM_BASE_CURRENCY_SYMBOL"),
		Rate:   decimal.NewFromInt(1),
	}
	b.SecondaryCurrency.Code = viper.GetString("SYSTEM_SECONDARY_CURRENCY_CODE")
	b.SecondaryCurrency.Name = viper.GetString("SYSTEM_SECONDARY_CURRENCY_NAME")
	b.SecondaryCurrency.Symbol = viper.GetString("SYSTEM_SECONDARY_CURRENCY_SYMBOL")
	return b, nil
}

// HostNode derives a snowflake node (0-1023) from the host name. Each API
// instance must mint invoice numbers from its own node; set SNOWFLAKE_NODE
// explicitly when host names can hash to the same value.
func HostNode() int64 {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return 1
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(host))
	return int64(h.Sum32() % 1024)
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	setDefaults()
	viper.AutomaticEnv()

	billing, err := loadBilling()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:    viper.GetString("PGSQL_URL"),
		Port:           viper.GetString("PORT"),
		IsProduction:   viper.GetBool("IS_PRODUCTION"),
		EnableDBCheck:  viper.GetBool("ENABLE_DB_CHECK"),
		Store:          viper.GetString("STORE"),
		JWTSecret:      viper.GetString("JWT_SECRET"),
		JWTIssuer:      viper.GetString("JWT_ISSUER"),
		RedisURL:       viper.GetString("REDIS_URL"),
		RateLimit:      viper.GetString("RATE_LIMIT"),
		MigrationsPath: viper.GetString("MIGRATIONS_PATH"),
		Billing:        billing,
	}

	if cfg.Store == StorePostgres && cfg.DatabaseURL == "" {
		slog.Warn("PGSQL_URL environment variable not set")
	}
	if cfg.JWTSecret == "a-very-secret-key-should-be-longer-and-random" {
		slog.Warn("JWT_SECRET environment variable not set. Using default insecure key")
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct-level constraints on cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
