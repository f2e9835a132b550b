package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	Env         string
	HTTPPort    string
	LogLevel    string
	LogFile     string

	LedgerDriver            string
	PostgresDSN             string
	PostgresMaxOpenConns    int
	PostgresMaxIdleConns    int
	PostgresConnMaxLifetime time.Duration
	SQLitePath              string

	KafkaEnabled bool
	KafkaBrokers []string
	RedisEnabled bool
	RedisAddr    string

	AuthJWTSecret      string
	RateLimitPerMinute int

	Settlement             SettlementPolicy
	PlatformAccountID      string
	StoryTTL               time.Duration
	VoiceSecondsPerStar    int
	VoiceRechargeThreshold int64
	IdempotencyTTL         time.Duration

	OutboxPollInterval  time.Duration
	BalancePollInterval time.Duration
	LedgerBaseURL       string
}

// SettlementPolicy is the revenue split applied by the ledger.
type SettlementPolicy struct {
	OwnerShare      decimal.Decimal
	ViewerCashback  decimal.Decimal
	GroupOwnerShare decimal.Decimal
	StarUnitValue   decimal.Decimal
}

type policyFile struct {
	OwnerShare      string `yaml:"owner_share"`
	ViewerCashback  string `yaml:"viewer_cashback"`
	GroupOwnerShare string `yaml:"group_owner_share"`
	StarUnitValue   string `yaml:"star_unit_value"`
}

func DefaultSettlementPolicy() SettlementPolicy {
	return SettlementPolicy{
		OwnerShare:      decimal.RequireFromString("0.40"),
		ViewerCashback:  decimal.RequireFromString("0.35"),
		GroupOwnerShare: decimal.RequireFromString("0.80"),
		StarUnitValue:   decimal.RequireFromString("1.00"),
	}
}

// Load reads .env files when present, then the process environment.
func Load() (Config, error) {
	loadEnvFiles()

	cfg := Config{
		ServiceName:       envString("SERVICE_NAME", "savemore"),
		Env:               envString("APP_ENV", "development"),
		HTTPPort:          envString("HTTP_PORT", "8080"),
		LogLevel:          envString("LOG_LEVEL", "info"),
		LogFile:           os.Getenv("LOG_FILE"),
		LedgerDriver:      strings.ToLower(envString("LEDGER_DRIVER", DriverPostgres)),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		SQLitePath:        envString("SQLITE_PATH", "savemore.db"),
		KafkaEnabled:      envBool("KAFKA_ENABLED", false),
		KafkaBrokers:      splitList(envString("KAFKA_BROKERS", "localhost:9092")),
		RedisEnabled:      envBool("REDIS_ENABLED", false),
		RedisAddr:         envString("REDIS_ADDR", "localhost:6379"),
		AuthJWTSecret:     os.Getenv("AUTH_JWT_SECRET"),
		PlatformAccountID: envString("PLATFORM_ACCOUNT_ID", "platform"),
		LedgerBaseURL:     envString("LEDGER_BASE_URL", "http://localhost:8080"),
		Settlement:        DefaultSettlementPolicy(),
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	cfg.RateLimitPerMinute, err = envInt("RATE_LIMIT_PER_MINUTE", 120)
	collect(err)
	cfg.PostgresMaxOpenConns, err = envInt("POSTGRES_MAX_OPEN_CONNS", 20)
	collect(err)
	cfg.PostgresMaxIdleConns, err = envInt("POSTGRES_MAX_IDLE_CONNS", 5)
	collect(err)
	cfg.PostgresConnMaxLifetime, err = envDuration("POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute)
	collect(err)
	cfg.VoiceSecondsPerStar, err = envInt("VOICE_SECONDS_PER_STAR", 10)
	collect(err)
	threshold, err := envInt("VOICE_RECHARGE_THRESHOLD", 20)
	collect(err)
	cfg.VoiceRechargeThreshold = int64(threshold)
	cfg.StoryTTL, err = envDuration("STORY_TTL", 24*time.Hour)
	collect(err)
	cfg.IdempotencyTTL, err = envDuration("IDEMPOTENCY_TTL", 7*24*time.Hour)
	collect(err)
	cfg.OutboxPollInterval, err = envDuration("OUTBOX_POLL_INTERVAL", 2*time.Second)
	collect(err)
	cfg.BalancePollInterval, err = envDuration("BALANCE_POLL_INTERVAL", 30*time.Second)
	collect(err)

	if path := strings.TrimSpace(os.Getenv("SETTLEMENT_POLICY_FILE")); path != "" {
		collect(loadPolicyFile(path, &cfg.Settlement))
	}
	collect(overrideDecimal("SETTLEMENT_OWNER_SHARE", &cfg.Settlement.OwnerShare))
	collect(overrideDecimal("SETTLEMENT_VIEWER_CASHBACK", &cfg.Settlement.ViewerCashback))
	collect(overrideDecimal("SETTLEMENT_GROUP_OWNER_SHARE", &cfg.Settlement.GroupOwnerShare))
	collect(overrideDecimal("STAR_UNIT_VALUE", &cfg.Settlement.StarUnitValue))

	switch cfg.LedgerDriver {
	case DriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			collect(errors.New("POSTGRES_DSN is required when LEDGER_DRIVER=postgres"))
		}
	case DriverSQLite, DriverMemory:
	default:
		collect(fmt.Errorf("LEDGER_DRIVER %q is not one of postgres, sqlite, memory", cfg.LedgerDriver))
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		collect(errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED=true"))
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

func loadEnvFiles() {
	for _, file := range []string{".env", ".env.local"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if file == ".env.local" {
			_ = godotenv.Overload(file)
			continue
		}
		_ = godotenv.Load(file)
	}
}

func loadPolicyFile(path string, policy *SettlementPolicy) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read settlement policy file: %w", err)
	}
	var file policyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse settlement policy file: %w", err)
	}
	fields := []struct {
		name  string
		value string
		into  *decimal.Decimal
	}{
		{"owner_share", file.OwnerShare, &policy.OwnerShare},
		{"viewer_cashback", file.ViewerCashback, &policy.ViewerCashback},
		{"group_owner_share", file.GroupOwnerShare, &policy.GroupOwnerShare},
		{"star_unit_value", file.StarUnitValue, &policy.StarUnitValue},
	}
	for _, field := range fields {
		if strings.TrimSpace(field.value) == "" {
			continue
		}
		parsed, err := decimal.NewFromString(strings.TrimSpace(field.value))
		if err != nil {
			return fmt.Errorf("settlement policy %s: %w", field.name, err)
		}
		*field.into = parsed
	}
	return nil
}

func overrideDecimal(name string, into *decimal.Decimal) error {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil
	}
	parsed, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*into = parsed
	return nil
}

func envString(name string, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", name, err)
	}
	return value, nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", name, err)
	}
	return value, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func splitList(raw string) []string {
	var values []string
	for _, value := range strings.Split(raw, ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			values = append(values, value)
		}
	}
	return values
}
