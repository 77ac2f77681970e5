package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/deskbank/internal/models"
)

const Version = "1.0.0"

// Fallbacks for account types without a configured policy.
var (
	DefaultDailyLimit     = decimal.NewFromInt(1000)
	DefaultMinimumBalance = decimal.Zero
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	DataDir      string
	UsersFile    string
	AccountsFile string
	BackupDir    string
	MaxBackups   int

	JWTSecret         string
	JWTIssuer         string
	SessionTTL        time.Duration
	PasswordMinLength int

	DailyLimits     map[models.AccountType]decimal.Decimal
	MinimumBalances map[models.AccountType]decimal.Decimal

	EnforceDailyLimit   bool
	AllowEmptyOnCorrupt bool
	CurrencySymbol      string
	KafkaBrokers        []string
	KafkaTopic          string
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	dataDir := fallback(os.Getenv("DESKBANK_DATA_DIR"), "data")
	cfg := Config{
		DataDir:        dataDir,
		UsersFile:      fallback(os.Getenv("DESKBANK_USERS_FILE"), filepath.Join(dataDir, "users.json")),
		AccountsFile:   fallback(os.Getenv("DESKBANK_ACCOUNTS_FILE"), filepath.Join(dataDir, "accounts.json")),
		BackupDir:      fallback(os.Getenv("DESKBANK_BACKUP_DIR"), filepath.Join(dataDir, "backups")),
		JWTSecret:      strings.TrimSpace(os.Getenv("DESKBANK_JWT_SECRET")),
		JWTIssuer:      fallback(os.Getenv("DESKBANK_JWT_ISSUER"), "deskbank"),
		CurrencySymbol: fallback(os.Getenv("DESKBANK_CURRENCY_SYMBOL"), "$"),
		KafkaBrokers:   parseCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:     fallback(os.Getenv("KAFKA_TOPIC"), "transaction_completed"),
	}

	cfg.MaxBackups = positiveInt("DESKBANK_MAX_BACKUPS", 10)
	cfg.SessionTTL = time.Duration(positiveInt("DESKBANK_SESSION_TTL_HOURS", 24)) * time.Hour
	cfg.PasswordMinLength = positiveInt("DESKBANK_PASSWORD_MIN_LENGTH", 8)
	cfg.EnforceDailyLimit = boolean("DESKBANK_ENFORCE_DAILY_LIMIT")
	cfg.AllowEmptyOnCorrupt = boolean("DESKBANK_ALLOW_EMPTY_ON_CORRUPT")

	var err error
	if cfg.DailyLimits, err = amounts("DESKBANK_DAILY_LIMIT_", map[models.AccountType]int64{
		models.Savings:  5000,
		models.Checking: 10000,
		models.Business: 50000,
	}); err != nil {
		return Config{}, err
	}
	if cfg.MinimumBalances, err = amounts("DESKBANK_MIN_BALANCE_", map[models.AccountType]int64{
		models.Savings:  100,
		models.Checking: 50,
		models.Business: 500,
	}); err != nil {
		return Config{}, err
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("DESKBANK_JWT_SECRET is required")
	}

	return cfg, nil
}

// DailyLimit returns the withdrawal and transfer-out limit per calendar day.
func (c Config) DailyLimit(t models.AccountType) decimal.Decimal {
	if v, ok := c.DailyLimits[t]; ok {
		return v
	}
	return DefaultDailyLimit
}

func (c Config) MinimumBalance(t models.AccountType) decimal.Decimal {
	if v, ok := c.MinimumBalances[t]; ok {
		return v
	}
	return DefaultMinimumBalance
}

// FormatCurrency renders an amount as "$1,234.56".
func (c Config) FormatCurrency(amount decimal.Decimal) string {
	symbol := c.CurrencySymbol
	if symbol == "" {
		symbol = "$"
	}
	s := amount.Abs().StringFixed(models.Cents)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, d := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	return fmt.Sprintf("%s%s%s.%s", sign, symbol, b.String(), frac)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func positiveInt(key string, def int) int {
	if n, err := strconv.Atoi(fallback(os.Getenv(key), strconv.Itoa(def))); err == nil && n > 0 {
		return n
	}
	return def
}

func boolean(key string) bool {
	v, err := strconv.ParseBool(fallback(os.Getenv(key), "false"))
	return err == nil && v
}

func amounts(prefix string, defaults map[models.AccountType]int64) (map[models.AccountType]decimal.Decimal, error) {
	out := make(map[models.AccountType]decimal.Decimal, len(defaults))
	for t, def := range defaults {
		key := prefix + strings.ToUpper(string(t))
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			out[t] = decimal.NewFromInt(def)
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil || v.IsNegative() {
			return nil, fmt.Errorf("%s must be a non-negative amount, got %q", key, raw)
		}
		out[t] = models.Normalize(v)
	}
	return out, nil
}

func parseCSV(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
