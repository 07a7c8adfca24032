package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/rmax-ai/restock/pkg/engine/forecast"
)

const envPrefix = "RESTOCK"

type Config struct {
	Storage string `envconfig:"STORAGE" default:"sqlite"`
	DBPath  string `envconfig:"DB_PATH" default:"restock.db"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	Addr     string `envconfig:"ADDR" default:"127.0.0.1:8090"`
	APIToken string `envconfig:"API_TOKEN"`
	TLSCert  string `envconfig:"TLS_CERT"`
	TLSKey   string `envconfig:"TLS_KEY"`

	Prediction    string        `envconfig:"PREDICTION" default:"regression"`
	CheckDays     int           `envconfig:"CHECK_DAYS" default:"7"`
	PollInterval  time.Duration `envconfig:"POLL_INTERVAL" default:"1m"`
	AlertCooldown time.Duration `envconfig:"ALERT_COOLDOWN" default:"24h"`
	Shortcut      string        `envconfig:"SHORTCUT" default:"InventoryAlert"`

	BackupDir      string        `envconfig:"BACKUP_DIR"`
	BackupInterval time.Duration `envconfig:"BACKUP_INTERVAL" default:"24h"`
	BackupKeep     int           `envconfig:"BACKUP_KEEP" default:"7"`
	Restore        bool          `envconfig:"RESTORE" default:"false"`

	SMSKey      string `envconfig:"SMS_KEY"`
	SMSURL      string `envconfig:"SMS_URL"`
	SMSPhone    string `envconfig:"SMS_PHONE"`
	SMSLanguage string `envconfig:"SMS_LANGUAGE" default:"pt-BR"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogEnv   string `envconfig:"LOG_ENV" default:"production"`
}

// LoadConfig reads .env, then RESTOCK_* variables, then command line flags.
// Later sources win.
func LoadConfig(args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}

	flagSet := flag.NewFlagSet("restock-d", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&cfg.Storage, "storage", cfg.Storage, "item storage backend: memory|sqlite|redis")
	flagSet.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to SQLite database")
	flagSet.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address when storage=redis")
	flagSet.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flagSet.StringVar(&cfg.Prediction, "prediction", cfg.Prediction, "usage prediction: regression|none")
	flagSet.IntVar(&cfg.CheckDays, "check-days", cfg.CheckDays, "days without a count before a check reminder")
	flagSet.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "stock summary poll interval")
	flagSet.DurationVar(&cfg.AlertCooldown, "alert-cooldown", cfg.AlertCooldown, "minimum time between SMS alerts per item")
	flagSet.StringVar(&cfg.BackupDir, "backup-dir", cfg.BackupDir, "directory for inventory snapshots (empty disables)")
	flagSet.BoolVar(&cfg.Restore, "restore", cfg.Restore, "restore missing items from the latest snapshot on start")
	flagSet.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug|info|warn|error")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
		}
		return Config{}, err
	}

	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	cfg.Prediction = strings.ToLower(strings.TrimSpace(cfg.Prediction))
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	cfg.DBPath = resolvePath(cfg.DBPath, cwd)
	cfg.TLSCert = resolvePath(cfg.TLSCert, cwd)
	cfg.TLSKey = resolvePath(cfg.TLSKey, cwd)
	cfg.BackupDir = resolvePath(cfg.BackupDir, cwd)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("unsupported storage: %s", c.Storage)
	}
	if c.Storage == "sqlite" && c.DBPath == "" {
		return errors.New("storage=sqlite requires db path")
	}
	if c.Storage == "redis" && strings.TrimSpace(c.RedisAddr) == "" {
		return errors.New("storage=redis requires redis addr")
	}
	if c.Addr == "" {
		return errors.New("addr cannot be empty")
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("tls requires both cert and key")
	}
	switch forecast.Capability(c.Prediction) {
	case forecast.CapabilityRegression, forecast.CapabilityNone:
	default:
		return fmt.Errorf("unsupported prediction: %s", c.Prediction)
	}
	if c.CheckDays <= 0 {
		return errors.New("check days must be positive")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if c.Restore && c.BackupDir == "" {
		return errors.New("restore requires backup dir")
	}
	if c.BackupDir != "" && (c.BackupInterval <= 0 || c.BackupKeep <= 0) {
		return errors.New("backup interval and keep must be positive")
	}
	if c.AlertCooldown < 0 {
		return errors.New("alert cooldown cannot be negative")
	}
	return nil
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}
