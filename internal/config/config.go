package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	RecordStorePostgres = "postgres"
	RecordStoreRedis    = "redis"
	RecordStoreMemory   = "memory"

	DispatcherRabbit = "rabbitmq"
	DispatcherSMTP   = "smtp"
	DispatcherLog    = "log"
)

type Config struct {
	// App
	Env string // dev / staging / prod

	// HTTP
	HTTPAddr         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Infrastructure
	DBAddr        string
	DBAutoMigrate bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RecordStore string
	Dispatcher  string

	RabbitURL      string
	RabbitExchange string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPInsecure bool

	// Reset flow
	ResetTokenSecret string
	ResetTokenIssuer string
	ResetTokenTTL    time.Duration
	ResetCodeLength  int
	BcryptCost       int
	AllowedHosts     []string
	AllowedProtocols []string
	ConcealUnknown   bool
	DispatchTimeout  time.Duration
	RLResetLimit     int
	RLResetWindow    time.Duration
}

func (c *Config) IsDev() bool { return c.Env == "dev" }

func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		Env:            getEnv("ENV", "dev"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "city.events"),
		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPUsername:   os.Getenv("SMTP_USERNAME"),
		SMTPPassword:   os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:       os.Getenv("SMTP_FROM"),
	}
	cfg.ResetTokenIssuer = getEnv("RESET_TOKEN_ISSUER", "reset-service")

	cfg.ResetTokenSecret = os.Getenv("RESET_TOKEN_SECRET")
	if cfg.ResetTokenSecret == "" {
		return nil, fmt.Errorf("missing required env var: RESET_TOKEN_SECRET")
	}

	var err error
	if cfg.HTTPReadTimeout, err = getDuration("HTTP_READ_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPWriteTimeout, err = getDuration("HTTP_WRITE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPIdleTimeout, err = getDuration("HTTP_IDLE_TIMEOUT", time.Minute); err != nil {
		return nil, err
	}
	if cfg.ResetTokenTTL, err = getDuration("RESET_TOKEN_TTL", 300*time.Second); err != nil {
		return nil, err
	}
	if cfg.DispatchTimeout, err = getDuration("DISPATCH_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RLResetWindow, err = getDuration("RL_RESET_WINDOW", 10*time.Minute); err != nil {
		return nil, err
	}

	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = getInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.ResetCodeLength, err = getInt("RESET_CODE_LENGTH", 8); err != nil {
		return nil, err
	}
	if cfg.ResetCodeLength < 6 || cfg.ResetCodeLength > 32 {
		return nil, fmt.Errorf("RESET_CODE_LENGTH must be within [6, 32], got %d", cfg.ResetCodeLength)
	}
	if cfg.BcryptCost, err = getInt("BCRYPT_COST", 10); err != nil {
		return nil, err
	}
	if cfg.RLResetLimit, err = getInt("RL_RESET_LIMIT", 3); err != nil {
		return nil, err
	}

	if cfg.DBAutoMigrate, err = getBool("DB_AUTO_MIGRATE", false); err != nil {
		return nil, err
	}
	if cfg.SMTPInsecure, err = getBool("SMTP_INSECURE", false); err != nil {
		return nil, err
	}
	if cfg.ConcealUnknown, err = getBool("RESET_CONCEAL_UNKNOWN_EMAIL", true); err != nil {
		return nil, err
	}

	// Backing services: dev may run without any of them, other envs fail fast.
	cfg.DBAddr = os.Getenv("DB_ADDR")
	if cfg.DBAddr == "" && !cfg.IsDev() {
		return nil, fmt.Errorf("missing required env var: DB_ADDR")
	}

	defStore := RecordStorePostgres
	if cfg.DBAddr == "" {
		defStore = RecordStoreMemory
	}
	cfg.RecordStore = getEnv("RECORD_STORE", defStore)
	switch cfg.RecordStore {
	case RecordStorePostgres:
		if cfg.DBAddr == "" {
			return nil, fmt.Errorf("RECORD_STORE=postgres requires DB_ADDR")
		}
	case RecordStoreRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("RECORD_STORE=redis requires REDIS_ADDR")
		}
	case RecordStoreMemory:
		if !cfg.IsDev() {
			return nil, fmt.Errorf("RECORD_STORE=memory is only allowed with ENV=dev")
		}
	default:
		return nil, fmt.Errorf("invalid RECORD_STORE: %q", cfg.RecordStore)
	}

	defDispatcher := DispatcherRabbit
	if cfg.IsDev() && cfg.RabbitURL == "" {
		defDispatcher = DispatcherLog
	}
	cfg.Dispatcher = getEnv("DISPATCHER", defDispatcher)
	switch cfg.Dispatcher {
	case DispatcherRabbit:
		if cfg.RabbitURL == "" {
			return nil, fmt.Errorf("missing required env var: RABBIT_URL")
		}
	case DispatcherSMTP:
		if cfg.SMTPHost == "" || cfg.SMTPFrom == "" {
			return nil, fmt.Errorf("DISPATCHER=smtp requires SMTP_HOST and SMTP_FROM")
		}
	case DispatcherLog:
		if !cfg.IsDev() {
			return nil, fmt.Errorf("DISPATCHER=log is only allowed with ENV=dev")
		}
	default:
		return nil, fmt.Errorf("invalid DISPATCHER: %q", cfg.Dispatcher)
	}

	defHosts, defProtos := "", "https"
	if cfg.IsDev() {
		defHosts, defProtos = "localhost:8080,127.0.0.1:8080", "http,https"
	}
	cfg.AllowedHosts = getList("RESET_ALLOWED_HOSTS", defHosts)
	if len(cfg.AllowedHosts) == 0 {
		return nil, fmt.Errorf("missing required env var: RESET_ALLOWED_HOSTS")
	}
	cfg.AllowedProtocols = getList("RESET_ALLOWED_PROTOCOLS", defProtos)
	for _, p := range cfg.AllowedProtocols {
		if p != "http" && p != "https" {
			return nil, fmt.Errorf("invalid protocol in RESET_ALLOWED_PROTOCOLS: %q", p)
		}
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %q: %w", key, v, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool for %s: %q: %w", key, v, err)
	}
	return b, nil
}

// getList splits a comma separated value, dropping blanks. Entries are lower-cased.
func getList(key, def string) []string {
	var out []string
	for _, s := range strings.Split(getEnv(key, def), ",") {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
