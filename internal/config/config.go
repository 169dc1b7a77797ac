package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. JAEGO_DATABASE_DSN.
const EnvPrefix = "JAEGO_"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Nara      NaraConfig      `yaml:"nara"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// TrustedProxies lists addresses or CIDR ranges of reverse proxies whose
	// X-Forwarded-For and X-Real-IP headers are believed.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// TrustedPrefixes parses TrustedProxies. Bare addresses become single-host
// prefixes.
func (s ServerConfig) TrustedPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(s.TrustedProxies))
	for _, raw := range s.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("server.trusted_proxies: %w", err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("server.trusted_proxies: %w", err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	AdminUser string        `yaml:"admin_user"`
}

type LogConfig struct {
	File string `yaml:"file"`
}

type RateLimitConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Requests      int           `yaml:"requests"`
	Window        time.Duration `yaml:"window"`
	LoginAttempts int           `yaml:"login_attempts"`
	LoginWindow   time.Duration `yaml:"login_window"`
}

// RedisConfig is optional; an empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig selects MinIO for item images. An empty Endpoint stores
// images in the database.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// NaraConfig holds the bid source endpoints. Monitoring settings that users
// edit live in the settings table.
type NaraConfig struct {
	APIURL     string `yaml:"api_url"`
	ServiceKey string `yaml:"service_key"`
	KorailURL  string `yaml:"korail_url"`
	Autostart  bool   `yaml:"autostart"`
}

type TelegramConfig struct {
	APIURL   string `yaml:"api_url"`
	BotToken string `yaml:"bot_token"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "jaego.sqlite3"},
		Auth:     AuthConfig{TokenTTL: 24 * time.Hour, AdminUser: "admin"},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			Requests:      30,
			Window:        time.Minute,
			LoginAttempts: 5,
			LoginWindow:   15 * time.Minute,
		},
		Nara: NaraConfig{
			APIURL:    "https://apis.data.go.kr/1230000/ad/BidPublicInfoService/getBidPblancListInfoThngPPSSrch",
			KorailURL: "https://ebid.korail.com/goods/list.do",
		},
		Telegram: TelegramConfig{APIURL: "https://api.telegram.org"},
	}
}

// Load reads .env (if present), then the YAML file at path (if present),
// then JAEGO_* environment variables, each layer overriding the previous.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			dec := yaml.NewDecoder(bytes.NewReader(data))
			dec.KnownFields(true)
			if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SERVER_ADDR":        &c.Server.Addr,
		"DATABASE_DRIVER":    &c.Database.Driver,
		"DATABASE_DSN":       &c.Database.DSN,
		"AUTH_JWT_SECRET":    &c.Auth.JWTSecret,
		"AUTH_ADMIN_USER":    &c.Auth.AdminUser,
		"LOG_FILE":           &c.Log.File,
		"REDIS_ADDR":         &c.Redis.Addr,
		"REDIS_PASSWORD":     &c.Redis.Password,
		"STORAGE_ENDPOINT":   &c.Storage.Endpoint,
		"STORAGE_ACCESS_KEY": &c.Storage.AccessKey,
		"STORAGE_SECRET_KEY": &c.Storage.SecretKey,
		"STORAGE_BUCKET":     &c.Storage.Bucket,
		"NARA_API_URL":       &c.Nara.APIURL,
		"NARA_SERVICE_KEY":   &c.Nara.ServiceKey,
		"NARA_KORAIL_URL":    &c.Nara.KorailURL,
		"TELEGRAM_API_URL":   &c.Telegram.APIURL,
		"TELEGRAM_BOT_TOKEN": &c.Telegram.BotToken,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	if v, ok := lookup(EnvPrefix + "SERVER_TRUSTED_PROXIES"); ok {
		c.Server.TrustedProxies = strings.Split(v, ",")
	}

	ints := map[string]*int{
		"REDIS_DB":                 &c.Redis.DB,
		"RATELIMIT_REQUESTS":       &c.RateLimit.Requests,
		"RATELIMIT_LOGIN_ATTEMPTS": &c.RateLimit.LoginAttempts,
	}
	for key, dst := range ints {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"RATELIMIT_ENABLED": &c.RateLimit.Enabled,
		"STORAGE_USE_SSL":   &c.Storage.UseSSL,
		"NARA_AUTOSTART":    &c.Nara.Autostart,
	}
	for key, dst := range bools {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}

	durations := map[string]*time.Duration{
		"AUTH_TOKEN_TTL":          &c.Auth.TokenTTL,
		"RATELIMIT_WINDOW":        &c.RateLimit.Window,
		"RATELIMIT_LOGIN_WINDOW":  &c.RateLimit.LoginWindow,
		"SERVER_SHUTDOWN_TIMEOUT": &c.Server.ShutdownTimeout,
	}
	for key, dst := range durations {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = d
		}
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if _, err := c.Server.TrustedPrefixes(); err != nil {
		return err
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	if c.RateLimit.Requests < 0 || c.RateLimit.LoginAttempts < 0 {
		return errors.New("ratelimit limits must not be negative")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Window <= 0 || c.RateLimit.LoginWindow <= 0) {
		return errors.New("ratelimit windows must be positive")
	}
	if c.Redis.DB < 0 {
		return errors.New("redis.db must not be negative")
	}
	if c.Storage.Endpoint != "" && c.Storage.Bucket == "" {
		return errors.New("storage.bucket is required with storage.endpoint")
	}
	return nil
}
