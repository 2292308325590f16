package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	EnvTest = "test"

	AttemptStorePostgres = "postgres"
	AttemptStoreMemory   = "memory"
	AttemptStoreDisabled = "disabled"

	MinPBKDF2Iterations     = 100000
	MinTestPBKDF2Iterations = 1000
)

type Config struct {
	AppEnv    string `env:"APP_ENV" env-default:"development"`
	LogFormat string `env:"LOG_FORMAT" env-default:"text"`
	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`

	Server   Server
	Database Database
	Auth     Auth
	Storage  ObjectStorage
	MQTT     MQTT
}

type Server struct {
	Port              string        `env:"SERVER_PORT" env-default:"8080"`
	ReadHeaderTimeout time.Duration `env:"SERVER_READ_HEADER_TIMEOUT" env-default:"10s"`
	WriteTimeout      time.Duration `env:"SERVER_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout       time.Duration `env:"SERVER_IDLE_TIMEOUT" env-default:"120s"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" env-default:"30s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
	CORSOrigins       []string      `env:"CORS_ORIGINS" env-default:"*" env-separator:","`
	RateLimitRPM      int           `env:"RATE_LIMIT_RPM" env-default:"100"`
	AuthRateLimitRPM  int           `env:"AUTH_RATE_LIMIT_RPM" env-default:"10"`
	// TrustedProxies lists proxy addresses or CIDRs whose X-Forwarded-For is believed.
	TrustedProxies []string `env:"TRUSTED_PROXIES" env-separator:","`
}

// TrustedProxyPrefixes converts TrustedProxies to prefixes; bare addresses
// become single-host prefixes. Entries Validate would reject are skipped.
func (s Server) TrustedProxyPrefixes() []netip.Prefix {
	out := make([]netip.Prefix, 0, len(s.TrustedProxies))
	for _, entry := range s.TrustedProxies {
		if prefix, err := parseProxy(entry); err == nil {
			out = append(out, prefix)
		}
	}
	return out
}

func parseProxy(entry string) (netip.Prefix, error) {
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, err
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

type Database struct {
	URL            string        `env:"DATABASE_URL"`
	MaxConns       int32         `env:"DB_MAX_CONNS" env-default:"10"`
	MinConns       int32         `env:"DB_MIN_CONNS" env-default:"1"`
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" env-default:"10s"`
}

// Auth holds the three independent secrets. A missing secret is not a load
// error; the affected routes answer SERVICE_MISCONFIGURED instead.
type Auth struct {
	SessionSecret     string `env:"SESSION_SECRET"`
	DeviceHMACSecret  string `env:"DEVICE_HMAC_SECRET"`
	BootstrapSecret   string `env:"BOOTSTRAP_SECRET"`
	PBKDF2Iterations  int    `env:"PBKDF2_ITERATIONS" env-default:"600000"`
	LoginAttemptStore string `env:"LOGIN_ATTEMPT_STORE" env-default:"postgres"`
}

type ObjectStorage struct {
	Endpoint        string        `env:"S3_ENDPOINT"`
	Region          string        `env:"S3_REGION" env-default:"us-east-1"`
	Bucket          string        `env:"S3_BUCKET"`
	AccessKeyID     string        `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string        `env:"S3_SECRET_ACCESS_KEY"`
	UsePathStyle    bool          `env:"S3_USE_PATH_STYLE" env-default:"true"`
	PresignTTL      time.Duration `env:"S3_PRESIGN_TTL" env-default:"15m"`
}

// MQTT configures critical-incident dispatch; an empty BrokerURL turns it off.
type MQTT struct {
	BrokerURL      string        `env:"MQTT_BROKER_URL"`
	ClientID       string        `env:"MQTT_CLIENT_ID" env-default:"printer-fieldops"`
	Username       string        `env:"MQTT_USERNAME"`
	Password       string        `env:"MQTT_PASSWORD"`
	Topic          string        `env:"MQTT_INCIDENT_TOPIC" env-default:"fieldops/incidents/critical"`
	QoS            byte          `env:"MQTT_QOS" env-default:"1"`
	ConnectTimeout time.Duration `env:"MQTT_CONNECT_TIMEOUT" env-default:"10s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) normalize() {
	c.AppEnv = strings.ToLower(strings.TrimSpace(c.AppEnv))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.Auth.SessionSecret = strings.TrimSpace(c.Auth.SessionSecret)
	c.Auth.DeviceHMACSecret = strings.TrimSpace(c.Auth.DeviceHMACSecret)
	c.Auth.BootstrapSecret = strings.TrimSpace(c.Auth.BootstrapSecret)
	c.Auth.LoginAttemptStore = strings.ToLower(strings.TrimSpace(c.Auth.LoginAttemptStore))

	origins := make([]string, 0, len(c.Server.CORSOrigins))
	for _, origin := range c.Server.CORSOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.Server.CORSOrigins = origins

	proxies := make([]string, 0, len(c.Server.TrustedProxies))
	for _, proxy := range c.Server.TrustedProxies {
		if trimmed := strings.TrimSpace(proxy); trimmed != "" {
			proxies = append(proxies, trimmed)
		}
	}
	c.Server.TrustedProxies = proxies
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Port) == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if strings.TrimSpace(c.Database.URL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}

	if c.Server.RateLimitRPM <= 0 || c.Server.AuthRateLimitRPM <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPM and AUTH_RATE_LIMIT_RPM must be positive")
	}

	for _, proxy := range c.Server.TrustedProxies {
		if _, err := parseProxy(proxy); err != nil {
			return fmt.Errorf("TRUSTED_PROXIES entry %q is not an address or CIDR", proxy)
		}
	}

	if c.Database.MinConns < 0 || c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("DB_MAX_CONNS must be >= DB_MIN_CONNS >= 0")
	}

	minIterations := MinPBKDF2Iterations
	if c.IsTest() {
		minIterations = MinTestPBKDF2Iterations
	}
	if c.Auth.PBKDF2Iterations < minIterations {
		return fmt.Errorf("PBKDF2_ITERATIONS must be at least %d", minIterations)
	}

	switch c.Auth.LoginAttemptStore {
	case AttemptStorePostgres, AttemptStoreMemory, AttemptStoreDisabled:
	default:
		return fmt.Errorf("LOGIN_ATTEMPT_STORE must be one of postgres, memory, disabled; got %q", c.Auth.LoginAttemptStore)
	}

	if c.Auth.SessionSecret != "" {
		if c.Auth.SessionSecret == c.Auth.DeviceHMACSecret {
			return fmt.Errorf("SESSION_SECRET must differ from DEVICE_HMAC_SECRET")
		}
		if c.Auth.SessionSecret == c.Auth.BootstrapSecret {
			return fmt.Errorf("SESSION_SECRET must differ from BOOTSTRAP_SECRET")
		}
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json")
	}

	if c.MQTT.BrokerURL != "" && c.MQTT.QoS > 2 {
		return fmt.Errorf("MQTT_QOS must be 0, 1 or 2")
	}

	return nil
}

func (c *Config) IsTest() bool {
	return c.AppEnv == EnvTest
}

// MissingSecrets names the unset auth secrets so startup can log them.
func (c *Config) MissingSecrets() []string {
	missing := make([]string, 0, 3)
	if c.Auth.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}
	if c.Auth.DeviceHMACSecret == "" {
		missing = append(missing, "DEVICE_HMAC_SECRET")
	}
	if c.Auth.BootstrapSecret == "" {
		missing = append(missing, "BOOTSTRAP_SECRET")
	}
	return missing
}

// ObjectStorageEnabled reports whether photo upload URLs can be presigned.
func (c *Config) ObjectStorageEnabled() bool {
	return c.Storage.Bucket != "" && c.Storage.AccessKeyID != "" && c.Storage.SecretAccessKey != ""
}
