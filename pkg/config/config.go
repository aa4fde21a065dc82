package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App               AppConfig
	Service           ServiceConfig
	DB                DBConfig
	Redis             RedisConfig
	Bot               BotConfig
	Stellar           StellarConfig
	Conversation      ConversationConfig
	Delivery          DeliveryConfig
	ValidateRateLimit ValidateRateLimitConfig
	FeatureFlags      FeatureFlagsConfig
	Cron              CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LICENSEBOT_APP_ENV" required:"true"`
	Port         string `envconfig:"LICENSEBOT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"LICENSEBOT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LICENSEBOT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LICENSEBOT_SERVICE_KIND" default:"bot"`
}

type DBConfig struct {
	DSN    string `envconfig:"LICENSEBOT_DB_DSN"`
	Driver string `envconfig:"LICENSEBOT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LICENSEBOT_DB_HOST"`
	LegacyPort     int    `envconfig:"LICENSEBOT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LICENSEBOT_DB_USER"`
	LegacyPassword string `envconfig:"LICENSEBOT_DB_PASSWORD"`
	LegacyName     string `envconfig:"LICENSEBOT_DB_NAME"`
	LegacySSLMode  string `envconfig:"LICENSEBOT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LICENSEBOT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LICENSEBOT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LICENSEBOT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LICENSEBOT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LICENSEBOT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LICENSEBOT_REDIS_ADDR"`
	Password     string        `envconfig:"LICENSEBOT_REDIS_PASSWORD"`
	DB           int           `envconfig:"LICENSEBOT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LICENSEBOT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LICENSEBOT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LICENSEBOT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LICENSEBOT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LICENSEBOT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// BotConfig identifies the administrator and the bot's public handle.
type BotConfig struct {
	AdminChatID int64  `envconfig:"LICENSEBOT_ADMIN_CHAT_ID" required:"true"`
	Link        string `envconfig:"LICENSEBOT_BOT_LINK" default:"https://t.me/fxtoolworks_bot"`
}

// StellarConfig carries the settlement address users pay into and the
// address accepted by the simulated payment oracle.
type StellarConfig struct {
	SettlementAddress string `envconfig:"LICENSEBOT_STELLAR_SETTLEMENT_ADDRESS" required:"true"`
	TestAddress       string `envconfig:"LICENSEBOT_STELLAR_TEST_ADDRESS" default:"GABCDEFGHIJKLMNOPQRSTUVWXYZ234567ABCDEFGHIJKLMNOPQRSTUVW"`
}

type ConversationConfig struct {
	IdleTimeout   time.Duration `envconfig:"LICENSEBOT_CONVERSATION_IDLE_TIMEOUT" default:"600s"`
	SweepInterval time.Duration `envconfig:"LICENSEBOT_CONVERSATION_SWEEP_INTERVAL" default:"30s"`
	ValidateWait  time.Duration `envconfig:"LICENSEBOT_VALIDATE_HWID_WAIT" default:"120s"`
}

type DeliveryConfig struct {
	UsageGuideRef   string        `envconfig:"LICENSEBOT_USAGE_GUIDE_REF" default:"docs/ea_usage_guide.pdf"`
	RendererURL     string        `envconfig:"LICENSEBOT_CERT_RENDERER_URL" required:"true"`
	RendererTimeout time.Duration `envconfig:"LICENSEBOT_CERT_RENDERER_TIMEOUT" default:"15s"`
}

type ValidateRateLimitConfig struct {
	Window   time.Duration `envconfig:"LICENSEBOT_VALIDATE_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit  int           `envconfig:"LICENSEBOT_VALIDATE_RATE_LIMIT_IP_LIMIT" default:"30"`
	KeyLimit int           `envconfig:"LICENSEBOT_VALIDATE_RATE_LIMIT_KEY_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LICENSEBOT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LICENSEBOT_AUTO_MIGRATE" default:"false"`
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"LICENSEBOT_CRON_INTERVAL" default:"24h"`
	ExpiryWarningDays int           `envconfig:"LICENSEBOT_CRON_EXPIRY_WARNING_DAYS" default:"7"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	// sqlite deployments carry the path in DSN directly
	if strings.EqualFold(db.Driver, "sqlite") {
		return fmt.Errorf("%s is required when the sqlite driver is selected", EnvDBDSN)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
