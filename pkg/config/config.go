package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Access        AccessConfig
	Storage       StorageConfig
	Bus           BusConfig
	Idempotency   IdempotencyConfig
	FeatureFlags  FeatureFlagsConfig
	Seed          SeedConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LICENSEDESK_APP_ENV" required:"true"`
	Port         string `envconfig:"LICENSEDESK_APP_PORT" default:"8000"`
	LogLevel     string `envconfig:"LICENSEDESK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LICENSEDESK_LOG_WARN_STACK" default:"false"`
	InstanceID   string `envconfig:"LICENSEDESK_INSTANCE_ID"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LICENSEDESK_DB_DSN"`
	Driver string `envconfig:"LICENSEDESK_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"LICENSEDESK_DB_HOST"`
	Port     int    `envconfig:"LICENSEDESK_DB_PORT" default:"5432"`
	User     string `envconfig:"LICENSEDESK_DB_USER"`
	Password string `envconfig:"LICENSEDESK_DB_PASSWORD"`
	Name     string `envconfig:"LICENSEDESK_DB_NAME"`
	SSLMode  string `envconfig:"LICENSEDESK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LICENSEDESK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LICENSEDESK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LICENSEDESK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LICENSEDESK_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"LICENSEDESK_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

// IsSQLite reports whether the store runs on the embedded SQLite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

// RedisConfig is optional: an empty URL and address disables login rate
// limiting and the cross-instance bus relay.
type RedisConfig struct {
	URL          string        `envconfig:"LICENSEDESK_REDIS_URL"`
	Address      string        `envconfig:"LICENSEDESK_REDIS_ADDR"`
	Password     string        `envconfig:"LICENSEDESK_REDIS_PASSWORD"`
	DB           int           `envconfig:"LICENSEDESK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LICENSEDESK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LICENSEDESK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LICENSEDESK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LICENSEDESK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LICENSEDESK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"LICENSEDESK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LICENSEDESK_JWT_ISSUER" default:"licensedesk"`
	ExpirationMinutes int    `envconfig:"LICENSEDESK_JWT_EXPIRATION_MINUTES" default:"60"`
}

// TTL returns the access token lifetime.
func (j JWTConfig) TTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"LICENSEDESK_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"LICENSEDESK_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"LICENSEDESK_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"LICENSEDESK_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"LICENSEDESK_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"LICENSEDESK_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginUsernameLimit int           `envconfig:"LICENSEDESK_AUTH_RATE_LIMIT_LOGIN_USERNAME_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"LICENSEDESK_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

// AccessConfig restricts which client addresses may log in. Loopback is
// always allowed; an empty list disables the check.
type AccessConfig struct {
	AllowedIPs        []string `envconfig:"LICENSEDESK_ALLOWED_IPS"`
	TrustProxyHeaders bool     `envconfig:"LICENSEDESK_TRUST_PROXY_HEADERS" default:"false"`
	CORSOrigins       []string `envconfig:"LICENSEDESK_CORS_ORIGINS" default:"*"`
}

type StorageConfig struct {
	Backend     string `envconfig:"LICENSEDESK_STORAGE_BACKEND" default:"local"`
	LocalDir    string `envconfig:"LICENSEDESK_UPLOAD_DIR" default:"uploads"`
	MaxUploadMB int    `envconfig:"LICENSEDESK_MAX_UPLOAD_MB" default:"20"`

	S3Endpoint      string `envconfig:"LICENSEDESK_S3_ENDPOINT"`
	S3AccessKey     string `envconfig:"LICENSEDESK_S3_ACCESS_KEY"`
	S3SecretKey     string `envconfig:"LICENSEDESK_S3_SECRET_KEY"`
	S3Bucket        string `envconfig:"LICENSEDESK_S3_BUCKET"`
	S3Region        string `envconfig:"LICENSEDESK_S3_REGION"`
	S3UseSSL        bool   `envconfig:"LICENSEDESK_S3_USE_SSL" default:"true"`
	S3PublicBaseURL string `envconfig:"LICENSEDESK_S3_PUBLIC_BASE_URL"`
}

// MaxUploadBytes converts the configured upload cap into bytes.
func (s StorageConfig) MaxUploadBytes() int64 {
	if s.MaxUploadMB <= 0 {
		return 0
	}
	return int64(s.MaxUploadMB) << 20
}

func (s StorageConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Backend)) {
	case StorageBackendLocal:
		if strings.TrimSpace(s.LocalDir) == "" {
			return fmt.Errorf("%s is required for the local storage backend", EnvUploadDir)
		}
	case StorageBackendS3:
		missing := []string{}
		if s.S3Endpoint == "" {
			missing = append(missing, EnvS3Endpoint)
		}
		if s.S3Bucket == "" {
			missing = append(missing, EnvS3Bucket)
		}
		if len(missing) > 0 {
			return fmt.Errorf("s3 storage backend requires %s", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("unknown storage backend %q", s.Backend)
	}
	return nil
}

type BusConfig struct {
	RelayChannel string        `envconfig:"LICENSEDESK_BUS_RELAY_CHANNEL" default:"licensedesk:request_update"`
	RelayTimeout time.Duration `envconfig:"LICENSEDESK_BUS_RELAY_TIMEOUT" default:"2s"`
	WriteTimeout time.Duration `envconfig:"LICENSEDESK_BUS_VIEWER_WRITE_TIMEOUT" default:"10s"`
}

// IdempotencyConfig bounds how long replayable responses and in-flight
// reservations are kept in redis.
type IdempotencyConfig struct {
	TTL     time.Duration `envconfig:"LICENSEDESK_IDEMPOTENCY_TTL" default:"24h"`
	LockTTL time.Duration `envconfig:"LICENSEDESK_IDEMPOTENCY_LOCK_TTL" default:"2m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LICENSEDESK_AUTO_MIGRATE" default:"false"`
}

// SeedConfig drives the operator reset tool.
type SeedConfig struct {
	DefaultPassword string `envconfig:"LICENSEDESK_SEED_PASSWORD" default:"password"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	if db.IsSQLite() {
		db.DSN = DefaultSQLiteDSN
		return nil
	}

	missing := []string{}
	componentValues := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range componentDBEnvVars {
		if componentValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
