package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// DevMode accepts every request as a local admin. Never enable in production.
	DevMode       bool
	AuthJWTSecret string
	AuthAudience  string
	AuthIssuer    string
	// Scopes every token must carry in its scp claim.
	AuthRequiredScopes []string

	LogLevel  string
	LogFormat string

	OtelEnabled       bool
	OTLPEndpoint      string
	OTLPProtocol      string
	OtelSamplingRatio float64

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Storage StorageConfig

	AutosaveDebounce       time.Duration
	AutosaveRequestTimeout time.Duration
	AutosaveMaxConcurrent  int

	UploadMaxBytes int64
	// Per-actor upload token bucket, enforced only when Redis is configured.
	UploadRatePerSecond float64
	UploadBurst         int

	BackupInterval    time.Duration
	BackupDir         string
	// Activity entries older than this are pruned by the maintenance job.
	ActivityRetention time.Duration
	// Empty runs every configured job.
	SchedulerJobs []string

	// BootstrapAdminEmail is granted the admin role at startup when no team
	// member has that email yet.
	BootstrapAdminEmail string
	// SeedTaxRates inserts the default rates when the tax table is empty.
	SeedTaxRates bool
}

type StorageConfig struct {
	Driver        string
	LocalDir      string
	PublicBaseURL string
	S3            S3Config
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
	UsePathStyle    bool
}

const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")

	cfg := Config{
		AppName:       getenv("APP_SERVICE", "rfacto"),
		AppVersion:    getenv("APP_VERSION", "1.0.0"),
		Environment:   environment,
		HTTPAddr:      getenv("HTTP_ADDR", ":4000"),
		DevMode:       getenvBool("DEV_MODE", false) && environment != "production",
		AuthJWTSecret: strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		AuthAudience:  strings.TrimSpace(getenv("AUTH_AUDIENCE", "")),
		AuthIssuer:    strings.TrimSpace(getenv("AUTH_ISSUER", "")),

		LogLevel:  strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
		LogFormat: strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),

		OtelEnabled:       getenvBool("OTEL_ENABLED", true),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		OTLPProtocol:      strings.ToLower(strings.TrimSpace(getenv("OTLP_PROTOCOL", "grpc"))),
		OtelSamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),

		AuthRequiredScopes: getenvList("AUTH_REQUIRED_SCOPES"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "rfacto"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "rfacto.db"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       int(getenvInt64("REDIS_DB", 0)),

		Storage: StorageConfig{
			Driver:        strings.ToLower(getenv("STORAGE_DRIVER", StorageDriverLocal)),
			LocalDir:      getenv("STORAGE_LOCAL_DIR", "uploads"),
			PublicBaseURL: strings.TrimRight(getenv("STORAGE_PUBLIC_BASE_URL", "/uploads"), "/"),
			S3: S3Config{
				Bucket:          strings.TrimSpace(getenv("S3_BUCKET", "")),
				Region:          getenv("S3_REGION", "auto"),
				Endpoint:        strings.TrimSpace(getenv("S3_ENDPOINT", "")),
				AccessKeyID:     strings.TrimSpace(getenv("S3_ACCESS_KEY_ID", "")),
				SecretAccessKey: strings.TrimSpace(getenv("S3_SECRET_ACCESS_KEY", "")),
				PublicBaseURL:   strings.TrimRight(getenv("S3_PUBLIC_BASE_URL", ""), "/"),
				UsePathStyle:    getenvBool("S3_USE_PATH_STYLE", true),
			},
		},

		AutosaveDebounce:       getenvDuration("AUTOSAVE_DEBOUNCE", 600*time.Millisecond),
		AutosaveRequestTimeout: getenvDuration("AUTOSAVE_REQUEST_TIMEOUT", 15*time.Second),
		AutosaveMaxConcurrent:  int(getenvInt64("AUTOSAVE_MAX_CONCURRENT", 8)),

		UploadMaxBytes:      getenvInt64("UPLOAD_MAX_BYTES", 25<<20),
		UploadRatePerSecond: getenvFloat("UPLOAD_RATE_PER_SECOND", 1),
		UploadBurst:         int(getenvInt64("UPLOAD_BURST", 10)),

		BackupInterval:    getenvDuration("BACKUP_INTERVAL", 0),
		BackupDir:         getenv("BACKUP_DIR", "backups"),
		ActivityRetention: getenvDuration("ACTIVITY_RETENTION", 0),
		SchedulerJobs:     getenvList("SCHEDULER_JOBS"),

		BootstrapAdminEmail: strings.ToLower(strings.TrimSpace(getenv("BOOTSTRAP_ADMIN_EMAIL", ""))),
		SeedTaxRates:        getenvBool("SEED_TAX_RATES", true),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

// getenvList splits a comma or space separated variable.
func getenvList(key string) []string {
	fields := strings.FieldsFunc(os.Getenv(key), func(r rune) bool {
		return r == ',' || r == ' '
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}
