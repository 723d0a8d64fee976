package shared

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	StoreBackend string // mongo|mysql|memory
	MongoURI     string
	MongoDB      string
	MySQLDSN     string

	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	MediaBackend        string // cloudinary|s3|gcs|none
	CloudinaryBase      string
	CloudinaryCloud     string
	CloudinaryKey       string
	CloudinarySecret    string
	CloudinaryRPS       int
	S3Bucket            string
	S3Region            string
	S3Endpoint          string
	S3Prefix            string
	AWSAccessKey        string
	AWSSecretKey        string
	GCSBucket           string
	GCSPrefix           string
	GCSCredentials      string
	GCSEndpoint         string
	MediaDeleteTimeout  time.Duration
	MediaDeleteParallel int

	AMQPURL     string
	OrphanQueue string

	JWTSecret         string
	TokenTTL          time.Duration
	BcryptCost        int
	AllowRegistration bool
	LoginRPS          float64
	CORSOrigins       []string

	GeoRequired     bool
	PruneEmptyFiles bool

	JanitorWorkers     int
	JanitorMaxAttempts int
	JanitorRetryDelay  time.Duration
}

// Load reads the environment, after an optional .env file.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg(".env not loaded")
	}

	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),

		StoreBackend: strings.ToLower(env("STORE_BACKEND", "mongo")),
		MongoURI:     env("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      env("MONGO_DB", "resorts"),
		MySQLDSN:     env("MYSQL_DSN", "root:root@tcp(localhost:3306)/resorts?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),

		RedisAddr: env("REDIS_ADDR", ""),
		RedisPass: env("REDIS_PASSWORD", ""),
		RedisDB:   atoi("REDIS_DB", 0),
		CacheTTL:  time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,

		MediaBackend:        strings.ToLower(env("MEDIA_BACKEND", "cloudinary")),
		CloudinaryBase:      env("CLOUDINARY_BASE_URL", "https://api.cloudinary.com"),
		CloudinaryCloud:     env("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryKey:       env("CLOUDINARY_API_KEY", ""),
		CloudinarySecret:    env("CLOUDINARY_API_SECRET", ""),
		CloudinaryRPS:       atoi("CLOUDINARY_RPS", 5),
		S3Bucket:            env("S3_BUCKET", ""),
		S3Region:            env("AWS_REGION", "us-east-1"),
		S3Endpoint:          env("S3_ENDPOINT", ""),
		S3Prefix:            env("S3_PREFIX", ""),
		AWSAccessKey:        env("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:        env("AWS_SECRET_ACCESS_KEY", ""),
		GCSBucket:           env("GCS_BUCKET", ""),
		GCSPrefix:           env("GCS_PREFIX", ""),
		GCSCredentials:      env("GCS_CREDENTIALS_FILE", ""),
		GCSEndpoint:         env("GCS_ENDPOINT", ""),
		MediaDeleteTimeout:  time.Duration(atoi("MEDIA_DELETE_TIMEOUT_MS", 10000)) * time.Millisecond,
		MediaDeleteParallel: atoi("MEDIA_DELETE_CONCURRENCY", 4),

		AMQPURL:     env("AMQP_URL", ""),
		OrphanQueue: env("ORPHAN_QUEUE", "media.orphaned"),

		JWTSecret:         env("JWT_SECRET", ""),
		TokenTTL:          time.Duration(atoi("TOKEN_TTL_HOURS", 24)) * time.Hour,
		BcryptCost:        atoi("BCRYPT_COST", 10),
		AllowRegistration: boolean("ALLOW_ADMIN_REGISTRATION", false),
		LoginRPS:          float("LOGIN_RPS", 1),
		CORSOrigins:       list("CORS_ORIGINS", "http://localhost:5173"),

		GeoRequired:     boolean("GEO_REQUIRED", false),
		PruneEmptyFiles: boolean("PRUNE_EMPTY_FILES", false),

		JanitorWorkers:     atoi("JANITOR_WORKERS", 4),
		JanitorMaxAttempts: atoi("JANITOR_MAX_ATTEMPTS", 5),
		JanitorRetryDelay:  time.Duration(atoi("JANITOR_RETRY_DELAY_MS", 30000)) * time.Millisecond,
	}
	if c.JWTSecret == "" && (c.AppEnv == "dev" || c.AppEnv == "development") {
		c.JWTSecret = devSecret()
		log.Warn().Msg("JWT_SECRET is empty; using a random secret, tokens will not survive a restart")
	}
	return c
}

var ErrNoJWTSecret = errors.New("JWT_SECRET must be set outside APP_ENV=dev")

// ValidateAPI reports settings the API server cannot start without.
func (c Config) ValidateAPI() error {
	if c.JWTSecret == "" {
		return ErrNoJWTSecret
	}
	return nil
}

func devSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", k).Str("value", v).Msg("not an integer; using default")
	}
	return def
}

func float(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func boolean(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func list(k, def string) []string {
	var out []string
	for _, p := range strings.Split(env(k, def), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
