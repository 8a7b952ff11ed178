package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"

	"github.com/PratikDhanave/event-dedup-service/internal/cache"
	"github.com/PratikDhanave/event-dedup-service/internal/dedup"
	"github.com/PratikDhanave/event-dedup-service/internal/fingerprint"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// History backends.
const (
	HistoryPostgres = "postgres"
	HistoryHTTP     = "http"
	HistoryNone     = "none"
)

// Config contains runtime configuration required by the service.
type Config struct {
	HTTPAddr string
	LogLevel string
	DBURL    string
	APIKeys  map[string]string // apiKey -> tenantID

	Policy       fingerprint.Policy
	Lookback     time.Duration
	CacheTTL     time.Duration
	CacheBackend string
	RedisURL     string

	HistoryBackend  string
	HistoryURL      string
	HistoryAPIKey   string
	HistoryTimeout  time.Duration
	HistoryMaxPages int
	HistoryRetryMax int
}

// Load reads values from environment variables, after seeding the environment
// from a .env file when one exists. Variables already set win over .env.
// API_KEYS format: "tenant1:key1,tenant2:key2"
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads and validates configuration from the current environment.
func FromEnv() (Config, error) {
	cfg := Config{
		HTTPAddr:       envOr("HTTP_ADDR", ":8080"),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		DBURL:          strings.TrimSpace(os.Getenv("DB_URL")),
		CacheBackend:   strings.ToLower(envOr("CACHE_BACKEND", CacheMemory)),
		RedisURL:       strings.TrimSpace(os.Getenv("REDIS_URL")),
		HistoryBackend: strings.ToLower(envOr("HISTORY_BACKEND", HistoryPostgres)),
		HistoryURL:     strings.TrimSpace(os.Getenv("HISTORY_URL")),
		HistoryAPIKey:  strings.TrimSpace(os.Getenv("HISTORY_API_KEY")),
	}

	var err error
	if cfg.Policy, err = fingerprint.ParsePolicy(os.Getenv("DEDUP_MODE")); err != nil {
		return Config{}, errors.Wrap(err, "DEDUP_MODE")
	}
	if cfg.Lookback, err = durationEnv("DEDUP_LOOKBACK", dedup.DefaultLookback); err != nil {
		return Config{}, err
	}
	if cfg.CacheTTL, err = durationEnv("DEDUP_CACHE_TTL", cache.TTL); err != nil {
		return Config{}, err
	}
	if cfg.HistoryTimeout, err = durationEnv("HISTORY_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.HistoryMaxPages, err = intEnv("HISTORY_MAX_PAGES", 1); err != nil {
		return Config{}, err
	}
	if cfg.HistoryRetryMax, err = intEnv("HISTORY_RETRY_MAX", 2); err != nil {
		return Config{}, err
	}

	if cfg.APIKeys, err = parseAPIKeys(os.Getenv("API_KEYS")); err != nil {
		return Config{}, err
	}

	switch cfg.CacheBackend {
	case CacheMemory:
	case CacheRedis:
		if cfg.RedisURL == "" {
			return Config{}, errors.New("REDIS_URL required when CACHE_BACKEND=redis")
		}
	default:
		return Config{}, errors.Newf("CACHE_BACKEND must be %q or %q", CacheMemory, CacheRedis)
	}

	switch cfg.HistoryBackend {
	case HistoryPostgres:
		if cfg.DBURL == "" {
			return Config{}, errors.New("DB_URL required when HISTORY_BACKEND=postgres")
		}
	case HistoryHTTP:
		if cfg.HistoryURL == "" {
			return Config{}, errors.New("HISTORY_URL required when HISTORY_BACKEND=http")
		}
	case HistoryNone:
	default:
		return Config{}, errors.Newf("HISTORY_BACKEND must be %q, %q or %q", HistoryPostgres, HistoryHTTP, HistoryNone)
	}

	return cfg, nil
}

func parseAPIKeys(raw string) (map[string]string, error) {
	apiKeys := map[string]string{}
	raw = strings.TrimSpace(raw)

	if raw != "" {
		pairs := strings.Split(raw, ",")
		for _, p := range pairs {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			parts := strings.SplitN(p, ":", 2)
			if len(parts) != 2 {
				return nil, errors.New(`API_KEYS must be "tenant:key,tenant:key"`)
			}
			tenant := strings.TrimSpace(parts[0])
			key := strings.TrimSpace(parts[1])
			if tenant == "" || key == "" {
				return nil, errors.New(`API_KEYS must be "tenant:key,tenant:key"`)
			}
			apiKeys[key] = tenant
		}
	}

	// Local dev fallback so the service runs out-of-the-box.
	if len(apiKeys) == 0 {
		apiKeys["tenant-key-123"] = "tenant1"
	}
	return apiKeys, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "%s must be a duration such as 1s", key)
	}
	if d <= 0 {
		return 0, errors.Newf("%s must be positive", key)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "%s must be an integer", key)
	}
	if n < 0 {
		return 0, errors.Newf("%s must not be negative", key)
	}
	return n, nil
}
