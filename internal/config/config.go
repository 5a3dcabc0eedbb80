package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Service names used for rate budgets and credential pools.
const (
	ServiceGemini    = "gemini"
	ServiceWordPress = "wordpress"
	ServiceImage     = "image"
	ServiceVideo     = "video"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	RedisAddr     string
	RedisPassword string
	DataDir       string
	KeywordsDir   string

	WordPressURL         string
	WordPressUsername    string
	WordPressAppPassword string
	WordPressRateLimit   int // calls per window
	WordPressRateWindow  time.Duration
	UseYoastSEO          bool
	DefaultCategory      string

	GeminiAPIKeys    []string
	GeminiModel      string
	GeminiRateLimit  int // calls per window
	GeminiRateWindow time.Duration
	KeyPoolsFile     string
	KeyMaxErrors     int
	KeyCooldown      time.Duration

	ImageRateLimit  int
	VideoRateLimit  int
	ImageRateWindow time.Duration
	VideoRateWindow time.Duration
	ImageMaxCount   int
	VideoMaxCount   int

	CacheTTL      time.Duration
	MediaCacheTTL time.Duration

	GenerateMaxAttempts int
	PublishMaxAttempts  int
	LookupMaxAttempts   int
	RetryBaseDelay      time.Duration
	RetryMaxDelay       time.Duration

	Workers        int
	JobInterval    time.Duration // minimum gap between job starts
	TaskMaxRetries int
}

// PoolsFile is the optional YAML credential-pool file layout.
type PoolsFile struct {
	Pools map[string][]string `yaml:"pools"`
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func Load() Config {
	// Missing .env is fine, the environment may already be populated.
	_ = godotenv.Load()

	cfg := Config{
		AppEnv:        getenv("APP_ENV", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8082"),
		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		DataDir:       getenv("DATA_DIR", "./data"),
		KeywordsDir:   getenv("KEYWORDS_DIR", "./data/keywords"),

		WordPressURL:         getenv("WP_URL", ""),
		WordPressUsername:    os.Getenv("WP_USERNAME"),
		WordPressAppPassword: os.Getenv("WP_APP_PASSWORD"),
		WordPressRateLimit:   getenvInt("WP_API_RATE_LIMIT", 30),
		WordPressRateWindow:  getenvDur("WP_API_RATE_WINDOW", time.Minute),
		UseYoastSEO:          getenvBool("WP_USE_YOAST_SEO", true),
		DefaultCategory:      getenv("WP_DEFAULT_CATEGORY", "General"),

		GeminiModel:      getenv("GEMINI_MODEL_NAME", "gemini-1.5-flash"),
		GeminiRateLimit:  getenvInt("GEMINI_RATE_LIMIT", 5),
		GeminiRateWindow: getenvDur("GEMINI_RATE_WINDOW", time.Minute),
		KeyPoolsFile:     getenv("KEY_POOLS_FILE", ""),
		KeyMaxErrors:     getenvInt("KEY_MAX_ERRORS", 5),
		KeyCooldown:      getenvDur("KEY_ERROR_COOLDOWN", 5*time.Minute),

		ImageRateLimit:  getenvInt("IMAGE_RATE_LIMIT", 2),
		VideoRateLimit:  getenvInt("VIDEO_RATE_LIMIT", 2),
		ImageRateWindow: getenvDur("IMAGE_RATE_WINDOW", time.Minute),
		VideoRateWindow: getenvDur("VIDEO_RATE_WINDOW", time.Minute),
		ImageMaxCount:   getenvInt("IMAGE_MAX_COUNT", 5),
		VideoMaxCount:   getenvInt("VIDEO_MAX_COUNT", 1),

		CacheTTL:      getenvDur("CACHE_TTL", 7*24*time.Hour),
		MediaCacheTTL: getenvDur("MEDIA_CACHE_TTL", 14*24*time.Hour),

		GenerateMaxAttempts: getenvInt("GENERATE_MAX_ATTEMPTS", 3),
		PublishMaxAttempts:  getenvInt("PUBLISH_MAX_ATTEMPTS", 3),
		LookupMaxAttempts:   getenvInt("LOOKUP_MAX_ATTEMPTS", 2),
		RetryBaseDelay:      getenvDur("RETRY_BASE_DELAY", time.Second),
		RetryMaxDelay:       getenvDur("RETRY_MAX_DELAY", time.Minute),

		Workers:        getenvInt("WORKERS", 1),
		JobInterval:    getenvDur("JOB_INTERVAL", 30*time.Second),
		TaskMaxRetries: getenvInt("TASK_MAX_RETRIES", 3),
	}

	cfg.GeminiAPIKeys = loadGeminiKeys(cfg.KeyPoolsFile)

	if cfg.RedisAddr == "" {
		panic(fmt.Errorf("REDIS_ADDR is required"))
	}
	return cfg
}

// loadGeminiKeys reads GEMINI_API_KEY1..GEMINI_API_KEY10 (plus the unnumbered
// GEMINI_API_KEY), falling back to the YAML pools file when the environment
// carries none.
func loadGeminiKeys(poolsFile string) []string {
	var keys []string
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		keys = append(keys, k)
	}
	for i := 1; i <= 10; i++ {
		if k := os.Getenv(fmt.Sprintf("GEMINI_API_KEY%d", i)); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) > 0 || poolsFile == "" {
		return keys
	}

	b, err := os.ReadFile(poolsFile)
	if err != nil {
		return nil
	}
	var pf PoolsFile
	if err := yaml.Unmarshal(b, &pf); err != nil {
		return nil
	}
	return pf.Pools[ServiceGemini]
}
