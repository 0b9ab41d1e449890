package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr       string
	RequestTimeout time.Duration
	LogLevel       string
	LogFormat      string
	UserAgent      string

	CacheTTL      time.Duration
	CacheDisabled bool
	RedisURL      string

	ProviderOrder  []string
	ExtraStopWords []string
	ProviderRPS    int
	ProviderBurst  int

	CatalogPath string

	ArchiveBaseURL string

	StreamingBaseURL    string
	StreamingToken      string
	StreamingMarket     string
	StreamingQualifiers string

	VideoBaseURL        string
	VideoAPIKey         string
	VideoRegion         string
	VideoTerms          string
	VideoDiscourseTerms string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		RequestTimeout: time.Duration(getEnvInt("RESOLVE_TIMEOUT_SECONDS", 10)) * time.Second,
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UserAgent:      getEnv("RESOLVE_USER_AGENT", "satsang-resolver/1.0"),

		CacheTTL:      time.Duration(getEnvInt("RESOLVE_CACHE_TTL_MINUTES", 60)) * time.Minute,
		CacheDisabled: getEnvBool("RESOLVE_CACHE_DISABLED", false),
		RedisURL:      getEnv("REDIS_URL", ""),

		ProviderOrder:  splitCSV(getEnv("RESOLVE_PROVIDER_ORDER", "local,archive,streaming,video")),
		ExtraStopWords: splitCSV(getEnv("RESOLVE_STOP_WORDS", "")),
		ProviderRPS:    getEnvInt("RESOLVE_PROVIDER_RPS", 5),
		ProviderBurst:  getEnvInt("RESOLVE_PROVIDER_BURST", 10),

		CatalogPath: getEnv("CATALOG_PATH", ""),

		ArchiveBaseURL: getEnv("ARCHIVE_BASE_URL", "https://archive.org"),

		StreamingBaseURL:    getEnv("STREAMING_BASE_URL", "https://api.spotify.com/v1"),
		StreamingToken:      strings.TrimSpace(os.Getenv("STREAMING_API_TOKEN")),
		StreamingMarket:     getEnv("STREAMING_MARKET", "IN"),
		StreamingQualifiers: getEnv("STREAMING_QUALIFIERS", "bhajan devotional"),

		VideoBaseURL:        getEnv("VIDEO_BASE_URL", "https://www.googleapis.com/youtube/v3"),
		VideoAPIKey:         strings.TrimSpace(os.Getenv("VIDEO_API_KEY")),
		VideoRegion:         getEnv("VIDEO_REGION", "IN"),
		VideoTerms:          getEnv("VIDEO_TERMS", "bhajan"),
		VideoDiscourseTerms: getEnv("VIDEO_DISCOURSE_TERMS", "pravachan satsang discourse lecture"),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.ToLower(strings.TrimSpace(part))
		if value != "" {
			values = append(values, value)
		}
	}
	return values
}
