package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	scrapeerr "sjsage522/tenderscraper/pkg/errors"
)

// Supported output formats, in the order they are written
var supportedFormats = []string{"csv", "xlsx", "json", "sqlite"}

// Config represents the application configuration
type Config struct {
	// Portal configuration
	BaseURL              string
	PrequalificationOnly bool
	Ministry             string
	FilterFile           string
	ProxyURL             string
	RequestTimeout       time.Duration

	// Pagination and worker pool
	PageLimit int
	Workers   int
	FailFast  bool

	// Retry policy
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration

	// Output configuration
	OutputDir     string
	OutputName    string
	OutputFormats []string
	ErrorLogFile  string

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration
	MemcacheAddr string
	BlockTime    time.Duration

	// Scheduling and metrics
	Schedule    string
	MetricsAddr string

	// Environment
	Environment string

	// variables that were set but are not integers
	malformed []string
}

// LoadConfig loads the configuration from environment variables with defaults.
// Malformed numbers are kept aside and reported by Validate.
func LoadConfig() *Config {
	var ints intParser
	pageLimit := ints.get("PAGE_LIMIT", 0)
	workers := ints.get("WORKERS", 50)
	requestTimeout := ints.get("REQUEST_TIMEOUT_SECONDS", 30)
	retryAttempts := ints.get("RETRY_MAX_ATTEMPTS", 8)
	retryInitial := ints.get("RETRY_INITIAL_BACKOFF_MS", 500)
	retryMax := ints.get("RETRY_MAX_BACKOFF_SECONDS", 30)
	redisDB := ints.get("REDIS_DB", 0)
	redisStreamCount := ints.get("REDIS_STREAM_COUNT", 1)
	redisStreamMaxLength := ints.get("REDIS_STREAM_MAX_LENGTH", 10000)
	blockTime := ints.get("BLOCK_TIME_SECONDS", 60)

	return &Config{
		BaseURL:              strings.TrimRight(getEnv("TENDERBOARD_BASE_URL", "https://www.tenderboard.gov.bh"), "/"),
		PrequalificationOnly: getBool("PREQUALIFICATION_ONLY", false),
		Ministry:             getEnv("MINISTRY", ""),
		FilterFile:           getEnv("FILTER_FILE", ""),
		ProxyURL:             getEnv("PORTAL_PROXY_URL", ""),
		RequestTimeout:       time.Duration(requestTimeout) * time.Second,
		PageLimit:            pageLimit,
		Workers:              workers,
		FailFast:             getBool("FAIL_FAST", true),
		RetryMaxAttempts:     retryAttempts,
		RetryInitialBackoff:  time.Duration(retryInitial) * time.Millisecond,
		RetryMaxBackoff:      time.Duration(retryMax) * time.Second,
		OutputDir:            getEnv("OUTPUT_DIR", "."),
		OutputName:           getEnv("OUTPUT_NAME", "tenderboard"),
		OutputFormats:        ParseFormats(getEnv("OUTPUT_FORMATS", strings.Join(supportedFormats, ","))),
		ErrorLogFile:         getEnv("ERROR_LOG_FILE", "tenderboard_errors.log"),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "tenders"),
		RedisStreamCount:     redisStreamCount,
		RedisStreamMaxLength: redisStreamMaxLength,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		BlockTime:            time.Duration(blockTime) * time.Second,
		Schedule:             getEnv("SCRAPE_SCHEDULE", ""),
		MetricsAddr:          getEnv("METRICS_ADDR", ""),
		Environment:          getEnv("TENDER_ENVIRONMENT", "development"),
		malformed:            ints.malformed,
	}
}

// Validate checks the configuration for values the scraper cannot run with
func (c *Config) Validate() error {
	if len(c.malformed) > 0 {
		return scrapeerr.NewConfiguration("malformed integer settings: "+strings.Join(c.malformed, ", "), nil)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return scrapeerr.NewConfiguration(fmt.Sprintf("invalid TENDERBOARD_BASE_URL %q", c.BaseURL), err)
	}
	if c.ProxyURL != "" {
		p, err := url.Parse(c.ProxyURL)
		if err != nil || p.Scheme == "" || p.Host == "" {
			return scrapeerr.NewConfiguration(fmt.Sprintf("invalid PORTAL_PROXY_URL %q", c.ProxyURL), err)
		}
	}
	if c.Workers < 1 {
		return scrapeerr.NewConfiguration(fmt.Sprintf("WORKERS must be positive, got %d", c.Workers), nil)
	}
	if c.PageLimit < 0 {
		return scrapeerr.NewConfiguration(fmt.Sprintf("PAGE_LIMIT must not be negative, got %d", c.PageLimit), nil)
	}
	if c.RetryMaxAttempts < 0 {
		return scrapeerr.NewConfiguration(fmt.Sprintf("RETRY_MAX_ATTEMPTS must not be negative, got %d", c.RetryMaxAttempts), nil)
	}
	if c.RetryInitialBackoff <= 0 || c.RetryMaxBackoff < c.RetryInitialBackoff {
		return scrapeerr.NewConfiguration("retry backoff bounds are inconsistent", nil)
	}
	if c.RequestTimeout <= 0 {
		return scrapeerr.NewConfiguration("REQUEST_TIMEOUT_SECONDS must be positive", nil)
	}
	if len(c.OutputFormats) == 0 {
		return scrapeerr.NewConfiguration("OUTPUT_FORMATS selects no format", nil)
	}
	for _, f := range c.OutputFormats {
		if !isSupportedFormat(f) {
			return scrapeerr.NewConfiguration(fmt.Sprintf("unsupported output format %q", f), nil)
		}
	}
	if c.RedisAddr != "" && c.RedisStreamCount < 1 {
		return scrapeerr.NewConfiguration("REDIS_STREAM_COUNT must be positive", nil)
	}
	return nil
}

// ParseFormats splits a comma separated format list, normalizing case and
// dropping blanks. Formats are returned in the canonical write order.
func ParseFormats(value string) []string {
	requested := make(map[string]bool)
	var unknown []string
	for _, part := range strings.Split(value, ",") {
		f := strings.ToLower(strings.TrimSpace(part))
		if f == "" {
			continue
		}
		if f == "excel" {
			f = "xlsx"
		}
		if !isSupportedFormat(f) && !requested[f] {
			unknown = append(unknown, f)
		}
		requested[f] = true
	}

	var formats []string
	for _, f := range supportedFormats {
		if requested[f] {
			formats = append(formats, f)
		}
	}
	// keep unknown entries so Validate can report them
	return append(formats, unknown...)
}

func isSupportedFormat(format string) bool {
	for _, f := range supportedFormats {
		if f == format {
			return true
		}
	}
	return false
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// intParser reads integer variables and remembers the ones it could not parse
type intParser struct {
	malformed []string
}

func (p *intParser) get(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.malformed = append(p.malformed, fmt.Sprintf("%s=%q", key, value))
		return defaultValue
	}
	return n
}

func getBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}
