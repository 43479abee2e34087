package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sjsage522/tenderscraper/config"
	"sjsage522/tenderscraper/helpers"
	"sjsage522/tenderscraper/internal/tenderboard"
	"sjsage522/tenderscraper/logger"
	scrapeerr "sjsage522/tenderscraper/pkg/errors"
	"sjsage522/tenderscraper/services/cache"
	"sjsage522/tenderscraper/services/publisher"
)

// rateLimitKey is the cache key marking the portal as rate limited
const rateLimitKey = "tenderboard:blocked"

// Services holds all the initialized services
type Services struct {
	Config    *config.Config
	Client    *tenderboard.Client
	Cache     cache.CacheService
	Publisher publisher.Publisher

	metrics *http.Server

	ministriesOnce sync.Once
	ministries     []tenderboard.Ministry
	ministriesErr  error
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.metrics.Shutdown(ctx)
	}
}

// initializeServices initializes the portal client and the optional cache,
// publisher and metrics endpoint. observer may be nil.
func initializeServices(ctx context.Context, cfg *config.Config, observer tenderboard.RowObserver) (*Services, error) {
	services := &Services{Config: cfg}

	var guard *cache.RateLimitGuard
	if cfg.MemcacheAddr != "" {
		cacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := cacheService.Ping(); err != nil {
			logger.ForCache().Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unreachable, rate limit marker disabled")
		} else {
			services.Cache = cacheService
			guard = cache.NewRateLimitGuard(cacheService, rateLimitKey, cfg.BlockTime)
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	}

	opts := tenderboard.Options{
		BaseURL:  cfg.BaseURL,
		ProxyURL: cfg.ProxyURL,
		Headers:  helpers.PortalHeaders(cfg.BaseURL),
		Timeout:  cfg.RequestTimeout,
		Retry:    retryPolicy(cfg),
		Guard:    guard,
	}
	if observer != nil {
		opts.Observer = observer
	}
	services.Client = tenderboard.NewClient(opts)

	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(ctx); err != nil {
			redisPublisher.Close()
			return nil, err
		}
		services.Publisher = redisPublisher

		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	if cfg.MetricsAddr != "" {
		services.metrics = serveMetrics(cfg.MetricsAddr)
	}

	return services, nil
}

func retryPolicy(cfg *config.Config) tenderboard.RetryPolicy {
	policy := tenderboard.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.RetryMaxAttempts
	if cfg.RetryInitialBackoff > 0 {
		policy.InitialBackoff = cfg.RetryInitialBackoff
	}
	if cfg.RetryMaxBackoff > 0 {
		policy.MaxBackoff = cfg.RetryMaxBackoff
	}
	return policy
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Metrics server stopped: %v", err)
		}
	}()
	logger.Info("Serving metrics on %s/metrics", addr)
	return srv
}

// Ministries loads the ministry directory once per process
func (s *Services) Ministries(ctx context.Context) ([]tenderboard.Ministry, error) {
	s.ministriesOnce.Do(func() {
		s.ministries, s.ministriesErr = s.Client.LoadMinistries(ctx)
	})
	return s.ministries, s.ministriesErr
}

// Filter builds the listing filter from the defaults, the filter file, the
// prequalification switch and the requested ministry.
func (s *Services) Filter(ctx context.Context) (tenderboard.Filter, error) {
	cfg := s.Config
	filter := tenderboard.DefaultFilter()

	if cfg.FilterFile != "" {
		f, err := tenderboard.LoadFilterFile(cfg.FilterFile, filter)
		if err != nil {
			return filter, scrapeerr.NewConfiguration("invalid filter file", err)
		}
		filter = f
	}
	if cfg.PrequalificationOnly {
		filter.PrequalificationOnly = true
	}

	if cfg.Ministry != "" {
		ministries, err := s.Ministries(ctx)
		if err != nil {
			return filter, err
		}
		m, ok := tenderboard.ResolveMinistry(ministries, cfg.Ministry)
		if !ok {
			return filter, scrapeerr.NewValidation("ministry", fmt.Sprintf("unknown ministry %q", cfg.Ministry))
		}
		filter.Ministry = m.Value
		logger.ForPortal().Info().Str("ministry", m.Name).Str("value", m.Value).Msg("Filtering by ministry")
	}

	return filter, nil
}
