package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SearchObserver 接收每次搜索的结果状态
type SearchObserver interface {
	ObserveSearch(provider, status string, duration time.Duration)
}

// GatewayConfig 网关配置
type GatewayConfig struct {
	ResultCount int           `yaml:"result_count" env:"RESULT_COUNT"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
	RatePerSec  float64       `yaml:"rate_per_sec" env:"RATE_PER_SEC"` // 0 表示不限流
	Burst       int           `yaml:"burst" env:"BURST"`
	CacheTTL    time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"` // 配置缓存时生效
}

// ResultCache 查询结果缓存，由 internal/cache.Manager 实现
type ResultCache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// DefaultGatewayConfig returns sensible defaults.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		ResultCount: 5,
		Timeout:     15 * time.Second,
		RatePerSec:  1,
		Burst:       3,
		CacheTTL:    10 * time.Minute,
	}
}

// Gateway 搜索网关，永不向调用方返回错误
type Gateway struct {
	provider WebSearchProvider
	cfg      GatewayConfig
	limiter  *rate.Limiter
	cache    ResultCache
	observer SearchObserver
	logger   *zap.Logger
}

// NewGateway 创建网关；observer 可为 nil
func NewGateway(provider WebSearchProvider, cfg GatewayConfig, observer SearchObserver, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultCount <= 0 {
		cfg.ResultCount = 5
	}
	g := &Gateway{
		provider: provider,
		cfg:      cfg,
		observer: observer,
		logger:   logger.With(zap.String("component", "search_gateway")),
	}
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return g
}

// WithCache 启用结果缓存；缓存故障只记录日志
func (g *Gateway) WithCache(c ResultCache) *Gateway {
	g.cache = c
	return g
}

func (g *Gateway) cacheKey(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(query) + "|" + strconv.Itoa(g.cfg.ResultCount)))
	return "search:" + hex.EncodeToString(sum[:12])
}

// Search 单次尝试，失败返回 nil
func (g *Gateway) Search(ctx context.Context, query, apiKey string) (results []WebSearchResult) {
	start := time.Now()
	status := "success"
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("search provider panicked", zap.Any("panic", r))
			status = "panic"
			results = nil
		}
		if g.observer != nil && g.provider != nil {
			g.observer.ObserveSearch(g.provider.Name(), status, time.Since(start))
		}
	}()

	query = strings.TrimSpace(query)
	switch {
	case g.provider == nil:
		status = "unconfigured"
		return nil
	case query == "":
		status = "empty_query"
		return nil
	case strings.TrimSpace(apiKey) == "":
		status = "missing_key"
		return nil
	}

	if g.cache != nil {
		var cached []WebSearchResult
		if err := g.cache.GetJSON(ctx, g.cacheKey(query), &cached); err == nil && len(cached) > 0 {
			status = "cache_hit"
			return cached
		}
	}

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			status = "rate_limited"
			g.logger.Warn("search rate limit wait aborted", zap.Error(err))
			return nil
		}
	}

	res, err := g.provider.Search(ctx, query, WebSearchOptions{APIKey: apiKey, MaxResults: g.cfg.ResultCount})
	if err != nil {
		status = "error"
		g.logger.Warn("search failed", zap.String("provider", g.provider.Name()), zap.Error(err))
		return nil
	}
	g.logger.Debug("search completed", zap.String("query", query), zap.Int("results", len(res)))
	if g.cache != nil && len(res) > 0 {
		if err := g.cache.SetJSON(ctx, g.cacheKey(query), res, g.cfg.CacheTTL); err != nil {
			g.logger.Warn("search cache write failed", zap.Error(err))
		}
	}
	return res
}
