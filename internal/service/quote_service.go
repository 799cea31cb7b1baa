package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/config"
)

const (
	quoteCacheKey      = "task-service:quote"
	quoteUserAgent     = "TaskService/1.0 (+https://example.org)"
	quoteEmptyFallback = "Stay positive and keep coding!"
	quoteErrorFallback = "Keep pushing forward!"
)

// Quoter supplies the motivational line appended to new task descriptions.
type Quoter interface {
	MotivationalQuote(ctx context.Context) string
}

// QuoteCache stores the last fetched quote.
type QuoteCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// NewRedisQuoteCache adapts a go-redis client. A nil client yields a nil cache.
func NewRedisQuoteCache(client *redis.Client) QuoteCache {
	if client == nil {
		return nil
	}
	return redisQuoteCache{client: client}
}

type redisQuoteCache struct {
	client *redis.Client
}

func (c redisQuoteCache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

func (c redisQuoteCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// QuoteService fetches advice from a public API. It never fails; errors
// degrade to a fixed phrase.
type QuoteService struct {
	cfg    config.QuoteConfig
	cache  QuoteCache
	logger *zap.Logger
}

// NewQuoteService builds the service. cache may be nil.
func NewQuoteService(cfg config.QuoteConfig, cache QuoteCache, logger *zap.Logger) *QuoteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuoteService{cfg: cfg, cache: cache, logger: logger}
}

// MotivationalQuote returns a cached quote when available, otherwise fetches one.
func (q *QuoteService) MotivationalQuote(ctx context.Context) string {
	if q.cache != nil {
		cached, err := q.cache.Get(ctx, quoteCacheKey)
		switch {
		case err == nil && cached != "":
			return cached
		case err != nil && !errors.Is(err, redis.Nil):
			q.logger.Warn("quote cache read failed", zap.Error(err))
		}
	}

	quote, ok := q.fetch(ctx)
	if ok && q.cache != nil && q.cfg.CacheTTL() > 0 {
		if err := q.cache.Set(ctx, quoteCacheKey, quote, q.cfg.CacheTTL()); err != nil {
			q.logger.Warn("quote cache write failed", zap.Error(err))
		}
	}
	return quote
}

// fetch reports ok=false when the result is a fallback phrase. The agent
// timeout is capped by the ctx deadline, and a cancelled ctx abandons the call.
func (q *QuoteService) fetch(ctx context.Context) (string, bool) {
	timeout := q.cfg.Timeout()
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			q.logger.Warn("quote request skipped", zap.Error(context.DeadlineExceeded))
			return quoteErrorFallback, false
		}
		if timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		q.logger.Warn("quote request skipped", zap.Error(err))
		return quoteErrorFallback, false
	}

	q.logger.Debug("fetching motivational quote", zap.String("url", q.cfg.APIURL))

	agent := fiber.Get(q.cfg.APIURL)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	agent.UserAgent(quoteUserAgent)
	if timeout > 0 {
		agent.Timeout(timeout)
	}

	type result struct {
		status int
		body   []byte
		errs   []error
	}
	done := make(chan result, 1)
	go func() {
		status, body, errs := agent.Bytes()
		done <- result{status: status, body: body, errs: errs}
	}()

	var res result
	select {
	case <-ctx.Done():
		q.logger.Warn("quote request abandoned", zap.Error(ctx.Err()))
		return quoteErrorFallback, false
	case res = <-done:
	}

	if len(res.errs) > 0 {
		q.logger.Error("quote api request failed", zap.Errors("errors", res.errs))
		return quoteErrorFallback, false
	}
	if res.status >= fiber.StatusBadRequest {
		q.logger.Error("quote api returned error status", zap.Int("status", res.status))
		return quoteErrorFallback, false
	}
	return parseQuote(res.body, q.logger)
}

type adviceResponse struct {
	Slip *struct {
		Advice *string `json:"advice"`
	} `json:"slip"`
	Advice *string `json:"advice"`
}

func parseQuote(body []byte, logger *zap.Logger) (string, bool) {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		logger.Warn("quote api returned empty response")
		return quoteEmptyFallback, false
	}

	var parsed adviceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		logger.Warn("quote api response is not json; using raw body", zap.Error(err))
		return raw, true
	}
	if parsed.Slip != nil && parsed.Slip.Advice != nil {
		return *parsed.Slip.Advice, true
	}
	if parsed.Advice != nil {
		return *parsed.Advice, true
	}
	logger.Warn("quote api json missing advice; using raw body")
	return raw, true
}
