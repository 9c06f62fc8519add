package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"casecite-backend/models"
	"casecite-backend/observability"
	"casecite-backend/ratelimit"
	"casecite-backend/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const clientContextKey = "api_client"

// APIClientStore looks up API clients by key prefix
type APIClientStore interface {
	GetByKeyPrefix(ctx context.Context, prefix string) (*models.APIClient, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID) error
}

// SplitAPIKey splits "prefix.secret". Both halves must be present.
func SplitAPIKey(key string) (prefix, secret string, ok bool) {
	prefix, secret, found := strings.Cut(strings.TrimSpace(key), ".")
	if !found || prefix == "" || secret == "" {
		return "", "", false
	}
	return prefix, secret, true
}

func apiKeyFromRequest(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	auth := c.GetHeader("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// APIKeyAuth authenticates requests with a client API key
func APIKeyAuth(store APIClientStore, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		prefix, secret, ok := SplitAPIKey(apiKeyFromRequest(c))
		if !ok {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "A valid API key is required")
			return
		}

		client, err := store.GetByKeyPrefix(c.Request.Context(), prefix)
		if err != nil {
			if !errors.Is(err, repository.ErrAPIClientNotFound) {
				logger.Error("Failed to look up API client", zap.Error(err))
			}
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "A valid API key is required")
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(client.KeyHash), []byte(secret)) != nil {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "A valid API key is required")
			return
		}
		if client.Disabled {
			respondError(c, http.StatusForbidden, "CLIENT_DISABLED", "API client is disabled")
			return
		}

		if err := store.TouchLastUsed(c.Request.Context(), client.ID); err != nil {
			logger.Warn("Failed to update API client last use", zap.String("client", client.Name), zap.Error(err))
		}
		c.Set(clientContextKey, client)
		c.Next()
	}
}

// ClientFromContext returns the authenticated client, if any
func ClientFromContext(c *gin.Context) (*models.APIClient, bool) {
	v, ok := c.Get(clientContextKey)
	if !ok {
		return nil, false
	}
	client, ok := v.(*models.APIClient)
	return client, ok && client != nil
}

// RateLimit enforces per-client request limits. Anonymous callers are
// keyed by IP and get the default limit.
func RateLimit(limiter *ratelimit.Limiter, defaultLimit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		limit := defaultLimit
		if client, ok := ClientFromContext(c); ok {
			key = "client:" + client.ID.String()
			if client.RateLimitPerMin > 0 {
				limit = client.RateLimitPerMin
			}
		}

		retryAfter, err := limiter.Check(c.Request.Context(), key, limit)
		if errors.Is(err, ratelimit.ErrLimitExceeded) {
			observability.RecordRateLimited("client")
			c.Header("Retry-After", strconv.Itoa(int(retryAfter/time.Second)))
			respondError(c, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}
		c.Next()
	}
}

// RequestLogger logs each request with zap
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
