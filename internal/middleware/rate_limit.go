package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"velora_back_end/internal/database"

	"github.com/gin-gonic/gin"
)

const (
	APIMaxRequests = 100 // Par minute et par IP
	APICooldown    = 1 * time.Minute

	PaymentMaxAttempts = 10 // Par minute et par session
	PaymentCooldown    = 1 * time.Minute
)

// APIRateLimit limite le nombre de requêtes par IP (général)
func APIRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()
		ip := c.ClientIP()
		key := "api_requests:" + ip

		requests, _ := database.Redis.Get(ctx, key).Int()
		if requests >= APIMaxRequests {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Trop de requêtes. Réessayez dans 1 minute",
				"retry_after": 60,
			})
			c.Abort()
			return
		}

		pipe := database.Redis.Pipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, APICooldown)
		pipe.Exec(ctx)

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", APIMaxRequests))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", APIMaxRequests-requests-1))

		c.Next()
	}
}

// PaymentRateLimit limite les tentatives de paiement par session (anti-spam
// sur les providers externes). L'identité est le user_id connecté, sinon
// l'id de session invité, sinon l'IP.
func PaymentRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.GetString("user_id")
		if identity == "" {
			identity = c.GetHeader("X-Session-ID")
		}
		if identity == "" {
			identity = c.ClientIP()
		}

		ctx := context.Background()
		key := "payment_attempts:" + identity

		attempts, _ := database.Redis.Get(ctx, key).Int()
		if attempts >= PaymentMaxAttempts {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Trop de tentatives de paiement. Réessayez dans 1 minute",
				"retry_after": 60,
			})
			c.Abort()
			return
		}

		pipe := database.Redis.Pipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, PaymentCooldown)
		pipe.Exec(ctx)

		c.Next()
	}
}
