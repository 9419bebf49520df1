package middleware

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== 手动同步冷却中间件 ====================

// SyncCooldown 按资源限制手动触发频率
//
// 使用示例:
//
//	sync.POST("/products", middleware.SyncCooldown(limiter, "products", 30*time.Second), ctl.SyncProducts)
//
// interval 为 0 时不限制
func SyncCooldown(limiter *SyncRateLimiter, resource string, interval time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if interval <= 0 || limiter == nil {
			c.Next()
			return
		}

		key := SyncKey(resource)
		result := limiter.Check(key, interval)
		if !result.Allowed {
			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			c.Header("Retry-After", fmt.Sprint(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"message":     formatRetryMessage(result.RetryAfter),
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()

		// 资源已被占用时不计入冷却
		if c.Writer.Status() == http.StatusConflict {
			limiter.Reset(key)
		}
	}
}

// formatRetryMessage 格式化重试提示信息
func formatRetryMessage(d time.Duration) string {
	seconds := int(math.Ceil(d.Seconds()))

	if seconds < 60 {
		return fmt.Sprintf("同步冷却中，请 %d 秒后重试", seconds)
	}

	minutes := seconds / 60
	remainingSeconds := seconds % 60

	if remainingSeconds == 0 {
		return fmt.Sprintf("同步冷却中，请 %d 分钟后重试", minutes)
	}

	return fmt.Sprintf("同步冷却中，请 %d 分 %d 秒后重试", minutes, remainingSeconds)
}
