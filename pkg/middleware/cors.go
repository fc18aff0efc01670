package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	corsMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsHeaders = "Authorization, Content-Type, " + HeaderRequestID
	corsMaxAge  = "86400"
)

// Origins はクロスオリジンアクセスを許可するオリジンの集合。
// CORSとWebSocketのオリジン検査で同じ設定を共有する。
type Origins struct {
	set      map[string]struct{}
	allowAll bool
}

// NewOrigins は許可リストからOriginsを生成する。"*" を含む場合はすべてのオリジンを許可する。
func NewOrigins(allowed []string) Origins {
	o := Origins{set: make(map[string]struct{}, len(allowed))}
	for _, origin := range allowed {
		if origin == "*" {
			o.allowAll = true
			continue
		}
		o.set[origin] = struct{}{}
	}
	return o
}

// Allows はオリジンが許可されているかを返す。空のオリジンは許可しない。
func (o Origins) Allows(origin string) bool {
	if origin == "" {
		return false
	}
	if o.allowAll {
		return true
	}
	_, ok := o.set[origin]
	return ok
}

// CORS は許可されたオリジンからのクロスオリジンリクエストを受け付けるGinミドルウェアを返す。
// 許可されていないオリジンからのプリフライトは403で拒否する。
func CORS(allowedOrigins []string) gin.HandlerFunc {
	origins := NewOrigins(allowedOrigins)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
			c.Next()
			return
		}

		// 応答がオリジンごとに変わるのでキャッシュに伝える
		c.Header("Vary", "Origin")
		allowed := origins.Allows(origin)
		if allowed {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
		}

		if c.Request.Method == http.MethodOptions {
			if !allowed {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
