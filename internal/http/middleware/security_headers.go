package middleware

import "github.com/gin-gonic/gin"

// SecurityHeaders adds security headers. HSTS is only sent when hsts is set,
// so plain-HTTP development servers stay reachable.
func SecurityHeaders(hsts bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Header("X-Frame-Options", "DENY")
		ctx.Header("X-Content-Type-Options", "nosniff")
		ctx.Header("Referrer-Policy", "no-referrer")
		ctx.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		if hsts {
			ctx.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		ctx.Next()
	}
}
