package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/image-compressor/internal/models"
	"go.uber.org/zap"
)

// BodySizeLimit rejects requests whose body exceeds maxSize bytes.
func BodySizeLimit(maxSize int64, logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.ContentLength > maxSize {
			logger.Warn("Request body too large",
				zap.Int64("content_length", ctx.Request.ContentLength),
				zap.Int64("max_size", maxSize),
				zap.String("client_ip", ctx.ClientIP()),
				zap.String("path", ctx.Request.URL.Path),
			)
			ctx.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, models.APIResponse{
				Success: false,
				Error:   fmt.Sprintf("Request body too large (max %d bytes)", maxSize),
			})
			return
		}

		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxSize)
		ctx.Next()
	}
}
