package middleware

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/image-compressor/internal/models"
)

// ValidateContentType ensures upload routes receive multipart form data.
// The image type of each part is checked in the handlers.
func ValidateContentType() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		mediaType, _, err := mime.ParseMediaType(ctx.GetHeader("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, models.APIResponse{
				Success: false,
				Error:   "Content-Type must be multipart/form-data",
			})
			return
		}

		ctx.Next()
	}
}
