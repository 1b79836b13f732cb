package routes

import (
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/image-compressor/internal/config"
	"github.com/phambaophuc/image-compressor/internal/http/handlers"
	"github.com/phambaophuc/image-compressor/internal/http/middleware"
	"go.uber.org/zap"
)

// uploadBodyFactor bounds a request body to this many max-size files plus form overhead.
const uploadBodyFactor = 10

type Router struct {
	imageHandler *handlers.ImageHandler
	logger       *zap.Logger
	config       *config.Config
}

func NewRouter(
	imageHandler *handlers.ImageHandler,
	logger *zap.Logger,
	config *config.Config,
) *Router {
	return &Router{
		imageHandler: imageHandler,
		logger:       logger,
		config:       config,
	}
}

func (r *Router) SetupRoutes() *gin.Engine {
	if !r.config.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(requestid.New())
	router.Use(middleware.Logger(r.logger))
	router.Use(middleware.ErrorHandler(r.logger))
	router.Use(middleware.CORS())
	router.Use(middleware.SecurityHeaders(!r.config.IsDevelopment()))
	// MAX_FILE_SIZE=0 disables the upload limit.
	if r.config.Storage.MaxFileSize > 0 {
		router.Use(middleware.BodySizeLimit(r.config.Storage.MaxFileSize*uploadBodyFactor, r.logger))
	}

	// API version 1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", r.imageHandler.HealthCheck)
		v1.GET("/stats", r.imageHandler.GetStats)

		images := v1.Group("/images")
		{
			images.POST("/compress", middleware.ValidateContentType(), r.imageHandler.CompressImage)
			images.POST("/batch/compress", middleware.ValidateContentType(), r.imageHandler.BatchCompress)
			images.POST("/jobs", r.imageHandler.CreateJob)
			images.GET("/jobs/:id", r.imageHandler.GetJob)
		}

		files := v1.Group("/files")
		{
			files.GET("/*path", r.imageHandler.GetImage)
			files.DELETE("/*path", r.imageHandler.DeleteImage)
		}
	}

	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"status":  "OK",
			"message": "Image compressor is running",
		})
	})

	return router
}
