package router

import (
	"net/http"

	"github.com/campushub/material-service/auth"
	"github.com/campushub/material-service/handler"
	"github.com/campushub/material-service/middleware"
	ginmetrics "github.com/campushub/material-service/pkg/metrics/gin"
	"github.com/gin-gonic/gin"
)

func Setup(validator auth.TokenValidator, materials *handler.MaterialHandler, files *handler.FileHandler) *gin.Engine {
	r := gin.Default()
	r.Use(ginmetrics.PrometheusMiddleware("material-service"))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api", middleware.TokenAuth(validator, false))
	{
		api.POST("/materials/upload-url", materials.CreateUploadURL)
		api.POST("/materials/confirm", materials.Confirm)
		api.GET("/materials", materials.List)
		api.GET("/materials/:id", materials.Get)
		api.PATCH("/materials/:id", materials.Update)
		api.DELETE("/materials/:id", materials.Delete)
		api.GET("/materials/:id/download-url", materials.DownloadURL)
		api.GET("/materials/:id/access-log", materials.AccessLog)
	}

	// File endpoints also accept ?token= for clients that cannot set
	// headers (direct browser navigation).
	serve := r.Group("/files", middleware.TokenAuth(validator, true))
	{
		serve.GET("/serve/:id", files.Serve)
		serve.GET("/download/:id", files.Download)
	}

	return r
}
