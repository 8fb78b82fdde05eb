package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/campushub/material-service/middleware"
	"github.com/campushub/material-service/service"
	"github.com/campushub/material-service/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FileHandler serves the fallback-aware endpoints: a 302 to a presigned URL
// when signing works, a proxied byte stream when it does not. The fallback
// is invisible to the client apart from the missing redirect.
type FileHandler struct {
	dispatcher *service.Dispatcher
	logger     *logrus.Logger
}

func NewFileHandler(dispatcher *service.Dispatcher, logger *logrus.Logger) *FileHandler {
	return &FileHandler{dispatcher: dispatcher, logger: logger}
}

// Serve GET /files/serve/:id — inline rendering.
func (h *FileHandler) Serve(c *gin.Context) {
	h.resolve(c, storage.IntentView)
}

// Download GET /files/download/:id — attachment with the display name.
func (h *FileHandler) Download(c *gin.Context) {
	h.resolve(c, storage.IntentDownload)
}

func (h *FileHandler) resolve(c *gin.Context, intent string) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid material id"})
		return
	}
	ttlSeconds, _ := strconv.Atoi(c.DefaultQuery("ttl", "0"))

	result, err := h.dispatcher.Resolve(c.Request.Context(), identity, c.ClientIP(), id, intent, time.Duration(ttlSeconds)*time.Second)
	if err != nil {
		respondError(c, err)
		return
	}

	if result.Redirect != nil {
		// Intermediaries must not cache the redirect past the URL's own TTL.
		c.Header("Cache-Control", "no-store")
		c.Redirect(http.StatusFound, result.Redirect.URL)
		return
	}

	defer result.Stream.Close()
	c.Header("Content-Disposition", result.Disposition)
	// Single-use proxy stream: a short private window only.
	c.Header("Cache-Control", "private, max-age=60")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.ContentType, result.Stream, nil)
}
