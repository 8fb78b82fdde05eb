package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/campushub/material-service/auth"
	"github.com/campushub/material-service/middleware"
	"github.com/campushub/material-service/repository"
	"github.com/campushub/material-service/service"
	"github.com/campushub/material-service/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type MaterialHandler struct {
	materials  service.MaterialService
	dispatcher *service.Dispatcher
	accessLog  repository.AccessRecordRepository
	logger     *logrus.Logger
}

func NewMaterialHandler(materials service.MaterialService, dispatcher *service.Dispatcher, accessLog repository.AccessRecordRepository, logger *logrus.Logger) *MaterialHandler {
	return &MaterialHandler{
		materials:  materials,
		dispatcher: dispatcher,
		accessLog:  accessLog,
		logger:     logger,
	}
}

// CreateUploadURL 申请上传位
// POST /api/materials/upload-url
func (h *MaterialHandler) CreateUploadURL(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req struct {
		ContentType string `json:"content_type" binding:"required"`
		DisplayName string `json:"display_name" binding:"required"`
		Visibility  string `json:"visibility" binding:"required"`
		TTLSeconds  int    `json:"ttl_seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	material, grant, err := h.materials.Reserve(c.Request.Context(), identity, c.ClientIP(), service.ReserveRequest{
		ContentType: req.ContentType,
		DisplayName: req.DisplayName,
		Visibility:  req.Visibility,
		TTL:         time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		h.logger.WithError(err).Warn("upload slot request failed")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"material_id": material.ID,
		"object_key":  material.ObjectKey,
		"bucket":      grant.Bucket,
		"upload_url":  grant.URL,
		"expires_at":  grant.ExpiresAt,
	})
}

// Confirm 确认上传完成
// POST /api/materials/confirm
func (h *MaterialHandler) Confirm(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req struct {
		MaterialID  string  `json:"material_id" binding:"required"`
		DisplayName *string `json:"display_name"`
		Description *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := uuid.Parse(req.MaterialID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid material_id"})
		return
	}

	material, err := h.materials.Confirm(c.Request.Context(), identity, c.ClientIP(), id, service.MetadataUpdate{
		DisplayName: req.DisplayName,
		Description: req.Description,
	})
	if err != nil {
		h.logger.WithField("material_id", id).WithError(err).Info("confirmation failed")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": material})
}

// List 列出当前用户的材料
// GET /api/materials?page=1&page_size=10
func (h *MaterialHandler) List(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	materials, total, err := h.materials.ListByOwner(c.Request.Context(), identity, int32(page), int32(pageSize))
	if err != nil {
		h.logger.WithError(err).Error("list materials failed")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"materials": materials,
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		},
	})
}

// Get 获取单个材料
// GET /api/materials/:id
func (h *MaterialHandler) Get(c *gin.Context) {
	identity, id, ok := h.identityAndID(c)
	if !ok {
		return
	}
	material, err := h.materials.GetByID(c.Request.Context(), identity, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": material})
}

// Update 更新元数据
// PATCH /api/materials/:id
func (h *MaterialHandler) Update(c *gin.Context) {
	identity, id, ok := h.identityAndID(c)
	if !ok {
		return
	}

	var req struct {
		DisplayName *string `json:"display_name"`
		Description *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	material, err := h.materials.UpdateMetadata(c.Request.Context(), identity, id, service.MetadataUpdate{
		DisplayName: req.DisplayName,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": material})
}

// Delete 删除材料（先删对象，再删记录）
// DELETE /api/materials/:id
func (h *MaterialHandler) Delete(c *gin.Context) {
	identity, id, ok := h.identityAndID(c)
	if !ok {
		return
	}
	if err := h.materials.Delete(c.Request.Context(), identity, c.ClientIP(), id); err != nil {
		h.logger.WithField("material_id", id).WithError(err).Warn("delete failed")
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DownloadURL 生成下载链接
// GET /api/materials/:id/download-url?intent=view|download&ttl=300
func (h *MaterialHandler) DownloadURL(c *gin.Context) {
	identity, id, ok := h.identityAndID(c)
	if !ok {
		return
	}
	intent := c.DefaultQuery("intent", storage.IntentView)
	if intent != storage.IntentView && intent != storage.IntentDownload {
		c.JSON(http.StatusBadRequest, gin.H{"error": "intent must be view or download"})
		return
	}
	ttlSeconds, _ := strconv.Atoi(c.DefaultQuery("ttl", "0"))

	grant, err := h.dispatcher.DownloadURL(c.Request.Context(), identity, c.ClientIP(), id, intent, time.Duration(ttlSeconds)*time.Second)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"url":        grant.URL,
		"expires_at": grant.ExpiresAt,
	})
}

// AccessLog 查看访问记录（仅所有者/管理员）
// GET /api/materials/:id/access-log
func (h *MaterialHandler) AccessLog(c *gin.Context) {
	identity, id, ok := h.identityAndID(c)
	if !ok {
		return
	}
	// GetByID applies the ownership gate for pending records; the log itself
	// is owner/admin only.
	material, err := h.materials.GetByID(c.Request.Context(), identity, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !identity.Admin && identity.Subject != material.OwnerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit < 1 || limit > 500 {
		limit = 100
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	records, err := h.accessLog.ListByMaterial(id, limit, offset)
	if err != nil {
		h.logger.WithError(err).Error("access log query failed")
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": records})
}

func (h *MaterialHandler) identityAndID(c *gin.Context) (auth.Identity, uuid.UUID, bool) {
	identity, exists := middleware.IdentityFrom(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return auth.Identity{}, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid material id"})
		return auth.Identity{}, uuid.Nil, false
	}
	return identity, id, true
}
