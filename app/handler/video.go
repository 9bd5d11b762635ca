package handler

import (
	"net/http"
	"strings"
	"subtitle-fusion/app/logger"
	"subtitle-fusion/app/service"

	"github.com/gin-gonic/gin"
)

// VideoHandler 视频信息接口
type VideoHandler struct {
	logger    *logger.Logger
	extractor service.VideoExtractor
}

// NewVideoHandler 创建视频信息处理器
func NewVideoHandler(log *logger.Logger, extractor service.VideoExtractor) *VideoHandler {
	return &VideoHandler{
		logger:    log,
		extractor: extractor,
	}
}

// VideoInfoRequest 视频信息查询请求
type VideoInfoRequest struct {
	URL string `json:"url" binding:"required"`
}

// GetVideoInfo 获取视频信息，不提交下载任务
func (h *VideoHandler) GetVideoInfo(c *gin.Context) {
	var req VideoInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, 400, "请求参数错误: "+err.Error())
		return
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		respondError(c, http.StatusBadRequest, 400, "无效的视频地址: "+req.URL)
		return
	}

	info, err := h.extractor.GetVideoInfo(c.Request.Context(), req.URL)
	if err != nil {
		respondError(c, http.StatusInternalServerError, 500, "获取视频信息失败: "+err.Error())
		return
	}

	respondOK(c, info, "success")
}

// GetSupportedSites 获取支持的站点列表
func (h *VideoHandler) GetSupportedSites(c *gin.Context) {
	sites, err := h.extractor.SupportedSites(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, 500, "获取站点列表失败: "+err.Error())
		return
	}

	respondOK(c, gin.H{"total": len(sites), "sites": sites}, "success")
}
