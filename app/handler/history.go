package handler

import (
	"net/http"
	"strconv"
	"subtitle-fusion/app/logger"
	"subtitle-fusion/app/service"
	"time"

	"github.com/gin-gonic/gin"
)

// HistoryHandler 下载历史接口
type HistoryHandler struct {
	logger  *logger.Logger
	history *service.HistoryService
}

// NewHistoryHandler 创建历史记录处理器
func NewHistoryHandler(log *logger.Logger, history *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{
		logger:  log,
		history: history,
	}
}

// ListHistory 分页查询下载历史
func (h *HistoryHandler) ListHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, total, err := h.history.List(limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, 500, "查询历史记录失败: "+err.Error())
		return
	}

	respondOK(c, gin.H{"total": total, "records": records}, "success")
}

// CleanupHistory 删除指定天数之前的历史记录
func (h *HistoryHandler) CleanupHistory(c *gin.Context) {
	days, err := strconv.Atoi(c.Query("days"))
	if err != nil || days <= 0 {
		respondError(c, http.StatusBadRequest, 400, "参数 days 必须为正整数")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	removed, err := h.history.CleanupBefore(cutoff)
	if err != nil {
		respondError(c, http.StatusInternalServerError, 500, "清理历史记录失败: "+err.Error())
		return
	}

	respondOK(c, gin.H{"removed": removed}, "清理完成")
}
