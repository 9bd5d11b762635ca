package handler

import (
	"errors"
	"net/http"
	"os"
	"strings"
	"subtitle-fusion/app/logger"
	"subtitle-fusion/app/model"
	"subtitle-fusion/app/service"
	"subtitle-fusion/app/taskqueue"

	"github.com/gin-gonic/gin"
)

// TaskHandler 任务相关接口：提交下载、查询、取消、统计
type TaskHandler struct {
	logger      *logger.Logger
	scheduler   *taskqueue.Scheduler
	playlist    *service.PlaylistService
	history     *service.HistoryService
	downloadDir string
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(log *logger.Logger, sched *taskqueue.Scheduler, playlist *service.PlaylistService, history *service.HistoryService, downloadDir string) *TaskHandler {
	return &TaskHandler{
		logger:      log,
		scheduler:   sched,
		playlist:    playlist,
		history:     history,
		downloadDir: downloadDir,
	}
}

// submitError 把调度器错误映射为HTTP响应
func (h *TaskHandler) submitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, taskqueue.ErrQueueFull):
		respondError(c, http.StatusServiceUnavailable, 503, "等待队列已满，请稍后重试")
	case errors.Is(err, taskqueue.ErrSchedulerStopped):
		respondError(c, http.StatusServiceUnavailable, 503, "服务正在停止，不再接受新任务")
	default:
		respondError(c, http.StatusInternalServerError, 500, "提交任务失败: "+err.Error())
	}
}

// DownloadRequest 字幕下载请求
type DownloadRequest struct {
	URL           string   `json:"url" binding:"required"`
	Languages     []string `json:"languages"`
	Formats       []string `json:"formats"`
	UseAI         bool     `json:"use_ai"`
	DownloadVideo bool     `json:"download_video"`
}

// StartDownload 提交字幕下载任务，立即返回任务记录
func (h *TaskHandler) StartDownload(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, 400, "请求参数错误: "+err.Error())
		return
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		respondError(c, http.StatusBadRequest, 400, "无效的视频地址: "+req.URL)
		return
	}

	task, err := h.scheduler.Submit(model.TaskTypeSubtitleDownload, &model.TaskSpec{
		Download: &model.DownloadSpec{
			URL:           req.URL,
			Languages:     req.Languages,
			Formats:       req.Formats,
			UseAI:         req.UseAI,
			DownloadVideo: req.DownloadVideo,
		},
	})
	if err != nil {
		h.submitError(c, err)
		return
	}

	respondOK(c, task, "任务已提交")
}

// PlaylistRequest 播放列表批量下载请求
type PlaylistRequest struct {
	URL       string   `json:"url" binding:"required"`
	Languages []string `json:"languages"`
	Formats   []string `json:"formats"`
	UseAI     bool     `json:"use_ai"`
	MaxVideos int      `json:"max_videos"` // 0 表示全部
}

// PlaylistTaskItem 播放列表中单个视频的提交结果
type PlaylistTaskItem struct {
	VideoID string `json:"video_id"`
	Title   string `json:"title"`
	TaskID  string `json:"task_id"`
}

// StartPlaylist 解析播放列表并为每个视频提交下载任务
func (h *TaskHandler) StartPlaylist(c *gin.Context) {
	var req PlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, 400, "请求参数错误: "+err.Error())
		return
	}

	videos, err := h.playlist.Resolve(c.Request.Context(), req.URL)
	if err != nil {
		respondError(c, http.StatusBadRequest, 400, "解析播放列表失败: "+err.Error())
		return
	}
	if req.MaxVideos > 0 && len(videos) > req.MaxVideos {
		videos = videos[:req.MaxVideos]
	}

	items := make([]PlaylistTaskItem, 0, len(videos))
	for _, video := range videos {
		task, err := h.scheduler.Submit(model.TaskTypeSubtitleDownload, &model.TaskSpec{
			Download: &model.DownloadSpec{
				URL:       video.URL,
				Languages: req.Languages,
				Formats:   req.Formats,
				UseAI:     req.UseAI,
			},
		})
		if err != nil {
			// 队列装不下剩余视频时返回已提交的部分
			h.logger.Warnf("播放列表提交中断: 已提交 %d/%d, %v", len(items), len(videos), err)
			c.JSON(http.StatusServiceUnavailable, ApiResponse{
				Code:    503,
				Message: "部分任务提交失败: " + err.Error(),
				Data:    gin.H{"total": len(videos), "submitted": items},
			})
			return
		}
		items = append(items, PlaylistTaskItem{
			VideoID: video.VideoID,
			Title:   video.Title,
			TaskID:  task.TaskID,
		})
	}

	respondOK(c, gin.H{"total": len(items), "tasks": items}, "播放列表任务已提交")
}

// TranscribeRequest 本地文件转写请求
type TranscribeRequest struct {
	FilePath string   `json:"file_path" binding:"required"`
	Language string   `json:"language"`
	Formats  []string `json:"formats"`
}

// StartTranscribe 提交本地媒体文件转写任务
func (h *TaskHandler) StartTranscribe(c *gin.Context) {
	var req TranscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, 400, "请求参数错误: "+err.Error())
		return
	}
	if _, err := os.Stat(req.FilePath); err != nil {
		respondError(c, http.StatusBadRequest, 400, "媒体文件不存在: "+req.FilePath)
		return
	}

	task, err := h.scheduler.Submit(model.TaskTypeLocalTranscribe, &model.TaskSpec{
		Transcribe: &model.TranscribeSpec{
			FilePath: req.FilePath,
			Language: req.Language,
			Formats:  req.Formats,
		},
	})
	if err != nil {
		h.submitError(c, err)
		return
	}

	respondOK(c, task, "转写任务已提交")
}

// GetTask 查询单个任务
func (h *TaskHandler) GetTask(c *gin.Context) {
	taskID := c.Param("id")
	task, err := h.scheduler.Get(taskID)
	if err != nil {
		respondError(c, http.StatusNotFound, 404, "任务不存在: "+taskID)
		return
	}
	respondOK(c, task, "success")
}

// CancelTask 取消任务。对已结束的任务幂等，返回当前状态
func (h *TaskHandler) CancelTask(c *gin.Context) {
	taskID := c.Param("id")
	task, err := h.scheduler.Cancel(taskID)
	if err != nil {
		respondError(c, http.StatusNotFound, 404, "任务不存在: "+taskID)
		return
	}
	respondOK(c, task, "取消请求已处理")
}

// ListTasks 按创建顺序列出任务，支持 status 过滤
func (h *TaskHandler) ListTasks(c *gin.Context) {
	var statuses []model.TaskStatus
	if raw := c.Query("status"); raw != "" {
		status, ok := model.ParseTaskStatus(raw)
		if !ok {
			respondError(c, http.StatusBadRequest, 400, "无效的任务状态: "+raw)
			return
		}
		statuses = append(statuses, status)
	}

	tasks := h.scheduler.List(statuses...)
	respondOK(c, gin.H{"total": len(tasks), "tasks": tasks}, "success")
}

// GetStats 返回任务统计、产物文件数和历史记录数
func (h *TaskHandler) GetStats(c *gin.Context) {
	stats := h.scheduler.Stats()

	fileCount := 0
	if entries, err := os.ReadDir(h.downloadDir); err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				fileCount++
			}
		}
	}

	var historyCount int64
	if h.history != nil {
		if n, err := h.history.Count(); err == nil {
			historyCount = n
		}
	}

	respondOK(c, gin.H{
		"tasks":           stats,
		"download_files":  fileCount,
		"history_records": historyCount,
	}, "success")
}
