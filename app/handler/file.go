package handler

import (
	"net/http"
	"os"
	"sort"
	"subtitle-fusion/app/logger"
	"subtitle-fusion/app/utils/pathhelper"
	"time"

	"github.com/gin-gonic/gin"
)

// FileHandler 下载产物文件接口
type FileHandler struct {
	logger      *logger.Logger
	downloadDir string
}

// NewFileHandler 创建文件处理器
func NewFileHandler(log *logger.Logger, downloadDir string) *FileHandler {
	return &FileHandler{
		logger:      log,
		downloadDir: downloadDir,
	}
}

// DownloadFile 下载指定的产物文件
func (h *FileHandler) DownloadFile(c *gin.Context) {
	filename := c.Param("filename")

	path, err := pathhelper.SafeJoin(h.downloadDir, filename)
	if err != nil {
		respondError(c, http.StatusBadRequest, 400, "非法的文件名: "+filename)
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		respondError(c, http.StatusNotFound, 404, "文件不存在: "+filename)
		return
	}

	c.FileAttachment(path, filename)
}

// FileEntry 产物文件条目
type FileEntry struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ListFiles 列出下载目录中的产物文件，按修改时间倒序
func (h *FileHandler) ListFiles(c *gin.Context) {
	entries, err := os.ReadDir(h.downloadDir)
	if err != nil {
		if os.IsNotExist(err) {
			respondOK(c, gin.H{"total": 0, "files": []FileEntry{}}, "success")
			return
		}
		respondError(c, http.StatusInternalServerError, 500, "读取下载目录失败: "+err.Error())
		return
	}

	files := make([]FileEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileEntry{
			Name:       entry.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].ModifiedAt.After(files[j].ModifiedAt)
	})

	respondOK(c, gin.H{"total": len(files), "files": files}, "success")
}
