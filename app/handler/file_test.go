package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"subtitle-fusion/app/logger"

	"github.com/gin-gonic/gin"
)

// newFileRouter 组装产物文件路由
func newFileRouter(downloadDir string) *gin.Engine {
	h := NewFileHandler(logger.NewNop(), downloadDir)

	router := gin.New()
	api := router.Group("/api")
	api.GET("/download/file/:filename", h.DownloadFile)
	api.GET("/files", h.ListFiles)
	return router
}

func TestDownloadFile(t *testing.T) {
	downloadDir := t.TempDir()
	content := "1\n00:00:01,000 --> 00:00:02,000\n你好\n"
	if err := os.WriteFile(filepath.Join(downloadDir, "视频.zh.srt"), []byte(content), 0644); err != nil {
		t.Fatalf("写字幕文件失败: %v", err)
	}

	router := newFileRouter(downloadDir)

	req := httptest.NewRequest(http.MethodGet, "/api/download/file/视频.zh.srt", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("下载状态码 = %d, 响应: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != content {
		t.Errorf("下载内容不匹配: %q", w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Content-Disposition = %q, 期望 attachment", cd)
	}
}

func TestDownloadFileNotFound(t *testing.T) {
	router := newFileRouter(t.TempDir())

	w, _ := doJSON(t, router, http.MethodGet, "/api/download/file/missing.srt", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("缺失文件状态码 = %d, 期望 404", w.Code)
	}
}

func TestDownloadFileNeverEscapesRoot(t *testing.T) {
	// secret.txt 放在下载目录的上级，穿越尝试不能读到它
	parent := t.TempDir()
	downloadDir := filepath.Join(parent, "downloads")
	if err := os.MkdirAll(downloadDir, 0755); err != nil {
		t.Fatalf("创建下载目录失败: %v", err)
	}
	const secret = "top-secret"
	if err := os.WriteFile(filepath.Join(parent, "secret.txt"), []byte(secret), 0644); err != nil {
		t.Fatalf("写文件失败: %v", err)
	}

	router := newFileRouter(downloadDir)

	for _, name := range []string{"..%2Fsecret.txt", "..", "%2e%2e%2fsecret.txt"} {
		req := httptest.NewRequest(http.MethodGet, "/api/download/file/"+name, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code == http.StatusOK && strings.Contains(w.Body.String(), secret) {
			t.Errorf("穿越路径 %q 读到了目录外文件", name)
		}
	}
}

func TestListFiles(t *testing.T) {
	downloadDir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"old.srt", "mid.vtt", "new.txt"} {
		path := filepath.Join(downloadDir, name)
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatalf("写文件失败: %v", err)
		}
		mtime := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatalf("设置修改时间失败: %v", err)
		}
	}
	// 子目录不计入
	if err := os.MkdirAll(filepath.Join(downloadDir, "sub"), 0755); err != nil {
		t.Fatalf("创建子目录失败: %v", err)
	}

	router := newFileRouter(downloadDir)

	w, resp := doJSON(t, router, http.MethodGet, "/api/files", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("列表状态码 = %d", w.Code)
	}
	if total, _ := dataField(t, resp, "total").(float64); total != 3 {
		t.Fatalf("文件数 = %v, 期望 3", dataField(t, resp, "total"))
	}

	files, ok := dataField(t, resp, "files").([]any)
	if !ok || len(files) != 3 {
		t.Fatalf("files 字段异常: %v", dataField(t, resp, "files"))
	}
	first, _ := files[0].(map[string]any)
	if first["name"] != "new.txt" {
		t.Errorf("最新文件 = %v, 期望 new.txt（按修改时间倒序）", first["name"])
	}
}

func TestListFilesMissingDir(t *testing.T) {
	router := newFileRouter(filepath.Join(t.TempDir(), "not-created"))

	w, resp := doJSON(t, router, http.MethodGet, "/api/files", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("目录缺失时状态码 = %d, 期望 200", w.Code)
	}
	if total, _ := dataField(t, resp, "total").(float64); total != 0 {
		t.Errorf("文件数 = %v, 期望 0", dataField(t, resp, "total"))
	}
}
