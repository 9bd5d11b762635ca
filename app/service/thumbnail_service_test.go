package service

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"subtitle-fusion/app/logger"
	"testing"

	"github.com/disintegration/imaging"
)

func TestThumbnailFetch(t *testing.T) {
	// 源图 640x360，期望缩放到 320x180
	src := imaging.New(640, 360, image.White.C)
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())
	}))
	defer server.Close()

	s := NewThumbnailService(logger.NewNop(), 320)
	outputDir := t.TempDir()

	path, err := s.Fetch(context.Background(), server.URL, outputDir, "vid123")
	if err != nil {
		t.Fatalf("Fetch 失败: %v", err)
	}
	if path != filepath.Join(outputDir, "vid123.jpg") {
		t.Errorf("输出路径 = %s", path)
	}

	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("打开缩略图失败: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 320 || bounds.Dy() != 180 {
		t.Errorf("缩略图尺寸 = %dx%d, 期望 320x180", bounds.Dx(), bounds.Dy())
	}
}

func TestThumbnailFetchEmptyURL(t *testing.T) {
	s := NewThumbnailService(logger.NewNop(), 320)
	if _, err := s.Fetch(context.Background(), "", t.TempDir(), "vid123"); err == nil {
		t.Fatal("空地址应当失败")
	}
}

func TestThumbnailFetchNotAnImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not an image</html>"))
	}))
	defer server.Close()

	s := NewThumbnailService(logger.NewNop(), 320)
	if _, err := s.Fetch(context.Background(), server.URL, t.TempDir(), "vid123"); err == nil {
		t.Fatal("非图片内容应当解码失败")
	}
}

func TestThumbnailPlaceholder(t *testing.T) {
	s := NewThumbnailService(logger.NewNop(), 320)
	outputDir := t.TempDir()

	path, err := s.Placeholder(outputDir, "vid123", "A Test Video")
	if err != nil {
		t.Fatalf("Placeholder 失败: %v", err)
	}

	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("打开占位图失败: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 320 || bounds.Dy() != 180 {
		t.Errorf("占位图尺寸 = %dx%d, 期望 320x180", bounds.Dx(), bounds.Dy())
	}
}

func TestThumbnailWidthDefault(t *testing.T) {
	s := NewThumbnailService(logger.NewNop(), 0)
	if s.width != 320 {
		t.Errorf("默认宽度 = %d, 期望 320", s.width)
	}
}
