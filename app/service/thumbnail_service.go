package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"subtitle-fusion/app/logger"
	"subtitle-fusion/app/utils/downloader"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
	_ "golang.org/x/image/webp" // YouTube 缩略图多为 webp
)

// thumbnailMaxBytes 缩略图下载大小上限
const thumbnailMaxBytes = 10 << 20

// ThumbnailService 视频缩略图处理服务
type ThumbnailService struct {
	logger *logger.Logger
	width  int
}

// NewThumbnailService 创建缩略图服务，width 为缩放后的宽度
func NewThumbnailService(log *logger.Logger, width int) *ThumbnailService {
	if width <= 0 {
		width = 320
	}
	return &ThumbnailService{
		logger: log,
		width:  width,
	}
}

// Fetch 下载远程缩略图，等比缩放后保存为 jpg，返回本地路径
func (s *ThumbnailService) Fetch(ctx context.Context, thumbnailURL, outputDir, baseName string) (string, error) {
	if thumbnailURL == "" {
		return "", fmt.Errorf("缩略图地址为空")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	tmpPath := filepath.Join(outputDir, baseName+".thumb.download")
	defer os.Remove(tmpPath)

	cfg := downloader.DefaultDownloadConfig()
	cfg.OverwriteFile = true
	cfg.Timeout = time.Minute
	cfg.MaxSize = thumbnailMaxBytes
	if _, err := downloader.DownloadFromURL(ctx, thumbnailURL, tmpPath, cfg); err != nil {
		return "", fmt.Errorf("下载缩略图失败: %w", err)
	}

	// image.Decode 按已注册的解码器识别格式（含 webp）
	img, err := imaging.Open(tmpPath)
	if err != nil {
		return "", fmt.Errorf("解码缩略图失败: %w", err)
	}

	resized := imaging.Resize(img, s.width, 0, imaging.Lanczos)
	outPath := filepath.Join(outputDir, baseName+".jpg")
	if err := imaging.Save(resized, outPath, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("保存缩略图失败: %w", err)
	}

	s.logger.Debugf("缩略图已保存: %s", outPath)
	return outPath, nil
}

// Placeholder 生成占位缩略图，用于没有封面的视频
func (s *ThumbnailService) Placeholder(outputDir, baseName, title string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	width := s.width
	height := width * 9 / 16

	dc := gg.NewContext(width, height)
	dc.SetRGB(0.12, 0.13, 0.18)
	dc.Clear()

	// 中央播放图标
	cx, cy := float64(width)/2, float64(height)/2
	radius := float64(height) / 5
	dc.SetRGB(0.25, 0.27, 0.35)
	dc.DrawCircle(cx, cy, radius)
	dc.Fill()
	dc.SetRGB(0.85, 0.86, 0.9)
	dc.MoveTo(cx-radius/3, cy-radius/2)
	dc.LineTo(cx-radius/3, cy+radius/2)
	dc.LineTo(cx+radius/2, cy)
	dc.ClosePath()
	dc.Fill()

	// 底部标题，仅 ASCII 字形可渲染，超出部分截断
	label := strings.TrimSpace(title)
	if label == "" {
		label = baseName
	}
	if runes := []rune(label); len(runes) > 40 {
		label = string(runes[:40])
	}
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetRGB(0.7, 0.72, 0.78)
	dc.DrawStringAnchored(label, cx, float64(height)-14, 0.5, 0.5)

	outPath := filepath.Join(outputDir, baseName+".jpg")
	if err := imaging.Save(dc.Image(), outPath, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("保存占位缩略图失败: %w", err)
	}
	return outPath, nil
}
