package service

import (
	"context"
	"subtitle-fusion/app/model"
	"subtitle-fusion/app/utils/subtitlehelper"
)

// VideoExtractor 视频信息与字幕提取接口
type VideoExtractor interface {
	// GetVideoInfo 获取视频基本信息（标题、时长、可用字幕等）
	GetVideoInfo(ctx context.Context, url string) (*model.VideoInfo, error)
	// DownloadSubtitles 下载已有字幕，返回 语言 -> 文件路径
	DownloadSubtitles(ctx context.Context, url, videoID, outputDir string, languages, formats []string) (map[string]string, error)
	// ExtractAudio 提取音频到 mp3，供语音识别使用
	ExtractAudio(ctx context.Context, url, videoID, outputDir string) (string, error)
	// DownloadVideo 下载视频文件
	DownloadVideo(ctx context.Context, url, videoID, outputDir string) (string, error)
	// SupportedSites 返回支持的站点列表
	SupportedSites(ctx context.Context) ([]string, error)
}

// Transcriber 语音识别接口
type Transcriber interface {
	// Enabled 是否可用（未安装 whisper 时返回 false）
	Enabled() bool
	// Transcribe 识别音频文件，返回分段结果
	Transcribe(ctx context.Context, audioPath, language string) ([]subtitlehelper.Segment, string, error)
}

// ThumbnailMaker 缩略图生成接口
type ThumbnailMaker interface {
	// Fetch 下载远程缩略图并缩放保存，返回本地路径
	Fetch(ctx context.Context, thumbnailURL, outputDir, baseName string) (string, error)
	// Placeholder 生成占位缩略图（无封面时使用）
	Placeholder(outputDir, baseName, title string) (string, error)
}

// HistoryRecorder 下载历史记录接口
type HistoryRecorder interface {
	// Record 记录一次任务的最终结果
	Record(task *model.Task) error
}
