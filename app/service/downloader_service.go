package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"subtitle-fusion/app/logger"
	"subtitle-fusion/app/model"
	"subtitle-fusion/app/taskqueue"
	"subtitle-fusion/app/utils/subtitlehelper"
)

// DownloaderService 字幕下载业务，提供在线下载和本地转写两类任务的执行体
type DownloaderService struct {
	logger      *logger.Logger
	extractor   VideoExtractor
	transcriber Transcriber
	thumbnails  ThumbnailMaker

	downloadDir string
	languages   []string // 默认字幕语言
	formats     []string // 默认输出格式
}

// NewDownloaderService 创建下载业务服务
func NewDownloaderService(log *logger.Logger, extractor VideoExtractor, transcriber Transcriber, thumbnails ThumbnailMaker, downloadDir string, languages, formats []string) *DownloaderService {
	if len(languages) == 0 {
		languages = []string{"zh-CN", "en"}
	}
	if len(formats) == 0 {
		formats = []string{"srt", "vtt", "txt"}
	}
	return &DownloaderService{
		logger:      log,
		extractor:   extractor,
		transcriber: transcriber,
		thumbnails:  thumbnails,
		downloadDir: downloadDir,
		languages:   languages,
		formats:     formats,
	}
}

// Register 把任务执行体挂到调度器
func (s *DownloaderService) Register(sched *taskqueue.Scheduler) {
	sched.Register(model.TaskTypeSubtitleDownload, s.RunDownload)
	sched.Register(model.TaskTypeLocalTranscribe, s.RunTranscribe)
}

// RunDownload 在线视频字幕下载执行体：
// 获取视频信息、下载已有字幕，没有字幕时可选用 Whisper 生成，
// 再处理缩略图和可选的视频文件下载。
func (s *DownloaderService) RunDownload(ctx context.Context, task *model.Task, reporter taskqueue.ProgressReporter) (*model.TaskResult, error) {
	if task.Spec == nil || task.Spec.Download == nil {
		return nil, fmt.Errorf("任务缺少下载参数")
	}
	spec := task.Spec.Download

	languages := spec.Languages
	if len(languages) == 0 {
		languages = s.languages
	}
	formats := spec.Formats
	if len(formats) == 0 {
		formats = s.formats
	}

	reporter.Report(10, "正在初始化下载...")
	info, err := s.extractor.GetVideoInfo(ctx, spec.URL)
	if err != nil {
		return nil, fmt.Errorf("获取视频信息失败: %w", err)
	}
	reporter.Report(20, fmt.Sprintf("获取视频信息成功: %s", info.Title))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &model.DownloadResult{
		VideoID: info.ID,
		Title:   info.Title,
	}

	// 下载已有字幕（含自动字幕）。失败不立即终止任务，
	// 后面还有 AI 生成兜底。
	reporter.Report(30, "正在下载已有字幕...")
	existing, dlErr := s.extractor.DownloadSubtitles(ctx, spec.URL, info.ID, s.downloadDir, languages, formats)
	if dlErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warnf("下载已有字幕失败: %s: %v", task.TaskID, dlErr)
	}
	if len(existing) > 0 {
		result.ExistingSubtitles = s.processExistingSubtitles(existing, formats, &result.DownloadPaths)
		reporter.Report(60, fmt.Sprintf("已下载 %d 个字幕文件", len(existing)))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 没有已有字幕时用 Whisper 生成
	if len(result.ExistingSubtitles) == 0 && spec.UseAI {
		if !s.transcriber.Enabled() {
			s.logger.Warnf("任务 %s 请求 AI 字幕但语音识别未启用", task.TaskID)
		} else {
			ai, err := s.generateAISubtitles(ctx, task, reporter, spec.URL, info.ID, languages, formats, &result.DownloadPaths)
			if err != nil {
				return nil, err
			}
			result.AISubtitles = ai
		}
	}

	if len(result.ExistingSubtitles) == 0 && result.AISubtitles == nil {
		if dlErr != nil {
			return nil, fmt.Errorf("下载字幕失败: %w", dlErr)
		}
		return nil, fmt.Errorf("该视频没有可用字幕（可启用 AI 生成）")
	}

	// 缩略图失败不影响任务结果
	reporter.Report(88, "正在获取缩略图...")
	result.Thumbnail = s.fetchThumbnail(ctx, info, &result.DownloadPaths)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if spec.DownloadVideo {
		reporter.Report(90, "正在下载视频文件...")
		videoPath, err := s.extractor.DownloadVideo(ctx, spec.URL, info.ID, s.downloadDir)
		if err != nil {
			return nil, fmt.Errorf("下载视频文件失败: %w", err)
		}
		result.VideoFile = videoPath
		result.DownloadPaths = append(result.DownloadPaths, videoPath)
	}

	reporter.Report(100, "下载完成")
	return &model.TaskResult{Download: result}, nil
}

// processExistingSubtitles 规范字幕编码并按需生成 txt 版本
func (s *DownloaderService) processExistingSubtitles(files map[string]string, formats []string, paths *[]string) map[string]string {
	wantTXT := containsString(formats, "txt")

	out := make(map[string]string, len(files))
	for lang, path := range files {
		// 个别站点字幕是 GBK 或带 BOM 的 UTF-16，统一转成 UTF-8
		if converted, err := subtitlehelper.NormalizeToUTF8(path); err != nil {
			s.logger.Warnf("字幕编码规范失败: %s: %v", path, err)
		} else if converted {
			s.logger.Infof("字幕已转为 UTF-8: %s", filepath.Base(path))
		}

		out[lang] = path
		*paths = append(*paths, path)

		if wantTXT && strings.HasSuffix(path, ".srt") {
			txtPath := strings.TrimSuffix(path, ".srt") + ".txt"
			if err := subtitlehelper.SRTToTXT(path, txtPath); err != nil {
				s.logger.Warnf("生成纯文本字幕失败: %s: %v", path, err)
				continue
			}
			*paths = append(*paths, txtPath)
		}
	}
	return out
}

// generateAISubtitles 提取音频并用 Whisper 生成字幕
func (s *DownloaderService) generateAISubtitles(ctx context.Context, task *model.Task, reporter taskqueue.ProgressReporter, url, videoID string, languages, formats []string, paths *[]string) (*model.AISubtitleResult, error) {
	reporter.Report(65, "未找到已有字幕，正在提取音频...")
	audioPath, err := s.extractor.ExtractAudio(ctx, url, videoID, s.downloadDir)
	if err != nil {
		return nil, fmt.Errorf("提取音频失败: %w", err)
	}
	defer os.Remove(audioPath) // 音频只是转写的中间产物

	reporter.Report(70, "正在进行语音识别，可能需要几分钟...")
	segments, detected, err := s.transcriber.Transcribe(ctx, audioPath, primaryLanguage(languages))
	if err != nil {
		return nil, fmt.Errorf("语音识别失败: %w", err)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("语音识别没有产生任何内容")
	}
	if detected == "" {
		detected = "und"
	}

	reporter.Report(85, "正在生成 AI 字幕文件...")
	written, err := writeSegmentFormats(segments, s.downloadDir, fmt.Sprintf("%s.%s.ai", videoID, detected), formats)
	if err != nil {
		return nil, err
	}
	for _, path := range written {
		*paths = append(*paths, path)
	}

	s.logger.Infof("AI 字幕生成完成: %s, %d 个分段", task.TaskID, len(segments))
	return &model.AISubtitleResult{
		Language: detected,
		Formats:  written,
	}, nil
}

// fetchThumbnail 下载缩略图，失败时退回占位图
func (s *DownloaderService) fetchThumbnail(ctx context.Context, info *model.VideoInfo, paths *[]string) string {
	thumb, err := s.thumbnails.Fetch(ctx, info.Thumbnail, s.downloadDir, info.ID)
	if err != nil {
		if ctx.Err() != nil {
			return ""
		}
		s.logger.Warnf("下载缩略图失败: %s: %v", info.ID, err)
		thumb, err = s.thumbnails.Placeholder(s.downloadDir, info.ID, info.Title)
		if err != nil {
			s.logger.Warnf("生成占位缩略图失败: %s: %v", info.ID, err)
			return ""
		}
	}
	*paths = append(*paths, thumb)
	return thumb
}

// RunTranscribe 本地媒体文件转写执行体
func (s *DownloaderService) RunTranscribe(ctx context.Context, task *model.Task, reporter taskqueue.ProgressReporter) (*model.TaskResult, error) {
	if task.Spec == nil || task.Spec.Transcribe == nil {
		return nil, fmt.Errorf("任务缺少转写参数")
	}
	spec := task.Spec.Transcribe

	if !s.transcriber.Enabled() {
		return nil, ErrTranscriberDisabled
	}
	if _, err := os.Stat(spec.FilePath); err != nil {
		return nil, fmt.Errorf("媒体文件不存在: %s", spec.FilePath)
	}

	formats := spec.Formats
	if len(formats) == 0 {
		formats = s.formats
	}

	reporter.Report(10, "准备转写本地文件...")
	reporter.Report(20, "正在进行语音识别，可能需要几分钟...")
	segments, detected, err := s.transcriber.Transcribe(ctx, spec.FilePath, spec.Language)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("语音识别没有产生任何内容")
	}
	if detected == "" {
		detected = "und"
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 字幕写到媒体文件旁边，播放器可以直接挂载
	reporter.Report(80, "正在生成字幕文件...")
	dir := filepath.Dir(spec.FilePath)
	stem := strings.TrimSuffix(filepath.Base(spec.FilePath), filepath.Ext(spec.FilePath))
	written, err := writeSegmentFormats(segments, dir, fmt.Sprintf("%s.%s", stem, detected), formats)
	if err != nil {
		return nil, err
	}

	reporter.Report(100, "转写完成")
	return &model.TaskResult{
		Transcribe: &model.TranscribeResult{
			SourceFile: spec.FilePath,
			Language:   detected,
			Formats:    written,
		},
	}, nil
}

// writeSegmentFormats 把识别分段写成请求的各种字幕格式，
// 返回 格式 -> 文件路径
func writeSegmentFormats(segments []subtitlehelper.Segment, dir, baseName string, formats []string) (map[string]string, error) {
	written := make(map[string]string)
	for _, format := range formats {
		path := filepath.Join(dir, baseName+"."+format)
		var err error
		switch format {
		case "srt":
			err = subtitlehelper.WriteSRT(segments, path)
		case "vtt":
			err = subtitlehelper.WriteVTT(segments, path)
		case "txt":
			err = subtitlehelper.WriteTXT(segments, path)
		case "json":
			err = subtitlehelper.WriteJSON(segments, path)
		default:
			continue // 不认识的格式跳过
		}
		if err != nil {
			return nil, fmt.Errorf("写字幕文件失败 (%s): %w", format, err)
		}
		written[format] = path
	}
	if len(written) == 0 {
		return nil, fmt.Errorf("没有可输出的字幕格式: %v", formats)
	}
	return written, nil
}

// primaryLanguage 取首个语言作为识别提示，裁掉地区后缀
func primaryLanguage(languages []string) string {
	if len(languages) == 0 {
		return ""
	}
	lang := languages[0]
	if idx := strings.Index(lang, "-"); idx > 0 {
		lang = lang[:idx]
	}
	return lang
}
