package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"subtitle-fusion/app/logger"
	"subtitle-fusion/app/model"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// userAgents UA池，请求时轮换，降低被风控的概率
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:109.0) Gecko/20100101 Firefox/121.0",
}

// ExtractorConfig 提取器配置
type ExtractorConfig struct {
	Binary     string        // yt-dlp 可执行文件路径
	MaxRetries int           // 最大重试次数
	RetryDelay time.Duration // 重试基础延迟
	CacheTTL   time.Duration // 视频信息缓存时间
}

// ExtractorService 基于 yt-dlp 的视频信息与字幕提取服务
type ExtractorService struct {
	logger  *logger.Logger
	config  *ExtractorConfig
	proxies *ProxyService
	goCache *cache.Cache

	// runCommand 可注入，测试时替换为假命令执行器
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)

	mu      sync.Mutex
	uaIndex int
}

// NewExtractorService 创建提取服务
func NewExtractorService(log *logger.Logger, cfg *ExtractorConfig, proxies *ProxyService) *ExtractorService {
	if cfg.Binary == "" {
		cfg.Binary = "yt-dlp"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}

	return &ExtractorService{
		logger:  log,
		config:  cfg,
		proxies: proxies,
		goCache: cache.New(cfg.CacheTTL, 10*time.Minute),
		runCommand: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// nextUserAgent 轮换返回下一个 User-Agent
func (s *ExtractorService) nextUserAgent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ua := userAgents[s.uaIndex%len(userAgents)]
	s.uaIndex++
	return ua
}

// baseArgs 所有 yt-dlp 调用共用的参数
func (s *ExtractorService) baseArgs() []string {
	return []string{
		"--no-warnings",
		"--no-playlist",
		"--geo-bypass",
		"--socket-timeout", "30",
		"--user-agent", s.nextUserAgent(),
	}
}

// classifyError 识别错误类别，决定重试策略
func classifyError(err error) (rateLimited, geoBlocked bool) {
	msg := strings.ToLower(errorOutput(err))
	for _, kw := range []string{"rate", "limit", "429", "too many"} {
		if strings.Contains(msg, kw) {
			rateLimited = true
			break
		}
	}
	for _, kw := range []string{"geo", "region", "country", "location", "blocked"} {
		if strings.Contains(msg, kw) {
			geoBlocked = true
			break
		}
	}
	return
}

// errorOutput 取出命令的 stderr，便于错误分类
func errorOutput(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return err.Error() + " " + string(exitErr.Stderr)
	}
	return err.Error()
}

// runWithRetry 带重试执行 yt-dlp：速率限制时指数退避，
// 地理限制时下一次走代理
func (s *ExtractorService) runWithRetry(ctx context.Context, desc string, args []string) ([]byte, error) {
	var lastErr error
	useProxy := false

	for attempt := 0; attempt < s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.config.RetryDelay):
			}
		}

		finalArgs := append(s.baseArgs(), args...)
		if useProxy || attempt > 0 {
			if proxy := s.proxies.Next(); proxy != "" {
				finalArgs = append(finalArgs, "--proxy", proxy)
				s.logger.Infof("%s: 使用代理 %s", desc, proxy)
			}
		}

		s.logger.Debugf("%s: 第 %d/%d 次尝试", desc, attempt+1, s.config.MaxRetries)
		output, err := s.runCommand(ctx, s.config.Binary, finalArgs...)
		if err == nil {
			return output, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		rateLimited, geoBlocked := classifyError(err)
		s.logger.Warnf("%s: 第 %d 次尝试失败: %v", desc, attempt+1, err)
		if geoBlocked {
			s.logger.Infof("%s: 检测到地理限制，下次尝试使用代理", desc)
			useProxy = true
		}
		if rateLimited {
			delay := s.config.RetryDelay * (1 << attempt)
			s.logger.Infof("%s: 触发速率限制，等待 %s", desc, delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return nil, fmt.Errorf("%s失败，已尝试 %d 次: %w", desc, s.config.MaxRetries, lastErr)
}

// ytdlpInfo yt-dlp --dump-json 输出中用到的字段
type ytdlpInfo struct {
	ID                string                     `json:"id"`
	Title             string                     `json:"title"`
	Duration          float64                    `json:"duration"`
	Uploader          string                     `json:"uploader"`
	UploadDate        string                     `json:"upload_date"`
	ViewCount         int64                      `json:"view_count"`
	Description       string                     `json:"description"`
	Thumbnail         string                     `json:"thumbnail"`
	WebpageURL        string                     `json:"webpage_url"`
	Subtitles         map[string]json.RawMessage `json:"subtitles"`
	AutomaticCaptions map[string]json.RawMessage `json:"automatic_captions"`
	Formats           []json.RawMessage          `json:"formats"`
}

// GetVideoInfo 获取视频基本信息，结果按 URL 缓存
func (s *ExtractorService) GetVideoInfo(ctx context.Context, url string) (*model.VideoInfo, error) {
	if cached, found := s.goCache.Get(url); found {
		if info, ok := cached.(*model.VideoInfo); ok {
			s.logger.Debugf("视频信息缓存命中: %s", url)
			return info, nil
		}
	}

	args := []string{"--dump-json", "--skip-download", url}
	output, err := s.runWithRetry(ctx, "获取视频信息", args)
	if err != nil {
		return nil, err
	}

	var raw ytdlpInfo
	if err := json.Unmarshal(output, &raw); err != nil {
		return nil, fmt.Errorf("解析视频信息失败: %w", err)
	}

	info := &model.VideoInfo{
		ID:                 raw.ID,
		Title:              raw.Title,
		Duration:           raw.Duration,
		Uploader:           raw.Uploader,
		UploadDate:         raw.UploadDate,
		ViewCount:          raw.ViewCount,
		Description:        truncateDescription(raw.Description, 500),
		Thumbnail:          raw.Thumbnail,
		WebpageURL:         raw.WebpageURL,
		HasSubtitles:       len(raw.Subtitles) > 0,
		AvailableSubtitles: sortedKeys(raw.Subtitles),
		AutomaticCaptions:  sortedKeys(raw.AutomaticCaptions),
		FormatsCount:       len(raw.Formats),
	}
	if info.Title == "" {
		info.Title = "Unknown"
	}
	if info.WebpageURL == "" {
		info.WebpageURL = url
	}

	s.goCache.Set(url, info, cache.DefaultExpiration)
	s.logger.Infof("获取视频信息成功: %s", info.Title)
	return info, nil
}

// DownloadSubtitles 下载视频已有字幕（含自动字幕）。
// 输出模板使用视频 ID，返回 语言 -> 字幕文件路径。
// formats 含 srt 时由 yt-dlp 转换为 srt，否则保留原生格式。
func (s *ExtractorService) DownloadSubtitles(ctx context.Context, url, videoID, outputDir string, languages, formats []string) (map[string]string, error) {
	if len(languages) == 0 {
		languages = []string{"zh-CN", "zh", "en"}
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	args := []string{
		"--skip-download",
		"--write-subs",
		"--write-auto-subs",
		"--sub-langs", strings.Join(languages, ","),
		"-o", filepath.Join(outputDir, "%(id)s.%(ext)s"),
	}
	if containsString(formats, "srt") {
		args = append(args, "--convert-subs", "srt")
	}
	args = append(args, url)

	if _, err := s.runWithRetry(ctx, "下载字幕", args); err != nil {
		return nil, err
	}

	return s.collectSubtitleFiles(outputDir, videoID)
}

// collectSubtitleFiles 扫描输出目录，收集本视频的字幕文件
func (s *ExtractorService) collectSubtitleFiles(outputDir, videoID string) (map[string]string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, fmt.Errorf("读取输出目录失败: %w", err)
	}

	// 文件名形如 <id>.<lang>.srt / <id>.<lang>.vtt
	prefix := videoID + "."
	found := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		ext := filepath.Ext(name)
		if ext != ".srt" && ext != ".vtt" {
			continue
		}
		lang := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ext)
		if lang == "" {
			continue
		}
		// 同语言 srt 优先于 vtt
		if existing, ok := found[lang]; ok && filepath.Ext(existing) == ".srt" {
			continue
		}
		found[lang] = filepath.Join(outputDir, name)
	}

	s.logger.Infof("找到 %d 个字幕文件: %s", len(found), videoID)
	return found, nil
}

// ExtractAudio 提取音频为 mp3，返回音频文件路径
func (s *ExtractorService) ExtractAudio(ctx context.Context, url, videoID, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	args := []string{
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", "mp3",
		"-o", filepath.Join(outputDir, "%(id)s.%(ext)s"),
		url,
	}
	if _, err := s.runWithRetry(ctx, "提取音频", args); err != nil {
		return "", err
	}

	audioPath := filepath.Join(outputDir, videoID+".mp3")
	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("音频文件未生成: %s", audioPath)
	}
	return audioPath, nil
}

// DownloadVideo 下载视频文件，返回视频文件路径
func (s *ExtractorService) DownloadVideo(ctx context.Context, url, videoID, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	args := []string{
		"-f", "best[ext=mp4]/best",
		"-o", filepath.Join(outputDir, "%(id)s.%(ext)s"),
		url,
	}
	if _, err := s.runWithRetry(ctx, "下载视频", args); err != nil {
		return "", err
	}

	// 扩展名由实际格式决定，扫描目录确认
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return "", fmt.Errorf("读取输出目录失败: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if strings.TrimSuffix(name, ext) == videoID && isVideoExt(ext) {
			return filepath.Join(outputDir, name), nil
		}
	}
	return "", fmt.Errorf("视频文件未生成: %s", videoID)
}

// SupportedSites 返回 yt-dlp 支持的站点列表（截取前 limit 个）
func (s *ExtractorService) SupportedSites(ctx context.Context) ([]string, error) {
	const cacheKey = "__supported_sites__"
	if cached, found := s.goCache.Get(cacheKey); found {
		if sites, ok := cached.([]string); ok {
			return sites, nil
		}
	}

	output, err := s.runCommand(ctx, s.config.Binary, "--list-extractors")
	if err != nil {
		return nil, fmt.Errorf("获取站点列表失败: %w", err)
	}

	const limit = 50
	var sites []string
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sites = append(sites, line)
		if len(sites) >= limit {
			break
		}
	}

	s.goCache.Set(cacheKey, sites, time.Hour)
	return sites, nil
}

// truncateDescription 截断过长的视频描述
func truncateDescription(desc string, max int) string {
	runes := []rune(desc)
	if len(runes) <= max {
		return desc
	}
	return string(runes[:max]) + "..."
}

func sortedKeys(m map[string]json.RawMessage) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func containsString(list []string, target string) bool {
	for _, item := range list {
		if item == target {
			return true
		}
	}
	return false
}

func isVideoExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".mp4", ".mkv", ".webm", ".flv", ".avi", ".mov", ".ts":
		return true
	}
	return false
}
