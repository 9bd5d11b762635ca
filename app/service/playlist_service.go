package service

import (
	"context"
	"fmt"
	"strings"
	"subtitle-fusion/app/logger"
	"subtitle-fusion/app/model"
	"time"

	"github.com/ytget/ytdlp/v2"
)

// playlistParseTimeout 播放列表解析超时
const playlistParseTimeout = 60 * time.Second

// PlaylistService 解析 YouTube 播放列表，展开为单个视频
type PlaylistService struct {
	logger  *logger.Logger
	timeout time.Duration

	// fetchItems 可注入，测试时替换为假数据源
	fetchItems func(ctx context.Context, playlistID string) ([]model.PlaylistVideo, error)
}

// NewPlaylistService 创建播放列表服务
func NewPlaylistService(log *logger.Logger) *PlaylistService {
	s := &PlaylistService{
		logger:  log,
		timeout: playlistParseTimeout,
	}
	s.fetchItems = s.fetchFromYouTube
	return s
}

// fetchFromYouTube 通过 ytdlp 库拉取播放列表条目
func (s *PlaylistService) fetchFromYouTube(ctx context.Context, playlistID string) ([]model.PlaylistVideo, error) {
	d := ytdlp.New()
	items, err := d.GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, fmt.Errorf("获取播放列表条目失败: %w", err)
	}

	videos := make([]model.PlaylistVideo, 0, len(items))
	for _, it := range items {
		videos = append(videos, model.PlaylistVideo{
			VideoID: it.VideoID,
			Title:   it.Title,
			URL:     fmt.Sprintf("https://www.youtube.com/watch?v=%s", it.VideoID),
		})
	}
	return videos, nil
}

// ExtractPlaylistID 从各种形式的播放列表 URL 中取出列表 ID。
// 支持 watch?v=xxx&list=yyy 和 playlist?list=yyy 两种形式。
func ExtractPlaylistID(url string) (string, error) {
	const param = "list="
	idx := strings.Index(url, param)
	if idx < 0 {
		return "", fmt.Errorf("URL 中不包含播放列表参数: %s", url)
	}
	id := url[idx+len(param):]
	if sep := strings.IndexAny(id, "&#"); sep >= 0 {
		id = id[:sep]
	}
	if id == "" {
		return "", fmt.Errorf("播放列表 ID 为空: %s", url)
	}
	return id, nil
}

// Resolve 解析播放列表 URL，返回其中的视频列表
func (s *PlaylistService) Resolve(ctx context.Context, url string) ([]model.PlaylistVideo, error) {
	playlistID, err := ExtractPlaylistID(url)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	videos, err := s.fetchItems(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, fmt.Errorf("播放列表为空: %s", playlistID)
	}

	s.logger.Infof("解析播放列表成功: %s, 共 %d 个视频", playlistID, len(videos))
	return videos, nil
}
