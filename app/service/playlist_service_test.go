package service

import (
	"context"
	"errors"
	"subtitle-fusion/app/logger"
	"subtitle-fusion/app/model"
	"testing"
)

func TestExtractPlaylistID(t *testing.T) {
	cases := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://www.youtube.com/playlist?list=PLabc123", "PLabc123", false},
		{"https://www.youtube.com/watch?v=xyz&list=PLabc123&index=2", "PLabc123", false},
		{"https://www.youtube.com/watch?v=xyz&list=PLabc123#t=30", "PLabc123", false},
		{"https://www.youtube.com/watch?v=xyz", "", true},
		{"https://www.youtube.com/playlist?list=", "", true},
	}
	for _, c := range cases {
		got, err := ExtractPlaylistID(c.url)
		if c.wantErr {
			if err == nil {
				t.Errorf("ExtractPlaylistID(%q) 应当失败", c.url)
			}
			continue
		}
		if err != nil {
			t.Errorf("ExtractPlaylistID(%q) 失败: %v", c.url, err)
			continue
		}
		if got != c.want {
			t.Errorf("ExtractPlaylistID(%q) = %q, 期望 %q", c.url, got, c.want)
		}
	}
}

func TestPlaylistResolve(t *testing.T) {
	s := NewPlaylistService(logger.NewNop())
	s.fetchItems = func(ctx context.Context, playlistID string) ([]model.PlaylistVideo, error) {
		if playlistID != "PLtest" {
			t.Errorf("playlistID = %s", playlistID)
		}
		return []model.PlaylistVideo{
			{VideoID: "a1", Title: "第一集", URL: "https://www.youtube.com/watch?v=a1"},
			{VideoID: "a2", Title: "第二集", URL: "https://www.youtube.com/watch?v=a2"},
		}, nil
	}

	videos, err := s.Resolve(context.Background(), "https://www.youtube.com/playlist?list=PLtest")
	if err != nil {
		t.Fatalf("Resolve 失败: %v", err)
	}
	if len(videos) != 2 || videos[0].VideoID != "a1" || videos[1].Title != "第二集" {
		t.Errorf("解析结果错误: %+v", videos)
	}
}

func TestPlaylistResolveEmpty(t *testing.T) {
	s := NewPlaylistService(logger.NewNop())
	s.fetchItems = func(ctx context.Context, playlistID string) ([]model.PlaylistVideo, error) {
		return nil, nil
	}
	if _, err := s.Resolve(context.Background(), "https://www.youtube.com/playlist?list=PLempty"); err == nil {
		t.Fatal("空播放列表应当报错")
	}
}

func TestPlaylistResolveFetchError(t *testing.T) {
	s := NewPlaylistService(logger.NewNop())
	s.fetchItems = func(ctx context.Context, playlistID string) ([]model.PlaylistVideo, error) {
		return nil, errors.New("network unreachable")
	}
	if _, err := s.Resolve(context.Background(), "https://www.youtube.com/playlist?list=PLx"); err == nil {
		t.Fatal("期望失败")
	}
}

func TestPlaylistResolveBadURL(t *testing.T) {
	s := NewPlaylistService(logger.NewNop())
	called := false
	s.fetchItems = func(ctx context.Context, playlistID string) ([]model.PlaylistVideo, error) {
		called = true
		return nil, nil
	}
	if _, err := s.Resolve(context.Background(), "https://example.com/no-list"); err == nil {
		t.Fatal("非播放列表 URL 应当失败")
	}
	if called {
		t.Error("无效 URL 不应触发拉取")
	}
}
