package model

// VideoInfo 在线视频的元信息（来自 yt-dlp 解析结果）
type VideoInfo struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Duration           float64  `json:"duration"`
	Uploader           string   `json:"uploader"`
	UploadDate         string   `json:"upload_date"`
	ViewCount          int64    `json:"view_count"`
	Description        string   `json:"description"`
	Thumbnail          string   `json:"thumbnail"`
	WebpageURL         string   `json:"webpage_url"`
	HasSubtitles       bool     `json:"has_subtitles"`
	AvailableSubtitles []string `json:"available_subtitles"` // 站方提供的字幕语言
	AutomaticCaptions  []string `json:"automatic_captions"`  // 自动生成的字幕语言
	FormatsCount       int      `json:"formats_count"`
}

// PlaylistVideo 播放列表中的单个视频
type PlaylistVideo struct {
	VideoID string `json:"video_id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
}
