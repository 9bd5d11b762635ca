package model

import (
	"time"
)

// TaskStatus 任务状态
type TaskStatus string

// 任务状态常量
const (
	TaskStatusPending   TaskStatus = "pending"   // 等待调度
	TaskStatusRunning   TaskStatus = "running"   // 执行中
	TaskStatusCompleted TaskStatus = "completed" // 已完成
	TaskStatusFailed    TaskStatus = "failed"    // 执行失败
	TaskStatusCancelled TaskStatus = "cancelled" // 已取消
)

// IsTerminal 判断是否为终态（终态之后记录不再变化）
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// Valid 判断是否为合法状态值
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// ParseTaskStatus 解析状态字符串，非法值返回 false
func ParseTaskStatus(v string) (TaskStatus, bool) {
	s := TaskStatus(v)
	return s, s.Valid()
}

// TaskType 任务类型
type TaskType string

// 任务类型常量
const (
	TaskTypeSubtitleDownload TaskType = "subtitle_download" // 在线视频字幕下载
	TaskTypeLocalTranscribe  TaskType = "local_transcribe"  // 本地媒体文件转写
)

// DownloadSpec 字幕下载任务参数
type DownloadSpec struct {
	URL           string   `json:"url"`
	Languages     []string `json:"languages"`                // 目标字幕语言，空则用配置默认值
	Formats       []string `json:"formats"`                  // 输出格式：srt/vtt/txt/json
	UseAI         bool     `json:"use_ai"`                   // 无现成字幕时是否用 Whisper 生成
	DownloadVideo bool     `json:"download_video,omitempty"` // 是否同时保存视频文件
}

// TranscribeSpec 本地转写任务参数
type TranscribeSpec struct {
	FilePath string   `json:"file_path"`
	Language string   `json:"language,omitempty"` // 空则自动检测
	Formats  []string `json:"formats"`
}

// TaskSpec 任务参数，按任务类型取对应字段
type TaskSpec struct {
	Download   *DownloadSpec   `json:"download,omitempty"`
	Transcribe *TranscribeSpec `json:"transcribe,omitempty"`
}

// AISubtitleResult Whisper 生成的字幕产物
type AISubtitleResult struct {
	Language string            `json:"language"`
	Formats  map[string]string `json:"formats"` // 格式 -> 文件路径
}

// DownloadResult 字幕下载任务结果
type DownloadResult struct {
	VideoID           string            `json:"video_id"`
	Title             string            `json:"title"`
	ExistingSubtitles map[string]string `json:"existing_subtitles"` // 语言 -> 文件路径
	AISubtitles       *AISubtitleResult `json:"ai_subtitles,omitempty"`
	VideoFile         string            `json:"video_file,omitempty"`
	Thumbnail         string            `json:"thumbnail,omitempty"`
	DownloadPaths     []string          `json:"download_paths"`
}

// TranscribeResult 本地转写任务结果
type TranscribeResult struct {
	SourceFile string            `json:"source_file"`
	Language   string            `json:"language"`
	Formats    map[string]string `json:"formats"` // 格式 -> 文件路径
}

// TaskResult 任务结果，按任务类型取对应字段
type TaskResult struct {
	Download   *DownloadResult   `json:"download,omitempty"`
	Transcribe *TranscribeResult `json:"transcribe,omitempty"`
}

// Task 一次异步任务的完整记录
type Task struct {
	TaskID      string      `json:"task_id"`
	TaskType    TaskType    `json:"task_type"`
	Status      TaskStatus  `json:"status"`
	Progress    float64     `json:"progress"` // 0-100
	Message     string      `json:"message"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Spec        *TaskSpec   `json:"spec,omitempty"`
	Result      *TaskResult `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// IsTerminal 判断任务是否已进入终态
func (t *Task) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// Clone 返回记录的独立副本，调用方修改副本不影响原记录
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.StartedAt != nil {
		v := *t.StartedAt
		c.StartedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	// Spec 和 Result 在进入存储后不再被修改，浅拷贝即可
	return &c
}
