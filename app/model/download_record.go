package model

import (
	"encoding/json"
	"time"
)

// DownloadRecord 下载历史记录（任务进入终态后落库，重启后仍可查询）
type DownloadRecord struct {
	ID          uint      `json:"id" gorm:"primarykey"`
	TaskID      string    `json:"task_id" gorm:"size:64;uniqueIndex"`
	TaskType    string    `json:"task_type" gorm:"size:32"`
	Status      string    `json:"status" gorm:"size:20"`
	VideoID     string    `json:"video_id" gorm:"size:128;index"`
	Title       string    `json:"title"`
	SourceURL   string    `json:"source_url" gorm:"type:text"`       // 在线任务的视频地址，本地任务的文件路径
	Languages   string    `json:"languages" gorm:"size:255"`         // 逗号分隔
	AIGenerated bool      `json:"ai_generated" gorm:"default:false"` // 是否经过 Whisper 转写
	FilesJSON   string    `json:"-" gorm:"type:text;comment:产物文件列表"`
	Error       string    `json:"error,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName 指定表名
func (DownloadRecord) TableName() string {
	return "download_records"
}

// SetFiles 序列化产物文件列表
func (r *DownloadRecord) SetFiles(files []string) {
	if len(files) == 0 {
		r.FilesJSON = ""
		return
	}
	data, err := json.Marshal(files)
	if err != nil {
		return
	}
	r.FilesJSON = string(data)
}

// Files 反序列化产物文件列表
func (r *DownloadRecord) Files() []string {
	if r.FilesJSON == "" {
		return nil
	}
	var files []string
	if err := json.Unmarshal([]byte(r.FilesJSON), &files); err != nil {
		return nil
	}
	return files
}
