package service

import (
	"path/filepath"
	"subtitle-fusion/app/logger"
	"subtitle-fusion/app/model"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestHistory(t *testing.T) *HistoryService {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "history.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(&model.DownloadRecord{}); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}
	return NewHistoryService(logger.NewNop(), db)
}

func completedDownloadTask(taskID string) *model.Task {
	now := time.Now()
	return &model.Task{
		TaskID:      taskID,
		TaskType:    model.TaskTypeSubtitleDownload,
		Status:      model.TaskStatusCompleted,
		Progress:    100,
		CreatedAt:   now,
		CompletedAt: &now,
		Spec: &model.TaskSpec{
			Download: &model.DownloadSpec{
				URL:       "https://www.youtube.com/watch?v=abc",
				Languages: []string{"zh-CN", "en"},
				Formats:   []string{"srt"},
			},
		},
		Result: &model.TaskResult{
			Download: &model.DownloadResult{
				VideoID:       "abc",
				Title:         "测试视频",
				DownloadPaths: []string{"/data/downloads/abc.zh-CN.srt"},
			},
		},
	}
}

func TestHistoryRecordAndList(t *testing.T) {
	s := newTestHistory(t)

	if err := s.Record(completedDownloadTask("task-1")); err != nil {
		t.Fatalf("Record 失败: %v", err)
	}

	records, total, err := s.List(10, 0)
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if total != 1 || len(records) != 1 {
		t.Fatalf("记录数 = %d/%d, 期望 1/1", len(records), total)
	}

	r := records[0]
	if r.TaskID != "task-1" || r.VideoID != "abc" || r.Title != "测试视频" {
		t.Errorf("记录字段错误: %+v", r)
	}
	if r.Languages != "zh-CN,en" {
		t.Errorf("Languages = %s", r.Languages)
	}
	if r.AIGenerated {
		t.Error("未使用 AI 的任务 AIGenerated 应为 false")
	}
	if files := r.Files(); len(files) != 1 || files[0] != "/data/downloads/abc.zh-CN.srt" {
		t.Errorf("Files = %v", files)
	}
}

func TestHistoryRecordRejectsRunningTask(t *testing.T) {
	s := newTestHistory(t)
	task := completedDownloadTask("task-x")
	task.Status = model.TaskStatusRunning
	if err := s.Record(task); err == nil {
		t.Fatal("运行中的任务不应入库")
	}
}

func TestHistoryRecordIdempotent(t *testing.T) {
	s := newTestHistory(t)
	task := completedDownloadTask("task-1")

	if err := s.Record(task); err != nil {
		t.Fatal(err)
	}
	// 再次记录同一任务应更新而非新增
	task.Status = model.TaskStatusFailed
	task.Error = "下载失败"
	if err := s.Record(task); err != nil {
		t.Fatal(err)
	}

	records, total, err := s.List(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Fatalf("记录数 = %d, 期望 1", total)
	}
	if records[0].Status != "failed" || records[0].Error != "下载失败" {
		t.Errorf("更新未生效: %+v", records[0])
	}
}

func TestHistoryRecordTranscribeTask(t *testing.T) {
	s := newTestHistory(t)
	now := time.Now()
	task := &model.Task{
		TaskID:      "task-t",
		TaskType:    model.TaskTypeLocalTranscribe,
		Status:      model.TaskStatusCompleted,
		CreatedAt:   now,
		CompletedAt: &now,
		Spec: &model.TaskSpec{
			Transcribe: &model.TranscribeSpec{
				FilePath: "/data/watch/movie.mp4",
				Language: "zh",
			},
		},
		Result: &model.TaskResult{
			Transcribe: &model.TranscribeResult{
				SourceFile: "/data/watch/movie.mp4",
				Language:   "zh",
				Formats:    map[string]string{"srt": "/data/watch/movie.srt"},
			},
		},
	}
	if err := s.Record(task); err != nil {
		t.Fatal(err)
	}

	records, _, err := s.List(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	r := records[0]
	if r.TaskType != "local_transcribe" || !r.AIGenerated {
		t.Errorf("转写记录错误: %+v", r)
	}
	if r.SourceURL != "/data/watch/movie.mp4" {
		t.Errorf("SourceURL = %s", r.SourceURL)
	}
}

func TestHistoryListPagination(t *testing.T) {
	s := newTestHistory(t)
	for i := 0; i < 5; i++ {
		task := completedDownloadTask("task-" + string(rune('a'+i)))
		if err := s.Record(task); err != nil {
			t.Fatal(err)
		}
	}

	records, total, err := s.List(2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 || len(records) != 2 {
		t.Errorf("分页结果 = %d/%d, 期望 2/5", len(records), total)
	}

	rest, _, err := s.List(10, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 1 {
		t.Errorf("偏移后剩余 = %d, 期望 1", len(rest))
	}
}

func TestHistoryCleanupBefore(t *testing.T) {
	s := newTestHistory(t)
	if err := s.Record(completedDownloadTask("task-old")); err != nil {
		t.Fatal(err)
	}
	// 把记录时间改到过去
	if err := s.db.Model(&model.DownloadRecord{}).
		Where("task_id = ?", "task-old").
		Update("created_at", time.Now().Add(-48*time.Hour)).Error; err != nil {
		t.Fatal(err)
	}
	if err := s.Record(completedDownloadTask("task-new")); err != nil {
		t.Fatal(err)
	}

	deleted, err := s.CleanupBefore(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("CleanupBefore 失败: %v", err)
	}
	if deleted != 1 {
		t.Errorf("删除条数 = %d, 期望 1", deleted)
	}

	_, total, err := s.List(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Errorf("剩余记录 = %d, 期望 1", total)
	}
}
