package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTaskStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		terminal bool
	}{
		{TaskStatusPending, false},
		{TaskStatusRunning, false},
		{TaskStatusCompleted, true},
		{TaskStatusFailed, true},
		{TaskStatusCancelled, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.terminal {
			t.Errorf("IsTerminal(%s) = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestParseTaskStatus(t *testing.T) {
	if s, ok := ParseTaskStatus("running"); !ok || s != TaskStatusRunning {
		t.Errorf("ParseTaskStatus(running) = %v, %v", s, ok)
	}
	if _, ok := ParseTaskStatus("downloading"); ok {
		t.Error("ParseTaskStatus accepted unknown status")
	}
	if _, ok := ParseTaskStatus(""); ok {
		t.Error("ParseTaskStatus accepted empty status")
	}
}

func TestTaskClone(t *testing.T) {
	started := time.Now()
	task := &Task{
		TaskID:    "abc",
		TaskType:  TaskTypeSubtitleDownload,
		Status:    TaskStatusRunning,
		Progress:  40,
		Message:   "下载中",
		CreatedAt: started.Add(-time.Minute),
		StartedAt: &started,
	}

	clone := task.Clone()
	clone.Status = TaskStatusCompleted
	clone.Progress = 100
	*clone.StartedAt = started.Add(time.Hour)

	if task.Status != TaskStatusRunning {
		t.Errorf("origin status changed after mutating clone: %s", task.Status)
	}
	if task.Progress != 40 {
		t.Errorf("origin progress changed after mutating clone: %v", task.Progress)
	}
	if !task.StartedAt.Equal(started) {
		t.Error("origin started_at changed after mutating clone")
	}
}

func TestTaskJSONShape(t *testing.T) {
	task := &Task{
		TaskID:    "id-1",
		TaskType:  TaskTypeLocalTranscribe,
		Status:    TaskStatusPending,
		CreatedAt: time.Now(),
		Spec: &TaskSpec{
			Transcribe: &TranscribeSpec{FilePath: "/media/a.mp4", Formats: []string{"srt"}},
		},
	}

	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["status"] != "pending" {
		t.Errorf("status = %v, want pending", m["status"])
	}
	// 未开始的任务不应出现 started_at / completed_at / result / error 字段
	for _, key := range []string{"started_at", "completed_at", "result", "error"} {
		if _, present := m[key]; present {
			t.Errorf("unexpected field %q in pending task JSON", key)
		}
	}
}

func TestDownloadRecordFiles(t *testing.T) {
	var r DownloadRecord
	r.SetFiles([]string{"/data/downloads/a.srt", "/data/downloads/a.txt"})
	files := r.Files()
	if len(files) != 2 || files[0] != "/data/downloads/a.srt" {
		t.Errorf("Files() = %v", files)
	}

	r.SetFiles(nil)
	if r.FilesJSON != "" || r.Files() != nil {
		t.Errorf("empty file list should round-trip to nil, got %q / %v", r.FilesJSON, r.Files())
	}
}
