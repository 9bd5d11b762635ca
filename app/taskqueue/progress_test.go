package taskqueue

import (
	"testing"
	"time"

	"subtitle-fusion/app/model"
)

func TestReporterClampAndMonotonic(t *testing.T) {
	store := NewStore()
	task := store.Create(model.TaskTypeSubtitleDownload, nil, "")
	reporter := newStoreReporter(store, task.TaskID)

	steps := []struct {
		report float64
		want   float64
	}{
		{30, 30},
		{20, 30},   // 回退被忽略
		{30, 30},   // 等值不变
		{150, 100}, // 钳制上界
		{99, 100},  // 钳制后同样不可回退
		{-5, 100},  // 钳制下界
	}

	for _, step := range steps {
		reporter.Report(step.report, "")
		got, err := store.Get(task.TaskID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Progress != step.want {
			t.Errorf("after Report(%v): progress = %v, want %v", step.report, got.Progress, step.want)
		}
	}
}

func TestReporterMessage(t *testing.T) {
	store := NewStore()
	task := store.Create(model.TaskTypeSubtitleDownload, nil, "初始")
	reporter := newStoreReporter(store, task.TaskID)

	reporter.Report(10, "解析视频信息")
	got, _ := store.Get(task.TaskID)
	if got.Message != "解析视频信息" {
		t.Errorf("message = %q", got.Message)
	}

	// 空消息保留旧值
	reporter.Report(20, "")
	got, _ = store.Get(task.TaskID)
	if got.Message != "解析视频信息" {
		t.Errorf("empty message overwrote previous one: %q", got.Message)
	}
}

func TestReporterDroppedAfterTerminal(t *testing.T) {
	store := NewStore()
	task := store.Create(model.TaskTypeSubtitleDownload, nil, "")
	reporter := newStoreReporter(store, task.TaskID)

	reporter.Report(40, "执行中")
	now := time.Now()
	_, _ = store.Update(task.TaskID, func(t *model.Task) {
		t.Status = model.TaskStatusCancelled
		t.CompletedAt = &now
		t.Message = "任务已取消"
	})

	reporter.Report(90, "不该出现")

	got, err := store.Get(task.TaskID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Progress != 40 {
		t.Errorf("progress advanced after terminal state: %v", got.Progress)
	}
	if got.Message != "任务已取消" {
		t.Errorf("message changed after terminal state: %q", got.Message)
	}
}

func TestReporterUnknownTask(t *testing.T) {
	store := NewStore()
	reporter := newStoreReporter(store, "ghost")
	// 不应panic，静默丢弃
	reporter.Report(50, "无主进度")
}
