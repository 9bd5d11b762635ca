package taskqueue

import "subtitle-fusion/app/model"

// ProgressReporter 供工作函数上报进度，只能更新进度和提示信息
type ProgressReporter interface {
	Report(progress float64, message string)
}

// storeReporter 绑定单个任务的进度上报实现
type storeReporter struct {
	store  *Store
	taskID string
}

func newStoreReporter(store *Store, taskID string) *storeReporter {
	return &storeReporter{store: store, taskID: taskID}
}

// Report 更新任务进度。进度钳制到 [0,100] 且只增不减，
// 任务进入终态后的上报全部丢弃。
func (r *storeReporter) Report(progress float64, message string) {
	_, _ = r.store.Update(r.taskID, func(t *model.Task) {
		if t.Status.IsTerminal() {
			return
		}
		p := clampProgress(progress)
		if p > t.Progress {
			t.Progress = p
		}
		if message != "" {
			t.Message = message
		}
	})
}

func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
