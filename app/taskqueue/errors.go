package taskqueue

import "errors"

// 调度相关错误
var (
	ErrTaskNotFound     = errors.New("任务不存在")
	ErrQueueFull        = errors.New("等待队列已满")
	ErrSchedulerStopped = errors.New("任务调度器已停止")
	ErrUnknownTaskType  = errors.New("未知的任务类型")
)
