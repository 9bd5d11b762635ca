package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"subtitle-fusion/app/logger"
	"subtitle-fusion/app/model"
)

// WorkFunc 任务工作函数契约。函数应在上下文取消后尽快返回，
// 并通过 reporter 上报进度；返回值只在任务正常收尾时生效。
type WorkFunc func(ctx context.Context, task *model.Task, reporter ProgressReporter) (*model.TaskResult, error)

// SchedulerConfig 调度器配置
type SchedulerConfig struct {
	MaxConcurrent int           // 同时执行的任务上限
	MaxPending    int           // 等待队列上限，0 表示不限制
	CancelGrace   time.Duration // 取消确认宽限期
}

// Stats 调度器运行统计
type Stats struct {
	TotalTasks      int                      `json:"total_tasks"`
	PendingTasks    int                      `json:"pending_tasks"`
	RunningTasks    int                      `json:"running_tasks"`
	MaxConcurrent   int                      `json:"max_concurrent"`
	StatusBreakdown map[model.TaskStatus]int `json:"status_breakdown"`
}

// runningTask 执行中任务的控制句柄
type runningTask struct {
	cancel context.CancelFunc
	done   chan struct{} // 工作协程收尾后关闭
}

// Scheduler 异步任务调度器。提交立即返回任务记录，实际执行由调度协程
// 按创建顺序从注册表领取，槽位池限制并发，取消通过上下文协作完成。
type Scheduler struct {
	logger   *logger.Logger
	store    *Store
	pool     *SlotPool
	config   *SchedulerConfig
	handlers map[model.TaskType]WorkFunc

	admitCtx    context.Context // 控制调度协程，停止时退出
	admitCancel context.CancelFunc
	kick        chan struct{} // 唤醒调度协程
	wg          sync.WaitGroup

	mu         sync.RWMutex
	running    map[string]*runningTask
	onTerminal func(*model.Task)
	started    bool
	stopped    bool
}

// NewScheduler 创建任务调度器，调用 Start 后开始执行任务
func NewScheduler(log *logger.Logger, store *Store, cfg *SchedulerConfig) *Scheduler {
	if cfg.CancelGrace <= 0 {
		cfg.CancelGrace = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger:      log,
		store:       store,
		pool:        NewSlotPool(cfg.MaxConcurrent),
		config:      cfg,
		handlers:    make(map[model.TaskType]WorkFunc),
		admitCtx:    ctx,
		admitCancel: cancel,
		kick:        make(chan struct{}, 1),
		running:     make(map[string]*runningTask),
	}
}

// Register 注册任务类型对应的工作函数，需在提交该类型任务前完成
func (s *Scheduler) Register(taskType model.TaskType, fn WorkFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[taskType] = fn
}

// Store 返回底层任务注册表
func (s *Scheduler) Store() *Store {
	return s.store
}

// SetTerminalCallback 设置任务进入终态后的回调（如写入历史记录），
// 每个任务只回调一次。需在 Start 之前设置。
func (s *Scheduler) SetTerminalCallback(fn func(*model.Task)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTerminal = fn
}

// notifyTerminal 任务进入终态后通知回调方
func (s *Scheduler) notifyTerminal(task *model.Task) {
	s.mu.RLock()
	fn := s.onTerminal
	s.mu.RUnlock()
	if fn == nil || task == nil {
		return
	}
	fn(task)
}

// Start 启动调度协程
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true
	s.logger.Infof("启动任务调度器，最大并发数: %d", s.config.MaxConcurrent)

	s.wg.Add(1)
	go s.dispatchLoop()
}

// Submit 提交任务，登记后立即返回记录副本，不等待空闲槽位
func (s *Scheduler) Submit(taskType model.TaskType, spec *model.TaskSpec) (*model.Task, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrSchedulerStopped
	}
	if _, ok := s.handlers[taskType]; !ok {
		s.mu.Unlock()
		return nil, ErrUnknownTaskType
	}
	if s.config.MaxPending > 0 && s.store.CountByStatus(model.TaskStatusPending) >= s.config.MaxPending {
		s.mu.Unlock()
		return nil, ErrQueueFull
	}

	task := s.store.Create(taskType, spec, "任务已创建，等待空闲槽位")
	s.mu.Unlock()

	s.logger.Infof("📥 提交任务: %s 类型=%s", task.TaskID, task.TaskType)
	s.kickDispatch()

	return task, nil
}

// kickDispatch 唤醒调度协程，信号合并不堆积
func (s *Scheduler) kickDispatch() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// dispatchLoop 调度协程：被唤醒后按创建顺序把等待中的任务送入空闲槽位。
// 定时器兜底扫描，保证唤醒信号丢失时任务也不会滞留。
func (s *Scheduler) dispatchLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.admitCtx.Done():
			return
		case <-s.kick:
		case <-ticker.C:
		}
		s.admitPending()
	}
}

// admitPending 按创建顺序领取等待中的任务，直到槽位耗尽
func (s *Scheduler) admitPending() {
	for _, task := range s.store.List(model.TaskStatusPending) {
		s.mu.RLock()
		fn, ok := s.handlers[task.TaskType]
		s.mu.RUnlock()
		if !ok {
			continue
		}
		if !s.pool.TryAcquire() {
			return // 槽位用完，等待下一次唤醒
		}
		if !s.beginTask(task.TaskID, fn) {
			s.pool.Release() // 任务已不在等待状态（通常是已被取消）
		}
	}
}

// beginTask 把任务标记为执行中并启动工作协程，返回是否真正启动。
// 控制句柄先于 running 状态登记，取消方看到 running 时句柄一定存在。
func (s *Scheduler) beginTask(taskID string, fn WorkFunc) bool {
	runCtx, cancel := context.WithCancel(context.Background())
	rt := &runningTask{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.running[taskID] = rt
	s.mu.Unlock()

	var started bool
	task, err := s.store.Update(taskID, func(t *model.Task) {
		if t.Status != model.TaskStatusPending {
			return
		}
		now := time.Now()
		t.Status = model.TaskStatusRunning
		t.StartedAt = &now
		t.Message = "任务执行中"
		started = true
	})
	if err != nil || !started {
		s.mu.Lock()
		delete(s.running, taskID)
		s.mu.Unlock()
		close(rt.done)
		cancel()
		return false
	}

	s.logger.Infof("🚀 任务开始执行: %s 类型=%s", task.TaskID, task.TaskType)

	s.wg.Add(1)
	go func() {
		defer func() {
			s.pool.Release()
			s.mu.Lock()
			delete(s.running, taskID)
			s.mu.Unlock()
			close(rt.done)
			cancel()
			s.kickDispatch() // 槽位已空出，唤醒调度
			s.wg.Done()
		}()

		result, runErr := s.runWork(runCtx, fn, task)
		s.finish(taskID, result, runErr, runCtx)
	}()

	return true
}

// runWork 执行工作函数并吸收panic
func (s *Scheduler) runWork(ctx context.Context, fn WorkFunc, task *model.Task) (result *model.TaskResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("任务执行发生panic: %v", r)
			s.logger.Errorf("任务 %s 执行发生panic: %v", task.TaskID, r)
		}
	}()

	return fn(ctx, task, newStoreReporter(s.store, task.TaskID))
}

// finish 把执行结果写入任务记录。终态只写一次，
// 宽限期超时被强制收尾的任务不再改写。
func (s *Scheduler) finish(taskID string, result *model.TaskResult, runErr error, runCtx context.Context) {
	cancelled := runErr != nil && (runCtx.Err() != nil || errors.Is(runErr, context.Canceled))

	var wrote bool
	snapshot, err := s.store.Update(taskID, func(t *model.Task) {
		if t.Status.IsTerminal() {
			return
		}
		now := time.Now()
		t.CompletedAt = &now
		switch {
		case cancelled:
			t.Status = model.TaskStatusCancelled
			t.Message = "任务已取消"
		case runErr != nil:
			t.Status = model.TaskStatusFailed
			t.Error = runErr.Error()
			t.Message = "任务执行失败"
		default:
			t.Status = model.TaskStatusCompleted
			t.Progress = 100
			t.Result = result
			t.Message = "任务已完成"
		}
		wrote = true
	})
	if err != nil || !wrote {
		return
	}

	switch snapshot.Status {
	case model.TaskStatusCompleted:
		s.logger.Infof("✅ 任务完成: %s", taskID)
	case model.TaskStatusFailed:
		s.logger.Errorf("❌ 任务失败: %s, 错误: %v", taskID, runErr)
	case model.TaskStatusCancelled:
		s.logger.Infof("🛑 任务已取消: %s", taskID)
	}
	s.notifyTerminal(snapshot)
}

// Cancel 取消任务。等待中的任务直接进入取消终态；执行中的任务发出取消
// 信号后在宽限期内等待确认，超时则强制标记。对终态任务幂等，原样返回。
func (s *Scheduler) Cancel(taskID string) (*model.Task, error) {
	var was model.TaskStatus
	snapshot, err := s.store.Update(taskID, func(t *model.Task) {
		was = t.Status
		if t.Status == model.TaskStatusPending {
			now := time.Now()
			t.Status = model.TaskStatusCancelled
			t.CompletedAt = &now
			t.Message = "任务已取消"
		}
	})
	if err != nil {
		return nil, err
	}

	switch was {
	case model.TaskStatusPending:
		s.logger.Infof("🛑 任务取消（未开始执行）: %s", taskID)
		s.notifyTerminal(snapshot)
		return snapshot, nil
	case model.TaskStatusRunning:
		return s.cancelRunning(taskID)
	default:
		return snapshot, nil
	}
}

// cancelRunning 向执行中的任务发出取消信号并等待确认
func (s *Scheduler) cancelRunning(taskID string) (*model.Task, error) {
	s.mu.RLock()
	rt, ok := s.running[taskID]
	s.mu.RUnlock()
	if !ok {
		// 任务刚好收尾，返回当前状态
		return s.store.Get(taskID)
	}

	s.logger.Infof("🛑 请求取消执行中任务: %s，宽限期 %s", taskID, s.config.CancelGrace)
	rt.cancel()

	select {
	case <-rt.done:
		return s.store.Get(taskID)
	case <-time.After(s.config.CancelGrace):
		// 工作函数未在宽限期内退出，强制标记终态；其后的收尾写入会被忽略
		s.logger.Warnf("⚠️ 任务 %s 未在宽限期内确认取消，强制标记为已取消", taskID)
		var wrote bool
		snapshot, err := s.store.Update(taskID, func(t *model.Task) {
			if t.Status.IsTerminal() {
				return
			}
			now := time.Now()
			t.Status = model.TaskStatusCancelled
			t.CompletedAt = &now
			t.Message = "取消确认超时，已强制标记"
			wrote = true
		})
		if err == nil && wrote {
			s.notifyTerminal(snapshot)
		}
		return snapshot, err
	}
}

// Get 查询单个任务
func (s *Scheduler) Get(taskID string) (*model.Task, error) {
	return s.store.Get(taskID)
}

// List 按创建顺序列出任务，可选按状态过滤
func (s *Scheduler) List(statuses ...model.TaskStatus) []*model.Task {
	return s.store.List(statuses...)
}

// Stats 返回运行统计
func (s *Scheduler) Stats() *Stats {
	counts := s.store.StatusCounts()
	return &Stats{
		TotalTasks:      s.store.Count(),
		PendingTasks:    counts[model.TaskStatusPending],
		RunningTasks:    counts[model.TaskStatusRunning],
		MaxConcurrent:   s.pool.Cap(),
		StatusBreakdown: counts,
	}
}

// Stop 停止调度器：不再接受新任务，等待中的任务标记为取消，
// 执行中的任务在上下文期限内等待完成，超时后发出取消信号。
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.logger.Info("正在停止任务调度器...")
	s.admitCancel()
	s.cancelPendingTasks()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// 等待超时，取消仍在执行的任务
		s.mu.RLock()
		for id, rt := range s.running {
			s.logger.Warnf("停止超时，取消执行中任务: %s", id)
			rt.cancel()
		}
		s.mu.RUnlock()

		select {
		case <-done:
		case <-time.After(s.config.CancelGrace):
			s.logger.Warn("仍有任务未退出，放弃等待")
		}
	}

	// 调度协程退出和停止之间可能又有任务滞留在等待状态，补一次收尾
	s.cancelPendingTasks()
	s.logger.Info("任务调度器已停止")
}

// cancelPendingTasks 把所有等待中的任务标记为取消
func (s *Scheduler) cancelPendingTasks() {
	for _, task := range s.store.List(model.TaskStatusPending) {
		var wrote bool
		snapshot, err := s.store.Update(task.TaskID, func(t *model.Task) {
			if t.Status != model.TaskStatusPending {
				return
			}
			now := time.Now()
			t.Status = model.TaskStatusCancelled
			t.CompletedAt = &now
			t.Message = "调度器已停止，任务未执行"
			wrote = true
		})
		if err == nil && wrote {
			s.notifyTerminal(snapshot)
		}
	}
}
