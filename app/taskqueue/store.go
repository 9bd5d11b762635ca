package taskqueue

import (
	"sync"
	"time"

	"subtitle-fusion/app/model"

	"github.com/google/uuid"
)

// Store 内存任务注册表。对外只暴露记录副本，
// 所有修改都通过 Update 在锁内完成。
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*model.Task
	order []string // 按创建顺序排列的任务ID
}

// NewStore 创建空的任务注册表
func NewStore() *Store {
	return &Store{
		tasks: make(map[string]*model.Task),
	}
}

// Create 登记一条新任务记录，返回记录副本
func (s *Store) Create(taskType model.TaskType, spec *model.TaskSpec, message string) *model.Task {
	task := &model.Task{
		TaskID:    uuid.NewString(),
		TaskType:  taskType,
		Status:    model.TaskStatusPending,
		Progress:  0,
		Message:   message,
		CreatedAt: time.Now(),
		Spec:      spec,
	}

	s.mu.Lock()
	s.tasks[task.TaskID] = task
	s.order = append(s.order, task.TaskID)
	s.mu.Unlock()

	return task.Clone()
}

// Get 按ID查询任务，返回记录副本
func (s *Store) Get(taskID string) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return task.Clone(), nil
}

// List 按创建顺序列出任务副本，可选按状态过滤
func (s *Store) List(statuses ...model.TaskStatus) []*model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.Task, 0, len(s.order))
	for _, id := range s.order {
		task, ok := s.tasks[id]
		if !ok {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, task.Status) {
			continue
		}
		result = append(result, task.Clone())
	}
	return result
}

// Update 在锁内对任务记录执行修改函数，返回修改后的副本
func (s *Store) Update(taskID string, fn func(*model.Task)) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	fn(task)
	return task.Clone(), nil
}

// Remove 删除单条任务记录。只供保留期清理使用，
// 正常的生命周期流转不会删除记录。
func (s *Store) Remove(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[taskID]; !ok {
		return ErrTaskNotFound
	}
	delete(s.tasks, taskID)
	for i, id := range s.order {
		if id == taskID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Count 返回任务总数
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// CountByStatus 返回指定状态的任务数
func (s *Store) CountByStatus(status model.TaskStatus) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, task := range s.tasks {
		if task.Status == status {
			count++
		}
	}
	return count
}

// StatusCounts 返回各状态的任务数，包含数量为零的状态
func (s *Store) StatusCounts() map[model.TaskStatus]int {
	counts := map[model.TaskStatus]int{
		model.TaskStatusPending:   0,
		model.TaskStatusRunning:   0,
		model.TaskStatusCompleted: 0,
		model.TaskStatusFailed:    0,
		model.TaskStatusCancelled: 0,
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, task := range s.tasks {
		counts[task.Status]++
	}
	return counts
}

// RemoveFinishedBefore 移除在截止时间之前进入终态的任务，返回移除数量。
// 进行中和等待中的任务不受影响。
func (s *Store) RemoveFinishedBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	keep := make([]string, 0, len(s.order))
	for _, id := range s.order {
		task, ok := s.tasks[id]
		if !ok {
			continue
		}
		if task.Status.IsTerminal() && task.CompletedAt != nil && task.CompletedAt.Before(cutoff) {
			delete(s.tasks, id)
			removed++
			continue
		}
		keep = append(keep, id)
	}
	s.order = keep
	return removed
}

func containsStatus(statuses []model.TaskStatus, status model.TaskStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
