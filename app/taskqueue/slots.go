package taskqueue

import "context"

// SlotPool 工作槽位池，用信号量控制同时执行的任务数。
// 等待者按到达顺序获得槽位。
type SlotPool struct {
	slots chan struct{}
}

// NewSlotPool 创建指定容量的槽位池
func NewSlotPool(size int) *SlotPool {
	if size < 1 {
		size = 1 // 至少 1 个槽位
	}
	return &SlotPool{
		slots: make(chan struct{}, size),
	}
}

// Acquire 阻塞直到获得槽位，上下文取消时放弃等待
func (p *SlotPool) Acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire 非阻塞获取槽位
func (p *SlotPool) TryAcquire() bool {
	select {
	case p.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release 归还槽位
func (p *SlotPool) Release() {
	<-p.slots
}

// Cap 返回槽位总数
func (p *SlotPool) Cap() int {
	return cap(p.slots)
}

// InUse 返回已占用的槽位数
func (p *SlotPool) InUse() int {
	return len(p.slots)
}
