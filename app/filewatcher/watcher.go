package filewatcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"subtitle-fusion/app/config"
	"subtitle-fusion/app/logger"
	"subtitle-fusion/app/model"
	"subtitle-fusion/app/utils/pathhelper"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// TaskSubmitter 任务提交接口，由调度器实现
type TaskSubmitter interface {
	Submit(taskType model.TaskType, spec *model.TaskSpec) (*model.Task, error)
}

// Watcher 监听收件目录，新出现的媒体文件自动提交转写任务。
// 字幕生成在媒体文件旁边，已有字幕的文件不会重复提交。
type Watcher struct {
	config    *config.WatchConfig
	logger    *logger.Logger
	submitter TaskSubmitter
	watcher   *fsnotify.Watcher

	checkInterval time.Duration // 文件稳定性检查间隔
	maxWait       time.Duration // 等待文件写入完成的上限

	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	watching bool
	seen     map[string]bool // 已提交过的文件
}

// NewWatcher 创建目录监听器。未启用时返回 nil，调用方可直接使用
func NewWatcher(cfg *config.WatchConfig, log *logger.Logger, submitter TaskSubmitter) (*Watcher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("已启用目录监听但未设置监听目录")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}

	return &Watcher{
		config:        cfg,
		logger:        log,
		submitter:     submitter,
		watcher:       fsWatcher,
		checkInterval: time.Second,
		maxWait:       10 * time.Minute,
		stopCh:        make(chan struct{}),
		seen:          make(map[string]bool),
	}, nil
}

// Start 启动监听，并对目录中已存在的文件做一次初始扫描
func (w *Watcher) Start() error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watching {
		return fmt.Errorf("目录监听已经在运行")
	}

	if err := pathhelper.EnsureDir(w.config.Dir); err != nil {
		return fmt.Errorf("创建监听目录失败: %w", err)
	}
	if err := w.watcher.Add(w.config.Dir); err != nil {
		return fmt.Errorf("添加监听目录失败: %w", err)
	}

	w.watching = true
	w.wg.Add(1)
	go w.watchLoop()

	w.logger.Infof("目录监听已启动: %s", w.config.Dir)

	// 初始扫描在监听器就绪后进行，启动前放进来的文件也能被处理
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.scanExisting()
	}()

	return nil
}

// Stop 停止监听
func (w *Watcher) Stop() error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	if !w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = false
	w.mu.Unlock()

	close(w.stopCh)
	w.watcher.Close()
	w.wg.Wait()

	w.logger.Info("目录监听已停止")
	return nil
}

// watchLoop 监控事件循环
func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 {
				w.handleNewPath(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("目录监听错误: %v", err)

		case <-w.stopCh:
			return
		}
	}
}

// scanExisting 处理启动时目录中已有的媒体文件
func (w *Watcher) scanExisting() {
	entries, err := os.ReadDir(w.config.Dir)
	if err != nil {
		w.logger.Errorf("初始扫描失败: %v", err)
		return
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if w.handleNewPath(filepath.Join(w.config.Dir, entry.Name())) {
			count++
		}
	}
	if count > 0 {
		w.logger.Infof("初始扫描提交了 %d 个转写任务", count)
	}
}

// handleNewPath 检查新出现的路径并提交转写任务，返回是否提交
func (w *Watcher) handleNewPath(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || !pathhelper.IsMediaFile(path) {
		return false
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	w.mu.Lock()
	if w.seen[path] {
		w.mu.Unlock()
		return false
	}
	w.seen[path] = true
	w.mu.Unlock()

	if w.hasSubtitleSibling(path) {
		w.logger.Debugf("文件已有字幕，跳过: %s", name)
		return false
	}

	if err := w.waitForStable(path); err != nil {
		w.logger.Warnf("等待文件写入完成失败: %s: %v", name, err)
		w.forget(path)
		return false
	}

	task, err := w.submitter.Submit(model.TaskTypeLocalTranscribe, &model.TaskSpec{
		Transcribe: &model.TranscribeSpec{FilePath: path},
	})
	if err != nil {
		w.logger.Errorf("提交转写任务失败: %s: %v", name, err)
		w.forget(path) // 下次事件重试
		return false
	}

	w.logger.Infof("📺 监听到新媒体文件: %s, 已提交转写任务 %s", name, task.TaskID)
	return true
}

// forget 从已见集合移除，允许之后重新提交
func (w *Watcher) forget(path string) {
	w.mu.Lock()
	delete(w.seen, path)
	w.mu.Unlock()
}

// hasSubtitleSibling 检查媒体文件旁边是否已有字幕文件
func (w *Watcher) hasSubtitleSibling(path string) bool {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		return false
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, stem+".") {
			continue
		}
		switch filepath.Ext(name) {
		case ".srt", ".vtt":
			return true
		}
	}
	return false
}

// waitForStable 等待文件大小在配置的稳定期内不再变化，
// 避免把还在拷贝中的文件提交给转写
func (w *Watcher) waitForStable(path string) error {
	required := w.config.StableSeconds
	if required < 1 {
		required = 1
	}

	deadline := time.After(w.maxWait)
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	var lastSize int64 = -1
	stable := 0
	for {
		select {
		case <-w.stopCh:
			return fmt.Errorf("监听已停止")
		case <-deadline:
			return fmt.Errorf("等待文件写入完成超时: %s", path)
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("获取文件信息失败: %w", err)
			}
			if info.Size() == lastSize && info.Size() > 0 {
				stable++
				if stable >= required {
					return nil
				}
			} else {
				stable = 0
				lastSize = info.Size()
			}
		}
	}
}
