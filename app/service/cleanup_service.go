package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"subtitle-fusion/app/logger"
	"subtitle-fusion/app/taskqueue"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// CleanupConfig 清理服务配置
type CleanupConfig struct {
	Cron             string        // cron 表达式，定时触发清理
	TaskRetention    time.Duration // 终态任务在内存中的保留时长
	TempMaxAge       time.Duration // 下载目录临时文件保留时长
	HistoryRetention time.Duration // 历史记录保留时长，0 表示永久保留
	DownloadDir      string
}

// CleanupService 定时清理：过期终态任务、残留临时文件、过老历史记录
type CleanupService struct {
	logger  *logger.Logger
	config  *CleanupConfig
	store   *taskqueue.Store
	history *HistoryService
	cron    *cron.Cron
}

// NewCleanupService 创建清理服务
func NewCleanupService(log *logger.Logger, cfg *CleanupConfig, store *taskqueue.Store, history *HistoryService) *CleanupService {
	if cfg.Cron == "" {
		cfg.Cron = "0 * * * *"
	}
	if cfg.TaskRetention <= 0 {
		cfg.TaskRetention = 24 * time.Hour
	}
	if cfg.TempMaxAge <= 0 {
		cfg.TempMaxAge = 24 * time.Hour
	}
	return &CleanupService{
		logger:  log,
		config:  cfg,
		store:   store,
		history: history,
	}
}

// Start 启动定时清理
func (s *CleanupService) Start() error {
	c := cron.New()
	_, err := c.AddFunc(s.config.Cron, func() {
		if err := s.RunOnce(context.Background()); err != nil {
			s.logger.Errorf("定时清理失败: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("无效的清理 cron 表达式 %q: %w", s.config.Cron, err)
	}

	c.Start()
	s.cron = c
	s.logger.Infof("清理服务已启动: %s", s.config.Cron)
	return nil
}

// Stop 停止定时清理，等待正在执行的清理结束
func (s *CleanupService) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("清理服务已停止")
}

// RunOnce 立即执行一轮清理，各清理项并行执行
func (s *CleanupService) RunOnce(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		removed := s.store.RemoveFinishedBefore(time.Now().Add(-s.config.TaskRetention))
		if removed > 0 {
			s.logger.Infof("清理过期任务 %d 个", removed)
		}
		return nil
	})

	g.Go(func() error {
		return s.cleanTempFiles(ctx)
	})

	if s.history != nil && s.config.HistoryRetention > 0 {
		g.Go(func() error {
			_, err := s.history.CleanupBefore(time.Now().Add(-s.config.HistoryRetention))
			return err
		})
	}

	return g.Wait()
}

// cleanTempFiles 删除下载目录中过期的临时文件
func (s *CleanupService) cleanTempFiles(ctx context.Context) error {
	if s.config.DownloadDir == "" {
		return nil
	}
	entries, err := os.ReadDir(s.config.DownloadDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("读取下载目录失败: %w", err)
	}

	cutoff := time.Now().Add(-s.config.TempMaxAge)
	var removed int
	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() || !isTempFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.config.DownloadDir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Warnf("删除临时文件失败: %s: %v", path, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Infof("清理临时文件 %d 个", removed)
	}
	return nil
}

// isTempFile 下载和缩略图流程产生的中间文件
func isTempFile(name string) bool {
	return strings.HasSuffix(name, ".tmp") ||
		strings.HasSuffix(name, ".part") ||
		strings.HasSuffix(name, ".ytdl") ||
		strings.HasSuffix(name, ".thumb.download")
}
