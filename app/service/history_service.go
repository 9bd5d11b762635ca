package service

import (
	"fmt"
	"strings"
	"subtitle-fusion/app/logger"
	"subtitle-fusion/app/model"
	"time"

	"gorm.io/gorm"
)

// HistoryService 下载历史服务，任务进入终态后落库
type HistoryService struct {
	logger *logger.Logger
	db     *gorm.DB
}

// NewHistoryService 创建历史记录服务
func NewHistoryService(log *logger.Logger, db *gorm.DB) *HistoryService {
	return &HistoryService{
		logger: log,
		db:     db,
	}
}

// Record 记录任务的最终结果，同一任务只保留一条记录
func (s *HistoryService) Record(task *model.Task) error {
	if task == nil || !task.Status.IsTerminal() {
		return fmt.Errorf("任务未结束，不能记录历史")
	}

	record := s.buildRecord(task)

	var existing model.DownloadRecord
	err := s.db.Where("task_id = ?", task.TaskID).First(&existing).Error
	if err == nil {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		if err := s.db.Save(record).Error; err != nil {
			s.logger.Errorf("更新历史记录失败: %s: %v", task.TaskID, err)
			return err
		}
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	if err := s.db.Create(record).Error; err != nil {
		s.logger.Errorf("写入历史记录失败: %s: %v", task.TaskID, err)
		return err
	}
	s.logger.Debugf("历史记录已写入: %s (%s)", task.TaskID, task.Status)
	return nil
}

// buildRecord 从任务提取历史记录字段
func (s *HistoryService) buildRecord(task *model.Task) *model.DownloadRecord {
	record := &model.DownloadRecord{
		TaskID:   task.TaskID,
		TaskType: string(task.TaskType),
		Status:   string(task.Status),
		Error:    task.Error,
	}

	if task.Spec != nil {
		if task.Spec.Download != nil {
			record.SourceURL = task.Spec.Download.URL
			record.Languages = strings.Join(task.Spec.Download.Languages, ",")
		}
		if task.Spec.Transcribe != nil {
			record.SourceURL = task.Spec.Transcribe.FilePath
			record.Languages = task.Spec.Transcribe.Language
		}
	}

	if task.Result != nil {
		if dl := task.Result.Download; dl != nil {
			record.VideoID = dl.VideoID
			record.Title = dl.Title
			record.AIGenerated = dl.AISubtitles != nil
			record.SetFiles(dl.DownloadPaths)
		}
		if tr := task.Result.Transcribe; tr != nil {
			record.AIGenerated = true
			var files []string
			for _, path := range tr.Formats {
				files = append(files, path)
			}
			record.SetFiles(files)
		}
	}

	return record
}

// Count 返回历史记录总数
func (s *HistoryService) Count() (int64, error) {
	var total int64
	err := s.db.Model(&model.DownloadRecord{}).Count(&total).Error
	return total, err
}

// List 按创建时间倒序分页查询历史记录
func (s *HistoryService) List(limit, offset int) ([]model.DownloadRecord, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.Model(&model.DownloadRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []model.DownloadRecord
	err := s.db.Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// CleanupBefore 删除早于 cutoff 的历史记录，返回删除条数
func (s *HistoryService) CleanupBefore(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoff).Delete(&model.DownloadRecord{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		s.logger.Infof("清理历史记录 %d 条", result.RowsAffected)
	}
	return result.RowsAffected, nil
}
