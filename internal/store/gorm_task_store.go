package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"badminton_club/internal/models"
)

var _ TaskStore = (*GormStore)(nil)

func (s *GormStore) DueTasks(ctx context.Context, now time.Time) ([]models.ScheduledTask, error) {
	var tasks []models.ScheduledTask
	err := s.db.WithContext(ctx).
		Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, now).
		Order("due ASC, id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("fetch due tasks: %w", err)
	}
	return tasks, nil
}

func (s *GormStore) CreateScheduledTask(ctx context.Context, t *models.ScheduledTask) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create task %s: %w", t.TaskName, err)
	}
	return nil
}

func (s *GormStore) FinishTaskRun(ctx context.Context, task models.ScheduledTask, history []models.ScheduledTaskHistory) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(history) > 0 {
			if err := tx.Create(&history).Error; err != nil {
				return fmt.Errorf("store history of task %d: %w", task.ID, err)
			}
		}
		updates := map[string]interface{}{
			"status":   task.Status,
			"due":      task.Due,
			"last_run": task.LastRun,
		}
		if err := tx.Model(&models.ScheduledTask{}).Where("id = ?", task.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update task %d: %w", task.ID, err)
		}
		return nil
	})
}
