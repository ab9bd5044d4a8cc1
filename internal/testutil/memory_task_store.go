package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"badminton_club/internal/models"
	"badminton_club/internal/store"
)

// MemoryTaskStore is a map-backed store.TaskStore.
type MemoryTaskStore struct {
	mu      sync.Mutex
	tasks   map[uint]models.ScheduledTask
	history []models.ScheduledTaskHistory
	nextID  uint

	// FailFinish makes FinishTaskRun return this error when set.
	FailFinish error
}

var _ store.TaskStore = (*MemoryTaskStore)(nil)

func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: map[uint]models.ScheduledTask{}}
}

func (s *MemoryTaskStore) DueTasks(_ context.Context, now time.Time) ([]models.ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ScheduledTask
	for _, t := range s.tasks {
		if t.Status == models.ScheduledTaskStatusActive && !t.Due.After(now) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Due.Equal(out[j].Due) {
			return out[i].Due.Before(out[j].Due)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryTaskStore) CreateScheduledTask(_ context.Context, t *models.ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.TaskName == "" {
		return fmt.Errorf("create task: empty task name")
	}
	s.nextID++
	t.ID = s.nextID
	s.tasks[t.ID] = *t
	return nil
}

func (s *MemoryTaskStore) FinishTaskRun(_ context.Context, task models.ScheduledTask, history []models.ScheduledTaskHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailFinish != nil {
		return s.FailFinish
	}
	stored, ok := s.tasks[task.ID]
	if !ok {
		return fmt.Errorf("task %d not found", task.ID)
	}
	stored.Status = task.Status
	stored.Due = task.Due
	stored.LastRun = task.LastRun
	s.tasks[task.ID] = stored
	s.history = append(s.history, history...)
	return nil
}

// Task returns the stored copy of a task.
func (s *MemoryTaskStore) Task(id uint) models.ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id]
}

// Tasks returns every task ordered by ID.
func (s *MemoryTaskStore) Tasks() []models.ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ScheduledTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryTaskStore) History() []models.ScheduledTaskHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ScheduledTaskHistory(nil), s.history...)
}
