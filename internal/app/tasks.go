package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/ports"
)

type TaskService struct {
	tasks       ports.TaskRepository
	downloaders ports.DownloaderRepository
	items       ports.ItemRepository
	bus         ports.EventBus
}

func NewTaskService(tasks ports.TaskRepository, downloaders ports.DownloaderRepository, items ports.ItemRepository, bus ports.EventBus) *TaskService {
	return &TaskService{tasks: tasks, downloaders: downloaders, items: items, bus: bus}
}

type TaskDTO struct {
	ID           int64             `json:"id"`
	ItemID       int64             `json:"itemId"`
	DownloaderID int64             `json:"downloaderId"`
	Status       domain.TaskStatus `json:"status"`
	Progress     float64           `json:"progress"`
	ExternalID   string            `json:"externalId,omitempty"`
	ErrorCode    string            `json:"errorCode,omitempty"`
	Error        string            `json:"error,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

func ToTaskDTO(t domain.Task) TaskDTO {
	return TaskDTO{
		ID:           t.ID,
		ItemID:       t.ItemID,
		DownloaderID: t.DownloaderID,
		Status:       t.Status,
		Progress:     t.Progress,
		ExternalID:   t.ExternalID,
		ErrorCode:    t.ErrorCode,
		Error:        t.ErrorMessage,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func PublishTaskEvent(bus ports.EventBus, topic string, task domain.Task) {
	if bus == nil {
		return
	}
	b, err := json.Marshal(ToTaskDTO(task))
	if err != nil {
		return
	}
	bus.Publish(topic, b)
}

func (s *TaskService) DefaultDownloader(ctx context.Context) (domain.Downloader, error) {
	return s.downloaders.GetDefaultEnabled(ctx)
}

// CreateTask crée une tâche "pending" ; elle ne part qu'après StartTask.
func (s *TaskService) CreateTask(ctx context.Context, itemID, downloaderID int64) (int64, error) {
	if _, err := s.items.Get(ctx, itemID); err != nil {
		return 0, fmt.Errorf("item %d: %w", itemID, err)
	}
	dl, err := s.downloaders.Get(ctx, downloaderID)
	if err != nil {
		return 0, fmt.Errorf("downloader %d: %w", downloaderID, err)
	}
	if !dl.Enabled {
		return 0, coded(CodeInvalidParams, fmt.Sprintf("downloader %d is disabled", downloaderID), nil)
	}

	now := time.Now().UTC()
	created, err := s.tasks.Create(ctx, domain.Task{
		ItemID:       itemID,
		DownloaderID: downloaderID,
		Status:       domain.TaskPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return 0, err
	}
	PublishTaskEvent(s.bus, "task.created", created)
	return created.ID, nil
}

// StartTask passe pending → queued ; un worker la prendra ensuite.
func (s *TaskService) StartTask(ctx context.Context, taskID int64) error {
	queued, err := s.tasks.UpdateStatus(ctx, taskID, domain.TaskPending, domain.TaskQueued)
	if err != nil {
		return err
	}
	PublishTaskEvent(s.bus, "task.queued", queued)
	return nil
}

func (s *TaskService) Get(ctx context.Context, id int64) (TaskDTO, error) {
	t, err := s.tasks.Get(ctx, id)
	if err != nil {
		return TaskDTO{}, err
	}
	return ToTaskDTO(t), nil
}

func (s *TaskService) List(ctx context.Context, limit int) ([]TaskDTO, error) {
	tasks, err := s.tasks.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]TaskDTO, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, ToTaskDTO(t))
	}
	return out, nil
}

// Pause et Resume ne changent que le statut ; le worker répercute sur le backend.
func (s *TaskService) Pause(ctx context.Context, id int64) (TaskDTO, error) {
	return s.transition(ctx, id, "task.paused", domain.TaskPaused, domain.TaskDownloading)
}

func (s *TaskService) Resume(ctx context.Context, id int64) (TaskDTO, error) {
	return s.transition(ctx, id, "task.resumed", domain.TaskDownloading, domain.TaskPaused)
}

func (s *TaskService) Cancel(ctx context.Context, id int64) (TaskDTO, error) {
	return s.transition(ctx, id, "task.cancelled", domain.TaskCancelled,
		domain.TaskPending, domain.TaskQueued, domain.TaskDownloading, domain.TaskPaused)
}

// transition essaie chaque état de départ ; sinon renvoie l'état courant
// avec ErrInvalidTransition.
func (s *TaskService) transition(ctx context.Context, id int64, topic string, next domain.TaskStatus, from ...domain.TaskStatus) (TaskDTO, error) {
	for _, expected := range from {
		updated, err := s.tasks.UpdateStatus(ctx, id, expected, next)
		if err == nil {
			PublishTaskEvent(s.bus, topic, updated)
			return ToTaskDTO(updated), nil
		}
	}
	current, err := s.tasks.Get(ctx, id)
	if err != nil {
		return TaskDTO{}, err
	}
	return ToTaskDTO(current), fmt.Errorf("task %d is %s: %w", id, current.Status, domain.ErrInvalidTransition)
}
