package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/taskapi/taskapi/internal/store"
	"github.com/taskapi/taskapi/types"
)

const (
	// DefaultListLimit is the page size used when the caller gives none.
	DefaultListLimit = 100
)

// ErrInvalidTask is returned when task fields fail the service's own checks.
var ErrInvalidTask = errors.New("invalid task")

// TaskRepository defines owner-scoped persistence operations for tasks.
type TaskRepository interface {
	List(ctx context.Context, ownerID, offset, limit int) ([]types.Task, error)
	Create(ctx context.Context, task types.Task) (types.Task, error)
	Get(ctx context.Context, ownerID, taskID int) (types.Task, error)
	Update(ctx context.Context, ownerID, taskID int, patch types.TaskPatch) (types.Task, error)
	Delete(ctx context.Context, ownerID, taskID int) (types.Task, error)
}

// TaskEventPublisher receives a notification after every task change.
type TaskEventPublisher interface {
	PublishTaskEvent(ctx context.Context, event types.TaskEvent) error
}

// TaskService encapsulates task use-cases. The owner id it receives must
// already be authenticated.
type TaskService struct {
	repo   TaskRepository
	events TaskEventPublisher
	now    func() time.Time
}

// NewTaskService constructs a TaskService. events may be nil.
func NewTaskService(repo TaskRepository, events TaskEventPublisher) *TaskService {
	return &TaskService{repo: repo, events: events, now: time.Now}
}

func (s *TaskService) List(ctx context.Context, ownerID, offset, limit int) ([]types.Task, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = DefaultListLimit
	}
	return s.repo.List(ctx, ownerID, offset, limit)
}

// Create stores a new task with status todo. A nil priority means medium.
func (s *TaskService) Create(ctx context.Context, ownerID int, title string, description *string, priority *types.TaskPriority) (types.Task, error) {
	if strings.TrimSpace(title) == "" {
		return types.Task{}, fmt.Errorf("%w: title must not be empty", ErrInvalidTask)
	}

	task := types.Task{
		UserID:      ownerID,
		Title:       title,
		Description: description,
		Status:      types.TaskStatusTodo,
		Priority:    types.TaskPriorityMedium,
	}
	if priority != nil {
		if !priority.Valid() {
			return types.Task{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidTask, *priority)
		}
		task.Priority = *priority
	}

	created, err := s.repo.Create(ctx, task)
	if err != nil {
		return types.Task{}, err
	}

	s.publish(ctx, types.TaskCreated, created)
	return created, nil
}

func (s *TaskService) Get(ctx context.Context, ownerID, taskID int) (types.Task, error) {
	if taskID < 1 {
		return types.Task{}, store.ErrNotFound
	}
	return s.repo.Get(ctx, ownerID, taskID)
}

// Update applies the fields present in patch. An empty patch only refreshes
// the update timestamp.
func (s *TaskService) Update(ctx context.Context, ownerID, taskID int, patch types.TaskPatch) (types.Task, error) {
	if taskID < 1 {
		return types.Task{}, store.ErrNotFound
	}

	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return types.Task{}, fmt.Errorf("%w: title must not be empty", ErrInvalidTask)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return types.Task{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTask, *patch.Status)
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return types.Task{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidTask, *patch.Priority)
	}

	updated, err := s.repo.Update(ctx, ownerID, taskID, patch)
	if err != nil {
		return types.Task{}, err
	}

	s.publish(ctx, types.TaskUpdated, updated)
	return updated, nil
}

// Delete removes the task permanently and returns its prior state.
func (s *TaskService) Delete(ctx context.Context, ownerID, taskID int) (types.Task, error) {
	if taskID < 1 {
		return types.Task{}, store.ErrNotFound
	}

	deleted, err := s.repo.Delete(ctx, ownerID, taskID)
	if err != nil {
		return types.Task{}, err
	}

	s.publish(ctx, types.TaskDeleted, deleted)
	return deleted, nil
}

// publish is best effort: the change is already committed, so a failed
// notification is logged and dropped.
func (s *TaskService) publish(ctx context.Context, eventType types.TaskEventType, task types.Task) {
	if s.events == nil {
		return
	}

	event := types.TaskEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		OwnerID:    task.UserID,
		Task:       task,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.PublishTaskEvent(ctx, event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"event_type": eventType,
			"task_id":    task.ID,
			"owner_id":   task.UserID,
		}).Warn("publish task event failed")
	}
}
