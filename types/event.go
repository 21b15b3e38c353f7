package types

import "time"

// TaskEventType names the change that produced a TaskEvent.
type TaskEventType string

const (
	TaskCreated TaskEventType = "task.created"
	TaskUpdated TaskEventType = "task.updated"
	TaskDeleted TaskEventType = "task.deleted"
)

// TaskEvent is the notification published after a task changes.
// For deletions Task holds the state the task had before removal.
type TaskEvent struct {
	ID         string        `json:"id"`
	Type       TaskEventType `json:"type"`
	OwnerID    int           `json:"owner_id"`
	Task       Task          `json:"task"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// TaskExport describes a snapshot of a user's tasks written to object storage.
type TaskExport struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Count  int    `json:"count"`
}
