package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/taskapi/taskapi/types"
)

const (
	exportPageSize    = 100
	exportContentType = "application/json"
)

// TaskLister pages through an owner's tasks.
type TaskLister interface {
	List(ctx context.Context, ownerID, offset, limit int) ([]types.Task, error)
}

// ObjectWriter uploads objects to a bucket.
type ObjectWriter interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Bucket() string
}

// ExportService writes JSON snapshots of a user's tasks to object storage.
type ExportService struct {
	tasks   TaskLister
	objects ObjectWriter
	now     func() time.Time
}

func NewExportService(tasks TaskLister, objects ObjectWriter) *ExportService {
	return &ExportService{tasks: tasks, objects: objects, now: time.Now}
}

type exportDocument struct {
	OwnerID    int          `json:"owner_id"`
	ExportedAt time.Time    `json:"exported_at"`
	Tasks      []types.Task `json:"tasks"`
}

// Export collects every task owned by ownerID and uploads them as one document.
func (s *ExportService) Export(ctx context.Context, ownerID int) (types.TaskExport, error) {
	tasks := make([]types.Task, 0)
	for offset := 0; ; offset += exportPageSize {
		page, err := s.tasks.List(ctx, ownerID, offset, exportPageSize)
		if err != nil {
			return types.TaskExport{}, fmt.Errorf("list tasks for export: %w", err)
		}
		tasks = append(tasks, page...)
		if len(page) < exportPageSize {
			break
		}
	}

	exportedAt := s.now().UTC()
	data, err := json.Marshal(exportDocument{
		OwnerID:    ownerID,
		ExportedAt: exportedAt,
		Tasks:      tasks,
	})
	if err != nil {
		return types.TaskExport{}, fmt.Errorf("encode export: %w", err)
	}

	key := exportKey(ownerID, exportedAt)
	if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), exportContentType); err != nil {
		return types.TaskExport{}, fmt.Errorf("upload export: %w", err)
	}

	return types.TaskExport{
		Bucket: s.objects.Bucket(),
		Key:    key,
		Count:  len(tasks),
	}, nil
}

func exportKey(ownerID int, at time.Time) string {
	return fmt.Sprintf("exports/user-%d/%s.json", ownerID, at.Format("20060102T150405.000Z"))
}
