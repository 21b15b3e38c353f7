package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTaskRepositoryRefreshedNeverMovesBackwards(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &TaskRepository{now: func() time.Time { return base }}

	future := base.Add(time.Hour)
	if got := repo.refreshed(future); !got.Equal(future) {
		t.Fatalf("expected previous timestamp %v to be kept, got %v", future, got)
	}

	past := base.Add(-time.Hour)
	if got := repo.refreshed(past); !got.Equal(base) {
		t.Fatalf("expected now %v, got %v", base, got)
	}
}

func TestTaskRepositoryTimestampTruncatesToMicroseconds(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.FixedZone("X", 3600))
	repo := &TaskRepository{now: func() time.Time { return at }}

	got := repo.timestamp()
	if got.Nanosecond() != 123456000 {
		t.Fatalf("expected microsecond precision, got %d ns", got.Nanosecond())
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", got.Location())
	}
}

func TestOwnedTaskRejectsMalformedIDsWithoutQuerying(t *testing.T) {
	for _, ids := range [][2]int{{0, 1}, {1, 0}, {-1, 5}, {5, -1}} {
		// A nil queryer would panic if it were used.
		_, err := ownedTask(context.Background(), nil, ids[0], ids[1], false)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("ownedTask(%d, %d): expected ErrNotFound, got %v", ids[0], ids[1], err)
		}
	}
}
