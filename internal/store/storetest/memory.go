// Package storetest provides in-memory repositories with the same contracts as
// the postgres-backed ones in package store. They are meant for tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/taskapi/taskapi/internal/store"
	"github.com/taskapi/taskapi/types"
)

// Users is an in-memory user repository with a unique email index.
type Users struct {
	mu     sync.Mutex
	nextID int
	byMail map[string]types.User

	// Err, when set, is returned by every call.
	Err error
}

func NewUsers() *Users {
	return &Users{nextID: 1, byMail: make(map[string]types.User)}
}

func (u *Users) GetByEmail(_ context.Context, email string) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.Err != nil {
		return types.User{}, u.Err
	}
	user, ok := u.byMail[email]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (u *Users) Create(_ context.Context, user types.User) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.Err != nil {
		return types.User{}, u.Err
	}
	if _, exists := u.byMail[user.Email]; exists {
		return types.User{}, store.ErrConflict
	}
	user.ID = u.nextID
	u.nextID++
	user.CreatedAt = time.Now().UTC()
	u.byMail[user.Email] = user
	return user, nil
}

// Remove deletes a user by email, leaving their tasks untouched.
func (u *Users) Remove(email string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.byMail, email)
}

type taskKey struct {
	ownerID int
	taskID  int
}

// Tasks is an in-memory task repository indexed by (owner, task id).
type Tasks struct {
	mu     sync.Mutex
	nextID int
	tasks  map[taskKey]types.Task

	// Now stamps created/updated times. Defaults to time.Now.
	Now func() time.Time
	// Err, when set, is returned by every call.
	Err error
}

func NewTasks() *Tasks {
	return &Tasks{nextID: 1, tasks: make(map[taskKey]types.Task), Now: time.Now}
}

func (s *Tasks) List(_ context.Context, ownerID, offset, limit int) ([]types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}

	owned := make([]types.Task, 0)
	for key, task := range s.tasks {
		if key.ownerID == ownerID {
			owned = append(owned, cloneTask(task))
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].ID < owned[j].ID })

	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 100
	}
	if offset >= len(owned) {
		return []types.Task{}, nil
	}
	end := offset + limit
	if end > len(owned) {
		end = len(owned)
	}
	return owned[offset:end], nil
}

func (s *Tasks) Create(_ context.Context, task types.Task) (types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return types.Task{}, s.Err
	}

	now := s.Now().UTC()
	task.ID = s.nextID
	s.nextID++
	task.CreatedAt = now
	task.UpdatedAt = now
	s.tasks[taskKey{ownerID: task.UserID, taskID: task.ID}] = cloneTask(task)
	return cloneTask(task), nil
}

func (s *Tasks) Get(_ context.Context, ownerID, taskID int) (types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.owned(ownerID, taskID)
	if err != nil {
		return types.Task{}, err
	}
	return cloneTask(task), nil
}

func (s *Tasks) Update(_ context.Context, ownerID, taskID int, patch types.TaskPatch) (types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.owned(ownerID, taskID)
	if err != nil {
		return types.Task{}, err
	}

	patch.Apply(&task)
	if now := s.Now().UTC(); !now.Before(task.UpdatedAt) {
		task.UpdatedAt = now
	}
	s.tasks[taskKey{ownerID: ownerID, taskID: taskID}] = cloneTask(task)
	return cloneTask(task), nil
}

func (s *Tasks) Delete(_ context.Context, ownerID, taskID int) (types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.owned(ownerID, taskID)
	if err != nil {
		return types.Task{}, err
	}
	delete(s.tasks, taskKey{ownerID: ownerID, taskID: taskID})
	return task, nil
}

// owned is the ownership gate shared by Get, Update and Delete.
// Callers must hold s.mu.
func (s *Tasks) owned(ownerID, taskID int) (types.Task, error) {
	if s.Err != nil {
		return types.Task{}, s.Err
	}
	task, ok := s.tasks[taskKey{ownerID: ownerID, taskID: taskID}]
	if !ok {
		return types.Task{}, store.ErrNotFound
	}
	return task, nil
}

func cloneTask(t types.Task) types.Task {
	out := t
	if t.Description != nil {
		description := *t.Description
		out.Description = &description
	}
	return out
}
