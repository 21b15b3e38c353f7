package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/taskapi/taskapi/config"
)

type fakeBackend struct {
	ensured bool
	puts    map[string][]byte
	err     error
}

func (f *fakeBackend) EnsureBucket(context.Context) error {
	f.ensured = true
	return f.err
}

func (f *fakeBackend) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if f.puts == nil {
		f.puts = make(map[string][]byte)
	}
	f.puts[key] = data
	return nil
}

func (f *fakeBackend) Bucket() string {
	return "fake"
}

func TestStorageDelegatesToBackend(t *testing.T) {
	backend := &fakeBackend{}
	s := NewStorage(backend)

	if err := s.EnsureBucket(context.Background()); err != nil {
		t.Fatalf("EnsureBucket returned error: %v", err)
	}
	if !backend.ensured {
		t.Fatalf("expected backend bucket check")
	}
	if err := s.Put(context.Background(), "k", bytes.NewReader([]byte("v")), 1, "text/plain"); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if string(backend.puts["k"]) != "v" {
		t.Fatalf("unexpected stored value %q", backend.puts["k"])
	}
	if s.Bucket() != "fake" {
		t.Fatalf("unexpected bucket %q", s.Bucket())
	}

	backend.err = errors.New("denied")
	if err := s.EnsureBucket(context.Background()); !errors.Is(err, backend.err) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestNewFromConfig(t *testing.T) {
	s, err := NewFromConfig(context.Background(), config.StorageConfig{})
	if err != nil || s != nil {
		t.Fatalf("expected disabled storage, got %v, %v", s, err)
	}
	if _, err := NewFromConfig(context.Background(), config.StorageConfig{Backend: "s3"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	if _, err := NewFromConfig(context.Background(), config.StorageConfig{Backend: "minio"}); err == nil {
		t.Fatalf("expected error for missing minio endpoint")
	}
	if _, err := NewFromConfig(context.Background(), config.StorageConfig{Backend: "gcs"}); err == nil {
		t.Fatalf("expected error for missing gcs bucket")
	}
}
