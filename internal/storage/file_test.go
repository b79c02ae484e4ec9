package storage

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jittakal/targets3/internal/errors"
)

func TestNewFileStore(t *testing.T) {
	tests := []struct {
		name     string
		basePath string
		wantErr  bool
	}{
		{"valid base path", filepath.Join(t.TempDir(), "store"), false},
		{"empty base path", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewFileStore(FileConfig{BasePath: tt.basePath}, testLogger(), newMockMetrics())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFileStore() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && store.Name() != "file" {
				t.Errorf("Name() = %q, want file", store.Name())
			}
		})
	}
}

func TestFileStore_PutObject(t *testing.T) {
	base := t.TempDir()
	metrics := newMockMetrics()
	store, err := NewFileStore(FileConfig{BasePath: base}, testLogger(), metrics)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	key := "source=acme/collection=A/year=2024/month=1/day=2/A.json"
	body := "{\"a\":1}\n"

	if err := store.PutObject(context.Background(), "b1", key, strings.NewReader(body), int64(len(body))); err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(base, "b1", filepath.FromSlash(key)))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != body {
		t.Errorf("object = %q, want %q", data, body)
	}
	if metrics.uploaded["file/success"] != 1 {
		t.Errorf("success uploads = %d, want 1", metrics.uploaded["file/success"])
	}

	// same key overwrites
	if err := store.PutObject(context.Background(), "b1", key, strings.NewReader("x\n"), 2); err != nil {
		t.Fatalf("PutObject() overwrite error = %v", err)
	}
	data, _ = os.ReadFile(filepath.Join(base, "b1", filepath.FromSlash(key)))
	if string(data) != "x\n" {
		t.Errorf("object after overwrite = %q, want x", data)
	}

	entries, _ := os.ReadDir(filepath.Join(base, "b1", "source=acme", "collection=A", "year=2024", "month=1", "day=2"))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1 (no leftover temp files)", len(entries))
	}
}

func TestFileStore_PutObjectRejectsEscapingKey(t *testing.T) {
	metrics := newMockMetrics()
	store, err := NewFileStore(FileConfig{BasePath: t.TempDir()}, testLogger(), metrics)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	err = store.PutObject(context.Background(), "b1", "../../etc/passwd", strings.NewReader("x"), 1)

	var storageErr *errors.StorageError
	if !stderrors.As(err, &storageErr) {
		t.Fatalf("PutObject() error = %v, want StorageError", err)
	}
	if storageErr.Operation != "path" {
		t.Errorf("Operation = %q, want path", storageErr.Operation)
	}
	if metrics.errorCounts["file/path"] != 1 {
		t.Errorf("path errors = %d, want 1", metrics.errorCounts["file/path"])
	}
}

func TestFileStore_PutObjectCancelled(t *testing.T) {
	store, err := NewFileStore(FileConfig{BasePath: t.TempDir()}, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = store.PutObject(ctx, "b1", "k.json", strings.NewReader("x"), 1)
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("PutObject() error = %v, want context.Canceled", err)
	}
}

func TestFileStore_Close(t *testing.T) {
	store, err := NewFileStore(FileConfig{BasePath: t.TempDir()}, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	err = store.PutObject(context.Background(), "b1", "k.json", strings.NewReader("x"), 1)
	if !stderrors.Is(err, errors.ErrStoreClosed) {
		t.Errorf("PutObject() after Close error = %v, want ErrStoreClosed", err)
	}
}
