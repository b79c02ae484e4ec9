package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"
)

func TestNewDirStager(t *testing.T) {
	base := t.TempDir()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	stager, err := NewDirStager(base, now)
	if err != nil {
		t.Fatalf("NewDirStager() error = %v", err)
	}

	name := filepath.Base(stager.Dir())
	pattern := regexp.MustCompile(`^2024-01-02-03-04-05-[0-9a-f-]{36}$`)
	if !pattern.MatchString(name) {
		t.Errorf("cycle dir name = %q, want date plus uuid", name)
	}

	if _, err := os.Stat(stager.Dir()); err != nil {
		t.Errorf("cycle dir should exist: %v", err)
	}

	other, err := NewDirStager(base, now)
	if err != nil {
		t.Fatalf("NewDirStager() error = %v", err)
	}
	if other.Dir() == stager.Dir() {
		t.Error("two cycles started in the same second share a directory")
	}
}

func TestDirStager_Lifecycle(t *testing.T) {
	stager, err := NewDirStager(t.TempDir(), time.Now())
	if err != nil {
		t.Fatalf("NewDirStager() error = %v", err)
	}

	obj, err := stager.Create(context.Background(), "orders::2024-1-2")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := io.WriteString(obj, "hello\n"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := obj.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if obj.Size() != 6 {
		t.Errorf("Size() = %d, want 6", obj.Size())
	}
	if obj.Name() != "orders::2024-1-2" {
		t.Errorf("Name() = %q", obj.Name())
	}

	r, err := obj.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "hello\n" {
		t.Errorf("content = %q, want hello", data)
	}

	if err := obj.Remove(); err != nil {
		t.Errorf("Remove() error = %v", err)
	}
	if err := obj.Remove(); err != nil {
		t.Errorf("second Remove() error = %v", err)
	}

	if err := stager.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if _, err := os.Stat(stager.Dir()); !os.IsNotExist(err) {
		t.Errorf("cycle dir should be removed, stat err = %v", err)
	}
}

func TestDirStager_CreateCancelled(t *testing.T) {
	stager, err := NewDirStager(t.TempDir(), time.Now())
	if err != nil {
		t.Fatalf("NewDirStager() error = %v", err)
	}
	defer stager.Cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := stager.Create(ctx, "x"); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestMemoryStager(t *testing.T) {
	stager := NewMemoryStager()

	obj, err := stager.Create(context.Background(), "a")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	io.WriteString(obj, "abc")
	obj.Close()

	r, err := obj.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, ok := r.(io.Seeker); !ok {
		t.Error("memory reader should be seekable")
	}
	data, _ := io.ReadAll(r)
	if string(data) != "abc" {
		t.Errorf("content = %q, want abc", data)
	}

	if err := stager.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if obj.Size() != 0 {
		t.Errorf("Size() after cleanup = %d, want 0", obj.Size())
	}
	if _, err := obj.Open(); err == nil {
		t.Error("Open() after cleanup should fail")
	}
}

func TestStagerFactories(t *testing.T) {
	base := t.TempDir()

	dirStager, err := DirStagerFactory(base)()
	if err != nil {
		t.Fatalf("DirStagerFactory() error = %v", err)
	}
	defer dirStager.Cleanup()

	if _, ok := dirStager.(*DirStager); !ok {
		t.Errorf("DirStagerFactory returned %T", dirStager)
	}

	memStager, err := MemoryStagerFactory()()
	if err != nil {
		t.Fatalf("MemoryStagerFactory() error = %v", err)
	}
	if _, ok := memStager.(*MemoryStager); !ok {
		t.Errorf("MemoryStagerFactory returned %T", memStager)
	}
}
