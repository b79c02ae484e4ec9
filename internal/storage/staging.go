package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jittakal/targets3/internal/errors"
	"github.com/jittakal/targets3/pkg/storage"
)

// Ensure implementations satisfy interfaces at compile time.
var (
	_ storage.Stager       = (*DirStager)(nil)
	_ storage.Stager       = (*MemoryStager)(nil)
	_ storage.StagedObject = (*fileObject)(nil)
	_ storage.StagedObject = (*memoryObject)(nil)
)

// DefaultStagingDir returns the default parent directory of cycle directories.
func DefaultStagingDir() string {
	return filepath.Join(os.TempDir(), "targets3")
}

// DirStager stages objects as files in a directory private to one flush
// cycle. The directory is named after the cycle start time plus a random
// UUID so concurrent processes sharing a parent never collide.
type DirStager struct {
	dir string
	mu  sync.Mutex
}

// NewDirStager creates the cycle directory under baseDir.
func NewDirStager(baseDir string, now time.Time) (*DirStager, error) {
	if baseDir == "" {
		baseDir = DefaultStagingDir()
	}

	name := now.Format("2006-01-02-15-04-05") + "-" + uuid.NewString()
	dir := filepath.Join(baseDir, name)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &errors.StagingError{Operation: "mkdir", Name: dir, Err: err}
	}

	return &DirStager{dir: dir}, nil
}

// DirStagerFactory returns a factory creating one DirStager per flush cycle.
func DirStagerFactory(baseDir string) storage.StagerFactory {
	return func() (storage.Stager, error) {
		return NewDirStager(baseDir, time.Now())
	}
}

// Dir returns the cycle directory.
func (s *DirStager) Dir() string {
	return s.dir
}

// Create creates a new staging file in the cycle directory.
func (s *DirStager) Create(ctx context.Context, name string) (storage.StagedObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, &errors.StagingError{Operation: "create", Name: name, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.CreateTemp(s.dir, sanitizeName(name)+"-*")
	if err != nil {
		return nil, &errors.StagingError{Operation: "create", Name: name, Err: err}
	}

	return &fileObject{name: name, file: f}, nil
}

// Cleanup removes the cycle directory and everything in it.
func (s *DirStager) Cleanup() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return &errors.StagingError{Operation: "cleanup", Name: s.dir, Err: err}
	}
	return nil
}

func sanitizeName(name string) string {
	r := strings.NewReplacer(string(filepath.Separator), "_", ":", "_")
	return r.Replace(name)
}

type fileObject struct {
	name string
	file *os.File
	size int64
}

func (o *fileObject) Write(p []byte) (int, error) {
	n, err := o.file.Write(p)
	o.size += int64(n)
	return n, err
}

func (o *fileObject) Name() string {
	return o.name
}

func (o *fileObject) Close() error {
	if err := o.file.Close(); err != nil {
		return &errors.StagingError{Operation: "close", Name: o.name, Err: err}
	}
	return nil
}

func (o *fileObject) Open() (io.ReadCloser, error) {
	f, err := os.Open(o.file.Name())
	if err != nil {
		return nil, &errors.StagingError{Operation: "open", Name: o.name, Err: err}
	}
	return f, nil
}

func (o *fileObject) Size() int64 {
	return o.size
}

func (o *fileObject) Remove() error {
	if err := os.Remove(o.file.Name()); err != nil && !os.IsNotExist(err) {
		return &errors.StagingError{Operation: "remove", Name: o.name, Err: err}
	}
	return nil
}

// MemoryStager stages objects in memory.
type MemoryStager struct {
	mu      sync.Mutex
	objects []*memoryObject
}

// NewMemoryStager creates a new in-memory stager.
func NewMemoryStager() *MemoryStager {
	return &MemoryStager{}
}

// MemoryStagerFactory returns a factory creating one MemoryStager per flush cycle.
func MemoryStagerFactory() storage.StagerFactory {
	return func() (storage.Stager, error) {
		return NewMemoryStager(), nil
	}
}

// Create starts a new in-memory object.
func (s *MemoryStager) Create(ctx context.Context, name string) (storage.StagedObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, &errors.StagingError{Operation: "create", Name: name, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obj := &memoryObject{name: name}
	s.objects = append(s.objects, obj)
	return obj, nil
}

// Cleanup releases all objects.
func (s *MemoryStager) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, obj := range s.objects {
		obj.Remove()
	}
	s.objects = nil
	return nil
}

type memoryObject struct {
	name string
	mu   sync.Mutex
	buf  *bytes.Buffer
}

func (o *memoryObject) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.buf == nil {
		o.buf = &bytes.Buffer{}
	}
	return o.buf.Write(p)
}

func (o *memoryObject) Name() string {
	return o.name
}

func (o *memoryObject) Close() error {
	return nil
}

func (o *memoryObject) Open() (io.ReadCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.buf == nil {
		return nil, &errors.StagingError{Operation: "open", Name: o.name, Err: fmt.Errorf("object removed or empty")}
	}
	return memoryReader{bytes.NewReader(o.buf.Bytes())}, nil
}

func (o *memoryObject) Size() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.buf == nil {
		return 0
	}
	return int64(o.buf.Len())
}

func (o *memoryObject) Remove() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buf = nil
	return nil
}

// memoryReader keeps Seek and ReadAt visible to uploaders that use them.
type memoryReader struct {
	*bytes.Reader
}

func (memoryReader) Close() error { return nil }
