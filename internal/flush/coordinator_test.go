package flush

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jittakal/targets3/internal/encoder"
	"github.com/jittakal/targets3/internal/errors"
	"github.com/jittakal/targets3/internal/storage"
	"github.com/jittakal/targets3/pkg/message"
	pkgstorage "github.com/jittakal/targets3/pkg/storage"
)

// mockStore records uploaded objects in memory.
type mockStore struct {
	mu       sync.Mutex
	objects  map[string]string
	failWhen func(key string) error
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	ctxErrs  int
}

func newMockStore() *mockStore {
	return &mockStore{objects: make(map[string]string)}
}

func (m *mockStore) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64) error {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		seen := m.maxSeen.Load()
		if n <= seen || m.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if ctx.Err() != nil {
		m.ctxErrs++
	}
	if m.failWhen != nil {
		if err := m.failWhen(key); err != nil {
			return &errors.StorageError{Backend: "mock", Operation: "upload", Bucket: bucket, Key: key, Err: err}
		}
	}
	m.objects[bucket+"/"+key] = string(data)
	return nil
}

func (m *mockStore) Name() string { return "mock" }

func (m *mockStore) Close() error { return nil }

type mockFlushMetrics struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *mockFlushMetrics) IncFlushes(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *mockFlushMetrics) ObserveFlushDuration(float64) {}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var day = message.Date{Year: 2024, Month: time.January, Day: 2}

func batch(stream string, lines ...string) message.Batch {
	return message.Batch{
		Partition: message.Partition{Stream: stream, Date: day},
		Lines:     lines,
	}
}

func newTestCoordinator(store pkgstorage.ObjectStore, stagers pkgstorage.StagerFactory, metrics MetricsCollector, maxUploads int) *Coordinator {
	return NewCoordinator(
		Config{Bucket: "b1", MaxConcurrentUploads: maxUploads},
		store,
		encoder.NewJSONLinesEncoder(),
		storage.NewKeyBuilder("acme"),
		stagers,
		testLogger(),
		metrics,
	)
}

func TestCoordinator_FlushWritesOneObjectPerPartition(t *testing.T) {
	store := newMockStore()
	metrics := &mockFlushMetrics{}
	c := newTestCoordinator(store, storage.MemoryStagerFactory(), metrics, 2)

	result := c.Flush(context.Background(), []message.Batch{
		batch("A", "a1\n", "a2\n"),
		batch("B", "b1\n"),
	})

	if err := result.Err(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if result.Outcome() != "success" {
		t.Errorf("Outcome() = %q, want success", result.Outcome())
	}

	want := map[string]string{
		"b1/source=acme/collection=A/year=2024/month=1/day=2/A.json": "a1\na2\n",
		"b1/source=acme/collection=B/year=2024/month=1/day=2/B.json": "b1\n",
	}
	if len(store.objects) != len(want) {
		t.Fatalf("stored %d objects, want %d: %v", len(store.objects), len(want), store.objects)
	}
	for key, content := range want {
		if store.objects[key] != content {
			t.Errorf("object %s = %q, want %q", key, store.objects[key], content)
		}
	}

	if len(result.Uploaded) != 2 || result.Uploaded[0].PartitionKey != "A::2024-1-2" {
		t.Errorf("Uploaded = %+v", result.Uploaded)
	}
	if result.Uploaded[0].Records != 2 || result.Uploaded[0].SizeBytes != 6 {
		t.Errorf("Uploaded[0] = %+v, want 2 records and 6 bytes", result.Uploaded[0])
	}
	if len(metrics.outcomes) != 1 || metrics.outcomes[0] != "success" {
		t.Errorf("flush outcomes = %v, want [success]", metrics.outcomes)
	}
}

func TestCoordinator_PartialFailureIsolation(t *testing.T) {
	store := newMockStore()
	store.failWhen = func(key string) error {
		if strings.Contains(key, "collection=A/") {
			return stderrors.New("access denied")
		}
		return nil
	}
	c := newTestCoordinator(store, storage.MemoryStagerFactory(), nil, 4)

	result := c.Flush(context.Background(), []message.Batch{
		batch("A", "a1\n"),
		batch("B", "b1\n"),
		batch("C", "c1\n"),
	})

	if got := result.Outcome(); got != "partial" {
		t.Errorf("Outcome() = %s, want partial", got)
	}
	if len(result.Failures) != 1 {
		t.Fatalf("len(Failures) = %d, want 1", len(result.Failures))
	}
	if result.Failures[0].PartitionKey != "A::2024-1-2" {
		t.Errorf("failed partition = %s, want A::2024-1-2", result.Failures[0].PartitionKey)
	}

	var storageErr *errors.StorageError
	if !stderrors.As(result.Err(), &storageErr) {
		t.Errorf("Err() = %v, want to unwrap to StorageError", result.Err())
	}

	for _, stream := range []string{"B", "C"} {
		key := "b1/source=acme/collection=" + stream + "/year=2024/month=1/day=2/" + stream + ".json"
		if store.objects[key] != strings.ToLower(stream)+"1\n" {
			t.Errorf("object %s missing or wrong: %q", key, store.objects[key])
		}
	}
}

func TestCoordinator_CleansUpStagingDirectory(t *testing.T) {
	base := t.TempDir()
	store := newMockStore()
	store.failWhen = func(key string) error {
		if strings.Contains(key, "collection=A/") {
			return stderrors.New("boom")
		}
		return nil
	}
	c := newTestCoordinator(store, storage.DirStagerFactory(base), nil, 2)

	result := c.Flush(context.Background(), []message.Batch{
		batch("A", "a1\n"),
		batch("B", "b1\n"),
	})
	if len(result.Uploaded) != 1 {
		t.Errorf("len(Uploaded) = %d, want 1", len(result.Uploaded))
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("staging base has %d entries after flush, want 0", len(entries))
	}
}

func TestCoordinator_StagerFailureFailsEveryPartition(t *testing.T) {
	stagerErr := stderrors.New("disk full")
	c := newTestCoordinator(newMockStore(), func() (pkgstorage.Stager, error) {
		return nil, stagerErr
	}, nil, 1)

	result := c.Flush(context.Background(), []message.Batch{
		batch("A", "a\n"),
		batch("B", "b\n"),
	})

	if len(result.Failures) != 2 {
		t.Fatalf("len(Failures) = %d, want 2", len(result.Failures))
	}
	if result.Outcome() != "failure" {
		t.Errorf("Outcome() = %q, want failure", result.Outcome())
	}
	if !stderrors.Is(result.Err(), stagerErr) {
		t.Errorf("Err() = %v, want to wrap stager error", result.Err())
	}
}

func TestCoordinator_EmptyBatchFailsOnlyThatPartition(t *testing.T) {
	store := newMockStore()
	c := newTestCoordinator(store, storage.MemoryStagerFactory(), nil, 1)

	result := c.Flush(context.Background(), []message.Batch{
		batch("A"),
		batch("B", "b\n"),
	})

	if len(result.Failures) != 1 || !stderrors.Is(result.Failures[0], errors.ErrEmptyBatch) {
		t.Errorf("Failures = %v, want one ErrEmptyBatch", result.Failures)
	}
	if len(result.Uploaded) != 1 {
		t.Errorf("len(Uploaded) = %d, want 1", len(result.Uploaded))
	}
}

func TestCoordinator_NoBatches(t *testing.T) {
	metrics := &mockFlushMetrics{}
	c := newTestCoordinator(newMockStore(), storage.MemoryStagerFactory(), metrics, 1)

	result := c.Flush(context.Background(), nil)

	if result.Outcome() != "empty" {
		t.Errorf("Outcome() = %q, want empty", result.Outcome())
	}
	if result.Err() != nil {
		t.Errorf("Err() = %v, want nil", result.Err())
	}
	if len(metrics.outcomes) != 0 {
		t.Errorf("empty flush should not be counted, got %v", metrics.outcomes)
	}
}

func TestCoordinator_FlushIgnoresCancellation(t *testing.T) {
	store := newMockStore()
	c := newTestCoordinator(store, storage.MemoryStagerFactory(), nil, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := c.Flush(ctx, []message.Batch{batch("A", "a\n")})

	if result.Err() != nil {
		t.Fatalf("Flush() error = %v", result.Err())
	}
	if store.ctxErrs != 0 {
		t.Errorf("store saw %d cancelled contexts, want 0", store.ctxErrs)
	}
}

func TestCoordinator_BoundedUploads(t *testing.T) {
	store := newMockStore()
	store.delay = 20 * time.Millisecond
	c := newTestCoordinator(store, storage.MemoryStagerFactory(), nil, 2)

	var batches []message.Batch
	for _, s := range []string{"A", "B", "C", "D", "E", "F"} {
		batches = append(batches, batch(s, s+"\n"))
	}

	result := c.Flush(context.Background(), batches)
	if len(result.Uploaded) != 6 {
		t.Fatalf("len(Uploaded) = %d, want 6", len(result.Uploaded))
	}
	if got := store.maxSeen.Load(); got > 2 {
		t.Errorf("max concurrent uploads = %d, want <= 2", got)
	}
}

func TestCoordinator_IncrementalPartitionsGetDistinctKeys(t *testing.T) {
	store := newMockStore()
	c := newTestCoordinator(store, storage.MemoryStagerFactory(), nil, 1)

	times := []time.Time{
		time.Date(2024, 1, 2, 3, 4, 5, 1000, time.UTC),
		time.Date(2024, 1, 2, 3, 4, 5, 2000, time.UTC),
	}
	for _, ts := range times {
		c.now = func() time.Time { return ts }
		b := batch("events", "e\n")
		b.Partition.Incremental = true
		if err := c.Flush(context.Background(), []message.Batch{b}).Err(); err != nil {
			t.Fatalf("Flush() error = %v", err)
		}
	}

	if len(store.objects) != 2 {
		t.Errorf("stored %d objects, want 2: %v", len(store.objects), store.objects)
	}
}

func TestResult_Outcome(t *testing.T) {
	failure := &errors.PartitionFailure{PartitionKey: "A::2024-1-2", Err: stderrors.New("x")}

	tests := []struct {
		name   string
		result *Result
		want   string
	}{
		{"nil", nil, "empty"},
		{"empty", &Result{}, "empty"},
		{"success", &Result{Uploaded: []UploadedObject{{}}}, "success"},
		{"partial", &Result{Uploaded: []UploadedObject{{}}, Failures: []*errors.PartitionFailure{failure}}, "partial"},
		{"failure", &Result{Failures: []*errors.PartitionFailure{failure}}, "failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Outcome(); got != tt.want {
				t.Errorf("Outcome() = %q, want %q", got, tt.want)
			}
		})
	}
}
