package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"strings"
	"testing"

	"github.com/jittakal/targets3/internal/errors"
)

type fakeObjectWriter struct {
	buf      bytes.Buffer
	closeErr error
	closed   bool
}

func (w *fakeObjectWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *fakeObjectWriter) Close() error {
	w.closed = true
	return w.closeErr
}

func TestGCSConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  GCSConfig
		wantErr bool
	}{
		{"default credentials", GCSConfig{UseDefaultCredential: true}, false},
		{"credentials file", GCSConfig{CredentialsFile: "/path/to/creds.json"}, false},
		{"credentials json", GCSConfig{CredentialsJSON: `{"type":"service_account"}`}, false},
		{"both credential sources", GCSConfig{CredentialsFile: "f", CredentialsJSON: "{}"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGCSConfig_ClientOptions(t *testing.T) {
	tests := []struct {
		name   string
		config GCSConfig
		want   int
	}{
		{"nothing configured", GCSConfig{}, 0},
		{"default credentials ignore file", GCSConfig{UseDefaultCredential: true, CredentialsFile: "f"}, 0},
		{"endpoint and file", GCSConfig{Endpoint: "http://localhost:4443", CredentialsFile: "f"}, 2},
		{"json", GCSConfig{CredentialsJSON: "{}"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(tt.config.clientOptions()); got != tt.want {
				t.Errorf("len(clientOptions()) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGCSStore_PutObject(t *testing.T) {
	w := &fakeObjectWriter{}
	var gotBucket, gotKey string
	metrics := newMockMetrics()

	store := newGCSStore(func(ctx context.Context, bucket, key string) io.WriteCloser {
		gotBucket, gotKey = bucket, key
		return w
	}, testLogger(), metrics)

	if err := store.PutObject(context.Background(), "b1", "a/b.json", strings.NewReader("data\n"), 5); err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}

	if gotBucket != "b1" || gotKey != "a/b.json" {
		t.Errorf("object = %s/%s, want b1/a/b.json", gotBucket, gotKey)
	}
	if w.buf.String() != "data\n" {
		t.Errorf("written = %q, want data", w.buf.String())
	}
	if !w.closed {
		t.Error("writer should be closed to finalize the upload")
	}
	if metrics.uploaded["gcs/success"] != 1 {
		t.Errorf("success uploads = %d, want 1", metrics.uploaded["gcs/success"])
	}
}

func TestGCSStore_PutObjectCloseError(t *testing.T) {
	w := &fakeObjectWriter{closeErr: stderrors.New("precondition failed")}
	metrics := newMockMetrics()
	store := newGCSStore(func(ctx context.Context, bucket, key string) io.WriteCloser {
		return w
	}, testLogger(), metrics)

	err := store.PutObject(context.Background(), "b1", "k.json", strings.NewReader("x"), 1)

	var storageErr *errors.StorageError
	if !stderrors.As(err, &storageErr) {
		t.Fatalf("PutObject() error = %v, want StorageError", err)
	}
	if storageErr.Operation != "close" {
		t.Errorf("Operation = %q, want close", storageErr.Operation)
	}
	if metrics.errorCounts["gcs/close"] != 1 {
		t.Errorf("close errors = %d, want 1", metrics.errorCounts["gcs/close"])
	}
}

func TestGCSStore_Close(t *testing.T) {
	store := newGCSStore(nil, testLogger(), nil)

	if err := store.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	err := store.PutObject(context.Background(), "b1", "k.json", strings.NewReader("x"), 1)
	if !stderrors.Is(err, errors.ErrStoreClosed) {
		t.Errorf("PutObject() after Close error = %v, want ErrStoreClosed", err)
	}
}
