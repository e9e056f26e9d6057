package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/webcapture/internal/capture"
)

// newTestClient creates a storage client pointed at a test server.
func newTestClient(t *testing.T, handler http.Handler) *storage.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(),
		option.WithEndpoint(server.URL+"/storage/v1/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client := newTestClient(t, http.NotFoundHandler())
	_, err = New(client, Config{})
	require.Error(t, err)
}

func TestPutObjectUploadsWithPrefix(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		gotName string
		gotBody string
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/shots/o")
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		mu.Lock()
		gotName = r.URL.Query().Get("name")
		gotBody = string(body)
		mu.Unlock()
		fmt.Fprintf(w, `{"name": %q, "bucket": "shots"}`, r.URL.Query().Get("name"))
	})

	store, err := New(newTestClient(t, handler), Config{Bucket: "shots", Prefix: "/captures/"})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "screenshots/2025-03-01/a.png", "image/png",
		bytes.NewReader([]byte("png-bytes")))
	require.NoError(t, err)
	require.Equal(t, "gs://shots/captures/screenshots/2025-03-01/a.png", uri)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "captures/screenshots/2025-03-01/a.png", gotName)
	require.Contains(t, gotBody, "png-bytes")
	require.Contains(t, gotBody, "image/png")
}

func TestGetObjectMapsMissingToNotFound(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "present.png") {
			_, _ = w.Write([]byte("image"))
			return
		}
		http.Error(w, `{"error":{"code":404,"message":"No such object"}}`, http.StatusNotFound)
	})
	store, err := New(newTestClient(t, handler), Config{Bucket: "shots"})
	require.NoError(t, err)

	data, err := store.GetObject(context.Background(), "present.png")
	require.NoError(t, err)
	require.Equal(t, []byte("image"), data)

	_, err = store.GetObject(context.Background(), "absent.png")
	require.ErrorIs(t, err, capture.ErrNotFound)
}

func TestDeleteObjectIgnoresMissing(t *testing.T) {
	t.Parallel()

	var deletes atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		deletes.Add(1)
		http.Error(w, `{"error":{"code":404,"message":"No such object"}}`, http.StatusNotFound)
	})
	store, err := New(newTestClient(t, handler), Config{Bucket: "shots"})
	require.NoError(t, err)

	require.NoError(t, store.DeleteObject(context.Background(), "gone.png"))
	require.Equal(t, int32(1), deletes.Load())
	require.Error(t, store.DeleteObject(context.Background(), " "))
}

func TestOpenFailsWhenBucketMissing(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":404,"message":"Not Found"}}`, http.StatusNotFound)
	})
	_, err := Open(context.Background(), newTestClient(t, handler), Config{Bucket: "missing"}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), `bucket "missing"`)
}
