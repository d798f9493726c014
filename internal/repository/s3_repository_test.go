package repository

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	s3config "imgupload/internal/config"
)

type recordedRequest struct {
	method      string
	path        string
	contentType string
	body        string
}

func fakeS3(t *testing.T) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, recordedRequest{
			method:      r.Method,
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			body:        string(body),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), requests...)
	}
}

func TestS3RepositoryUploadFile(t *testing.T) {
	srv, requests := fakeS3(t)

	cfg := &s3config.S3Config{
		Endpoint:        srv.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		BucketName:      "blog",
		Region:          "us-east-1",
		Prefix:          "img_upload/",
	}
	mirror, err := NewS3Repository(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	payload := []byte("thumbnail bytes")
	err = mirror.UploadFile(context.Background(), "photo_tn.jpg", bytes.NewReader(payload), int64(len(payload)), "image/jpeg")
	require.NoError(t, err)

	var put *recordedRequest
	for _, req := range requests() {
		if req.method == http.MethodPut && strings.HasPrefix(req.path, "/blog/") {
			put = &req
		}
	}
	require.NotNil(t, put, "expected a PutObject request")
	assert.Equal(t, "/blog/img_upload/photo_tn.jpg", put.path)
	assert.Equal(t, "image/jpeg", put.contentType)
	assert.Contains(t, put.body, "thumbnail bytes")
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "http://localhost:9000", endpointURL("localhost:9000"))
	assert.Equal(t, "https://s3.example.com", endpointURL("https://s3.example.com"))
}
