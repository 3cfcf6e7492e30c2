package allocation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *Client {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Token = "test-token"
	cfg.RetryDelay = time.Millisecond
	return NewClient(cfg)
}

func TestAllocateSuccess(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/allocate/q1", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := testClient(srv.URL).Allocate(context.Background(), "q1")

	require.NoError(t, err)
	assert.Equal(t, int32(1), requests.Load())
}

func TestAllocateConflictIsBenignAndNotRetried(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	err := testClient(srv.URL).Allocate(context.Background(), "q1")

	assert.ErrorIs(t, err, ErrAlreadyAllocated)
	assert.Equal(t, int32(1), requests.Load())
}

func TestAllocateRetriesServerErrors(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := testClient(srv.URL).Allocate(context.Background(), "q1")

	require.NoError(t, err)
	assert.Equal(t, int32(3), requests.Load())
}

func TestAllocateGivesUpAfterMaxRetries(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	err := client.Allocate(context.Background(), "q1")

	require.Error(t, err)
	var se *StatusError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, int32(client.cfg.MaxRetries+1), requests.Load())
}

func TestAllocateClientErrorIsTerminal(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := testClient(srv.URL).Allocate(context.Background(), "q1")

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, int32(1), requests.Load())
}

func TestAllocateEscapesQuestionID(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := testClient(srv.URL).Allocate(context.Background(), "q 1/x")

	require.NoError(t, err)
	assert.Equal(t, "/allocate/q%201%2Fx", path)
}
