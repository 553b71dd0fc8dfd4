package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvokeFallbackOrder(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	var order []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		mu.Lock()
		order = append(order, r.URL.Path)
		mu.Unlock()
		assert.Equal(t, "key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer bearer", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"hello":"world"}`, string(body))
		if r.URL.Path == "/c" {
			_, _ = w.Write([]byte(`{"success":true}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	resp, err := c.Invoke(context.Background(),
		[]string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/c", srv.URL + "/d"},
		Auth{Key: "key", Bearer: "bearer"}, map[string]string{"hello": "world"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	mu.Lock()
	assert.Equal(t, []string{"/a", "/b", "/c"}, order)
	mu.Unlock()
	assert.Equal(t, srv.URL+"/c", resp.Endpoint)
	assert.Len(t, resp.Attempts, 3)

	var out struct{ Success bool }
	require.NoError(t, resp.Decode(&out))
	assert.True(t, out.Success)
}

func TestInvokeStopsOnApplicationFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"success":false,"error":"nope"}`))
	}))
	defer srv.Close()

	resp, err := NewClient(time.Second).Invoke(context.Background(), []string{srv.URL + "/1", srv.URL + "/2"}, KeyAuth("k"), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls)
	assert.Contains(t, string(resp.Body), "nope")
}

func TestInvokeTotalFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		if r.URL.Path == "/2" {
			_, _ = w.Write([]byte(`{"error":"second"}`))
			return
		}
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	candidates := []string{srv.URL + "/1", srv.URL + "/2", srv.URL + "/3", deadURL + "/4"}
	_, err := NewClient(time.Second).Invoke(context.Background(), candidates, KeyAuth("k"), map[string]any{})
	require.Error(t, err)

	var ierr *InvokeError
	require.True(t, errors.As(err, &ierr))
	assert.Len(t, ierr.Attempts, 4)
	for _, u := range candidates {
		assert.Contains(t, err.Error(), u+": ")
	}
	assert.Contains(t, err.Error(), "HTTP 502: second")

	var last map[string]string
	require.True(t, ierr.DecodeLast(&last))
	assert.Equal(t, "second", last["error"])
}

func TestInvokeNoCandidates(t *testing.T) {
	_, err := NewClient(0).Invoke(context.Background(), nil, KeyAuth("k"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoEndpoint))
	assert.Equal(t, ErrNoEndpoint.Error(), err.Error())
}

func TestInvokeAttemptTimeout(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}))
	defer fast.Close()

	resp, err := NewClient(50*time.Millisecond).Invoke(context.Background(), []string{slow.URL, fast.URL}, KeyAuth("k"), nil)
	require.NoError(t, err)
	assert.Equal(t, fast.URL, resp.Endpoint)
	require.Len(t, resp.Attempts, 2)
	assert.Error(t, resp.Attempts[0].Err)
	assert.True(t, strings.HasPrefix(err2str(resp.Attempts[0]), slow.URL))
}

func TestInvokeCanceledStopsFallback(t *testing.T) {
	var calls int32
	hang := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-r.Context().Done()
	}))
	defer hang.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	defer cancel()

	_, err := NewClient(5*time.Second).Invoke(ctx, []string{hang.URL + "/a", hang.URL + "/b"}, KeyAuth("k"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrNoEndpoint))

	var ierr *InvokeError
	require.True(t, errors.As(err, &ierr))
	require.Len(t, ierr.Attempts, 1)
	assert.Equal(t, hang.URL+"/a", ierr.Attempts[0].Endpoint)
	assert.NotContains(t, err.Error(), "/b")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestInvokeCanceledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(time.Second).Invoke(ctx, []string{"http://127.0.0.1:1/a"}, KeyAuth("k"), nil)
	assert.ErrorIs(t, err, context.Canceled)
	var ierr *InvokeError
	require.True(t, errors.As(err, &ierr))
	assert.Empty(t, ierr.Attempts)
}

func err2str(a Attempt) string { return a.Endpoint + ": " + a.Failure() }
