package httpx

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

func TestGetJSON(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Write([]byte(`{"value": 42}`))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"value":`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New("test", time.Second)
	ctx := context.Background()

	var v struct {
		Value int `json:"value"`
	}
	found, err := c.GetJSON(ctx, srv.URL+"/ok", &v)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 42, v.Value)

	found, err = c.GetJSON(ctx, srv.URL+"/missing", &v)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = c.GetJSON(ctx, srv.URL+"/empty", &v)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = c.GetJSON(ctx, srv.URL+"/broken", &v)
	assert.ErrorContains(t, err, "failed to decode response")
}

func TestGetJSONOpensBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New("test", time.Second)
	var v any
	for range 3 {
		_, err := c.GetJSON(context.Background(), srv.URL, &v)
		assert.ErrorIs(t, err, ErrUnexpectedStatus)
	}

	_, err := c.GetJSON(context.Background(), srv.URL, &v)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSONTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := New("test", 50*time.Millisecond)
	var v any
	_, err := c.GetJSON(context.Background(), srv.URL, &v)
	assert.Error(t, err)
}
