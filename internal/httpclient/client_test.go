package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "uk/uk", r.URL.Query().Get("tag"))
		assert.Equal(t, "fixed", r.URL.Query().Get("keep"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		_, _ = w.Write([]byte(`{"status":"ok","total":3}`))
	}))
	defer srv.Close()

	var out struct {
		Status string `json:"status"`
		Total  int    `json:"total"`
	}
	c := New(WithHeader("X-Api-Key", "secret"))
	err := c.GetJSON(context.Background(), srv.URL+"/search?keep=fixed", url.Values{"tag": {"uk/uk"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, 3, out.Total)
}

func TestPostJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	require.NoError(t, New().PostJSON(context.Background(), srv.URL, map[string]any{"a": 1}, nil))
	assert.Equal(t, float64(1), got["a"])
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := New().GetJSON(context.Background(), srv.URL, nil, nil)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Contains(t, err.Error(), "nope")
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	err := New(WithTimeout(50*time.Millisecond)).GetJSON(context.Background(), srv.URL, nil, nil)
	assert.Error(t, err)
}

func TestWithCopiesHeaders(t *testing.T) {
	base := New(WithHeader("A", "1"))
	derived := base.With(WithHeader("B", "2"))
	assert.Len(t, base.headers, 1)
	assert.Len(t, derived.headers, 2)
}
