package kiosk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSource(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/api/kiosk-data", r.URL.Path)
		code := int(status.Load())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if code != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":"Failed to load data","buildings":[],"connections":[],"timestamp":1}`))
			return
		}
		_ = json.NewEncoder(w).Encode(sampleSnapshot())
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/api/kiosk-data", time.Second)
	snap, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Buildings, 2)
	assert.Equal(t, "동행관", snap.Buildings[0].Name)
	assert.Equal(t, "로비", snap.Buildings[0].Floors[0].Rooms[0].Name)
	require.Len(t, snap.Connections, 1)
	assert.Equal(t, int64(1700000000000), snap.Timestamp)

	// 失败响应即使带空列表也按失败处理，且不重试
	status.Store(http.StatusInternalServerError)
	hits.Store(0)
	_, err = src.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())

	c := NewCache(src, time.Minute, nil, log.DefaultLogger)
	require.Error(t, c.Refresh(context.Background()))
	assert.Equal(t, FetchFailedMessage, c.State().Error)
	assert.Empty(t, c.State().Buildings)
}

func TestHTTPSourceUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPSource(url, 200*time.Millisecond).Fetch(context.Background())
	assert.Error(t, err)
}
