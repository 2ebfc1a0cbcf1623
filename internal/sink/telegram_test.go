package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegram_SendsSummaryAtMostOncePerInterval(t *testing.T) {
	var hits atomic.Int32
	var gotText atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		assert.Equal(t, "42", payload["chat_id"])
		gotText.Store(payload["text"])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	now := time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC)
	tg := NewTelegram("TOKEN", "42", "", time.Hour)
	tg.BaseURL = srv.URL
	tg.now = func() time.Time { return now }

	w := sampleWindow()
	require.NoError(t, tg.Write(context.Background(), w))
	tg.Wait()
	require.NoError(t, tg.Write(context.Background(), w))
	tg.Wait()
	assert.Equal(t, int32(1), hits.Load())
	assert.Contains(t, gotText.Load(), "portfolio 1.0000")

	now = now.Add(time.Hour)
	require.NoError(t, tg.Write(context.Background(), w))
	tg.Wait()
	assert.Equal(t, int32(2), hits.Load())
}

func TestTelegram_FailedSendDoesNotUseUpInterval(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	tg := NewTelegram("bad", "42", "", time.Hour)
	tg.BaseURL = srv.URL
	tg.MaxRetries = 0

	require.NoError(t, tg.Write(context.Background(), sampleWindow()))
	tg.Wait()
	require.NoError(t, tg.Write(context.Background(), sampleWindow()))
	tg.Wait()
	assert.Equal(t, int32(2), hits.Load(), "second pass retries after a failure")
}

func TestTelegram_SendWithRetryReportsStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	tg := NewTelegram("bad", "42", "", time.Hour)
	tg.BaseURL = srv.URL
	tg.MaxRetries = 0

	err := tg.SendWithRetry(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Equal(t, int32(1), hits.Load())
}

func TestTelegram_SlowChatDoesNotDelaySnapshot(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42", "", time.Hour)
	tg.BaseURL = srv.URL
	path := filepath.Join(t.TempDir(), "window.json")
	js := NewJSONFile(path)

	start := time.Now()
	w := sampleWindow()
	require.NoError(t, tg.Write(context.Background(), w))
	require.NoError(t, js.Write(context.Background(), w))
	assert.Less(t, time.Since(start), time.Second)

	got, err := LoadWindow(path)
	require.NoError(t, err)
	assert.Equal(t, w.Size, got.Size)

	close(release)
	tg.Wait()
}
