package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTelegram(serverURL string, client *http.Client, minLevel Level) *Telegram {
	t := NewTelegram("test-token", "test-chat", minLevel, logrus.New())
	t.httpClient = client
	t.baseURL = serverURL
	return t
}

func TestNewTelegramDisabled(t *testing.T) {
	n := NewTelegram("", "", LevelInfo, nil)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Send(context.Background(), "test"))
}

func TestTelegramSendSuccess(t *testing.T) {
	var chatID, text, mode string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatID = r.URL.Query().Get("chat_id")
		text = r.URL.Query().Get("text")
		mode = r.URL.Query().Get("parse_mode")
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}))
	defer server.Close()

	n := newTestTelegram(server.URL, server.Client(), LevelInfo)
	require.NoError(t, n.Send(context.Background(), "hello"))

	assert.Equal(t, "test-chat", chatID)
	assert.Equal(t, "hello", text)
	assert.Equal(t, "HTML", mode)
}

func TestTelegramSendServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"description": "chat not found"})
	}))
	defer server.Close()

	n := newTestTelegram(server.URL, server.Client(), LevelInfo)
	err := n.Send(context.Background(), "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramNotifyFiltersByLevel(t *testing.T) {
	var calls int32
	var lastText atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		lastText.Store(r.URL.Query().Get("text"))
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}))
	defer server.Close()

	n := newTestTelegram(server.URL, server.Client(), LevelError)

	Success(n, "simulator 3 finished")
	Error(n, "rule <7> failed")

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "<b>stockctl Error</b>\nrule &lt;7&gt; failed", lastText.Load())
}
