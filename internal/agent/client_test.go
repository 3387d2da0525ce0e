package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printfleet/internal/config"
	"printfleet/internal/protocol"
)

func TestWSURL(t *testing.T) {
	cases := []struct {
		in   string
		path string
		want string
	}{
		{"http://fleet.example:3000", "/ws/register", "ws://fleet.example:3000/ws/register"},
		{"https://fleet.example", "/ws/session", "wss://fleet.example/ws/session"},
		{"ws://fleet.example", "/ws/session", "ws://fleet.example/ws/session"},
	}
	for _, c := range cases {
		got, err := wsURL(c.in, c.path)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}

	_, err := wsURL("ftp://fleet.example", "/ws/register")
	assert.Error(t, err)
}

func TestTokenPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.token")

	if _, ok := loadToken(path); ok {
		t.Fatalf("missing file should not yield a token")
	}

	require.NoError(t, saveToken(path, "tok-123"))

	token, ok := loadToken(path)
	require.True(t, ok)
	assert.Equal(t, "tok-123", token)
}

func TestRunRetriesRegistrationOnFixedInterval(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := config.AgentConfig{
		ServerURL:         srv.URL,
		ClientToken:       "tok",
		AgentTokenFile:    filepath.Join(t.TempDir(), "agent.token"),
		DriverWorkDir:     t.TempDir(),
		ReconnectInterval: 50 * time.Millisecond,
		HeartbeatInterval: time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(cfg, zerolog.Nop()).Run(ctx) }()

	require.Eventually(t, func() bool {
		return attempts.Load() >= 3
	}, 2*time.Second, 10*time.Millisecond, "agent should keep retrying registration")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
}

func TestSessionAnswersMalformedFrameWithError(t *testing.T) {
	upgrader := websocket.Upgrader{}
	errMsgs := make(chan protocol.ErrorMessage, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/session" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		if err := ws.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
			return
		}
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			env, err := protocol.Decode(data)
			if err != nil || env.Type != protocol.TypeError {
				continue
			}
			var msg protocol.ErrorMessage
			if json.Unmarshal(env.Payload, &msg) == nil {
				errMsgs <- msg
				return
			}
		}
	}))
	defer srv.Close()

	tokenFile := filepath.Join(t.TempDir(), "agent.token")
	require.NoError(t, saveToken(tokenFile, "tok-abc"))

	cfg := config.AgentConfig{
		ServerURL:         srv.URL,
		ClientToken:       "tok",
		AgentTokenFile:    tokenFile,
		DriverWorkDir:     t.TempDir(),
		ReconnectInterval: 50 * time.Millisecond,
		HeartbeatInterval: time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go New(cfg, zerolog.Nop()).Run(ctx)

	select {
	case msg := <-errMsgs:
		assert.Contains(t, msg.Message, "malformed")
	case <-time.After(2 * time.Second):
		t.Fatal("agent never answered the malformed frame")
	}
}

func TestCollectSystemInfoHasHostname(t *testing.T) {
	info := CollectSystemInfo()
	assert.NotEmpty(t, info.Hostname)
	assert.Equal(t, Version, info.AgentVersion)
}
