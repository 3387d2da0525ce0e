package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"printfleet/internal/config"
	"printfleet/internal/protocol"
)

// ErrCredentialRejected means the server refused the client token. Retrying
// with the same credential cannot succeed, so the caller should give up.
var ErrCredentialRejected = errors.New("client token rejected")

// wsURL turns the configured server base URL into a websocket endpoint.
func wsURL(serverURL, path string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = path
	return u.String(), nil
}

// Register enrolls this host with the control plane and returns the identity
// token. One registration per call; the socket is closed before returning.
func Register(ctx context.Context, cfg config.AgentConfig) (string, error) {
	endpoint, err := wsURL(cfg.ServerURL, "/ws/register")
	if err != nil {
		return "", err
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("dial registration channel: %w", err)
	}
	defer func() { _ = ws.Close() }()

	req := protocol.RegistrationRequest{
		ClientToken: cfg.ClientToken,
		SystemInfo:  CollectSystemInfo(),
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal registration request: %w", err)
	}

	_ = ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return "", fmt.Errorf("send registration request: %w", err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, protocol.CloseInvalidCredential) {
			return "", ErrCredentialRejected
		}
		return "", fmt.Errorf("read registration response: %w", err)
	}

	var resp protocol.RegistrationResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode registration response: %w", err)
	}
	if resp.Status != "success" || resp.AgentToken == "" {
		if resp.Message == "invalid client token" {
			return "", ErrCredentialRejected
		}
		return "", fmt.Errorf("registration failed: %s", resp.Message)
	}

	return resp.AgentToken, nil
}
