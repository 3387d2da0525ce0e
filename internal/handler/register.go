package handler

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"printfleet/internal/auth"
	"printfleet/internal/middleware"
	"printfleet/internal/protocol"
	"printfleet/internal/store"
)

// RegisterHandler runs the one-shot registration channel: an agent connects,
// presents the shared client token and its system snapshot, and receives an
// identity token. The socket is closed either way; a session is a separate
// connection.
type RegisterHandler struct {
	Store        *store.Store
	ClientSecret string
	TokenConfig  auth.TokenConfig
	Limiter      *middleware.RateLimiter
	Log          zerolog.Logger
}

const registerReadWait = 10 * time.Second

func (h *RegisterHandler) Serve(c *gin.Context) {
	if h.Limiter != nil && !h.Limiter.Allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer func() { _ = ws.Close() }()

	ws.SetReadLimit(64 * 1024)
	_ = ws.SetReadDeadline(time.Now().Add(registerReadWait))

	_, data, err := ws.ReadMessage()
	if err != nil {
		return
	}

	var req protocol.RegistrationRequest
	if err := json.Unmarshal(data, &req); err != nil || req.ClientToken == "" {
		closeWith(ws, protocol.CloseMalformedPayload, "malformed registration payload")
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.ClientToken), []byte(h.ClientSecret)) != 1 {
		h.Log.Warn().Str("remote", c.ClientIP()).Msg("registration with invalid client token")
		closeWith(ws, protocol.CloseInvalidCredential, "invalid client token")
		return
	}

	now := time.Now().UnixMilli()
	agent := h.Store.CreateAgent(clientIDFor(req.ClientToken), req.SystemInfo, now)

	token, err := auth.CreateToken(agent.ID, agent.ClientID, h.TokenConfig)
	if err != nil {
		h.Log.Error().Err(err).Msg("mint agent token")
		closeWith(ws, protocol.CloseInternalFault, "internal error")
		return
	}

	resp, _ := json.Marshal(protocol.RegistrationResponse{Status: "success", AgentToken: token})
	if err := ws.WriteMessage(websocket.TextMessage, resp); err != nil {
		return
	}

	h.Log.Info().Str("agent_id", agent.ID).Str("hostname", agent.Hostname).Msg("agent registered")

	deadline := time.Now().Add(time.Second)
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}

// closeWith reports the failure in-band before sending the close frame, so
// agents that don't surface close reasons still see why they were rejected.
func closeWith(ws *websocket.Conn, code int, reason string) {
	resp, _ := json.Marshal(protocol.RegistrationResponse{Status: "error", Message: reason})
	_ = ws.WriteMessage(websocket.TextMessage, resp)
	deadline := time.Now().Add(time.Second)
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}

// clientIDFor records which shared credential enrolled the agent without
// persisting the credential itself.
func clientIDFor(clientToken string) string {
	sum := sha256.Sum256([]byte(clientToken))
	return hex.EncodeToString(sum[:4])
}
