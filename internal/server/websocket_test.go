package server

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"printfleet/internal/auth"
	"printfleet/internal/model"
	"printfleet/internal/protocol"
)

func (e *testEnv) wsURL(path string) string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + path
}

func register(t *testing.T, env *testEnv, clientToken string) (protocol.RegistrationResponse, error) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(env.wsURL("/ws/register"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	req := protocol.RegistrationRequest{
		ClientToken: clientToken,
		SystemInfo:  model.SystemInfo{Hostname: "field-hub", OS: "linux"},
	}
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp protocol.RegistrationResponse
	if err := conn.ReadJSON(&resp); err != nil {
		return protocol.RegistrationResponse{}, err
	}
	if resp.Status == "error" {
		// The server follows the in-band error with a close frame carrying
		// the failure code; surface that to the caller.
		_, _, err := conn.ReadMessage()
		return resp, err
	}
	return resp, nil
}

func TestRegistrationMintsAgentToken(t *testing.T) {
	env := newTestEnv(t)

	resp, err := register(t, env, "client-secret")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if resp.Status != "success" || resp.AgentToken == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	claims, err := auth.VerifyToken(resp.AgentToken, env.tokenCfg)
	if err != nil {
		t.Fatalf("minted token must verify: %v", err)
	}

	agent, ok := env.store.GetAgent(claims.AgentID)
	if !ok {
		t.Fatalf("registered agent should exist in the store")
	}
	if agent.Hostname != "field-hub" {
		t.Fatalf("system info not recorded: %+v", agent)
	}
}

func TestRegistrationRejectsInvalidClientToken(t *testing.T) {
	env := newTestEnv(t)

	resp, err := register(t, env, "wrong-secret")
	if resp.Status != "error" {
		t.Fatalf("expected error response, got %+v", resp)
	}
	if !websocket.IsCloseError(err, protocol.CloseInvalidCredential) {
		t.Fatalf("expected close code %d, got %v", protocol.CloseInvalidCredential, err)
	}
	if got := len(env.store.ListAgents()); got != 0 {
		t.Fatalf("no agent should be minted, got %d", got)
	}
}

func TestRegistrationRejectsMalformedPayload(t *testing.T) {
	env := newTestEnv(t)

	conn, _, err := websocket.DefaultDialer.Dial(env.wsURL("/ws/register"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp protocol.RegistrationResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if resp.Status != "error" {
		t.Fatalf("expected error response, got %+v", resp)
	}
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, protocol.CloseMalformedPayload) {
		t.Fatalf("expected close code %d, got %v", protocol.CloseMalformedPayload, err)
	}
}

func dialSession(t *testing.T, env *testEnv, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(env.wsURL("/ws/session")+"?token="+token, nil)
	if err != nil {
		t.Fatalf("Dial session: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func registeredAgent(t *testing.T, env *testEnv) (model.Agent, string) {
	t.Helper()
	resp, err := register(t, env, "client-secret")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	claims, err := auth.VerifyToken(resp.AgentToken, env.tokenCfg)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	agent, _ := env.store.GetAgent(claims.AgentID)
	return agent, resp.AgentToken
}

func TestSessionHeartbeat(t *testing.T) {
	env := newTestEnv(t)
	_, token := registeredAgent(t, env)

	conn := dialSession(t, env, token)
	if err := conn.WriteJSON(protocol.Heartbeat{Type: protocol.TypeHeartbeat}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp protocol.HeartbeatResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if resp.Type != protocol.TypeHeartbeatResponse || resp.Status != "ok" {
		t.Fatalf("unexpected heartbeat response: %+v", resp)
	}
}

func TestSessionRejectsUnknownMessageType(t *testing.T) {
	env := newTestEnv(t)
	_, token := registeredAgent(t, env)

	conn := dialSession(t, env, token)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"format_hard_drive"}`)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp protocol.ErrorMessage
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if resp.Type != protocol.TypeError || !strings.Contains(resp.Message, "unknown message type") {
		t.Fatalf("unexpected error message: %+v", resp)
	}
}

func TestSessionRejectsMalformedFrame(t *testing.T) {
	env := newTestEnv(t)
	_, token := registeredAgent(t, env)

	conn := dialSession(t, env, token)
	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp protocol.ErrorMessage
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("expected an error envelope for a malformed frame: %v", err)
	}
	if resp.Type != protocol.TypeError || !strings.Contains(resp.Message, "malformed") {
		t.Fatalf("unexpected error message: %+v", resp)
	}

	// The session itself stays up.
	if err := conn.WriteJSON(protocol.Heartbeat{Type: protocol.TypeHeartbeat}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var hb protocol.HeartbeatResponse
	if err := conn.ReadJSON(&hb); err != nil || hb.Type != protocol.TypeHeartbeatResponse {
		t.Fatalf("session should survive a malformed frame: %v %+v", err, hb)
	}
}

func TestSessionRequiresValidToken(t *testing.T) {
	env := newTestEnv(t)

	_, resp, err := websocket.DefaultDialer.Dial(env.wsURL("/ws/session")+"?token=garbage", nil)
	if err == nil {
		t.Fatalf("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("expected 401 handshake response, got %v", resp)
	}
}

func TestSecondSessionEvictsFirst(t *testing.T) {
	env := newTestEnv(t)
	_, token := registeredAgent(t, env)

	first := dialSession(t, env, token)
	_ = dialSession(t, env, token)

	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err == nil {
		t.Fatalf("expected first session to be closed by the eviction")
	}
}

func TestInstallCommandReachesAgentSession(t *testing.T) {
	env := newTestEnv(t)
	agent, token := registeredAgent(t, env)
	printer := env.store.CreatePrinter(model.Printer{AgentID: agent.ID, IP: "10.0.0.5", Manufacturer: "Ricoh", Model: "MX3500"}, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewDispatcher(env.queue, env.hub, zerolog.Nop()).Run(ctx)

	conn := dialSession(t, env, token)
	writeDriver(t, env, "ricoh.zip")

	resp, body := env.post(t, "/v1/printers/"+printer.ID+"/install", map[string]any{"driverName": "ricoh.zip"})
	if resp.StatusCode != 202 {
		t.Fatalf("expected 202, got %d: %v", resp.StatusCode, body)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var cmd protocol.InstallPrinter
	if err := conn.ReadJSON(&cmd); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if cmd.Type != protocol.TypeInstallPrinter || cmd.PrinterIP != "10.0.0.5" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
	if cmd.DriverName != "ricoh.zip" || !strings.Contains(cmd.DriverURL, "/v1/drivers/ricoh.zip") {
		t.Fatalf("unexpected driver reference: %+v", cmd)
	}
}

func TestTelemetryReportIsRecorded(t *testing.T) {
	env := newTestEnv(t)
	agent, token := registeredAgent(t, env)
	printer := env.store.CreatePrinter(model.Printer{AgentID: agent.ID, IP: "10.0.0.5"}, 1000)

	conn := dialSession(t, env, token)

	report := protocol.TelemetryReport{
		Type: protocol.TypeTelemetryReport,
		Sample: model.TelemetrySample{
			PrinterID: printer.ID,
			PrinterIP: printer.IP,
			Status:    model.PrinterStatusIdle,
			Supplies:  []model.Supply{{Name: "black_toner", Type: model.SupplyToner, Percentage: 42, Status: "ok"}},
		},
	}
	if err := conn.WriteJSON(report); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if sample, ok := env.store.GetSample(printer.ID); ok {
			if sample.Status != model.PrinterStatusIdle {
				t.Fatalf("unexpected recorded sample: %+v", sample)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("telemetry report was never recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}

	printerNow, _ := env.store.GetPrinter(printer.ID)
	if printerNow.Status != model.PrinterStatusIdle {
		t.Fatalf("printer status should follow the sample, got %q", printerNow.Status)
	}
}
