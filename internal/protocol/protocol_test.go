package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeKnownType(t *testing.T) {
	raw := []byte(`{"type":"install_printer","request_id":"req-1","printer_ip":"10.0.0.5"}`)

	env, err := Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Type != TypeInstallPrinter || env.RequestID != "req-1" {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	var msg InstallPrinter
	if err := json.Unmarshal(env.Payload, &msg); err != nil {
		t.Fatalf("payload should stay decodable: %v", err)
	}
	if msg.PrinterIP != "10.0.0.5" {
		t.Fatalf("unexpected payload: %+v", msg)
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"reboot_everything"}`))
	if !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	if _, err := Decode([]byte(`{"type":`)); err == nil {
		t.Fatalf("expected error for malformed json")
	}
	if _, err := Decode([]byte(`{}`)); !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("missing type should be rejected, got %v", err)
	}
}

func TestKindErrorWraps(t *testing.T) {
	cause := errors.New("boom")
	err := NewKindError(ErrKindTransport, cause)

	if !errors.Is(err, cause) {
		t.Fatalf("kind error should unwrap to its cause")
	}

	var kindErr *KindError
	if !errors.As(err, &kindErr) || kindErr.Kind != ErrKindTransport {
		t.Fatalf("expected transport kind, got %v", err)
	}
}
