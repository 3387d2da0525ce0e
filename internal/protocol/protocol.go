package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"printfleet/internal/model"
)

// MessageType is the closed set of envelope kinds spoken on a session channel.
// Unknown kinds are rejected explicitly, never dropped on the floor.
type MessageType string

const (
	TypeHeartbeat          MessageType = "heartbeat"
	TypeHeartbeatResponse  MessageType = "heartbeat_response"
	TypeInstallPrinter     MessageType = "install_printer"
	TypeInstallationResult MessageType = "installation_result"
	TypePollPrinter        MessageType = "poll_printer"
	TypeTelemetryReport    MessageType = "telemetry_report"
	TypeTunnelOpen         MessageType = "tunnel_open"
	TypeTunnelClose        MessageType = "tunnel_close"
	TypeError              MessageType = "error"
)

var ErrUnknownMessageType = errors.New("unknown message type")

// Registration channel close codes. The agent treats 4401 as fatal
// (credential is wrong, retrying won't help) and everything else as
// retry-worthy.
const (
	CloseMalformedPayload  = 4400
	CloseInvalidCredential = 4401
	CloseInternalFault     = 4500
)

// Envelope is the outer JSON object on a session channel. Payload fields for
// each type live beside Type; decoding happens in two passes so the read loop
// can branch on Type before committing to a payload shape.
type Envelope struct {
	Type      MessageType     `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"-"`
}

type RegistrationRequest struct {
	ClientToken string           `json:"client_token"`
	SystemInfo  model.SystemInfo `json:"system_info"`
}

type RegistrationResponse struct {
	Status     string `json:"status"` // "success" or "error"
	AgentToken string `json:"agent_token,omitempty"`
	Message    string `json:"message,omitempty"`
}

type Heartbeat struct {
	Type MessageType `json:"type"`
}

type HeartbeatResponse struct {
	Type      MessageType `json:"type"`
	Status    string      `json:"status"`
	Timestamp int64       `json:"timestamp"`
}

// InstallPrinter tells an agent to provision one printer. The artifact is
// fetched by URL with the agent's bearer token rather than inlined in the
// envelope, so command messages stay small regardless of driver size.
type InstallPrinter struct {
	Type         MessageType `json:"type"`
	RequestID    string      `json:"request_id"`
	PrinterIP    string      `json:"printer_ip"`
	Manufacturer string      `json:"manufacturer"`
	Model        string      `json:"model"`
	DriverURL    string      `json:"driver_url"`
	DriverName   string      `json:"driver_name"`
	DriverSize   int64       `json:"driver_size,omitempty"`
}

type InstallationResult struct {
	Type      MessageType         `json:"type"`
	RequestID string              `json:"request_id,omitempty"`
	Result    model.InstallResult `json:"result"`
}

// PollPrinter tells an agent to run one SNMP poll against a local printer.
type PollPrinter struct {
	Type      MessageType      `json:"type"`
	RequestID string           `json:"request_id"`
	PrinterID string           `json:"printer_id"`
	PrinterIP string           `json:"printer_ip"`
	Profile   model.OIDProfile `json:"profile"`
}

type TelemetryReport struct {
	Type      MessageType           `json:"type"`
	RequestID string                `json:"request_id,omitempty"`
	Sample    model.TelemetrySample `json:"sample"`
}

type TunnelControl struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	PrinterIP string      `json:"printer_ip"`
	Port      int         `json:"port"`
}

type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// NewError builds an error envelope ready to marshal.
func NewError(message string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: message}
}

var knownTypes = map[MessageType]struct{}{
	TypeHeartbeat:          {},
	TypeHeartbeatResponse:  {},
	TypeInstallPrinter:     {},
	TypeInstallationResult: {},
	TypePollPrinter:        {},
	TypeTelemetryReport:    {},
	TypeTunnelOpen:         {},
	TypeTunnelClose:        {},
	TypeError:              {},
}

// Decode peeks at the type field and validates it against the closed set.
// The raw bytes are kept so the caller can unmarshal the concrete payload.
func Decode(data []byte) (Envelope, error) {
	var head struct {
		Type      MessageType `json:"type"`
		RequestID string      `json:"request_id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if _, ok := knownTypes[head.Type]; !ok {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownMessageType, head.Type)
	}
	return Envelope{Type: head.Type, RequestID: head.RequestID, Payload: data}, nil
}
