package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"printfleet/internal/hub"
	"printfleet/internal/protocol"
	"printfleet/internal/queue"
)

// NewDispatcher wires the command queue to the hub: dequeued commands are
// marshaled and written to the target agent's session. An offline agent fails
// the command; the dispatcher logs and drops it.
func NewDispatcher(q *queue.Queue, h *hub.Hub, log zerolog.Logger) *queue.Dispatcher {
	d := queue.NewDispatcher(q, log)
	send := sendToAgent(h)
	d.Handle(protocol.TypeInstallPrinter, send)
	d.Handle(protocol.TypePollPrinter, send)
	d.Handle(protocol.TypeTunnelOpen, send)
	d.Handle(protocol.TypeTunnelClose, send)
	return d
}

func sendToAgent(h *hub.Hub) queue.Handler {
	return func(ctx context.Context, cmd queue.Command) error {
		data, err := json.Marshal(cmd.Payload)
		if err != nil {
			return fmt.Errorf("marshal %s command: %w", cmd.Kind, err)
		}
		if !h.Send(cmd.AgentID, data) {
			return fmt.Errorf("agent %s has no live session", cmd.AgentID)
		}
		return nil
	}
}
