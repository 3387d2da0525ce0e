package queue

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"printfleet/internal/protocol"
)

// latencyWarnThreshold is how long a command may sit in the queue before the
// dispatcher emits a warning. Delivery order is never altered by it.
const latencyWarnThreshold = 5 * time.Second

var ErrUnknownCommandKind = errors.New("unknown command kind")

type Handler func(ctx context.Context, cmd Command) error

// Dispatcher drains the queue with a single consumer so priority-then-FIFO
// ordering holds. A handler failure is logged and the command is dropped;
// there is no retry or dead-letter path. That reproduces the observed system
// and is a known reliability gap.
type Dispatcher struct {
	queue    *Queue
	handlers map[protocol.MessageType]Handler
	log      zerolog.Logger
	now      func() time.Time
}

func NewDispatcher(q *Queue, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:    q,
		handlers: make(map[protocol.MessageType]Handler),
		log:      log.With().Str("component", "dispatcher").Logger(),
		now:      time.Now,
	}
}

func (d *Dispatcher) Handle(kind protocol.MessageType, h Handler) {
	d.handlers[kind] = h
}

// Run drains the queue until ctx is cancelled. Stopping is cooperative:
// checked between items, never preemptive.
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.Info().Msg("dispatch loop started")
	for {
		cmd, ok := d.queue.Dequeue(ctx)
		if !ok {
			d.log.Info().Msg("dispatch loop stopped")
			return
		}
		d.dispatch(ctx, cmd)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, cmd Command) {
	if delay := d.now().Sub(cmd.EnqueuedAt); delay > latencyWarnThreshold {
		d.log.Warn().
			Str("kind", string(cmd.Kind)).
			Str("agent_id", cmd.AgentID).
			Dur("delay", delay).
			Msg("command exceeded queue latency threshold")
	}

	handler, ok := d.handlers[cmd.Kind]
	if !ok {
		d.log.Error().
			Str("kind", string(cmd.Kind)).
			Str("agent_id", cmd.AgentID).
			Err(ErrUnknownCommandKind).
			Msg("rejecting command")
		return
	}

	if err := handler(ctx, cmd); err != nil {
		// Drop on failure, matching the observed system.
		d.log.Error().
			Str("kind", string(cmd.Kind)).
			Str("agent_id", cmd.AgentID).
			Err(err).
			Msg("command handler failed, dropping command")
	}
}
