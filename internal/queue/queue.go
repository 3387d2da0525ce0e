package queue

import (
	"context"
	"sync"
	"time"

	"printfleet/internal/protocol"
)

// Priority orders commands across tiers; within a tier dispatch is FIFO.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	}
	return "unknown"
}

// Command is one unit of work addressed to an agent. Immutable once enqueued;
// consumed exactly once by the dispatch loop.
type Command struct {
	Kind       protocol.MessageType
	Priority   Priority
	AgentID    string
	Payload    interface{}
	EnqueuedAt time.Time
}

// Queue is an ordered, priority-aware buffer decoupling producers from the
// single dispatch loop. Enqueue never blocks the producer.
type Queue struct {
	mu    sync.Mutex
	tiers [3][]Command
	ready chan struct{}
}

func New() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

func (q *Queue) Enqueue(cmd Command) {
	if cmd.EnqueuedAt.IsZero() {
		cmd.EnqueuedAt = time.Now()
	}
	// An out-of-range priority from a careless producer degrades to low
	// instead of indexing past the tiers.
	if cmd.Priority < PriorityHigh || cmd.Priority > PriorityLow {
		cmd.Priority = PriorityLow
	}

	q.mu.Lock()
	q.tiers[cmd.Priority] = append(q.tiers[cmd.Priority], cmd)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Dequeue returns the highest-priority pending command, FIFO within a tier.
// It blocks until a command is available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (Command, bool) {
	for {
		if cmd, ok := q.tryDequeue(); ok {
			return cmd, true
		}
		select {
		case <-ctx.Done():
			return Command{}, false
		case <-q.ready:
		}
	}
}

func (q *Queue) tryDequeue() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for tier := range q.tiers {
		if len(q.tiers[tier]) > 0 {
			cmd := q.tiers[tier][0]
			q.tiers[tier] = q.tiers[tier][1:]
			if q.pendingLocked() > 0 {
				select {
				case q.ready <- struct{}{}:
				default:
				}
			}
			return cmd, true
		}
	}
	return Command{}, false
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pendingLocked()
}

func (q *Queue) pendingLocked() int {
	n := 0
	for tier := range q.tiers {
		n += len(q.tiers[tier])
	}
	return n
}
