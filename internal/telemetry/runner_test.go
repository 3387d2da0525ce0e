package telemetry

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printfleet/internal/model"
	"printfleet/internal/store"
)

func TestPollOnceCoversTheWholeFleet(t *testing.T) {
	st := store.New()
	for i := 0; i < 20; i++ {
		st.CreatePrinter(model.Printer{AgentID: "a", IP: fmt.Sprintf("10.0.0.%d", i+1)}, 1000)
	}

	var mu sync.Mutex
	polled := make(map[string]int)
	factory := func(ip string, profile model.OIDProfile) (Client, error) {
		mu.Lock()
		polled[ip]++
		mu.Unlock()
		return &fakeClient{values: map[string]Value{
			DefaultProfile().StatusOID: {Int: 3},
		}}, nil
	}

	poller := NewPoller(factory, zerolog.Nop())
	recorder := NewRecorder(st, zerolog.Nop())
	r := NewRunner(st, poller, recorder, 0, 4, zerolog.Nop())

	r.pollOnce(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, polled, 20, "every printer should be polled once")
	for ip, count := range polled {
		assert.Equal(t, 1, count, "printer %s polled more than once", ip)
	}

	for _, p := range st.ListPrinters() {
		sample, ok := st.GetSample(p.ID)
		require.True(t, ok, "printer %s has no sample", p.ID)
		assert.Equal(t, model.PrinterStatusIdle, sample.Status)
	}
}

func TestPollOnceWithEmptyFleet(t *testing.T) {
	st := store.New()
	r := NewRunner(st, NewPoller(nil, zerolog.Nop()), NewRecorder(st, zerolog.Nop()), 0, 4, zerolog.Nop())

	// Must return without doing anything.
	r.pollOnce(context.Background())
}
