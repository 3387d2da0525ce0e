package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"printfleet/internal/model"
	"printfleet/internal/store"
)

// Runner polls the whole fleet on an interval through a bounded worker pool,
// so one slow printer never serializes the rest and a large fleet never fans
// out unbounded.
type Runner struct {
	store    *store.Store
	poller   *Poller
	recorder *Recorder
	interval time.Duration
	workers  int
	log      zerolog.Logger
}

func NewRunner(st *store.Store, poller *Poller, recorder *Recorder, interval time.Duration, workers int, log zerolog.Logger) *Runner {
	if workers <= 0 {
		workers = 8
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Runner{
		store:    st,
		poller:   poller,
		recorder: recorder,
		interval: interval,
		workers:  workers,
		log:      log.With().Str("component", "poll-runner").Logger(),
	}
}

func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pollOnce(ctx)
		}
	}
}

func (r *Runner) pollOnce(ctx context.Context) {
	printers := r.store.ListPrinters()
	if len(printers) == 0 {
		return
	}

	workers := r.workers
	if workers > len(printers) {
		workers = len(printers)
	}

	targets := make(chan model.Printer, workers)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for printer := range targets {
				select {
				case <-ctx.Done():
					return
				default:
				}
				r.pollPrinter(ctx, printer)
			}
		}()
	}

	for _, printer := range printers {
		select {
		case targets <- printer:
		case <-ctx.Done():
			close(targets)
			wg.Wait()
			return
		}
	}
	close(targets)
	wg.Wait()
}

func (r *Runner) pollPrinter(ctx context.Context, printer model.Printer) {
	profile, err := r.store.ProfileForPrinter(printer.ID)
	if err != nil {
		r.log.Debug().Str("printer_id", printer.ID).Err(err).Msg("no profile, using generic")
		profile = DefaultProfile()
	}
	sample := r.poller.Poll(ctx, printer, profile)
	r.recorder.Record(sample)
}
