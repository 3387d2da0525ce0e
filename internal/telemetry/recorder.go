package telemetry

import (
	"time"

	"github.com/rs/zerolog"

	"printfleet/internal/model"
	"printfleet/internal/store"
)

// maxConsecutiveFailures is how many polls with no usable data a printer gets
// before its status transitions to error.
const maxConsecutiveFailures = 3

// Recorder applies a sample to the fleet store: current view, bounded
// histories, alerts, and the consecutive-failure policy. Used both for
// plane-side polls and for samples reported by agents.
type Recorder struct {
	store *store.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewRecorder(st *store.Store, log zerolog.Logger) *Recorder {
	return &Recorder{
		store: st,
		log:   log.With().Str("component", "telemetry").Logger(),
		now:   time.Now,
	}
}

func (r *Recorder) Record(sample model.TelemetrySample) {
	if !Usable(sample) {
		r.recordFailure(sample)
		return
	}

	r.store.ResetFailedPolls(sample.PrinterID)
	r.store.SetSample(sample)

	nowMillis := r.now().UnixMilli()

	if len(sample.Counters) > 0 {
		r.store.AppendHistory(sample.PrinterID, model.HistoryCounters, model.HistoryEntry{
			Timestamp: nowMillis,
			Data:      sample.Counters,
		})
	}
	if len(sample.Supplies) > 0 {
		r.store.AppendHistory(sample.PrinterID, model.HistorySupplies, model.HistoryEntry{
			Timestamp: nowMillis,
			Data:      sample.Supplies,
		})
	}
	for _, alert := range sample.Alerts {
		r.store.AppendHistory(sample.PrinterID, model.HistoryErrors, model.HistoryEntry{
			Timestamp: nowMillis,
			Data:      alert,
		})
	}

	changed, err := r.store.SetPrinterStatus(sample.PrinterID, sample.Status, nowMillis)
	if err != nil {
		r.log.Warn().Str("printer_id", sample.PrinterID).Err(err).Msg("status update failed")
		return
	}
	if changed {
		r.store.AppendHistory(sample.PrinterID, model.HistoryStatusChanges, model.HistoryEntry{
			Timestamp: nowMillis,
			Data:      sample.Status,
		})
		r.log.Info().
			Str("printer_id", sample.PrinterID).
			Str("status", string(sample.Status)).
			Msg("printer status changed")
	}
}

func (r *Recorder) recordFailure(sample model.TelemetrySample) {
	failures := r.store.RecordFailedPoll(sample.PrinterID)
	r.log.Debug().
		Str("printer_id", sample.PrinterID).
		Int("consecutive_failures", failures).
		Msg("poll produced no usable data")

	if failures < maxConsecutiveFailures {
		return
	}

	nowMillis := r.now().UnixMilli()
	changed, err := r.store.SetPrinterStatus(sample.PrinterID, model.PrinterStatusError, nowMillis)
	if err != nil || !changed {
		return
	}
	r.store.AppendHistory(sample.PrinterID, model.HistoryStatusChanges, model.HistoryEntry{
		Timestamp: nowMillis,
		Data:      model.PrinterStatusError,
	})
	r.log.Warn().
		Str("printer_id", sample.PrinterID).
		Int("consecutive_failures", failures).
		Msg("printer marked unreachable")
}
