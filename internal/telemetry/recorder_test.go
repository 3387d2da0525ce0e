package telemetry

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printfleet/internal/model"
	"printfleet/internal/store"
)

func idleSample(printerID string) model.TelemetrySample {
	v := int64(1000)
	return model.TelemetrySample{
		PrinterID: printerID,
		Status:    model.PrinterStatusIdle,
		Counters:  []model.Counter{{Name: "total_pages", Value: &v}},
		Supplies:  []model.Supply{{Name: "black_toner", Type: model.SupplyToner, Percentage: 60, Status: "ok"}},
	}
}

func emptySample(printerID string) model.TelemetrySample {
	return model.TelemetrySample{PrinterID: printerID, Status: model.PrinterStatusUnknown}
}

func TestRecordUsableSample(t *testing.T) {
	st := store.New()
	p := st.CreatePrinter(model.Printer{AgentID: "a", IP: "10.0.0.5"}, 1000)

	r := NewRecorder(st, zerolog.Nop())
	r.Record(idleSample(p.ID))

	got, ok := st.GetSample(p.ID)
	require.True(t, ok)
	assert.Equal(t, model.PrinterStatusIdle, got.Status)

	assert.Len(t, st.History(p.ID, model.HistoryCounters), 1)
	assert.Len(t, st.History(p.ID, model.HistorySupplies), 1)

	// unknown -> idle is a status change.
	changes := st.History(p.ID, model.HistoryStatusChanges)
	require.Len(t, changes, 1)
	assert.Equal(t, model.PrinterStatusIdle, changes[0].Data)

	printer, _ := st.GetPrinter(p.ID)
	assert.Equal(t, model.PrinterStatusIdle, printer.Status)
}

func TestRecordAlertsGoToErrorHistory(t *testing.T) {
	st := store.New()
	p := st.CreatePrinter(model.Printer{AgentID: "a", IP: "10.0.0.5"}, 1000)

	sample := idleSample(p.ID)
	sample.Alerts = []model.Alert{{Supply: "black_toner", Type: model.SupplyToner, Severity: "critical"}}

	NewRecorder(st, zerolog.Nop()).Record(sample)

	errorsHist := st.History(p.ID, model.HistoryErrors)
	require.Len(t, errorsHist, 1)
	alert, ok := errorsHist[0].Data.(model.Alert)
	require.True(t, ok)
	assert.Equal(t, "black_toner", alert.Supply)
}

func TestThreeEmptyPollsMarkPrinterUnreachable(t *testing.T) {
	st := store.New()
	p := st.CreatePrinter(model.Printer{AgentID: "a", IP: "10.0.0.5"}, 1000)
	r := NewRecorder(st, zerolog.Nop())

	r.Record(emptySample(p.ID))
	r.Record(emptySample(p.ID))

	printer, _ := st.GetPrinter(p.ID)
	assert.Equal(t, model.PrinterStatusUnknown, printer.Status, "two failures must not escalate")
	assert.Empty(t, st.History(p.ID, model.HistoryStatusChanges))

	r.Record(emptySample(p.ID))

	printer, _ = st.GetPrinter(p.ID)
	assert.Equal(t, model.PrinterStatusError, printer.Status)

	changes := st.History(p.ID, model.HistoryStatusChanges)
	require.Len(t, changes, 1)
	assert.Equal(t, model.PrinterStatusError, changes[0].Data)
}

func TestUsablePollResetsFailureCount(t *testing.T) {
	st := store.New()
	p := st.CreatePrinter(model.Printer{AgentID: "a", IP: "10.0.0.5"}, 1000)
	r := NewRecorder(st, zerolog.Nop())

	r.Record(emptySample(p.ID))
	r.Record(emptySample(p.ID))
	r.Record(idleSample(p.ID))
	r.Record(emptySample(p.ID))
	r.Record(emptySample(p.ID))

	printer, _ := st.GetPrinter(p.ID)
	assert.NotEqual(t, model.PrinterStatusError, printer.Status,
		"a usable poll between failures must reset the counter")
}

func TestRecoveryAfterUnreachable(t *testing.T) {
	st := store.New()
	p := st.CreatePrinter(model.Printer{AgentID: "a", IP: "10.0.0.5"}, 1000)
	r := NewRecorder(st, zerolog.Nop())

	for i := 0; i < 3; i++ {
		r.Record(emptySample(p.ID))
	}
	r.Record(idleSample(p.ID))

	printer, _ := st.GetPrinter(p.ID)
	assert.Equal(t, model.PrinterStatusIdle, printer.Status)

	// unknown -> error -> idle: two recorded transitions.
	assert.Len(t, st.History(p.ID, model.HistoryStatusChanges), 2)
}
