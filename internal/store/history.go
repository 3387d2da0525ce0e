package store

import (
	"sync"

	"printfleet/internal/model"
)

// historyCap bounds every per-printer history ring. Oldest entries are
// evicted first.
const historyCap = 100

type historyStore struct {
	mu   sync.RWMutex
	data map[string]map[model.HistoryCategory][]model.HistoryEntry
}

func newHistoryStore() *historyStore {
	return &historyStore{data: make(map[string]map[model.HistoryCategory][]model.HistoryEntry)}
}

func (h *historyStore) append(printerID string, cat model.HistoryCategory, entry model.HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rings := h.data[printerID]
	if rings == nil {
		rings = make(map[model.HistoryCategory][]model.HistoryEntry)
		h.data[printerID] = rings
	}

	ring := append(rings[cat], entry)
	if len(ring) > historyCap {
		ring = ring[len(ring)-historyCap:]
	}
	rings[cat] = ring
}

func (h *historyStore) get(printerID string, cat model.HistoryCategory) []model.HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ring := h.data[printerID][cat]
	result := make([]model.HistoryEntry, len(ring))
	copy(result, ring)
	return result
}

// failureCounter tracks consecutive polls that produced no usable data, per
// printer.
type failureCounter struct {
	mu         sync.Mutex
	perPrinter map[string]int
}

func newFailureCounter() *failureCounter {
	return &failureCounter{perPrinter: make(map[string]int)}
}

func (f *failureCounter) increment(printerID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perPrinter[printerID]++
	return f.perPrinter[printerID]
}

func (f *failureCounter) reset(printerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.perPrinter, printerID)
}

// AppendHistory records one entry in a printer's bounded ring.
func (s *Store) AppendHistory(printerID string, cat model.HistoryCategory, entry model.HistoryEntry) {
	s.history.append(printerID, cat, entry)
}

func (s *Store) History(printerID string, cat model.HistoryCategory) []model.HistoryEntry {
	return s.history.get(printerID, cat)
}

// RecordFailedPoll bumps the consecutive-failure counter and returns its new
// value so the caller can decide whether to escalate.
func (s *Store) RecordFailedPoll(printerID string) int {
	return s.failures.increment(printerID)
}

func (s *Store) ResetFailedPolls(printerID string) {
	s.failures.reset(printerID)
}

// SetSample overwrites the current telemetry view for a printer.
func (s *Store) SetSample(sample model.TelemetrySample) {
	s.mu.Lock()
	s.samplesByID[sample.PrinterID] = sample
	s.mu.Unlock()
}

func (s *Store) GetSample(printerID string) (model.TelemetrySample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sample, ok := s.samplesByID[printerID]
	return sample, ok
}
