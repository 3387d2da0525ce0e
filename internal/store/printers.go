package store

import (
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"

	"printfleet/internal/model"
)

var (
	ErrPrinterNotFound = errors.New("printer not found")
	ErrProfileNotFound = errors.New("profile not found")
)

func (s *Store) CreatePrinter(p model.Printer, nowMillis int64) model.Printer {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = model.PrinterStatusUnknown
	}
	p.CreatedAt = nowMillis
	p.UpdatedAt = nowMillis

	s.mu.Lock()
	s.printersByID[p.ID] = p
	s.mu.Unlock()
	return p
}

func (s *Store) GetPrinter(id string) (model.Printer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.printersByID[id]
	return p, ok
}

func (s *Store) ListPrinters() []model.Printer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]model.Printer, 0, len(s.printersByID))
	for _, p := range s.printersByID {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (s *Store) SetPrinterStatus(id string, status model.PrinterStatus, nowMillis int64) (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.printersByID[id]
	if !ok {
		return false, ErrPrinterNotFound
	}
	if p.Status == status {
		return false, nil
	}
	p.Status = status
	p.UpdatedAt = nowMillis
	s.printersByID[id] = p
	return true, nil
}

func familyKey(manufacturer, modelFamily string) string {
	return strings.ToLower(manufacturer) + "|" + strings.ToLower(modelFamily)
}

func (s *Store) UpsertProfile(p model.OIDProfile, nowMillis int64) model.OIDProfile {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := familyKey(p.Manufacturer, p.ModelFamily)
	if existingID, ok := s.profileByFam[key]; ok {
		existing := s.profilesByID[existingID]
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	} else {
		p.ID = uuid.NewString()
		p.CreatedAt = nowMillis
	}
	p.UpdatedAt = nowMillis

	s.profilesByID[p.ID] = p
	s.profileByFam[key] = p.ID
	return p
}

func (s *Store) GetProfile(id string) (model.OIDProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profilesByID[id]
	return p, ok
}

// ProfileForPrinter resolves a printer's explicit profile, falling back to
// the family registered for its manufacturer/model.
func (s *Store) ProfileForPrinter(printerID string) (model.OIDProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.printersByID[printerID]
	if !ok {
		return model.OIDProfile{}, ErrPrinterNotFound
	}
	if p.ProfileID != "" {
		if prof, ok := s.profilesByID[p.ProfileID]; ok {
			return prof, nil
		}
	}
	if id, ok := s.profileByFam[familyKey(p.Manufacturer, p.Model)]; ok {
		return s.profilesByID[id], nil
	}
	return model.OIDProfile{}, ErrProfileNotFound
}

func (s *Store) ListProfiles() []model.OIDProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]model.OIDProfile, 0, len(s.profilesByID))
	for _, p := range s.profilesByID {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
