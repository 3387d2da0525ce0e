package store

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"printfleet/internal/model"
)

// Store holds the control plane's fleet state in memory. Agents survive
// restarts through an optional JSON state file; everything else is rebuilt by
// polling and re-registration.
type Store struct {
	mu sync.RWMutex

	agentsStateFile string
	persistMu       sync.Mutex

	agentsByID    map[string]model.Agent
	printersByID  map[string]model.Printer
	profilesByID  map[string]model.OIDProfile
	profileByFam  map[string]string // manufacturer + "|" + modelFamily -> profileID
	samplesByID   map[string]model.TelemetrySample

	history  *historyStore
	failures *failureCounter
}

type Options struct {
	AgentsStateFile string
}

func New() *Store {
	return NewWithOptions(Options{})
}

func NewWithOptions(opts Options) *Store {
	s := &Store{
		agentsByID:      make(map[string]model.Agent),
		printersByID:    make(map[string]model.Printer),
		profilesByID:    make(map[string]model.OIDProfile),
		profileByFam:    make(map[string]string),
		samplesByID:     make(map[string]model.TelemetrySample),
		history:         newHistoryStore(),
		failures:        newFailureCounter(),
		agentsStateFile: opts.AgentsStateFile,
	}

	if s.agentsStateFile != "" {
		if err := s.loadAgentsFromFile(s.agentsStateFile); err != nil {
			log.Printf("agents persistence: load failed (%s): %v", s.agentsStateFile, err)
		}
	}

	return s
}

type persistedAgentsFile struct {
	Version int           `json:"version"`
	Agents  []model.Agent `json:"agents"`
	SavedAt int64         `json:"savedAt"`
}

func (s *Store) loadAgentsFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var file persistedAgentsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}
	if file.Version != 1 {
		return errors.New("unsupported agents state version")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range file.Agents {
		if a.ID == "" || a.ClientID == "" {
			continue
		}
		s.agentsByID[a.ID] = a
	}
	return nil
}

func (s *Store) snapshotAgentsLocked() []model.Agent {
	result := make([]model.Agent, 0, len(s.agentsByID))
	for _, a := range s.agentsByID {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (s *Store) persistAgentsSnapshot(agents []model.Agent) {
	path := s.agentsStateFile
	if path == "" {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		log.Printf("agents persistence: mkdir failed (%s): %v", dir, err)
		return
	}

	file := persistedAgentsFile{Version: 1, Agents: agents, SavedAt: time.Now().UnixMilli()}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		log.Printf("agents persistence: marshal failed: %v", err)
		return
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		log.Printf("agents persistence: create temp failed: %v", err)
		return
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		log.Printf("agents persistence: chmod temp failed: %v", err)
		return
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		log.Printf("agents persistence: write temp failed: %v", err)
		return
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		log.Printf("agents persistence: sync temp failed: %v", err)
		return
	}
	if err := tmp.Close(); err != nil {
		log.Printf("agents persistence: close temp failed: %v", err)
		return
	}
	if err := os.Rename(tmpName, path); err != nil {
		log.Printf("agents persistence: rename failed: %v", err)
		return
	}
}

// CreateAgent mints a new agent identity for a validated registration.
func (s *Store) CreateAgent(clientID string, info model.SystemInfo, nowMillis int64) model.Agent {
	agent := model.Agent{
		ID:         uuid.NewString(),
		ClientID:   clientID,
		Hostname:   info.Hostname,
		OS:         info.OS,
		Platform:   info.Platform,
		SystemInfo: info,
		CreatedAt:  nowMillis,
		UpdatedAt:  nowMillis,
	}

	s.mu.Lock()
	s.agentsByID[agent.ID] = agent
	snapshot := s.snapshotAgentsLocked()
	s.mu.Unlock()

	s.persistAgentsSnapshot(snapshot)
	return agent
}

func (s *Store) GetAgent(id string) (model.Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agentsByID[id]
	return a, ok
}

func (s *Store) ListAgents() []model.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotAgentsLocked()
}

// TouchAgent refreshes an agent's system info on reconnect.
func (s *Store) TouchAgent(id string, info model.SystemInfo, nowMillis int64) bool {
	s.mu.Lock()
	a, ok := s.agentsByID[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	a.SystemInfo = info
	a.Hostname = info.Hostname
	a.OS = info.OS
	a.Platform = info.Platform
	a.UpdatedAt = nowMillis
	s.agentsByID[id] = a
	snapshot := s.snapshotAgentsLocked()
	s.mu.Unlock()

	s.persistAgentsSnapshot(snapshot)
	return true
}
