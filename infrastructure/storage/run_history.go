package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"shopflow/domain/entities"
	"shopflow/domain/interfaces"

	"github.com/google/uuid"
)

type runHistory struct {
	historyPath string
	mu          sync.Mutex
}

// NewRunHistory - creates a JSON file backed run store at path
func NewRunHistory(path string) interfaces.RunStore {
	return &runHistory{historyPath: path}
}

// Append - stores a finished run, assigning an ID when it has none
func (s *runHistory) Append(record entities.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.load()
	if err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	history = append(history, record)

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run history: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.historyPath), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	// replace atomically
	tmp := s.historyPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write run history: %w", err)
	}
	if err := os.Rename(tmp, s.historyPath); err != nil {
		return fmt.Errorf("failed to replace run history: %w", err)
	}
	return nil
}

// List - returns every stored run, oldest first
func (s *runHistory) List() ([]entities.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *runHistory) load() ([]entities.RunRecord, error) {
	data, err := os.ReadFile(s.historyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []entities.RunRecord{}, nil
		}
		return nil, fmt.Errorf("failed to read run history: %w", err)
	}

	var history []entities.RunRecord
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to decode run history: %w", err)
	}
	return history, nil
}
