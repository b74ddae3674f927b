// Package store provides the on-disk persistence for crawl runs: the
// resumable state document and the chunked per-page data cache.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/siteaudit/internal/models"
)

// StateStore round-trips the entire CrawlState to a single JSON document so
// an interrupted crawl can resume instead of restarting.
type StateStore struct {
	path   string
	logger arbor.ILogger
}

// NewStateStore creates a store writing to the given file path.
func NewStateStore(path string, logger arbor.ILogger) *StateStore {
	return &StateStore{path: path, logger: logger}
}

// Path returns the state file location.
func (s *StateStore) Path() string {
	return s.path
}

// Save persists the state atomically: the document is written to a temp
// file in the same directory and renamed over the target, so a crash never
// leaves a half-written state file behind.
func (s *StateStore) Save(state *models.CrawlState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal crawl state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Load reads a previously checkpointed state. A missing or unparsable file
// means no prior state: (nil, nil), never an error, so the caller starts a
// fresh crawl from the seed URL.
func (s *StateStore) Load() (*models.CrawlState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("State file unreadable, starting fresh")
		}
		return nil, nil
	}

	var state models.CrawlState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("State file corrupt, starting fresh")
		return nil, nil
	}
	return &state, nil
}
