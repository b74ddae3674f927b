// Package audit gives each crawl run a stable identity, resumes interrupted
// runs by default, and retains run history for later comparison.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/siteaudit/internal/models"
)

const indexFileName = "audits.json"

// RunPaths locates everything belonging to one audit run on disk.
type RunPaths struct {
	ID        string
	Dir       string
	StatePath string
	PagesDir  string
}

// Manager owns the per-domain audit index and the run directories beneath
// it. The index is a single document replaced wholesale on every write;
// concurrent writers from multiple processes are not supported.
type Manager struct {
	baseDir string
	domain  string
	logger  arbor.ILogger
}

// NewManager creates a manager rooted at <dataDir>/<domain>.
func NewManager(dataDir, domain string, logger arbor.ILogger) *Manager {
	return &Manager{
		baseDir: filepath.Join(dataDir, sanitizeDomain(domain)),
		domain:  domain,
		logger:  logger,
	}
}

// CreateOrResume returns the paths for the run to execute. Unless force is
// set, an audit still marked in-progress is resumed: its existing id and
// paths are returned so the caller continues from its on-disk state.
// Otherwise a new time-derived id is allocated, recorded in-progress, and
// fresh paths are returned. The second return value reports whether an
// existing run was resumed.
func (m *Manager) CreateOrResume(force bool) (*RunPaths, bool, error) {
	index, err := m.loadIndex()
	if err != nil {
		return nil, false, err
	}

	if !force {
		for i := len(index.Audits) - 1; i >= 0; i-- {
			if index.Audits[i].Status == models.AuditStatusInProgress {
				id := index.Audits[i].ID
				m.logger.Info().Str("audit_id", id).Msg("Resuming in-progress audit")
				return m.runPaths(id), true, nil
			}
		}
	}

	id := newAuditID()
	index.Audits = append(index.Audits, models.AuditRecord{
		ID:        id,
		StartTime: time.Now().UTC(),
		Status:    models.AuditStatusInProgress,
	})
	index.TotalAudits = len(index.Audits)
	index.LastAuditID = id

	if err := m.saveIndex(index); err != nil {
		return nil, false, err
	}

	paths := m.runPaths(id)
	if err := os.MkdirAll(paths.PagesDir, 0o755); err != nil {
		return nil, false, fmt.Errorf("failed to create audit directory %s: %w", paths.Dir, err)
	}

	m.logger.Info().Str("audit_id", id).Str("dir", paths.Dir).Msg("New audit created")
	return paths, false, nil
}

// Complete transitions the record to completed with summary counters.
// Unknown ids are a no-op.
func (m *Manager) Complete(id string, pagesAnalyzed, linksChecked int) error {
	return m.finish(id, func(rec *models.AuditRecord) {
		rec.Status = models.AuditStatusCompleted
		rec.PagesAnalyzed = pagesAnalyzed
		rec.LinksChecked = linksChecked
	})
}

// Fail transitions the record to failed with the error message. Unknown ids
// are a no-op.
func (m *Manager) Fail(id string, cause error) error {
	return m.finish(id, func(rec *models.AuditRecord) {
		rec.Status = models.AuditStatusFailed
		if cause != nil {
			rec.Error = cause.Error()
		}
	})
}

func (m *Manager) finish(id string, apply func(*models.AuditRecord)) error {
	index, err := m.loadIndex()
	if err != nil {
		return err
	}

	for i := range index.Audits {
		if index.Audits[i].ID != id {
			continue
		}
		now := time.Now().UTC()
		rec := &index.Audits[i]
		rec.EndTime = &now
		rec.Duration = now.Sub(rec.StartTime).Round(time.Millisecond).String()
		apply(rec)
		return m.saveIndex(index)
	}

	m.logger.Warn().Str("audit_id", id).Msg("Audit id not found in index, nothing to update")
	return nil
}

// Cleanup retains the keepCount newest audits, deletes the run directories
// of the rest, and rewrites the index with only the retained records. A
// failure deleting one run's directory is logged and does not stop cleanup
// of the others.
func (m *Manager) Cleanup(keepCount int) error {
	if keepCount < 0 {
		keepCount = 0
	}

	index, err := m.loadIndex()
	if err != nil {
		return err
	}
	if len(index.Audits) <= keepCount {
		return nil
	}

	sorted := make([]models.AuditRecord, len(index.Audits))
	copy(sorted, index.Audits)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StartTime.After(sorted[j].StartTime)
	})

	retained := sorted[:keepCount]
	for _, rec := range sorted[keepCount:] {
		dir := m.runPaths(rec.ID).Dir
		if err := os.RemoveAll(dir); err != nil {
			m.logger.Warn().Err(err).Str("audit_id", rec.ID).Str("dir", dir).Msg("Failed to delete audit directory")
		} else {
			m.logger.Info().Str("audit_id", rec.ID).Msg("Old audit pruned")
		}
	}

	// Restore chronological order for the rewritten index.
	sort.Slice(retained, func(i, j int) bool {
		return retained[i].StartTime.Before(retained[j].StartTime)
	})
	index.Audits = retained
	index.TotalAudits = len(retained)
	return m.saveIndex(index)
}

// Index returns the current audit index.
func (m *Manager) Index() (*models.AuditIndex, error) {
	return m.loadIndex()
}

func (m *Manager) runPaths(id string) *RunPaths {
	dir := filepath.Join(m.baseDir, id)
	return &RunPaths{
		ID:        id,
		Dir:       dir,
		StatePath: filepath.Join(dir, "state.json"),
		PagesDir:  filepath.Join(dir, "pages"),
	}
}

// loadIndex reads the index document. Missing or corrupt indexes yield a
// fresh one; history starts over rather than blocking the audit.
func (m *Manager) loadIndex() (*models.AuditIndex, error) {
	data, err := os.ReadFile(filepath.Join(m.baseDir, indexFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return &models.AuditIndex{Domain: m.domain}, nil
		}
		return nil, fmt.Errorf("failed to read audit index: %w", err)
	}

	var index models.AuditIndex
	if err := json.Unmarshal(data, &index); err != nil {
		m.logger.Warn().Err(err).Msg("Audit index corrupt, starting a fresh index")
		return &models.AuditIndex{Domain: m.domain}, nil
	}
	return &index, nil
}

func (m *Manager) saveIndex(index *models.AuditIndex) error {
	index.LastUpdated = time.Now().UTC()

	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return fmt.Errorf("failed to create audit base directory: %w", err)
	}
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal audit index: %w", err)
	}

	path := filepath.Join(m.baseDir, indexFileName)
	tmp, err := os.CreateTemp(m.baseDir, ".audits-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp index file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write audit index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close audit index: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace audit index: %w", err)
	}
	return nil
}

// newAuditID allocates a time-derived unique run id, e.g.
// audit_20260825_154501_1a2b3c4d.
func newAuditID() string {
	return fmt.Sprintf("audit_%s_%s",
		time.Now().UTC().Format("20060102_150405"),
		uuid.New().String()[:8])
}

// sanitizeDomain maps a domain (possibly host:port) to a directory name.
func sanitizeDomain(domain string) string {
	replacer := strings.NewReplacer(":", "_", "/", "_")
	return replacer.Replace(domain)
}
