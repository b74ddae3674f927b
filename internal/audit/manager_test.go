package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/siteaudit/internal/common"
	"github.com/ternarybob/siteaudit/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(t.TempDir(), "acme.test", common.GetLogger())
}

func TestManager_CreateThenResume(t *testing.T) {
	m := newTestManager(t)

	paths, resumed, err := m.CreateOrResume(false)
	require.NoError(t, err)
	assert.False(t, resumed, "first run allocates a fresh audit")
	assert.NotEmpty(t, paths.ID)
	assert.DirExists(t, paths.PagesDir)

	// The run is still in-progress, so the next invocation resumes it.
	again, resumed, err := m.CreateOrResume(false)
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, paths.ID, again.ID, "an in-progress audit keeps its identity across invocations")
	assert.Equal(t, paths.StatePath, again.StatePath)
}

func TestManager_CompleteThenNewRun(t *testing.T) {
	m := newTestManager(t)

	first, _, err := m.CreateOrResume(false)
	require.NoError(t, err)
	require.NoError(t, m.Complete(first.ID, 12, 4))

	index, err := m.Index()
	require.NoError(t, err)
	require.Len(t, index.Audits, 1)
	rec := index.Audits[0]
	assert.Equal(t, models.AuditStatusCompleted, rec.Status)
	assert.Equal(t, 12, rec.PagesAnalyzed)
	assert.Equal(t, 4, rec.LinksChecked)
	require.NotNil(t, rec.EndTime)
	assert.NotEmpty(t, rec.Duration)

	second, resumed, err := m.CreateOrResume(false)
	require.NoError(t, err)
	assert.False(t, resumed, "a completed audit is never resumed")
	assert.NotEqual(t, first.ID, second.ID)
}

func TestManager_ForceNewSkipsResume(t *testing.T) {
	m := newTestManager(t)

	first, _, err := m.CreateOrResume(false)
	require.NoError(t, err)

	second, resumed, err := m.CreateOrResume(true)
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.NotEqual(t, first.ID, second.ID, "force allocates a new audit even while one is in progress")
}

func TestManager_FailRecordsError(t *testing.T) {
	m := newTestManager(t)

	paths, _, err := m.CreateOrResume(false)
	require.NoError(t, err)
	require.NoError(t, m.Fail(paths.ID, os.ErrPermission))

	index, err := m.Index()
	require.NoError(t, err)
	require.Len(t, index.Audits, 1)
	assert.Equal(t, models.AuditStatusFailed, index.Audits[0].Status)
	assert.Equal(t, os.ErrPermission.Error(), index.Audits[0].Error)
}

func TestManager_FinishUnknownIDIsNoOp(t *testing.T) {
	m := newTestManager(t)
	_, _, err := m.CreateOrResume(false)
	require.NoError(t, err)

	assert.NoError(t, m.Complete("audit_19990101_000000_deadbeef", 0, 0))
}

func TestManager_CleanupRetainsNewest(t *testing.T) {
	dataDir := t.TempDir()
	m := NewManager(dataDir, "acme.test", common.GetLogger())
	baseDir := filepath.Join(dataDir, "acme.test")
	require.NoError(t, os.MkdirAll(baseDir, 0o755))

	// Hand-build an index with three completed runs a day apart.
	now := time.Now().UTC()
	ids := []string{"audit_old", "audit_mid", "audit_new"}
	index := models.AuditIndex{Domain: "acme.test", TotalAudits: 3, LastAuditID: "audit_new"}
	for i, id := range ids {
		start := now.Add(time.Duration(i-3) * 24 * time.Hour)
		index.Audits = append(index.Audits, models.AuditRecord{
			ID:        id,
			StartTime: start,
			Status:    models.AuditStatusCompleted,
		})
		require.NoError(t, os.MkdirAll(filepath.Join(baseDir, id, "pages"), 0o755))
	}
	data, err := json.Marshal(index)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(baseDir, "audits.json"), data, 0o644))

	require.NoError(t, m.Cleanup(1))

	loaded, err := m.Index()
	require.NoError(t, err)
	require.Len(t, loaded.Audits, 1, "only the newest run survives")
	assert.Equal(t, "audit_new", loaded.Audits[0].ID)
	assert.Equal(t, 1, loaded.TotalAudits)

	assert.NoDirExists(t, filepath.Join(baseDir, "audit_old"))
	assert.NoDirExists(t, filepath.Join(baseDir, "audit_mid"))
	assert.DirExists(t, filepath.Join(baseDir, "audit_new"))
}

func TestManager_CleanupBelowThresholdIsNoOp(t *testing.T) {
	m := newTestManager(t)
	paths, _, err := m.CreateOrResume(false)
	require.NoError(t, err)

	require.NoError(t, m.Cleanup(10))
	assert.DirExists(t, paths.Dir)
}

func TestManager_CorruptIndexStartsFresh(t *testing.T) {
	dataDir := t.TempDir()
	baseDir := filepath.Join(dataDir, "acme.test")
	require.NoError(t, os.MkdirAll(baseDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(baseDir, "audits.json"), []byte("<html>"), 0o644))

	m := NewManager(dataDir, "acme.test", common.GetLogger())
	paths, resumed, err := m.CreateOrResume(false)
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.NotEmpty(t, paths.ID)
}

func TestSanitizeDomain(t *testing.T) {
	assert.Equal(t, "acme.test", sanitizeDomain("acme.test"))
	assert.Equal(t, "127.0.0.1_8080", sanitizeDomain("127.0.0.1:8080"))
}
