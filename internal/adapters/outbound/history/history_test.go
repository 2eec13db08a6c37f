package history_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/history"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func report(id string, kind domain.RunKind, statuses ...domain.Status) domain.RunReport {
	r := domain.RunReport{
		ID:       id,
		Kind:     kind,
		Started:  time.Date(2020, 8, 20, 10, 0, 0, 0, time.UTC),
		Finished: time.Date(2020, 8, 20, 10, 1, 0, 0, time.UTC),
	}
	for _, s := range statuses {
		r.Results = append(r.Results, domain.TestResult{Component: "auditree.large_files", Test: "LargeFiles", Status: s})
	}
	return r
}

func TestHistory_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	h := history.New()

	err := h.Save(dir, report("run-1", domain.RunCheck, domain.StatusFail))
	require.NoError(t, err)

	reports, err := h.Load(dir)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "run-1", reports[0].ID)
	assert.Equal(t, domain.RunCheck, reports[0].Kind)
	assert.True(t, reports[0].Failed())
	assert.True(t, reports[0].Started.Equal(time.Date(2020, 8, 20, 10, 0, 0, 0, time.UTC)))
}

func TestHistory_AppendMultiple(t *testing.T) {
	dir := t.TempDir()
	h := history.New()

	require.NoError(t, h.Save(dir, report("r1", domain.RunFetch, domain.StatusPass)))
	require.NoError(t, h.Save(dir, report("r2", domain.RunCheck, domain.StatusWarn)))
	require.NoError(t, h.Save(dir, report("r3", domain.RunCheck, domain.StatusPass)))

	reports, err := h.Load(dir)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, "r1", reports[0].ID)
	assert.Equal(t, "r3", reports[2].ID)
}

func TestHistory_Capped(t *testing.T) {
	dir := t.TempDir()
	h := history.New()

	for i := 0; i < history.MaxEntries+2; i++ {
		require.NoError(t, h.Save(dir, report("r", domain.RunFetch)))
	}
	require.NoError(t, h.Save(dir, report("last", domain.RunFetch)))

	reports, err := h.Load(dir)
	require.NoError(t, err)
	assert.Len(t, reports, history.MaxEntries)
	assert.Equal(t, "last", reports[len(reports)-1].ID)
}

func TestHistory_LoadEmpty(t *testing.T) {
	dir := t.TempDir()
	h := history.New()

	reports, err := h.Load(dir)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestHistory_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	nestedDir := filepath.Join(dir, "deep", "nested")
	h := history.New()

	err := h.Save(nestedDir, report("r1", domain.RunFetch))
	require.NoError(t, err)

	reports, err := h.Load(nestedDir)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestHistory_Corrupt(t *testing.T) {
	dir := t.TempDir()
	fp := history.Path(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(fp), 0755))
	require.NoError(t, os.WriteFile(fp, []byte("{not json"), 0644))

	_, err := history.New().Load(dir)
	assert.Error(t, err)
}
