package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// historyFile lives in the locker's private directory, which locker
// commits exclude.
const historyFile = ".arboretum/history/runs.json"

// MaxEntries caps the stored reports; the oldest are dropped first.
const MaxEntries = 200

// FileHistory implements domain.RunHistory using JSON file storage.
type FileHistory struct{}

func New() *FileHistory {
	return &FileHistory{}
}

// Path returns the history file of a locker.
func Path(lockerPath string) string {
	return filepath.Join(lockerPath, historyFile)
}

func (h *FileHistory) Save(lockerPath string, report domain.RunReport) error {
	reports, err := h.Load(lockerPath)
	if err != nil {
		return err
	}

	reports = append(reports, report)
	if len(reports) > MaxEntries {
		reports = reports[len(reports)-MaxEntries:]
	}

	fp := Path(lockerPath)
	if err := os.MkdirAll(filepath.Dir(fp), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(fp, data, 0644)
}

func (h *FileHistory) Load(lockerPath string) ([]domain.RunReport, error) {
	fp := Path(lockerPath)

	data, err := os.ReadFile(fp)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var reports []domain.RunReport
	if err := json.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", historyFile, err)
	}

	return reports, nil
}

var _ domain.RunHistory = (*FileHistory)(nil)
