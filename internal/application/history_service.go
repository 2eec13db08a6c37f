package application

import (
	"fmt"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// HistoryService reads the run history kept next to a locker.
type HistoryService struct {
	history domain.RunHistory
}

func NewHistoryService(history domain.RunHistory) *HistoryService {
	return &HistoryService{history: history}
}

// Recent returns up to limit runs of kind, newest last. An empty kind
// matches every run; limit <= 0 returns all of them.
func (s *HistoryService) Recent(lockerPath string, kind domain.RunKind, limit int) ([]domain.RunReport, error) {
	runs, err := s.history.Load(lockerPath)
	if err != nil {
		return nil, fmt.Errorf("loading run history: %w", err)
	}
	var out []domain.RunReport
	for _, r := range runs {
		if kind == "" || r.Kind == kind {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
