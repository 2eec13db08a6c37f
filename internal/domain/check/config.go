package check

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// ConfigDrift fails when the configuration captured as evidence differs
// from the running configuration. Both sides are compared as JSON values so
// that YAML integers and JSON numbers agree. The returned string is a
// structural diff for logging; it is empty when nothing drifted.
func ConfigDrift(r *domain.Results, captured []byte, running map[string]any) (string, error) {
	var fetched any
	if err := json.Unmarshal(captured, &fetched); err != nil {
		return "", fmt.Errorf("parsing captured configuration: %w", err)
	}
	current, err := normalize(running)
	if err != nil {
		return "", err
	}
	if cmp.Equal(fetched, current) {
		return "", nil
	}
	fetchedLines, err := indentedLines(fetched)
	if err != nil {
		return "", err
	}
	currentLines, err := indentedLines(current)
	if err != nil {
		return "", err
	}
	r.AddFailure("Differences found", map[string][]string{
		"Fetcher Configuration": fetchedLines,
		"Check Configuration":   currentLines,
	})
	return cmp.Diff(fetched, current), nil
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding running configuration: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func indentedLines(v any) ([]string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return strings.Split(string(data), "\n"), nil
}
