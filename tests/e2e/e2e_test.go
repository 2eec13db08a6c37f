package e2e_test

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

var binaryPath string

func TestMain(m *testing.M) {
	// Build binary before running tests
	dir, err := os.MkdirTemp("", "arboretum-e2e")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	binaryPath = filepath.Join(dir, "arboretum")
	cmd := exec.Command("go", "build", "-o", binaryPath, "../../cmd/arboretum")
	if out, err := cmd.CombinedOutput(); err != nil {
		panic("build failed: " + string(out))
	}

	os.Exit(m.Run())
}

func fixturePath(name string) string {
	abs, _ := filepath.Abs(filepath.Join("../../testdata/workspace", name))
	return abs
}

// run executes the binary against the fixture workspace and a locker in
// lockerDir. stdout and stderr are returned separately so JSON output
// stays parseable next to the logs.
func run(t *testing.T, lockerDir string, args ...string) (string, string, int) {
	t.Helper()
	args = append(args,
		"--config", fixturePath("auditree.json"),
		"--creds", fixturePath("credentials.ini"),
		"--locker", lockerDir,
	)
	cmd := exec.Command(binaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
	}
	return stdout.String(), stderr.String(), exitCode
}

// --- Version & List ---

func TestE2E_Version(t *testing.T) {
	out, _, code := run(t, t.TempDir(), "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "arboretum")
}

func TestE2E_ListJSON(t *testing.T) {
	out, _, code := run(t, t.TempDir(), "list", "--json")
	require.Equal(t, 0, code)

	var got map[string][]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Contains(t, got["fetchers"], "auditree.compliance_config")
	assert.Contains(t, got["checks"], "auditree.abandoned_evidence")
}

// --- Fetch & Check ---

func TestE2E_FetchThenCheck(t *testing.T) {
	lockerDir := filepath.Join(t.TempDir(), "locker")

	out, stderr, code := run(t, lockerDir, "fetch", "auditree.compliance_config", "--json")
	require.Equal(t, 0, code, stderr)
	var fetched domain.RunReport
	require.NoError(t, json.Unmarshal([]byte(out), &fetched))
	assert.Equal(t, domain.RunFetch, fetched.Kind)

	_, err := os.Stat(filepath.Join(lockerDir, "raw", "auditree", "compliance_config.json"))
	assert.NoError(t, err)

	out, stderr, code = run(t, lockerDir, "check", "auditree.compliance_config", "--json", "--ci")
	require.Equal(t, 0, code, stderr)
	var checked domain.RunReport
	require.NoError(t, json.Unmarshal([]byte(out), &checked))
	require.Len(t, checked.Results, 1)
	assert.Equal(t, domain.StatusPass, checked.Results[0].Status)
}

func TestE2E_CheckCI(t *testing.T) {
	_, _, code := run(t, filepath.Join(t.TempDir(), "locker"), "check", "auditree.compliance_config", "--ci")
	assert.Equal(t, 1, code, "should exit 1 when a check errors")
}

func TestE2E_History(t *testing.T) {
	lockerDir := filepath.Join(t.TempDir(), "locker")
	_, stderr, code := run(t, lockerDir, "fetch", "auditree.compliance_config")
	require.Equal(t, 0, code, stderr)

	out, _, code := run(t, lockerDir, "history", "--json")
	require.Equal(t, 0, code)
	var runs []domain.RunReport
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	assert.Len(t, runs, 1)
}

// --- Errors ---

func TestE2E_UnknownCheck(t *testing.T) {
	_, stderr, code := run(t, filepath.Join(t.TempDir(), "locker"), "check", "nope")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, `unknown check "nope"`)
}
