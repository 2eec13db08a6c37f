package command_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/command"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

func TestRun_Success(t *testing.T) {
	r := command.New(zaptest.NewLogger(t))
	stdout, _, err := r.Run(context.Background(), domain.Command{Args: []string{"sh", "-c", "echo hello"}})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", stdout)
}

func TestRun_FailureRedactsSecrets(t *testing.T) {
	r := command.New(zaptest.NewLogger(t))
	_, _, err := r.Run(context.Background(), domain.Command{
		Args:    []string{"sh", "-c", "echo key=s3cret; echo bad s3cret >&2; exit 3"},
		Secrets: []string{"s3cret"},
	})
	require.Error(t, err)

	var execErr *command.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 3, execErr.ReturnCode)
	assert.Equal(t, "key=***\n", execErr.Stdout)
	assert.Equal(t, "bad ***\n", execErr.Stderr)
	assert.NotContains(t, execErr.Cmd, "s3cret")
	assert.NotContains(t, err.Error(), "s3cret")
}

func TestRun_Timeout(t *testing.T) {
	r := command.New(zaptest.NewLogger(t))
	_, _, err := r.Run(context.Background(), domain.Command{
		Args:    []string{"sleep", "5"},
		Timeout: 50 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRun_EmptyCommand(t *testing.T) {
	_, _, err := command.New(nil).Run(context.Background(), domain.Command{})
	assert.Error(t, err)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "a *** b ***", command.Redact("a x b x", []string{"x", ""}))
}

type scriptedRunner struct {
	codes []int
	calls [][]string
}

func (s *scriptedRunner) Run(_ context.Context, cmd domain.Command) (string, string, error) {
	s.calls = append(s.calls, cmd.Args)
	code := s.codes[0]
	s.codes = s.codes[1:]
	if code != 0 {
		return "", "", &command.ExecutionError{Cmd: cmd.Args[0], ReturnCode: code}
	}
	return "ok", "", nil
}

func TestRunWithPluginRetry(t *testing.T) {
	ls := domain.Command{Args: []string{"ibmcloud", "ks", "cluster", "ls"}}
	install := domain.Command{Args: []string{"ibmcloud", "plugin", "install", "container-service"}}

	t.Run("installs once then retries", func(t *testing.T) {
		s := &scriptedRunner{codes: []int{2, 0, 0}}
		out, _, err := command.RunWithPluginRetry(context.Background(), s, ls, install)
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
		assert.Equal(t, [][]string{ls.Args, install.Args, ls.Args}, s.calls)
	})

	t.Run("retry failure is returned", func(t *testing.T) {
		s := &scriptedRunner{codes: []int{2, 0, 2}}
		_, _, err := command.RunWithPluginRetry(context.Background(), s, ls, install)
		assert.Equal(t, 2, command.ReturnCode(err))
		assert.Len(t, s.calls, 3)
	})

	t.Run("other codes are not retried", func(t *testing.T) {
		s := &scriptedRunner{codes: []int{1}}
		_, _, err := command.RunWithPluginRetry(context.Background(), s, ls, install)
		assert.Equal(t, 1, command.ReturnCode(err))
		assert.Len(t, s.calls, 1)
	})
}
