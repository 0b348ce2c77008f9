//go:build !windows

package process

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunner_CapturesOutput(t *testing.T) {
	requireShell(t)

	res, err := (&ExecRunner{}).Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo out; echo err >&2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
}

func TestExecRunner_NonZeroExitKeepsStderr(t *testing.T) {
	requireShell(t)

	res, err := (&ExecRunner{}).Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo 'source file could not be loaded' >&2; exit 3"},
	})
	require.Error(t, err)
	var exitErr *exec.ExitError
	assert.True(t, errors.As(err, &exitErr))
	assert.Contains(t, res.Stderr, "could not be loaded")
}

func TestExecRunner_UsesWorkingDir(t *testing.T) {
	requireShell(t)

	dir := t.TempDir()
	res, err := (&ExecRunner{}).Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "pwd"}, Dir: dir})
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(filepath.Clean(res.Stdout[:len(res.Stdout)-1]))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExecRunner_ContextTimeoutKillsProcess(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := (&ExecRunner{WaitDelay: time.Second}).Run(ctx, Command{Name: "sh", Args: []string{"-c", "sleep 10"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecRunner_MissingBinary(t *testing.T) {
	_, err := (&ExecRunner{}).Run(context.Background(), Command{Name: filepath.Join(os.TempDir(), "definitely-missing-soffice")})
	assert.Error(t, err)
}

func TestCommandString(t *testing.T) {
	c := Command{Name: "soffice", Args: []string{"--headless"}}
	assert.Equal(t, "soffice [--headless]", c.String())
}
