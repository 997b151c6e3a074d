package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/gpuwatch/internal/logger"
	"github.com/rileyhilliard/gpuwatch/internal/telemetry"
)

// testEnv points every command at a throwaway config, store and SSH config.
type testEnv struct {
	dir        string
	configPath string
	statePath  string
	sshPath    string
}

func setupCLI(t *testing.T, extraConfig string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		statePath:  filepath.Join(dir, "state.yaml"),
		sshPath:    filepath.Join(dir, "ssh_config"),
	}

	content := "version: 1\nstore:\n  backend: file\n  path: " + env.statePath + "\n" + extraConfig
	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0644))

	oldCfg, oldAlias, oldInteractive, oldDialer := cfgFile, aliasConfigPath, isInteractive, dialerFor
	oldPick, oldDash, oldMode, oldLog := pickAlias, runDashboard, machineMode, logger.Default()
	t.Cleanup(func() {
		cfgFile, aliasConfigPath, isInteractive, dialerFor = oldCfg, oldAlias, oldInteractive, oldDialer
		pickAlias, runDashboard, machineMode = oldPick, oldDash, oldMode
		logger.SetDefault(oldLog)
	})

	cfgFile = env.configPath
	aliasConfigPath = func() string { return env.sshPath }
	isInteractive = func() bool { return false }
	machineMode = false
	logger.SetDefault(logger.Noop())
	return env
}

func (e *testEnv) writeSSHConfig(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(e.sshPath, []byte(content), 0644))
}

// useDialer routes every session's dials through d.
func useDialer(d telemetry.Dialer) {
	dialerFor = func(telemetry.Policy) telemetry.Dialer { return d }
}

// syncBuffer is a bytes.Buffer safe for a writer goroutine and a reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
