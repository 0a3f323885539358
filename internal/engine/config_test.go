package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchtower/internal/engine/check"
)

func writeChecksFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSpecs(t *testing.T) {
	path := writeChecksFile(t, `
checks:
  - key: http:example.com
    kind: http
    target: https://example.com/health
    timeout: 5s
    interval: 30s
    cooldown: 10m
    params:
      expect_status: "200"
  - key: tcp:db:5432
    kind: tcp
    target: db.internal:5432
    timeout: 2s
    interval: 1m
`)

	specs, err := LoadSpecs(path)
	require.NoError(t, err)
	require.Len(t, specs, 2)

	assert.Equal(t, "http:example.com", specs[0].Key)
	assert.Equal(t, check.KindHTTP, specs[0].Kind)
	assert.Equal(t, 5*time.Second, specs[0].Timeout)
	assert.Equal(t, 30*time.Second, specs[0].Interval)
	assert.Equal(t, 10*time.Minute, specs[0].Cooldown)
	assert.Equal(t, "200", specs[0].Params["expect_status"])

	assert.Equal(t, check.KindTCP, specs[1].Kind)
	assert.Zero(t, specs[1].Cooldown)
}

func TestLoadSpecs_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		errPart string
	}{
		{
			name: "duplicate key",
			content: `
checks:
  - {key: a, kind: http, target: t, timeout: 1s, interval: 1s}
  - {key: a, kind: tcp, target: t, timeout: 1s, interval: 1s}
`,
			errPart: "duplicate check key",
		},
		{
			name: "missing target",
			content: `
checks:
  - {key: a, kind: http, timeout: 1s, interval: 1s}
`,
			errPart: "Target",
		},
		{
			name: "zero interval",
			content: `
checks:
  - {key: a, kind: http, target: t, timeout: 1s}
`,
			errPart: "Interval",
		},
		{
			name:    "empty check list",
			content: "checks: []\n",
			errPart: "no checks",
		},
		{
			name:    "not yaml",
			content: "{{{",
			errPart: "parsing",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadSpecs(writeChecksFile(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errPart)
		})
	}
}

func TestLoadSpecs_MissingFile(t *testing.T) {
	_, err := LoadSpecs(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "no-env"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownGrace)
	assert.Equal(t, "file", cfg.State.Backend)
	assert.Equal(t, 300*time.Second, cfg.Policy.Cooldown)
	assert.True(t, cfg.Policy.NotifyRecovery)
	assert.False(t, cfg.Policy.TwoStrike)
	assert.Equal(t, 3, cfg.Policy.CriticalAfter)
	assert.Equal(t, 5, cfg.Dispatch.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Dispatch.MaxDelay)
}
