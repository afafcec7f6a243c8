package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, c.StateDir)
	require.Equal(t, filepath.Join(c.StateDir, "audit"), c.Audit.Dir)
	require.Equal(t, filepath.Join(c.StateDir, "tokens.db"), c.Tokens.Path)
	require.Equal(t, 60, c.Tokens.DefaultTTLSeconds)
	require.Equal(t, time.Minute, c.DefaultTokenTTL())

	d, err := c.ExecTimeout()
	require.NoError(t, err)
	require.Equal(t, 300*time.Second, d)
}

func TestLoadFileOverridesAndFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := `state_dir: ` + dir + `
tokens:
  default_ttl_seconds: 120
exec:
  timeout: 30s
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, dir, c.StateDir)
	require.Equal(t, 120, c.Tokens.DefaultTTLSeconds)
	require.Equal(t, filepath.Join(dir, "audit"), c.Audit.Dir)
	require.Equal(t, "debug", c.Logging.Level)
	require.Equal(t, "json", c.Logging.Format)

	d, err := c.ExecTimeout()
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, d)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("no_such_key: true\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	for name, doc := range map[string]string{
		"bad timeout": "exec:\n  timeout: never\n",
		"bad level":   "logging:\n  level: loud\n",
		"bad format":  "logging:\n  format: xml\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "c.yaml")
			require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}
