package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tribes-emu/dsovm/pkg/storage"
)

const testConfigPath = "./testdata/dsovm.test.yml"

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile(testConfigPath)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Logger.LogLevel)
	require.Equal(t, "json", cfg.Logger.LogEncoding)
	require.Equal(t, 64, cfg.VM.MaxCallDepth)
	require.Equal(t, "windows-1252", cfg.VM.Charset)
	require.Equal(t, []string{"quit"}, cfg.VM.DisabledBuiltins)
	require.Equal(t, DefaultCacheSize, cfg.Loader.CacheSize)
	require.Equal(t, storage.BoltDB, cfg.Storage.Type)
	require.Equal(t, "./chains/scripts.bolt", cfg.Storage.BoltDBOptions.FilePath)
	require.True(t, cfg.Prometheus.Enabled)
	require.Equal(t, []string{":2112"}, cfg.Prometheus.GetAddresses())
}

func TestLoadDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())

	cfg, err = Decode(nil)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestDecodeInvalid(t *testing.T) {
	for name, data := range map[string]string{
		"unknown field":  "VM:\n  Unknown: 1\n",
		"bad encoding":   "Logger:\n  LogEncoding: xml\n",
		"bad depth":      "VM:\n  MaxCallDepth: 0\n",
		"bad cache":      "Loader:\n  CacheSize: -1\n",
		"bad charset":    "VM:\n  Charset: no-such-charset\n",
		"bad storage":    "Storage:\n  Type: leveldb\n",
		"no bolt path":   "Storage:\n  Type: boltdb\n",
		"malformed yaml": "VM: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(data))
			require.Error(t, err)
		})
	}
}

func TestLoadFileUnreadable(t *testing.T) {
	dir := t.TempDir()
	// A directory can be stat'ed but not read as a file.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "cfg.yml"), 0o755))
	_, err := LoadFile(filepath.Join(dir, "cfg.yml"))
	require.Error(t, err)
}

func TestSampleConfig(t *testing.T) {
	cfg, err := LoadFile(filepath.Join("..", "..", "config", "dsovm.yml"))
	require.NoError(t, err)
	require.Equal(t, DefaultMaxCallDepth, cfg.VM.MaxCallDepth)
	require.Equal(t, storage.BoltDB, cfg.Storage.Type)
	require.False(t, cfg.Prometheus.Enabled)
	require.Equal(t, []string{":2113"}, cfg.Pprof.GetAddresses())
}
