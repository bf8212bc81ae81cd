package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magdaddy/openfairdb/internal/config"
	ofdberrors "github.com/magdaddy/openfairdb/internal/errors"
	"github.com/magdaddy/openfairdb/internal/store"
	"github.com/magdaddy/openfairdb/pkg/version"
)

const sampleImport = `{
  "entries": [
    {"id": "bakery", "title": "Organic Bakery", "description": "Bread and cake", "lat": 48.78, "lng": 9.18, "city": "Stuttgart", "categories": ["c1"], "tags": ["bio", "food"]},
    {"id": "repair", "title": "Repair Cafe", "description": "Fix things together", "lat": 48.79, "lng": 9.19, "tags": ["diy"]},
    {"id": "fiji", "title": "Island Coop", "lat": -17.7, "lng": 178.1, "tags": ["bio"]}
  ],
  "ratings": [
    {"id": "r1", "entry_id": "repair", "value": 3, "context": "fairness"},
    {"id": "r2", "entry_id": "bakery", "value": 1, "context": "Diversity"}
  ]
}`

// testEnv isolates config, logs and data in temp directories and returns
// the path of a config file pointing at a file-backed store and index.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	for _, key := range []string{"OFDB_INDEX_PATH", "OFDB_STORE_PATH", "OFDB_LOG_LEVEL", "OFDB_LOG_FILE", "OFDB_RATINGS_WORKERS"} {
		t.Setenv(key, "")
	}

	cfg := config.NewConfig()
	cfg.Index.Path = filepath.Join(dir, "index")
	cfg.Store.Path = filepath.Join(dir, "ofdb.sqlite")
	cfg.Logging.Level = "error"
	path := filepath.Join(dir, "ofdb.yaml")
	require.NoError(t, cfg.WriteYAML(path))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func importSample(t *testing.T, cfgPath string) {
	t.Helper()
	file := filepath.Join(filepath.Dir(cfgPath), "import.json")
	require.NoError(t, os.WriteFile(file, []byte(sampleImport), 0o644))

	out, err := run(t, "--config", cfgPath, "import", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 3 entries and 2 ratings")
	assert.Contains(t, out, "Indexed 3 entries")
}

func searchJSON(t *testing.T, args ...string) []searchResultJSON {
	t.Helper()
	out, err := run(t, append(args, "--json")...)
	require.NoError(t, err)
	var results []searchResultJSON
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	return results
}

func resultIDs(results []searchResultJSON) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.ID)
	}
	return out
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"reindex", "search", "import", "stats", "config", "logs", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestSearchCmd_EndToEnd(t *testing.T) {
	cfgPath := testEnv(t)

	// Given: imported and indexed sample data
	importSample(t, cfgPath)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"all by rating", nil, []string{"repair", "bakery", "fiji"}},
		{"hash tag", []string{"#bio"}, []string{"bakery", "fiji"}},
		{"text", []string{"bread"}, []string{"bakery"}},
		{"tag flag", []string{"--tags", "diy,food"}, []string{"repair", "bakery"}},
		{"category", []string{"--categories", "c1"}, []string{"bakery"}},
		{"bbox", []string{"--bbox", "48,9,49,10"}, []string{"repair", "bakery"}},
		{"antimeridian", []string{"--bbox", "-20,170,-10,-170"}, []string{"fiji"}},
		{"limit", []string{"--limit", "1"}, []string{"repair"}},
		{"near", []string{"--near", "48.78,9.18"}, []string{"bakery", "repair", "fiji"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", cfgPath, "search"}, tt.args...)
			assert.Equal(t, tt.want, resultIDs(searchJSON(t, args...)))
		})
	}
}

func TestImportAndSearch_DefaultConfig(t *testing.T) {
	cfgPath := testEnv(t)
	file := filepath.Join(filepath.Dir(cfgPath), "import.json")
	require.NoError(t, os.WriteFile(file, []byte(sampleImport), 0o644))

	// Given: data imported without any config file
	out, err := run(t, "import", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 3 entries")

	// Then: a later command finds it in the default data directory
	results := searchJSON(t, "search", "#bio")
	assert.Equal(t, []string{"bakery", "fiji"}, resultIDs(results))
	assert.FileExists(t, config.DefaultStorePath())
	assert.DirExists(t, config.DefaultIndexPath())
}

func TestReindexCmd_DropsDeletedEntries(t *testing.T) {
	cfgPath := testEnv(t)
	importSample(t, cfgPath)

	// Given: the best rated entry deleted from the store
	repo, err := store.Open(filepath.Join(filepath.Dir(cfgPath), "ofdb.sqlite"))
	require.NoError(t, err)
	require.NoError(t, repo.DeleteEntry(context.Background(), "repair"))
	require.NoError(t, repo.Close())

	// When: reindexing
	_, err = run(t, "--config", cfgPath, "reindex")
	require.NoError(t, err)

	// Then: the top slot goes to the next entry
	results := searchJSON(t, "--config", cfgPath, "search", "--limit", "1")
	assert.Equal(t, []string{"bakery"}, resultIDs(results))
}

func TestSearchCmd_TextOutput(t *testing.T) {
	cfgPath := testEnv(t)
	importSample(t, cfgPath)

	out, err := run(t, "--config", cfgPath, "search", "repair")

	require.NoError(t, err)
	assert.Contains(t, out, "1 entries")
	assert.Contains(t, out, "1. Repair Cafe")
	assert.Contains(t, out, "rating:")
	assert.Contains(t, out, "0.50")
}

func TestSearchCmd_InvalidInput(t *testing.T) {
	cfgPath := testEnv(t)

	_, err := run(t, "--config", cfgPath, "search", "--bbox", "1,2,3")
	assert.True(t, ofdberrors.HasCode(err, ofdberrors.ErrCodeInvalidBoundingBox), err)

	_, err = run(t, "--config", cfgPath, "search", "--limit", "-1")
	assert.True(t, ofdberrors.HasCode(err, ofdberrors.ErrCodeInvalidQuery), err)
}

func TestStatsCmd(t *testing.T) {
	cfgPath := testEnv(t)
	importSample(t, cfgPath)

	out, err := run(t, "--config", cfgPath, "stats", "--json")
	require.NoError(t, err)

	var stats statsJSON
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, uint64(3), stats.IndexedEntries)
	assert.Equal(t, 3, stats.StoredEntries)
}

func TestImportCmd_Errors(t *testing.T) {
	cfgPath := testEnv(t)
	dir := filepath.Dir(cfgPath)

	_, err := run(t, "--config", cfgPath, "import", filepath.Join(dir, "missing.json"))
	assert.True(t, ofdberrors.HasCode(err, ofdberrors.ErrCodeFileNotFound), err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = run(t, "--config", cfgPath, "import", bad)
	assert.True(t, ofdberrors.HasCode(err, ofdberrors.ErrCodeInvalidInput), err)
}

func TestConfigCmd(t *testing.T) {
	cfgPath := testEnv(t)

	// When: showing the effective config
	out, err := run(t, "--config", cfgPath, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "reindex_batch_size: 1000")

	// When: initializing the user config twice
	_, err = run(t, "config", "init")
	require.NoError(t, err)
	assert.FileExists(t, config.GetUserConfigPath())

	_, err = run(t, "config", "init")
	assert.Error(t, err)

	// Then: --force overwrites and keeps a backup
	out, err = run(t, "config", "init", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Backed up previous config")
	backups, err := config.ListBackups(config.GetUserConfigPath())
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestConfigLoad_MissingFile(t *testing.T) {
	testEnv(t)

	_, err := run(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "stats")

	assert.True(t, ofdberrors.HasCode(err, ofdberrors.ErrCodeConfigNotFound), err)
}

func TestLogsCmd(t *testing.T) {
	testEnv(t)
	logFile := filepath.Join(t.TempDir(), "ofdb.log")
	lines := []string{
		`{"time":"2026-01-02T10:00:00Z","level":"INFO","msg":"reindex_completed","indexed":3}`,
		`{"time":"2026-01-02T10:00:01Z","level":"WARN","msg":"search_entry_not_found","id":"x"}`,
	}
	require.NoError(t, os.WriteFile(logFile, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	out, err := run(t, "logs", "--file", logFile, "--level", "warn")

	require.NoError(t, err)
	assert.Contains(t, out, "search_entry_not_found id=x")
	assert.NotContains(t, out, "reindex_completed")
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, version.Name)
	assert.Contains(t, out, "commit")

	out, err = run(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Version, strings.TrimSpace(out))

	out, err = run(t, "version", "--json")
	require.NoError(t, err)
	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Version, info.Version)
}
