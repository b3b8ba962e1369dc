package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "recordcache.yaml")
	content := "sql:\n" +
		"  driver: sqlite3\n" +
		"  dsn: " + filepath.Join(dir, "cache.db") + "\n" +
		"  max_open_conns: 1\n" +
		"cache:\n" +
		"  cacheable_sources: [Solr]\n" +
		"loader:\n" +
		"  retrieval_timeout: 2s\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t)

	config, err := loadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !config.SQLEnabled() {
		t.Error("expected sql tier to be enabled")
	}
	if len(config.Cache.CacheableSources) != 1 || config.Cache.CacheableSources[0] != "Solr" {
		t.Errorf("unexpected cacheable sources %v", config.Cache.CacheableSources)
	}
	if config.Loader.RetrievalTimeout != 2*time.Second {
		t.Errorf("expected 2s timeout, got %v", config.Loader.RetrievalTimeout)
	}
	if config.Cache.DefaultPolicy != "Default" {
		t.Errorf("expected defaults to survive, got policy %q", config.Cache.DefaultPolicy)
	}
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("RECORDCACHE_CACHE_DEFAULT_POLICY", "Favorite")

	config, err := loadConfig(writeConfig(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Cache.DefaultPolicy != "Favorite" {
		t.Errorf("expected env to override policy, got %q", config.Cache.DefaultPolicy)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for explicit missing config file")
	}
}

func TestCommands_RoundTrip(t *testing.T) {
	config := writeConfig(t)

	if _, err := run(t, "migrate", "-c", config); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if _, err := run(t, "put", "-c", config, "-u", "u1", "Solr|a", `{"id":"a","title":"Cached"}`); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	out, err := run(t, "lookup", "-c", config, "-u", "u1", "Solr|a", "Solr|b")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	var recs []map[string]any
	if err := json.Unmarshal([]byte(out), &recs); err != nil {
		t.Fatalf("lookup output is not JSON: %v\n%s", err, out)
	}
	if len(recs) != 1 || recs[0]["title"] != "Cached" {
		t.Errorf("unexpected lookup result %v", recs)
	}

	if _, err := run(t, "cleanup", "-c", config, "-u", "u1"); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	out, err = run(t, "lookup", "-c", config, "-u", "u1", "Solr|a")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	recs = nil
	if err := json.Unmarshal([]byte(out), &recs); err != nil {
		t.Fatalf("lookup output is not JSON: %v\n%s", err, out)
	}
	if len(recs) != 0 {
		t.Errorf("expected no records after cleanup, got %v", recs)
	}

	out, err = run(t, "prune", "-c", config, "--older-than", "1h")
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if !strings.Contains(out, "removed 0 entries") {
		t.Errorf("unexpected prune output %q", out)
	}
}

func TestKeyCommand(t *testing.T) {
	config := writeConfig(t)

	out, err := run(t, "key", "-c", config, "Solr|1")
	if err != nil {
		t.Fatalf("key failed: %v", err)
	}
	// md5 of {"recordId":"1","source":"VuFind"}
	key := strings.Fields(out)[0]
	if len(key) != 32 {
		t.Errorf("expected 32 char md5 key, got %q", key)
	}

	other, err := run(t, "key", "-c", config, "-p", "Favorite", "Solr|1")
	if err != nil {
		t.Fatalf("key failed: %v", err)
	}
	if strings.Fields(other)[0] == key {
		t.Error("expected policy to change the key")
	}
}

func TestPutCommand_InvalidJSON(t *testing.T) {
	if _, err := run(t, "put", "-c", writeConfig(t), "Solr|a", "{not json"); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestReadData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.json")
	if err := os.WriteFile(path, []byte(`{"id":"f"}`), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	tests := []struct {
		arg   string
		stdin string
		want  string
	}{
		{arg: `{"id":"x"}`, want: `{"id":"x"}`},
		{arg: "@" + path, want: `{"id":"f"}`},
		{arg: "-", stdin: `{"id":"s"}`, want: `{"id":"s"}`},
	}

	for _, tt := range tests {
		got, err := readData(tt.arg, strings.NewReader(tt.stdin))
		if err != nil {
			t.Errorf("readData(%q) failed: %v", tt.arg, err)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("readData(%q): expected %s, got %s", tt.arg, tt.want, got)
		}
	}
}
