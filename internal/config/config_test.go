package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"STORAGE_PROVIDER", "NOTION_API_KEY", "NOTION_DATABASE_ID",
		"GITHUB_TOKEN", "GITHUB_OWNER", "GITHUB_REPO", "GITHUB_PATH", "GITHUB_GIST_ID",
		"ADMIN_PASSWORD", "REQUIRE_PASSWORD_FOR_ADD",
		"PROMPTSYNC_STATE_DSN", "PROMPTSYNC_SYNC_INTERVAL", "PROMPTSYNC_SYNC_TIMEOUT",
	} {
		t.Setenv(name, "")
	}
}

func TestFromEnvDefaultsToLocal(t *testing.T) {
	clearProviderEnv(t)
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if _, ok := cfg.Provider.(Local); !ok {
		t.Fatalf("expected local provider, got %T", cfg.Provider)
	}
	if cfg.SyncInterval != DefaultSyncInterval || cfg.SyncTimeout != DefaultSyncTimeout {
		t.Fatalf("expected default durations, got %+v", cfg)
	}
}

func TestFromEnvGist(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("STORAGE_PROVIDER", "gist")
	t.Setenv("GITHUB_TOKEN", "tok")
	t.Setenv("GITHUB_GIST_ID", "g1")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	gist, ok := cfg.Provider.(Gist)
	if !ok {
		t.Fatalf("expected gist provider, got %T", cfg.Provider)
	}
	if gist.Token != "tok" || gist.GistID != "g1" {
		t.Fatalf("unexpected gist config: %+v", gist)
	}
}

func TestFromEnvGistRequiresToken(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("STORAGE_PROVIDER", "gist")
	if _, err := FromEnv(); err == nil || !strings.Contains(err.Error(), "GITHUB_TOKEN") {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestFromEnvRepoFile(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("STORAGE_PROVIDER", "github")
	t.Setenv("GITHUB_TOKEN", "tok")
	t.Setenv("GITHUB_OWNER", "octo")
	t.Setenv("GITHUB_REPO", "prompts")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	repo, ok := cfg.Provider.(RepoFile)
	if !ok {
		t.Fatalf("expected repo-file provider, got %T", cfg.Provider)
	}
	if repo.Path != DefaultRepoPath {
		t.Fatalf("expected default path, got %q", repo.Path)
	}
}

func TestFromEnvRepoFileListsAllMissingFields(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("STORAGE_PROVIDER", "repo-file")
	_, err := FromEnv()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, name := range []string{"GITHUB_TOKEN", "GITHUB_OWNER", "GITHUB_REPO"} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("expected %s in error, got %v", name, err)
		}
	}
}

func TestFromEnvNotion(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("STORAGE_PROVIDER", "notion")
	t.Setenv("NOTION_API_KEY", "secret")
	t.Setenv("NOTION_DATABASE_ID", "db1")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	notion, ok := cfg.Provider.(Notion)
	if !ok {
		t.Fatalf("expected notion provider, got %T", cfg.Provider)
	}
	if notion.APIKey != "secret" || notion.DatabaseID != "db1" {
		t.Fatalf("unexpected notion config: %+v", notion)
	}
}

func TestFromEnvUnsupportedProvider(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("STORAGE_PROVIDER", "dropbox")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error for unsupported provider")
	}
}

func TestFromEnvDurationsAndFlags(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("PROMPTSYNC_SYNC_INTERVAL", "30s")
	t.Setenv("PROMPTSYNC_SYNC_TIMEOUT", "5s")
	t.Setenv("REQUIRE_PASSWORD_FOR_ADD", "TRUE")
	t.Setenv("ADMIN_PASSWORD", "hunter2")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if cfg.SyncInterval != 30*time.Second || cfg.SyncTimeout != 5*time.Second {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if !cfg.RequirePasswordForAdd || cfg.AdminSecret != "hunter2" {
		t.Fatalf("unexpected flags: %+v", cfg)
	}
}

func TestFromEnvRejectsBadDuration(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("PROMPTSYNC_SYNC_INTERVAL", "soon")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error for malformed duration")
	}
}

func TestLoadFileExpandsEnv(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("TEST_NOTION_KEY", "secret_from_env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
storageProvider: notion
notion:
  apiKey: ${TEST_NOTION_KEY}
  databaseId: db1
stateDsn: /var/lib/promptsync/state.json
syncInterval: 1m
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	notion, ok := cfg.Provider.(Notion)
	if !ok {
		t.Fatalf("expected notion provider, got %T", cfg.Provider)
	}
	if notion.APIKey != "secret_from_env" {
		t.Fatalf("expected env expansion, got %q", notion.APIKey)
	}
	if cfg.StateDSN != "/var/lib/promptsync/state.json" || cfg.SyncInterval != time.Minute {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
