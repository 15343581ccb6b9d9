// Package config resolves the startup configuration consumed by the sync
// engine: which remote provider is active, its credentials, and the local
// state backend. Resolution happens once at startup; reconfiguration
// means restarting.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultRepoPath is the canonical file name used both as the gist file
// entry and the repo-hosted path.
const DefaultRepoPath = "promptnexus_data.json"

const (
	DefaultSyncInterval = 5 * time.Minute
	DefaultSyncTimeout  = 20 * time.Second
)

// Provider is a sealed tagged union of the configured remote backends.
// Call sites switch exhaustively on the concrete type.
type Provider interface {
	Name() string
	sealed()
}

type Local struct{}

type Gist struct {
	Token  string
	GistID string
}

type RepoFile struct {
	Token string
	Owner string
	Repo  string
	Path  string
}

type Notion struct {
	APIKey     string
	DatabaseID string
}

func (Local) Name() string    { return "local" }
func (Gist) Name() string     { return "gist" }
func (RepoFile) Name() string { return "repo-file" }
func (Notion) Name() string   { return "notion" }

func (Local) sealed()    {}
func (Gist) sealed()     {}
func (RepoFile) sealed() {}
func (Notion) sealed()   {}

type Config struct {
	Provider              Provider
	StateDSN              string
	SyncInterval          time.Duration
	SyncTimeout           time.Duration
	AdminSecret           string
	RequirePasswordForAdd bool
}

// FromEnv resolves configuration from the environment, keeping the
// original deployment variable names. Unknown or incomplete provider
// configuration is a startup error, not a silent fallback.
func FromEnv() (*Config, error) {
	raw := rawConfig{
		StorageProvider:       os.Getenv("STORAGE_PROVIDER"),
		NotionAPIKey:          os.Getenv("NOTION_API_KEY"),
		NotionDatabaseID:      os.Getenv("NOTION_DATABASE_ID"),
		GitHubToken:           os.Getenv("GITHUB_TOKEN"),
		GitHubOwner:           os.Getenv("GITHUB_OWNER"),
		GitHubRepo:            os.Getenv("GITHUB_REPO"),
		GitHubPath:            os.Getenv("GITHUB_PATH"),
		GitHubGistID:          os.Getenv("GITHUB_GIST_ID"),
		AdminSecret:           os.Getenv("ADMIN_PASSWORD"),
		RequirePasswordForAdd: os.Getenv("REQUIRE_PASSWORD_FOR_ADD"),
		StateDSN:              os.Getenv("PROMPTSYNC_STATE_DSN"),
		SyncInterval:          os.Getenv("PROMPTSYNC_SYNC_INTERVAL"),
		SyncTimeout:           os.Getenv("PROMPTSYNC_SYNC_TIMEOUT"),
	}
	return raw.resolve()
}

// LoadFile reads a YAML configuration file, expanding ${VAR} references
// from the environment before parsing.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(data))
	var file fileConfig
	if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	raw := rawConfig{
		StorageProvider:       file.StorageProvider,
		NotionAPIKey:          file.Notion.APIKey,
		NotionDatabaseID:      file.Notion.DatabaseID,
		GitHubToken:           file.GitHub.Token,
		GitHubOwner:           file.GitHub.Owner,
		GitHubRepo:            file.GitHub.Repo,
		GitHubPath:            file.GitHub.Path,
		GitHubGistID:          file.GitHub.GistID,
		AdminSecret:           file.AdminSecret,
		RequirePasswordForAdd: file.RequirePasswordForAdd,
		StateDSN:              file.StateDSN,
		SyncInterval:          file.SyncInterval,
		SyncTimeout:           file.SyncTimeout,
	}
	return raw.resolve()
}

type fileConfig struct {
	StorageProvider string `yaml:"storageProvider"`
	Notion          struct {
		APIKey     string `yaml:"apiKey"`
		DatabaseID string `yaml:"databaseId"`
	} `yaml:"notion"`
	GitHub struct {
		Token  string `yaml:"token"`
		Owner  string `yaml:"owner"`
		Repo   string `yaml:"repo"`
		Path   string `yaml:"path"`
		GistID string `yaml:"gistId"`
	} `yaml:"github"`
	AdminSecret           string `yaml:"adminSecret"`
	RequirePasswordForAdd string `yaml:"requirePasswordForAdd"`
	StateDSN              string `yaml:"stateDsn"`
	SyncInterval          string `yaml:"syncInterval"`
	SyncTimeout           string `yaml:"syncTimeout"`
}

type rawConfig struct {
	StorageProvider       string
	NotionAPIKey          string
	NotionDatabaseID      string
	GitHubToken           string
	GitHubOwner           string
	GitHubRepo            string
	GitHubPath            string
	GitHubGistID          string
	AdminSecret           string
	RequirePasswordForAdd string
	StateDSN              string
	SyncInterval          string
	SyncTimeout           string
}

func (r rawConfig) resolve() (*Config, error) {
	provider, err := r.resolveProvider()
	if err != nil {
		return nil, err
	}
	interval, err := parseDurationDefault(r.SyncInterval, DefaultSyncInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid sync interval %q: %w", r.SyncInterval, err)
	}
	timeout, err := parseDurationDefault(r.SyncTimeout, DefaultSyncTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid sync timeout %q: %w", r.SyncTimeout, err)
	}
	return &Config{
		Provider:              provider,
		StateDSN:              strings.TrimSpace(r.StateDSN),
		SyncInterval:          interval,
		SyncTimeout:           timeout,
		AdminSecret:           strings.TrimSpace(r.AdminSecret),
		RequirePasswordForAdd: strings.EqualFold(strings.TrimSpace(r.RequirePasswordForAdd), "true"),
	}, nil
}

func (r rawConfig) resolveProvider() (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(r.StorageProvider))
	switch name {
	case "", "local":
		return Local{}, nil
	case "gist":
		token := strings.TrimSpace(r.GitHubToken)
		if token == "" {
			return nil, fmt.Errorf("gist provider: missing GITHUB_TOKEN")
		}
		return Gist{Token: token, GistID: strings.TrimSpace(r.GitHubGistID)}, nil
	case "github", "repo-file":
		var missing []string
		if strings.TrimSpace(r.GitHubToken) == "" {
			missing = append(missing, "GITHUB_TOKEN")
		}
		if strings.TrimSpace(r.GitHubOwner) == "" {
			missing = append(missing, "GITHUB_OWNER")
		}
		if strings.TrimSpace(r.GitHubRepo) == "" {
			missing = append(missing, "GITHUB_REPO")
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("github provider: missing %s", strings.Join(missing, ", "))
		}
		path := strings.TrimSpace(r.GitHubPath)
		if path == "" {
			path = DefaultRepoPath
		}
		return RepoFile{
			Token: strings.TrimSpace(r.GitHubToken),
			Owner: strings.TrimSpace(r.GitHubOwner),
			Repo:  strings.TrimSpace(r.GitHubRepo),
			Path:  path,
		}, nil
	case "notion":
		var missing []string
		if strings.TrimSpace(r.NotionAPIKey) == "" {
			missing = append(missing, "NOTION_API_KEY")
		}
		if strings.TrimSpace(r.NotionDatabaseID) == "" {
			missing = append(missing, "NOTION_DATABASE_ID")
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("notion provider: missing %s", strings.Join(missing, ", "))
		}
		return Notion{
			APIKey:     strings.TrimSpace(r.NotionAPIKey),
			DatabaseID: strings.TrimSpace(r.NotionDatabaseID),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", name)
	}
}

func parseDurationDefault(raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if value <= 0 {
		return fallback, nil
	}
	return value, nil
}
