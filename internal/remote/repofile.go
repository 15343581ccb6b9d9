package remote

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/promptnexus/promptsync/internal/config"
	"github.com/promptnexus/promptsync/internal/promptsync"
)

// RepoFileAdapter syncs the document as a single JSON file committed to a
// GitHub repository through the contents API.
type RepoFileAdapter struct {
	client  *apiClient
	baseURL string
	token   string
	owner   string
	repo    string
	path    string
}

func NewRepoFileAdapter(cfg config.RepoFile, httpClient *http.Client) *RepoFileAdapter {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = config.DefaultRepoPath
	}
	return &RepoFileAdapter{
		client:  newAPIClient(httpClient),
		baseURL: defaultGitHubBaseURL,
		token:   strings.TrimSpace(cfg.Token),
		owner:   strings.TrimSpace(cfg.Owner),
		repo:    strings.TrimSpace(cfg.Repo),
		path:    path,
	}
}

func (a *RepoFileAdapter) Provider() string { return "repo-file" }

type repoContentsResponse struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type repoPutRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
}

func (a *RepoFileAdapter) checkConfigured() error {
	var missing []string
	if a.token == "" {
		missing = append(missing, "token")
	}
	if a.owner == "" {
		missing = append(missing, "owner")
	}
	if a.repo == "" {
		missing = append(missing, "repo")
	}
	if len(missing) > 0 {
		return fmt.Errorf("repo-file adapter: missing %s: %w", strings.Join(missing, ", "), promptsync.ErrNotConfigured)
	}
	return nil
}

func (a *RepoFileAdapter) contentsURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		a.baseURL, url.PathEscape(a.owner), url.PathEscape(a.repo), a.path)
}

// Fetch returns the committed document. A missing file is a deterministic
// empty document rather than an error: the repo is authoritative and an
// absent file means an intentionally empty library.
func (a *RepoFileAdapter) Fetch(ctx context.Context) (*promptsync.Document, error) {
	if err := a.checkConfigured(); err != nil {
		return nil, err
	}
	var resp repoContentsResponse
	err := a.client.doJSON(ctx, http.MethodGet, a.contentsURL(), a.headers(), nil, &resp)
	if err != nil {
		if isHTTPStatus(err, http.StatusNotFound) {
			return promptsync.EmptyDocument(), nil
		}
		return nil, fmt.Errorf("fetch %s/%s/%s: %w", a.owner, a.repo, a.path, err)
	}
	raw, err := decodeRepoContent(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s/%s: %w", a.owner, a.repo, a.path, err)
	}
	doc, err := promptsync.ParseDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s/%s/%s: %w", a.owner, a.repo, a.path, err)
	}
	return doc, nil
}

func (a *RepoFileAdapter) Push(ctx context.Context, doc *promptsync.Document) (PushResult, error) {
	if err := a.checkConfigured(); err != nil {
		return PushResult{}, err
	}
	content, err := promptsync.EncodeDocument(doc)
	if err != nil {
		return PushResult{}, err
	}

	// The contents API requires the current blob sha to update an
	// existing file; a 404 means the file is being created.
	sha := ""
	var current repoContentsResponse
	err = a.client.doJSON(ctx, http.MethodGet, a.contentsURL(), a.headers(), nil, &current)
	switch {
	case err == nil:
		sha = current.SHA
	case isHTTPStatus(err, http.StatusNotFound):
	default:
		return PushResult{}, fmt.Errorf("read current sha for %s/%s/%s: %w", a.owner, a.repo, a.path, err)
	}

	req := repoPutRequest{
		Message: "Update prompt library data - " + doc.LastUpdated,
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     sha,
	}
	if err := a.client.doJSON(ctx, http.MethodPut, a.contentsURL(), a.headers(), req, nil); err != nil {
		return PushResult{}, fmt.Errorf("commit %s/%s/%s: %w", a.owner, a.repo, a.path, err)
	}
	if sha == "" {
		return PushResult{Created: 1}, nil
	}
	return PushResult{Updated: 1}, nil
}

func (a *RepoFileAdapter) headers() map[string]string {
	return map[string]string{
		"Authorization": "token " + a.token,
		"Accept":        "application/vnd.github.v3+json",
	}
}

// decodeRepoContent decodes the base64 blob from the contents API, which
// wraps lines with newlines.
func decodeRepoContent(content string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, content)
	return base64.StdEncoding.DecodeString(cleaned)
}
