package remote

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/promptnexus/promptsync/internal/config"
	"github.com/promptnexus/promptsync/internal/promptsync"
)

// GistFileName is the single file entry carrying the document inside the
// backing gist.
const GistFileName = "promptnexus_data.json"

const defaultGitHubBaseURL = "https://api.github.com"

// GistAdapter syncs the document against one private GitHub gist.
type GistAdapter struct {
	client  *apiClient
	baseURL string
	token   string

	mu     sync.Mutex
	gistID string
}

func NewGistAdapter(cfg config.Gist, httpClient *http.Client) *GistAdapter {
	return &GistAdapter{
		client:  newAPIClient(httpClient),
		baseURL: defaultGitHubBaseURL,
		token:   strings.TrimSpace(cfg.Token),
		gistID:  strings.TrimSpace(cfg.GistID),
	}
}

func (a *GistAdapter) Provider() string { return "gist" }

// GistID returns the currently linked gist id, including one assigned by
// a push that created the gist.
func (a *GistAdapter) GistID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gistID
}

type gistFileEntry struct {
	Content   string `json:"content"`
	Truncated bool   `json:"truncated,omitempty"`
}

type gistResponse struct {
	ID    string                   `json:"id"`
	Files map[string]gistFileEntry `json:"files"`
}

type gistWriteRequest struct {
	Description string                   `json:"description,omitempty"`
	Public      *bool                    `json:"public,omitempty"`
	Files       map[string]gistFileEntry `json:"files"`
}

func (a *GistAdapter) Fetch(ctx context.Context) (*promptsync.Document, error) {
	if a.token == "" {
		return nil, fmt.Errorf("gist adapter: missing token: %w", promptsync.ErrNotConfigured)
	}
	gistID := a.GistID()
	if gistID == "" {
		// No gist linked yet: first run.
		return nil, fmt.Errorf("gist adapter: no gist id: %w", promptsync.ErrRemoteNotFound)
	}
	var resp gistResponse
	err := a.client.doJSON(ctx, http.MethodGet, a.baseURL+"/gists/"+gistID, a.headers(), nil, &resp)
	if err != nil {
		if isHTTPStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("gist %s: %w", gistID, promptsync.ErrRemoteNotFound)
		}
		return nil, fmt.Errorf("fetch gist %s: %w", gistID, err)
	}
	entry, ok := resp.Files[GistFileName]
	if !ok {
		return nil, fmt.Errorf("gist %s has no %s: %w", gistID, GistFileName, promptsync.ErrRemoteNotFound)
	}
	doc, err := promptsync.ParseDocument([]byte(entry.Content))
	if err != nil {
		return nil, fmt.Errorf("gist %s: %w", gistID, err)
	}
	return doc, nil
}

func (a *GistAdapter) Push(ctx context.Context, doc *promptsync.Document) (PushResult, error) {
	if a.token == "" {
		return PushResult{}, fmt.Errorf("gist adapter: missing token: %w", promptsync.ErrNotConfigured)
	}
	content, err := promptsync.EncodeDocument(doc)
	if err != nil {
		return PushResult{}, err
	}
	gistID := a.GistID()
	if gistID == "" {
		return a.createGist(ctx, string(content))
	}

	req := gistWriteRequest{
		Files: map[string]gistFileEntry{
			GistFileName: {Content: string(content)},
		},
	}
	err = a.client.doJSON(ctx, http.MethodPatch, a.baseURL+"/gists/"+gistID, a.headers(), req, nil)
	if err != nil {
		if isHTTPStatus(err, http.StatusNotFound) {
			// The linked gist was deleted remotely; start a fresh one.
			return a.createGist(ctx, string(content))
		}
		return PushResult{}, fmt.Errorf("update gist %s: %w", gistID, err)
	}
	return PushResult{RemoteID: gistID, Updated: 1}, nil
}

func (a *GistAdapter) createGist(ctx context.Context, content string) (PushResult, error) {
	public := false
	req := gistWriteRequest{
		Description: "PromptNexus data backup",
		Public:      &public,
		Files: map[string]gistFileEntry{
			GistFileName: {Content: content},
		},
	}
	var resp gistResponse
	if err := a.client.doJSON(ctx, http.MethodPost, a.baseURL+"/gists", a.headers(), req, &resp); err != nil {
		return PushResult{}, fmt.Errorf("create gist: %w", err)
	}
	a.mu.Lock()
	a.gistID = resp.ID
	a.mu.Unlock()
	return PushResult{RemoteID: resp.ID, Created: 1}, nil
}

func (a *GistAdapter) headers() map[string]string {
	return map[string]string{
		"Authorization": "token " + a.token,
		"Accept":        "application/vnd.github.v3+json",
	}
}
