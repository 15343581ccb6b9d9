// Package remote implements the backend-specific adapters that move the
// canonical document between the local store and a remote service.
package remote

import (
	"context"
	"fmt"
	"net/http"

	"github.com/promptnexus/promptsync/internal/config"
	"github.com/promptnexus/promptsync/internal/promptsync"
)

// PushResult reports what a push did on the remote side. RemoteID is the
// identifier of a remote resource created during the push (a new gist id)
// that the caller should persist.
type PushResult struct {
	RemoteID string
	Created  int
	Updated  int
	Archived int
	Errors   []error
}

// Adapter is the capability interface every remote backend implements.
//
// Fetch returns promptsync.ErrRemoteNotFound when the remote resource
// does not exist yet, and promptsync.ErrNotConfigured when credentials or
// identifiers are missing. Any other error is transient: the caller keeps
// local state authoritative.
type Adapter interface {
	Provider() string
	Fetch(ctx context.Context) (*promptsync.Document, error)
	Push(ctx context.Context, doc *promptsync.Document) (PushResult, error)
}

// NewAdapter builds the adapter for a configured provider. A Local
// provider yields a nil adapter: the sync engine treats that as "no sync
// needed". The switch is exhaustive over the sealed provider union.
func NewAdapter(provider config.Provider, httpClient *http.Client) (Adapter, error) {
	switch p := provider.(type) {
	case config.Local, nil:
		return nil, nil
	case config.Gist:
		return NewGistAdapter(p, httpClient), nil
	case config.RepoFile:
		return NewRepoFileAdapter(p, httpClient), nil
	case config.Notion:
		return NewNotionAdapter(p, httpClient), nil
	default:
		return nil, fmt.Errorf("unsupported provider type %T", provider)
	}
}
