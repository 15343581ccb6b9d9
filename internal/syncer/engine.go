// Package syncer implements last-write-wins synchronization between the
// local store and one configured remote backend.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/promptnexus/promptsync/internal/promptsync"
	"github.com/promptnexus/promptsync/internal/remote"
)

// Status labels the outcome of one sync cycle.
type Status string

const (
	// StatusNoSync means no remote backend is configured.
	StatusNoSync Status = "no-sync"
	// StatusDownloaded means the remote document won and replaced local.
	StatusDownloaded Status = "downloaded"
	// StatusUploaded means the local document won and was pushed.
	StatusUploaded Status = "uploaded"
	// StatusInSync means both sides carried the same timestamp.
	StatusInSync Status = "in-sync"
	// StatusSkipped means a cycle was already in flight.
	StatusSkipped Status = "skipped"
	// StatusFailed means the cycle ended with an error and local state
	// stayed authoritative.
	StatusFailed Status = "failed"
)

// Report describes one finished sync cycle. Downloaded counts records
// adopted from the remote document; upload counts live in Push.
type Report struct {
	Status     Status
	Provider   string
	StartedAt  time.Time
	FinishedAt time.Time
	Downloaded int
	Push       remote.PushResult
	Err        error
}

// Engine runs sync cycles. At most one cycle is in flight at a time;
// concurrent triggers observe StatusSkipped.
type Engine struct {
	store   *promptsync.LocalStore
	adapter remote.Adapter
	logger  promptsync.Logger
	now     func() time.Time
	timeout time.Duration

	mu         sync.Mutex
	inFlight   bool
	lastReport *Report
}

type EngineOptions struct {
	Store   *promptsync.LocalStore
	Adapter remote.Adapter
	Logger  promptsync.Logger
	Timeout time.Duration
	Now     func() time.Time
}

func NewEngine(opts EngineOptions) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:   opts.Store,
		adapter: opts.Adapter,
		logger:  opts.Logger,
		now:     now,
		timeout: opts.Timeout,
	}
}

// LastReport returns the most recent finished cycle, or nil before the
// first one.
func (e *Engine) LastReport() *Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastReport == nil {
		return nil
	}
	report := *e.lastReport
	return &report
}

// SyncOnce runs one full cycle and blocks until it finishes. When a
// cycle is already running it returns immediately with StatusSkipped and
// promptsync.ErrSyncBusy.
func (e *Engine) SyncOnce(ctx context.Context) Report {
	started := e.now()
	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		return Report{
			Status:     StatusSkipped,
			Provider:   e.providerName(),
			StartedAt:  started,
			FinishedAt: started,
			Err:        promptsync.ErrSyncBusy,
		}
	}
	e.inFlight = true
	e.mu.Unlock()

	report := e.runCycle(ctx, started)
	report.FinishedAt = e.now()

	e.mu.Lock()
	e.inFlight = false
	e.lastReport = &report
	e.mu.Unlock()

	if report.Err != nil && !errors.Is(report.Err, promptsync.ErrNotConfigured) {
		e.logf("sync cycle failed: %v", report.Err)
	} else if report.Status != StatusNoSync {
		e.logf("sync cycle finished: %s", report.Status)
	}
	return report
}

// TriggerSync fires an asynchronous cycle and discards the report. It
// satisfies promptsync.SyncTrigger so the record service can notify the
// engine after mutations without depending on this package's types.
func (e *Engine) TriggerSync() {
	go func() {
		ctx := context.Background()
		if e.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}
		e.SyncOnce(ctx)
	}()
}

// TriggerAsync fires an asynchronous cycle and delivers its report on
// the returned channel.
func (e *Engine) TriggerAsync(ctx context.Context) <-chan Report {
	out := make(chan Report, 1)
	go func() {
		out <- e.SyncOnce(ctx)
		close(out)
	}()
	return out
}

func (e *Engine) runCycle(ctx context.Context, started time.Time) Report {
	report := Report{Provider: e.providerName(), StartedAt: started}
	if e.adapter == nil {
		report.Status = StatusNoSync
		return report
	}

	local := e.store.LoadDocument()
	remoteDoc, err := e.adapter.Fetch(ctx)
	switch {
	case err == nil:
	case errors.Is(err, promptsync.ErrRemoteNotFound):
		// Empty remote: local state seeds it.
		return e.push(ctx, report, local, StatusUploaded)
	default:
		report.Status = StatusFailed
		report.Err = fmt.Errorf("fetch: %w", err)
		return report
	}

	localTime := promptsync.ParseTimestamp(local.LastUpdated)
	remoteTime := promptsync.ParseTimestamp(remoteDoc.LastUpdated)

	switch {
	case remoteTime.After(localTime):
		adopted := e.adopt(local, remoteDoc)
		if err := e.store.SaveDocument(adopted); err != nil {
			report.Status = StatusFailed
			report.Err = fmt.Errorf("save downloaded document: %w", err)
			return report
		}
		report.Status = StatusDownloaded
		report.Downloaded = len(remoteDoc.Prompts)
		return report
	case localTime.After(remoteTime):
		return e.push(ctx, report, local, StatusUploaded)
	default:
		report.Status = StatusInSync
		return report
	}
}

func (e *Engine) push(ctx context.Context, report Report, doc *promptsync.Document, status Status) Report {
	result, err := e.adapter.Push(ctx, doc)
	if err != nil {
		report.Status = StatusFailed
		report.Err = fmt.Errorf("push: %w", err)
		return report
	}
	report.Status = status
	report.Push = result
	if result.RemoteID != "" {
		link := e.store.LoadRemoteLink()
		if link.GistID != result.RemoteID {
			link.GistID = result.RemoteID
			if saveErr := e.store.SaveRemoteLink(link); saveErr != nil {
				e.logf("persisting remote id failed: %v", saveErr)
			}
		}
	}
	for _, pushErr := range result.Errors {
		e.logf("push item failed: %v", pushErr)
	}
	return report
}

// adopt produces the document to store when the remote side wins. The
// Notion backend rebuilds its document from structured pages and is
// treated as ground truth; the file-shaped backends merge by record id
// so local-only records survive a stale-looking local timestamp.
func (e *Engine) adopt(local, remoteDoc *promptsync.Document) *promptsync.Document {
	if e.adapter.Provider() == "notion" {
		adopted := remoteDoc.Clone()
		adopted.Normalize(time.Time{})
		return adopted
	}
	return mergeDocuments(local, remoteDoc)
}

// mergeDocuments unions local into remote: remote wins every shared
// record id, local-only records are appended, categories are unioned
// preserving remote order first. LastUpdated is the later of the two.
func mergeDocuments(local, remoteDoc *promptsync.Document) *promptsync.Document {
	merged := remoteDoc.Clone()
	merged.Normalize(time.Time{})

	seen := make(map[string]struct{}, len(merged.Prompts))
	for i := range merged.Prompts {
		seen[merged.Prompts[i].ID] = struct{}{}
	}
	for i := range local.Prompts {
		if _, ok := seen[local.Prompts[i].ID]; ok {
			continue
		}
		merged.Prompts = append(merged.Prompts, local.Prompts[i])
	}

	haveCategory := make(map[string]struct{}, len(merged.Categories))
	for _, c := range merged.Categories {
		haveCategory[c] = struct{}{}
	}
	for _, c := range local.Categories {
		if _, ok := haveCategory[c]; ok {
			continue
		}
		haveCategory[c] = struct{}{}
		merged.Categories = append(merged.Categories, c)
	}

	if promptsync.ParseTimestamp(local.LastUpdated).After(promptsync.ParseTimestamp(merged.LastUpdated)) {
		merged.LastUpdated = local.LastUpdated
	}
	return merged
}

func (e *Engine) providerName() string {
	if e.adapter == nil {
		return "local"
	}
	return e.adapter.Provider()
}

func (e *Engine) logf(format string, args ...any) {
	if e.logger == nil {
		return
	}
	e.logger.Printf(format, args...)
}
