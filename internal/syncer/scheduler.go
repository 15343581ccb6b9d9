package syncer

import (
	"context"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/promptnexus/promptsync/internal/promptsync"
)

const watchDebounce = 500 * time.Millisecond

// Scheduler drives the engine on a jittered interval and, when a state
// file path is configured, on filesystem changes to that file. Extra
// triggers between ticks collapse into at most one pending cycle.
type Scheduler struct {
	engine   *Engine
	logger   promptsync.Logger
	interval time.Duration
	jitter   float64
	timeout  time.Duration
	watch    string

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	kick    chan struct{}
	started bool
}

type SchedulerOptions struct {
	Engine   *Engine
	Logger   promptsync.Logger
	Interval time.Duration
	// Jitter is the fractional spread applied to every tick delay, so a
	// fleet of clients does not hit the remote in lockstep. 0.1 means
	// each delay lands within ±10% of Interval.
	Jitter  float64
	Timeout time.Duration
	// WatchPath, when set, is a state file to watch for out-of-band
	// writes; changes trigger an extra cycle after a short debounce.
	WatchPath string
}

func NewScheduler(opts SchedulerOptions) *Scheduler {
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	jitter := opts.Jitter
	if jitter < 0 || jitter >= 1 {
		jitter = 0.1
	}
	return &Scheduler{
		engine:   opts.Engine,
		logger:   opts.Logger,
		interval: interval,
		jitter:   jitter,
		timeout:  opts.Timeout,
		watch:    opts.WatchPath,
		kick:     make(chan struct{}, 1),
	}
}

// Start launches the scheduler loop. The first cycle runs immediately.
// Start is idempotent while running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
}

// Stop cancels the loop and waits for the in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.started = false
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Kick requests an extra cycle outside the regular interval. Multiple
// kicks before the loop wakes coalesce into one.
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	watchEvents := s.startWatcher(ctx)

	s.cycle(ctx)
	for {
		timer := time.NewTimer(s.nextDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-s.kick:
			timer.Stop()
		case <-watchEvents:
			timer.Stop()
		}
		s.cycle(ctx)
	}
}

func (s *Scheduler) cycle(ctx context.Context) {
	cycleCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	s.engine.SyncOnce(cycleCtx)
}

func (s *Scheduler) nextDelay() time.Duration {
	spread := (rand.Float64()*2 - 1) * s.jitter
	return time.Duration(float64(s.interval) * (1 + spread))
}

// startWatcher watches the configured state file's directory and emits a
// debounced signal on writes to the file itself. Watching the directory
// instead of the file survives atomic rename-based saves.
func (s *Scheduler) startWatcher(ctx context.Context) <-chan struct{} {
	if s.watch == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logf("state file watch unavailable: %v", err)
		return nil
	}
	dir := filepath.Dir(s.watch)
	if err := watcher.Add(dir); err != nil {
		s.logf("watching %s failed: %v", dir, err)
		_ = watcher.Close()
		return nil
	}

	out := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		var debounce *time.Timer
		var debounceC <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.watch) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if debounce == nil {
					debounce = time.NewTimer(watchDebounce)
					debounceC = debounce.C
				} else {
					if !debounce.Stop() {
						select {
						case <-debounce.C:
						default:
						}
					}
					debounce.Reset(watchDebounce)
				}
			case <-debounceC:
				debounce = nil
				debounceC = nil
				select {
				case out <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logf("state file watch error: %v", err)
			}
		}
	}()
	return out
}

func (s *Scheduler) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}
