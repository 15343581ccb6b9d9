package promptsync

import (
	"sync"
)

// Logger is the minimal logging surface used across the module; *log.Logger
// satisfies it.
type Logger interface {
	Printf(format string, args ...any)
}

// LocalStore is the durable client-side store for the canonical document,
// settings, usage stats and remote link settings. Absent or unparseable
// persisted state is treated as a first run and replaced with defaults;
// it is never surfaced as a fatal error. Every save writes the whole
// snapshot, so local state can never be partially updated.
type LocalStore struct {
	mu      sync.Mutex
	backend StateBackend
	logger  Logger

	state  *persistedState
	loaded bool
}

func NewLocalStore(backend StateBackend, logger Logger) *LocalStore {
	if backend == nil {
		backend = NewInMemoryStateBackend()
	}
	return &LocalStore{backend: backend, logger: logger}
}

// LoadDocument returns a copy of the canonical document, seeding the
// default document on first use.
func (s *LocalStore) LoadDocument() *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked().Document.Clone()
}

func (s *LocalStore) SaveDocument(doc *Document) error {
	if doc == nil {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.loadLocked()
	previous := state.Document
	state.Document = doc.Clone()
	if err := s.saveLocked(); err != nil {
		state.Document = previous
		return err
	}
	return nil
}

func (s *LocalStore) LoadSettings() *Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings := *s.loadLocked().Settings
	return &settings
}

func (s *LocalStore) SaveSettings(settings *Settings) error {
	if settings == nil {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.loadLocked()
	previous := state.Settings
	copied := *settings
	state.Settings = &copied
	if err := s.saveLocked(); err != nil {
		state.Settings = previous
		return err
	}
	return nil
}

func (s *LocalStore) LoadUsageStats() *UsageStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := *s.loadLocked().UsageStats
	stats.LastSevenDays = append([]int(nil), stats.LastSevenDays...)
	return &stats
}

func (s *LocalStore) SaveUsageStats(stats *UsageStats) error {
	if stats == nil {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.loadLocked()
	previous := state.UsageStats
	copied := *stats
	copied.LastSevenDays = append([]int(nil), stats.LastSevenDays...)
	copied.normalize()
	state.UsageStats = &copied
	if err := s.saveLocked(); err != nil {
		state.UsageStats = previous
		return err
	}
	return nil
}

func (s *LocalStore) LoadRemoteLink() *RemoteLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	link := *s.loadLocked().RemoteLink
	return &link
}

func (s *LocalStore) SaveRemoteLink(link *RemoteLink) error {
	if link == nil {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.loadLocked()
	previous := state.RemoteLink
	copied := *link
	state.RemoteLink = &copied
	if err := s.saveLocked(); err != nil {
		state.RemoteLink = previous
		return err
	}
	return nil
}

// AdminSecretHash returns the stored bcrypt hash of the admin secret.
func (s *LocalStore) AdminSecretHash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked().AdminSecretHash
}

func (s *LocalStore) SetAdminSecretHash(hash string) error {
	if hash == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.loadLocked()
	previous := state.AdminSecretHash
	state.AdminSecretHash = hash
	if err := s.saveLocked(); err != nil {
		state.AdminSecretHash = previous
		return err
	}
	return nil
}

func (s *LocalStore) Close() error {
	if closer, ok := s.backend.(stateBackendCloser); ok {
		return closer.Close()
	}
	return nil
}

func (s *LocalStore) loadLocked() *persistedState {
	if s.loaded {
		return s.state
	}
	s.loaded = true
	state, err := s.backend.Load()
	if err != nil {
		// Corrupt or unreadable snapshots count as absent.
		s.logf("local state unreadable, starting from defaults: %v", err)
		state = nil
	}
	if state == nil {
		state = &persistedState{}
	}
	seeded := false
	if state.Document == nil {
		state.Document = DefaultDocument()
		seeded = true
	} else {
		state.Document.Normalize(ParseTimestamp(state.Document.LastUpdated))
	}
	if state.Settings == nil {
		state.Settings = DefaultSettings()
		seeded = true
	}
	if state.UsageStats == nil {
		state.UsageStats = DefaultUsageStats()
		seeded = true
	} else {
		state.UsageStats.normalize()
	}
	if state.RemoteLink == nil {
		state.RemoteLink = &RemoteLink{}
		seeded = true
	}
	if state.AdminSecretHash == "" {
		if hash, hashErr := HashAdminSecret(DefaultAdminSecret); hashErr == nil {
			state.AdminSecretHash = hash
			seeded = true
		}
	}
	s.state = state
	if seeded {
		if saveErr := s.saveLocked(); saveErr != nil {
			s.logf("seeding local state failed: %v", saveErr)
		}
	}
	return s.state
}

func (s *LocalStore) saveLocked() error {
	return s.backend.Save(s.state)
}

func (s *LocalStore) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}
