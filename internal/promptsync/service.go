package promptsync

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// SyncTrigger is implemented by the sync engine. The service fires it
// after every successful mutation without waiting for the outcome.
type SyncTrigger interface {
	TriggerSync()
}

// RecordInput carries the caller-editable fields of a record.
type RecordInput struct {
	Title    string
	Content  string
	Category string
	Tags     []string
	Note     string
}

func (in RecordInput) validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required),
		validation.Field(&in.Content, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Service owns CRUD and usage counting over the canonical document. Every
// mutation persists synchronously to the local store, then triggers an
// asynchronous sync cycle.
type Service struct {
	store  *LocalStore
	logger Logger
	now    func() time.Time
	newID  func() string
	sync   SyncTrigger
}

type ServiceOptions struct {
	Store  *LocalStore
	Logger Logger
	Sync   SyncTrigger
	Now    func() time.Time
	NewID  func() string
}

func NewService(opts ServiceOptions) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return GenerateID(now()) }
	}
	store := opts.Store
	if store == nil {
		store = NewLocalStore(nil, opts.Logger)
	}
	return &Service{
		store:  store,
		logger: opts.Logger,
		now:    now,
		newID:  newID,
		sync:   opts.Sync,
	}
}

func (s *Service) Create(input RecordInput) (*Record, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	now := s.now()
	record := Record{
		ID:           s.newID(),
		Title:        input.Title,
		Content:      input.Content,
		Category:     input.Category,
		Tags:         normalizeTags(input.Tags),
		Note:         input.Note,
		UsageCount:   0,
		CreatedAt:    FormatTimestamp(now),
		LastModified: FormatTimestamp(now),
		LastUsed:     nil,
	}
	doc := s.store.LoadDocument()
	doc.Prompts = append(doc.Prompts, record)
	if input.Category != "" && !doc.HasCategory(input.Category) {
		doc.Categories = append(doc.Categories, input.Category)
	}
	doc.Touch(now)
	if err := s.store.SaveDocument(doc); err != nil {
		return nil, err
	}
	s.notifySync()
	return &record, nil
}

func (s *Service) Update(id string, input RecordInput) (*Record, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	doc := s.store.LoadDocument()
	idx := doc.FindRecord(id)
	if idx < 0 {
		return nil, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	now := s.now()
	record := &doc.Prompts[idx]
	record.Title = input.Title
	record.Content = input.Content
	record.Category = input.Category
	record.Tags = normalizeTags(input.Tags)
	record.Note = input.Note
	record.LastModified = FormatTimestamp(now)
	if input.Category != "" && !doc.HasCategory(input.Category) {
		doc.Categories = append(doc.Categories, input.Category)
	}
	doc.Touch(now)
	if err := s.store.SaveDocument(doc); err != nil {
		return nil, err
	}
	updated := *record
	s.notifySync()
	return &updated, nil
}

// Delete removes a record. Deleting an absent id is a no-op success.
func (s *Service) Delete(id string) error {
	doc := s.store.LoadDocument()
	idx := doc.FindRecord(id)
	if idx < 0 {
		return nil
	}
	doc.Prompts = append(doc.Prompts[:idx], doc.Prompts[idx+1:]...)
	doc.Touch(s.now())
	if err := s.store.SaveDocument(doc); err != nil {
		return err
	}
	s.notifySync()
	return nil
}

func (s *Service) Get(id string) (*Record, error) {
	doc := s.store.LoadDocument()
	idx := doc.FindRecord(id)
	if idx < 0 {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	record := doc.Prompts[idx]
	return &record, nil
}

func (s *Service) List() []Record {
	return s.store.LoadDocument().Prompts
}

// IncrementUsage counts one use of a record: bumps its counter, stamps
// LastUsed and feeds the rolling 7-day histogram.
func (s *Service) IncrementUsage(id string) (*Record, error) {
	doc := s.store.LoadDocument()
	idx := doc.FindRecord(id)
	if idx < 0 {
		return nil, fmt.Errorf("increment usage %s: %w", id, ErrNotFound)
	}
	now := s.now()
	record := &doc.Prompts[idx]
	record.UsageCount++
	used := FormatTimestamp(now)
	record.LastUsed = &used
	record.LastModified = used
	doc.Touch(now)

	// The document save is the authoritative one; stats only follow a
	// counted use that actually persisted.
	if err := s.store.SaveDocument(doc); err != nil {
		return nil, err
	}
	stats := s.store.LoadUsageStats()
	stats.RecordUse(now)
	if err := s.store.SaveUsageStats(stats); err != nil {
		s.logf("saving usage stats failed: %v", err)
	}
	updated := *record
	s.notifySync()
	return &updated, nil
}

func (s *Service) UsageStats() *UsageStats {
	return s.store.LoadUsageStats()
}

func (s *Service) Categories() []string {
	return s.store.LoadDocument().Categories
}

func (s *Service) AddCategory(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: category name is required", ErrValidation)
	}
	doc := s.store.LoadDocument()
	if doc.HasCategory(name) {
		return fmt.Errorf("category %q: %w", name, ErrAlreadyExists)
	}
	doc.Categories = append(doc.Categories, name)
	doc.Touch(s.now())
	if err := s.store.SaveDocument(doc); err != nil {
		return err
	}
	s.notifySync()
	return nil
}

// RenameCategory renames a category and rewrites every record that
// references it.
func (s *Service) RenameCategory(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return fmt.Errorf("%w: category name is required", ErrValidation)
	}
	doc := s.store.LoadDocument()
	if doc.HasCategory(newName) {
		return fmt.Errorf("category %q: %w", newName, ErrAlreadyExists)
	}
	found := false
	for i, c := range doc.Categories {
		if c == oldName {
			doc.Categories[i] = newName
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("category %q: %w", oldName, ErrNotFound)
	}
	now := s.now()
	for i := range doc.Prompts {
		if doc.Prompts[i].Category == oldName {
			doc.Prompts[i].Category = newName
			doc.Prompts[i].LastModified = FormatTimestamp(now)
		}
	}
	doc.Touch(now)
	if err := s.store.SaveDocument(doc); err != nil {
		return err
	}
	s.notifySync()
	return nil
}

// DeleteCategory drops a category; affected records become uncategorized.
func (s *Service) DeleteCategory(name string) error {
	doc := s.store.LoadDocument()
	kept := doc.Categories[:0]
	removed := false
	for _, c := range doc.Categories {
		if c == name {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	if !removed {
		return nil
	}
	doc.Categories = kept
	now := s.now()
	for i := range doc.Prompts {
		if doc.Prompts[i].Category == name {
			doc.Prompts[i].Category = ""
			doc.Prompts[i].LastModified = FormatTimestamp(now)
		}
	}
	doc.Touch(now)
	if err := s.store.SaveDocument(doc); err != nil {
		return err
	}
	s.notifySync()
	return nil
}

// Export returns a pretty-printed snapshot of the full document, suitable
// as a user-facing backup file.
func (s *Service) Export() ([]byte, error) {
	return EncodeDocument(s.store.LoadDocument())
}

// Import replaces the whole document from a backup payload. The payload
// must carry a prompts array; anything else is rejected before any write.
func (s *Service) Import(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("%w: invalid import payload: %v", ErrValidation, err)
	}
	rawPrompts, ok := probe["prompts"]
	if !ok {
		return fmt.Errorf("%w: import payload has no prompts", ErrValidation)
	}
	var prompts []json.RawMessage
	if err := json.Unmarshal(rawPrompts, &prompts); err != nil {
		return fmt.Errorf("%w: prompts must be an array", ErrValidation)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: invalid import payload: %v", ErrValidation, err)
	}
	now := s.now()
	doc.Normalize(now)
	// An import is a full replace performed now, so it must win the next
	// sync cycle regardless of the backup's own stamp.
	doc.Touch(now)
	if err := s.store.SaveDocument(&doc); err != nil {
		return err
	}
	s.notifySync()
	return nil
}

// VerifyAdminSecret checks a candidate secret against the stored hash.
func (s *Service) VerifyAdminSecret(secret string) bool {
	return VerifyAdminSecret(s.store.AdminSecretHash(), secret)
}

func (s *Service) SetAdminSecret(secret string) error {
	hash, err := HashAdminSecret(secret)
	if err != nil {
		return fmt.Errorf("%w: admin secret is required", ErrValidation)
	}
	return s.store.SetAdminSecretHash(hash)
}

// EnsureAdminSecret sets the secret only when the stored hash does not
// already match it, so a configured secret survives restarts without
// rehashing on every boot.
func (s *Service) EnsureAdminSecret(secret string) error {
	if strings.TrimSpace(secret) == "" || s.VerifyAdminSecret(secret) {
		return nil
	}
	return s.SetAdminSecret(secret)
}

// RequirePasswordForAdd reports the local setting gating record creation
// in UI collaborators. The service itself does not enforce it.
func (s *Service) RequirePasswordForAdd() bool {
	return s.store.LoadSettings().RequirePasswordForAdd
}

func (s *Service) SetRequirePasswordForAdd(required bool) error {
	settings := s.store.LoadSettings()
	settings.RequirePasswordForAdd = required
	return s.store.SaveSettings(settings)
}

func (s *Service) notifySync() {
	if s.sync == nil {
		return
	}
	s.sync.TriggerSync()
}

func (s *Service) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}

func normalizeTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
