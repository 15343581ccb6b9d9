package promptsync

import (
	"encoding/json"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// SchemaVersion is stamped into every Document this build writes.
const SchemaVersion = "1.1.0"

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Document is the canonical synchronized payload: all prompt records plus
// the category list. LastUpdated is the single field used to arbitrate
// sync conflicts.
type Document struct {
	Prompts     []Record `json:"prompts"`
	Categories  []string `json:"categories"`
	Version     string   `json:"version"`
	LastUpdated string   `json:"lastUpdated"`
}

// Record is one stored prompt entry.
type Record struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	Category     string   `json:"category,omitempty"`
	Tags         []string `json:"tags"`
	Note         string   `json:"note,omitempty"`
	UsageCount   int      `json:"usageCount"`
	CreatedAt    string   `json:"createdAt"`
	LastModified string   `json:"lastModified"`
	LastUsed     *string  `json:"lastUsed"`
}

// Settings are owned entirely by the local store and never synced.
type Settings struct {
	Theme                 string `json:"theme"`
	SortOrder             string `json:"sortOrder"`
	ViewMode              string `json:"viewMode"`
	RequirePasswordForAdd bool   `json:"requirePasswordForAdd"`
}

// UsageStats keeps a total counter plus a rolling 7-day histogram of
// record uses, bucketed by UTC calendar day. The last element is today.
type UsageStats struct {
	TotalUses     int    `json:"totalUses"`
	LastSevenDays []int  `json:"lastSevenDays"`
	LastUsedDate  string `json:"lastUsedDate,omitempty"`
}

// RemoteLink holds the locally stored remote-resource coordinates. It is
// never included in the synced Document.
type RemoteLink struct {
	Token    string `json:"token,omitempty"`
	GistID   string `json:"gistId,omitempty"`
	AutoLoad bool   `json:"autoLoad,omitempty"`
}

func DefaultDocument() *Document {
	return &Document{
		Prompts:     []Record{},
		Categories:  []string{},
		Version:     SchemaVersion,
		LastUpdated: FormatTimestamp(time.Now()),
	}
}

// EmptyDocument is the deterministic first-run payload: no records, no
// categories, zero LastUpdated so any local state compares as newer.
func EmptyDocument() *Document {
	return &Document{
		Prompts:    []Record{},
		Categories: []string{},
		Version:    SchemaVersion,
	}
}

func DefaultSettings() *Settings {
	return &Settings{
		Theme:                 "light",
		SortOrder:             "lastModified",
		ViewMode:              "grid",
		RequirePasswordForAdd: true,
	}
}

func DefaultUsageStats() *UsageStats {
	return &UsageStats{
		LastSevenDays: make([]int, 7),
	}
}

// GenerateID returns a client-generated record identifier: the base-36
// unix-milli timestamp followed by a 5-character random base-36 suffix.
func GenerateID(now time.Time) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	suffix := make([]byte, 5)
	for i := range suffix {
		suffix[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return strconv.FormatInt(now.UnixMilli(), 36) + string(suffix)
}

// FormatTimestamp renders a wall-clock instant in the wire format
// (ISO-8601 with millisecond precision, UTC).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp parses a wire timestamp. Absent or malformed values map
// to the zero time, which compares as epoch in sync arbitration.
func ParseTimestamp(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}

// Touch bumps LastUpdated to now, keeping it at or above every record's
// LastModified.
func (d *Document) Touch(now time.Time) {
	d.LastUpdated = FormatTimestamp(now)
}

// FindRecord returns the index of the record with the given id, or -1.
func (d *Document) FindRecord(id string) int {
	for i := range d.Prompts {
		if d.Prompts[i].ID == id {
			return i
		}
	}
	return -1
}

// HasCategory reports whether the category list contains name.
func (d *Document) HasCategory(name string) bool {
	for _, c := range d.Categories {
		if c == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return DefaultDocument()
	}
	var clone Document
	if err := json.Unmarshal(data, &clone); err != nil {
		return DefaultDocument()
	}
	clone.Normalize(time.Time{})
	return &clone
}

// Normalize backfills fields older payloads may lack: version, nil
// slices, record ids and timestamps. A zero fallback time leaves missing
// record timestamps empty rather than inventing fresh ones.
func (d *Document) Normalize(fallback time.Time) {
	if d.Version == "" {
		d.Version = SchemaVersion
	}
	if d.Prompts == nil {
		d.Prompts = []Record{}
	}
	if d.Categories == nil {
		d.Categories = []string{}
	}
	if d.LastUpdated == "" && !fallback.IsZero() {
		d.LastUpdated = FormatTimestamp(fallback)
	}
	for i := range d.Prompts {
		r := &d.Prompts[i]
		if r.ID == "" && !fallback.IsZero() {
			r.ID = GenerateID(fallback)
		}
		if r.Tags == nil {
			r.Tags = []string{}
		}
		if r.CreatedAt == "" && !fallback.IsZero() {
			r.CreatedAt = FormatTimestamp(fallback)
		}
		if r.LastModified == "" {
			r.LastModified = r.CreatedAt
		}
		if r.UsageCount < 0 {
			r.UsageCount = 0
		}
	}
}

func (s *UsageStats) normalize() {
	if len(s.LastSevenDays) == 7 {
		return
	}
	buckets := make([]int, 7)
	n := len(s.LastSevenDays)
	if n > 7 {
		copy(buckets, s.LastSevenDays[n-7:])
	} else {
		copy(buckets[7-n:], s.LastSevenDays)
	}
	s.LastSevenDays = buckets
}

// RecordUse counts one use at now, shifting the day buckets once per UTC
// calendar-day boundary crossed since the previous recorded use.
func (s *UsageStats) RecordUse(now time.Time) {
	s.normalize()
	s.TotalUses++
	today := utcDay(now)
	last := ParseTimestamp(s.LastUsedDate)
	switch {
	case last.IsZero():
		// First recorded use: start a fresh window.
		for i := range s.LastSevenDays {
			s.LastSevenDays[i] = 0
		}
	case utcDay(last).Before(today):
		days := int(today.Sub(utcDay(last)).Hours() / 24)
		s.shiftDays(days)
	}
	s.LastSevenDays[6]++
	s.LastUsedDate = FormatTimestamp(today)
}

func (s *UsageStats) shiftDays(days int) {
	if days <= 0 {
		return
	}
	if days >= 7 {
		for i := range s.LastSevenDays {
			s.LastSevenDays[i] = 0
		}
		return
	}
	copy(s.LastSevenDays, s.LastSevenDays[days:])
	for i := 7 - days; i < 7; i++ {
		s.LastSevenDays[i] = 0
	}
}

func utcDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
