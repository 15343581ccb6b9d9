package remote

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/promptnexus/promptsync/internal/config"
	"github.com/promptnexus/promptsync/internal/promptsync"
)

const (
	defaultNotionBaseURL = "https://api.notion.com"
	notionVersion        = "2022-06-28"
)

// NotionAdapter maps the document onto pages of a Notion database, one
// page per record. Unlike the file-shaped backends the remote side here
// is structured, so fetch reconstructs the document from page properties
// and push reconciles pages individually.
type NotionAdapter struct {
	client     *apiClient
	baseURL    string
	apiKey     string
	databaseID string
}

func NewNotionAdapter(cfg config.Notion, httpClient *http.Client) *NotionAdapter {
	return &NotionAdapter{
		client:     newAPIClient(httpClient),
		baseURL:    defaultNotionBaseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		databaseID: strings.TrimSpace(cfg.DatabaseID),
	}
}

func (a *NotionAdapter) Provider() string { return "notion" }

func (a *NotionAdapter) checkConfigured() error {
	var missing []string
	if a.apiKey == "" {
		missing = append(missing, "api key")
	}
	if a.databaseID == "" {
		missing = append(missing, "database id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("notion adapter: missing %s: %w", strings.Join(missing, ", "), promptsync.ErrNotConfigured)
	}
	return nil
}

type notionRichText struct {
	PlainText string `json:"plain_text,omitempty"`
	Text      *struct {
		Content string `json:"content"`
	} `json:"text,omitempty"`
}

type notionSelect struct {
	Name string `json:"name"`
}

type notionDate struct {
	Start string `json:"start"`
}

type notionProperty struct {
	Type        string           `json:"type,omitempty"`
	Title       []notionRichText `json:"title,omitempty"`
	RichText    []notionRichText `json:"rich_text,omitempty"`
	Select      *notionSelect    `json:"select,omitempty"`
	MultiSelect []notionSelect   `json:"multi_select,omitempty"`
	Number      *float64         `json:"number,omitempty"`
	Date        *notionDate      `json:"date,omitempty"`
}

type notionPage struct {
	ID             string                    `json:"id"`
	CreatedTime    string                    `json:"created_time"`
	LastEditedTime string                    `json:"last_edited_time"`
	Archived       bool                      `json:"archived"`
	Properties     map[string]notionProperty `json:"properties"`
}

type notionQueryRequest struct {
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size,omitempty"`
}

type notionQueryResponse struct {
	Results    []notionPage `json:"results"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor"`
}

// Fetch rebuilds the document from the database. Pages without a title
// are skipped rather than failing the whole fetch. The document's
// LastUpdated is the newest page edit time, so last-write-wins
// arbitration sees Notion-side edits.
func (a *NotionAdapter) Fetch(ctx context.Context) (*promptsync.Document, error) {
	if err := a.checkConfigured(); err != nil {
		return nil, err
	}
	pages, err := a.queryAllPages(ctx)
	if err != nil {
		if isHTTPStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("notion database %s: %w", a.databaseID, promptsync.ErrRemoteNotFound)
		}
		return nil, fmt.Errorf("query notion database %s: %w", a.databaseID, err)
	}

	doc := promptsync.EmptyDocument()
	categories := map[string]struct{}{}
	var newest string
	for _, page := range pages {
		if page.Archived {
			continue
		}
		record, ok := pageToRecord(page)
		if !ok {
			continue
		}
		doc.Prompts = append(doc.Prompts, record)
		if record.Category != "" {
			categories[record.Category] = struct{}{}
		}
		if page.LastEditedTime > newest {
			newest = page.LastEditedTime
		}
	}
	for name := range categories {
		doc.Categories = append(doc.Categories, name)
	}
	sort.Strings(doc.Categories)
	if newest != "" {
		doc.LastUpdated = promptsync.FormatTimestamp(promptsync.ParseTimestamp(newest))
	}
	return doc, nil
}

// Push reconciles the database against doc: pages whose record id still
// exists are updated, records without a page are created, leftover pages
// are archived. Per-record failures are collected so one bad page does
// not abort the rest.
func (a *NotionAdapter) Push(ctx context.Context, doc *promptsync.Document) (PushResult, error) {
	if err := a.checkConfigured(); err != nil {
		return PushResult{}, err
	}
	pages, err := a.queryAllPages(ctx)
	if err != nil {
		return PushResult{}, fmt.Errorf("query notion database %s: %w", a.databaseID, err)
	}
	pageByRecordID := make(map[string]string, len(pages))
	for _, page := range pages {
		if page.Archived {
			continue
		}
		recordID := richTextValue(page.Properties["RecordID"].RichText)
		if recordID == "" {
			// Pages authored directly in Notion carry no RecordID
			// property; fetch exposes them under their page id, so
			// reconcile them under that same key.
			recordID = page.ID
		}
		pageByRecordID[recordID] = page.ID
	}

	var result PushResult
	for i := range doc.Prompts {
		record := &doc.Prompts[i]
		props := recordToProperties(record)
		if pageID, ok := pageByRecordID[record.ID]; ok {
			delete(pageByRecordID, record.ID)
			body := map[string]any{"properties": props}
			if err := a.client.doJSON(ctx, http.MethodPatch, a.baseURL+"/v1/pages/"+pageID, a.headers(), body, nil); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("update page for %s: %w", record.ID, err))
				continue
			}
			result.Updated++
			continue
		}
		body := map[string]any{
			"parent":     map[string]string{"database_id": a.databaseID},
			"properties": props,
		}
		if err := a.client.doJSON(ctx, http.MethodPost, a.baseURL+"/v1/pages", a.headers(), body, nil); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("create page for %s: %w", record.ID, err))
			continue
		}
		result.Created++
	}

	for recordID, pageID := range pageByRecordID {
		body := map[string]any{"archived": true}
		if err := a.client.doJSON(ctx, http.MethodPatch, a.baseURL+"/v1/pages/"+pageID, a.headers(), body, nil); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("archive page for %s: %w", recordID, err))
			continue
		}
		result.Archived++
	}
	return result, nil
}

func (a *NotionAdapter) queryAllPages(ctx context.Context) ([]notionPage, error) {
	var pages []notionPage
	cursor := ""
	for {
		req := notionQueryRequest{StartCursor: cursor, PageSize: 100}
		var resp notionQueryResponse
		url := a.baseURL + "/v1/databases/" + a.databaseID + "/query"
		if err := a.client.doJSON(ctx, http.MethodPost, url, a.headers(), req, &resp); err != nil {
			return nil, err
		}
		pages = append(pages, resp.Results...)
		if !resp.HasMore || resp.NextCursor == "" {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}

func (a *NotionAdapter) headers() map[string]string {
	return map[string]string{
		"Authorization":  "Bearer " + a.apiKey,
		"Notion-Version": notionVersion,
	}
}

func pageToRecord(page notionPage) (promptsync.Record, bool) {
	props := page.Properties
	title := richTextValue(props["Title"].Title)
	if title == "" {
		return promptsync.Record{}, false
	}
	record := promptsync.Record{
		ID:           richTextValue(props["RecordID"].RichText),
		Title:        title,
		Content:      richTextValue(props["Content"].RichText),
		Note:         richTextValue(props["Note"].RichText),
		Tags:         []string{},
		CreatedAt:    normalizeNotionTime(page.CreatedTime),
		LastModified: normalizeNotionTime(page.LastEditedTime),
	}
	if record.ID == "" {
		// Page authored directly in Notion; its page id becomes the
		// record id so the round trip stays stable.
		record.ID = page.ID
	}
	if sel := props["Category"].Select; sel != nil {
		record.Category = sel.Name
	}
	for _, tag := range props["Tags"].MultiSelect {
		record.Tags = append(record.Tags, tag.Name)
	}
	if num := props["UsageCount"].Number; num != nil && *num > 0 {
		record.UsageCount = int(*num)
	}
	if created := props["CreatedAt"].Date; created != nil && created.Start != "" {
		record.CreatedAt = normalizeNotionTime(created.Start)
	}
	if modified := props["LastModified"].Date; modified != nil && modified.Start != "" {
		record.LastModified = normalizeNotionTime(modified.Start)
	}
	if used := props["LastUsed"].Date; used != nil && used.Start != "" {
		value := normalizeNotionTime(used.Start)
		record.LastUsed = &value
	}
	return record, true
}

func recordToProperties(record *promptsync.Record) map[string]notionProperty {
	usage := float64(record.UsageCount)
	props := map[string]notionProperty{
		"Title":      {Title: []notionRichText{textValue(record.Title)}},
		"RecordID":   {RichText: []notionRichText{textValue(record.ID)}},
		"Content":    {RichText: []notionRichText{textValue(record.Content)}},
		"UsageCount": {Number: &usage},
	}
	if record.Note != "" {
		props["Note"] = notionProperty{RichText: []notionRichText{textValue(record.Note)}}
	}
	if record.Category != "" {
		props["Category"] = notionProperty{Select: &notionSelect{Name: record.Category}}
	}
	if len(record.Tags) > 0 {
		tags := make([]notionSelect, 0, len(record.Tags))
		for _, tag := range record.Tags {
			tags = append(tags, notionSelect{Name: tag})
		}
		props["Tags"] = notionProperty{MultiSelect: tags}
	}
	if record.CreatedAt != "" {
		props["CreatedAt"] = notionProperty{Date: &notionDate{Start: record.CreatedAt}}
	}
	if record.LastModified != "" {
		props["LastModified"] = notionProperty{Date: &notionDate{Start: record.LastModified}}
	}
	if record.LastUsed != nil && *record.LastUsed != "" {
		props["LastUsed"] = notionProperty{Date: &notionDate{Start: *record.LastUsed}}
	}
	return props
}

func textValue(value string) notionRichText {
	return notionRichText{Text: &struct {
		Content string `json:"content"`
	}{Content: value}}
}

func richTextValue(parts []notionRichText) string {
	var b strings.Builder
	for _, part := range parts {
		if part.PlainText != "" {
			b.WriteString(part.PlainText)
			continue
		}
		if part.Text != nil {
			b.WriteString(part.Text.Content)
		}
	}
	return strings.TrimSpace(b.String())
}

func normalizeNotionTime(value string) string {
	t := promptsync.ParseTimestamp(value)
	if t.IsZero() {
		return ""
	}
	return promptsync.FormatTimestamp(t)
}
