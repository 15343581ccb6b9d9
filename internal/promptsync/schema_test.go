package promptsync

import (
	"strings"
	"testing"
)

func TestParseDocumentAcceptsMinimalPayload(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"prompts": []}`))
	if err != nil {
		t.Fatalf("parse minimal payload failed: %v", err)
	}
	if doc.Prompts == nil || doc.Categories == nil {
		t.Fatalf("expected normalized slices, got %+v", doc)
	}
	if doc.Version != SchemaVersion {
		t.Fatalf("expected version backfill, got %q", doc.Version)
	}
}

func TestParseDocumentFullPayload(t *testing.T) {
	payload := `{
	  "prompts": [
	    {
	      "id": "p1",
	      "title": "Greeting",
	      "content": "Say hello",
	      "category": "General",
	      "tags": ["intro"],
	      "usageCount": 3,
	      "createdAt": "2024-03-01T10:00:00.000Z",
	      "lastModified": "2024-03-02T10:00:00.000Z",
	      "lastUsed": null
	    }
	  ],
	  "categories": ["General"],
	  "version": "1.1.0",
	  "lastUpdated": "2024-03-02T10:00:00.000Z"
	}`
	doc, err := ParseDocument([]byte(payload))
	if err != nil {
		t.Fatalf("parse full payload failed: %v", err)
	}
	if len(doc.Prompts) != 1 || doc.Prompts[0].UsageCount != 3 {
		t.Fatalf("unexpected decoded document: %+v", doc)
	}
	if doc.Prompts[0].LastUsed != nil {
		t.Fatalf("expected nil lastUsed, got %v", *doc.Prompts[0].LastUsed)
	}
}

func TestParseDocumentRejectsMissingPrompts(t *testing.T) {
	_, err := ParseDocument([]byte(`{"categories": []}`))
	if err == nil {
		t.Fatalf("expected schema validation error for payload without prompts")
	}
	if !strings.Contains(err.Error(), "schema") {
		t.Fatalf("expected schema validation error, got: %v", err)
	}
}

func TestParseDocumentRejectsWrongTypes(t *testing.T) {
	cases := []string{
		`{"prompts": "nope"}`,
		`{"prompts": [{"usageCount": -1}]}`,
		`{"prompts": [], "categories": [1]}`,
	}
	for _, payload := range cases {
		if _, err := ParseDocument([]byte(payload)); err == nil {
			t.Fatalf("expected validation error for %s", payload)
		}
	}
}

func TestParseDocumentRejectsMalformedJSON(t *testing.T) {
	if _, err := ParseDocument([]byte(`{"prompts": [`)); err == nil {
		t.Fatalf("expected error for truncated payload")
	}
}

func TestEncodeDocumentIsPretty(t *testing.T) {
	data, err := EncodeDocument(EmptyDocument())
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !strings.Contains(string(data), "\n  \"prompts\"") {
		t.Fatalf("expected indented output, got: %s", data)
	}
	if _, err := ParseDocument(data); err != nil {
		t.Fatalf("encoded document failed its own schema: %v", err)
	}
}
