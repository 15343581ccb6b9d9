package promptsync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// documentSchemaJSON is the wire contract every remote adapter must hand
// back. Remote payloads are never trusted as-is: anything that fails this
// schema is reported as a malformed payload rather than silently adopted.
const documentSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["prompts"],
  "properties": {
    "prompts": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "title": {"type": "string"},
          "content": {"type": "string"},
          "category": {"type": "string"},
          "tags": {"type": "array", "items": {"type": "string"}},
          "note": {"type": "string"},
          "usageCount": {"type": "number", "minimum": 0},
          "createdAt": {"type": "string"},
          "lastModified": {"type": "string"},
          "lastUsed": {"type": ["string", "null"]}
        }
      }
    },
    "categories": {"type": "array", "items": {"type": "string"}},
    "version": {"type": "string"},
    "lastUpdated": {"type": "string"}
  }
}`

var documentSchema = mustCompileDocumentSchema()

func mustCompileDocumentSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(documentSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("document schema is not valid JSON: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("document.schema.json", doc); err != nil {
		panic(fmt.Sprintf("document schema resource: %v", err))
	}
	schema, err := compiler.Compile("document.schema.json")
	if err != nil {
		panic(fmt.Sprintf("document schema compile: %v", err))
	}
	return schema
}

// ParseDocument validates raw remote bytes against the document schema
// and decodes them into a normalized Document.
func ParseDocument(data []byte) (*Document, error) {
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("malformed document payload: %w", err)
	}
	if err := documentSchema.Validate(instance); err != nil {
		return nil, fmt.Errorf("document payload failed schema validation: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed document payload: %w", err)
	}
	doc.Normalize(time.Time{})
	return &doc, nil
}

// EncodeDocument renders a Document in the canonical pretty-printed wire
// form used by every remote backend and by export files.
func EncodeDocument(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}
