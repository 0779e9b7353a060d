// Package document defines the document model stored in the search index
// and its validation rules.
package document

import (
	"fmt"
	"strings"
	"time"
)

// MappingVersion tracks the index mapping below. Bump it when the mapping
// changes so running services re-apply it on startup.
const MappingVersion = 1

// Document is the unit stored in the search index. Timestamp, when present,
// must be an ISO-8601 / RFC 3339 date string. Views defaults to 0.
type Document struct {
	Author    string `json:"author" yaml:"author"`
	Text      string `json:"text" yaml:"text"`
	Timestamp string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Views     int    `json:"views" yaml:"views"`
}

// Validate checks required fields and field formats.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.Author) == "" {
		return fmt.Errorf("author is required")
	}
	if strings.TrimSpace(d.Text) == "" {
		return fmt.Errorf("text is required")
	}
	if d.Views < 0 {
		return fmt.Errorf("views must not be negative")
	}
	if d.Timestamp != "" {
		if _, err := time.Parse(time.RFC3339, d.Timestamp); err != nil {
			return fmt.Errorf("timestamp must be an ISO-8601 date string: %w", err)
		}
	}
	return nil
}

// Mapping returns the index mapping for documents. Author is exact-match,
// text is analyzed for full-text search.
func Mapping() map[string]interface{} {
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"author":    map[string]interface{}{"type": "keyword"},
				"text":      map[string]interface{}{"type": "text"},
				"timestamp": map[string]interface{}{"type": "date"},
				"views":     map[string]interface{}{"type": "integer"},
			},
		},
	}
}
