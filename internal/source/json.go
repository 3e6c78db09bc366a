package source

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/waycore/waykb/internal/entry"
)

// Field lists used to decide whether a decoded object is a record or a
// container to recurse into.
var (
	titleFields   = []string{"name", "title", "common_name", "label", "heading"}
	contentFields = []string{"description", "content", "text", "body", "summary", "notes"}
)

// ParseJSON decodes a JSON source file into flat records. The file may
// be a top-level array of objects, a single object, or an object whose
// values nest arrays of objects arbitrarily deep.
func ParseJSON(path string) ([]entry.Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var records []entry.Record
	collectRecords(data, &records)
	return records, nil
}

// collectRecords walks decoded JSON. Every object inside an array is a
// record. A bare object is a record only when it looks like one;
// otherwise it is a container and its list or object values are
// recursed into.
func collectRecords(data any, out *[]entry.Record) {
	switch v := data.(type) {
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				*out = append(*out, entry.Record(m))
			}
		}
	case map[string]any:
		if looksLikeRecord(v) {
			*out = append(*out, entry.Record(v))
			return
		}
		for _, value := range v {
			switch value.(type) {
			case []any, map[string]any:
				collectRecords(value, out)
			}
		}
	}
}

// looksLikeRecord reports whether an object is a data record rather
// than a container: it has a title field, a content field, or at least
// two substantial string fields.
func looksLikeRecord(m map[string]any) bool {
	for _, f := range titleFields {
		if _, ok := m[f]; ok {
			return true
		}
	}
	for _, f := range contentFields {
		if _, ok := m[f]; ok {
			return true
		}
	}
	stringFields := 0
	for _, v := range m {
		if s, ok := v.(string); ok && len(s) > 20 {
			stringFields++
		}
	}
	return stringFields >= 2
}
