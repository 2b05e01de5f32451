package docstore

import (
	"encoding/json"
	"fmt"
)

// Encode converts a record struct into a Doc using its json tags.
// The id field is dropped; ids live outside the document body.
func Encode(v any) (Doc, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Doc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	delete(doc, IDField)
	return doc, nil
}

// Decode fills out (a pointer to a record struct) from doc.
func Decode(doc Doc, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document %s: %w", doc.ID(), err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode document %s: %w", doc.ID(), err)
	}
	return nil
}

// DecodeAll decodes every document of a query result.
func DecodeAll[T any](docs []Doc) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := Decode(d, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// normalize maps a Go value onto the JSON value space (string, float64, bool,
// nil, []any, map[string]any) so values written by different callers compare equal.
func normalize(v any) any {
	switch t := v.(type) {
	case nil, string, bool, float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case int32:
		return float64(t)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// clone deep-copies a document through the JSON value space.
func clone(d Doc) Doc {
	out := make(Doc, len(d))
	for k, v := range d {
		out[k] = normalize(v)
	}
	return out
}
