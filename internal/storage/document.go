package storage

import (
	"context"
	"encoding/json"
	"sort"
)

// Document is a raw stored record. Data is untyped; callers map it.
type Document struct {
	ID   string
	Data map[string]any
}

// WatchHandler receives the complete ordered document set of a collection
// each time it changes.
type WatchHandler func(ctx context.Context, docs []Document) error

// sortDocuments orders by id, highest first.
func sortDocuments(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID > docs[j].ID })
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = copyValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = copyValue(inner)
		}
		return out
	case []byte:
		return append([]byte(nil), val...)
	case json.RawMessage:
		return append(json.RawMessage(nil), val...)
	default:
		return val
	}
}

// setPath writes value at the dotted path segments, replacing any
// non-object intermediate with an empty object.
func setPath(doc map[string]any, segments []string, value any) {
	current := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[seg] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = copyValue(value)
}
