package graph

// MaxListSize is the length at which Sanitize drops a list. Long lists are
// usually embeddings, which add nothing to a prompt but tokens.
const MaxListSize = 128

// Sanitize returns a copy of v with every list of MaxListSize or more
// elements removed, at any depth. A map keeps its other keys and a list
// keeps its other items; an oversized list at the top level yields nil.
func Sanitize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if clean := Sanitize(item); clean != nil || item == nil {
				out[k] = clean
			}
		}
		return out
	case []any:
		if len(val) >= MaxListSize {
			return nil
		}
		out := make([]any, 0, len(val))
		for _, item := range val {
			if clean := Sanitize(item); clean != nil || item == nil {
				out = append(out, clean)
			}
		}
		return out
	default:
		return v
	}
}

// SanitizeRows applies Sanitize to every row.
func SanitizeRows(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = Sanitize(row).(map[string]any)
	}
	return out
}
