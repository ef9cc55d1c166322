package cypher

import "sort"

// Triple is a directed relationship permitted by a schema.
type Triple struct {
	Start string `json:"start" yaml:"start"`
	Type  string `json:"type" yaml:"type"`
	End   string `json:"end" yaml:"end"`
}

// Schema is the immutable set of relationship triples a corrected query may
// reference. It is safe for concurrent use once built.
type Schema struct {
	triples map[Triple]struct{}
	labels  map[string]struct{}
	types   map[string]struct{}
}

// NewSchema builds a Schema from the permitted triples. Endpoint labels are
// registered automatically; extraLabels adds labels that have no relationships.
func NewSchema(triples []Triple, extraLabels ...string) *Schema {
	s := &Schema{
		triples: make(map[Triple]struct{}, len(triples)),
		labels:  make(map[string]struct{}),
		types:   make(map[string]struct{}),
	}
	for _, t := range triples {
		if t.Start == "" || t.Type == "" || t.End == "" {
			continue
		}
		s.triples[t] = struct{}{}
		s.labels[t.Start] = struct{}{}
		s.labels[t.End] = struct{}{}
		s.types[t.Type] = struct{}{}
	}
	for _, label := range extraLabels {
		if label != "" {
			s.labels[label] = struct{}{}
		}
	}
	return s
}

// HasLabel reports whether label is known to the schema.
func (s *Schema) HasLabel(label string) bool {
	_, ok := s.labels[label]
	return ok
}

// HasType reports whether the relationship type is known to the schema.
func (s *Schema) HasType(relType string) bool {
	_, ok := s.types[relType]
	return ok
}

// Permits reports whether some label of start, relType and some label of end
// form a permitted triple. An empty label set matches any label.
func (s *Schema) Permits(start []string, relType string, end []string) bool {
	for t := range s.triples {
		if t.Type != relType {
			continue
		}
		if matchesLabel(start, t.Start) && matchesLabel(end, t.End) {
			return true
		}
	}
	return false
}

// Triples returns the permitted triples in a stable order.
func (s *Schema) Triples() []Triple {
	out := make([]Triple, 0, len(s.triples))
	for t := range s.triples {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].End < out[j].End
	})
	return out
}

// Labels returns the known node labels sorted alphabetically.
func (s *Schema) Labels() []string {
	out := make([]string, 0, len(s.labels))
	for label := range s.labels {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

func matchesLabel(labels []string, want string) bool {
	if len(labels) == 0 {
		return true
	}
	for _, label := range labels {
		if label == want {
			return true
		}
	}
	return false
}
