package schema

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vanshika/cypherguard/internal/cypher"
)

// ErrIncludeAndExclude is returned when both type filters are supplied.
var ErrIncludeAndExclude = errors.New("either include types or exclude types can be provided, but not both")

// Property describes one property key and its type.
type Property struct {
	Property string `yaml:"property" json:"property"`
	Type     string `yaml:"type" json:"type"`
}

// Structured is the graph schema as reported by the database.
type Structured struct {
	NodeProps     map[string][]Property `yaml:"node_props" json:"node_props"`
	RelProps      map[string][]Property `yaml:"rel_props" json:"rel_props"`
	Relationships []cypher.Triple       `yaml:"relationships" json:"relationships"`
	Labels        []string              `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// Corrector converts the structured schema into the corrector's schema.
// Filters are not applied: the corrector validates against the whole graph.
func (s Structured) Corrector() *cypher.Schema {
	labels := append([]string(nil), s.Labels...)
	for label := range s.NodeProps {
		labels = append(labels, label)
	}
	return cypher.NewSchema(s.Relationships, labels...)
}

// Filter keeps labels and relationship types accepted by include/exclude.
// A relationship survives only if its type and both endpoints survive.
func (s Structured) Filter(include, exclude []string) (Structured, error) {
	if len(include) > 0 && len(exclude) > 0 {
		return Structured{}, ErrIncludeAndExclude
	}
	keep := func(name string) bool {
		if len(include) > 0 {
			return containsString(include, name)
		}
		return !containsString(exclude, name)
	}

	out := Structured{
		NodeProps: make(map[string][]Property),
		RelProps:  make(map[string][]Property),
	}
	for label, props := range s.NodeProps {
		if keep(label) {
			out.NodeProps[label] = props
		}
	}
	for relType, props := range s.RelProps {
		if keep(relType) {
			out.RelProps[relType] = props
		}
	}
	for _, rel := range s.Relationships {
		if keep(rel.Start) && keep(rel.Type) && keep(rel.End) {
			out.Relationships = append(out.Relationships, rel)
		}
	}
	for _, label := range s.Labels {
		if keep(label) {
			out.Labels = append(out.Labels, label)
		}
	}
	return out, nil
}

// Format renders the schema as prompt text after applying the filters.
func Format(s Structured, include, exclude []string) (string, error) {
	filtered, err := s.Filter(include, exclude)
	if err != nil {
		return "", err
	}

	nodeProps := make([]string, 0, len(filtered.NodeProps))
	for _, label := range sortedKeys(filtered.NodeProps) {
		nodeProps = append(nodeProps, fmt.Sprintf("%s {%s}", label, formatProps(filtered.NodeProps[label])))
	}
	relProps := make([]string, 0, len(filtered.RelProps))
	for _, relType := range sortedKeys(filtered.RelProps) {
		relProps = append(relProps, fmt.Sprintf("%s {%s}", relType, formatProps(filtered.RelProps[relType])))
	}
	rels := make([]string, 0, len(filtered.Relationships))
	for _, rel := range filtered.Relationships {
		rels = append(rels, fmt.Sprintf("(:%s)-[:%s]->(:%s)", rel.Start, rel.Type, rel.End))
	}

	return strings.Join([]string{
		"Node properties are the following:",
		strings.Join(nodeProps, ","),
		"Relationship properties are the following:",
		strings.Join(relProps, ","),
		"The relationships are the following:",
		strings.Join(rels, ","),
	}, "\n"), nil
}

// LoadFile reads a structured schema from a YAML (or JSON) file.
func LoadFile(path string) (Structured, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Structured{}, fmt.Errorf("read schema %s: %w", path, err)
	}
	var s Structured
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Structured{}, fmt.Errorf("decode schema %s: %w", path, err)
	}
	return s, nil
}

// WriteFile stores a structured schema as YAML.
func WriteFile(path string, s Structured) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write schema %s: %w", path, err)
	}
	return nil
}

func formatProps(props []Property) string {
	parts := make([]string, 0, len(props))
	for _, p := range props {
		parts = append(parts, fmt.Sprintf("%s: %s", p.Property, p.Type))
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(m map[string][]Property) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func containsString(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
