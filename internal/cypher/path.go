package cypher

import (
	"sort"
	"strings"
)

// Var is an optional pattern variable. The zero value means the pattern
// element is not bound to any variable.
type Var struct {
	name    string
	present bool
}

// Named returns a bound variable. An empty name yields the unbound variable.
func Named(name string) Var {
	if name == "" {
		return Var{}
	}
	return Var{name: name, present: true}
}

// Lookup returns the variable name and whether the element is bound.
func (v Var) Lookup() (string, bool) {
	return v.name, v.present
}

func (v Var) String() string {
	if !v.present {
		return "<unbound>"
	}
	return v.name
}

// Direction of a relationship pattern as written in the query.
type Direction int

const (
	Undirected Direction = iota
	Outgoing
	Incoming
)

func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "->"
	case Incoming:
		return "<-"
	default:
		return "--"
	}
}

// NodeRef is a node pattern such as (a:Person).
type NodeRef struct {
	Var    Var
	Labels []string

	// labelStart and labelEnd delimit the label section in the query text.
	// Both are the offset after the variable when the node has no labels.
	labelStart int
	labelEnd   int
	// keywordLabels marks the "IS Label" form.
	keywordLabels bool
	// whereStart and whereEnd delimit an inline WHERE predicate.
	whereStart int
	whereEnd   int
}

// RelRef is a relationship pattern such as -[:ACTED_IN]->.
type RelRef struct {
	Var       Var
	Types     []string
	Direction Direction

	leftStart  int
	leftEnd    int
	rightStart int
	rightEnd   int
}

// Path is an alternating sequence of node and relationship patterns.
// len(Nodes) is always len(Rels)+1.
type Path struct {
	Nodes []NodeRef
	Rels  []RelRef
}

// signature renders the canonical structural form of a path given the
// effective labels of each node.
func signature(p Path, labels [][]string) string {
	var b strings.Builder
	b.WriteString(labelKey(labels[0]))
	for i, rel := range p.Rels {
		types := append([]string(nil), rel.Types...)
		sort.Strings(types)
		b.WriteString(rel.Direction.String())
		b.WriteByte('[')
		b.WriteString(strings.Join(types, "|"))
		b.WriteByte(']')
		b.WriteString(labelKey(labels[i+1]))
	}
	return b.String()
}

func labelKey(labels []string) string {
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	return "(" + strings.Join(sorted, ":") + ")"
}
