package cypher

import (
	"sort"
	"strings"
)

// Result is the outcome of a successful correction.
type Result struct {
	// Query is the corrected query text.
	Query string
	// Paths is the number of patterns extracted from the input.
	Paths int
	// Signatures is the number of distinct path signatures validated.
	Signatures int
	// Flipped counts relationships whose arrow was reversed.
	Flipped int
	// Relabelled counts node occurrences whose labels were rewritten.
	Relabelled int
}

// Changed reports whether the corrected query differs from the input.
func (r Result) Changed() bool {
	return r.Flipped > 0 || r.Relabelled > 0
}

// varDecls holds the distinct label sets declared for one named variable.
type varDecls struct {
	name string
	sets [][]string
}

type verdict struct {
	flips []bool
}

type edit struct {
	start, end int
	text       string
}

// Correct validates the patterns in query against schema and repairs label
// and direction errors. A query that cannot be repaired yields a *Rejection.
// Each distinct path signature is validated once per call, however often it
// repeats in the query.
//
// Within a path, every node label must exist in the schema, then every
// relationship type, and only then is each hop tested for permission in
// either direction. An unknown label or type is therefore reported as
// ErrSchemaMismatch even when the hop would also be impermissible.
func Correct(query string, schema *Schema) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = reject(ErrUnparseable, "", "internal error: %v", r)
		}
	}()

	if strings.TrimSpace(query) == "" {
		return Result{}, reject(ErrUnparseable, "", "empty query")
	}
	if schema == nil {
		return Result{}, reject(ErrSchemaMismatch, "", "no schema supplied")
	}

	paths, err := ParsePaths(query)
	if err != nil {
		return Result{}, err
	}
	vars, err := reconcileLabels(paths)
	if err != nil {
		return Result{}, err
	}

	visited := make(map[string]verdict)
	var edits []edit
	for _, path := range paths {
		labels := effectiveLabels(path, vars)
		sig := signature(path, labels)
		v, seen := visited[sig]
		if !seen {
			v, err = validate(path, labels, schema)
			if err != nil {
				return Result{}, err
			}
			visited[sig] = v
			res.Signatures++
		}

		for i, flip := range v.flips {
			if flip {
				edits = append(edits, flipArrow(path.Rels[i])...)
				res.Flipped++
			}
		}
		for _, node := range path.Nodes {
			name, ok := node.Var.Lookup()
			if !ok || len(node.Labels) == 0 {
				continue
			}
			want := vars[name]
			if sameLabels(node.Labels, want) {
				continue
			}
			edits = append(edits, edit{start: node.labelStart, end: node.labelEnd, text: relabel(node, want)})
			res.Relabelled++
		}
	}

	res.Query = applyEdits(query, edits)
	res.Paths = len(paths)
	return res, nil
}

// aggregateLabels collects the distinct label sets declared for each named
// variable, in order of first appearance. Unbound node patterns never take
// part: two anonymous nodes are always distinct nodes.
func aggregateLabels(paths []Path) []varDecls {
	var out []varDecls
	index := make(map[string]int)
	for _, path := range paths {
		for _, node := range path.Nodes {
			name, ok := node.Var.Lookup()
			if !ok || len(node.Labels) == 0 {
				continue
			}
			i, found := index[name]
			if !found {
				i = len(out)
				index[name] = i
				out = append(out, varDecls{name: name})
			}
			if !containsSet(out[i].sets, node.Labels) {
				out[i].sets = append(out[i].sets, node.Labels)
			}
		}
	}
	return out
}

// reconcileLabels intersects the label sets declared for every variable.
func reconcileLabels(paths []Path) (map[string][]string, error) {
	decls := aggregateLabels(paths)
	out := make(map[string][]string, len(decls))
	for _, d := range decls {
		common := dedupe(d.sets[0])
		for _, set := range d.sets[1:] {
			common = intersect(common, set)
		}
		if len(common) == 0 {
			described := make([]string, len(d.sets))
			for i, set := range d.sets {
				described[i] = formatLabels(set)
			}
			return nil, reject(ErrConflictingLabels, d.name, "declared as %s", strings.Join(described, " and "))
		}
		out[d.name] = common
	}
	return out, nil
}

func effectiveLabels(path Path, vars map[string][]string) [][]string {
	labels := make([][]string, len(path.Nodes))
	for i, node := range path.Nodes {
		if name, ok := node.Var.Lookup(); ok {
			if reconciled, found := vars[name]; found {
				labels[i] = reconciled
				continue
			}
		}
		labels[i] = node.Labels
	}
	return labels
}

func validate(path Path, labels [][]string, schema *Schema) (verdict, error) {
	for _, set := range labels {
		for _, label := range set {
			if !schema.HasLabel(label) {
				return verdict{}, reject(ErrSchemaMismatch, label, "node label is not in the schema")
			}
		}
	}

	v := verdict{flips: make([]bool, len(path.Rels))}
	for i, rel := range path.Rels {
		if len(rel.Types) == 0 {
			continue
		}
		for _, t := range rel.Types {
			if !schema.HasType(t) {
				return verdict{}, reject(ErrSchemaMismatch, t, "relationship type is not in the schema")
			}
		}
		left, right := labels[i], labels[i+1]
		forward := permitsAny(schema, left, rel.Types, right)
		backward := permitsAny(schema, right, rel.Types, left)

		if !forward && !backward {
			return verdict{}, reject(ErrInvalidRelationship, describeHop(left, rel, right),
				"not permitted in either direction")
		}
		switch rel.Direction {
		case Outgoing:
			v.flips[i] = !forward
		case Incoming:
			v.flips[i] = !backward
		}
	}
	return v, nil
}

func permitsAny(schema *Schema, start, types, end []string) bool {
	for _, t := range types {
		if schema.Permits(start, t, end) {
			return true
		}
	}
	return false
}

func flipArrow(rel RelRef) []edit {
	left, right := "-", "->"
	if rel.Direction == Outgoing {
		left, right = "<-", "-"
	}
	return []edit{
		{start: rel.leftStart, end: rel.leftEnd, text: left},
		{start: rel.rightStart, end: rel.rightEnd, text: right},
	}
}

func applyEdits(query string, edits []edit) string {
	if len(edits) == 0 {
		return query
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })
	var b strings.Builder
	last := 0
	for _, e := range edits {
		b.WriteString(query[last:e.start])
		b.WriteString(e.text)
		last = e.end
	}
	b.WriteString(query[last:])
	return b.String()
}

func describeHop(left []string, rel RelRef, right []string) string {
	var b strings.Builder
	b.WriteString("(" + formatLabels(left) + ")")
	arrowLeft, arrowRight := "-", "-"
	switch rel.Direction {
	case Outgoing:
		arrowRight = "->"
	case Incoming:
		arrowLeft = "<-"
	}
	b.WriteString(arrowLeft + "[:" + strings.Join(rel.Types, "|") + "]" + arrowRight)
	b.WriteString("(" + formatLabels(right) + ")")
	return b.String()
}

func formatLabels(labels []string) string {
	var b strings.Builder
	for _, label := range labels {
		b.WriteByte(':')
		b.WriteString(quoteIdent(label))
	}
	return b.String()
}

// relabel renders want in the label syntax the node was written with.
func relabel(node NodeRef, want []string) string {
	if !node.keywordLabels {
		return formatLabels(want)
	}
	quoted := make([]string, len(want))
	for i, label := range want {
		quoted[i] = quoteIdent(label)
	}
	return "IS " + strings.Join(quoted, "&")
}

func quoteIdent(name string) string {
	simple := name != "" && !isDigit(name[0])
	for i := 0; i < len(name) && simple; i++ {
		simple = isIdentChar(name[i])
	}
	if simple {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func sameLabels(a, b []string) bool {
	a, b = dedupe(a), dedupe(b)
	if len(a) != len(b) {
		return false
	}
	for _, label := range a {
		if !contains(b, label) {
			return false
		}
	}
	return true
}

func containsSet(sets [][]string, set []string) bool {
	for _, s := range sets {
		if sameLabels(s, set) {
			return true
		}
	}
	return false
}

func intersect(a, b []string) []string {
	var out []string
	for _, label := range a {
		if contains(b, label) {
			out = append(out, label)
		}
	}
	return out
}

func dedupe(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		if !contains(out, label) {
			out = append(out, label)
		}
	}
	return out
}

func contains(labels []string, want string) bool {
	for _, label := range labels {
		if label == want {
			return true
		}
	}
	return false
}
