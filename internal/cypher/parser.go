package cypher

import "strings"

// patternKeywords may directly precede a node pattern without whitespace,
// as in MATCH(n). Any other identifier before '(' marks a function call.
var patternKeywords = map[string]struct{}{
	"MATCH":  {},
	"MERGE":  {},
	"CREATE": {},
	"WHERE":  {},
	"NOT":    {},
	"AND":    {},
	"OR":     {},
	"XOR":    {},
}

// isPredicates follow IS in a boolean test such as (n IS NULL); they never
// name a label.
var isPredicates = map[string]struct{}{
	"NULL":       {},
	"NOT":        {},
	"TYPED":      {},
	"NORMALIZED": {},
	"NFC":        {},
	"NFD":        {},
	"NFKC":       {},
	"NFKD":       {},
}

// parser scans src[pos:end]. end bounds sub-parsers over inline WHERE
// predicates; offsets always index the whole query.
type parser struct {
	src string
	pos int
	end int
}

// ParsePaths extracts every node and relationship pattern from query, in
// source order. Text that is not a pattern is ignored. Patterns nested in an
// inline node predicate follow the path that holds them.
func ParsePaths(query string) ([]Path, error) {
	p := &parser{src: query, end: len(query)}
	return p.paths()
}

func (p *parser) paths() ([]Path, error) {
	var out []Path
	for p.pos < p.end {
		c := p.src[p.pos]
		switch {
		case c == '\'' || c == '"':
			if err := p.skipString(c); err != nil {
				return nil, err
			}
		case c == '`':
			if _, err := p.quotedIdent(); err != nil {
				return nil, err
			}
		case strings.HasPrefix(p.rest(), "//"):
			p.skipLineComment()
		case strings.HasPrefix(p.rest(), "/*"):
			if err := p.skipBlockComment(); err != nil {
				return nil, err
			}
		case c == '(' && !p.isCallParen():
			start := p.pos
			path, ok, err := p.path()
			if err != nil {
				return nil, err
			}
			if !ok {
				p.pos = start
				if p.relationshipFollows() {
					return nil, p.fail("relationship follows an unsupported node pattern")
				}
				p.pos = start + 1
				continue
			}
			out = append(out, path)
			nested, err := p.predicatePaths(path)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		default:
			p.pos++
		}
	}
	return out, nil
}

// predicatePaths parses the patterns inside the inline WHERE predicates of
// path's nodes.
func (p *parser) predicatePaths(path Path) ([]Path, error) {
	var out []Path
	for _, n := range path.Nodes {
		if n.whereEnd <= n.whereStart {
			continue
		}
		sub := &parser{src: p.src, pos: n.whereStart, end: n.whereEnd}
		nested, err := sub.paths()
		if err != nil {
			return nil, err
		}
		out = append(out, nested...)
	}
	return out, nil
}

// relationshipFollows reports whether the parenthesised group at the current
// position is directly followed by a relationship pattern. The position is
// left undefined.
func (p *parser) relationshipFollows() bool {
	p.pos++ // (
	if err := p.skipExpr(); err != nil || p.peek() != ')' {
		return false
	}
	p.pos++
	p.skipSpace()
	width, _ := p.relStart()
	return width > 0
}

func (p *parser) path() (Path, bool, error) {
	first, ok, err := p.node()
	if err != nil || !ok {
		return Path{}, false, err
	}
	path := Path{Nodes: []NodeRef{first}}
	for {
		save := p.pos
		p.skipSpace()
		rel, ok, err := p.rel()
		if err != nil {
			return Path{}, false, err
		}
		if !ok {
			p.pos = save
			return path, true, nil
		}
		p.skipSpace()
		if p.peek() != '(' {
			return Path{}, false, p.fail("relationship is not followed by a node pattern")
		}
		next, ok, err := p.node()
		if err != nil {
			return Path{}, false, err
		}
		if !ok {
			return Path{}, false, p.fail("relationship is not followed by a node pattern")
		}
		path.Rels = append(path.Rels, rel)
		path.Nodes = append(path.Nodes, next)
	}
}

// node parses "( [var] [:Label... | IS Label...] [{props}] [WHERE pred] )".
// ok is false when the parenthesis does not hold a node pattern; the
// position is then undefined.
func (p *parser) node() (NodeRef, bool, error) {
	p.pos++ // (
	p.skipSpace()

	var n NodeRef
	if p.atIdentStart() {
		name, err := p.ident()
		if err != nil {
			return NodeRef{}, false, err
		}
		n.Var = Named(name)
	}
	n.labelStart = p.pos
	n.labelEnd = p.pos

	save := p.pos
	p.skipSpace()
	_, named := n.Var.Lookup()
	switch {
	case p.peek() == ':':
		n.labelStart = p.pos
		p.pos++
		ok, err := p.labels(&n)
		if err != nil || !ok {
			return NodeRef{}, false, err
		}
		save = p.pos
	case named && p.pos > save && p.keywordAt("IS") && !p.isPredicate():
		n.labelStart = p.pos
		n.keywordLabels = true
		p.pos += len("IS")
		ok, err := p.labels(&n)
		if err != nil || !ok {
			return NodeRef{}, false, err
		}
		save = p.pos
	}
	p.pos = save
	p.skipSpace()

	if p.peek() == '{' {
		if err := p.skipBraces(); err != nil {
			return NodeRef{}, false, err
		}
		p.skipSpace()
	}
	if p.keywordAt("WHERE") {
		p.pos += len("WHERE")
		n.whereStart = p.pos
		if err := p.skipExpr(); err != nil {
			return NodeRef{}, false, err
		}
		n.whereEnd = p.pos
	}
	if p.peek() != ')' {
		return NodeRef{}, false, nil
	}
	p.pos++
	return n, true, nil
}

// labels reads "Label ((:|&) Label)*" after the first separator and leaves
// the position after the last label. ok is false when no label follows.
func (p *parser) labels(n *NodeRef) (bool, error) {
	for {
		p.skipSpace()
		if !p.atIdentStart() {
			return false, nil
		}
		label, err := p.ident()
		if err != nil {
			return false, err
		}
		n.Labels = append(n.Labels, label)
		n.labelEnd = p.pos
		p.skipSpace()
		switch p.peek() {
		case ':', '&':
			p.pos++
			continue
		case '|', '!', '%':
			return false, p.fail("unsupported label expression")
		}
		p.pos = n.labelEnd
		return true, nil
	}
}

// isPredicate reports whether the IS at the current position starts a
// boolean test rather than a label expression.
func (p *parser) isPredicate() bool {
	save := p.pos
	defer func() { p.pos = save }()
	p.pos += len("IS")
	p.skipSpace()
	if p.peek() == '`' {
		return false
	}
	if !p.atIdentStart() {
		return true
	}
	word, _ := p.ident()
	_, ok := isPredicates[strings.ToUpper(word)]
	return ok
}

// relStart measures the left arrow token at the current position. width is
// zero when no relationship starts here. Whitespace may separate the arrow
// from its detail bracket.
func (p *parser) relStart() (width int, incoming bool) {
	rest := p.rest()
	switch {
	case strings.HasPrefix(rest, "<--"):
		return 2, true
	case strings.HasPrefix(rest, "<-") && p.bracketAt(p.pos+2):
		return 2, true
	case strings.HasPrefix(rest, "--"):
		return 1, false
	case strings.HasPrefix(rest, "-") && p.bracketAt(p.pos+1):
		return 1, false
	}
	return 0, false
}

// bracketAt reports whether '[' is the first non-space byte at or after i.
func (p *parser) bracketAt(i int) bool {
	for i < p.end && isSpace(p.src[i]) {
		i++
	}
	return i < p.end && p.src[i] == '['
}

// rel parses a relationship pattern between two nodes. ok is false when the
// text at the current position does not start a relationship.
func (p *parser) rel() (RelRef, bool, error) {
	width, incoming := p.relStart()
	if width == 0 {
		return RelRef{}, false, nil
	}
	var r RelRef
	r.leftStart = p.pos
	p.pos += width
	r.leftEnd = p.pos

	save := p.pos
	p.skipSpace()
	if p.peek() == '[' {
		if err := p.relDetail(&r); err != nil {
			return RelRef{}, false, err
		}
		p.skipSpace()
	} else {
		p.pos = save
	}

	if p.peek() != '-' {
		return RelRef{}, false, p.fail("relationship pattern is missing its closing dash")
	}
	r.rightStart = p.pos
	p.pos++
	outgoing := false
	if p.peek() == '>' {
		outgoing = true
		p.pos++
	}
	r.rightEnd = p.pos

	switch {
	case incoming && !outgoing:
		r.Direction = Incoming
	case outgoing && !incoming:
		r.Direction = Outgoing
	default:
		r.Direction = Undirected
	}
	return r, true, nil
}

func (p *parser) relDetail(r *RelRef) error {
	p.pos++ // [
	p.skipSpace()
	if p.atIdentStart() {
		name, err := p.ident()
		if err != nil {
			return err
		}
		r.Var = Named(name)
		p.skipSpace()
	}
	if p.peek() == ':' {
		for {
			p.pos++
			p.skipSpace()
			if p.peek() == ':' && len(r.Types) > 0 {
				p.pos++
				p.skipSpace()
			}
			if !p.atIdentStart() {
				return p.fail("relationship type expected")
			}
			relType, err := p.ident()
			if err != nil {
				return err
			}
			r.Types = append(r.Types, relType)
			p.skipSpace()
			if p.peek() != '|' {
				break
			}
		}
	}
	if p.peek() == '*' {
		p.pos++
		for p.pos < p.end && (isDigit(p.src[p.pos]) || p.src[p.pos] == '.' || isSpace(p.src[p.pos])) {
			p.pos++
		}
	}
	if p.peek() == '{' {
		if err := p.skipBraces(); err != nil {
			return err
		}
		p.skipSpace()
	}
	if p.peek() != ']' {
		return p.fail("unsupported relationship detail")
	}
	p.pos++
	return nil
}

func (p *parser) ident() (string, error) {
	if p.peek() == '`' {
		return p.quotedIdent()
	}
	start := p.pos
	for p.pos < p.end && isIdentChar(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos], nil
}

func (p *parser) quotedIdent() (string, error) {
	start := p.pos
	p.pos++
	var b strings.Builder
	for p.pos < p.end {
		c := p.src[p.pos]
		if c == '`' {
			if p.pos+1 < p.end && p.src[p.pos+1] == '`' {
				b.WriteByte('`')
				p.pos += 2
				continue
			}
			p.pos++
			return b.String(), nil
		}
		b.WriteByte(c)
		p.pos++
	}
	p.pos = start
	return "", p.fail("unterminated quoted identifier")
}

func (p *parser) skipString(quote byte) error {
	start := p.pos
	p.pos++
	for p.pos < p.end {
		switch p.src[p.pos] {
		case '\\':
			p.pos += 2
		case quote:
			p.pos++
			return nil
		default:
			p.pos++
		}
	}
	p.pos = start
	return p.fail("unterminated string literal")
}

func (p *parser) skipLineComment() {
	if i := strings.IndexByte(p.rest(), '\n'); i >= 0 {
		p.pos += i + 1
		return
	}
	p.pos = p.end
}

func (p *parser) skipBlockComment() error {
	i := strings.Index(p.src[p.pos+2:p.end], "*/")
	if i < 0 {
		return p.fail("unterminated comment")
	}
	p.pos += i + 4
	return nil
}

func (p *parser) skipBraces() error {
	start := p.pos
	depth := 0
	for p.pos < p.end {
		c := p.src[p.pos]
		switch c {
		case '\'', '"':
			if err := p.skipString(c); err != nil {
				return err
			}
			continue
		case '`':
			if _, err := p.quotedIdent(); err != nil {
				return err
			}
			continue
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				p.pos++
				return nil
			}
		}
		p.pos++
	}
	p.pos = start
	return p.fail("unterminated property map")
}

// skipExpr advances over an expression up to the first unmatched closing
// bracket, which it leaves unconsumed.
func (p *parser) skipExpr() error {
	start := p.pos
	depth := 0
	for p.pos < p.end {
		c := p.src[p.pos]
		switch c {
		case '\'', '"':
			if err := p.skipString(c); err != nil {
				return err
			}
			continue
		case '`':
			if _, err := p.quotedIdent(); err != nil {
				return err
			}
			continue
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				return nil
			}
			depth--
		}
		p.pos++
	}
	p.pos = start
	return p.fail("unterminated node predicate")
}

// keywordAt reports whether the keyword kw, in any case, starts at the
// current position and is not the prefix of a longer identifier.
func (p *parser) keywordAt(kw string) bool {
	end := p.pos + len(kw)
	if end > p.end || !strings.EqualFold(p.src[p.pos:end], kw) {
		return false
	}
	return end == p.end || !isIdentChar(p.src[end])
}

func (p *parser) rest() string {
	return p.src[p.pos:p.end]
}

// isCallParen reports whether the '(' at the current position opens the
// argument list of a function call rather than a pattern.
func (p *parser) isCallParen() bool {
	if p.pos == 0 {
		return false
	}
	prev := p.src[p.pos-1]
	if prev == '`' {
		return true
	}
	if !isIdentChar(prev) {
		return false
	}
	start := p.pos - 1
	for start > 0 && isIdentChar(p.src[start-1]) {
		start--
	}
	_, keyword := patternKeywords[strings.ToUpper(p.src[start:p.pos])]
	return !keyword
}

func (p *parser) skipSpace() {
	for p.pos < p.end && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.pos >= p.end {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) atIdentStart() bool {
	c := p.peek()
	return c == '`' || c == '_' || isLetter(c)
}

func (p *parser) fail(msg string) *Rejection {
	return reject(ErrUnparseable, excerpt(p.src, p.pos), "%s at offset %d", msg, p.pos)
}

func excerpt(src string, pos int) string {
	if pos >= len(src) {
		return ""
	}
	end := pos + 24
	if end > len(src) {
		end = len(src)
	}
	return src[pos:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentChar(c byte) bool {
	return c == '_' || isLetter(c) || isDigit(c)
}
