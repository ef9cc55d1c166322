package cypher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func movieSchema() *Schema {
	return NewSchema([]Triple{
		{Start: "Person", Type: "ACTED_IN", End: "Movie"},
		{Start: "Actor", Type: "DIRECTED", End: "Movie"},
		{Start: "Person", Type: "WORKS_AT", End: "Company"},
	}, "Genre")
}

func requireRejection(t *testing.T, err error, kind error) *Rejection {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	var rej *Rejection
	require.True(t, errors.As(err, &rej), "expected *Rejection, got %T", err)
	return rej
}

func TestCorrect_RepeatedPathValidatedOnce(t *testing.T) {
	q := "MATCH (a:Person)-[:ACTED_IN]->(b:Movie) MATCH (a:Person)-[:ACTED_IN]->(b:Movie) RETURN a, b"

	res, err := Correct(q, movieSchema())
	require.NoError(t, err)
	assert.Equal(t, q, res.Query)
	assert.Equal(t, 2, res.Paths)
	assert.Equal(t, 1, res.Signatures)
	assert.False(t, res.Changed())
}

func TestCorrect_ManyRepetitionsBoundedBySignatures(t *testing.T) {
	q := strings.Repeat("MATCH (:Person)-[:ACTED_IN]->(:Movie) ", 2000) + "RETURN 1"

	done := make(chan struct{})
	var res Result
	var err error
	go func() {
		defer close(done)
		res, err = Correct(q, movieSchema())
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("correction did not terminate")
	}
	require.NoError(t, err)
	assert.Equal(t, 2000, res.Paths)
	assert.Equal(t, 1, res.Signatures)
	assert.Equal(t, q, res.Query)
}

func TestCorrect_RepeatedFlipAppliedToEveryOccurrence(t *testing.T) {
	q := "MATCH (:Movie)-[:ACTED_IN]->(:Person) MATCH (:Movie)-[:ACTED_IN]->(:Person) RETURN 1"

	res, err := Correct(q, movieSchema())
	require.NoError(t, err)
	assert.Equal(t, "MATCH (:Movie)<-[:ACTED_IN]-(:Person) MATCH (:Movie)<-[:ACTED_IN]-(:Person) RETURN 1", res.Query)
	assert.Equal(t, 1, res.Signatures)
	assert.Equal(t, 2, res.Flipped)
}

func TestCorrect_UnnamedNodesNeverConflict(t *testing.T) {
	q := "MATCH (:Person), (:Movie) RETURN count(*)"

	res, err := Correct(q, movieSchema())
	require.NoError(t, err)
	assert.Equal(t, q, res.Query)

	paths, err := ParsePaths(q)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Empty(t, aggregateLabels(paths))
}

func TestAggregateLabels_SkipsUnboundNodes(t *testing.T) {
	paths := []Path{
		{Nodes: []NodeRef{{Labels: []string{"Person"}}}},
		{Nodes: []NodeRef{{Var: Named(""), Labels: []string{"Movie"}}}},
		{Nodes: []NodeRef{{Var: Named("m"), Labels: []string{"Movie"}}}},
	}

	decls := aggregateLabels(paths)
	require.Len(t, decls, 1)
	assert.Equal(t, "m", decls[0].name)
	for _, d := range decls {
		assert.NotEmpty(t, d.name)
	}
}

func TestCorrect_ConflictingLabels(t *testing.T) {
	q := "MATCH (x:Person)-[:WORKS_AT]->(c:Company) MATCH (x:Company) RETURN x"

	_, err := Correct(q, movieSchema())
	rej := requireRejection(t, err, ErrConflictingLabels)
	assert.Equal(t, "x", rej.Element)
	assert.Equal(t, "conflicting_labels", KindName(err))
}

func TestCorrect_InvalidRelationship(t *testing.T) {
	_, err := Correct("MATCH (:Person)-[:DIRECTED]->(:Actor) RETURN 1", movieSchema())
	rej := requireRejection(t, err, ErrInvalidRelationship)
	assert.Equal(t, "(:Person)-[:DIRECTED]->(:Actor)", rej.Element)
}

func TestCorrect_SchemaMismatch(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		element string
	}{
		{"unknown label", "MATCH (a:Alien)-[:ACTED_IN]->(m:Movie) RETURN a", "Alien"},
		{"unknown type", "MATCH (a:Person)-[:LIKES]->(m:Movie) RETURN a", "LIKES"},
		{"standalone node", "MATCH (a:Alien) RETURN a", "Alien"},
		{"spaced arrow", "MATCH (m:Movie)- [:LIKES] ->(p:Person) RETURN p", "LIKES"},
		{"inline where", "MATCH (m:Movie WHERE m.year > 2000)-[:LIKES]->(p:Person) RETURN p", "LIKES"},
		{"is label", "MATCH (m IS Movie)-[:LIKES]->(p:Person) RETURN p", "LIKES"},
		{"is label unknown", "MATCH (m IS Alien)-[:ACTED_IN]->(p:Person) RETURN p", "Alien"},
		{"pattern inside inline where", "MATCH (m:Movie WHERE EXISTS { (m)<-[:LIKES]-(:Person) })-[:ACTED_IN]-(p) RETURN p", "LIKES"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Correct(tt.query, movieSchema())
			rej := requireRejection(t, err, ErrSchemaMismatch)
			assert.Equal(t, tt.element, rej.Element)
		})
	}
}

func TestCorrect_Unparseable(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"blank", "   "},
		{"unclosed relationship", "MATCH (a:Person)-[:ACTED_IN RETURN a"},
		{"dangling relationship", "MATCH (a:Person)-[:ACTED_IN]->"},
		{"unterminated string", "MATCH (a:Person) WHERE a.name = 'Tom RETURN a"},
		{"label expression", "MATCH (a:Person|Movie) RETURN a"},
		{"unterminated comment", "MATCH (a:Person) /* RETURN a"},
		{"parameter map node", "MATCH (m:Movie $props)-[:LIKES]->(p:Person) RETURN p"},
		{"unsupported node before incoming", "MATCH (m:Movie $props)<-[:ACTED_IN]-(p:Person) RETURN p"},
		{"unterminated inline where", "MATCH (m:Movie WHERE m.year > (2000)-[:LIKES]->(p:Person) RETURN p"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Correct(tt.query, movieSchema())
			requireRejection(t, err, ErrUnparseable)
		})
	}
}

// Label existence is checked before type existence, and both before the
// endpoints are tested for permission.
func TestCorrect_UnknownLabelOutranksPermission(t *testing.T) {
	schema := NewSchema([]Triple{{Start: "Actor", Type: "DIRECTED", End: "Movie"}})

	_, err := Correct("MATCH (p:Person)-[:DIRECTED]->(m:Movie) RETURN m", schema)
	rej := requireRejection(t, err, ErrSchemaMismatch)
	assert.Equal(t, "Person", rej.Element)

	_, err = Correct("MATCH (a:Actor)-[:ACTED_IN]->(m:Movie) RETURN m", schema)
	rej = requireRejection(t, err, ErrSchemaMismatch)
	assert.Equal(t, "ACTED_IN", rej.Element)

	_, err = Correct("MATCH (a:Movie)-[:DIRECTED]->(m:Movie) RETURN m", schema)
	requireRejection(t, err, ErrInvalidRelationship)
}

func TestCorrect_NilSchema(t *testing.T) {
	_, err := Correct("MATCH (n) RETURN n", nil)
	requireRejection(t, err, ErrSchemaMismatch)
}

func TestCorrect_Repairs(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		want       string
		flipped    int
		relabelled int
	}{
		{
			name:    "outgoing reversed",
			query:   "MATCH (m:Movie)-[:ACTED_IN]->(p:Person) RETURN p",
			want:    "MATCH (m:Movie)<-[:ACTED_IN]-(p:Person) RETURN p",
			flipped: 1,
		},
		{
			name:    "incoming reversed",
			query:   "MATCH (p:Person)<-[:ACTED_IN]-(m:Movie) RETURN p",
			want:    "MATCH (p:Person)-[:ACTED_IN]->(m:Movie) RETURN p",
			flipped: 1,
		},
		{
			name:    "labels resolved from variable",
			query:   "MATCH (a:Movie) MATCH (a)-[:ACTED_IN]->(p:Person) RETURN p",
			want:    "MATCH (a:Movie) MATCH (a)<-[:ACTED_IN]-(p:Person) RETURN p",
			flipped: 1,
		},
		{
			name:    "quoted identifiers",
			query:   "MATCH (m:`Movie`)-[:`ACTED_IN`]->(p:Person) RETURN p",
			want:    "MATCH (m:`Movie`)<-[:`ACTED_IN`]-(p:Person) RETURN p",
			flipped: 1,
		},
		{
			name:    "keyword without space",
			query:   "MATCH(m:Movie)-[r:ACTED_IN]->(p:Person) RETURN r",
			want:    "MATCH(m:Movie)<-[r:ACTED_IN]-(p:Person) RETURN r",
			flipped: 1,
		},
		{
			name:       "reconciled labels substituted",
			query:      "MATCH (x:Person:Actor)-[:ACTED_IN]->(m:Movie) WHERE (x:Person)-[:WORKS_AT]->(:Company) RETURN x",
			want:       "MATCH (x:Person)-[:ACTED_IN]->(m:Movie) WHERE (x:Person)-[:WORKS_AT]->(:Company) RETURN x",
			relabelled: 1,
		},
		{
			name:  "undirected accepted",
			query: "MATCH (m:Movie)-[:ACTED_IN]-(p:Person) RETURN p",
			want:  "MATCH (m:Movie)-[:ACTED_IN]-(p:Person) RETURN p",
		},
		{
			name:  "multi hop",
			query: "MATCH (p:Person)-[:ACTED_IN]->(m:Movie)<-[:DIRECTED]-(d:Actor) RETURN d",
			want:  "MATCH (p:Person)-[:ACTED_IN]->(m:Movie)<-[:DIRECTED]-(d:Actor) RETURN d",
		},
		{
			name:  "type alternatives",
			query: "MATCH (p:Person)-[:ACTED_IN|DIRECTED]->(m:Movie) RETURN m",
			want:  "MATCH (p:Person)-[:ACTED_IN|DIRECTED]->(m:Movie) RETURN m",
		},
		{
			name:  "literals and comments ignored",
			query: "MATCH (p:Person {name: 'Tom (Hanks)'})-[:ACTED_IN]->(m:Movie) // (x:Alien)\nWHERE m.title = \"(y:Alien)\" RETURN m",
			want:  "MATCH (p:Person {name: 'Tom (Hanks)'})-[:ACTED_IN]->(m:Movie) // (x:Alien)\nWHERE m.title = \"(y:Alien)\" RETURN m",
		},
		{
			name:  "function arguments are not patterns",
			query: "MATCH (p:Person) RETURN size((p)-[:ACTED_IN]->(:Movie)), toUpper(p.name)",
			want:  "MATCH (p:Person) RETURN size((p)-[:ACTED_IN]->(:Movie)), toUpper(p.name)",
		},
		{
			name:    "spaced arrow",
			query:   "MATCH (m:Movie)- [:ACTED_IN] ->(p:Person) RETURN p",
			want:    "MATCH (m:Movie)<- [:ACTED_IN] -(p:Person) RETURN p",
			flipped: 1,
		},
		{
			name:    "inline where",
			query:   "MATCH (m:Movie WHERE m.year > 2000)-[:ACTED_IN]->(p:Person) RETURN p",
			want:    "MATCH (m:Movie WHERE m.year > 2000)<-[:ACTED_IN]-(p:Person) RETURN p",
			flipped: 1,
		},
		{
			name:    "is label",
			query:   "MATCH (m IS Movie)-[:ACTED_IN]->(p:Person) RETURN p",
			want:    "MATCH (m IS Movie)<-[:ACTED_IN]-(p:Person) RETURN p",
			flipped: 1,
		},
		{
			name:       "is label substituted",
			query:      "MATCH (x IS Person&Actor)-[:ACTED_IN]->(m:Movie) MATCH (x:Person) RETURN x",
			want:       "MATCH (x IS Person)-[:ACTED_IN]->(m:Movie) MATCH (x:Person) RETURN x",
			relabelled: 1,
		},
		{
			name:  "untyped relationships left alone",
			query: "MATCH (m:Movie)<--(p:Person)-->(c:Company) RETURN c",
			want:  "MATCH (m:Movie)<--(p:Person)-->(c:Company) RETURN c",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Correct(tt.query, movieSchema())
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Query)
			assert.Equal(t, tt.flipped, res.Flipped)
			assert.Equal(t, tt.relabelled, res.Relabelled)

			again, err := Correct(res.Query, movieSchema())
			require.NoError(t, err)
			assert.Equal(t, res.Query, again.Query, "correction is not idempotent")
			assert.False(t, again.Changed())
		})
	}
}

func TestCorrect_AcceptedHopsArePermitted(t *testing.T) {
	schema := movieSchema()
	queries := []string{
		"MATCH (m:Movie)-[:ACTED_IN]->(p:Person)-[:WORKS_AT]->(c:Company) RETURN c",
		"MATCH (c:Company)<-[:WORKS_AT]-(p:Person)<-[:ACTED_IN]-(m:Movie) RETURN m",
	}
	for _, q := range queries {
		res, err := Correct(q, schema)
		require.NoError(t, err)

		paths, err := ParsePaths(res.Query)
		require.NoError(t, err)
		for _, path := range paths {
			for i, rel := range path.Rels {
				start, end := path.Nodes[i].Labels, path.Nodes[i+1].Labels
				if rel.Direction == Incoming {
					start, end = end, start
				}
				assert.True(t, permitsAny(schema, start, rel.Types, end), "hop %d of %q", i, res.Query)
			}
		}
	}
}

func TestCorrect_ConcurrentCalls(t *testing.T) {
	schema := movieSchema()
	q := "MATCH (m:Movie)-[:ACTED_IN]->(p:Person) RETURN p"
	want := "MATCH (m:Movie)<-[:ACTED_IN]-(p:Person) RETURN p"

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := Correct(q, schema)
			if err != nil {
				errs <- err
				return
			}
			if res.Query != want {
				errs <- errors.New("unexpected query " + res.Query)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

type recordedCorrection struct {
	outcome string
	changed bool
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCorrection
}

func (f *fakeRecorder) ObserveCorrection(outcome string, changed bool, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCorrection{outcome: outcome, changed: changed})
}

func TestCorrector_RecordsOutcomes(t *testing.T) {
	rec := &fakeRecorder{}
	c := NewCorrector(movieSchema(), WithRecorder(rec))

	_, err := c.Correct(context.Background(), "MATCH (m:Movie)-[:ACTED_IN]->(p:Person) RETURN p")
	require.NoError(t, err)
	_, err = c.Correct(context.Background(), "MATCH (:Person)-[:DIRECTED]->(:Actor) RETURN 1")
	require.Error(t, err)

	require.Len(t, rec.calls, 2)
	assert.Equal(t, recordedCorrection{outcome: "ok", changed: true}, rec.calls[0])
	assert.Equal(t, recordedCorrection{outcome: "invalid_relationship", changed: false}, rec.calls[1])
}

func TestCorrector_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCorrector(movieSchema()).Correct(ctx, "MATCH (n) RETURN n")
	assert.ErrorIs(t, err, context.Canceled)
}
