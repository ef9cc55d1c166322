package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient_RespondersBeforeQueue(t *testing.T) {
	mem := NewMemoryClient().Respond("db.labels", Result{Records: []Record{{"label": "Person"}}})
	mem.PushReadResult(Result{Records: []Record{{"n": 1}}})

	res, err := mem.ExecuteRead(context.Background(), "CALL db.labels() YIELD label", nil)
	require.NoError(t, err)
	assert.Equal(t, "Person", res.Records[0]["label"])

	res, err = mem.ExecuteRead(context.Background(), "MATCH (n) RETURN n", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Records[0]["n"])

	calls := mem.ReadCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, 1, calls[1].Params["x"])
}

func TestMemoryClient_Errors(t *testing.T) {
	boom := errors.New("boom")
	mem := NewMemoryClient().WithError(boom).WithConnectivityError(boom)

	_, err := mem.ExecuteRead(context.Background(), "RETURN 1", nil)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, mem.VerifyConnectivity(context.Background()), boom)
}

func TestMemoryClient_ReadOnlyContract(t *testing.T) {
	var client Client = NewMemoryClient()
	_, isWriter := client.(interface {
		ExecuteWrite(context.Context, string, map[string]any) (Result, error)
	})
	assert.False(t, isWriter)
	assert.NoError(t, client.Close(context.Background()))
}

func TestResult_RowsLimit(t *testing.T) {
	res := Result{Records: []Record{{"i": 1}, {"i": 2}, {"i": 3}}}
	assert.Len(t, res.Rows(2), 2)
	assert.Len(t, res.Rows(0), 3)
	assert.Len(t, res.Rows(10), 3)
}

func TestPlainValue_GraphTypes(t *testing.T) {
	node := dbtype.Node{Labels: []string{"Person"}, Props: map[string]any{"name": "Tom"}}
	rel := dbtype.Relationship{Type: "ACTED_IN", Props: map[string]any{"role": "Forrest"}}

	assert.Equal(t, map[string]any{"name": "Tom"}, plainValue(node))
	assert.Equal(t, map[string]any{"role": "Forrest", "_type": "ACTED_IN"}, plainValue(rel))
	assert.Equal(t, []any{map[string]any{"name": "Tom"}, int64(3)}, plainValue([]any{node, int64(3)}))
	assert.Equal(t, []any{map[string]any{"name": "Tom"}}, plainValue(dbtype.Path{Nodes: []dbtype.Node{node}}))
}

func intList(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestSanitize_SmallListKept(t *testing.T) {
	small := intList(15)
	in := map[string]any{"key1": "value1", "small_list": small}
	assert.Equal(t, map[string]any{"key1": "value1", "small_list": small}, Sanitize(in))
}

func TestSanitize_OversizedListDropped(t *testing.T) {
	in := map[string]any{"key1": "value1", "oversized_list": intList(150)}
	assert.Equal(t, map[string]any{"key1": "value1"}, Sanitize(in))

	in = map[string]any{"at_limit": intList(MaxListSize), "below": intList(MaxListSize - 1)}
	out := Sanitize(in).(map[string]any)
	assert.NotContains(t, out, "at_limit")
	assert.Len(t, out["below"], MaxListSize-1)
}

func TestSanitize_NestedOversizedList(t *testing.T) {
	in := map[string]any{"key1": "value1", "oversized_list": map[string]any{"key": intList(150)}}
	assert.Equal(t, map[string]any{"key1": "value1", "oversized_list": map[string]any{}}, Sanitize(in))
}

func TestSanitize_MapInList(t *testing.T) {
	in := map[string]any{"key1": "value1", "oversized_list": []any{1, 2, map[string]any{"key": intList(150)}}}
	want := map[string]any{"key1": "value1", "oversized_list": []any{1, 2, map[string]any{}}}
	assert.Equal(t, want, Sanitize(in))
}

func TestSanitize_MapInNestedLists(t *testing.T) {
	in := map[string]any{
		"key1":                "value1",
		"deeply_nested_lists": []any{[]any{[]any{[]any{map[string]any{"final_nested_key": intList(200)}}}}},
	}
	want := map[string]any{
		"key1":                "value1",
		"deeply_nested_lists": []any{[]any{[]any{[]any{map[string]any{}}}}},
	}
	assert.Equal(t, want, Sanitize(in))
}

func TestSanitizeRows_KeepsNullsAndScalars(t *testing.T) {
	rows := []map[string]any{
		{"name": "Tom", "born": nil, "embedding": intList(256)},
		{"tags": []any{"a", intList(300)}},
	}
	assert.Equal(t, []map[string]any{
		{"name": "Tom", "born": nil},
		{"tags": []any{"a"}},
	}, SanitizeRows(rows))
	assert.Nil(t, Sanitize(intList(MaxListSize)))
}
