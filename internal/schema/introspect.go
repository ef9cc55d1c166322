package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/vanshika/cypherguard/internal/cypher"
	"github.com/vanshika/cypherguard/internal/graph"
)

const (
	labelsCypher = `CALL db.labels() YIELD label RETURN label`

	relationshipsCypher = `
MATCH (a)-[r]->(b)
WITH DISTINCT labels(a) AS starts, type(r) AS type, labels(b) AS ends
UNWIND starts AS start
UNWIND ends AS end
RETURN DISTINCT start, type, end`

	nodePropsCypher = `
CALL db.schema.nodeTypeProperties() YIELD nodeLabels, propertyName, propertyTypes
RETURN nodeLabels, propertyName, propertyTypes`

	relPropsCypher = `
CALL db.schema.relTypeProperties() YIELD relType, propertyName, propertyTypes
RETURN relType, propertyName, propertyTypes`
)

// Introspector reads the structured schema from a live graph.
type Introspector struct {
	client graph.Client
	logger *slog.Logger
}

// NewIntrospector returns an Introspector backed by client.
func NewIntrospector(client graph.Client, logger *slog.Logger) *Introspector {
	return &Introspector{client: client, logger: logger}
}

// Load queries labels, relationship triples and property types.
func (in *Introspector) Load(ctx context.Context) (Structured, error) {
	s := Structured{
		NodeProps: make(map[string][]Property),
		RelProps:  make(map[string][]Property),
	}

	res, err := in.client.ExecuteRead(ctx, labelsCypher, nil)
	if err != nil {
		return Structured{}, fmt.Errorf("read labels: %w", err)
	}
	for _, rec := range res.Records {
		if label := asString(rec["label"]); label != "" {
			s.Labels = append(s.Labels, label)
		}
	}
	sort.Strings(s.Labels)

	res, err = in.client.ExecuteRead(ctx, relationshipsCypher, nil)
	if err != nil {
		return Structured{}, fmt.Errorf("read relationships: %w", err)
	}
	for _, rec := range res.Records {
		t := cypher.Triple{Start: asString(rec["start"]), Type: asString(rec["type"]), End: asString(rec["end"])}
		if t.Start == "" || t.Type == "" || t.End == "" {
			continue
		}
		s.Relationships = append(s.Relationships, t)
	}

	res, err = in.client.ExecuteRead(ctx, nodePropsCypher, nil)
	if err != nil {
		return Structured{}, fmt.Errorf("read node properties: %w", err)
	}
	for _, rec := range res.Records {
		prop, ok := propertyFrom(rec)
		for _, label := range asStrings(rec["nodeLabels"]) {
			if _, seen := s.NodeProps[label]; !seen {
				s.NodeProps[label] = []Property{}
			}
			if ok {
				s.NodeProps[label] = append(s.NodeProps[label], prop)
			}
		}
	}

	res, err = in.client.ExecuteRead(ctx, relPropsCypher, nil)
	if err != nil {
		return Structured{}, fmt.Errorf("read relationship properties: %w", err)
	}
	for _, rec := range res.Records {
		relType := trimRelType(asString(rec["relType"]))
		if relType == "" {
			continue
		}
		if _, seen := s.RelProps[relType]; !seen {
			s.RelProps[relType] = []Property{}
		}
		if prop, ok := propertyFrom(rec); ok {
			s.RelProps[relType] = append(s.RelProps[relType], prop)
		}
	}

	if in.logger != nil {
		in.logger.Info("schema loaded",
			"labels", len(s.Labels),
			"relationships", len(s.Relationships),
			"relationship_types", len(s.RelProps),
		)
	}
	return s, nil
}

func propertyFrom(rec graph.Record) (Property, bool) {
	name := asString(rec["propertyName"])
	if name == "" {
		return Property{}, false
	}
	types := asStrings(rec["propertyTypes"])
	typ := "ANY"
	if len(types) > 0 {
		typ = strings.ToUpper(types[0])
	}
	return Property{Property: name, Type: typ}, true
}

// trimRelType turns ":`ACTED_IN`" into "ACTED_IN".
func trimRelType(raw string) string {
	raw = strings.TrimPrefix(raw, ":")
	return strings.Trim(raw, "`")
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStrings(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
