package graph

import (
	"context"
	"errors"
)

// Client defines the minimal contract the corrector's collaborators need to
// interact with the underlying graph database. Every query runs in a read
// transaction.
type Client interface {
	ExecuteRead(ctx context.Context, cypher string, params map[string]any) (Result, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Result is a simplified representation of a query response.
type Result struct {
	Records []Record
}

// Rows returns the records as plain maps, truncated to limit when limit > 0.
func (r Result) Rows(limit int) []map[string]any {
	records := r.Records
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	rows := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, map[string]any(rec))
	}
	return rows
}

// Record groups key-value pairs returned from the graph engine. Values are
// plain Go values: nodes and relationships are converted to property maps.
type Record map[string]any

// Options configures a graph client implementation.
type Options struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// ErrMissingURI indicates the graph URI is not provided.
var ErrMissingURI = errors.New("graph URI is required")
