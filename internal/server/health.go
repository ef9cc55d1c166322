package server

import (
	"context"
	"errors"

	"github.com/vanshika/cypherguard/internal/cypher"
	"github.com/vanshika/cypherguard/internal/graph"
)

var errNoSchema = errors.New("no graph schema loaded")

// HealthService defines behaviour for readiness probes.
type HealthService interface {
	Probe(ctx context.Context) error
}

// ReadinessProbe reports ready once a schema is loaded and, when a graph
// client is configured, the database is reachable. A schema loaded from file
// needs no client.
type ReadinessProbe struct {
	Client    graph.Client
	Corrector *cypher.Corrector
}

// Probe implements the HealthService interface.
func (p ReadinessProbe) Probe(ctx context.Context) error {
	if p.Corrector == nil || p.Corrector.Schema() == nil {
		return errNoSchema
	}
	if p.Client == nil {
		return nil
	}
	return p.Client.VerifyConnectivity(ctx)
}
