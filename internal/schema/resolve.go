package schema

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vanshika/cypherguard/internal/graph"
)

// ErrNoSource is returned when neither a schema file nor a graph client is
// available.
var ErrNoSource = errors.New("schema requires a file or a graph connection")

// Resolve loads the schema from file when set, otherwise introspects client.
func Resolve(ctx context.Context, file string, client graph.Client, logger *slog.Logger) (Structured, error) {
	if file != "" {
		s, err := LoadFile(file)
		if err != nil {
			return Structured{}, err
		}
		if logger != nil {
			logger.Info("schema loaded from file", "path", file, "relationships", len(s.Relationships))
		}
		return s, nil
	}
	if client == nil {
		return Structured{}, ErrNoSource
	}
	return NewIntrospector(client, logger).Load(ctx)
}
