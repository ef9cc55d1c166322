package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vanshika/cypherguard/internal/config"
	"github.com/vanshika/cypherguard/internal/graph"
	"github.com/vanshika/cypherguard/internal/logging"
	"github.com/vanshika/cypherguard/internal/schema"
)

// connector opens a graph client from the environment configuration.
type connector func(ctx context.Context, cfg config.Config) (graph.Client, error)

type rootOptions struct {
	schemaFile string
	verbose    bool
	connect    connector
}

func newRootCmd(connect connector) *cobra.Command {
	opts := &rootOptions{connect: connect}

	root := &cobra.Command{
		Use:   "cypherguard",
		Short: "Validate and repair Cypher queries against a graph schema",
		Long: `cypherguard checks the relationship patterns of Cypher queries against the
schema of a Neo4j graph, reverses arrows that point the wrong way and
reconciles node labels. Connection settings come from GRAPH_URI,
GRAPH_USERNAME, GRAPH_PASSWORD and GRAPH_DATABASE unless --schema is given.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.schemaFile, "schema", "s", "", "read the schema from a YAML file instead of the database")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(newCorrectCmd(opts), newSchemaCmd(opts))
	return root
}

func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := "warn"
	if o.verbose {
		level = "debug"
	}
	return logging.NewWithWriter(cmd.ErrOrStderr(), config.LoggingConfig{Level: level})
}

// loadSchema resolves the schema from --schema or, failing that, the
// database named by the environment.
func (o *rootOptions) loadSchema(cmd *cobra.Command) (schema.Structured, error) {
	ctx := cmd.Context()
	logger := o.logger(cmd)
	if o.schemaFile != "" {
		return schema.Resolve(ctx, o.schemaFile, nil, logger)
	}

	cfg, err := config.Load()
	if err != nil {
		return schema.Structured{}, err
	}
	client, err := o.connect(ctx, cfg)
	if err != nil {
		return schema.Structured{}, err
	}
	defer func() {
		if err := client.Close(context.Background()); err != nil {
			logger.Warn("closing graph client failed", "error", err)
		}
	}()
	return schema.Resolve(ctx, "", client, logger)
}

func connectGraph(ctx context.Context, cfg config.Config) (graph.Client, error) {
	if cfg.Graph.URI == "" {
		return nil, graph.ErrMissingURI
	}
	return graph.NewNeo4jClient(ctx, graph.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
	})
}
