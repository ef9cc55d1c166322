package cypher

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Recorder receives the outcome of every correction.
type Recorder interface {
	ObserveCorrection(outcome string, changed bool, elapsed time.Duration)
}

// Corrector validates queries against a fixed schema.
type Corrector struct {
	schema   *Schema
	logger   *slog.Logger
	recorder Recorder
}

// Option configures a Corrector.
type Option func(*Corrector)

// WithLogger sets the logger used to report rejections.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Corrector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(c *Corrector) {
		c.recorder = r
	}
}

// NewCorrector returns a Corrector bound to schema.
func NewCorrector(schema *Schema, opts ...Option) *Corrector {
	c := &Corrector{
		schema: schema,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Schema returns the schema the corrector validates against.
func (c *Corrector) Schema() *Schema {
	return c.schema
}

// Correct runs Correct against the corrector's schema.
func (c *Corrector) Correct(ctx context.Context, query string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	start := time.Now()
	res, err := Correct(query, c.schema)
	elapsed := time.Since(start)

	if c.recorder != nil {
		c.recorder.ObserveCorrection(KindName(err), res.Changed(), elapsed)
	}
	if err != nil {
		c.logger.Debug("cypher rejected", "kind", KindName(err), "error", err)
		return Result{}, err
	}
	if res.Changed() {
		c.logger.Debug("cypher corrected",
			"flipped", res.Flipped,
			"relabelled", res.Relabelled,
			"paths", res.Paths,
			"signatures", res.Signatures,
		)
	}
	return res, nil
}
