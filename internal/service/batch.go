package service

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/vanshika/cypherguard/internal/cypher"
)

const defaultWorkers = 4

// Item is the outcome of correcting one query in a batch. Err holds the
// rejection when the query could not be corrected.
type Item struct {
	Input  string
	Result cypher.Result
	Err    error
}

// BatchCorrector corrects many queries concurrently against one schema.
type BatchCorrector struct {
	corrector *cypher.Corrector
	workers   int
}

// NewBatchCorrector creates a BatchCorrector with the provided concurrency.
func NewBatchCorrector(corrector *cypher.Corrector, workers int) *BatchCorrector {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &BatchCorrector{
		corrector: corrector,
		workers:   workers,
	}
}

// Correct returns one Item per query, in input order. Rejections are
// reported per item; only context cancellation fails the whole batch.
func (b *BatchCorrector) Correct(ctx context.Context, queries []string) ([]Item, error) {
	items := make([]Item, len(queries))
	if len(queries) == 0 {
		return items, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, query := range queries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := b.corrector.Correct(gctx, query)
			if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				return err
			}
			items[i] = Item{Input: query, Result: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
