package coscope

import (
	"context"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
)

// DefaultDispatchBatchSize is the number of requests PoolDispatch
// packs into one batch when BatchSize is unset.
const DefaultDispatchBatchSize = 16

// PoolDispatch runs Handler for every request on a bounded pool of
// goroutines. It suits native calls that block, such as decoding an
// image, which must not run on the scheduler's goroutine.
type PoolDispatch[I, O any] struct {
	// Handler computes the output for one request. It runs on a pool
	// goroutine and must not touch tasks or slots.
	Handler func(context.Context, I) O
	// BatchSize is the number of requests per batch.
	BatchSize int
	// Workers bounds the goroutines of one Dispatch call. It defaults
	// to GOMAXPROCS.
	Workers int
}

func (d *PoolDispatch[I, O]) Dispatch(
	ctx context.Context,
	alloc *IOAllocator[I, O],
	sema chan struct{},
	reqs []*IORequest[I, O],
	resp chan *IOBatch[I, O],
) {
	size := d.BatchSize
	if size < 1 {
		size = DefaultDispatchBatchSize
	}
	workers := d.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	go func() {
		var g errgroup.Group
		g.SetLimit(workers)
		for chunk := range slices.Chunk(reqs, size) {
			g.Go(func() error {
				sema <- struct{}{}
				defer func() { <-sema }()

				batch := alloc.NewBatch(chunk...)
				for i, req := range chunk {
					alloc.SetBatchResponse(batch, i, d.Handler(ctx, req.Input()))
				}
				resp <- batch
				return nil
			})
		}
		_ = g.Wait()
	}()
}
