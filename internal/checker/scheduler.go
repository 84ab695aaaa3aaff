package checker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Batch splits items into consecutive chunks of at most size elements.
// A non-positive size yields a single chunk.
func Batch[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}

// Scheduler processes items chunk by chunk. All items of a chunk run
// concurrently and the chunk is flushed once every item has completed.
// Chunks never overlap.
type Scheduler[T, R any] struct {
	BatchSize int
	// Work handles one item. It must not fail: failures are part of R.
	Work func(ctx context.Context, item T) R
	// Flush receives the results of a chunk in completion order.
	Flush func(chunk int, results []R) error
}

// Run drains items. Cancellation is observed between chunks only; a chunk
// that has started always completes.
func (s *Scheduler[T, R]) Run(ctx context.Context, items []T) ([]R, error) {
	chunks := Batch(items, s.BatchSize)
	all := make([]R, 0, len(items))
	done := 0

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return all, fmt.Errorf("stopped before chunk %d/%d: %w", i+1, len(chunks), err)
		}

		results := s.runChunk(ctx, chunk)
		done += len(chunk)
		slog.Info("Checked", "done", done, "total", len(items), "chunk", i+1)

		if s.Flush != nil {
			if err := s.Flush(i, results); err != nil {
				return all, fmt.Errorf("flush chunk %d: %w", i+1, err)
			}
		}
		all = append(all, results...)
	}
	return all, nil
}

func (s *Scheduler[T, R]) runChunk(ctx context.Context, chunk []T) []R {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		results = make([]R, 0, len(chunk))
	)

	// A cancelled run must not abort a chunk midway, so the fetches get a
	// context that is never cancelled by the caller.
	workCtx := context.WithoutCancel(ctx)

	for _, item := range chunk {
		g.Go(func() error {
			r := s.Work(workCtx, item)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
