package load

import (
	"context"
	"log"
)

// Coordinator fans files out across a worker pool. Files are independent:
// one file failing, even fatally, leaves the others running. Results keep
// the caller's file order regardless of completion order.
type Coordinator struct {
	Workers int
	Loader  *Loader
	Logger  *log.Logger
}

// Summary aggregates the per-file results of one run.
type Summary struct {
	Files []FileResult

	Docs         int
	Skipped      int
	DecodeErrors int
	NoAuthor     int
	Batches      int
	Attempts     int
	Deadlocks    int
}

// Failed returns the results that carry an error.
func (s *Summary) Failed() []FileResult {
	var out []FileResult
	for _, r := range s.Files {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Summarize folds per-file results into one Summary.
func Summarize(results []FileResult) Summary {
	sum := Summary{Files: results}
	for _, r := range results {
		sum.Docs += r.Docs
		sum.Skipped += r.Skipped
		sum.DecodeErrors += r.DecodeErrors
		sum.NoAuthor += r.NoAuthor
		sum.Batches += r.Batches
		sum.Attempts += r.Attempts
		sum.Deadlocks += r.Deadlocks
	}
	return sum
}

// Run loads every file, at most Workers at a time, and blocks until all are
// done or ctx is canceled. Files not started before cancellation report the
// context error.
func (c *Coordinator) Run(ctx context.Context, paths []string) Summary {
	results := make([]FileResult, len(paths))

	wp := NewWorkerPool(c.Workers, len(paths))
	wp.Start(ctx)
	for i, path := range paths {
		i, path := i, path
		job := func(ctx context.Context) error {
			res := c.Loader.LoadFile(ctx, path)
			if c.Logger != nil {
				if res.Err != nil {
					c.Logger.Printf("%s: failed after %d documents: %v", path, res.Docs, res.Err)
				} else {
					c.Logger.Printf("%s: %d documents in %d batches (%d deadlocks)",
						path, res.Docs, res.Batches, res.Deadlocks)
				}
			}
			results[i] = res
			return res.Err
		}
		if err := wp.SubmitCtx(ctx, job); err != nil {
			for j := i; j < len(paths); j++ {
				results[j] = FileResult{File: paths[j], Err: err}
			}
			break
		}
	}
	wp.Close()

	// Jobs interrupted mid-file by cancellation already hold the context
	// error; jobs never picked up report it here.
	if err := ctx.Err(); err != nil {
		for i := range results {
			if results[i].File == "" {
				results[i] = FileResult{File: paths[i], Err: err}
			}
		}
	}

	return Summarize(results)
}
