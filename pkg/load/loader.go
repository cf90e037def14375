// Package load feeds archive files of status documents through decode,
// extract, and batch into the store. A coordinator fans files out over a
// worker pool, one file per job, so a crashed or poisoned file never takes
// down its siblings.
package load

import (
	"archive/zip"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/japaniel/tweetload/pkg/batch"
	"github.com/japaniel/tweetload/pkg/extract"
	"github.com/japaniel/tweetload/pkg/store"
	"github.com/japaniel/tweetload/pkg/tweet"
)

// maxLine bounds a single document line. Status documents with full entity
// payloads run a few hundred KB; 16MB leaves generous headroom.
const maxLine = 16 << 20

// Loader turns one archive file into committed batches.
type Loader struct {
	Writer  *store.Writer
	Extract extract.Options

	// BatchSize is the number of documents per batch; zero means the
	// builder's default.
	BatchSize int
	// PrintEvery logs a progress line every N documents when a Logger is
	// set. Zero disables progress lines.
	PrintEvery int
	Logger     *log.Logger
}

// FileResult reports what happened to one file.
type FileResult struct {
	File string

	// Docs counts documents that produced rows. Skipped counts non-status
	// lines (deletes, limit notices, blanks); DecodeErrors counts lines that
	// were not valid JSON; NoAuthor counts documents dropped under the
	// skip-document policy.
	Docs         int
	Skipped      int
	DecodeErrors int
	NoAuthor     int

	Batches   int
	Attempts  int
	Deadlocks int

	Err error
}

// LoadFile processes a single .zip archive or plain json-lines file,
// committing batches as they fill and flushing the remainder at EOF.
func (l *Loader) LoadFile(ctx context.Context, path string) FileResult {
	res := FileResult{File: path}
	bu := batch.NewBuilder(l.BatchSize)
	if err := l.ingest(ctx, path, bu, &res); err != nil {
		res.Err = err
		return res
	}
	if err := l.flush(ctx, bu.Flush(), &res); err != nil {
		res.Err = err
	}
	return res
}

// LoadFiles processes files sequentially through one shared batch builder,
// so many small files still produce full-sized batches. A failed file stops
// the stream; everything accumulated before it is flushed first.
func (l *Loader) LoadFiles(ctx context.Context, paths []string) []FileResult {
	results := make([]FileResult, 0, len(paths))
	bu := batch.NewBuilder(l.BatchSize)
	for _, path := range paths {
		res := FileResult{File: path}
		if err := l.ingest(ctx, path, bu, &res); err != nil {
			// Commit what earlier files accumulated before reporting the
			// failure, so their documents are not silently lost.
			if ferr := l.flush(ctx, bu.Flush(), &res); ferr != nil {
				err = errors.Join(err, ferr)
			}
			res.Err = err
			results = append(results, res)
			return results
		}
		results = append(results, res)
	}
	if len(results) > 0 {
		last := &results[len(results)-1]
		if err := l.flush(ctx, bu.Flush(), last); err != nil {
			last.Err = err
		}
	}
	return results
}

func (l *Loader) ingest(ctx context.Context, path string, bu *batch.Builder, res *FileResult) error {
	if strings.HasSuffix(path, ".zip") {
		return l.ingestZip(ctx, path, bu, res)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return l.scan(ctx, f, bu, res)
}

// ingestZip walks the archive's members in reverse name order, newest
// collection day first for date-named members.
func (l *Loader) ingestZip(ctx context.Context, path string, bu *batch.Builder, res *FileResult) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer zr.Close()

	members := make([]*zip.File, 0, len(zr.File))
	for _, m := range zr.File {
		if m.FileInfo().IsDir() {
			continue
		}
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name > members[j].Name })

	for _, m := range members {
		rc, err := m.Open()
		if err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
		err = l.scan(ctx, rc, bu, res)
		rc.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
	}
	return nil
}

func (l *Loader) scan(ctx context.Context, r io.Reader, bu *batch.Builder, res *FileResult) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), maxLine)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		st, err := tweet.Decode(sc.Bytes())
		if errors.Is(err, tweet.ErrNotStatus) {
			res.Skipped++
			continue
		}
		if err != nil {
			res.DecodeErrors++
			continue
		}

		rs, err := extract.Rows(st, l.Extract)
		if errors.Is(err, extract.ErrNoAuthor) {
			res.NoAuthor++
			continue
		}
		if err != nil {
			return err
		}

		bu.Add(rs)
		res.Docs++
		if l.Logger != nil && l.PrintEvery > 0 && res.Docs%l.PrintEvery == 0 {
			l.Logger.Printf("%s: %d documents", res.File, res.Docs)
		}

		if bu.Full() {
			if err := l.flush(ctx, bu.Flush(), res); err != nil {
				return err
			}
		}
	}
	return sc.Err()
}

func (l *Loader) flush(ctx context.Context, b *batch.Batch, res *FileResult) error {
	if b == nil {
		return nil
	}
	wres, err := l.Writer.WriteBatch(ctx, b)
	res.Batches++
	res.Attempts += wres.Attempts
	res.Deadlocks += wres.Deadlocks
	if err != nil {
		return fmt.Errorf("batch %s: %w", b.ID, err)
	}
	return nil
}
