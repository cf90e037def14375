// Package batch accumulates extracted rows from many documents into
// per-entity-kind batches ready for a single transactional write.
package batch

import (
	"github.com/google/uuid"

	"github.com/japaniel/tweetload/pkg/extract"
)

// Batch is the unit submitted to the store in one transactional attempt.
// Rows are grouped by entity kind; within the batch, users come before
// tweets come before relationship rows, so a store that checks foreign keys
// eagerly still sees referenced rows first.
type Batch struct {
	// ID correlates log lines and retry reports for one batch.
	ID   string
	Docs int

	Users     []extract.UserRow
	UserStubs []extract.UserRow
	Tweets    []extract.TweetRow
	URLs      []extract.URLRow
	Mentions  []extract.MentionRow
	Tags      []extract.TagRow
	Media     []extract.MediaRow
}

// Rows returns the total row count across all kinds.
func (b *Batch) Rows() int {
	return len(b.Users) + len(b.UserStubs) + len(b.Tweets) +
		len(b.URLs) + len(b.Mentions) + len(b.Tags) + len(b.Media)
}

// Builder collects RowSets until a document-count threshold is reached.
// Duplicate entities across documents are expected here and left alone; the
// writer's upsert semantics handle them.
type Builder struct {
	maxDocs int
	cur     *Batch
}

// NewBuilder returns a Builder that fills batches of up to maxDocs
// documents.
func NewBuilder(maxDocs int) *Builder {
	if maxDocs <= 0 {
		maxDocs = 1000
	}
	return &Builder{maxDocs: maxDocs, cur: newBatch()}
}

func newBatch() *Batch {
	return &Batch{ID: uuid.New().String()}
}

// Add appends one document's rows to the current batch.
func (bu *Builder) Add(rs extract.RowSet) {
	b := bu.cur
	b.Users = append(b.Users, rs.Users...)
	b.UserStubs = append(b.UserStubs, rs.UserStubs...)
	b.Tweets = append(b.Tweets, rs.Tweets...)
	b.URLs = append(b.URLs, rs.URLs...)
	b.Mentions = append(b.Mentions, rs.Mentions...)
	b.Tags = append(b.Tags, rs.Tags...)
	b.Media = append(b.Media, rs.Media...)
	b.Docs++
}

// Docs returns the number of documents accumulated so far.
func (bu *Builder) Docs() int { return bu.cur.Docs }

// Full reports whether the current batch reached the document threshold.
func (bu *Builder) Full() bool { return bu.cur.Docs >= bu.maxDocs }

// Flush returns the accumulated batch and starts a fresh one. It returns
// nil when nothing was accumulated.
func (bu *Builder) Flush() *Batch {
	if bu.cur.Docs == 0 && bu.cur.Rows() == 0 {
		return nil
	}
	b := bu.cur
	bu.cur = newBatch()
	return b
}

// Merge folds a previously flushed partial batch back in, ahead of anything
// accumulated since. This lets a caller stream many small files into larger
// batches instead of committing one undersized batch per file.
func (bu *Builder) Merge(prev *Batch) {
	if prev == nil {
		return
	}
	cur := bu.cur
	merged := &Batch{
		ID:        cur.ID,
		Docs:      prev.Docs + cur.Docs,
		Users:     append(prev.Users, cur.Users...),
		UserStubs: append(prev.UserStubs, cur.UserStubs...),
		Tweets:    append(prev.Tweets, cur.Tweets...),
		URLs:      append(prev.URLs, cur.URLs...),
		Mentions:  append(prev.Mentions, cur.Mentions...),
		Tags:      append(prev.Tags, cur.Tags...),
		Media:     append(prev.Media, cur.Media...),
	}
	bu.cur = merged
}
