package batch

import (
	"testing"

	"github.com/japaniel/tweetload/pkg/extract"
)

func rowSet(tweetID, userID int64) extract.RowSet {
	return extract.RowSet{
		Users:  []extract.UserRow{{ID: userID}},
		Tweets: []extract.TweetRow{{ID: tweetID, UserID: &userID}},
		Tags:   []extract.TagRow{{TweetID: tweetID, Tag: "#x"}},
	}
}

func TestBuilderThreshold(t *testing.T) {
	bu := NewBuilder(2)
	bu.Add(rowSet(1, 10))
	if bu.Full() {
		t.Fatal("builder full after one document")
	}
	bu.Add(rowSet(2, 11))
	if !bu.Full() {
		t.Fatal("builder not full at threshold")
	}

	b := bu.Flush()
	if b == nil {
		t.Fatal("expected a batch")
	}
	if b.ID == "" {
		t.Fatal("batch must carry an id")
	}
	if b.Docs != 2 || len(b.Tweets) != 2 || len(b.Users) != 2 || len(b.Tags) != 2 {
		t.Fatalf("unexpected batch contents: docs=%d rows=%d", b.Docs, b.Rows())
	}
	if bu.Docs() != 0 {
		t.Fatalf("builder not reset after flush, docs=%d", bu.Docs())
	}
}

func TestFlushEmpty(t *testing.T) {
	bu := NewBuilder(10)
	if b := bu.Flush(); b != nil {
		t.Fatalf("expected nil batch, got %+v", b)
	}
}

func TestMergePartial(t *testing.T) {
	bu := NewBuilder(10)
	bu.Add(rowSet(1, 10))
	partial := bu.Flush()

	bu.Add(rowSet(2, 11))
	bu.Merge(partial)
	bu.Add(rowSet(3, 12))

	b := bu.Flush()
	if b == nil || b.Docs != 3 {
		t.Fatalf("expected merged batch of 3 docs, got %+v", b)
	}
	// Earlier documents come first after a merge.
	if b.Tweets[0].ID != 1 || b.Tweets[1].ID != 2 || b.Tweets[2].ID != 3 {
		t.Fatalf("unexpected tweet order: %+v", b.Tweets)
	}
}

func TestMergeNil(t *testing.T) {
	bu := NewBuilder(10)
	bu.Merge(nil)
	bu.Add(rowSet(1, 10))
	if b := bu.Flush(); b == nil || b.Docs != 1 {
		t.Fatalf("merge(nil) corrupted builder: %+v", b)
	}
}

func TestDistinctBatchIDs(t *testing.T) {
	bu := NewBuilder(1)
	bu.Add(rowSet(1, 10))
	a := bu.Flush()
	bu.Add(rowSet(2, 11))
	b := bu.Flush()
	if a.ID == b.ID {
		t.Fatalf("consecutive batches share id %s", a.ID)
	}
}
