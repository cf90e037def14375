package tweet

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeBasicStatus(t *testing.T) {
	line := []byte(`{
		"id": 1,
		"text": "hello world",
		"created_at": "Wed Oct 10 20:19:24 +0000 2018",
		"user": {"id": 10, "screen_name": "alice", "name": "Alice"},
		"entities": {"hashtags": [{"text": "x"}]}
	}`)
	st, err := Decode(line)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.ID != 1 {
		t.Fatalf("expected id 1, got %d", st.ID)
	}
	if st.User == nil || st.User.ID != 10 || st.User.ScreenName != "alice" {
		t.Fatalf("unexpected user: %+v", st.User)
	}
	want := time.Date(2018, 10, 10, 20, 19, 24, 0, time.UTC)
	if !st.CreatedAt.Equal(want) {
		t.Fatalf("expected created_at %v, got %v", want, st.CreatedAt.Time)
	}
	if len(st.Entities.Hashtags) != 1 || st.Entities.Hashtags[0].Text != "x" {
		t.Fatalf("unexpected hashtags: %+v", st.Entities.Hashtags)
	}
}

func TestDecodeDeleteEnvelope(t *testing.T) {
	line := []byte(`{"delete": {"status": {"id": 5, "user_id": 6}}}`)
	_, err := Decode(line)
	if !errors.Is(err, ErrNotStatus) {
		t.Fatalf("expected ErrNotStatus, got %v", err)
	}
}

func TestDecodeBlankLine(t *testing.T) {
	_, err := Decode([]byte("  \n"))
	if !errors.Is(err, ErrNotStatus) {
		t.Fatalf("expected ErrNotStatus, got %v", err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte(`{"id": 1, "text": `))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestDecodeAbsentOptionalFields(t *testing.T) {
	// No place, no geo, no entities, no extended form. None of these are
	// errors.
	st, err := Decode([]byte(`{"id": 2, "text": "bare", "user": {"id": 3, "screen_name": "b"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Place != nil || st.Geo != nil || st.Entities != nil || st.ExtendedTweet != nil {
		t.Fatalf("expected nil optional substructures: %+v", st)
	}
	if st.InReplyToUserID != nil || st.Lang != nil {
		t.Fatalf("expected nil optional scalars")
	}
}

func TestDecodeExtendedTweetRetained(t *testing.T) {
	line := []byte(`{
		"id": 4,
		"text": "short...",
		"user": {"id": 7, "screen_name": "c"},
		"extended_tweet": {
			"full_text": "the full untruncated text",
			"entities": {"hashtags": [{"text": "long"}]}
		}
	}`)
	st, err := Decode(line)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.ExtendedTweet == nil || st.ExtendedTweet.FullText != "the full untruncated text" {
		t.Fatalf("extended tweet not retained: %+v", st.ExtendedTweet)
	}
	if st.ExtendedTweet.Entities == nil || len(st.ExtendedTweet.Entities.Hashtags) != 1 {
		t.Fatalf("extended entities not retained")
	}
}

func TestDecodeBadCreatedAt(t *testing.T) {
	_, err := Decode([]byte(`{"id": 8, "created_at": "not a date", "user": {"id": 9, "screen_name": "d"}}`))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError for bad timestamp, got %v", err)
	}
}
