package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/japaniel/tweetload/pkg/batch"
	"github.com/japaniel/tweetload/pkg/extract"
)

// Writer commits batches to the database under a Policy. Safe for use from
// multiple goroutines; each WriteBatch call runs its own transaction.
type Writer struct {
	DB     *sql.DB
	Policy Policy

	// MaxRetries bounds commit attempts per batch; zero means the default.
	MaxRetries int
	// Backoff is the base delay before the first retry; zero means the
	// default. Subsequent retries double it, with jitter.
	Backoff time.Duration
	// PostGIS wraps geometry parameters in ST_GeomFromText. Leave false for
	// databases without the extension; the geo column then stores plain WKT.
	PostGIS bool
	// Logger, when set, receives one line per retry and per committed batch.
	Logger *log.Logger
	// Retryable overrides deadlock classification, for tests.
	Retryable func(error) bool
}

// NewWriter returns a Writer over db with the given policy.
func NewWriter(db *sql.DB, p Policy) *Writer {
	return &Writer{DB: db, Policy: p}
}

// WriteBatch commits b in one transaction, retrying on deadlock. The
// returned Result is populated even when err is non-nil.
func (w *Writer) WriteBatch(ctx context.Context, b *batch.Batch) (Result, error) {
	if b == nil || b.Rows() == 0 {
		return Result{State: StateCommitted}, nil
	}
	res, err := w.commitWithRetry(ctx, func(ctx context.Context) error {
		return w.commitOnce(ctx, b)
	})
	res.BatchID = b.ID
	if w.Logger != nil {
		if err != nil {
			w.Logger.Printf("batch %s failed after %d attempts: %v", b.ID, res.Attempts, err)
		} else if res.Deadlocks > 0 {
			w.Logger.Printf("batch %s committed after %d attempts (%d deadlocks)", b.ID, res.Attempts, res.Deadlocks)
		}
	}
	return res, err
}

// commitOnce is a single transactional attempt. Statement order is fixed
// (urls, users, stubs, tweets, relationship kinds) and rows within each
// statement are sorted by their natural key, so concurrent writers acquire
// row locks in a consistent order.
func (w *Writer) commitOnce(ctx context.Context, b *batch.Batch) error {
	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var urlIDs map[string]int64
	if w.Policy.URLs == UniqueUpsert {
		urlIDs, err = w.internURLs(ctx, tx, b)
		if err != nil {
			return err
		}
	}
	if err := w.writeUsers(ctx, tx, b.Users, urlIDs); err != nil {
		return err
	}
	if err := w.writeStubs(ctx, tx, b); err != nil {
		return err
	}
	if err := w.writeTweets(ctx, tx, b.Tweets); err != nil {
		return err
	}
	if err := w.writeTweetURLs(ctx, tx, b.URLs, urlIDs); err != nil {
		return err
	}
	if err := w.writeMentions(ctx, tx, b.Mentions); err != nil {
		return err
	}
	if err := w.writeTags(ctx, tx, b.Tags); err != nil {
		return err
	}
	if err := w.writeMedia(ctx, tx, b.Media, urlIDs); err != nil {
		return err
	}
	return tx.Commit()
}

// internURLs writes every distinct URL in the batch to the urls table and
// reads back the id for each, including ids assigned by earlier batches.
func (w *Writer) internURLs(ctx context.Context, tx *sql.Tx, b *batch.Batch) (map[string]int64, error) {
	seen := map[string]struct{}{}
	add := func(u string) {
		if u != "" {
			seen[u] = struct{}{}
		}
	}
	for _, u := range b.Users {
		if u.URL != nil {
			add(*u.URL)
		}
	}
	for _, r := range b.URLs {
		add(r.URL)
	}
	if w.Policy.Media == UniqueUpsert {
		for _, r := range b.Media {
			add(r.URL)
		}
	}
	if len(seen) == 0 {
		return map[string]int64{}, nil
	}

	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	rows := make([][]any, len(urls))
	for i, u := range urls {
		rows[i] = []any{u}
	}
	if err := execInsert(ctx, tx, "urls", []string{"url"}, nil,
		"ON CONFLICT (url) DO NOTHING", rows); err != nil {
		return nil, err
	}

	ids := make(map[string]int64, len(urls))
	per := maxParams
	for start := 0; start < len(urls); start += per {
		end := min(start+per, len(urls))
		chunk := urls[start:end]
		args := make([]any, len(chunk))
		for i, u := range chunk {
			args[i] = u
		}
		query := "SELECT id_urls, url FROM urls WHERE url IN (" + placeholders(len(chunk)) + ")"
		rs, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("select urls: %w", err)
		}
		for rs.Next() {
			var id int64
			var u string
			if err := rs.Scan(&id, &u); err != nil {
				rs.Close()
				return nil, err
			}
			ids[u] = id
		}
		if err := rs.Close(); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func (w *Writer) userURLValue(u *string, urlIDs map[string]int64) any {
	if u == nil {
		return nil
	}
	if w.Policy.URLs == UniqueUpsert {
		if id, ok := urlIDs[*u]; ok {
			return id
		}
		return nil
	}
	return *u
}

// writeUsers upserts hydrated author rows. Under first-writer-wins the
// update only fires on rows still marked as stubs (updated_at IS NULL);
// under last-writer-wins it fires unconditionally.
func (w *Writer) writeUsers(ctx context.Context, tx *sql.Tx, users []extract.UserRow, urlIDs map[string]int64) error {
	users = dedupeUsers(users, w.Policy.Users)
	if len(users) == 0 {
		return nil
	}

	urlCol := "id_urls"
	if w.Policy.URLs == DenormalizedAppend {
		urlCol = "url"
	}
	cols := []string{
		"id_users", "created_at", "updated_at", "screen_name", "name",
		"location", urlCol, "description", "protected", "verified",
		"friends_count", "listed_count", "favourites_count", "statuses_count",
		"withheld_in_countries",
	}

	set := ""
	for i, c := range cols[1:] {
		if i > 0 {
			set += ", "
		}
		set += c + "=excluded." + c
	}
	conflict := "ON CONFLICT (id_users) DO UPDATE SET " + set
	if w.Policy.Users == FirstWriterWins {
		conflict += " WHERE users.updated_at IS NULL"
	}

	rows := make([][]any, len(users))
	for i, u := range users {
		rows[i] = []any{
			u.ID, u.CreatedAt, u.UpdatedAt, u.ScreenName, u.Name,
			u.Location, w.userURLValue(u.URL, urlIDs), u.Description, u.Protected, u.Verified,
			u.FriendsCount, u.ListedCount, u.FavouritesCount, u.StatusesCount,
			u.WithheldInCountries,
		}
	}
	return execInsert(ctx, tx, "users", cols, nil, conflict, rows)
}

// writeStubs inserts placeholder rows for users known only by reference.
// Stubs never overwrite anything, including other stubs.
func (w *Writer) writeStubs(ctx context.Context, tx *sql.Tx, b *batch.Batch) error {
	hydrated := make(map[int64]struct{}, len(b.Users))
	for _, u := range b.Users {
		hydrated[u.ID] = struct{}{}
	}
	seen := map[int64]struct{}{}
	stubs := make([]extract.UserRow, 0, len(b.UserStubs))
	for _, s := range b.UserStubs {
		if _, ok := hydrated[s.ID]; ok {
			continue
		}
		if _, ok := seen[s.ID]; ok {
			continue
		}
		seen[s.ID] = struct{}{}
		stubs = append(stubs, s)
	}
	if len(stubs) == 0 {
		return nil
	}
	sort.Slice(stubs, func(i, j int) bool { return stubs[i].ID < stubs[j].ID })

	rows := make([][]any, len(stubs))
	for i, s := range stubs {
		rows[i] = []any{s.ID, s.ScreenName, s.Name}
	}
	return execInsert(ctx, tx, "users", []string{"id_users", "screen_name", "name"}, nil,
		"ON CONFLICT (id_users) DO NOTHING", rows)
}

func (w *Writer) writeTweets(ctx context.Context, tx *sql.Tx, tweets []extract.TweetRow) error {
	if len(tweets) == 0 {
		return nil
	}
	tweets = append([]extract.TweetRow(nil), tweets...)
	sort.Slice(tweets, func(i, j int) bool { return tweets[i].ID < tweets[j].ID })

	cols := []string{
		"id_tweets", "id_users", "created_at", "in_reply_to_status_id",
		"in_reply_to_user_id", "quoted_status_id", "geo", "retweet_count",
		"quote_count", "favorite_count", "withheld_copyright",
		"withheld_in_countries", "place_name", "country_code", "state_code",
		"lang", "source", "text",
	}
	var exprs []string
	if w.PostGIS {
		exprs = make([]string, len(cols))
		exprs[6] = "ST_GeomFromText(%s)"
	}

	rows := make([][]any, len(tweets))
	for i, t := range tweets {
		rows[i] = []any{
			t.ID, t.UserID, t.CreatedAt, t.InReplyToStatusID,
			t.InReplyToUserID, t.QuotedStatusID, t.GeoWKT, t.RetweetCount,
			t.QuoteCount, t.FavoriteCount, t.WithheldCopyright,
			t.WithheldInCountries, t.PlaceName, t.CountryCode, t.StateCode,
			t.Lang, t.Source, t.Text,
		}
	}
	return execInsert(ctx, tx, "tweets", cols, exprs,
		"ON CONFLICT (id_tweets) DO NOTHING", rows)
}

func (w *Writer) writeTweetURLs(ctx context.Context, tx *sql.Tx, urls []extract.URLRow, urlIDs map[string]int64) error {
	if len(urls) == 0 {
		return nil
	}
	urls = append([]extract.URLRow(nil), urls...)
	sort.Slice(urls, func(i, j int) bool {
		if urls[i].TweetID != urls[j].TweetID {
			return urls[i].TweetID < urls[j].TweetID
		}
		return urls[i].URL < urls[j].URL
	})

	rows := make([][]any, len(urls))
	if w.Policy.URLs == UniqueUpsert {
		for i, r := range urls {
			rows[i] = []any{r.TweetID, urlIDs[r.URL]}
		}
		return execInsert(ctx, tx, "tweet_urls", []string{"id_tweets", "id_urls"}, nil,
			"ON CONFLICT (id_tweets, id_urls) DO NOTHING", rows)
	}
	for i, r := range urls {
		rows[i] = []any{r.TweetID, r.URL}
	}
	return execInsert(ctx, tx, "tweet_urls", []string{"id_tweets", "url"}, nil, "", rows)
}

func (w *Writer) writeMentions(ctx context.Context, tx *sql.Tx, mentions []extract.MentionRow) error {
	if len(mentions) == 0 {
		return nil
	}
	mentions = append([]extract.MentionRow(nil), mentions...)
	sort.Slice(mentions, func(i, j int) bool {
		if mentions[i].TweetID != mentions[j].TweetID {
			return mentions[i].TweetID < mentions[j].TweetID
		}
		return mentions[i].UserID < mentions[j].UserID
	})

	rows := make([][]any, len(mentions))
	for i, r := range mentions {
		rows[i] = []any{r.TweetID, r.UserID}
	}
	conflict := ""
	if w.Policy.Mentions == UniqueUpsert {
		conflict = "ON CONFLICT (id_tweets, id_users) DO NOTHING"
	}
	return execInsert(ctx, tx, "tweet_mentions", []string{"id_tweets", "id_users"}, nil, conflict, rows)
}

func (w *Writer) writeTags(ctx context.Context, tx *sql.Tx, tags []extract.TagRow) error {
	if len(tags) == 0 {
		return nil
	}
	tags = append([]extract.TagRow(nil), tags...)
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].TweetID != tags[j].TweetID {
			return tags[i].TweetID < tags[j].TweetID
		}
		return tags[i].Tag < tags[j].Tag
	})

	rows := make([][]any, len(tags))
	for i, r := range tags {
		rows[i] = []any{r.TweetID, r.Tag}
	}
	conflict := ""
	if w.Policy.Tags == UniqueUpsert {
		conflict = "ON CONFLICT (id_tweets, tag) DO NOTHING"
	}
	return execInsert(ctx, tx, "tweet_tags", []string{"id_tweets", "tag"}, nil, conflict, rows)
}

func (w *Writer) writeMedia(ctx context.Context, tx *sql.Tx, media []extract.MediaRow, urlIDs map[string]int64) error {
	if len(media) == 0 {
		return nil
	}
	media = append([]extract.MediaRow(nil), media...)
	sort.Slice(media, func(i, j int) bool {
		if media[i].TweetID != media[j].TweetID {
			return media[i].TweetID < media[j].TweetID
		}
		return media[i].URL < media[j].URL
	})

	rows := make([][]any, len(media))
	if w.Policy.Media == UniqueUpsert {
		for i, r := range media {
			rows[i] = []any{r.TweetID, urlIDs[r.URL], r.Type}
		}
		return execInsert(ctx, tx, "tweet_media", []string{"id_tweets", "id_urls", "type"}, nil,
			"ON CONFLICT (id_tweets, id_urls) DO NOTHING", rows)
	}
	for i, r := range media {
		rows[i] = []any{r.TweetID, r.URL, r.Type}
	}
	return execInsert(ctx, tx, "tweet_media", []string{"id_tweets", "url", "type"}, nil, "", rows)
}

// dedupeUsers collapses repeated author ids inside one batch so the upsert
// never updates the same row twice in one statement, which Postgres rejects.
// First-writer-wins keeps the earliest occurrence, last-writer-wins the
// latest. The result is sorted by id.
func dedupeUsers(users []extract.UserRow, mp MergePolicy) []extract.UserRow {
	byID := make(map[int64]extract.UserRow, len(users))
	for _, u := range users {
		if _, ok := byID[u.ID]; ok && mp == FirstWriterWins {
			continue
		}
		byID[u.ID] = u
	}
	out := make([]extract.UserRow, 0, len(byID))
	for _, u := range byID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
