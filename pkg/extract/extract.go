package extract

import (
	"errors"
	"strings"

	"github.com/japaniel/tweetload/pkg/tweet"
)

// MissingAuthorPolicy controls what happens to a document whose author field
// is absent. Both outcomes are deterministic for a given input.
type MissingAuthorPolicy int

const (
	// SkipDocument drops the whole document and reports ErrNoAuthor.
	SkipDocument MissingAuthorPolicy = iota
	// StubPost keeps a tweet row with a null author reference.
	StubPost
)

// ErrNoAuthor is returned under SkipDocument when a status has no author.
var ErrNoAuthor = errors.New("status has no author")

// Options configures extraction policy.
type Options struct {
	MissingAuthor MissingAuthorPolicy
}

// Rows turns one decoded status into its relational rows. It has no side
// effects. Extended entity lists strictly supersede the base lists; they are
// never merged. Relationship rows are deduplicated within the document (tag
// comparison is case-insensitive, the stored form keeps the original case).
func Rows(st *tweet.Status, opts Options) (RowSet, error) {
	var rs RowSet

	if st.User == nil || st.User.ID == 0 {
		if opts.MissingAuthor == SkipDocument {
			return rs, ErrNoAuthor
		}
	} else {
		rs.Users = append(rs.Users, authorRow(st))
	}

	// Reply targets are known only by id and screen name; they are never
	// promoted to full hydration from this path.
	if st.InReplyToUserID != nil {
		rs.UserStubs = append(rs.UserStubs, UserRow{
			ID:         *st.InReplyToUserID,
			ScreenName: scrubPtr(st.InReplyToScreenName),
		})
	}

	rs.Tweets = append(rs.Tweets, tweetRow(st))

	ents := baseOrExtended(st)
	tid := st.ID

	seenURL := make(map[string]bool)
	for _, u := range ents.URLs {
		url := scrub(u.ExpandedURL)
		if url == "" || seenURL[url] {
			continue
		}
		seenURL[url] = true
		rs.URLs = append(rs.URLs, URLRow{TweetID: tid, URL: url})
	}

	seenMention := make(map[int64]bool)
	for _, m := range ents.UserMentions {
		if m.ID == 0 || seenMention[m.ID] {
			continue
		}
		seenMention[m.ID] = true
		sn := scrub(m.ScreenName)
		rs.UserStubs = append(rs.UserStubs, UserRow{
			ID:         m.ID,
			ScreenName: &sn,
			Name:       scrubPtr(m.Name),
		})
		rs.Mentions = append(rs.Mentions, MentionRow{TweetID: tid, UserID: m.ID})
	}

	seenTag := make(map[string]bool)
	addTag := func(marker string, text string) {
		tag := marker + scrub(text)
		key := strings.ToLower(tag)
		if len(tag) == len(marker) || seenTag[key] {
			return
		}
		seenTag[key] = true
		rs.Tags = append(rs.Tags, TagRow{TweetID: tid, Tag: tag})
	}
	for _, h := range ents.Hashtags {
		addTag("#", h.Text)
	}
	for _, c := range ents.Symbols {
		addTag("$", c.Text)
	}

	seenMedia := make(map[string]bool)
	for _, m := range mediaList(st) {
		url := scrub(m.MediaURL)
		key := url + "\x00" + m.Type
		if url == "" || seenMedia[key] {
			continue
		}
		seenMedia[key] = true
		rs.Media = append(rs.Media, MediaRow{TweetID: tid, URL: url, Type: m.Type})
	}

	return rs, nil
}

func authorRow(st *tweet.Status) UserRow {
	u := st.User
	row := UserRow{
		ID:                  u.ID,
		ScreenName:          scrubStr(u.ScreenName),
		Name:                scrubPtr(u.Name),
		Location:            scrubPtr(u.Location),
		URL:                 scrubPtr(u.URL),
		Description:         scrubPtr(u.Description),
		Protected:           u.Protected,
		Verified:            u.Verified,
		FriendsCount:        u.FriendsCount,
		ListedCount:         u.ListedCount,
		FavouritesCount:     u.FavouritesCount,
		StatusesCount:       u.StatusesCount,
		WithheldInCountries: joinCountries(u.WithheldInCountries),
	}
	if !u.CreatedAt.IsZero() {
		t := u.CreatedAt.Time
		row.CreatedAt = &t
	}
	// The observing status's timestamp marks the row as hydrated and gives
	// last-writer-wins something to compare.
	updated := st.CreatedAt.Time
	row.UpdatedAt = &updated
	return row
}

func tweetRow(st *tweet.Status) TweetRow {
	row := TweetRow{
		ID:                  st.ID,
		CreatedAt:           st.CreatedAt.Time,
		InReplyToStatusID:   st.InReplyToStatusID,
		InReplyToUserID:     st.InReplyToUserID,
		QuotedStatusID:      st.QuotedStatusID,
		GeoWKT:              geoWKT(st),
		RetweetCount:        st.RetweetCount,
		QuoteCount:          st.QuoteCount,
		FavoriteCount:       st.FavoriteCount,
		WithheldCopyright:   st.WithheldCopyright,
		WithheldInCountries: joinCountries(st.WithheldInCountries),
		Lang:                scrubPtr(st.Lang),
		Source:              scrubPtr(st.Source),
		Text:                scrub(text(st)),
	}
	if st.User != nil && st.User.ID != 0 {
		uid := st.User.ID
		row.UserID = &uid
	}
	if st.Place != nil {
		row.PlaceName = scrubPtr(st.Place.FullName)
		row.CountryCode, row.StateCode = placeCodes(st.Place)
	}
	return row
}

// text prefers the extended full text over the truncated base text.
func text(st *tweet.Status) string {
	if st.ExtendedTweet != nil && st.ExtendedTweet.FullText != "" {
		return st.ExtendedTweet.FullText
	}
	return st.Text
}

// baseOrExtended picks the entity lists to extract from. The extended form
// supersedes the base form entirely when present.
func baseOrExtended(st *tweet.Status) *tweet.Entities {
	if st.ExtendedTweet != nil && st.ExtendedTweet.Entities != nil {
		return st.ExtendedTweet.Entities
	}
	if st.Entities != nil {
		return st.Entities
	}
	return &tweet.Entities{}
}

// mediaList follows the original precedence: extended_tweet.extended_entities,
// then top-level extended_entities, then nothing.
func mediaList(st *tweet.Status) []tweet.Media {
	if st.ExtendedTweet != nil && st.ExtendedTweet.ExtendedEntities != nil {
		return st.ExtendedTweet.ExtendedEntities.Media
	}
	if st.ExtendedEntities != nil {
		return st.ExtendedEntities.Media
	}
	return nil
}

// placeCodes derives the lowercase country code and, for US places, the
// two-letter state code from the place's full name suffix.
func placeCodes(p *tweet.Place) (country, state *string) {
	if p.CountryCode == nil || *p.CountryCode == "" {
		return nil, nil
	}
	cc := strings.ToLower(*p.CountryCode)
	country = &cc
	if cc != "us" || p.FullName == nil {
		return country, nil
	}
	parts := strings.Split(*p.FullName, ",")
	sc := strings.ToLower(strings.TrimSpace(parts[len(parts)-1]))
	if len(sc) == 0 || len(sc) > 2 {
		return country, nil
	}
	state = &sc
	return country, state
}

func joinCountries(cs []string) *string {
	if len(cs) == 0 {
		return nil
	}
	s := scrub(strings.Join(cs, ","))
	return &s
}

// scrub escapes null characters, which Postgres rejects in text values.
func scrub(s string) string {
	return strings.ReplaceAll(s, "\x00", `\x00`)
}

func scrubStr(s string) *string {
	out := scrub(s)
	return &out
}

func scrubPtr(s *string) *string {
	if s == nil {
		return nil
	}
	out := scrub(*s)
	return &out
}
