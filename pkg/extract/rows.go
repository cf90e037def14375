// Package extract derives relational rows from one decoded status document.
// It is a pure transformation: identical input always yields an identical
// RowSet.
package extract

import "time"

// UserRow is one row for the users table. A nil UpdatedAt marks a stub row
// (known only from a reference inside someone else's status); hydrated rows
// carry the observing status's creation time so the writer's merge policy
// can tell the two apart.
type UserRow struct {
	ID                  int64
	CreatedAt           *time.Time
	UpdatedAt           *time.Time
	ScreenName          *string
	Name                *string
	Location            *string
	URL                 *string
	Description         *string
	Protected           *bool
	Verified            *bool
	FriendsCount        *int64
	ListedCount         *int64
	FavouritesCount     *int64
	StatusesCount       *int64
	WithheldInCountries *string
}

// TweetRow is one row for the tweets table. UserID is nil only for
// author-less stubs admitted under the StubPost policy.
type TweetRow struct {
	ID                  int64
	UserID              *int64
	CreatedAt           time.Time
	InReplyToStatusID   *int64
	InReplyToUserID     *int64
	QuotedStatusID      *int64
	GeoWKT              *string
	RetweetCount        *int64
	QuoteCount          *int64
	FavoriteCount       *int64
	WithheldCopyright   *bool
	WithheldInCountries *string
	PlaceName           *string
	CountryCode         *string
	StateCode           *string
	Lang                *string
	Source              *string
	Text                string
}

// URLRow ties a status to an expanded URL it links to.
type URLRow struct {
	TweetID int64
	URL     string
}

// MentionRow ties a status to a mentioned user.
type MentionRow struct {
	TweetID int64
	UserID  int64
}

// TagRow ties a status to a tag. Hashtags and cashtags share this table,
// distinguished by the marker prefix ("#" or "$") kept in the stored text.
type TagRow struct {
	TweetID int64
	Tag     string
}

// MediaRow ties a status to an attached media URL and its type.
type MediaRow struct {
	TweetID int64
	URL     string
	Type    string
}

// RowSet is everything extracted from one document, grouped by entity kind.
// Users precede UserStubs precede Tweets precede the relationship rows, so a
// writer that respects declared foreign keys can submit kinds in field order.
type RowSet struct {
	Users     []UserRow
	UserStubs []UserRow
	Tweets    []TweetRow
	URLs      []URLRow
	Mentions  []MentionRow
	Tags      []TagRow
	Media     []MediaRow
}

// Empty reports whether the set carries no rows at all.
func (rs *RowSet) Empty() bool {
	return len(rs.Users) == 0 && len(rs.UserStubs) == 0 && len(rs.Tweets) == 0 &&
		len(rs.URLs) == 0 && len(rs.Mentions) == 0 && len(rs.Tags) == 0 && len(rs.Media) == 0
}
