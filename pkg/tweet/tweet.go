// Package tweet decodes raw Twitter v1.1 status records into typed documents.
package tweet

import (
	"encoding/json"
	"fmt"
	"time"
)

// Time wraps time.Time to parse Twitter's created_at format
// ("Wed Oct 10 20:19:24 +0000 2018"). A null or empty value leaves the
// zero time in place.
type Time struct {
	time.Time
}

func (t *Time) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.Parse(time.RubyDate, s)
	if err != nil {
		return fmt.Errorf("parse created_at %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// Status is a single decoded status document. Optional substructures are
// pointers; a fully absent field is nil, never an error.
type Status struct {
	ID                  int64          `json:"id"`
	Text                string         `json:"text"`
	CreatedAt           Time           `json:"created_at"`
	User                *User          `json:"user"`
	ExtendedTweet       *ExtendedTweet `json:"extended_tweet"`
	Entities            *Entities      `json:"entities"`
	ExtendedEntities    *Entities      `json:"extended_entities"`
	InReplyToStatusID   *int64         `json:"in_reply_to_status_id"`
	InReplyToUserID     *int64         `json:"in_reply_to_user_id"`
	InReplyToScreenName *string        `json:"in_reply_to_screen_name"`
	QuotedStatusID      *int64         `json:"quoted_status_id"`
	RetweetCount        *int64         `json:"retweet_count"`
	QuoteCount          *int64         `json:"quote_count"`
	FavoriteCount       *int64         `json:"favorite_count"`
	WithheldCopyright   *bool          `json:"withheld_copyright"`
	WithheldInCountries []string       `json:"withheld_in_countries"`
	Geo                 *Point         `json:"geo"`
	Place               *Place         `json:"place"`
	Lang                *string        `json:"lang"`
	Source              *string        `json:"source"`
}

// ExtendedTweet carries the untruncated text and the richer entity lists.
// When present, its lists supersede the base lists entirely.
type ExtendedTweet struct {
	FullText         string    `json:"full_text"`
	Entities         *Entities `json:"entities"`
	ExtendedEntities *Entities `json:"extended_entities"`
}

// User is the author profile embedded in a status.
type User struct {
	ID                  int64    `json:"id"`
	CreatedAt           Time     `json:"created_at"`
	ScreenName          string   `json:"screen_name"`
	Name                *string  `json:"name"`
	Location            *string  `json:"location"`
	URL                 *string  `json:"url"`
	Description         *string  `json:"description"`
	Protected           *bool    `json:"protected"`
	Verified            *bool    `json:"verified"`
	GeoEnabled          bool     `json:"geo_enabled"`
	FriendsCount        *int64   `json:"friends_count"`
	ListedCount         *int64   `json:"listed_count"`
	FavouritesCount     *int64   `json:"favourites_count"`
	StatusesCount       *int64   `json:"statuses_count"`
	WithheldInCountries []string `json:"withheld_in_countries"`
}

// Entities holds the per-status entity lists. Hashtags and symbols
// ("cashtags") share one shape.
type Entities struct {
	Hashtags     []Tag       `json:"hashtags"`
	Symbols      []Tag       `json:"symbols"`
	URLs         []URLEntity `json:"urls"`
	UserMentions []Mention   `json:"user_mentions"`
	Media        []Media     `json:"media"`
}

type Tag struct {
	Text string `json:"text"`
}

type URLEntity struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
}

// Mention references another user by id and screen name. Name may be absent.
type Mention struct {
	ID         int64   `json:"id"`
	ScreenName string  `json:"screen_name"`
	Name       *string `json:"name"`
}

type Media struct {
	MediaURL string `json:"media_url"`
	Type     string `json:"type"`
}

// Point is the exact geotag of a status when the author shared one.
type Point struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// Place is the coarse location attached to a status.
type Place struct {
	FullName    *string      `json:"full_name"`
	CountryCode *string      `json:"country_code"`
	BoundingBox *BoundingBox `json:"bounding_box"`
}

// BoundingBox is a list of polygons, each a list of [longitude, latitude]
// pairs.
type BoundingBox struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"`
}
