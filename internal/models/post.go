package models

import (
	"strings"
	"time"
)

// Bodies Reddit substitutes for moderated or author-deleted content
const (
	BodyRemoved = "[removed]"
	BodyDeleted = "[deleted]"
)

// MinBodyLength is the exclusive lower bound on body length for a record to be analysed
const MinBodyLength = 20

// Comment represents a Reddit comment authored by the analysed user
type Comment struct {
	ID         string `json:"id"`
	Body       string `json:"body"`
	CreatedUTC int64  `json:"created_utc"`
	Subreddit  string `json:"subreddit"`
	Score      int    `json:"score"`
	Permalink  string `json:"permalink"`
	Author     string `json:"author"`
	LinkTitle  string `json:"link_title,omitempty"`
}

// CreatedAt returns the creation time in UTC
func (c Comment) CreatedAt() time.Time {
	return time.Unix(c.CreatedUTC, 0).UTC()
}

// Post represents a Reddit submission authored by the analysed user
type Post struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	CreatedUTC  int64  `json:"created_utc"`
	Subreddit   string `json:"subreddit"`
	Score       int    `json:"score"`
	Permalink   string `json:"permalink"`
	Author      string `json:"author"`
	NumComments int    `json:"num_comments"`
}

// CreatedAt returns the creation time in UTC
func (p Post) CreatedAt() time.Time {
	return time.Unix(p.CreatedUTC, 0).UTC()
}

// ValidBody reports whether body carries enough text to be worth analysing.
func ValidBody(body string) bool {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" || trimmed == BodyRemoved || trimmed == BodyDeleted {
		return false
	}
	return len(body) > MinBodyLength
}

// UserData is everything ingested for one analysis run
type UserData struct {
	Profile  *UserProfile `json:"profile"`
	Comments []Comment    `json:"comments"`
	Posts    []Post       `json:"posts"`
}
