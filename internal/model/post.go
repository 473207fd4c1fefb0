package model

import "time"

// Post is one social post as delivered by the fetch collaborator.
type Post struct {
	Subreddit   string
	ID          string
	Title       string
	Body        string
	Author      string
	Score       int
	NumComments int
	Comments    []string // top 10 only
	CreatedUTC  int64    // epoch seconds
	URL         string
}

// CreatedAt returns the post creation time in UTC.
func (p Post) CreatedAt() time.Time {
	return time.Unix(p.CreatedUTC, 0).UTC()
}

// Mention is one distinct ticker extracted from one post.
type Mention struct {
	Ticker      string
	Score       int
	NumComments int
	Content     string
	Comments    []string
	CreatedAt   time.Time
}
