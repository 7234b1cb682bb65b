package model

import "time"

// Article is a news item used as context for post generation.
type Article struct {
	Title       string
	Description string
	URL         string
	Source      string
	PublishedAt time.Time
}
