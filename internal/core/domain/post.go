package domain

import "time"

type Post struct {
	ID        ContentID           `json:"id"`
	AuthorID  UserID              `json:"author_id"`
	Title     string              `json:"title"`
	Body      string              `json:"body"`
	MediaURL  string              `json:"media_url,omitempty"`
	Policy    ContentAccessPolicy `json:"policy"`
	CreatedAt time.Time           `json:"created_at"`
}
