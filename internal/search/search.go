// Package search finds comments by text. Meilisearch serves queries while
// it is healthy; Postgres full-text search or an in-memory scan covers the
// rest of the time.
package search

import (
	"context"
	"time"
)

// Highlight tags wrap matched terms in snippets. They use the same bold
// convention as the course summary.
const (
	highlightPre  = "**"
	highlightPost = "**"
)

// Result is a single matching comment.
type Result struct {
	ID         string     `json:"id"`
	AuthorName string     `json:"authorName"`
	Snippet    string     `json:"snippet"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
}

type Query struct {
	Text   string
	Path   string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a comment search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// CommentRecord is the document indexed per comment.
type CommentRecord struct {
	ID         string `json:"id"`
	Path       string `json:"collectionPath"`
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
	Text       string `json:"text"`
	CreatedAt  int64  `json:"createdAt"`
}

func (q Query) limit() int {
	if q.Limit <= 0 || q.Limit > 100 {
		return 20
	}
	return q.Limit
}

func (q Query) offset() int {
	if q.Offset < 0 {
		return 0
	}
	return q.Offset
}
