package store

import (
	"time"

	"coursepage/site/internal/comments"
)

// NotifyChannel carries the collection path of every inserted comment.
const NotifyChannel = "comment_changes"

type CommentRow struct {
	ID             string
	CollectionPath string
	AuthorID       string
	AuthorName     string
	Body           string
	CreatedAt      time.Time
}

func (r CommentRow) Record() comments.Record {
	at := r.CreatedAt
	return comments.Record{
		ID:         r.ID,
		AuthorID:   r.AuthorID,
		AuthorName: r.AuthorName,
		Text:       r.Body,
		CreatedAt:  &at,
	}
}

type IdentityRow struct {
	UID       string
	Anonymous bool
	CreatedAt time.Time
	ExpiresAt time.Time
}
