// Package comments defines the public comment collection the showcase
// page subscribes to, and an in-process implementation of it.
package comments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const DefaultAppID = "default-app-id"

var ErrEmptyText = errors.New("comment text is empty")

// CollectionPath is where an application's public comments live.
func CollectionPath(appID string) string {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		appID = DefaultAppID
	}
	return fmt.Sprintf("artifacts/%s/public/data/comments", appID)
}

// Record is a stored comment. CreatedAt is nil until the store has
// acknowledged the write and assigned its timestamp.
type Record struct {
	ID         string     `json:"id"`
	AuthorID   string     `json:"authorId"`
	AuthorName string     `json:"authorName"`
	Text       string     `json:"text"`
	CreatedAt  *time.Time `json:"createdAt"`
}

func (r Record) Pending() bool {
	return r.CreatedAt == nil
}

// Timestamp is either a concrete time or the server timestamp sentinel.
type Timestamp struct {
	at     time.Time
	server bool
}

// ServerTimestamp asks the store to assign the time when it acknowledges
// the write.
func ServerTimestamp() Timestamp {
	return Timestamp{server: true}
}

func At(t time.Time) Timestamp {
	return Timestamp{at: t}
}

func (t Timestamp) IsServer() bool {
	return t.server || t.at.IsZero()
}

func (t Timestamp) Time() time.Time {
	return t.at
}

// NewRecord is the payload of an append.
type NewRecord struct {
	AuthorID   string
	AuthorName string
	Text       string
	CreatedAt  Timestamp
}

// Normalize trims the text and rejects blank comments.
func (n NewRecord) Normalize() (NewRecord, error) {
	n.Text = strings.TrimSpace(n.Text)
	if n.Text == "" {
		return NewRecord{}, ErrEmptyText
	}
	n.AuthorID = strings.TrimSpace(n.AuthorID)
	if n.AuthorID == "" {
		return NewRecord{}, fmt.Errorf("comment author is required")
	}
	if strings.TrimSpace(n.AuthorName) == "" {
		n.AuthorName = n.AuthorID
	}
	return n, nil
}

// Store is a real-time comment collection.
type Store interface {
	// SubscribeAll delivers the full collection at path once immediately
	// and again after every change, in store order, on a goroutine owned
	// by the subscription. No callback runs after unsubscribe returns to
	// the subscription's own goroutine, and none after ctx is done.
	SubscribeAll(ctx context.Context, path string, onSnapshot func([]Record), onError func(error)) (unsubscribe func())
	// Append writes a record and returns its store-assigned ID.
	Append(ctx context.Context, path string, record NewRecord) (string, error)
}

func cloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, record := range records {
		out[i] = record
		if record.CreatedAt != nil {
			at := *record.CreatedAt
			out[i].CreatedAt = &at
		}
	}
	return out
}
