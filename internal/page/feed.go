package page

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"coursepage/site/internal/comments"
	"coursepage/site/internal/observability"
)

// PendingLabel stands in for a timestamp the store has not assigned yet.
const PendingLabel = "Just now"

// TimestampLayout formats resolved comment times. Times are shown in UTC.
const TimestampLayout = "1/2/2006, 3:04:05 PM MST"

// Comment is a record as the feed displays it.
type Comment struct {
	ID         string     `json:"id"`
	AuthorID   string     `json:"authorId"`
	AuthorName string     `json:"authorName"`
	Text       string     `json:"text"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
	Timestamp  string     `json:"timestamp"`
}

func (c Comment) Pending() bool {
	return c.CreatedAt == nil
}

// Normalize maps records for display and sorts them newest first. Pending
// records sort as if written at now, so they lead until resolved.
func Normalize(records []comments.Record, now time.Time) []Comment {
	out := make([]Comment, 0, len(records))
	for _, record := range records {
		c := Comment{
			ID:         record.ID,
			AuthorID:   record.AuthorID,
			AuthorName: record.AuthorName,
			Text:       record.Text,
			Timestamp:  PendingLabel,
		}
		if record.CreatedAt != nil {
			at := record.CreatedAt.UTC()
			c.CreatedAt = &at
			c.Timestamp = at.Format(TimestampLayout)
		}
		out = append(out, c)
	}

	sortKey := func(c Comment) time.Time {
		if c.CreatedAt == nil {
			return now
		}
		return *c.CreatedAt
	}
	sort.SliceStable(out, func(i, j int) bool {
		return sortKey(out[i]).After(sortKey(out[j]))
	})
	return out
}

// Feed keeps one page's view of the comment collection. It holds at most
// one store subscription, tied to the (ready, store) pair it was bound with.
type Feed struct {
	path     string
	logger   zerolog.Logger
	onChange func([]Comment)
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc

	mu          sync.Mutex
	store       comments.Store
	ready       bool
	bound       bool
	closed      bool
	generation  uint64
	unsubscribe func()
	items       []Comment
}

func NewFeed(store comments.Store, path string, logger zerolog.Logger, onChange func([]Comment)) *Feed {
	ctx, cancel := context.WithCancel(context.Background())
	return &Feed{
		path:     path,
		logger:   logger,
		onChange: onChange,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		store:    store,
		items:    []Comment{},
	}
}

// Bind releases the current subscription when ready or store changed and
// subscribes again if the session is ready and a store exists.
func (f *Feed) Bind(ready bool, store comments.Store) {
	f.mu.Lock()
	if f.closed || (f.bound && f.ready == ready && f.store == store) {
		f.mu.Unlock()
		return
	}
	previous := f.unsubscribe
	f.unsubscribe = nil
	f.generation++
	generation := f.generation
	f.ready, f.store, f.bound = ready, store, true
	f.mu.Unlock()

	if previous != nil {
		previous()
		observability.SubscriptionClosed()
	}
	if !ready || store == nil {
		return
	}

	unsubscribe := store.SubscribeAll(f.ctx, f.path,
		func(records []comments.Record) { f.apply(generation, records) },
		func(err error) { f.fail(generation, err) },
	)
	observability.SubscriptionOpened()

	f.mu.Lock()
	if f.closed || f.generation != generation {
		f.mu.Unlock()
		unsubscribe()
		observability.SubscriptionClosed()
		return
	}
	f.unsubscribe = unsubscribe
	f.mu.Unlock()
}

func (f *Feed) apply(generation uint64, records []comments.Record) {
	items := Normalize(records, f.now())

	f.mu.Lock()
	if f.closed || f.generation != generation {
		f.mu.Unlock()
		return
	}
	f.items = items
	f.mu.Unlock()

	observability.RecordSnapshot()
	if f.onChange != nil {
		f.onChange(cloneComments(items))
	}
}

// fail leaves the list as it was. The store ends the subscription.
func (f *Feed) fail(generation uint64, err error) {
	f.mu.Lock()
	current := !f.closed && f.generation == generation
	f.mu.Unlock()
	if current {
		f.logger.Error().Err(err).Str("path", f.path).Msg("comment subscription failed")
	}
}

// Submit appends the composer text under author. Blank text, a missing
// store or a missing author make it a no-op. The composer is cleared only
// after the store accepted the write.
func (f *Feed) Submit(ctx context.Context, composer *Composer, author string) (bool, error) {
	text := strings.TrimSpace(composer.Text())

	f.mu.Lock()
	store, closed := f.store, f.closed
	f.mu.Unlock()

	if closed || text == "" || store == nil || author == "" {
		observability.RecordSubmission(observability.SubmitRejected)
		return false, nil
	}

	_, err := store.Append(ctx, f.path, comments.NewRecord{
		AuthorID:   author,
		AuthorName: author,
		Text:       text,
		CreatedAt:  comments.ServerTimestamp(),
	})
	if err != nil {
		f.logger.Error().Err(err).Str("author", author).Msg("posting comment failed")
		observability.RecordSubmission(observability.SubmitFailed)
		return false, fmt.Errorf("append comment: %w", err)
	}

	composer.Clear()
	observability.RecordSubmission(observability.SubmitPosted)
	return true, nil
}

// Comments returns the displayed list.
func (f *Feed) Comments() []Comment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneComments(f.items)
}

func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.generation++
	unsubscribe := f.unsubscribe
	f.unsubscribe = nil
	f.mu.Unlock()

	f.cancel()
	if unsubscribe != nil {
		unsubscribe()
		observability.SubscriptionClosed()
	}
}

func cloneComments(items []Comment) []Comment {
	out := make([]Comment, len(items))
	copy(out, items)
	return out
}
