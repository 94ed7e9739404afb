package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// PgFTS searches the comments table with PostgreSQL full-text search.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; without Postgres there are no comments.
func (p *PgFTS) Healthy() bool {
	return true
}

func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	args := []any{q.Text}
	where := "c.search_vector @@ q.query"
	if q.Path != "" {
		args = append(args, q.Path)
		where += fmt.Sprintf(" AND c.collection_path = $%d", len(args))
	}

	query := fmt.Sprintf(`
		SELECT c.id, c.author_name,
			ts_headline('english', c.body, q.query, 'MaxFragments=1,MaxWords=30,StartSel="%s",StopSel="%s"') AS snippet,
			c.created_at,
			count(*) OVER () AS total
		FROM comments c, plainto_tsquery('english', $1) AS q(query)
		WHERE %s
		ORDER BY ts_rank(c.search_vector, q.query) DESC, c.created_at DESC
		LIMIT %d OFFSET %d`,
		highlightPre, highlightPost, where, q.limit(), q.offset())

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	total := 0
	for rows.Next() {
		var r Result
		var createdAt time.Time
		if err := rows.Scan(&r.ID, &r.AuthorName, &r.Snippet, &createdAt, &total); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.CreatedAt = &createdAt
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every comment for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]CommentRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, collection_path, author_id, author_name, body, created_at
		FROM comments
	`)
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}
	defer rows.Close()

	records := make([]CommentRecord, 0)
	for rows.Next() {
		var r CommentRecord
		var createdAt time.Time
		if err := rows.Scan(&r.ID, &r.Path, &r.AuthorID, &r.AuthorName, &r.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		r.CreatedAt = createdAt.Unix()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return records, nil
}
