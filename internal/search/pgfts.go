package search

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// PgFTS implements Searcher on top of Postgres full-text search. It is
// the fallback when Meilisearch is unreachable and needs no indexing
// hooks: it queries the live tables directly.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy reports whether the database answers a ping.
func (p *PgFTS) Healthy() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return p.db.PingContext(ctx) == nil
}

func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var clauses []string
	var args []interface{}
	args = append(args, q.Text)

	if q.FilterType == "" || q.FilterType == ResultArticle {
		ownerCond := ""
		if q.FilterOwner != "" {
			args = append(args, q.FilterOwner)
			ownerCond = fmt.Sprintf(" AND a.owner_id = $%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf(`
			SELECT 'article' AS rtype, a.id, a.title,
			       LEFT(a.excerpt, 200) AS snippet, a.id AS article_id, a.status,
			       ts_rank(to_tsvector('english', a.title || ' ' || a.excerpt || ' ' || a.content), plainto_tsquery('english', $1)) AS rank
			FROM articles a
			WHERE to_tsvector('english', a.title || ' ' || a.excerpt || ' ' || a.content) @@ plainto_tsquery('english', $1)%s`, ownerCond))
	}

	if q.FilterType == "" || q.FilterType == ResultMessage {
		clauses = append(clauses, `
			SELECT 'message' AS rtype, m.id::text, COALESCE(u.display_name, m.sender_id) AS title,
			       LEFT(m.body, 200) AS snippet, m.article_id, '' AS status,
			       ts_rank(to_tsvector('english', m.body), plainto_tsquery('english', $1)) AS rank
			FROM chat_messages m
			LEFT JOIN users u ON u.id = m.sender_id
			WHERE to_tsvector('english', m.body) @@ plainto_tsquery('english', $1)`)
	}

	if len(clauses) == 0 {
		return nil, 0, nil
	}

	query := "SELECT rtype, id, title, snippet, article_id, status FROM ("
	for i, c := range clauses {
		if i > 0 {
			query += " UNION ALL "
		}
		query += c
	}
	query += ") combined ORDER BY rank DESC LIMIT " + strconv.Itoa(limit) + " OFFSET " + strconv.Itoa(q.Offset)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var rtype string
		if err := rows.Scan(&rtype, &r.ID, &r.Title, &r.Snippet, &r.ArticleID, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(rtype)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgfts rows: %w", err)
	}

	return results, len(results), nil
}
