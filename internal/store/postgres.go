package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func (s *PostgresStore) EnsureUserByName(ctx context.Context, name string) (User, error) {
	const findUser = `SELECT id, display_name, email FROM users WHERE display_name = $1`
	var user User
	err := s.db.QueryRowContext(ctx, findUser, name).Scan(&user.ID, &user.DisplayName, &user.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	insertUser := `
		INSERT INTO users (display_name, email)
		VALUES ($1, CONCAT(LOWER(REPLACE($1, ' ', '.')), '@local.inkwell.dev'))
		RETURNING id, display_name, email
	`
	if err := s.db.QueryRowContext(ctx, insertUser, name).Scan(&user.ID, &user.DisplayName, &user.Email); err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `SELECT id, display_name, email FROM users WHERE id=$1`, userID).
		Scan(&user.ID, &user.DisplayName, &user.Email)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ---------------------------------------------------------------------------
// Refresh sessions (Postgres fallback when Redis is not configured)
// ---------------------------------------------------------------------------

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.email
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Articles
// ---------------------------------------------------------------------------

func (s *PostgresStore) InsertArticle(ctx context.Context, item Article) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO articles (id, owner_id, title, content, excerpt, cover_image, status, scheduled_publish_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ID, item.OwnerID, item.Title, item.Content, item.Excerpt, item.CoverImage, item.Status, item.ScheduledAt)
	if err != nil {
		return fmt.Errorf("insert article: %w", err)
	}
	if err := s.setTags(ctx, item.ID, item.Tags); err != nil {
		return err
	}
	return nil
}

func (s *PostgresStore) GetArticle(ctx context.Context, articleID string) (Article, error) {
	var item Article
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, content, excerpt, cover_image, status, scheduled_publish_at, created_at, updated_at
		FROM articles
		WHERE id=$1
	`, articleID).Scan(
		&item.ID,
		&item.OwnerID,
		&item.Title,
		&item.Content,
		&item.Excerpt,
		&item.CoverImage,
		&item.Status,
		&item.ScheduledAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Article{}, err
	}
	tags, err := s.listTags(ctx, articleID)
	if err != nil {
		return Article{}, err
	}
	item.Tags = tags
	return item, nil
}

func (s *PostgresStore) ListArticlesByOwner(ctx context.Context, ownerID string) ([]Article, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, title, content, excerpt, cover_image, status, scheduled_publish_at, created_at, updated_at
		FROM articles
		WHERE owner_id=$1
		ORDER BY updated_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	items := make([]Article, 0)
	for rows.Next() {
		var item Article
		if err := rows.Scan(
			&item.ID,
			&item.OwnerID,
			&item.Title,
			&item.Content,
			&item.Excerpt,
			&item.CoverImage,
			&item.Status,
			&item.ScheduledAt,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateArticle(ctx context.Context, item Article) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE articles
		SET title=$2, content=$3, excerpt=$4, cover_image=$5, status=$6, scheduled_publish_at=$7, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Title, item.Content, item.Excerpt, item.CoverImage, item.Status, item.ScheduledAt)
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}
	if item.Tags != nil {
		if err := s.setTags(ctx, item.ID, item.Tags); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) SetCoverImage(ctx context.Context, articleID, objectKey string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE articles SET cover_image=$2, updated_at=NOW() WHERE id=$1`, articleID, objectKey)
	if err != nil {
		return fmt.Errorf("set cover image: %w", err)
	}
	return nil
}

// PublishDue promotes every scheduled article whose scheduled time has
// elapsed. The predicate excludes anything not currently scheduled, so a
// repeated call over the same window is a no-op and an article is returned by
// at most one call ever.
func (s *PostgresStore) PublishDue(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE articles
		SET status='published', updated_at=NOW()
		WHERE status='scheduled' AND scheduled_publish_at <= $1
		RETURNING id
	`, now)
	if err != nil {
		return nil, fmt.Errorf("publish due: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan published id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate published ids: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) setTags(ctx context.Context, articleID string, tags []string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM article_tags WHERE article_id=$1`, articleID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO article_tags (article_id, tag)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, articleID, tag); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) listTags(ctx context.Context, articleID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tag FROM article_tags WHERE article_id=$1 ORDER BY tag`, articleID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	tags := make([]string, 0)
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return tags, nil
}

// ---------------------------------------------------------------------------
// Version log
// ---------------------------------------------------------------------------

// AppendVersion assigns MAX(version_number)+1 inside the insert statement so
// the counter is never cached application-side. Two concurrent saves for the
// same article may race to the same number; the unique index rejects the
// loser and the statement is retried once with a freshly computed maximum.
func (s *PostgresStore) AppendVersion(ctx context.Context, articleID, content, modifiedBy string) (int, error) {
	const insert = `
		INSERT INTO article_versions (article_id, content, modified_by, version_number)
		SELECT $1, $2, $3, COALESCE(MAX(version_number), 0) + 1
		FROM article_versions
		WHERE article_id = $1
		RETURNING version_number
	`
	var number int
	err := s.db.QueryRowContext(ctx, insert, articleID, content, modifiedBy).Scan(&number)
	if isUniqueViolation(err) {
		err = s.db.QueryRowContext(ctx, insert, articleID, content, modifiedBy).Scan(&number)
	}
	if err != nil {
		return 0, fmt.Errorf("append version: %w", err)
	}
	return number, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStore) ListVersions(ctx context.Context, articleID string) ([]ArticleVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, article_id, content, modified_by, version_number, created_at
		FROM article_versions
		WHERE article_id=$1
		ORDER BY version_number DESC
	`, articleID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	items := make([]ArticleVersion, 0)
	for rows.Next() {
		var item ArticleVersion
		if err := rows.Scan(&item.ID, &item.ArticleID, &item.Content, &item.ModifiedBy, &item.VersionNumber, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetVersion(ctx context.Context, articleID string, number int) (ArticleVersion, error) {
	var item ArticleVersion
	err := s.db.QueryRowContext(ctx, `
		SELECT id, article_id, content, modified_by, version_number, created_at
		FROM article_versions
		WHERE article_id=$1 AND version_number=$2
	`, articleID, number).Scan(&item.ID, &item.ArticleID, &item.Content, &item.ModifiedBy, &item.VersionNumber, &item.CreatedAt)
	if err != nil {
		return ArticleVersion{}, err
	}
	return item, nil
}

// ---------------------------------------------------------------------------
// Share links
// ---------------------------------------------------------------------------

func (s *PostgresStore) InsertShareLink(ctx context.Context, link ShareLink) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO share_links (token, article_id, created_by, permission, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, link.Token, link.ArticleID, link.CreatedBy, link.Permission, link.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert share link: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetShareLink(ctx context.Context, token string) (ShareLink, error) {
	var link ShareLink
	err := s.db.QueryRowContext(ctx, `
		SELECT token, article_id, created_by, permission, expires_at, created_at
		FROM share_links
		WHERE token=$1
	`, token).Scan(&link.Token, &link.ArticleID, &link.CreatedBy, &link.Permission, &link.ExpiresAt, &link.CreatedAt)
	if err != nil {
		return ShareLink{}, err
	}
	return link, nil
}

// ---------------------------------------------------------------------------
// Chat messages
// ---------------------------------------------------------------------------

// InsertChatMessage persists the message and returns it with the assigned id,
// timestamp and sender display name, so the relay can broadcast the durable
// record rather than the client payload.
func (s *PostgresStore) InsertChatMessage(ctx context.Context, articleID, senderID, body string) (ChatMessage, error) {
	const insert = `
		WITH inserted AS (
			INSERT INTO chat_messages (article_id, sender_id, body)
			VALUES ($1, $2, $3)
			RETURNING id, article_id, sender_id, body, created_at
		)
		SELECT i.id, i.article_id, i.sender_id, COALESCE(u.display_name, ''), i.body, i.created_at
		FROM inserted i
		LEFT JOIN users u ON u.id = i.sender_id
	`
	var msg ChatMessage
	err := s.db.QueryRowContext(ctx, insert, articleID, senderID, body).
		Scan(&msg.ID, &msg.ArticleID, &msg.SenderID, &msg.SenderName, &msg.Body, &msg.CreatedAt)
	if err != nil {
		return ChatMessage{}, fmt.Errorf("insert chat message: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) ListChatMessages(ctx context.Context, articleID string) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.article_id, m.sender_id, COALESCE(u.display_name, ''), m.body, m.created_at
		FROM chat_messages m
		LEFT JOIN users u ON u.id = m.sender_id
		WHERE m.article_id=$1
		ORDER BY m.created_at ASC, m.id ASC
	`, articleID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	items := make([]ChatMessage, 0)
	for rows.Next() {
		var msg ChatMessage
		if err := rows.Scan(&msg.ID, &msg.ArticleID, &msg.SenderID, &msg.SenderName, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		items = append(items, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return items, nil
}
