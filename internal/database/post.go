package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/forcessl/forcessl/internal/database/models"
	"github.com/google/uuid"
)

// postColumns is the column list shared by every post SELECT.
const postColumns = `id, guid, slug, title, content, excerpt, status, author_id, created_at, updated_at`

// postRepo implements PostRepository.
type postRepo struct {
	db *DB
}

// NewPostRepository creates a new PostRepository.
func NewPostRepository(db *DB) PostRepository {
	return &postRepo{db: db}
}

// Create inserts a post. A missing GUID is generated as a urn:uuid, a missing
// slug is derived from the title and a missing status defaults to publish.
func (r *postRepo) Create(ctx context.Context, post *models.Post) error {
	if post.GUID == "" {
		post.GUID = "urn:uuid:" + uuid.NewString()
	}
	if post.Slug == "" {
		post.Slug = Slugify(post.Title)
	}
	if post.Status == "" {
		post.Status = models.PostStatusPublish
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO posts (guid, slug, title, content, excerpt, status, author_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		post.GUID, post.Slug, post.Title, post.Content, post.Excerpt, post.Status, post.AuthorID,
	).Scan(&post.ID)
	if err != nil {
		return fmt.Errorf("inserting post: %w", err)
	}

	stored, err := r.GetByID(ctx, post.ID)
	if err != nil {
		return err
	}
	if stored != nil {
		post.CreatedAt = stored.CreatedAt
		post.UpdatedAt = stored.UpdatedAt
	}
	return nil
}

// GetByID returns a post by id, or nil if none exists.
func (r *postRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying post by id: %w", err)
	}
	return p, nil
}

// List returns one page of posts, newest first, and the total number of
// posts matching the query ignoring Limit and Offset.
func (r *postRepo) List(ctx context.Context, q models.PostQuery) ([]models.Post, int64, error) {
	var (
		where []string
		args  []any
	)
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, q.Status)
	}
	if q.Search != "" {
		where = append(where, "(title LIKE ? ESCAPE '\\' OR content LIKE ? ESCAPE '\\')")
		pattern := "%" + escapeLike(q.Search) + "%"
		args = append(args, pattern, pattern)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting posts: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts`+clause+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, limit, q.Offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating posts: %w", err)
	}
	return posts, total, nil
}

// Delete removes a post and reports whether it existed.
func (r *postRepo) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting post: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return n > 0, nil
}

// Count returns the number of stored posts.
func (r *postRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting posts: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var p models.Post
	err := row.Scan(&p.ID, &p.GUID, &p.Slug, &p.Title, &p.Content, &p.Excerpt,
		&p.Status, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// escapeLike escapes LIKE wildcards so search terms match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Slugify lower-cases title and joins its letter and digit runs with '-'.
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	if b.Len() == 0 {
		return "untitled"
	}
	return b.String()
}
