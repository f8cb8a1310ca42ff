// Package repository provides the two blog.Store implementations: a
// Postgres store for real deployments and an in-memory store for dev and
// tests. Both apply the same visibility semantics.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bumbayash/blogicum/internal/blog"
	"github.com/google/uuid"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements blog.Store on database/sql with the pgx driver.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

var _ blog.Store = (*PostgresStore)(nil)

func NewPostgresStore(dsn string, logger *zap.SugaredLogger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &PostgresStore{db: db, logger: logger}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Users

func (s *PostgresStore) CreateUser(ctx context.Context, u *blog.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	u.CreatedAt = time.Now()

	query := `
		INSERT INTO users (id, username, email, password_hash, first_name, last_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

const userColumns = `id, username, email, password_hash, first_name, last_name, created_at`

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*blog.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*blog.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func (s *PostgresStore) UpdateUser(ctx context.Context, u *blog.User) error {
	query := `
		UPDATE users SET email = $2, first_name = $3, last_name = $4
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, u.ID, u.Email, u.FirstName, u.LastName)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireRow(res)
}

func scanUser(row *sql.Row) (*blog.User, error) {
	var u blog.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, blog.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

// Categories

func (s *PostgresStore) GetCategoryBySlug(ctx context.Context, slug string) (*blog.Category, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, slug, is_published, created_at
		FROM categories WHERE slug = $1
	`, slug)

	var c blog.Category
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Slug, &c.IsPublished, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, blog.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan category: %w", err)
	}
	return &c, nil
}

// Posts

const postSelect = `
	SELECT p.id, p.title, p.text, p.pub_date, p.author_id,
	       p.category_id, p.location_id, p.image_url, p.is_published, p.created_at,
	       u.username, u.email, u.first_name, u.last_name,
	       c.title, c.description, c.slug, c.is_published, c.created_at,
	       l.name, l.is_published, l.created_at,
	       (SELECT COUNT(*) FROM comments cm WHERE cm.post_id = p.id) AS comment_count
	FROM posts p
	JOIN users u ON u.id = p.author_id
	LEFT JOIN categories c ON c.id = p.category_id
	LEFT JOIN locations l ON l.id = p.location_id
`

// visibleClause is the SQL form of the publication predicate in blog.Visible.
// A missing category does not hide the post; an unpublished one does.
const visibleClause = `p.is_published AND p.pub_date <= %s AND (p.category_id IS NULL OR c.is_published)`

func (s *PostgresStore) CreatePost(ctx context.Context, p *blog.Post) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = time.Now()

	query := `
		INSERT INTO posts (id, title, text, pub_date, author_id, category_id, location_id, image_url, is_published, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Title, p.Text, p.PubDate, p.AuthorID,
		nullable(p.CategoryID), nullable(p.LocationID), p.ImageURL, p.IsPublished, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPostByID(ctx context.Context, id string) (*blog.Post, error) {
	rows, err := s.db.QueryContext(ctx, postSelect+` WHERE p.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query post: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("row iteration error: %w", err)
		}
		return nil, blog.ErrNotFound
	}
	return scanPost(rows)
}

func (s *PostgresStore) UpdatePost(ctx context.Context, p *blog.Post) error {
	query := `
		UPDATE posts
		SET title = $2, text = $3, pub_date = $4, category_id = $5,
		    location_id = $6, image_url = $7, is_published = $8
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		p.ID, p.Title, p.Text, p.PubDate,
		nullable(p.CategoryID), nullable(p.LocationID), p.ImageURL, p.IsPublished)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) DeletePost(ctx context.Context, id string) error {
	// Comments go with the post via ON DELETE CASCADE.
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) ListPosts(ctx context.Context, scope blog.PostScope, opts blog.ListOptions) ([]*blog.Post, error) {
	where, args := buildPostFilter(scope, opts)
	query := postSelect + where + ` ORDER BY p.pub_date DESC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	var posts []*blog.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return posts, nil
}

func (s *PostgresStore) CountPosts(ctx context.Context, scope blog.PostScope, opts blog.ListOptions) (int64, error) {
	where, args := buildPostFilter(scope, opts)
	query := `
		SELECT COUNT(*)
		FROM posts p
		LEFT JOIN categories c ON c.id = p.category_id
	` + where

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}

func buildPostFilter(scope blog.PostScope, opts blog.ListOptions) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if scope.CategoryID != "" {
		args = append(args, scope.CategoryID)
		conds = append(conds, fmt.Sprintf("p.category_id = $%d", len(args)))
	}
	if scope.AuthorID != "" {
		args = append(args, scope.AuthorID)
		conds = append(conds, fmt.Sprintf("p.author_id = $%d", len(args)))
	}
	if opts.OnlyVisible {
		args = append(args, opts.Now)
		conds = append(conds, fmt.Sprintf(visibleClause, fmt.Sprintf("$%d", len(args))))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanPost(rows *sql.Rows) (*blog.Post, error) {
	var (
		p            blog.Post
		author       blog.User
		categoryID   sql.NullString
		locationID   sql.NullString
		catTitle     sql.NullString
		catDesc      sql.NullString
		catSlug      sql.NullString
		catPublished sql.NullBool
		catCreated   sql.NullTime
		locName      sql.NullString
		locPublished sql.NullBool
		locCreated   sql.NullTime
	)

	err := rows.Scan(
		&p.ID, &p.Title, &p.Text, &p.PubDate, &p.AuthorID,
		&categoryID, &locationID, &p.ImageURL, &p.IsPublished, &p.CreatedAt,
		&author.Username, &author.Email, &author.FirstName, &author.LastName,
		&catTitle, &catDesc, &catSlug, &catPublished, &catCreated,
		&locName, &locPublished, &locCreated,
		&p.CommentCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan post: %w", err)
	}

	author.ID = p.AuthorID
	p.Author = &author

	if categoryID.Valid {
		p.CategoryID = categoryID.String
		p.Category = &blog.Category{
			ID:          categoryID.String,
			Title:       catTitle.String,
			Description: catDesc.String,
			Slug:        catSlug.String,
			IsPublished: catPublished.Bool,
			CreatedAt:   catCreated.Time,
		}
	}
	if locationID.Valid {
		p.LocationID = locationID.String
		p.Location = &blog.Location{
			ID:          locationID.String,
			Name:        locName.String,
			IsPublished: locPublished.Bool,
			CreatedAt:   locCreated.Time,
		}
	}
	return &p, nil
}

// Comments

func (s *PostgresStore) CreateComment(ctx context.Context, c *blog.Comment) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = time.Now()

	query := `
		INSERT INTO comments (id, post_id, author_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query, c.ID, c.PostID, c.AuthorID, c.Text, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCommentByID(ctx context.Context, id string) (*blog.Comment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT cm.id, cm.post_id, cm.author_id, cm.text, cm.created_at, u.username
		FROM comments cm
		JOIN users u ON u.id = cm.author_id
		WHERE cm.id = $1
	`, id)

	var c blog.Comment
	var username string
	err := row.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Text, &c.CreatedAt, &username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, blog.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan comment: %w", err)
	}
	c.Author = &blog.User{ID: c.AuthorID, Username: username}
	return &c, nil
}

func (s *PostgresStore) ListComments(ctx context.Context, postID string) ([]*blog.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cm.id, cm.post_id, cm.author_id, cm.text, cm.created_at, u.username
		FROM comments cm
		JOIN users u ON u.id = cm.author_id
		WHERE cm.post_id = $1
		ORDER BY cm.created_at ASC
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	var comments []*blog.Comment
	for rows.Next() {
		var c blog.Comment
		var username string
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Text, &c.CreatedAt, &username); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		c.Author = &blog.User{ID: c.AuthorID, Username: username}
		comments = append(comments, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return comments, nil
}

func (s *PostgresStore) UpdateComment(ctx context.Context, c *blog.Comment) error {
	res, err := s.db.ExecContext(ctx, `UPDATE comments SET text = $2 WHERE id = $1`, c.ID, c.Text)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) DeleteComment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) CountComments(ctx context.Context, postID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments WHERE post_id = $1`, postID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}
	return count, nil
}

func nullable(id string) interface{} {
	if id == "" {
		return nil
	}
	return id
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return blog.ErrNotFound
	}
	return nil
}
