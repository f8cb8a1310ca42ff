package blog

import (
	"context"
	"time"
)

// PostScope narrows a listing to one category or one author. The zero value
// means all posts.
type PostScope struct {
	CategoryID string
	AuthorID   string
}

// ListOptions controls filtering and pagination of post listings. When
// OnlyVisible is set, stores apply the publication predicate (see Visible)
// relative to Now; otherwise drafts and scheduled posts are included.
type ListOptions struct {
	OnlyVisible bool
	Now         time.Time
	Limit       int
	Offset      int
}

// Store is the relational persistence boundary. Implementations must
// preload Author, Category and Location on returned posts and annotate
// CommentCount. Reads and writes are each atomic on their own; no multi-step
// transaction spans service operations.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error

	GetCategoryBySlug(ctx context.Context, slug string) (*Category, error)

	CreatePost(ctx context.Context, p *Post) error
	GetPostByID(ctx context.Context, id string) (*Post, error)
	UpdatePost(ctx context.Context, p *Post) error
	// DeletePost removes the post and cascades its comments. Deletion is
	// final; there is no soft delete.
	DeletePost(ctx context.Context, id string) error
	ListPosts(ctx context.Context, scope PostScope, opts ListOptions) ([]*Post, error)
	CountPosts(ctx context.Context, scope PostScope, opts ListOptions) (int64, error)

	CreateComment(ctx context.Context, c *Comment) error
	GetCommentByID(ctx context.Context, id string) (*Comment, error)
	ListComments(ctx context.Context, postID string) ([]*Comment, error)
	UpdateComment(ctx context.Context, c *Comment) error
	DeleteComment(ctx context.Context, id string) error
	CountComments(ctx context.Context, postID string) (int64, error)
}

// Notifier delivers the new-comment notification to a post's author.
// Delivery is best-effort; implementations swallow transport failures after
// logging them and the service never retries.
type Notifier interface {
	NotifyNewComment(ctx context.Context, post *Post, comment *Comment) error
}
