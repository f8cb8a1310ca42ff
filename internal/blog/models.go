package blog

import (
	"errors"
	"time"
)

// User is an author identity. A nil *User means the request is anonymous.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Location is a named place a post can be tagged with. Its publication flag
// only controls admin-side exposure and does not gate post visibility.
type Location struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
}

// Category groups posts under a unique URL slug.
type Category struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Slug        string    `json:"slug"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
}

// Post is the central entity. Category and Location are optional; when the
// store returns a post it preloads both (nil when unset) along with the
// author and the derived comment count.
type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	PubDate     time.Time `json:"pub_date"`
	AuthorID    string    `json:"author_id"`
	CategoryID  string    `json:"category_id,omitempty"`
	LocationID  string    `json:"location_id,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`

	// Preloaded relations, populated on reads.
	Author   *User     `json:"author,omitempty"`
	Category *Category `json:"category,omitempty"`
	Location *Location `json:"location,omitempty"`

	// Derived, never stored.
	CommentCount int64 `json:"comment_count"`
}

// Comment has no publication flag of its own; it inherits the visibility of
// its parent post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`

	Author *User `json:"author,omitempty"`
}

// Sentinel errors shared by the store implementations and the service.
var (
	// ErrNotFound covers both genuinely absent records and posts that fail
	// the visibility predicate for a non-owner viewer. The two cases are
	// deliberately indistinguishable so draft existence never leaks.
	ErrNotFound = errors.New("record not found")

	// ErrLoginRequired is returned when a mutation arrives without a
	// resolved identity. The API layer turns it into a login redirect.
	ErrLoginRequired = errors.New("login required")

	// ErrUsernameTaken is returned on registration conflicts.
	ErrUsernameTaken = errors.New("username already taken")
)

// NotOwnerError means the requester is not the resource's author. Handlers
// redirect to the parent post's detail view rather than surfacing an error.
type NotOwnerError struct {
	PostID string
}

func (e *NotOwnerError) Error() string {
	return "requester is not the author"
}
