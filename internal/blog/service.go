package blog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bumbayash/blogicum/internal/store"
	"go.uber.org/zap"
)

// Service composes the visibility filter, ownership guard and listing
// assembler on top of a Store. It holds no per-request state: every
// operation is a function of the request, the current viewer and the store
// contents, except the comment notification side effect.
type Service struct {
	store    Store
	cache    *store.Cache
	notifier Notifier
	logger   *zap.SugaredLogger
	pageSize int
	now      func() time.Time
}

func NewService(st Store, cache *store.Cache, notifier Notifier, logger *zap.SugaredLogger, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{
		store:    st,
		cache:    cache,
		notifier: notifier,
		logger:   logger,
		pageSize: pageSize,
		now:      time.Now,
	}
}

// PageSize returns the configured listing page size.
func (s *Service) PageSize() int {
	return s.pageSize
}

// MainListing assembles one page of the public post feed.
func (s *Service) MainListing(ctx context.Context, viewer *User, page int) (*Listing, error) {
	if l := s.cachedListing(ctx, viewer, store.KeyMainListing, page); l != nil {
		return l, nil
	}
	l, err := s.assemble(ctx, PostScope{}, page, true)
	if err != nil {
		return nil, err
	}
	s.storeListing(ctx, viewer, store.KeyMainListing, page, l)
	return l, nil
}

// CategoryListing assembles one page of posts under a published category.
// An unpublished or unknown slug is NotFound.
func (s *Service) CategoryListing(ctx context.Context, viewer *User, slug string, page int) (*Listing, error) {
	cat, err := s.categoryBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !cat.IsPublished {
		return nil, ErrNotFound
	}

	key := fmt.Sprintf("%s:%s", store.KeyCategoryListing, slug)
	if l := s.cachedListing(ctx, viewer, key, page); l != nil {
		return l, nil
	}
	l, err := s.assemble(ctx, PostScope{CategoryID: cat.ID}, page, true)
	if err != nil {
		return nil, err
	}
	l.Category = cat
	s.storeListing(ctx, viewer, key, page, l)
	return l, nil
}

// ProfileListing assembles one page of a user's posts. When the viewer is
// the profile subject the visibility predicate is waived, so drafts and
// scheduled posts show up in their own profile.
func (s *Service) ProfileListing(ctx context.Context, viewer *User, username string, page int) (*Listing, error) {
	profile, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, notFoundOr(err)
	}

	ownerContext := viewer != nil && viewer.ID == profile.ID
	l, err := s.assemble(ctx, PostScope{AuthorID: profile.ID}, page, !ownerContext)
	if err != nil {
		return nil, err
	}
	l.Profile = profile
	return l, nil
}

// PostDetail resolves a single post for the viewer together with its
// comments. A post that exists but fails the visibility predicate for a
// non-author is reported as NotFound, indistinguishable from absence.
func (s *Service) PostDetail(ctx context.Context, viewer *User, postID string) (*Post, []*Comment, error) {
	p, err := s.store.GetPostByID(ctx, postID)
	if err != nil {
		return nil, nil, notFoundOr(err)
	}
	if !VisibleTo(p, viewer, s.now()) {
		return nil, nil, ErrNotFound
	}
	comments, err := s.store.ListComments(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	return p, comments, nil
}

// PostInput carries the author-editable post fields.
type PostInput struct {
	Title       string
	Text        string
	PubDate     time.Time
	CategoryID  string
	LocationID  string
	ImageURL    string
	IsPublished bool
}

func (in *PostInput) validate() error {
	ve := ValidationError{}
	if strings.TrimSpace(in.Title) == "" {
		ve["title"] = "title is required"
	}
	if strings.TrimSpace(in.Text) == "" {
		ve["text"] = "text is required"
	}
	if len(ve) > 0 {
		return ve
	}
	return nil
}

// CreatePost creates a post authored by the viewer. The author binding
// always comes from the resolved identity, never from the input.
func (s *Service) CreatePost(ctx context.Context, viewer *User, in PostInput) (*Post, error) {
	if viewer == nil {
		return nil, ErrLoginRequired
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	pubDate := in.PubDate
	if pubDate.IsZero() {
		pubDate = s.now()
	}
	p := &Post{
		Title:       in.Title,
		Text:        in.Text,
		PubDate:     pubDate,
		AuthorID:    viewer.ID,
		CategoryID:  in.CategoryID,
		LocationID:  in.LocationID,
		ImageURL:    in.ImageURL,
		IsPublished: in.IsPublished,
	}
	if err := s.store.CreatePost(ctx, p); err != nil {
		return nil, err
	}
	s.invalidateListings(ctx)
	return p, nil
}

// UpdatePost edits a post after the ownership guard admits the viewer.
func (s *Service) UpdatePost(ctx context.Context, viewer *User, postID string, in PostInput) (*Post, error) {
	p, err := s.store.GetPostByID(ctx, postID)
	if err != nil {
		return nil, notFoundOr(err)
	}
	if err := GuardMutation(p.AuthorID, viewer, p.ID); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	p.Title = in.Title
	p.Text = in.Text
	if !in.PubDate.IsZero() {
		p.PubDate = in.PubDate
	}
	p.CategoryID = in.CategoryID
	p.LocationID = in.LocationID
	p.ImageURL = in.ImageURL
	p.IsPublished = in.IsPublished
	if err := s.store.UpdatePost(ctx, p); err != nil {
		return nil, err
	}
	s.invalidateListings(ctx)
	return p, nil
}

// DeletePost removes a post and, transitively, its comments.
func (s *Service) DeletePost(ctx context.Context, viewer *User, postID string) error {
	p, err := s.store.GetPostByID(ctx, postID)
	if err != nil {
		return notFoundOr(err)
	}
	if err := GuardMutation(p.AuthorID, viewer, p.ID); err != nil {
		return err
	}
	if err := s.store.DeletePost(ctx, p.ID); err != nil {
		return err
	}
	s.invalidateListings(ctx)
	return nil
}

// CreateComment attaches a comment to a post the viewer can see and fires
// the author notification when commenter and author differ. The
// notification is fire-and-forget: delivery failure is logged and swallowed.
func (s *Service) CreateComment(ctx context.Context, viewer *User, postID, text string) (*Comment, error) {
	if viewer == nil {
		return nil, ErrLoginRequired
	}
	p, err := s.store.GetPostByID(ctx, postID)
	if err != nil {
		return nil, notFoundOr(err)
	}
	if !VisibleTo(p, viewer, s.now()) {
		return nil, ErrNotFound
	}
	if strings.TrimSpace(text) == "" {
		return nil, ValidationError{"text": "text is required"}
	}

	c := &Comment{
		PostID:   p.ID,
		AuthorID: viewer.ID,
		Text:     text,
	}
	if err := s.store.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	// Comment counts are annotated onto listing pages.
	s.invalidateListings(ctx)

	if p.AuthorID != viewer.ID && s.notifier != nil {
		go func(post Post, comment Comment) {
			nctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.notifier.NotifyNewComment(nctx, &post, &comment); err != nil {
				s.logger.Warnw("Comment notification failed",
					"post_id", post.ID,
					"comment_id", comment.ID,
					"error", err,
				)
			}
		}(*p, *c)
	}
	return c, nil
}

// UpdateComment edits a comment after the ownership guard admits the viewer.
// A comment id paired with the wrong post id is NotFound.
func (s *Service) UpdateComment(ctx context.Context, viewer *User, postID, commentID, text string) (*Comment, error) {
	c, err := s.store.GetCommentByID(ctx, commentID)
	if err != nil {
		return nil, notFoundOr(err)
	}
	if c.PostID != postID {
		return nil, ErrNotFound
	}
	if err := GuardMutation(c.AuthorID, viewer, c.PostID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ValidationError{"text": "text is required"}
	}

	c.Text = text
	if err := s.store.UpdateComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteComment removes a comment after the ownership guard admits the viewer.
func (s *Service) DeleteComment(ctx context.Context, viewer *User, postID, commentID string) error {
	c, err := s.store.GetCommentByID(ctx, commentID)
	if err != nil {
		return notFoundOr(err)
	}
	if c.PostID != postID {
		return ErrNotFound
	}
	if err := GuardMutation(c.AuthorID, viewer, c.PostID); err != nil {
		return err
	}
	if err := s.store.DeleteComment(ctx, c.ID); err != nil {
		return err
	}
	s.invalidateListings(ctx)
	return nil
}

// ProfileInput carries the self-editable profile fields.
type ProfileInput struct {
	FirstName string
	LastName  string
	Email     string
}

// UpdateProfile edits the viewer's own profile.
func (s *Service) UpdateProfile(ctx context.Context, viewer *User, in ProfileInput) (*User, error) {
	if viewer == nil {
		return nil, ErrLoginRequired
	}
	u, err := s.store.GetUserByID(ctx, viewer.ID)
	if err != nil {
		return nil, notFoundOr(err)
	}
	u.FirstName = in.FirstName
	u.LastName = in.LastName
	if in.Email != "" {
		u.Email = in.Email
	}
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// assemble runs one page of a listing: count, clamp, fetch.
func (s *Service) assemble(ctx context.Context, scope PostScope, page int, onlyVisible bool) (*Listing, error) {
	opts := ListOptions{OnlyVisible: onlyVisible, Now: s.now()}
	total, err := s.store.CountPosts(ctx, scope, opts)
	if err != nil {
		return nil, err
	}
	page, _ = ClampPage(page, total, s.pageSize)
	opts.Limit = s.pageSize
	opts.Offset = (page - 1) * s.pageSize
	posts, err := s.store.ListPosts(ctx, scope, opts)
	if err != nil {
		return nil, err
	}
	return newListing(posts, total, page, s.pageSize), nil
}

func (s *Service) categoryBySlug(ctx context.Context, slug string) (*Category, error) {
	key := fmt.Sprintf("%s:%s", store.KeyCategory, slug)
	if s.cache != nil {
		var cat Category
		if err := s.cache.Get(ctx, key, &cat); err == nil {
			return &cat, nil
		}
	}
	cat, err := s.store.GetCategoryBySlug(ctx, slug)
	if err != nil {
		return nil, notFoundOr(err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cat, time.Minute); err != nil {
			s.logger.Debugw("Category cache set failed", "slug", slug, "error", err)
		}
	}
	return cat, nil
}

// cachedListing returns a cached page for anonymous viewers only; a signed-in
// viewer may see their own drafts in the same scope, so their pages are never
// shared.
func (s *Service) cachedListing(ctx context.Context, viewer *User, key string, page int) *Listing {
	if viewer != nil || s.cache == nil {
		return nil
	}
	var l Listing
	if err := s.cache.Get(ctx, fmt.Sprintf("%s:p%d", key, page), &l); err != nil {
		return nil
	}
	return &l
}

// invalidateListings drops every cached listing page after a post or
// comment mutation. Prefix-wide deletion is coarse but the keys are few and
// short-lived.
func (s *Service) invalidateListings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, prefix := range []string{store.KeyMainListing, store.KeyCategoryListing} {
		if err := s.cache.DeleteByPrefix(ctx, prefix); err != nil {
			s.logger.Debugw("Listing invalidation failed", "prefix", prefix, "error", err)
		}
	}
}

func (s *Service) storeListing(ctx context.Context, viewer *User, key string, page int, l *Listing) {
	if viewer != nil || s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, fmt.Sprintf("%s:p%d", key, page), l, store.ListingTTL); err != nil {
		s.logger.Debugw("Listing cache set failed", "key", key, "error", err)
	}
}

// notFoundOr maps the store's not-found sentinel onto the policy-level one
// and passes other errors through.
func notFoundOr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// ValidationError carries field-level messages for malformed input.
type ValidationError map[string]string

func (ve ValidationError) Error() string {
	parts := make([]string, 0, len(ve))
	for field, msg := range ve {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
