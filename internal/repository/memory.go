package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bumbayash/blogicum/internal/blog"
	"github.com/google/uuid"
)

// MemoryStore implements blog.Store on mutex-guarded maps. It backs dev
// runs without a Postgres DSN and the test suites. Returned records are
// copies; callers never share memory with the store.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]*blog.User
	locations  map[string]*blog.Location
	categories map[string]*blog.Category
	posts      map[string]*blog.Post
	comments   map[string]*blog.Comment
}

var _ blog.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]*blog.User),
		locations:  make(map[string]*blog.Location),
		categories: make(map[string]*blog.Category),
		posts:      make(map[string]*blog.Post),
		comments:   make(map[string]*blog.Comment),
	}
}

// Users

func (s *MemoryStore) CreateUser(ctx context.Context, u *blog.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username {
			return blog.ErrUsernameTaken
		}
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	u.CreatedAt = time.Now()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (*blog.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, blog.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*blog.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, blog.ErrNotFound
}

func (s *MemoryStore) UpdateUser(ctx context.Context, u *blog.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[u.ID]
	if !ok {
		return blog.ErrNotFound
	}
	existing.Email = u.Email
	existing.FirstName = u.FirstName
	existing.LastName = u.LastName
	return nil
}

// Locations and categories are created through seeding (the admin surface is
// out of scope), so only the lookup side is part of blog.Store.

func (s *MemoryStore) AddLocation(l *blog.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	l.CreatedAt = time.Now()
	cp := *l
	s.locations[l.ID] = &cp
}

func (s *MemoryStore) AddCategory(c *blog.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = time.Now()
	cp := *c
	s.categories[c.ID] = &cp
}

func (s *MemoryStore) GetCategoryBySlug(ctx context.Context, slug string) (*blog.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.categories {
		if c.Slug == slug {
			cp := *c
			return &cp, nil
		}
	}
	return nil, blog.ErrNotFound
}

// Posts

func (s *MemoryStore) CreatePost(ctx context.Context, p *blog.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[p.AuthorID]; !ok {
		return blog.ErrNotFound
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = time.Now()
	cp := *p
	cp.Author, cp.Category, cp.Location = nil, nil, nil
	s.posts[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetPostByID(ctx context.Context, id string) (*blog.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, blog.ErrNotFound
	}
	return s.loadPost(p), nil
}

func (s *MemoryStore) UpdatePost(ctx context.Context, p *blog.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.posts[p.ID]
	if !ok {
		return blog.ErrNotFound
	}
	existing.Title = p.Title
	existing.Text = p.Text
	existing.PubDate = p.PubDate
	existing.CategoryID = p.CategoryID
	existing.LocationID = p.LocationID
	existing.ImageURL = p.ImageURL
	existing.IsPublished = p.IsPublished
	return nil
}

func (s *MemoryStore) DeletePost(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return blog.ErrNotFound
	}
	delete(s.posts, id)
	// Cascade, matching the ON DELETE CASCADE constraint in Postgres.
	for cid, c := range s.comments {
		if c.PostID == id {
			delete(s.comments, cid)
		}
	}
	return nil
}

func (s *MemoryStore) ListPosts(ctx context.Context, scope blog.PostScope, opts blog.ListOptions) ([]*blog.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.matchPosts(scope, opts)
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].PubDate.After(matched[j].PubDate)
	})

	start := opts.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}

	out := make([]*blog.Post, 0, end-start)
	for _, p := range matched[start:end] {
		out = append(out, s.loadPost(p))
	}
	return out, nil
}

func (s *MemoryStore) CountPosts(ctx context.Context, scope blog.PostScope, opts blog.ListOptions) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.matchPosts(scope, opts))), nil
}

// matchPosts applies scope and visibility filters. Callers hold the lock.
func (s *MemoryStore) matchPosts(scope blog.PostScope, opts blog.ListOptions) []*blog.Post {
	var matched []*blog.Post
	for _, p := range s.posts {
		if scope.CategoryID != "" && p.CategoryID != scope.CategoryID {
			continue
		}
		if scope.AuthorID != "" && p.AuthorID != scope.AuthorID {
			continue
		}
		if opts.OnlyVisible {
			probe := *p
			if p.CategoryID != "" {
				probe.Category = s.categories[p.CategoryID]
			}
			if !blog.Visible(&probe, opts.Now) {
				continue
			}
		}
		matched = append(matched, p)
	}
	return matched
}

// loadPost copies a post and resolves its relations and comment count.
// Callers hold at least the read lock.
func (s *MemoryStore) loadPost(p *blog.Post) *blog.Post {
	cp := *p
	if u, ok := s.users[p.AuthorID]; ok {
		ucp := *u
		cp.Author = &ucp
	}
	if p.CategoryID != "" {
		if c, ok := s.categories[p.CategoryID]; ok {
			ccp := *c
			cp.Category = &ccp
		}
	}
	if p.LocationID != "" {
		if l, ok := s.locations[p.LocationID]; ok {
			lcp := *l
			cp.Location = &lcp
		}
	}
	for _, c := range s.comments {
		if c.PostID == p.ID {
			cp.CommentCount++
		}
	}
	return &cp
}

// Comments

func (s *MemoryStore) CreateComment(ctx context.Context, c *blog.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[c.PostID]; !ok {
		return blog.ErrNotFound
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = time.Now()
	cp := *c
	cp.Author = nil
	s.comments[c.ID] = &cp
	return nil
}

func (s *MemoryStore) GetCommentByID(ctx context.Context, id string) (*blog.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return nil, blog.ErrNotFound
	}
	return s.loadComment(c), nil
}

func (s *MemoryStore) ListComments(ctx context.Context, postID string) ([]*blog.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*blog.Comment
	for _, c := range s.comments {
		if c.PostID == postID {
			out = append(out, s.loadComment(c))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateComment(ctx context.Context, c *blog.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.comments[c.ID]
	if !ok {
		return blog.ErrNotFound
	}
	existing.Text = c.Text
	return nil
}

func (s *MemoryStore) DeleteComment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[id]; !ok {
		return blog.ErrNotFound
	}
	delete(s.comments, id)
	return nil
}

func (s *MemoryStore) CountComments(ctx context.Context, postID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, c := range s.comments {
		if c.PostID == postID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) loadComment(c *blog.Comment) *blog.Comment {
	cp := *c
	if u, ok := s.users[c.AuthorID]; ok {
		ucp := *u
		cp.Author = &ucp
	}
	return &cp
}
