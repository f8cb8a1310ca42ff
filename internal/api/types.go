package api

import (
	"time"

	"github.com/bumbayash/blogicum/internal/blog"
)

type ErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string     `json:"token"`
	User  *blog.User `json:"user"`
}

type PostRequest struct {
	Title       string `json:"title"`
	Text        string `json:"text"`
	PubDate     string `json:"pub_date,omitempty"` // RFC3339; empty means now
	CategoryID  string `json:"category_id,omitempty"`
	LocationID  string `json:"location_id,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	IsPublished bool   `json:"is_published"`
}

func (r *PostRequest) toInput() (blog.PostInput, error) {
	in := blog.PostInput{
		Title:       r.Title,
		Text:        r.Text,
		CategoryID:  r.CategoryID,
		LocationID:  r.LocationID,
		ImageURL:    r.ImageURL,
		IsPublished: r.IsPublished,
	}
	if r.PubDate != "" {
		t, err := time.Parse(time.RFC3339, r.PubDate)
		if err != nil {
			return in, err
		}
		in.PubDate = t
	}
	return in, nil
}

type CommentRequest struct {
	Text string `json:"text"`
}

type ProfileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type PostDetailResponse struct {
	Post     *blog.Post      `json:"post"`
	Comments []*blog.Comment `json:"comments"`
}
