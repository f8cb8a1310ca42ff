package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bumbayash/blogicum/internal/auth"
	"github.com/bumbayash/blogicum/internal/blog"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LoginPath is where unauthenticated mutation attempts are redirected.
const LoginPath = "/auth/login/"

// Pinger is what Readyz needs from the backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	blogSvc *blog.Service
	authSvc *auth.Service
	logger  *zap.SugaredLogger
	pinger  Pinger
}

func NewHandler(blogSvc *blog.Service, authSvc *auth.Service, logger *zap.SugaredLogger, pinger Pinger) *Handler {
	return &Handler{
		blogSvc: blogSvc,
		authSvc: authSvc,
		logger:  logger,
		pinger:  pinger,
	}
}

// Listings

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	listing, err := h.blogSvc.MainListing(r.Context(), ViewerFrom(r.Context()), pageParam(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, listing)
}

func (h *Handler) CategoryPosts(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	listing, err := h.blogSvc.CategoryListing(r.Context(), ViewerFrom(r.Context()), slug, pageParam(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, listing)
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	listing, err := h.blogSvc.ProfileListing(r.Context(), ViewerFrom(r.Context()), username, pageParam(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, listing)
}

// Post detail and mutations

func (h *Handler) PostDetail(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")
	post, comments, err := h.blogSvc.PostDetail(r.Context(), ViewerFrom(r.Context()), postID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, PostDetailResponse{Post: post, Comments: comments})
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req PostRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_PUB_DATE", "pub_date must be RFC3339")
		return
	}

	post, err := h.blogSvc.CreatePost(r.Context(), ViewerFrom(r.Context()), in)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, post)
}

func (h *Handler) EditPost(w http.ResponseWriter, r *http.Request) {
	var req PostRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_PUB_DATE", "pub_date must be RFC3339")
		return
	}

	postID := chi.URLParam(r, "postID")
	post, err := h.blogSvc.UpdatePost(r.Context(), ViewerFrom(r.Context()), postID, in)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, post)
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")
	if err := h.blogSvc.DeletePost(r.Context(), ViewerFrom(r.Context()), postID); err != nil {
		h.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Comments

func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if !h.decode(w, r, &req) {
		return
	}

	postID := chi.URLParam(r, "postID")
	comment, err := h.blogSvc.CreateComment(r.Context(), ViewerFrom(r.Context()), postID, req.Text)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, comment)
}

func (h *Handler) EditComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if !h.decode(w, r, &req) {
		return
	}

	postID := chi.URLParam(r, "postID")
	commentID := chi.URLParam(r, "commentID")
	comment, err := h.blogSvc.UpdateComment(r.Context(), ViewerFrom(r.Context()), postID, commentID, req.Text)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, comment)
}

func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")
	commentID := chi.URLParam(r, "commentID")
	if err := h.blogSvc.DeleteComment(r.Context(), ViewerFrom(r.Context()), postID, commentID); err != nil {
		h.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Profile and identity

func (h *Handler) EditProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.blogSvc.UpdateProfile(r.Context(), ViewerFrom(r.Context()), blog.ProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.authSvc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, blog.ErrUsernameTaken) {
			h.writeError(w, http.StatusConflict, "USERNAME_TAKEN", "username already taken")
			return
		}
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	token, user, err := h.authSvc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid username or password")
			return
		}
		h.serviceError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	h.writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

// Health endpoints

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			h.writeError(w, http.StatusServiceUnavailable, "NOT_READY", "store unavailable")
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Helpers

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return false
	}
	return true
}

// serviceError maps policy-layer errors onto the HTTP surface. Unauthorized
// mutations redirect to the parent post's read view and unauthenticated ones
// to login; both are navigation, not error statuses.
func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	var notOwner *blog.NotOwnerError
	var ve blog.ValidationError

	switch {
	case errors.Is(err, blog.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", "not found")
	case errors.Is(err, blog.ErrLoginRequired):
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
	case errors.As(err, &notOwner):
		http.Redirect(w, r, fmt.Sprintf("/posts/%s/", notOwner.PostID), http.StatusSeeOther)
	case errors.As(err, &ve):
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "validation failed",
			Fields:  ve,
		})
	default:
		h.logger.Errorw("Unhandled service error", "error", err, "path", r.URL.Path)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.logger.Errorw("API error", "code", code, "message", message, "status", status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := ErrorResponse{
		Code:    code,
		Message: message,
	}
	json.NewEncoder(w).Encode(err)
}
