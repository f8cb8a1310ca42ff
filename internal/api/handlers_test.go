package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bumbayash/blogicum/internal/auth"
	"github.com/bumbayash/blogicum/internal/blog"
	"github.com/bumbayash/blogicum/internal/metrics"
	"github.com/bumbayash/blogicum/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// The prometheus exporter registers into the default registry, so metrics
// are set up once for the whole test binary.
var (
	metricsOnce sync.Once
	testMetrics *metrics.Metrics
)

func sharedMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	metricsOnce.Do(func() {
		m, _, err := metrics.Setup("blogicum-test")
		require.NoError(t, err)
		testMetrics = m
	})
	return testMetrics
}

type testEnv struct {
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop().Sugar()
	st := repository.NewMemoryStore()
	repository.SeedFixtures(st)

	authSvc := auth.NewService(st, "test-secret", time.Hour, logger)
	blogSvc := blog.NewService(st, nil, nil, logger, 10)

	h := NewHandler(blogSvc, authSvc, logger, nil)
	m := NewMiddleware(logger, sharedMetrics(t), authSvc)
	router := h.Routes(m, []string{"http://localhost:3000"}, 60000)

	return &testEnv{router: router}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, username string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/auth/register/", "", RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodPost, "/auth/login/", "", LoginRequest{
		Username: username,
		Password: "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (e *testEnv) createPost(t *testing.T, token string, req PostRequest) *blog.Post {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/posts/create/", token, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var p blog.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return &p
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
	return er
}

func TestHealthEndpoints(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/auth/register/", "", RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("duplicate username conflicts", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/auth/register/", "", RegisterRequest{
			Username: "alice", Email: "other@example.com", Password: "hunter2hunter2",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "USERNAME_TAKEN", decodeError(t, rec).Code)
	})

	t.Run("short password rejected", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/auth/register/", "", RegisterRequest{
			Username: "bob", Email: "bob@example.com", Password: "short",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("login sets session cookie", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/auth/login/", "", LoginRequest{
			Username: "alice", Password: "hunter2hunter2",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "session", cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)
	})

	t.Run("bad password is unauthorized", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/auth/login/", "", LoginRequest{
			Username: "alice", Password: "wrong-password",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown user looks the same as bad password", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/auth/login/", "", LoginRequest{
			Username: "nobody", Password: "whatever123",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestIndexListing(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "alice")

	e.createPost(t, token, PostRequest{Title: "public", Text: "body", IsPublished: true})
	e.createPost(t, token, PostRequest{Title: "draft", Text: "body", IsPublished: false})

	rec := e.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var l blog.Listing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &l))
	assert.EqualValues(t, 1, l.Total)
	require.Len(t, l.Posts, 1)
	assert.Equal(t, "public", l.Posts[0].Title)
}

func TestCategoryEndpoint(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/category/travel/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Fixture "drafts-corner" exists but is unpublished; it must look absent.
	rec = e.do(t, http.MethodGet, "/category/drafts-corner/", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/category/no-such-slug/", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostLifecycle(t *testing.T) {
	e := newTestEnv(t)
	owner := e.register(t, "alice")
	stranger := e.register(t, "bob")

	post := e.createPost(t, owner, PostRequest{Title: "mine", Text: "text", IsPublished: true})

	t.Run("anonymous create redirects to login", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/posts/create/", "", PostRequest{
			Title: "anon", Text: "text", IsPublished: true,
		})
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, LoginPath, rec.Header().Get("Location"))
	})

	t.Run("detail is public", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, fmt.Sprintf("/posts/%s/", post.ID), "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp PostDetailResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "mine", resp.Post.Title)
	})

	t.Run("non-owner edit redirects to detail", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, fmt.Sprintf("/posts/%s/edit/", post.ID), stranger, PostRequest{
			Title: "hijack", Text: "text", IsPublished: true,
		})
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, fmt.Sprintf("/posts/%s/", post.ID), rec.Header().Get("Location"))
	})

	t.Run("owner edit succeeds", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, fmt.Sprintf("/posts/%s/edit/", post.ID), owner, PostRequest{
			Title: "renamed", Text: "text", IsPublished: true,
		})
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("blank title is a validation error", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/posts/create/", owner, PostRequest{
			Title: "  ", Text: "text", IsPublished: true,
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		er := decodeError(t, rec)
		assert.Equal(t, "VALIDATION_ERROR", er.Code)
		assert.Contains(t, er.Fields, "title")
	})

	t.Run("bad pub_date is rejected", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/posts/create/", owner, PostRequest{
			Title: "x", Text: "y", PubDate: "yesterday", IsPublished: true,
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_PUB_DATE", decodeError(t, rec).Code)
	})

	t.Run("non-owner delete redirects", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, fmt.Sprintf("/posts/%s/delete/", post.ID), stranger, nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
	})

	t.Run("owner delete succeeds", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, fmt.Sprintf("/posts/%s/delete/", post.ID), owner, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = e.do(t, http.MethodGet, fmt.Sprintf("/posts/%s/", post.ID), "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDraftConflation(t *testing.T) {
	e := newTestEnv(t)
	owner := e.register(t, "alice")
	stranger := e.register(t, "bob")

	draft := e.createPost(t, owner, PostRequest{Title: "draft", Text: "text", IsPublished: false})
	future := e.createPost(t, owner, PostRequest{
		Title: "scheduled", Text: "text", IsPublished: true,
		PubDate: time.Now().Add(48 * time.Hour).Format(time.RFC3339),
	})

	for _, id := range []string{draft.ID, future.ID} {
		rec := e.do(t, http.MethodGet, fmt.Sprintf("/posts/%s/", id), "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)

		rec = e.do(t, http.MethodGet, fmt.Sprintf("/posts/%s/", id), stranger, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = e.do(t, http.MethodGet, fmt.Sprintf("/posts/%s/", id), owner, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestCommentEndpoints(t *testing.T) {
	e := newTestEnv(t)
	owner := e.register(t, "alice")
	commenter := e.register(t, "bob")

	post := e.createPost(t, owner, PostRequest{Title: "post", Text: "text", IsPublished: true})

	rec := e.do(t, http.MethodPost, fmt.Sprintf("/posts/%s/comment/", post.ID), commenter, CommentRequest{Text: "hello"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var c blog.Comment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))

	t.Run("anonymous comment redirects to login", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, fmt.Sprintf("/posts/%s/comment/", post.ID), "", CommentRequest{Text: "anon"})
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, LoginPath, rec.Header().Get("Location"))
	})

	t.Run("edit by non-owner redirects to the post", func(t *testing.T) {
		rec := e.do(t, http.MethodPost,
			fmt.Sprintf("/posts/%s/edit_comment/%s/", post.ID, c.ID), owner, CommentRequest{Text: "hijack"})
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, fmt.Sprintf("/posts/%s/", post.ID), rec.Header().Get("Location"))
	})

	t.Run("edit with mismatched post id is not found", func(t *testing.T) {
		other := e.createPost(t, owner, PostRequest{Title: "other", Text: "text", IsPublished: true})
		rec := e.do(t, http.MethodPost,
			fmt.Sprintf("/posts/%s/edit_comment/%s/", other.ID, c.ID), commenter, CommentRequest{Text: "moved"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("owner of the comment edits it", func(t *testing.T) {
		rec := e.do(t, http.MethodPost,
			fmt.Sprintf("/posts/%s/edit_comment/%s/", post.ID, c.ID), commenter, CommentRequest{Text: "edited"})
		require.Equal(t, http.StatusOK, rec.Code)

		var got blog.Comment
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "edited", got.Text)
	})

	t.Run("comment count shows on the detail", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, fmt.Sprintf("/posts/%s/", post.ID), "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp PostDetailResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.EqualValues(t, 1, resp.Post.CommentCount)
		require.Len(t, resp.Comments, 1)
	})

	t.Run("delete by the comment author", func(t *testing.T) {
		rec := e.do(t, http.MethodPost,
			fmt.Sprintf("/posts/%s/delete_comment/%s/", post.ID, c.ID), commenter, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestProfileEndpoints(t *testing.T) {
	e := newTestEnv(t)
	owner := e.register(t, "alice")

	e.createPost(t, owner, PostRequest{Title: "public", Text: "text", IsPublished: true})
	e.createPost(t, owner, PostRequest{Title: "draft", Text: "text", IsPublished: false})

	t.Run("own profile includes drafts", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/profile/alice/", owner, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var l blog.Listing
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &l))
		assert.Len(t, l.Posts, 2)
	})

	t.Run("visitors see published only", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/profile/alice/", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var l blog.Listing
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &l))
		assert.Len(t, l.Posts, 1)
	})

	t.Run("unknown profile is not found", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/profile/nobody/", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("edit own profile", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/edit_profile/", owner, ProfileRequest{
			FirstName: "Alice", LastName: "Liddell", Email: "alice@new.example.com",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var u blog.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
		assert.Equal(t, "Alice", u.FirstName)
	})

	t.Run("anonymous profile edit redirects to login", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/edit_profile/", "", ProfileRequest{FirstName: "X"})
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, LoginPath, rec.Header().Get("Location"))
	})
}

func TestPageClamping(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "alice")

	for i := 0; i < 25; i++ {
		e.createPost(t, token, PostRequest{
			Title: fmt.Sprintf("post %d", i), Text: "text", IsPublished: true,
			PubDate: time.Now().Add(-time.Duration(i+1) * time.Minute).Format(time.RFC3339),
		})
	}

	rec := e.do(t, http.MethodGet, "/?page=99", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var l blog.Listing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &l))
	assert.Equal(t, 3, l.Page)
	assert.Equal(t, 3, l.TotalPages)
	assert.Len(t, l.Posts, 5)

	// Junk page values land on page one.
	rec = e.do(t, http.MethodGet, "/?page=banana", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &l))
	assert.Equal(t, 1, l.Page)
}

func TestInvalidJSONBody(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "alice")

	req := httptest.NewRequest(http.MethodPost, "/posts/create/", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JSON", decodeError(t, rec).Code)
}

func TestSessionCookieAuthenticates(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "alice")

	body, err := json.Marshal(PostRequest{Title: "cookie post", Text: "text", IsPublished: true})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/posts/create/", bytes.NewReader(body))
	req.AddCookie(&http.Cookie{Name: "session", Value: token})
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestGarbageTokenIsAnonymous(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/", "not-a-jwt", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/posts/create/", "not-a-jwt", PostRequest{
		Title: "x", Text: "y", IsPublished: true,
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}
