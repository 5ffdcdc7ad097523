package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Ponloe/blog-core/internal/auth"
	"github.com/Ponloe/blog-core/internal/database/databasetest"
	"github.com/Ponloe/blog-core/internal/posts"
	"github.com/Ponloe/blog-core/internal/users"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t         *testing.T
	db        *gorm.DB
	router    *gin.Engine
	uploadDir string
	now       time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := databasetest.New(t, &users.User{}, &posts.Post{})

	uploadDir := t.TempDir()
	uploads, err := posts.NewUploads(uploadDir)
	require.NoError(t, err)

	s := &testServer{t: t, db: db, uploadDir: uploadDir, now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	tokens, err := auth.NewTokenManager(auth.TokenConfig{Secret: []byte("test-secret")})
	require.NoError(t, err)

	s.router = NewRouter(Deps{
		DB:          db,
		Hasher:      auth.NewHasher(bcrypt.MinCost),
		Tokens:      tokens,
		Uploads:     uploads,
		CORSOrigins: []string{"http://localhost:5173"},
		MaxUploadMB: 1,
		Now:         func() time.Time { return s.now },
	})
	return s
}

func (s *testServer) serve(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) sendJSON(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return s.serve(req, token)
}

func (s *testServer) form(method, path, token string, fields map[string]string, filename string, file []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(s.t, w.WriteField(k, v))
	}
	if filename != "" {
		fw, err := w.CreateFormFile("image", filename)
		require.NoError(s.t, err)
		_, err = fw.Write(file)
		require.NoError(s.t, err)
	}
	require.NoError(s.t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return s.serve(req, token)
}

func (s *testServer) signupAndLogin(name, email, password string) (uint, string) {
	rr := s.sendJSON(http.MethodPost, "/signup", "", gin.H{
		"full_name": name, "email": email, "password": password, "gender": "f", "phone": "555",
	})
	require.Equal(s.t, http.StatusCreated, rr.Code, rr.Body.String())
	var signup struct {
		UserID uint `json:"user_id"`
	}
	require.NoError(s.t, json.Unmarshal(rr.Body.Bytes(), &signup))

	rr = s.sendJSON(http.MethodPost, "/login", "", gin.H{"email": email, "password": password})
	require.Equal(s.t, http.StatusOK, rr.Code, rr.Body.String())
	var login struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(s.t, json.Unmarshal(rr.Body.Bytes(), &login))
	return signup.UserID, login.AccessToken
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestBlogScenario(t *testing.T) {
	s := newTestServer(t)

	annID, annToken := s.signupAndLogin("Ann", "a@x.com", "p1")

	rr := s.sendJSON(http.MethodPost, "/signup", "", gin.H{"full_name": "Ann Two", "email": "a@x.com", "password": "p2"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Email already registered"}`, rr.Body.String())

	me := decode[users.UserResponse](t, s.serve(httptest.NewRequest(http.MethodGet, "/me", nil), annToken))
	assert.Equal(t, annID, me.ID)

	rr = s.form(http.MethodPost, "/blogs", annToken, map[string]string{"title": "Hello", "content": "World"}, "", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[posts.Post](t, rr)
	assert.Equal(t, annID, created.UserID)
	assert.Equal(t, "", created.ImageURL)

	_, bobToken := s.signupAndLogin("Bob", "b@x.com", "p2")
	path := "/blogs/" + itoa(created.ID)

	rr = s.form(http.MethodPut, path, bobToken, map[string]string{"title": "Mine now", "content": "x"}, "", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = s.serve(httptest.NewRequest(http.MethodDelete, path, nil), bobToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	s.now = s.now.Add(time.Minute)
	rr = s.form(http.MethodPut, path, annToken, map[string]string{"title": "Hello again", "content": "World"}, "", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"message":"Blog updated successfully"}`, rr.Body.String())

	got := decode[posts.PostWithAuthor](t, s.serve(httptest.NewRequest(http.MethodGet, path, nil), ""))
	assert.Equal(t, "Hello again", got.Title)
	assert.Equal(t, "Ann", got.Author)
	assert.True(t, got.UpdatedAt.After(created.UpdatedAt), "updated_at %v should advance past %v", got.UpdatedAt, created.UpdatedAt)

	rr = s.serve(httptest.NewRequest(http.MethodDelete, path, nil), annToken)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Blog deleted successfully"}`, rr.Body.String())

	assert.Equal(t, http.StatusNotFound, s.serve(httptest.NewRequest(http.MethodGet, path, nil), "").Code)
	assert.Equal(t, http.StatusNotFound, s.serve(httptest.NewRequest(http.MethodDelete, path, nil), annToken).Code)
}

func TestListings(t *testing.T) {
	s := newTestServer(t)
	_, annToken := s.signupAndLogin("Ann", "a@x.com", "p1")
	_, bobToken := s.signupAndLogin("Bob", "b@x.com", "p2")

	for _, p := range []struct{ token, title string }{
		{annToken, "a1"}, {bobToken, "b1"}, {annToken, "a2"},
	} {
		rr := s.form(http.MethodPost, "/blogs", p.token, map[string]string{"title": p.title, "content": "c"}, "", nil)
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	all := decode[[]posts.PostWithAuthor](t, s.serve(httptest.NewRequest(http.MethodGet, "/blogs", nil), ""))
	require.Len(t, all, 3)
	assert.Equal(t, "a1", all[0].Title)
	assert.Equal(t, "Bob", all[1].Author)

	mine := decode[[]posts.PostWithAuthor](t, s.serve(httptest.NewRequest(http.MethodGet, "/myblogs", nil), annToken))
	require.Len(t, mine, 2)
	for _, p := range mine {
		assert.Equal(t, "Ann", p.Author)
	}

	assert.Equal(t, http.StatusUnauthorized, s.serve(httptest.NewRequest(http.MethodGet, "/myblogs", nil), "").Code)
}

func TestEmptyListIsArray(t *testing.T) {
	s := newTestServer(t)
	rr := s.serve(httptest.NewRequest(http.MethodGet, "/blogs", nil), "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestImageUpload(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signupAndLogin("Ann", "a@x.com", "p1")

	rr := s.form(http.MethodPost, "/blogs", token, map[string]string{"title": "pic", "content": "c"}, "cat.png", []byte("meow"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[posts.Post](t, rr)
	assert.Equal(t, "/uploads/cat.png", created.ImageURL)

	b, err := os.ReadFile(filepath.Join(s.uploadDir, "cat.png"))
	require.NoError(t, err)
	assert.Equal(t, "meow", string(b))

	rr = s.serve(httptest.NewRequest(http.MethodGet, "/uploads/cat.png", nil), "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "meow", rr.Body.String())

	path := "/blogs/" + itoa(created.ID)
	rr = s.form(http.MethodPut, path, token, map[string]string{"title": "pic", "content": "c"}, "dog.png", []byte("woof"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got := decode[posts.PostWithAuthor](t, s.serve(httptest.NewRequest(http.MethodGet, path, nil), ""))
	assert.Equal(t, "/uploads/dog.png", got.ImageURL)
}

func TestForbiddenUpdateWritesNoImage(t *testing.T) {
	s := newTestServer(t)
	_, annToken := s.signupAndLogin("Ann", "a@x.com", "p1")
	_, bobToken := s.signupAndLogin("Bob", "b@x.com", "p2")

	rr := s.form(http.MethodPost, "/blogs", annToken, map[string]string{"title": "t", "content": "c"}, "", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decode[posts.Post](t, rr)

	rr = s.form(http.MethodPut, "/blogs/"+itoa(created.ID), bobToken, map[string]string{"title": "t", "content": "c"}, "evil.png", []byte("x"))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	_, err := os.Stat(filepath.Join(s.uploadDir, "evil.png"))
	assert.True(t, os.IsNotExist(err))
}

// failPostWrites makes every later insert or update of a post fail.
func (s *testServer) failPostWrites() {
	fail := func(tx *gorm.DB) {
		if tx.Statement.Table == "posts" {
			_ = tx.AddError(errors.New("disk full"))
		}
	}
	require.NoError(s.t, s.db.Callback().Create().Before("gorm:create").Register("test:fail_posts_create", fail))
	require.NoError(s.t, s.db.Callback().Update().Before("gorm:update").Register("test:fail_posts_update", fail))
}

func assertNoUpload(t *testing.T, dir, name string) {
	t.Helper()
	_, err := os.Stat(filepath.Join(dir, name))
	assert.True(t, os.IsNotExist(err), "%s should not be in the upload dir", name)
}

func TestFailedWriteDiscardsImage(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signupAndLogin("Ann", "a@x.com", "p1")

	rr := s.form(http.MethodPost, "/blogs", token, map[string]string{"title": "t", "content": "c"}, "", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decode[posts.Post](t, rr)

	s.failPostWrites()

	rr = s.form(http.MethodPost, "/blogs", token, map[string]string{"title": "t", "content": "c"}, "cat.png", []byte("meow"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assertNoUpload(t, s.uploadDir, "cat.png")

	rr = s.form(http.MethodPut, "/blogs/"+itoa(created.ID), token, map[string]string{"title": "t2", "content": "c"}, "dog.png", []byte("woof"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assertNoUpload(t, s.uploadDir, "dog.png")
}

func TestUploadTooLarge(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signupAndLogin("Ann", "a@x.com", "p1")

	big := bytes.Repeat([]byte("x"), 2<<20)
	rr := s.form(http.MethodPost, "/blogs", token, map[string]string{"title": "t", "content": "c"}, "big.png", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assertNoUpload(t, s.uploadDir, "big.png")

	list := decode[[]posts.PostWithAuthor](t, s.serve(httptest.NewRequest(http.MethodGet, "/blogs", nil), ""))
	assert.Empty(t, list)

	rr = s.form(http.MethodPost, "/blogs", token, map[string]string{"title": "t", "content": "c"}, "small.png", []byte("ok"))
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestBlogRequestErrors(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signupAndLogin("Ann", "a@x.com", "p1")

	tcs := []struct {
		name string
		rr   *httptest.ResponseRecorder
		want int
	}{
		{"create without token", s.form(http.MethodPost, "/blogs", "", map[string]string{"title": "t", "content": "c"}, "", nil), http.StatusUnauthorized},
		{"create without title", s.form(http.MethodPost, "/blogs", token, map[string]string{"content": "c"}, "", nil), http.StatusBadRequest},
		{"get bad id", s.serve(httptest.NewRequest(http.MethodGet, "/blogs/abc", nil), ""), http.StatusBadRequest},
		{"get missing", s.serve(httptest.NewRequest(http.MethodGet, "/blogs/999", nil), ""), http.StatusNotFound},
		{"update missing", s.form(http.MethodPut, "/blogs/999", token, map[string]string{"title": "t", "content": "c"}, "", nil), http.StatusNotFound},
		{"update without token", s.form(http.MethodPut, "/blogs/1", "", map[string]string{"title": "t", "content": "c"}, "", nil), http.StatusUnauthorized},
		{"delete without token", s.serve(httptest.NewRequest(http.MethodDelete, "/blogs/1", nil), ""), http.StatusUnauthorized},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.rr.Code, tc.rr.Body.String())
		})
	}
}

func TestHealthAndRequestID(t *testing.T) {
	s := newTestServer(t)
	rr := s.serve(httptest.NewRequest(http.MethodGet, "/health", nil), "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr = s.serve(req, "")
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/blogs", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := s.serve(req, "")

	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
