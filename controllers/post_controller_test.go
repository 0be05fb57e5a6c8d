package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonaken/board/models"
)

type uploadSpec struct {
	field       string
	filename    string
	contentType string
	content     []byte
}

// multipartForm builds a multipart body from plain fields plus an optional
// file part and returns it with its Content-Type header value.
func multipartForm(t *testing.T, fields map[string]string, file *uploadSpec) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, mw.WriteField(key, value))
	}
	if file != nil {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name=%q; filename=%q`, file.field, file.filename))
		header.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(file.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func postForm(t *testing.T, env *testEnv, method, target string, fields map[string]string, file *uploadSpec) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartForm(t, fields, file)
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func listPosts(t *testing.T, env *testEnv, query url.Values) (int, listResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/posts?"+query.Encode(), nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	var resp listResponse
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

type listResponse struct {
	Posts []models.Post `json:"posts"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

func TestCreatePost(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")

	w := postForm(t, env, http.MethodPost, "/api/posts", map[string]string{
		"type":        "bug",
		"title":       "  Login crash  ",
		"description": "App crashes on the login screen",
		"author":      "Daan",
		"contact":     "daan@example.com",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var got models.Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.TypeBug, got.Type)
	assert.Equal(t, models.StatusOpen, got.Status)
	assert.Equal(t, "Login crash", got.Title, "surrounding whitespace is trimmed")
	assert.Equal(t, "daan@example.com", got.Contact)
	assert.False(t, got.Notified)
	assert.Nil(t, got.Screenshot)
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
}

func TestCreatePostValidation(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")

	cases := []struct {
		name    string
		fields  map[string]string
		message string
	}{
		{"missing type", map[string]string{
			"title": "t", "description": "d", "author": "a",
		}, "type must be"},
		{"missing title", map[string]string{
			"type": "bug", "description": "d", "author": "a",
		}, "title is required"},
		{"blank title", map[string]string{
			"type": "bug", "title": "   ", "description": "d", "author": "a",
		}, "title is required"},
		{"missing description", map[string]string{
			"type": "request", "title": "t", "author": "a",
		}, "description is required"},
		{"missing author", map[string]string{
			"type": "request", "title": "t", "description": "d",
		}, "author is required"},
		{"author too long", map[string]string{
			"type": "bug", "title": "t", "description": "d",
			"author": string(bytes.Repeat([]byte("x"), 51)),
		}, "author must be at most 50 characters"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postForm(t, env, http.MethodPost, "/api/posts", tc.fields, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tc.message)
		})
	}

	var count int64
	require.NoError(t, env.db.Model(&models.Post{}).Count(&count).Error)
	assert.Zero(t, count, "rejected submissions must not create posts")
}

func TestCreatePostSanitizesMarkup(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")

	w := postForm(t, env, http.MethodPost, "/api/posts", map[string]string{
		"type":        "bug",
		"title":       `<script>alert(1)</script>Crash`,
		"description": "it <b>broke</b>",
		"author":      "Daan",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var got models.Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Crash", got.Title)
	assert.NotContains(t, got.Description, "<b>")
}

func TestCreatePostWithScreenshot(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")

	w := postForm(t, env, http.MethodPost, "/api/posts", map[string]string{
		"type":        "bug",
		"title":       "Broken layout",
		"description": "See screenshot",
		"author":      "Daan",
	}, &uploadSpec{
		field:       "screenshot",
		filename:    "shot.png",
		contentType: "image/png",
		content:     []byte("not really a png but close enough"),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var got models.Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.NotNil(t, got.Screenshot)
	assert.Equal(t, ".png", filepath.Ext(*got.Screenshot))

	stored := filepath.Join(env.uploadsDir, *got.Screenshot)
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "not really a png but close enough", string(data))
}

func TestCreatePostRejectsNonImageScreenshot(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")

	w := postForm(t, env, http.MethodPost, "/api/posts", map[string]string{
		"type":        "bug",
		"title":       "Broken layout",
		"description": "See attachment",
		"author":      "Daan",
	}, &uploadSpec{
		field:       "screenshot",
		filename:    "notes.txt",
		contentType: "text/plain",
		content:     []byte("plain text"),
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "jpeg, png, gif or webp")

	var count int64
	require.NoError(t, env.db.Model(&models.Post{}).Count(&count).Error)
	assert.Zero(t, count)

	entries, err := os.ReadDir(env.uploadsDir)
	if err == nil {
		assert.Empty(t, entries, "rejected upload must leave no file behind")
	}
}

func TestListPostsPagination(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")
	for n := 1; n <= 25; n++ {
		env.seedPost(t, models.Post{
			Title:     fmt.Sprintf("Post %02d", n),
			CreatedAt: at(n),
			UpdatedAt: at(n),
		})
	}

	query := url.Values{"page": {"2"}, "limit": {"10"}}
	code, resp := listPosts(t, env, query)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 25, resp.Total)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 10, resp.Limit)
	require.Len(t, resp.Posts, 10)
	// newest activity first, so page two starts at the 11th newest
	assert.Equal(t, "Post 15", resp.Posts[0].Title)
	assert.Equal(t, "Post 06", resp.Posts[9].Title)
}

func TestListPostsClampsLimit(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")
	env.seedPost(t, models.Post{})

	code, resp := listPosts(t, env, url.Values{"limit": {"5000"}})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 100, resp.Limit)

	code, resp = listPosts(t, env, url.Values{"limit": {"0"}, "page": {"-3"}})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, resp.Limit)
	assert.Equal(t, 1, resp.Page)
}

func TestListPostsHidesArchivedByDefault(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")
	open := env.seedPost(t, models.Post{Title: "Still open"})
	archived := env.seedPost(t, models.Post{Title: "Old one", Status: models.StatusArchived})

	code, resp := listPosts(t, env, url.Values{})
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Posts, 1)
	assert.Equal(t, open.ID, resp.Posts[0].ID)

	code, resp = listPosts(t, env, url.Values{"status": {"archived"}})
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Posts, 1)
	assert.Equal(t, archived.ID, resp.Posts[0].ID)
}

func TestListPostsFiltersAndSearch(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")
	env.seedPost(t, models.Post{Title: "Login crash", Type: models.TypeBug})
	env.seedPost(t, models.Post{Title: "Dark mode", Type: models.TypeRequest})
	env.seedPost(t, models.Post{
		Title:       "Slow sync",
		Type:        models.TypeBug,
		Description: "syncing takes minutes after LOGIN",
	})

	code, resp := listPosts(t, env, url.Values{"type": {"request"}})
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Posts, 1)
	assert.Equal(t, "Dark mode", resp.Posts[0].Title)

	// matches title and description, case-insensitively
	code, resp = listPosts(t, env, url.Values{"search": {"login"}})
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, resp.Posts, 2)

	code, resp = listPosts(t, env, url.Values{"search": {"LOGIN"}, "type": {"bug"}, "status": {"open"}})
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Posts, 2)
}

func TestListPostsCommentCount(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")
	post := env.seedPost(t, models.Post{})
	other := env.seedPost(t, models.Post{Title: "Quiet one"})
	for i := 0; i < 3; i++ {
		require.NoError(t, env.db.Create(&models.Comment{
			PostID: post.ID, Author: "Lisa", Body: fmt.Sprintf("note %d", i), CreatedAt: at(i),
		}).Error)
	}

	code, resp := listPosts(t, env, url.Values{})
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Posts, 2)
	counts := map[uint]int64{}
	for _, p := range resp.Posts {
		counts[p.ID] = p.CommentCount
	}
	assert.EqualValues(t, 3, counts[post.ID])
	assert.EqualValues(t, 0, counts[other.ID])
}

func TestGetPostDetail(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")
	post := env.seedPost(t, models.Post{})
	for i := 0; i < 3; i++ {
		require.NoError(t, env.db.Create(&models.Comment{
			PostID: post.ID, Author: "Lisa", Body: fmt.Sprintf("note %d", i), CreatedAt: at(i),
		}).Error)
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, env.db.Create(&models.FritsUpdate{
			PostID: post.ID, Message: fmt.Sprintf("update %d", i), CreatedAt: at(i),
		}).Error)
	}

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/posts/%d", post.ID), nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var got models.Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Comments, 3)
	assert.Equal(t, "note 0", got.Comments[0].Body, "comments come oldest first")
	require.Len(t, got.FritsUpdates, 2)
	assert.Equal(t, "update 1", got.FritsUpdates[0].Message, "frits updates come newest first")
}

func TestGetPostNotFound(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")
	req := httptest.NewRequest(http.MethodGet, "/api/posts/4242", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "post not found")
}

func TestUpdatePostPartialEdit(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")
	post := env.seedPost(t, models.Post{Title: "Old title", Description: "Old description"})
	before := env.reload(t, post.ID)

	w := postForm(t, env, http.MethodPatch, fmt.Sprintf("/api/posts/%d", post.ID),
		map[string]string{"title": "New title"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	after := env.reload(t, post.ID)
	assert.Equal(t, "New title", after.Title)
	assert.Equal(t, "Old description", after.Description, "omitted fields stay untouched")
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
}

func TestUpdatePostScreenshotLifecycle(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")
	post := env.seedPost(t, models.Post{})

	// attach
	w := postForm(t, env, http.MethodPatch, fmt.Sprintf("/api/posts/%d", post.ID),
		nil, &uploadSpec{
			field:       "screenshot",
			filename:    "first.png",
			contentType: "image/png",
			content:     []byte("first"),
		})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	withShot := env.reload(t, post.ID)
	require.NotNil(t, withShot.Screenshot)
	firstPath := filepath.Join(env.uploadsDir, *withShot.Screenshot)
	_, err := os.Stat(firstPath)
	require.NoError(t, err)

	// replace, reclaiming the old file
	w = postForm(t, env, http.MethodPatch, fmt.Sprintf("/api/posts/%d", post.ID),
		nil, &uploadSpec{
			field:       "screenshot",
			filename:    "second.jpg",
			contentType: "image/jpeg",
			content:     []byte("second"),
		})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	replaced := env.reload(t, post.ID)
	require.NotNil(t, replaced.Screenshot)
	assert.NotEqual(t, *withShot.Screenshot, *replaced.Screenshot)
	_, err = os.Stat(firstPath)
	assert.True(t, os.IsNotExist(err), "replaced screenshot file is removed")

	// remove
	w = postForm(t, env, http.MethodPatch, fmt.Sprintf("/api/posts/%d", post.ID),
		map[string]string{"remove_screenshot": "true"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	removed := env.reload(t, post.ID)
	assert.Nil(t, removed.Screenshot)
	_, err = os.Stat(filepath.Join(env.uploadsDir, *replaced.Screenshot))
	assert.True(t, os.IsNotExist(err))
}

func TestUpdatePostNotFound(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")
	w := postForm(t, env, http.MethodPatch, "/api/posts/4242",
		map[string]string{"title": "whatever"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeletePostCascades(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")
	post := env.seedPost(t, models.Post{})
	require.NoError(t, env.db.Create(&models.Comment{
		PostID: post.ID, Author: "Lisa", Body: "note", CreatedAt: at(0),
	}).Error)
	require.NoError(t, env.db.Create(&models.FritsUpdate{
		PostID: post.ID, Message: "working on it", CreatedAt: at(1),
	}).Error)

	// give it a screenshot through the upload path so there is a file on disk
	w := postForm(t, env, http.MethodPatch, fmt.Sprintf("/api/posts/%d", post.ID),
		nil, &uploadSpec{
			field:       "screenshot",
			filename:    "shot.png",
			contentType: "image/png",
			content:     []byte("bytes"),
		})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	withShot := env.reload(t, post.ID)
	require.NotNil(t, withShot.Screenshot)
	shotPath := filepath.Join(env.uploadsDir, *withShot.Screenshot)

	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/posts/%d", post.ID), nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok": true}`, rec.Body.String())

	var posts, comments, updates int64
	require.NoError(t, env.db.Model(&models.Post{}).Count(&posts).Error)
	require.NoError(t, env.db.Model(&models.Comment{}).Count(&comments).Error)
	require.NoError(t, env.db.Model(&models.FritsUpdate{}).Count(&updates).Error)
	assert.Zero(t, posts)
	assert.Zero(t, comments)
	assert.Zero(t, updates)

	_, err := os.Stat(shotPath)
	assert.True(t, os.IsNotExist(err))
}

func TestDeletePostNotFound(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0")
	req := httptest.NewRequest(http.MethodDelete, "/api/posts/4242", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
