package server

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"chirp/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePost(t *testing.T) {
	ts := newTestServer(t)
	token, alice := ts.register(t, "alice")

	tests := []struct {
		name           string
		token          string
		body           fiber.Map
		expectedStatus int
	}{
		{"Success", token, fiber.Map{"text": "hello world"}, http.StatusCreated},
		{"With Image", token, fiber.Map{"text": "pic", "image": "https://img.example.com/p.png"}, http.StatusCreated},
		{"Blank Text", token, fiber.Map{"text": "   "}, http.StatusBadRequest},
		{"Too Long", token, fiber.Map{"text": strings.Repeat("a", 5001)}, http.StatusBadRequest},
		{"Bad Image URL", token, fiber.Map{"text": "pic", "image": "ftp://nope"}, http.StatusBadRequest},
		{"No Token", "", fiber.Map{"text": "hello"}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ts.do(t, http.MethodPost, "/api/posts", tt.token, tt.body)
			require.Equal(t, tt.expectedStatus, status, "%s", body)
			if status != http.StatusCreated {
				return
			}
			post := decode[postEnvelope](t, body).Post
			assert.NotEmpty(t, post.ID)
			assert.Equal(t, alice.ID, post.UserID)
			assert.Equal(t, "alice", post.Author.Username)
			assert.Empty(t, post.Likes)
			assert.Empty(t, post.Comments)
		})
	}
}

func TestGetPosts_Pagination(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.register(t, "alice")

	for i := 0; i < 15; i++ {
		ts.createPost(t, token, fmt.Sprintf("post %d", i))
	}

	status, body := ts.do(t, http.MethodGet, "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, status)
	first := decode[models.PostPage](t, body)
	assert.Len(t, first.Posts, 10)
	assert.Equal(t, 1, first.CurrentPage)
	assert.Equal(t, 2, first.TotalPages)
	assert.Equal(t, int64(15), first.TotalPosts)
	assert.Equal(t, "post 14", first.Posts[0].Text)

	status, body = ts.do(t, http.MethodGet, "/api/posts?page=2", "", nil)
	require.Equal(t, http.StatusOK, status)
	second := decode[models.PostPage](t, body)
	assert.Len(t, second.Posts, 5)
	assert.Equal(t, 2, second.CurrentPage)

	status, body = ts.do(t, http.MethodGet, "/api/posts?page=abc", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, decode[models.PostPage](t, body).CurrentPage)
}

func TestGetPosts_Empty(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, status)
	page := decode[models.PostPage](t, body)
	assert.Empty(t, page.Posts)
	assert.Equal(t, 0, page.TotalPages)
	assert.Equal(t, int64(0), page.TotalPosts)
	assert.Contains(t, string(body), `"posts":[]`)
}

func TestGetPost(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.register(t, "alice")
	post := ts.createPost(t, token, "hello")

	status, body := ts.do(t, http.MethodGet, "/api/posts/"+post.ID, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hello", decode[postEnvelope](t, body).Post.Text)

	status, body = ts.do(t, http.MethodGet, "/api/posts/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, models.CodeNotFound, decode[models.ErrorResponse](t, body).Code)
}

func TestEngagementFlow(t *testing.T) {
	ts := newTestServer(t)
	aliceToken, alice := ts.register(t, "alice")
	bobToken, bob := ts.register(t, "bob")
	post := ts.createPost(t, aliceToken, "hello")

	// Bob likes, then unlikes, then likes again.
	status, body := ts.do(t, http.MethodPut, "/api/posts/"+post.ID+"/like", bobToken, nil)
	require.Equal(t, http.StatusOK, status, "%s", body)
	assert.Equal(t, []string{bob.ID}, decode[postEnvelope](t, body).Post.Likes)

	status, body = ts.do(t, http.MethodPut, "/api/posts/"+post.ID+"/like", bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[postEnvelope](t, body).Post.Likes)

	status, _ = ts.do(t, http.MethodPut, "/api/posts/"+post.ID+"/like", bobToken, nil)
	require.Equal(t, http.StatusOK, status)

	// Bob comments.
	status, body = ts.do(t, http.MethodPost, "/api/posts/"+post.ID+"/comment", bobToken, fiber.Map{"text": "nice post"})
	require.Equal(t, http.StatusCreated, status, "%s", body)
	commented := decode[postEnvelope](t, body).Post
	require.Len(t, commented.Comments, 1)
	comment := commented.Comments[0]
	assert.Equal(t, "nice post", comment.Text)
	assert.Equal(t, "bob", comment.Author.Username)

	// Alice likes Bob's comment.
	status, body = ts.do(t, http.MethodPut, "/api/posts/"+post.ID+"/comments/"+comment.ID+"/like", aliceToken, nil)
	require.Equal(t, http.StatusOK, status, "%s", body)
	assert.Equal(t, []string{alice.ID}, decode[postEnvelope](t, body).Post.Comments[0].Likes)

	status, _ = ts.do(t, http.MethodPut, "/api/posts/"+post.ID+"/comments/missing/like", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// Alice's feed, newest first. The unlike produced nothing.
	status, body = ts.do(t, http.MethodGet, "/api/notifications", aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	feed := decode[[]models.NotificationView](t, body)
	require.Len(t, feed, 3)
	assert.Equal(t, models.NotificationComment, feed[0].Type)
	assert.Equal(t, "nice post", feed[0].Text)
	assert.Equal(t, "bob", feed[0].FromUser.Username)
	require.NotNil(t, feed[0].Post)
	assert.Equal(t, "hello", feed[0].Post.Text)
	assert.Equal(t, models.NotificationLike, feed[1].Type)
	assert.Equal(t, models.NotificationLike, feed[2].Type)

	// Comment likes never notify.
	status, body = ts.do(t, http.MethodGet, "/api/notifications", bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[[]models.NotificationView](t, body))
}

func TestSelfEngagementDoesNotNotify(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.register(t, "alice")
	post := ts.createPost(t, token, "talking to myself")

	status, _ := ts.do(t, http.MethodPut, "/api/posts/"+post.ID+"/like", token, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = ts.do(t, http.MethodPost, "/api/posts/"+post.ID+"/comment", token, fiber.Map{"text": "me again"})
	require.Equal(t, http.StatusCreated, status)

	status, body := ts.do(t, http.MethodGet, "/api/notifications", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "[]", strings.TrimSpace(string(body)))
}

func TestAddComment_Validation(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.register(t, "alice")
	post := ts.createPost(t, token, "hello")

	status, _ := ts.do(t, http.MethodPost, "/api/posts/"+post.ID+"/comment", token, fiber.Map{"text": " "})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.do(t, http.MethodPost, "/api/posts/"+post.ID+"/comment", token, fiber.Map{"text": strings.Repeat("x", 1001)})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.do(t, http.MethodPost, "/api/posts/missing/comment", token, fiber.Map{"text": "hi"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = ts.do(t, http.MethodPut, "/api/posts/missing/like", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDeletePost(t *testing.T) {
	ts := newTestServer(t)
	aliceToken, _ := ts.register(t, "alice")
	bobToken, _ := ts.register(t, "bob")
	post := ts.createPost(t, aliceToken, "mine")

	status, body := ts.do(t, http.MethodDelete, "/api/posts/"+post.ID, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, models.CodeForbidden, decode[models.ErrorResponse](t, body).Code)

	status, body = ts.do(t, http.MethodDelete, "/api/posts/"+post.ID, aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, decode[map[string]any](t, body)["success"])

	status, _ = ts.do(t, http.MethodGet, "/api/posts/"+post.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = ts.do(t, http.MethodDelete, "/api/posts/"+post.ID, aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}
