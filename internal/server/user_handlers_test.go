package server

import (
	"net/http"
	"testing"

	"chirp/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProfiles(t *testing.T) {
	ts := newTestServer(t)
	token, alice := ts.register(t, "alice")

	status, body := ts.do(t, http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, alice.ID, decode[userEnvelope](t, body).User.ID)
	assert.NotContains(t, string(body), "password")

	status, body = ts.do(t, http.MethodGet, "/api/users/"+alice.ID, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", decode[userEnvelope](t, body).User.Username)

	status, body = ts.do(t, http.MethodGet, "/api/users/unknown-id", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, models.CodeNotFound, decode[models.ErrorResponse](t, body).Code)
}

func TestUpdateProfile(t *testing.T) {
	ts := newTestServer(t)
	aliceToken, alice := ts.register(t, "alice")
	_, bob := ts.register(t, "bob")

	tests := []struct {
		name           string
		path           string
		body           fiber.Map
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "Update Me",
			path:           "/api/users/me",
			body:           fiber.Map{"bio": "hello there", "profilePic": "https://img.example.com/a.png"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Update Self By ID",
			path:           "/api/users/" + alice.ID,
			body:           fiber.Map{"username": "alice_w"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Other User Forbidden",
			path:           "/api/users/" + bob.ID,
			body:           fiber.Map{"bio": "hacked"},
			expectedStatus: http.StatusForbidden,
			expectedCode:   models.CodeForbidden,
		},
		{
			name:           "Username Taken",
			path:           "/api/users/me",
			body:           fiber.Map{"username": "BOB"},
			expectedStatus: http.StatusConflict,
			expectedCode:   models.CodeConflict,
		},
		{
			name:           "Email Taken",
			path:           "/api/users/me",
			body:           fiber.Map{"email": "bob@example.com"},
			expectedStatus: http.StatusConflict,
			expectedCode:   models.CodeConflict,
		},
		{
			name:           "Blank Username",
			path:           "/api/users/me",
			body:           fiber.Map{"username": "  "},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   models.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ts.do(t, http.MethodPatch, tt.path, aliceToken, tt.body)
			require.Equal(t, tt.expectedStatus, status, "%s", body)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decode[models.ErrorResponse](t, body).Code)
			}
		})
	}

	status, body := ts.do(t, http.MethodGet, "/api/users/me", aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	me := decode[userEnvelope](t, body).User
	assert.Equal(t, "alice_w", me.Username)
	assert.Equal(t, "hello there", me.Bio)
	assert.Equal(t, "https://img.example.com/a.png", me.ProfilePic)
	assert.Equal(t, "alice@example.com", me.Email)
}

func TestUpdateProfile_RefreshesAuthorSummary(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.register(t, "alice")
	post := ts.createPost(t, token, "hello")

	// Warm the summary cache.
	status, _ := ts.do(t, http.MethodGet, "/api/posts/"+post.ID, "", nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, http.MethodPatch, "/api/users/me", token, fiber.Map{"username": "alice_renamed"})
	require.Equal(t, http.StatusOK, status)

	status, body := ts.do(t, http.MethodGet, "/api/posts/"+post.ID, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice_renamed", decode[postEnvelope](t, body).Post.Author.Username)
}

func TestGetUserPosts(t *testing.T) {
	ts := newTestServer(t)
	aliceToken, alice := ts.register(t, "alice")
	bobToken, _ := ts.register(t, "bob")

	ts.createPost(t, aliceToken, "a1")
	ts.createPost(t, bobToken, "b1")
	ts.createPost(t, aliceToken, "a2")

	status, body := ts.do(t, http.MethodGet, "/api/users/"+alice.ID+"/posts", "", nil)
	require.Equal(t, http.StatusOK, status)
	page := decode[models.PostPage](t, body)
	require.Len(t, page.Posts, 2)
	assert.Equal(t, "a2", page.Posts[0].Text)
	assert.Equal(t, "a1", page.Posts[1].Text)
	assert.Equal(t, int64(2), page.TotalPosts)
	assert.Equal(t, 1, page.TotalPages)

	status, body = ts.do(t, http.MethodGet, "/api/users/nobody/posts", "", nil)
	require.Equal(t, http.StatusOK, status)
	empty := decode[models.PostPage](t, body)
	assert.Empty(t, empty.Posts)
	assert.Equal(t, 0, empty.TotalPages)
	assert.Equal(t, int64(0), empty.TotalPosts)

	status, body = ts.do(t, http.MethodGet, "/api/posts?page=9223372036854775807", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[models.PostPage](t, body).Posts)
}
