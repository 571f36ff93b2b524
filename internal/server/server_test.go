package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"chirp/internal/bootstrap"
	"chirp/internal/config"
	"chirp/internal/database"
	"chirp/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testSecret = "test-secret-that-is-at-least-32-characters"

type testServer struct {
	srv *Server
	app *fiber.App
	mr  *miniredis.Miniredis
	rdb *redis.Client
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		JWTSecret:      testSecret,
		JWTIssuer:      "chirp-api",
		JWTAudience:    "chirp-client",
		AllowedOrigins: "http://localhost:5173",
		FeatureFlags:   "realtime_notifications=on",
		StoreDriver:    config.StoreDriverSQLite,
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	srv, err := NewServerWithDeps(testConfig(), bootstrap.NewGormStores(setupTestDB(t)), rdb)
	require.NoError(t, err)

	return &testServer{srv: srv, app: srv.NewApp(), mr: mr, rdb: rdb}
}

// do sends a request through the full middleware stack and returns status and body.
func (ts *testServer) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	contentType := ""
	if body != nil {
		contentType = "application/json"
	}
	return ts.send(t, method, path, token, contentType, reader)
}

// doRaw sends an unauthenticated request with a raw body.
func (ts *testServer) doRaw(t *testing.T, method, path, contentType string, body io.Reader) (int, []byte) {
	t.Helper()
	return ts.send(t, method, path, "", contentType, body)
}

func (ts *testServer) send(t *testing.T, method, path, token, contentType string, body io.Reader) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), "body: %s", raw)
	return v
}

type userEnvelope struct {
	User models.User `json:"user"`
}

type postEnvelope struct {
	Post models.PostView `json:"post"`
}

// register signs up username and logs in, returning the token and user.
func (ts *testServer) register(t *testing.T, username string) (string, models.User) {
	t.Helper()
	status, body := ts.do(t, http.MethodPost, "/api/auth/signup", "", fiber.Map{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, status, "signup: %s", body)

	status, body = ts.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"email":    username + "@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, status, "login: %s", body)

	res := decode[struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}](t, body)
	require.NotEmpty(t, res.Token)
	return res.Token, res.User
}

func (ts *testServer) createPost(t *testing.T, token, text string) models.PostView {
	t.Helper()
	status, body := ts.do(t, http.MethodPost, "/api/posts", token, fiber.Map{"text": text})
	require.Equal(t, http.StatusCreated, status, "create post: %s", body)
	return decode[postEnvelope](t, body).Post
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "up", decode[map[string]any](t, body)["status"])

	status, body = ts.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	ready := decode[map[string]any](t, body)
	assert.Equal(t, "healthy", ready["status"])
	assert.Equal(t, map[string]any{"store": "healthy", "redis": "healthy"}, ready["checks"])
}

func TestReadinessWithoutRedis(t *testing.T) {
	srv, err := NewServerWithDeps(testConfig(), bootstrap.NewGormStores(setupTestDB(t)), nil)
	require.NoError(t, err)
	ts := &testServer{srv: srv, app: srv.NewApp()}

	status, body := ts.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unavailable", decode[map[string]any](t, body)["checks"].(map[string]any)["redis"])

	// The API itself keeps working without Redis.
	token, _ := ts.register(t, "solo")
	ts.createPost(t, token, "no cache today")

	status, _ = ts.do(t, http.MethodPost, "/api/ws/ticket", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestNewServerWithDeps_RequiresStores(t *testing.T) {
	_, err := NewServerWithDeps(testConfig(), nil, nil)
	assert.Error(t, err)
}

func TestUnknownRouteIs404(t *testing.T) {
	ts := newTestServer(t)
	status, _ := ts.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestFeatureFlagsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.register(t, "flagger")

	status, body := ts.do(t, http.MethodGet, "/api/feature-flags", token, nil)
	require.Equal(t, http.StatusOK, status)
	res := decode[struct {
		Raw       map[string]string `json:"raw"`
		Evaluated map[string]bool   `json:"evaluated"`
	}](t, body)
	assert.Equal(t, "on", res.Raw["realtime_notifications"])
	assert.True(t, res.Evaluated["realtime_notifications"])
}
