package service

import (
	"context"
	"sync"
	"testing"

	"chirp/internal/database"
	"chirp/internal/featureflags"
	"chirp/internal/models"
	"chirp/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testSecret = "test-secret-that-is-at-least-32-characters"

type publishedEvent struct {
	userID    string
	eventType string
	payload   any
}

// recordingPublisher captures realtime events instead of sending them to Redis.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, userID, eventType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{userID: userID, eventType: eventType, payload: payload})
	return p.err
}

func (p *recordingPublisher) Events() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

type testEnv struct {
	db        *gorm.DB
	mr        *miniredis.Miniredis
	rdb       *redis.Client
	userRepo  repository.UserRepository
	postRepo  repository.PostRepository
	notesRepo repository.NotificationRepository
	publisher *recordingPublisher
	auth      *AuthService
	users     *UserService
	notes     *NotificationService
	posts     *PostService
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

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := &testEnv{
		db:        db,
		mr:        mr,
		rdb:       rdb,
		userRepo:  repository.NewUserRepository(db),
		postRepo:  repository.NewPostRepository(db),
		notesRepo: repository.NewNotificationRepository(db),
		publisher: &recordingPublisher{},
	}
	env.auth = NewAuthService(env.userRepo, rdb, AuthConfig{
		Secret:     testSecret,
		Issuer:     "chirp-api",
		Audience:   "chirp-client",
		BcryptCost: bcrypt.MinCost,
	})
	env.users = NewUserService(env.userRepo, rdb)
	env.notes = NewNotificationService(env.notesRepo, env.postRepo, env.users, env.publisher,
		featureflags.NewManager("realtime_notifications=on"))
	env.posts = NewPostService(env.postRepo, env.users, env.notes)
	return env
}

func (e *testEnv) signup(t *testing.T, username string) *models.User {
	t.Helper()
	u, err := e.auth.Signup(context.Background(), SignupInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	return u
}
