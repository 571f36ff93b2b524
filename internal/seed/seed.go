package seed

import (
	"context"
	"fmt"
	"log/slog"

	"chirp/internal/bootstrap"
	"chirp/internal/featureflags"
	"chirp/internal/models"
	"chirp/internal/observability"
	"chirp/internal/service"

	"golang.org/x/crypto/bcrypt"
)

// Options configures a seeding run.
type Options struct {
	NumUsers    int
	NumPosts    int
	MaxLikes    int
	MaxComments int
	Clean       bool
	// Seed makes runs reproducible. Zero picks a random seed.
	Seed int64
	// FastHash uses the minimum bcrypt cost.
	FastHash bool
}

// DefaultOptions is a small, well-connected data set.
var DefaultOptions = Options{
	NumUsers:    20,
	NumPosts:    100,
	MaxLikes:    8,
	MaxComments: 4,
	Clean:       true,
}

// Result summarizes what a run created.
type Result struct {
	Users        []*models.User
	Posts        []*models.PostView
	Likes        int
	Comments     int
	CommentLikes int
}

// Seeder writes demo data through the services.
type Seeder struct {
	stores  *bootstrap.Stores
	auth    *service.AuthService
	posts   *service.PostService
	factory *Factory
	opts    Options
}

// NewSeeder creates a Seeder over stores. Realtime publishing is disabled.
func NewSeeder(stores *bootstrap.Stores, opts Options) *Seeder {
	cost := bcrypt.DefaultCost
	if opts.FastHash {
		cost = bcrypt.MinCost
	}
	users := service.NewUserService(stores.Users, nil)
	notifications := service.NewNotificationService(
		stores.Notifications, stores.Posts, users, nil, featureflags.NewManager(""))

	return &Seeder{
		stores:  stores,
		auth:    service.NewAuthService(stores.Users, nil, service.AuthConfig{Secret: "seed", BcryptCost: cost}),
		posts:   service.NewPostService(stores.Posts, users, notifications),
		factory: NewFactory(opts.Seed),
		opts:    opts,
	}
}

// Run seeds users, then posts, then likes and comments on those posts.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	log := observability.Log()
	log.Info("seeding started",
		slog.Int("users", s.opts.NumUsers),
		slog.Int("posts", s.opts.NumPosts),
	)

	if s.opts.Clean {
		if err := s.stores.Reset(ctx); err != nil {
			return nil, fmt.Errorf("clean: %w", err)
		}
	}

	res := &Result{}
	users, err := s.seedUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}
	res.Users = users

	if len(users) == 0 {
		return res, nil
	}

	for i := 0; i < s.opts.NumPosts; i++ {
		author := users[s.factory.Intn(len(users))]
		post, err := s.posts.CreatePost(ctx, author.ID, s.factory.PostText(), s.factory.PostImage())
		if err != nil {
			return nil, fmt.Errorf("seed post %d: %w", i, err)
		}
		postID := post.ID
		if post, err = s.engage(ctx, post, users, res); err != nil {
			return nil, fmt.Errorf("seed engagement on %s: %w", postID, err)
		}
		res.Posts = append(res.Posts, post)
	}

	log.Info("seeding completed",
		slog.Int("users", len(res.Users)),
		slog.Int("posts", len(res.Posts)),
		slog.Int("likes", res.Likes),
		slog.Int("comments", res.Comments),
		slog.Int("comment_likes", res.CommentLikes),
	)
	return res, nil
}

func (s *Seeder) seedUsers(ctx context.Context) ([]*models.User, error) {
	users := make([]*models.User, 0, s.opts.NumUsers)
	for i := 0; i < s.opts.NumUsers; i++ {
		in := s.factory.Signup(i)
		if i == 0 {
			// A predictable account for manual testing.
			in.Username, in.Email = "demo", "demo@example.com"
		}
		u, err := s.auth.Signup(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("signup %s: %w", in.Username, err)
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *Seeder) engage(
	ctx context.Context, post *models.PostView, users []*models.User, res *Result,
) (*models.PostView, error) {
	var err error
	for _, i := range s.factory.Pick(len(users), s.factory.Intn(s.opts.MaxLikes+1)) {
		if post, err = s.posts.ToggleLike(ctx, post.ID, users[i].ID); err != nil {
			return post, err
		}
		res.Likes++
	}

	for n := s.factory.Intn(s.opts.MaxComments + 1); n > 0; n-- {
		commenter := users[s.factory.Intn(len(users))]
		if post, err = s.posts.AddComment(ctx, post.ID, commenter.ID, s.factory.CommentText()); err != nil {
			return post, err
		}
		res.Comments++

		comment := post.Comments[len(post.Comments)-1]
		for _, i := range s.factory.Pick(len(users), s.factory.Intn(3)) {
			if post, err = s.posts.ToggleCommentLike(ctx, post.ID, comment.ID, users[i].ID); err != nil {
				return post, err
			}
			res.CommentLikes++
		}
	}
	return post, nil
}
