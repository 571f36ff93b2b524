// Command main runs the database seeder for Chirp.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"chirp/internal/bootstrap"
	"chirp/internal/config"
	"chirp/internal/seed"
)

func main() {
	opts := seed.DefaultOptions
	flag.IntVar(&opts.NumUsers, "users", opts.NumUsers, "Number of users to create")
	flag.IntVar(&opts.NumPosts, "posts", opts.NumPosts, "Number of posts to create")
	flag.IntVar(&opts.MaxLikes, "max-likes", opts.MaxLikes, "Maximum likes per post")
	flag.IntVar(&opts.MaxComments, "max-comments", opts.MaxComments, "Maximum comments per post")
	flag.BoolVar(&opts.Clean, "clean", opts.Clean, "Delete existing users, posts and notifications first")
	flag.Int64Var(&opts.Seed, "seed", 0, "Random seed for reproducible data (0 = random)")
	flag.BoolVar(&opts.FastHash, "fast-hash", false, "Hash passwords with the minimum bcrypt cost")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d posts, clean=%v\n", opts.NumUsers, opts.NumPosts, opts.Clean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("❌ Refusing to seed a production deployment")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	stores, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to store: %v", err)
	}
	defer func() { _ = stores.Close(context.Background()) }()

	res, err := seed.NewSeeder(stores, opts).Run(ctx)
	if err != nil {
		log.Printf("❌ Seeding failed: %v", err)
		return
	}

	log.Printf("✓ %d users, %d posts, %d likes, %d comments", len(res.Users), len(res.Posts), res.Likes, res.Comments)
	log.Println("✨ All done! Your store is now populated with test data.")
	log.Printf("📧 All test users have the password: %s (log in as demo@example.com)", seed.DefaultPassword)
}
