// Package bootstrap wires stores and Redis for the runtime commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"chirp/internal/cache"
	"chirp/internal/config"
	"chirp/internal/database"
	"chirp/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// Stores groups the repositories selected by STORE_DRIVER together with their backing handles.
type Stores struct {
	Users         repository.UserRepository
	Posts         repository.PostRepository
	Notifications repository.NotificationRepository

	// Exactly one of DB and Mongo is set.
	DB      *gorm.DB
	Mongo   *mongo.Client
	MongoDB *mongo.Database
}

// NewGormStores builds GORM-backed repositories over db.
func NewGormStores(db *gorm.DB) *Stores {
	return &Stores{
		Users:         repository.NewUserRepository(db),
		Posts:         repository.NewPostRepository(db),
		Notifications: repository.NewNotificationRepository(db),
		DB:            db,
	}
}

// NewMongoStores builds Mongo-backed repositories over db.
func NewMongoStores(client *mongo.Client, db *mongo.Database) *Stores {
	return &Stores{
		Users:         repository.NewMongoUserRepository(db),
		Posts:         repository.NewMongoPostRepository(db),
		Notifications: repository.NewMongoNotificationRepository(db),
		Mongo:         client,
		MongoDB:       db,
	}
}

// Ping reports whether the backing store is reachable.
func (s *Stores) Ping(ctx context.Context) error {
	switch {
	case s == nil:
		return errors.New("stores not initialized")
	case s.Mongo != nil:
		return s.Mongo.Ping(ctx, nil)
	case s.DB != nil:
		sqlDB, err := s.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	default:
		return errors.New("no store configured")
	}
}

// Close releases the backing store.
func (s *Stores) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if s.Mongo != nil {
		return s.Mongo.Disconnect(ctx)
	}
	return database.Close(s.DB)
}

// Reset deletes every user, post and notification.
func (s *Stores) Reset(ctx context.Context) error {
	if s.MongoDB != nil {
		for _, name := range []string{database.NotificationsCollection, database.PostsCollection, database.UsersCollection} {
			if err := s.MongoDB.Collection(name).Drop(ctx); err != nil {
				return fmt.Errorf("drop %s: %w", name, err)
			}
		}
		return database.EnsureMongoIndexes(ctx, s.MongoDB)
	}

	tx := s.DB.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	persistent := database.PersistentModels()
	for i := len(persistent) - 1; i >= 0; i-- {
		if err := tx.Unscoped().Delete(persistent[i]).Error; err != nil {
			return fmt.Errorf("reset %T: %w", persistent[i], err)
		}
	}
	return nil
}

// OpenStores connects to the store selected by cfg.StoreDriver.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	if cfg.StoreDriver == config.StoreDriverMongo {
		client, db, err := database.ConnectMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewMongoStores(client, db), nil
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return NewGormStores(db), nil
}

// InitRuntime connects the stores and Redis. The Redis client is nil when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config) (*Stores, *redis.Client, error) {
	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	return stores, cache.Connect(ctx, cfg.RedisURL), nil
}
