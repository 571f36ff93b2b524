package repository

import (
	"context"
	"errors"
	"log/slog"

	"chirp/internal/models"
	"chirp/internal/observability"

	"gorm.io/gorm"
)

// PostRepository defines persistence operations for the post aggregate.
// Likes and comments travel with the post, so Update persists the whole document.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.Post, error)
	// List returns posts newest first along with the total count.
	// An empty authorID lists every post.
	List(ctx context.Context, authorID string, limit, offset int) ([]*models.Post, int64, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id string) error
}

type postRepository struct {
	db  *gorm.DB
	log observability.RepoLogger
}

// NewPostRepository returns a GORM-backed PostRepository.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", "posts")()

	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		r.log.Failed(ctx, "create", err)
		return models.NewInternalError(err)
	}
	r.log.Created(ctx, slog.String("id", post.ID), slog.String("user_id", post.UserID))
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	defer observability.TrackQuery("get_by_id", "posts")()

	var post models.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	defer observability.TrackQuery("get_by_ids", "posts")()

	var posts []*models.Post
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) List(ctx context.Context, authorID string, limit, offset int) ([]*models.Post, int64, error) {
	defer observability.TrackQuery("list", "posts")()
	limit, offset = pageBounds(limit, offset)

	byAuthor := func(db *gorm.DB) *gorm.DB {
		if authorID != "" {
			return db.Where("user_id = ?", authorID)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Scopes(byAuthor).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var posts []*models.Post
	err := r.db.WithContext(ctx).
		Scopes(byAuthor).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("update", "posts")()

	result := r.db.WithContext(ctx).
		Model(post).
		Select("text", "image", "likes", "comments", "updated_at").
		Updates(post)
	if err := result.Error; err != nil {
		r.log.Failed(ctx, "update", err)
		return models.NewInternalError(err)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Post", post.ID)
	}
	r.log.Updated(ctx, slog.String("id", post.ID),
		slog.Int("likes", len(post.Likes)), slog.Int("comments", len(post.Comments)))
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	defer observability.TrackQuery("delete", "posts")()

	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Post{})
	if err := result.Error; err != nil {
		r.log.Failed(ctx, "delete", err)
		return models.NewInternalError(err)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	r.log.Deleted(ctx, slog.String("id", id))
	return nil
}
