package repository

import (
	"context"
	"log/slog"

	"chirp/internal/models"
	"chirp/internal/observability"

	"gorm.io/gorm"
)

// NotificationListLimit caps how many notifications a recipient sees.
const NotificationListLimit = 50

// NotificationRepository defines persistence operations for notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	// ListByRecipient returns at most limit notifications for userID, newest first.
	ListByRecipient(ctx context.Context, userID string, limit int) ([]*models.Notification, error)
}

type notificationRepository struct {
	db  *gorm.DB
	log observability.RepoLogger
}

// NewNotificationRepository returns a GORM-backed NotificationRepository.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db, log: observability.NewRepoLogger("notifications")}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	defer observability.TrackQuery("create", "notifications")()

	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		r.log.Failed(ctx, "create", err)
		return models.NewInternalError(err)
	}
	r.log.Created(ctx, slog.String("id", n.ID),
		slog.String("type", string(n.Type)), slog.String("recipient", n.UserID))
	return nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	defer observability.TrackQuery("list_by_recipient", "notifications")()

	if limit <= 0 || limit > NotificationListLimit {
		limit = NotificationListLimit
	}

	var out []*models.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}
