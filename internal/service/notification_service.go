package service

import (
	"context"
	"log/slog"

	"chirp/internal/featureflags"
	"chirp/internal/models"
	"chirp/internal/notifications"
	"chirp/internal/observability"
	"chirp/internal/repository"
)

// Publisher pushes an event to a user's realtime channel.
type Publisher interface {
	PublishEvent(ctx context.Context, userID, eventType string, payload any) error
}

// NotificationService records engagement notifications and serves the recipient's feed.
type NotificationService struct {
	repo      repository.NotificationRepository
	postRepo  repository.PostRepository
	users     *UserService
	publisher Publisher
	flags     *featureflags.Manager
}

// NewNotificationService creates a NotificationService. publisher may be nil.
func NewNotificationService(
	repo repository.NotificationRepository,
	postRepo repository.PostRepository,
	users *UserService,
	publisher Publisher,
	flags *featureflags.Manager,
) *NotificationService {
	return &NotificationService{
		repo:      repo,
		postRepo:  postRepo,
		users:     users,
		publisher: publisher,
		flags:     flags,
	}
}

// Record appends a notification for recipient. Delivery to open websockets is best effort.
func (s *NotificationService) Record(
	ctx context.Context, recipient string, typ models.NotificationType, actor, postID, text string,
) (*models.Notification, error) {
	if !typ.Valid() {
		return nil, models.NewValidationError("Invalid notification type")
	}
	if recipient == "" {
		return nil, models.NewValidationError("Notification recipient is required")
	}

	n := models.NewNotification(recipient, typ, actor, postID, text)
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	observability.NotificationsRecorded.WithLabelValues(string(typ)).Inc()

	s.publish(ctx, n)
	return n, nil
}

func (s *NotificationService) publish(ctx context.Context, n *models.Notification) {
	if s.publisher == nil || !s.flags.Enabled(featureflags.RealtimeNotifications, n.UserID) {
		return
	}
	views := s.enrich(ctx, []*models.Notification{n})
	if err := s.publisher.PublishEvent(ctx, n.UserID, notifications.EventNotification, views[0]); err != nil {
		slog.WarnContext(ctx, "failed to publish notification",
			"notification_id", n.ID,
			"recipient", n.UserID,
			"err", err,
		)
	}
}

// List returns the newest notifications for recipient, enriched with actor and post details.
func (s *NotificationService) List(ctx context.Context, recipient string) ([]models.NotificationView, error) {
	items, err := s.repo.ListByRecipient(ctx, recipient, repository.NotificationListLimit)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, items), nil
}

func (s *NotificationService) enrich(ctx context.Context, items []*models.Notification) []models.NotificationView {
	actorIDs := make([]string, 0, len(items))
	postIDs := make([]string, 0, len(items))
	for _, n := range items {
		actorIDs = append(actorIDs, n.FromUser)
		if n.PostID != "" {
			postIDs = append(postIDs, n.PostID)
		}
	}

	summaries := s.users.summariesOrEmpty(ctx, uniqueStrings(actorIDs))

	postText := make(map[string]string, len(postIDs))
	if len(postIDs) > 0 {
		posts, err := s.postRepo.GetByIDs(ctx, uniqueStrings(postIDs))
		if err != nil {
			slog.WarnContext(ctx, "failed to load notification posts", "err", err)
		}
		for _, p := range posts {
			postText[p.ID] = p.Text
		}
	}

	views := make([]models.NotificationView, 0, len(items))
	for _, n := range items {
		v := models.NotificationView{
			ID:        n.ID,
			UserID:    n.UserID,
			Type:      n.Type,
			FromUser:  models.SummaryFor(summaries, n.FromUser),
			PostID:    n.PostID,
			Text:      n.Text,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		}
		if text, ok := postText[n.PostID]; ok {
			v.Post = &models.NotificationPostRef{ID: n.PostID, Text: text}
		}
		views = append(views, v)
	}
	return views
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
