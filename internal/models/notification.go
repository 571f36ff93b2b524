package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationType classifies a notification.
type NotificationType string

// Notification types. Follow and system notifications are part of the
// data model but nothing in the API emits them.
const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationFollow  NotificationType = "follow"
	NotificationSystem  NotificationType = "system"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLike, NotificationComment, NotificationFollow, NotificationSystem:
		return true
	}
	return false
}

// SnippetMaxLen is the longest comment text stored verbatim in a notification.
const SnippetMaxLen = 50

// Notification records an engagement event for a recipient.
type Notification struct {
	ID        string           `gorm:"primaryKey;type:varchar(36)" bson:"_id" json:"id"`
	UserID    string           `gorm:"not null;index:idx_notifications_user_created,priority:1;type:varchar(36)" bson:"userId" json:"userId"`
	Type      NotificationType `gorm:"type:varchar(16);not null" bson:"type" json:"type"`
	FromUser  string           `gorm:"not null;type:varchar(36)" bson:"fromUser" json:"fromUser"`
	PostID    string           `gorm:"type:varchar(36)" bson:"postId,omitempty" json:"postId,omitempty"`
	Text      string           `bson:"text,omitempty" json:"text,omitempty"`
	Read      bool             `gorm:"not null;default:false" bson:"read" json:"read"`
	CreatedAt time.Time        `gorm:"index:idx_notifications_user_created,priority:2" bson:"createdAt" json:"createdAt"`
}

// NewNotification builds an unread notification for recipient.
func NewNotification(recipient string, typ NotificationType, actor, postID, text string) *Notification {
	return &Notification{
		ID:        uuid.NewString(),
		UserID:    recipient,
		Type:      typ,
		FromUser:  actor,
		PostID:    postID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

// BeforeCreate assigns an id to notifications built without NewNotification.
func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

// Snippet shortens text for notification display: text longer than
// SnippetMaxLen characters becomes its first 47 characters followed by "...".
func Snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= SnippetMaxLen {
		return text
	}
	return string(runes[:SnippetMaxLen-3]) + "..."
}
