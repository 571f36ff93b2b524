package models

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is the engagement aggregate: a post with its embedded comments and like sets.
// Likes and comments are stored with the post and written through a single save.
type Post struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" bson:"_id" json:"id"`
	UserID    string    `gorm:"not null;index;type:varchar(36)" bson:"userId" json:"userId"`
	Text      string    `gorm:"type:text;not null" bson:"text" json:"text"`
	Image     string    `bson:"image" json:"image"`
	Likes     []string  `gorm:"serializer:json;type:text" bson:"likes" json:"likes"`
	Comments  []Comment `gorm:"serializer:json;type:text" bson:"comments" json:"comments"`
	CreatedAt time.Time `gorm:"index" bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Comment is embedded in a Post and has no existence outside it.
type Comment struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"userId" json:"userId"`
	Text      string    `bson:"text" json:"text"`
	Likes     []string  `bson:"likes" json:"likes"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// NewPost builds a post owned by userID. Text is stored trimmed.
func NewPost(userID, text, image string) *Post {
	now := time.Now().UTC()
	return &Post{
		ID:        uuid.NewString(),
		UserID:    userID,
		Text:      strings.TrimSpace(text),
		Image:     strings.TrimSpace(image),
		Likes:     []string{},
		Comments:  []Comment{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// BeforeCreate assigns an id to posts built without NewPost.
func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// IsOwnedBy reports whether userID authored the post.
func (p *Post) IsOwnedBy(userID string) bool {
	return p.UserID == userID
}

// HasLiked reports whether userID is in the post's like set.
func (p *Post) HasLiked(userID string) bool {
	return slices.Contains(p.Likes, userID)
}

// ToggleLike flips userID's membership in the like set and reports whether the post is now liked.
func (p *Post) ToggleLike(userID string) bool {
	var liked bool
	p.Likes, liked = toggleMember(p.Likes, userID)
	p.touch()
	return liked
}

// AddComment appends a comment by userID and returns it.
func (p *Post) AddComment(userID, text string) Comment {
	c := Comment{
		ID:        uuid.NewString(),
		UserID:    userID,
		Text:      strings.TrimSpace(text),
		Likes:     []string{},
		CreatedAt: time.Now().UTC(),
	}
	p.Comments = append(p.Comments, c)
	p.touch()
	return c
}

// FindComment returns the embedded comment with the given id.
func (p *Post) FindComment(commentID string) (*Comment, bool) {
	for i := range p.Comments {
		if p.Comments[i].ID == commentID {
			return &p.Comments[i], true
		}
	}
	return nil, false
}

// ToggleCommentLike flips userID's membership in a comment's like set.
// found is false when the comment does not belong to the post.
func (p *Post) ToggleCommentLike(commentID, userID string) (liked, found bool) {
	c, ok := p.FindComment(commentID)
	if !ok {
		return false, false
	}
	c.Likes, liked = toggleMember(c.Likes, userID)
	p.touch()
	return liked, true
}

func (p *Post) touch() {
	p.UpdatedAt = time.Now().UTC()
}

// toggleMember removes id when present and appends it otherwise, keeping set order.
func toggleMember(set []string, id string) ([]string, bool) {
	if i := slices.Index(set, id); i >= 0 {
		return slices.Delete(set, i, i+1), false
	}
	return append(set, id), true
}
