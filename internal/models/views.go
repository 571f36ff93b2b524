package models

import "time"

// UserSummary is the public identity attached to enriched views.
type UserSummary struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	ProfilePic string `json:"profilePic"`
}

// CommentView is a comment joined with its author.
type CommentView struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	Text      string      `json:"text"`
	Likes     []string    `json:"likes"`
	CreatedAt time.Time   `json:"createdAt"`
	Author    UserSummary `json:"author"`
}

// PostView is a post joined with its author and commenter summaries.
type PostView struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	Text      string        `json:"text"`
	Image     string        `json:"image"`
	Likes     []string      `json:"likes"`
	Comments  []CommentView `json:"comments"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Author    UserSummary   `json:"author"`
}

// PostPage is one page of posts, newest first.
type PostPage struct {
	Posts       []PostView `json:"posts"`
	CurrentPage int        `json:"currentPage"`
	TotalPages  int        `json:"totalPages"`
	TotalPosts  int64      `json:"totalPosts"`
}

// NotificationPostRef identifies the post a notification refers to.
type NotificationPostRef struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// NotificationView is a notification joined with its actor and referenced post.
type NotificationView struct {
	ID        string               `json:"id"`
	UserID    string               `json:"userId"`
	Type      NotificationType     `json:"type"`
	FromUser  UserSummary          `json:"fromUser"`
	PostID    string               `json:"postId,omitempty"`
	Text      string               `json:"text,omitempty"`
	Read      bool                 `json:"read"`
	CreatedAt time.Time            `json:"createdAt"`
	Post      *NotificationPostRef `json:"post,omitempty"`
}

// SummaryFor returns the summary for id, or a summary carrying only the id when the user is unknown.
func SummaryFor(summaries map[string]UserSummary, id string) UserSummary {
	if s, ok := summaries[id]; ok {
		return s
	}
	return UserSummary{ID: id}
}

// NewPostView joins p with the given user summaries.
func NewPostView(p *Post, summaries map[string]UserSummary) PostView {
	comments := make([]CommentView, 0, len(p.Comments))
	for _, c := range p.Comments {
		comments = append(comments, CommentView{
			ID:        c.ID,
			UserID:    c.UserID,
			Text:      c.Text,
			Likes:     nonNil(c.Likes),
			CreatedAt: c.CreatedAt,
			Author:    SummaryFor(summaries, c.UserID),
		})
	}
	return PostView{
		ID:        p.ID,
		UserID:    p.UserID,
		Text:      p.Text,
		Image:     p.Image,
		Likes:     nonNil(p.Likes),
		Comments:  comments,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Author:    SummaryFor(summaries, p.UserID),
	}
}

// ReferencedUserIDs returns the distinct author and commenter ids of posts.
func ReferencedUserIDs(posts ...*Post) []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; ok || id == "" {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, p := range posts {
		add(p.UserID)
		for _, c := range p.Comments {
			add(c.UserID)
		}
	}
	return ids
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
