package service

import (
	"context"
	"math"
	"strings"

	"chirp/internal/models"
	"chirp/internal/observability"
	"chirp/internal/repository"
	"chirp/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// DefaultPageSize is the number of posts per listing page.
const DefaultPageSize = 10

// maxPage keeps the listing offset within int range.
const maxPage = math.MaxInt/DefaultPageSize + 1

// PostService implements the post aggregate: posts with embedded comments and like sets.
// Every mutation loads the post, changes it in memory and saves it whole.
type PostService struct {
	postRepo      repository.PostRepository
	users         *UserService
	notifications *NotificationService
}

func NewPostService(postRepo repository.PostRepository, users *UserService, notifications *NotificationService) *PostService {
	return &PostService{
		postRepo:      postRepo,
		users:         users,
		notifications: notifications,
	}
}

func (s *PostService) CreatePost(ctx context.Context, authorID, text, image string) (*models.PostView, error) {
	span, ctx := observability.NewSpan(ctx, "post.create", attribute.String("user.id", authorID))
	defer span.End()

	text = strings.TrimSpace(text)
	if err := validation.ValidateText("Text", text, validation.MaxPostText, true); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	image = strings.TrimSpace(image)
	if err := validation.ValidateImageURL(image); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	post := models.NewPost(authorID, text, image)
	if err := s.postRepo.Create(ctx, post); err != nil {
		span.SetError(err)
		return nil, err
	}
	observability.PostsCreated.Inc()
	span.AddAttributes(attribute.String("post.id", post.ID))

	return s.view(ctx, post), nil
}

// ListPosts returns one page of all posts, newest first. Pages below 1 are treated as 1.
func (s *PostService) ListPosts(ctx context.Context, page int) (*models.PostPage, error) {
	return s.list(ctx, "", page)
}

// ListUserPosts returns one page of userID's posts, newest first. An unknown
// user simply has no posts.
func (s *PostService) ListUserPosts(ctx context.Context, userID string, page int) (*models.PostPage, error) {
	return s.list(ctx, userID, page)
}

func (s *PostService) list(ctx context.Context, authorID string, page int) (*models.PostPage, error) {
	page = min(max(page, 1), maxPage)
	posts, total, err := s.postRepo.List(ctx, authorID, DefaultPageSize, (page-1)*DefaultPageSize)
	if err != nil {
		return nil, err
	}

	summaries := s.users.summariesOrEmpty(ctx, models.ReferencedUserIDs(posts...))
	views := make([]models.PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, models.NewPostView(p, summaries))
	}

	return &models.PostPage{
		Posts:       views,
		CurrentPage: page,
		TotalPages:  totalPages(total, DefaultPageSize),
		TotalPosts:  total,
	}, nil
}

func totalPages(total int64, size int) int {
	if total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

func (s *PostService) GetPost(ctx context.Context, id string) (*models.PostView, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, post), nil
}

// DeletePost removes a post and its comments. Only the author may delete it.
func (s *PostService) DeletePost(ctx context.Context, id, requesterID string) error {
	span, ctx := observability.NewSpan(ctx, "post.delete", attribute.String("post.id", id))
	defer span.End()

	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !post.IsOwnedBy(requesterID) {
		return models.NewForbiddenError("Not authorized to delete this post")
	}
	if err := s.postRepo.Delete(ctx, id); err != nil {
		span.SetError(err)
		return err
	}
	return nil
}

// ToggleLike flips userID's like on a post. Liking someone else's post notifies the author.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID string) (*models.PostView, error) {
	span, ctx := observability.NewSpan(ctx, "post.toggle_like",
		attribute.String("post.id", postID),
		attribute.String("user.id", userID),
	)
	defer span.End()

	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	liked := post.ToggleLike(userID)
	if err := s.postRepo.Update(ctx, post); err != nil {
		span.SetError(err)
		return nil, err
	}
	observability.RecordLikeToggle("post", liked)
	span.AddAttributes(attribute.Bool("liked", liked))

	if liked && !post.IsOwnedBy(userID) {
		if _, err := s.notifications.Record(ctx, post.UserID, models.NotificationLike, userID, post.ID, ""); err != nil {
			span.SetError(err)
			return nil, err
		}
	}

	return s.view(ctx, post), nil
}

// AddComment appends a comment to a post. Commenting on someone else's post notifies the author.
func (s *PostService) AddComment(ctx context.Context, postID, userID, text string) (*models.PostView, error) {
	span, ctx := observability.NewSpan(ctx, "post.add_comment",
		attribute.String("post.id", postID),
		attribute.String("user.id", userID),
	)
	defer span.End()

	text = strings.TrimSpace(text)
	if err := validation.ValidateText("Comment", text, validation.MaxCommentText, true); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	comment := post.AddComment(userID, text)
	if err := s.postRepo.Update(ctx, post); err != nil {
		span.SetError(err)
		return nil, err
	}
	observability.CommentsAdded.Inc()
	span.AddAttributes(attribute.String("comment.id", comment.ID))

	if !post.IsOwnedBy(userID) {
		snippet := models.Snippet(comment.Text)
		if _, err := s.notifications.Record(ctx, post.UserID, models.NotificationComment, userID, post.ID, snippet); err != nil {
			span.SetError(err)
			return nil, err
		}
	}

	return s.view(ctx, post), nil
}

// ToggleCommentLike flips userID's like on one comment of a post. It never notifies.
func (s *PostService) ToggleCommentLike(ctx context.Context, postID, commentID, userID string) (*models.PostView, error) {
	span, ctx := observability.NewSpan(ctx, "post.toggle_comment_like",
		attribute.String("post.id", postID),
		attribute.String("comment.id", commentID),
	)
	defer span.End()

	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	liked, found := post.ToggleCommentLike(commentID, userID)
	if !found {
		return nil, models.NewNotFoundError("Comment", commentID)
	}
	if err := s.postRepo.Update(ctx, post); err != nil {
		span.SetError(err)
		return nil, err
	}
	observability.RecordLikeToggle("comment", liked)

	return s.view(ctx, post), nil
}

func (s *PostService) view(ctx context.Context, post *models.Post) *models.PostView {
	summaries := s.users.summariesOrEmpty(ctx, models.ReferencedUserIDs(post))
	v := models.NewPostView(post, summaries)
	return &v
}
