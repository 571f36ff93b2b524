package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts
// @Summary List posts
// @Description Get one page of posts, newest first
// @Tags posts
// @Produce json
// @Param page query int false "1-based page number" default(1)
// @Success 200 {object} models.PostPage
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	page, err := s.postService.ListPosts(ctx, parsePage(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(page)
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{text=string,image=string} true "Post"
// @Success 201 {object} object{post=models.PostView}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID, ok, err := currentUserID(c)
	if !ok {
		return err
	}

	var req struct {
		Text  string `json:"text"`
		Image string `json:"image"`
	}
	if ok, err := bindBody(c, &req); !ok {
		return err
	}

	post, err := s.postService.CreatePost(c.UserContext(), userID, req.Text, req.Image)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"post": post})
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} object{post=models.PostView}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, ok, err := requireParam(c, "id")
	if !ok {
		return err
	}

	post, err := s.postService.GetPost(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"post": post})
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Description Only the author may delete a post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} object{success=bool}
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	userID, ok, err := currentUserID(c)
	if !ok {
		return err
	}
	id, ok, err := requireParam(c, "id")
	if !ok {
		return err
	}

	if err := s.postService.DeletePost(c.UserContext(), id, userID); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// ToggleLike handles PUT /api/posts/:id/like
// @Summary Like or unlike a post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} object{post=models.PostView}
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [put]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	userID, ok, err := currentUserID(c)
	if !ok {
		return err
	}
	id, ok, err := requireParam(c, "id")
	if !ok {
		return err
	}

	post, err := s.postService.ToggleLike(c.UserContext(), id, userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"post": post})
}

// AddComment handles POST /api/posts/:id/comment
// @Summary Comment on a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param request body object{text=string} true "Comment"
// @Success 201 {object} object{post=models.PostView}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comment [post]
func (s *Server) AddComment(c *fiber.Ctx) error {
	userID, ok, err := currentUserID(c)
	if !ok {
		return err
	}
	id, ok, err := requireParam(c, "id")
	if !ok {
		return err
	}

	var req struct {
		Text string `json:"text"`
	}
	if ok, err := bindBody(c, &req); !ok {
		return err
	}

	post, err := s.postService.AddComment(c.UserContext(), id, userID, req.Text)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"post": post})
}

// ToggleCommentLike handles PUT /api/posts/:id/comments/:commentId/like
// @Summary Like or unlike a comment
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param commentId path string true "Comment ID"
// @Success 200 {object} object{post=models.PostView}
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments/{commentId}/like [put]
func (s *Server) ToggleCommentLike(c *fiber.Ctx) error {
	userID, ok, err := currentUserID(c)
	if !ok {
		return err
	}
	postID, ok, err := requireParam(c, "id")
	if !ok {
		return err
	}
	commentID, ok, err := requireParam(c, "commentId")
	if !ok {
		return err
	}

	post, err := s.postService.ToggleCommentLike(c.UserContext(), postID, commentID, userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"post": post})
}
