package server

import (
	"context"
	"time"

	"chirp/internal/middleware"
	"chirp/internal/service"

	"github.com/gofiber/fiber/v2"
)

// bcrypt dominates both auth calls.
const authTimeout = 10 * time.Second

// Signup handles POST /api/auth/signup
// @Summary Register an account
// @Description Creates a user. No token is issued; log in afterwards.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.SignupInput true "New account"
// @Success 201 {object} object{user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var in service.SignupInput
	if ok, err := bindBody(c, &in); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), authTimeout)
	defer cancel()

	user, err := s.authService.Signup(ctx, in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user})
}

// Login handles POST /api/auth/login
// @Summary Log in
// @Description Exchanges email or username plus password for a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "Credentials"
// @Success 200 {object} object{token=string,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var in service.LoginInput
	if ok, err := bindBody(c, &in); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), authTimeout)
	defer cancel()

	token, user, err := s.authService.Login(ctx, in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"token": token, "user": user})
}

// Logout handles POST /api/auth/logout
// @Summary Log out
// @Description Revokes the bearer token sent with this request until it would have expired
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.authService.Logout(c.UserContext(), middleware.BearerToken(c)); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
