package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chirp/internal/cache"
	"chirp/internal/models"
	"chirp/internal/repository"
	"chirp/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// TokenTTL is the validity window of issued tokens.
const TokenTTL = 7 * 24 * time.Hour

// AuthConfig holds token signing settings.
type AuthConfig struct {
	Secret   string
	Issuer   string
	Audience string
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Claims are the JWT claims issued at login.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AuthService handles signup, login and token validation.
type AuthService struct {
	userRepo repository.UserRepository
	rdb      *redis.Client
	cfg      AuthConfig
	now      func() time.Time
}

// NewAuthService creates an AuthService. rdb may be nil, which disables token revocation.
func NewAuthService(userRepo repository.UserRepository, rdb *redis.Client, cfg AuthConfig) *AuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{userRepo: userRepo, rdb: rdb, cfg: cfg, now: time.Now}
}

// SignupInput is the signup request body.
type SignupInput struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Bio        string `json:"bio"`
	ProfilePic string `json:"profilePic"`
}

// LoginInput identifies the account by Email, or by Username when Email is blank.
type LoginInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Signup registers a new user and returns it. The stored credential is a bcrypt hash.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := models.NormalizeEmail(in.Email)
	if username == "" || email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email, and password are required")
	}
	// A taken identifier is a conflict whatever else is wrong with the request.
	if existing, err := s.userRepo.GetByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewConflictError("User already exists")
	}
	if existing, err := s.userRepo.GetByUsername(ctx, username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewConflictError("User already exists")
	}
	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateImageURL(strings.TrimSpace(in.ProfilePic)); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateText("Bio", in.Bio, validation.MaxBio, false); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := models.NewUser(username, email, string(hash), in.Bio, strings.TrimSpace(in.ProfilePic))
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and issues a token. Email wins when both identifiers are given.
// Unknown users and wrong passwords fail with the same error.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (string, *models.User, error) {
	email := strings.TrimSpace(in.Email)
	username := strings.TrimSpace(in.Username)
	if (email == "" && username == "") || in.Password == "" {
		return "", nil, models.NewValidationError("Email or username and password are required")
	}

	var (
		user *models.User
		err  error
	)
	if email != "" {
		user, err = s.userRepo.GetByEmail(ctx, email)
	} else {
		user, err = s.userRepo.GetByUsername(ctx, username)
	}
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if cmpErr := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); cmpErr != nil {
		return "", nil, models.NewUnauthorizedError("Invalid credentials")
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, models.NewInternalError(err)
	}
	return token, user, nil
}

// generateToken creates a JWT token for the given user
func (s *AuthService) generateToken(user *models.User) (string, error) {
	if s.cfg.Secret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := s.now()
	claims := Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.Secret))
}

func (s *AuthService) parse(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, models.NewUnauthorizedError("Missing token")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return []byte(s.cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.NewUnauthorizedError("Token expired")
		}
		return nil, models.NewUnauthorizedError("Invalid token")
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, models.NewUnauthorizedError("Invalid token")
	}
	return claims, nil
}

// Authenticate validates tokenString and returns the user id it was issued to.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (string, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", err
	}

	if s.rdb != nil {
		n, err := s.rdb.Exists(ctx, cache.BlacklistKey(claims.ID)).Result()
		if err != nil {
			slog.ErrorContext(ctx, "token revocation check failed", "err", err)
			return "", models.NewUnauthorizedError("Unable to verify token")
		}
		if n > 0 {
			return "", models.NewUnauthorizedError("Token revoked")
		}
	}
	return claims.Subject, nil
}

// Logout revokes tokenString until it would have expired.
func (s *AuthService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.parse(tokenString)
	if err != nil {
		return err
	}
	if s.rdb == nil {
		return nil
	}

	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, cache.BlacklistKey(claims.ID), claims.Subject, ttl).Err(); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
