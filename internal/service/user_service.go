// Package service holds the application's business logic on top of the repositories.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"chirp/internal/cache"
	"chirp/internal/models"
	"chirp/internal/repository"
	"chirp/internal/validation"

	"github.com/redis/go-redis/v9"
)

// UserService owns profile reads and updates and resolves user summaries for enriched views.
type UserService struct {
	userRepo repository.UserRepository
	rdb      *redis.Client
}

// NewUserService creates a UserService. rdb may be nil, which disables the summary cache.
func NewUserService(userRepo repository.UserRepository, rdb *redis.Client) *UserService {
	return &UserService{userRepo: userRepo, rdb: rdb}
}

// GetUserByID returns a public profile, read through the Redis cache.
// The result never carries the password hash.
func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, s.rdb, cache.ProfileKey(id), &user, cache.UserTTL, func() error {
		found, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		user = *found
		user.Password = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile applies in to targetID's profile. Only the owner may update a profile.
func (s *UserService) UpdateProfile(ctx context.Context, requesterID, targetID string, in models.UserUpdate) (*models.User, error) {
	if requesterID != targetID {
		return nil, models.NewForbiddenError("Not authorized to update this profile")
	}

	user, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			return nil, models.NewValidationError("Username cannot be empty")
		}
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if !strings.EqualFold(username, user.Username) {
			if err := s.ensureUsernameFree(ctx, username, user.ID); err != nil {
				return nil, err
			}
		}
		user.Username = username
	}
	if in.Email != nil {
		email := models.NormalizeEmail(*in.Email)
		if email == "" {
			return nil, models.NewValidationError("Email cannot be empty")
		}
		if err := validation.ValidateEmail(email); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if email != user.Email {
			if err := s.ensureEmailFree(ctx, email, user.ID); err != nil {
				return nil, err
			}
		}
		user.Email = email
	}
	if in.Bio != nil {
		if err := validation.ValidateText("Bio", *in.Bio, validation.MaxBio, false); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Bio = *in.Bio
	}
	if in.ProfilePic != nil {
		pic := strings.TrimSpace(*in.ProfilePic)
		if err := validation.ValidateImageURL(pic); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.ProfilePic = pic
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	cache.InvalidateUser(ctx, s.rdb, user.ID)

	return user, nil
}

func (s *UserService) ensureUsernameFree(ctx context.Context, username, selfID string) error {
	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return models.NewConflictError("Username already taken")
	}
	return nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return models.NewConflictError("Email already registered")
	}
	return nil
}

// Summaries resolves public summaries for ids through the Redis cache.
// Unknown ids are absent from the result.
func (s *UserService) Summaries(ctx context.Context, ids []string) (map[string]models.UserSummary, error) {
	return cache.AsideMany(ctx, s.rdb, ids, cache.UserKey, cache.UserTTL,
		func(missing []string) (map[string]models.UserSummary, error) {
			users, err := s.userRepo.GetByIDs(ctx, missing)
			if err != nil {
				return nil, err
			}
			out := make(map[string]models.UserSummary, len(users))
			for i := range users {
				out[users[i].ID] = users[i].Summary()
			}
			return out, nil
		})
}

// summariesOrEmpty degrades enrichment to id-only summaries when the lookup fails.
func (s *UserService) summariesOrEmpty(ctx context.Context, ids []string) map[string]models.UserSummary {
	summaries, err := s.Summaries(ctx, ids)
	if err != nil {
		slog.WarnContext(ctx, "failed to resolve user summaries", "count", len(ids), "err", err)
		return map[string]models.UserSummary{}
	}
	return summaries
}
