package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"chirp/internal/models"
	"chirp/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_SignupNeverReturnsCredential(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.auth.Signup(ctx, SignupInput{
		Username: "  alice ",
		Email:    "Alice@Example.com",
		Password: "password123",
		Bio:      "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "password123", user.Password)

	b, err := json.Marshal(user)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "password")
	assert.NotContains(t, string(b), user.Password)

	token, loggedIn, err := env.auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, loggedIn.ID)
}

func TestAuthService_SignupValidation(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "alice")

	tests := []struct {
		name string
		in   SignupInput
		code string
	}{
		{"Missing Password", SignupInput{Username: "bob", Email: "bob@example.com"}, models.CodeValidation},
		{"Missing Username", SignupInput{Email: "bob@example.com", Password: "password123"}, models.CodeValidation},
		{"Bad Email", SignupInput{Username: "bob", Email: "bob", Password: "password123"}, models.CodeValidation},
		{"Password Over 72 Bytes", SignupInput{Username: "bob", Email: "bob@example.com", Password: strings.Repeat("p", 73)}, models.CodeValidation},
		{"Duplicate Email", SignupInput{Username: "bob", Email: "ALICE@example.com", Password: "password123"}, models.CodeConflict},
		{"Duplicate Username", SignupInput{Username: "Alice", Email: "other@example.com", Password: "password123"}, models.CodeConflict},
		{"Duplicate Username With Short Password", SignupInput{Username: "alice", Email: "new@example.com", Password: "short"}, models.CodeConflict},
		{"Duplicate Email With Long Bio", SignupInput{Username: "carol", Email: "alice@example.com", Password: "password123", Bio: strings.Repeat("b", validation.MaxBio+1)}, models.CodeConflict},
		{"Duplicate Username With Bad Email", SignupInput{Username: "alice", Email: "not-an-email", Password: "password123"}, models.CodeConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.Signup(context.Background(), tt.in)
			require.Error(t, err)
			assert.True(t, models.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestAuthService_LoginIsUniform(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "alice")
	ctx := context.Background()

	_, _, unknownErr := env.auth.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "password123"})
	_, _, wrongErr := env.auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong-password"})

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
	assert.True(t, models.IsCode(wrongErr, models.CodeUnauthorized))

	_, user, err := env.auth.Login(ctx, LoginInput{Username: "ALICE", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, _, err = env.auth.Login(ctx, LoginInput{Password: "password123"})
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestAuthService_TokenClaims(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")

	token, _, err := env.auth.Login(context.Background(), LoginInput{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "chirp-api", claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"chirp-client"}, claims.Audience)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, claims.IssuedAt.Add(TokenTTL), claims.ExpiresAt.Time, time.Second)

	userID, err := env.auth.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, userID)
}

func TestAuthService_AuthenticateRejects(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")

	sign := func(method jwt.SigningMethod, key interface{}, mutate func(*Claims)) string {
		now := time.Now()
		c := &Claims{
			Username: "alice",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   alice.ID,
				Issuer:    "chirp-api",
				Audience:  jwt.ClaimStrings{"chirp-client"},
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
				IssuedAt:  jwt.NewNumericDate(now),
				ID:        "jti-1",
			},
		}
		if mutate != nil {
			mutate(c)
		}
		s, err := jwt.NewWithClaims(method, c).SignedString(key)
		require.NoError(t, err)
		return s
	}
	secret := []byte(testSecret)

	tests := []struct {
		name  string
		token string
	}{
		{"Empty", ""},
		{"Malformed", "not-a-token"},
		{"Wrong Secret", sign(jwt.SigningMethodHS256, []byte("another-secret-another-secret-xx"), nil)},
		{"Wrong Algorithm", sign(jwt.SigningMethodHS512, secret, nil)},
		{"Expired", sign(jwt.SigningMethodHS256, secret, func(c *Claims) {
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		})},
		{"Missing Expiry", sign(jwt.SigningMethodHS256, secret, func(c *Claims) { c.ExpiresAt = nil })},
		{"Wrong Issuer", sign(jwt.SigningMethodHS256, secret, func(c *Claims) { c.Issuer = "someone-else" })},
		{"Wrong Audience", sign(jwt.SigningMethodHS256, secret, func(c *Claims) { c.Audience = jwt.ClaimStrings{"x"} })},
		{"Missing Subject", sign(jwt.SigningMethodHS256, secret, func(c *Claims) { c.Subject = "" })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.Authenticate(context.Background(), tt.token)
			require.Error(t, err)
			assert.True(t, models.IsCode(err, models.CodeUnauthorized))
		})
	}

	_, err := env.auth.Authenticate(context.Background(), sign(jwt.SigningMethodHS256, secret, nil))
	assert.NoError(t, err)
}

func TestAuthService_LogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "alice")
	ctx := context.Background()

	token, _, err := env.auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)

	require.NoError(t, env.auth.Logout(ctx, token))

	_, err = env.auth.Authenticate(ctx, token)
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeUnauthorized))

	keys := env.mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "blacklist:"))
	assert.Greater(t, env.mr.TTL(keys[0]), 6*24*time.Hour)

	other, _, err := env.auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)
	_, err = env.auth.Authenticate(ctx, other)
	assert.NoError(t, err)
}

func TestAuthService_FailsClosedWhenRedisDown(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "alice")
	ctx := context.Background()

	token, _, err := env.auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)

	down := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer func() { _ = down.Close() }()
	offline := NewAuthService(env.userRepo, down, AuthConfig{
		Secret:   testSecret,
		Issuer:   "chirp-api",
		Audience: "chirp-client",
	})

	_, err = offline.Authenticate(ctx, token)
	assert.True(t, models.IsCode(err, models.CodeUnauthorized))
}
