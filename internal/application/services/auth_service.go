package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskmaster/todos/internal/domain/entities"
	"github.com/taskmaster/todos/internal/infrastructure/config"
	"github.com/taskmaster/todos/internal/infrastructure/logger"
	"github.com/taskmaster/todos/internal/ports"
)

// tokenClaims is the signed payload of an access token
type tokenClaims struct {
	UserID   int64         `json:"user_id"`
	Username string        `json:"username"`
	Role     entities.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthService verifies credentials and issues access tokens
type AuthService struct {
	users     ports.UserRepository
	jwtConfig config.JWTConfig
	logger    *logger.Logger
	now       func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(users ports.UserRepository, jwtConfig config.JWTConfig, log *logger.Logger) *AuthService {
	return &AuthService{
		users:     users,
		jwtConfig: jwtConfig,
		logger:    log.WithComponent("auth"),
		now:       time.Now,
	}
}

// Verify checks identifier (username or email) and password against the store.
// Unknown identifiers and wrong passwords fail identically; only the log tells them apart.
// The returned user still carries its password hash and must not leave the service layer.
func (s *AuthService) Verify(ctx context.Context, identifier, password string) (*entities.User, error) {
	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, entities.ErrUserNotFound) {
			s.logger.LogSecurityEvent("login_failed", "unknown_identifier", map[string]interface{}{
				"identifier": identifier,
			})
			return nil, entities.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.LogSecurityEvent("login_failed", "password_mismatch", map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, entities.ErrInvalidCredentials
	}

	return user, nil
}

// IssueClaims signs an access token for user and reports when it expires
func (s *AuthService) IssueClaims(user *entities.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.jwtConfig.ExpiresIn)

	claims := &tokenClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.jwtConfig.Issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// Login authenticates a user and returns an access token
func (s *AuthService) Login(ctx context.Context, req ports.LoginRequest) (*ports.AuthResponse, error) {
	user, err := s.Verify(ctx, req.Identifier, req.Password)
	if err != nil {
		return nil, err
	}

	accessToken, _, err := s.IssueClaims(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	s.logger.Infow("User logged in", "user_id", user.ID, "username", user.Username)

	return &ports.AuthResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwtConfig.ExpiresIn.Seconds()),
		User:        user.Sanitized(),
	}, nil
}

// ValidateToken validates a JWT token and returns claims
func (s *AuthService) ValidateToken(tokenString string) (*ports.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtConfig.Secret), nil
	}, jwt.WithIssuer(s.jwtConfig.Issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, &entities.Error{Kind: entities.KindUnauthenticated, Message: "Invalid or expired token", Err: err}
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, entities.NewError(entities.KindUnauthenticated, "Invalid or expired token")
	}

	return &ports.Claims{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
	}, nil
}
