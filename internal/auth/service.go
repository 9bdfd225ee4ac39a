package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vovakirdan/linechat-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

const maxUsernameLen = 32

// Service provides authentication operations. It is the UserStore the chat sessions talk to.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// ValidateUsername checks that a username can be used as a protocol field:
// non-empty, bounded, and free of whitespace.
func ValidateUsername(username string) error {
	if username == "" || utf8.RuneCountInString(username) > maxUsernameLen {
		return ErrInvalidUsername
	}
	if strings.ContainsFunc(username, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) {
		return ErrInvalidUsername
	}
	return nil
}

func validatePassword(password string) error {
	if strings.TrimSpace(password) == "" || len(password) > maxPasswordBytes {
		return ErrInvalidPassword
	}
	return nil
}

// Register creates a new user with hashed password. Registration does not log the user in.
func (s *Service) Register(ctx context.Context, username, password string) error {
	_, err := s.register(ctx, username, password)
	return err
}

// RegisterWithToken registers the user and returns a JWT for the admin API.
func (s *Service) RegisterWithToken(ctx context.Context, username, password string) (string, error) {
	user, err := s.register(ctx, username, password)
	if err != nil {
		return "", err
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

func (s *Service) register(ctx context.Context, username, password string) (*store.User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hashedPassword, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	// The unique constraint decides races between concurrent registrations.
	user, err := s.store.CreateUser(ctx, username, hashedPassword)
	if err != nil {
		if errors.Is(err, store.ErrUserExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Verify reports whether the credentials match a registered user.
// The error is non-nil only when the store itself failed.
func (s *Service) Verify(ctx context.Context, username, password string) (bool, error) {
	if _, err := s.verify(ctx, username, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) verify(ctx context.Context, username, password string) (*store.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	ok, err := checkPassword(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Login validates credentials and returns a JWT token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.verify(ctx, username, password)
	if err != nil {
		return "", err
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return token, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
