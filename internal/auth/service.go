package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"cryptofolio/internal/models"
	"cryptofolio/internal/store"
)

type SignupInput struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password"`
	DisplayName     string `json:"display_name" validate:"max=64"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is what a successful signup or login hands back.
type Session struct {
	User      models.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type Service struct {
	users    store.Users
	tokens   *Tokens
	params   Argon2Params
	validate *validator.Validate
	logger   *zap.Logger
}

func NewService(users store.Users, tokens *Tokens, params Argon2Params, logger *zap.Logger) *Service {
	return &Service{
		users:    users,
		tokens:   tokens,
		params:   params,
		validate: validator.New(),
		logger:   logger,
	}
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, formError(err)
	}
	if err := ValidatePassword(in.Password, in.ConfirmPassword); err != nil {
		return nil, err
	}

	hash, err := HashPassword(in.Password, s.params)
	if err != nil {
		return nil, err
	}

	user := models.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return nil, ErrEmailInUse
		}
		return nil, err
	}

	s.logger.Info("User signed up", zap.String("user_id", user.ID))
	return s.session(user)
}

func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, formError(err)
	}

	user, err := s.users.UserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	ok, err := VerifyPassword(user.PasswordHash, in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		s.logger.Info("Login rejected", zap.String("user_id", user.ID))
		return nil, ErrWrongPassword
	}

	return s.session(user)
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (models.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return models.User{}, err
	}
	user, err := s.users.UserByID(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, ErrInvalidToken
	}
	return user, err
}

// CreateUser adds an account without the signup password policy, for
// operators.
func (s *Service) CreateUser(ctx context.Context, email, password, displayName string) (models.User, error) {
	hash, err := HashPassword(password, s.params)
	if err != nil {
		return models.User{}, err
	}
	user := models.User{
		ID:           uuid.NewString(),
		Email:        strings.TrimSpace(email),
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return models.User{}, ErrEmailInUse
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *Service) session(user models.User) (*Session, error) {
	token, exp, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}

func formError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Tag() {
		case "required":
			return &InputError{Message: "Please fill in all fields."}
		case "email":
			return &InputError{Message: "Please enter a valid email address."}
		}
		return &InputError{Message: fmt.Sprintf("Invalid %s.", strings.ToLower(verrs[0].Field()))}
	}
	return err
}
