package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notebook/internal/model"
	appErr "github.com/xxxsen/notebook/internal/pkg/errors"
	"github.com/xxxsen/notebook/internal/pkg/jwt"
	"github.com/xxxsen/notebook/internal/pkg/password"
)

type RegisterInput struct {
	Email     string
	Password  string
	Name      string
	AvatarURL string
}

type AuthService struct {
	users     UserStore
	jwtSecret []byte
	jwtTTL    time.Duration
}

func NewAuthService(users UserStore, secret []byte, ttl time.Duration) *AuthService {
	return &AuthService{users: users, jwtSecret: secret, jwtTTL: ttl}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("invalid email address")
	}
	return email, nil
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	hash, err := password.Hash(input.Password)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) {
			return nil, invalid("password must be at least %d characters", password.MinLength)
		}
		return nil, err
	}
	now := time.Now().UTC()
	user := &model.User{
		ID:             newID(),
		Email:          email,
		HashedPassword: hash,
		Name:           strings.TrimSpace(input.Name),
		AvatarURL:      strings.TrimSpace(input.AvatarURL),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if appErr.IsConflict(err) {
			return nil, invalid("Email already registered")
		}
		return nil, err
	}
	logutil.GetLogger(ctx).Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

// Login checks the credentials and issues a session token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, plainPassword string) (*model.User, string, error) {
	unauthorized := &kindError{kind: appErr.ErrUnauthorized, msg: "Incorrect email or password"}
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, "", unauthorized
		}
		return nil, "", err
	}
	if err := password.Compare(user.HashedPassword, plainPassword); err != nil {
		return nil, "", unauthorized
	}
	if !user.IsActive {
		return nil, "", forbidden("Inactive user")
	}
	token, err := jwt.GenerateToken(user.ID, user.Email, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, "", err
	}
	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, "", err
	}
	user.LastLogin = &now
	return user, token, nil
}

// Authenticate resolves a bearer token to an active user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := jwt.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil, &kindError{kind: appErr.ErrUnauthorized, msg: "Could not validate credentials"}
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, &kindError{kind: appErr.ErrUnauthorized, msg: "Could not validate credentials"}
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, forbidden("Inactive user")
	}
	return user, nil
}
