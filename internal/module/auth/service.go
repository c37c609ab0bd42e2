package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sodam/server/internal/model"
	"github.com/sodam/server/internal/module/billing"
)

// TokenPair is the issued credential set.
type TokenPair struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ServiceInterface defines the auth service surface.
type ServiceInterface interface {
	Signup(ctx context.Context, email, password, name string) (*model.User, *TokenPair, error)
	Login(ctx context.Context, email, password string) (*model.User, *TokenPair, error)
	Me(ctx context.Context, userID uuid.UUID) (*model.User, error)
}

// Service implements signup and login.
type Service struct {
	users     UserRepository
	jwt       *JWTManager
	billing   billing.ServiceInterface
	analytics EventRecorder
	logger    *zap.Logger
}

// NewService creates a new auth service. analytics may be nil.
func NewService(users UserRepository, jwtManager *JWTManager, billingSvc billing.ServiceInterface, analytics EventRecorder, logger *zap.Logger) *Service {
	return &Service{
		users:     users,
		jwt:       jwtManager,
		billing:   billingSvc,
		analytics: analytics,
		logger:    logger,
	}
}

var _ ServiceInterface = (*Service)(nil)

// Signup registers a user and enrolls them on the free tier. The analytics
// event is best-effort; a failed record is logged and swallowed.
func (s *Service) Signup(ctx context.Context, email, password, name string) (*model.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}
	hashStr := string(hash)

	user := &model.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: &hashStr,
		Plan:         billing.PlanFree,
		Status:       model.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	if _, err := s.billing.CreateFreeSubscription(ctx, user.ID); err != nil {
		return nil, nil, fmt.Errorf("enroll free subscription: %w", err)
	}

	if s.analytics != nil {
		if err := s.analytics.Record(ctx, "signup"); err != nil {
			s.logger.Warn("analytics record failed", zap.String("event", "signup"), zap.Error(err))
		}
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID.String()))
	return user, tokens, nil
}

// Login authenticates by email and password.
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if user.Status == model.UserStatusSuspended {
		return nil, nil, ErrUserSuspended
	}
	if user.PasswordHash == nil {
		return nil, nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	if s.analytics != nil {
		if err := s.analytics.Record(ctx, "login"); err != nil {
			s.logger.Warn("analytics record failed", zap.String("event", "login"), zap.Error(err))
		}
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// Me returns the caller's profile.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *Service) issueTokens(user *model.User) (*TokenPair, error) {
	token, expiresAt, err := s.jwt.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: token, ExpiresAt: expiresAt}, nil
}
