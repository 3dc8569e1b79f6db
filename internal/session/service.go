package session

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"ordertrack/internal/domain"
	"ordertrack/internal/dto"
	apperrors "ordertrack/internal/errors"
)

type Authenticator interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
}

type Service struct {
	store  *Store
	auth   Authenticator
	logger *zap.Logger
}

func NewService(store *Store, auth Authenticator, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		auth:   auth,
		logger: logger,
	}
}

// Login exchanges credentials for a token and starts the session.
func (s *Service) Login(ctx context.Context, username, password string) (domain.Session, error) {
	username = strings.TrimSpace(username)

	var details []apperrors.ValidationDetail
	if username == "" {
		details = append(details, apperrors.ValidationDetail{Field: "username", Message: "username is required"})
	}
	if password == "" {
		details = append(details, apperrors.ValidationDetail{Field: "password", Message: "password is required"})
	}
	if len(details) > 0 {
		return domain.Session{}, apperrors.NewValidationError("validation failed", details...)
	}

	resp, err := s.auth.Login(ctx, dto.LoginRequest{Username: username, Password: password})
	if err != nil {
		s.logger.Warn("login failed", zap.String("username", username), zap.Error(err))
		return domain.Session{}, err
	}

	subject := resp.Username
	if subject == "" {
		subject = username
	}
	sess := domain.Session{
		Subject:     subject,
		Role:        domain.Role(resp.Role),
		DisplayName: subject,
		Token:       resp.AccessToken,
	}
	if err := s.store.Set(sess); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

func (s *Service) Logout() error {
	return s.store.Clear()
}
