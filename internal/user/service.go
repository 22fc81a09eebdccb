package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/saulo-duarte/chronos-goals/internal/auth"
	"github.com/saulo-duarte/chronos-goals/internal/config"
	"github.com/sirupsen/logrus"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrMissingCode    = errors.New("authorization code is required")
	ErrGoogleExchange = errors.New("google authorization failed")
)

type Session struct {
	User         *User
	AccessToken  string
	RefreshToken string
}

type UserService interface {
	GoogleLogin(ctx context.Context, code string) (*Session, error)
	RefreshToken(ctx context.Context, refreshToken string) (*Session, error)
	GetUser(ctx context.Context) (*User, error)
}

type userService struct {
	repo     UserRepository
	identity GoogleIdentity
}

func NewUserService(repo UserRepository, identity GoogleIdentity) UserService {
	return &userService{repo: repo, identity: identity}
}

func (s *userService) GoogleLogin(ctx context.Context, code string) (*Session, error) {
	log := config.WithContext(ctx)
	if code == "" {
		return nil, ErrMissingCode
	}

	token, err := s.identity.Exchange(ctx, code)
	if err != nil {
		log.WithError(err).Warn("Google code exchange failed")
		return nil, fmt.Errorf("%w: %v", ErrGoogleExchange, err)
	}

	profile, err := s.identity.Profile(ctx, token)
	if err != nil {
		log.WithError(err).Error("Failed to fetch Google profile")
		return nil, fmt.Errorf("%w: %v", ErrGoogleExchange, err)
	}

	encryptedAccess, err := config.Encrypt(token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("encrypt access token: %w", err)
	}

	u, err := s.repo.GetByGoogleID(profile.ID)
	if err != nil {
		log.WithError(err).Error("Failed to look up user by Google ID")
		return nil, err
	}

	isNew := u == nil
	if isNew {
		u = &User{GoogleID: profile.ID, Role: auth.RoleUser}
	}
	u.Email = profile.Email
	u.Name = profile.Name
	u.Picture = profile.Picture
	u.EncryptedGoogleAccessToken = encryptedAccess
	// Google only returns a refresh token on first consent
	if token.RefreshToken != "" {
		encryptedRefresh, err := config.Encrypt(token.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("encrypt refresh token: %w", err)
		}
		u.EncryptedGoogleRefreshToken = encryptedRefresh
	}

	if isNew {
		err = s.repo.Create(u)
	} else {
		err = s.repo.Update(u)
	}
	if err != nil {
		log.WithError(err).Error("Failed to persist user")
		return nil, err
	}

	session, err := issueSession(u)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"user_id": u.ID,
		"new":     isNew,
	}).Info("User signed in with Google")
	return session, nil
}

func (s *userService) RefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	log := config.WithContext(ctx)

	claims, err := auth.ValidateJWT(refreshToken)
	if err != nil || claims.Role != auth.RoleRefresh {
		log.WithError(err).Warn("Invalid refresh token")
		return nil, ErrUnauthorized
	}

	u, err := s.repo.GetByID(claims.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUnauthorized
	}
	return issueSession(u)
}

func (s *userService) GetUser(ctx context.Context) (*User, error) {
	log := config.WithContext(ctx)

	claims, err := auth.GetUserClaimsFromContext(ctx)
	if err != nil {
		log.WithError(err).Warn("Attempt to read profile without authentication")
		return nil, ErrUnauthorized
	}

	u, err := s.repo.GetByID(claims.UserID)
	if err != nil {
		log.WithError(err).Error("Failed to load user")
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func issueSession(u *User) (*Session, error) {
	role := u.Role
	if role == "" {
		role = auth.RoleUser
	}
	access, err := auth.GenerateJWT(u.ID.String(), role, auth.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := auth.GenerateJWT(u.ID.String(), auth.RoleRefresh, auth.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return &Session{User: u, AccessToken: access, RefreshToken: refresh}, nil
}
