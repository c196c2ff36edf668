package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	pkgauth "github.com/telestars/premium-backend/pkg/auth"
	"github.com/telestars/premium-backend/pkg/config"
	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
	"github.com/telestars/premium-backend/pkg/logger"
	"github.com/telestars/premium-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service authenticates admin users and issues bearer tokens.
type Service struct {
	repo   Repository
	jwtCfg config.JWTConfig
	logger *logger.Logger
}

// ServiceParams wires service dependencies.
type ServiceParams struct {
	Repo      Repository
	JWTConfig config.JWTConfig
	Logger    *logger.Logger
}

// NewService validates dependencies and builds the auth service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("admin repository is required")
	}
	if params.JWTConfig.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Service{
		repo:   params.Repo,
		jwtCfg: params.JWTConfig,
		logger: params.Logger,
	}, nil
}

// Login verifies the credentials and returns a signed access token. Lookup
// misses and bad passwords produce the same response.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	admin, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup admin user")
	}

	valid, err := security.VerifyPassword(req.Password, admin.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, admin.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	admin.LastLoginAt = &now

	token, err := pkgauth.MintAccessToken(s.jwtCfg, now, pkgauth.AccessTokenPayload{
		AdminID:    admin.ID,
		Username:   admin.Username,
		SuperAdmin: admin.SuperAdmin,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	if s.logger != nil {
		ctx = s.logger.WithField(ctx, "admin_username", admin.Username)
		s.logger.Info(ctx, "admin login")
	}

	return &LoginResponse{
		AccessToken: token,
		ExpiresAt:   now.Add(s.jwtCfg.Expiration()),
		Admin: AdminSummary{
			ID:          admin.ID,
			Username:    admin.Username,
			SuperAdmin:  admin.SuperAdmin,
			LastLoginAt: admin.LastLoginAt,
		},
	}, nil
}
