package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/openlaps/apexfantasy/models"
	"github.com/openlaps/apexfantasy/repositories"
	"github.com/openlaps/apexfantasy/seasons"
	"github.com/openlaps/apexfantasy/utils"
)

const minPasswordLength = 8

// Claims — полезная нагрузка токена доступа.
type Claims struct {
	ManagerID int                `json:"manager_id"`
	Role      models.ManagerRole `json:"role"`
	Season    int                `json:"season"`
	jwt.RegisteredClaims
}

// AuthService резолвит личность менеджера для пограничного слоя.
type AuthService struct {
	resolver      seasons.StoreResolver
	jwtSecret     []byte
	tokenTTL      time.Duration
	openingBudget float64
	logger        *slog.Logger
}

func NewAuthService(resolver seasons.StoreResolver, jwtSecret []byte, tokenTTL time.Duration, openingBudget float64, logger *slog.Logger) *AuthService {
	return &AuthService{
		resolver:      resolver,
		jwtSecret:     jwtSecret,
		tokenTTL:      tokenTTL,
		openingBudget: openingBudget,
		logger:        logger,
	}
}

// SignUp registers a manager in a season with the opening budget.
func (s *AuthService) SignUp(ctx context.Context, season int, creds models.Credentials) (*models.Manager, error) {
	username := strings.TrimSpace(creds.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidationFailed)
	}
	if len(creds.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	hash, err := utils.HashPassword(creds.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	manager := &models.Manager{
		Username:     username,
		PasswordHash: hash,
		Role:         models.RoleUser,
		Budget:       s.openingBudget,
	}
	if err := stores.Managers.Create(ctx, nil, manager); err != nil {
		if errors.Is(err, repositories.ErrManagerUsernameConflict) {
			return nil, ErrUsernameConflict
		}
		return nil, err
	}

	s.logger.Info("manager signed up",
		slog.Int("season", season),
		slog.Int("manager_id", manager.ID),
		slog.String("username", manager.Username))
	return manager, nil
}

// SignIn verifies credentials and issues a season-scoped access token.
func (s *AuthService) SignIn(ctx context.Context, season int, creds models.Credentials) (string, *models.Manager, error) {
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return "", nil, mapSeasonError(err)
	}
	manager, err := stores.Managers.GetByUsername(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrManagerNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !utils.CheckPasswordHash(creds.Password, manager.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now()
	claims := Claims{
		ManagerID: manager.ID,
		Role:      manager.Role,
		Season:    season,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, manager, nil
}

// ParseToken validates a token and returns its claims.
func (s *AuthService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredentials
	}
	return claims, nil
}
