// Package services contains server-side business logic. This file implements
// UserService, which registers users and issues the JWTs that identify them
// to the HTTP API.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/careconnect/internal/common"
	"github.com/dmitrijs2005/careconnect/internal/server/auth"
	"github.com/dmitrijs2005/careconnect/internal/server/config"
	"github.com/dmitrijs2005/careconnect/internal/server/models"
	"github.com/dmitrijs2005/careconnect/internal/server/repositories/repomanager"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// UserService provides user registration and token issuing.
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	validate                    *validator.Validate
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		validate:                    validator.New(),
		jwtSecret:                   []byte(cfg.JWTSecret),
		accessTokenValidityDuration: cfg.TokenValidity,
	}
}

// Register creates a user and returns it with a freshly issued access token.
// A taken email yields common.ErrConflict.
func (s *UserService) Register(ctx context.Context, email, displayName string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, "", fmt.Errorf("%w: invalid email", common.ErrValidation)
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.Create(ctx, &models.User{Email: email, DisplayName: strings.TrimSpace(displayName)})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, "", common.ErrConflict
		}
		return nil, "", fmt.Errorf("error creating user: %w", err)
	}

	token, err := s.generateAccessToken(user.ID)
	if err != nil {
		return nil, "", common.ErrorInternal
	}
	return user, token, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, common.ErrorNotFound
	}
	return s.repomanager.Users(s.db).Get(ctx, id)
}

func (s *UserService) generateAccessToken(userID string) (string, error) {
	return auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
}
