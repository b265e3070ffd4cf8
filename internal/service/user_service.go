package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"TownSquare/internal/config"
	"TownSquare/internal/model"
	"TownSquare/internal/pkg"
	"TownSquare/internal/repository/mysql"
	"TownSquare/internal/repository/redis"
)

type UserService struct {
	repo   *mysql.UserRepository
	tokens *redis.TokenRepository
	jwt    *pkg.TokenManager
	logger *zap.Logger
}

func NewUserService(db *gorm.DB, tokens *redis.TokenRepository, jwt *pkg.TokenManager, logger *zap.Logger) *UserService {
	return &UserService{
		repo:   &mysql.UserRepository{DB: db},
		tokens: tokens,
		jwt:    jwt,
		logger: logger.Named("user"),
	}
}

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=64"`
	FullName string `json:"full_name" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=4,max=72"`
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	if err := validateStruct(&in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Email:    in.Email,
		FullName: in.FullName,
		Password: string(hash),
		Role:     model.RoleUser,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user registered", zap.Uint64("user_id", user.ID))
	return user, nil
}

// Login 校验密码并签发 token，access token 写入 redis
func (s *UserService) Login(ctx context.Context, email, password string) (*pkg.Pair, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, user)
}

func (s *UserService) Logout(ctx context.Context, userID uint64) error {
	return s.tokens.DeleteUserToken(ctx, userID)
}

// Refresh 用 refresh token 换新的一对 token，角色以库中为准
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*pkg.Pair, error) {
	claims, err := s.jwt.ParseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkg.ErrRefreshInvalid
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return s.issue(ctx, user)
}

func (s *UserService) issue(ctx context.Context, user *model.User) (*pkg.Pair, error) {
	pair, err := s.jwt.GeneratePair(user)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.AddUserToken(ctx, user.ID, pair.AccessToken); err != nil {
		return nil, err
	}
	return pair, nil
}

// Seed 确保管理员和测试用户存在
func (s *UserService) Seed(ctx context.Context, cfg config.SeedConfig) error {
	accounts := []struct {
		acc  config.SeedAccount
		role model.Role
	}{
		{cfg.Admin, model.RoleAdmin},
		{cfg.User, model.RoleUser},
	}
	for _, a := range accounts {
		if a.acc.Email == "" {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(a.acc.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		user := &model.User{
			Email:    strings.ToLower(a.acc.Email),
			FullName: a.acc.FullName,
			Password: string(hash),
			Role:     a.role,
		}
		created, err := s.repo.EnsureByEmail(ctx, user)
		if err != nil {
			return fmt.Errorf("seed %s: %w", a.role, err)
		}
		if created {
			s.logger.Info("seeded user", zap.String("email", user.Email), zap.String("role", string(a.role)))
		}
	}
	return nil
}
