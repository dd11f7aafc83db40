// Package auth signs in incident handlers and guards the handler API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"incident-quiz/internal/models"

	"github.com/dgrijalva/jwt-go"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
)

// Claims carried by access tokens.
type Claims struct {
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	IsHandler bool   `json:"is_handler"`
	jwt.StandardClaims
}

type Service struct {
	repo      *Repository
	jwtSecret []byte
	expire    time.Duration
	log       *zap.Logger
}

func NewService(repo *Repository, jwtSecret string, expire time.Duration, log *zap.Logger) *Service {
	if expire <= 0 {
		expire = 24 * time.Hour
	}
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		expire:    expire,
		log:       log,
	}
}

func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		s.log.Info("Rejected login", zap.String("username", username))
		return "", ErrInvalidCredentials
	}
	return s.Issue(user)
}

// Issue signs an access token for user.
func (s *Service) Issue(user *models.User) (string, error) {
	claims := Claims{
		UserID:    user.ID,
		Username:  user.Username,
		IsHandler: user.IsHandler,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(s.expire).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// Parse validates a token and returns its claims.
func (s *Service) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (s *Service) Register(ctx context.Context, user *models.User) error {
	taken, err := s.repo.UsernameTaken(ctx, user.Username)
	if err != nil {
		return err
	}
	if taken {
		return ErrUsernameTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.Password = string(hashedPassword)
	return s.repo.CreateUser(ctx, user)
}
