package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/francium/storefront/internal/auth/domain"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserNotFound       = errors.New("user not found")
)

const tokenTTL = 7 * 24 * time.Hour

type Service struct {
	repo   UserRepo
	secret []byte
}

func NewService(repo UserRepo, jwtSecret string) *Service {
	return &Service{repo: repo, secret: []byte(jwtSecret)}
}

type RegisterParams struct {
	Email    string
	Password string
	FullName string
	Phone    string
	Address  string
}

type Session struct {
	User  domain.User
	Token string
}

func (s *Service) Register(ctx context.Context, p RegisterParams) (Session, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" || p.Password == "" || strings.TrimSpace(p.FullName) == "" {
		return Session{}, ErrInvalidInput
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return Session{}, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, domain.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(p.FullName),
		Phone:        p.Phone,
		Address:      p.Address,
		Role:         domain.RoleCustomer,
	})
	if err != nil {
		return Session{}, err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return Session{}, err
	}
	return Session{User: user, Token: token}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrUserNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		return Session{}, err
	}
	return Session{User: user, Token: token}, nil
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (s *Service) issueToken(user domain.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a bearer token and returns the identity it
// carries.
func (s *Service) ParseToken(tokenString string) (domain.Identity, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid || c.Subject == "" {
		return domain.Identity{}, ErrInvalidToken
	}

	role := domain.Role(c.Role)
	if role != domain.RoleAdmin {
		role = domain.RoleCustomer
	}
	return domain.Identity{UserID: c.Subject, Role: role}, nil
}
