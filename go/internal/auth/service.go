package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/focuspact/focuspact/go/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 7 * 24 * time.Hour

var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailTaken means the email is already registered.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidToken means the bearer token failed verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrMissingFields means a register/login request was incomplete.
	ErrMissingFields = errors.New("missing required fields")
)

// MemberStore defines what the auth service needs from member persistence.
type MemberStore interface {
	CreateMember(ctx context.Context, name, email, passwordHash string) (*models.Member, error)
	// MemberByEmail returns (nil, nil) when no member has the email.
	MemberByEmail(ctx context.Context, email string) (*models.Member, error)
}

// Service issues and verifies credentials.
type Service struct {
	members MemberStore
	secret  []byte
}

// NewService creates the auth service. The secret signs session tokens.
func NewService(members MemberStore, secret []byte) *Service {
	return &Service{members: members, secret: secret}
}

type claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Register creates an account and returns a signed token for it.
func (s *Service) Register(ctx context.Context, name, email, password string) (string, *models.Member, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return "", nil, ErrMissingFields
	}

	existing, err := s.members.MemberByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("look up member: %w", err)
	}
	if existing != nil {
		return "", nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	member, err := s.members.CreateMember(ctx, name, email, string(hash))
	if err != nil {
		return "", nil, fmt.Errorf("create member: %w", err)
	}

	token, err := s.IssueToken(member)
	if err != nil {
		return "", nil, err
	}
	return token, member, nil
}

// Login verifies the credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.Member, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	member, err := s.members.MemberByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("look up member: %w", err)
	}
	if member == nil {
		return "", nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.IssueToken(member)
	if err != nil {
		return "", nil, err
	}
	return token, member, nil
}

// IssueToken signs a 7-day token carrying the member's public identity.
func (s *Service) IssueToken(member *models.Member) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Name:  member.Name,
		Email: member.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   member.ID.String(),
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

// VerifyToken resolves a bearer token to an identity.
func (s *Service) VerifyToken(tokenString string) (Identity, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	memberID, err := uuid.Parse(c.Subject)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	return Identity{MemberID: memberID, Name: c.Name, Email: c.Email}, nil
}
