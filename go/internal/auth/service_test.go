package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/focuspact/focuspact/go/internal/models"
	"github.com/google/uuid"
)

type memoryMemberStore struct {
	mu      sync.Mutex
	byEmail map[string]*models.Member
}

func newMemoryMemberStore() *memoryMemberStore {
	return &memoryMemberStore{byEmail: make(map[string]*models.Member)}
}

func (s *memoryMemberStore) CreateMember(ctx context.Context, name, email, passwordHash string) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	member := &models.Member{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
	}
	s.byEmail[email] = member
	return member, nil
}

func (s *memoryMemberStore) MemberByEmail(ctx context.Context, email string) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byEmail[email], nil
}

func newTestService() *Service {
	return NewService(newMemoryMemberStore(), []byte("test-secret"))
}

func TestRegisterIssuesVerifiableToken(t *testing.T) {
	s := newTestService()

	token, member, err := s.Register(context.Background(), "Ada", "ada@example.com", "hunter22")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	identity, err := s.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if identity.MemberID != member.ID {
		t.Fatalf("identity member = %s, want %s", identity.MemberID, member.ID)
	}
	if identity.Name != "Ada" || identity.Email != "ada@example.com" {
		t.Fatalf("identity = %+v, want Ada/ada@example.com", identity)
	}
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	s := newTestService()

	if _, _, err := s.Register(context.Background(), "", "a@b.c", "pw"); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("err = %v, want ErrMissingFields", err)
	}
	if _, _, err := s.Register(context.Background(), "Ada", "", "pw"); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("err = %v, want ErrMissingFields", err)
	}
	if _, _, err := s.Register(context.Background(), "Ada", "a@b.c", ""); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("err = %v, want ErrMissingFields", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	s := newTestService()

	if _, _, err := s.Register(context.Background(), "Ada", "ada@example.com", "pw"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, _, err := s.Register(context.Background(), "Other", "Ada@Example.com", "pw2")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
}

func TestLogin(t *testing.T) {
	s := newTestService()
	if _, _, err := s.Register(context.Background(), "Ada", "ada@example.com", "hunter22"); err != nil {
		t.Fatalf("register: %v", err)
	}

	token, member, err := s.Login(context.Background(), "ada@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" || member == nil {
		t.Fatal("login returned empty token or member")
	}

	if _, _, err := s.Login(context.Background(), "ada@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := s.Login(context.Background(), "nobody@example.com", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email err = %v, want ErrInvalidCredentials", err)
	}
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	s := newTestService()

	if _, err := s.VerifyToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyTokenRejectsForeignSignature(t *testing.T) {
	issuer := NewService(newMemoryMemberStore(), []byte("secret-a"))
	verifier := NewService(newMemoryMemberStore(), []byte("secret-b"))

	token, _, err := issuer.Register(context.Background(), "Ada", "ada@example.com", "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := verifier.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}
