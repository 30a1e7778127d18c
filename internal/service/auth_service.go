package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"educamp/internal/domain"
	"educamp/internal/repository"
	"educamp/internal/session"
)

var (
	ErrInvalidCredentials = domain.NewError(domain.ErrUnauthenticated, "invalid credentials")
	ErrRateLimited        = errors.New("too many login attempts")
	ErrAccountDisabled    = session.ErrAccountDisabled
)

// dummyHash iguala el costo de bcrypt cuando el email no existe.
var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

func compareDummyHash(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("educamp-login"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// AuthService verifica credenciales y administra el ciclo de vida de la sesion.
type AuthService struct {
	logger   *zap.Logger
	users    repository.UserRepository
	sessions *session.Registry
	limiter  LoginRateLimiter
}

func NewAuthService(logger *zap.Logger, users repository.UserRepository, sessions *session.Registry, limiter LoginRateLimiter) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = NewLoginRateLimiter(loginWindow, loginMaxAttempts)
	}
	return &AuthService{
		logger:   logger,
		users:    users,
		sessions: sessions,
		limiter:  limiter,
	}
}

const (
	loginWindow      = 10 * time.Minute
	loginMaxAttempts = 5
)

// Login devuelve una sesion nueva. Los errores de credenciales son genericos
// para no revelar si el email existe.
func (s *AuthService) Login(ctx context.Context, emailAddr, password, clientIP string) (domain.Session, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return domain.Session{}, ErrInvalidCredentials
	}
	if !s.limiter.Allow(emailAddr) {
		s.logger.Warn("login rate limited", zap.String("email", emailAddr))
		return domain.Session{}, ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			compareDummyHash(password)
			return domain.Session{}, ErrInvalidCredentials
		}
		return domain.Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if user.PasswordHash == "" {
		return domain.Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.Session{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return domain.Session{}, ErrAccountDisabled
	}

	sess, err := s.sessions.Create(ctx, domain.Principal{UserID: user.ID}, clientIP)
	if err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

func (s *AuthService) Logout(token string) {
	s.sessions.Invalidate(token)
}

// LogoutEverywhere cierra todas las sesiones del usuario.
func (s *AuthService) LogoutEverywhere(userID string) int {
	n := s.sessions.InvalidateUser(userID)
	s.logger.Info("user logged out everywhere", zap.String("user_id", userID), zap.Int("sessions", n))
	return n
}

func (s *AuthService) Me(ctx context.Context, token string) (domain.Principal, error) {
	return s.sessions.Validate(ctx, token)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
