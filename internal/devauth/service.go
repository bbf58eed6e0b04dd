package devauth

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/KevinKickass/FleetView/internal/config"
	"github.com/KevinKickass/FleetView/internal/types"
	"go.uber.org/zap"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownUser        = errors.New("user not found")
)

// Service is the stand-in for the upstream authentication API: it checks
// credentials against configured users and serves their profiles.
type Service struct {
	mu     sync.RWMutex
	users  map[string]config.DevUser
	hasher *PasswordHasher
	tokens *TokenIssuer
	logger *zap.Logger

	// dummyHash keeps unknown-user logins as slow as wrong-password ones.
	dummyHash string
}

func NewService(cfg config.DevUpstreamConfig, logger *zap.Logger) (*Service, error) {
	hasher := NewPasswordHasher()

	dummy, err := hasher.Hash("fleetview-dummy")
	if err != nil {
		return nil, err
	}

	s := &Service{
		users:     make(map[string]config.DevUser),
		hasher:    hasher,
		tokens:    NewTokenIssuer(cfg.GetJWTSecret(), cfg.TokenTTL),
		logger:    logger,
		dummyHash: dummy,
	}

	for _, u := range cfg.Users {
		if err := s.AddUser(u); err != nil {
			return nil, fmt.Errorf("user %q: %w", u.Username, err)
		}
	}

	return s, nil
}

// AddUser registers a user. PasswordHash must be an encoded argon2id hash.
func (s *Service) AddUser(u config.DevUser) error {
	if strings.TrimSpace(u.Username) == "" {
		return errors.New("username is required")
	}
	if !strings.HasPrefix(u.PasswordHash, "$argon2id$") {
		return ErrInvalidHash
	}

	s.mu.Lock()
	s.users[u.Username] = u
	s.mu.Unlock()
	return nil
}

// AddUserWithPassword hashes password and registers the user.
func (s *Service) AddUserWithPassword(u config.DevUser, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return s.AddUser(u)
}

func (s *Service) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// Login verifies credentials and returns a signed token.
func (s *Service) Login(username, password string) (string, error) {
	s.mu.RLock()
	user, ok := s.users[username]
	s.mu.RUnlock()

	if !ok {
		s.hasher.Verify(password, s.dummyHash)
		s.logger.Info("Login failed", zap.String("username", username), zap.String("reason", "unknown user"))
		return "", ErrInvalidCredentials
	}

	valid, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil || !valid {
		s.logger.Info("Login failed", zap.String("username", username), zap.String("reason", "invalid password"))
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.Username, user.Role)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}

	s.logger.Info("Login successful", zap.String("username", username))
	return token, nil
}

// Profile resolves claims to the stored user's profile.
func (s *Service) Profile(claims *Claims) (*types.Profile, error) {
	s.mu.RLock()
	user, ok := s.users[claims.Username]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrUnknownUser
	}

	return &types.Profile{
		UserName:    user.Username,
		Email:       user.Email,
		Role:        user.Role,
		PhoneNumber: user.PhoneNumber,
	}, nil
}

func (s *Service) Tokens() *TokenIssuer { return s.tokens }
