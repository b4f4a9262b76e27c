package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidName is returned for wallet names that are empty or contain
// whitespace.
var ErrInvalidName = errors.New("invalid wallet name")

// ErrBadCredentials is returned when a login attempt fails. The caller
// cannot distinguish an unknown wallet from a wrong password.
var ErrBadCredentials = errors.New("invalid wallet name or password")

// walletRepo is the storage interface consumed by Service.
type walletRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Wallet, error)
	GetByName(ctx context.Context, name string) (*Wallet, error)
	GetAllWallets(ctx context.Context, id uuid.UUID, paging *Paging, nameFilter string, wantCount bool) ([]*Wallet, int, error)
}

// Service is the wallet directory: identity resolution and hierarchy
// queries over trust edges.
type Service struct {
	repo   walletRepo
	logger *zap.Logger
}

// NewService creates a wallet Service.
func NewService(repo walletRepo, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// ValidateName rejects empty names and names containing whitespace.
func ValidateName(name string) error {
	if name == "" || strings.ContainsAny(name, " \t\n\r") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// GetByID resolves a wallet by identifier.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Wallet, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByName resolves a wallet by exact name.
func (s *Service) GetByName(ctx context.Context, name string) (*Wallet, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return s.repo.GetByName(ctx, name)
}

// GetAllWallets returns the wallet itself plus every wallet it controls
// through trusted manage/yield edges.
func (s *Service) GetAllWallets(ctx context.Context, id uuid.UUID, paging *Paging, nameFilter string, wantCount bool) ([]*Wallet, int, error) {
	return s.repo.GetAllWallets(ctx, id, paging, nameFilter, wantCount)
}

// VerifyPassword checks a wallet's credentials and returns the wallet on
// success. Unknown names and wrong passwords both map to ErrBadCredentials.
func (s *Service) VerifyPassword(ctx context.Context, name, password string) (*Wallet, error) {
	if err := ValidateName(name); err != nil {
		return nil, ErrBadCredentials
	}
	w, err := s.repo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(w.PasswordHash), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	return w, nil
}
