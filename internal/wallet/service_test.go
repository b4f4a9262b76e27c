package wallet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type stubRepo struct {
	wallets []*Wallet
}

func (r *stubRepo) GetByID(_ context.Context, id uuid.UUID) (*Wallet, error) {
	for _, w := range r.wallets {
		if w.ID == id {
			return w, nil
		}
	}
	return nil, ErrNotFound
}

func (r *stubRepo) GetByName(_ context.Context, name string) (*Wallet, error) {
	for _, w := range r.wallets {
		if w.Name == name {
			return w, nil
		}
	}
	return nil, ErrNotFound
}

func (r *stubRepo) GetAllWallets(_ context.Context, id uuid.UUID, paging *Paging, nameFilter string, wantCount bool) ([]*Wallet, int, error) {
	w, err := r.GetByID(context.Background(), id)
	if err != nil {
		return nil, 0, err
	}
	return []*Wallet{w}, 1, nil
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(h)
}

func TestValidateName(t *testing.T) {
	for _, valid := range []string{"cedar-grove", "wallet_1", "a"} {
		if err := ValidateName(valid); err != nil {
			t.Errorf("ValidateName(%q): %v", valid, err)
		}
	}
	for _, invalid := range []string{"", "cedar grove", "cedar\tgrove", "cedar\ngrove"} {
		if err := ValidateName(invalid); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q): expected ErrInvalidName, got %v", invalid, err)
		}
	}
}

func TestGetByName(t *testing.T) {
	w := &Wallet{ID: uuid.New(), Name: "cedar-grove", CreatedAt: time.Now()}
	svc := NewService(&stubRepo{wallets: []*Wallet{w}}, zap.NewNop())
	ctx := context.Background()

	got, err := svc.GetByName(ctx, "cedar-grove")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if got.ID != w.ID {
		t.Errorf("got wallet %s, want %s", got.ID, w.ID)
	}

	if _, err := svc.GetByName(ctx, "oak-ridge"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown name: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GetByName(ctx, "cedar grove"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("invalid name: expected ErrInvalidName, got %v", err)
	}
}

func TestVerifyPassword(t *testing.T) {
	w := &Wallet{
		ID:           uuid.New(),
		Name:         "cedar-grove",
		PasswordHash: hashPassword(t, "grow-trees"),
	}
	svc := NewService(&stubRepo{wallets: []*Wallet{w}}, zap.NewNop())
	ctx := context.Background()

	got, err := svc.VerifyPassword(ctx, "cedar-grove", "grow-trees")
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if got.ID != w.ID {
		t.Errorf("got wallet %s, want %s", got.ID, w.ID)
	}

	cases := []struct{ name, password string }{
		{"cedar-grove", "wrong-password"},
		{"oak-ridge", "grow-trees"},
		{"", "grow-trees"},
	}
	for _, tc := range cases {
		if _, err := svc.VerifyPassword(ctx, tc.name, tc.password); !errors.Is(err, ErrBadCredentials) {
			t.Errorf("VerifyPassword(%q, %q): expected ErrBadCredentials, got %v", tc.name, tc.password, err)
		}
	}
}

func TestGetAllWallets_selfOnly(t *testing.T) {
	w := &Wallet{ID: uuid.New(), Name: "cedar-grove"}
	svc := NewService(&stubRepo{wallets: []*Wallet{w}}, zap.NewNop())

	wallets, total, err := svc.GetAllWallets(context.Background(), w.ID, nil, "", true)
	if err != nil {
		t.Fatalf("GetAllWallets: %v", err)
	}
	if total != 1 || len(wallets) != 1 || wallets[0].ID != w.ID {
		t.Errorf("got %d wallets (total %d), want only the wallet itself", len(wallets), total)
	}
}
