package wallet

import (
	"time"

	"github.com/google/uuid"
)

// Wallet is an account entity that can hold assets and participate in
// trust relationships.
type Wallet struct {
	ID           uuid.UUID `json:"id"                 db:"id"`
	Name         string    `json:"name"               db:"name"`
	PasswordHash string    `json:"-"                  db:"password_hash"`
	LogoURL      string    `json:"logo_url,omitempty" db:"logo_url"`
	CreatedAt    time.Time `json:"created_at"         db:"created_at"`
}

// Paging bounds a listing query. A zero Limit means no limit.
type Paging struct {
	Offset int
	Limit  int
}
