// Package trust implements the trust-relationship lifecycle between
// wallets: request, accept, decline, cancel, and the authorization and
// visibility rules around each transition.
package trust

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a trust relationship.
type State string

const (
	StateRequested            State = "requested"
	StateTrusted              State = "trusted"
	StateCanceledByOriginator State = "canceled_by_originator"
	StateCanceledByTarget     State = "canceled_by_target"
)

// Terminal reports whether no further transitions are defined from s.
func (s State) Terminal() bool {
	return s == StateTrusted || s == StateCanceledByOriginator || s == StateCanceledByTarget
}

// ParseState validates a state string from an API filter.
func ParseState(s string) (State, error) {
	switch State(s) {
	case StateRequested, StateTrusted, StateCanceledByOriginator, StateCanceledByTarget:
		return State(s), nil
	}
	return "", fmt.Errorf("%w: unknown state %q", ErrValidation, s)
}

// RequestType is the capability a trust relationship grants.
type RequestType string

const (
	// RequestTypeSend lets the target send assets on the actor's behalf.
	RequestTypeSend RequestType = "send"
	// RequestTypeManage lets the actor manage the target wallet.
	RequestTypeManage RequestType = "manage"
	// RequestTypeYield hands the actor's assets over to the target.
	RequestTypeYield RequestType = "yield"
)

// ParseRequestType validates a request type string.
func ParseRequestType(s string) (RequestType, error) {
	switch RequestType(s) {
	case RequestTypeSend, RequestTypeManage, RequestTypeYield:
		return RequestType(s), nil
	}
	return "", fmt.Errorf("%w: unknown trust request type %q", ErrValidation, s)
}

// Sentinel errors for the trust domain. Handlers map these onto stable
// HTTP status codes.
var (
	ErrNotFound   = errors.New("trust relationship not found")
	ErrForbidden  = errors.New("wallet may not perform this transition")
	ErrConflict   = errors.New("trust relationship state conflict")
	ErrSelfTrust  = errors.New("requester and requestee are the same wallet")
	ErrValidation = errors.New("invalid trust request")
)

// TrustRelationship is a directional, typed permission grant between two
// wallets. The actor grants the capability, the target receives it, and
// the originator is whichever of the two issued the request.
type TrustRelationship struct {
	ID                 uuid.UUID   `json:"id"                   db:"id"`
	ActorWalletID      uuid.UUID   `json:"actor_wallet_id"      db:"actor_wallet_id"`
	TargetWalletID     uuid.UUID   `json:"target_wallet_id"     db:"target_wallet_id"`
	OriginatorWalletID uuid.UUID   `json:"originator_wallet_id" db:"originator_wallet_id"`
	RequestType        RequestType `json:"request_type"         db:"request_type"`
	State              State       `json:"state"                db:"state"`
	CreatedAt          time.Time   `json:"created_at"           db:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"           db:"updated_at"`
}

// Involves reports whether the wallet is a party to this relationship.
func (tr *TrustRelationship) Involves(walletID uuid.UUID) bool {
	return tr.ActorWalletID == walletID || tr.TargetWalletID == walletID
}

// Filter selects relationships for a listing query. WalletID is required;
// State and RequestType are optional. A zero Limit means no limit.
type Filter struct {
	WalletID    uuid.UUID
	State       State
	RequestType RequestType
	Offset      int
	Limit       int
}
