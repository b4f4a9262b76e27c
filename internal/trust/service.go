package trust

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/canopyledger/wallet-trust/internal/event"
	"github.com/canopyledger/wallet-trust/internal/wallet"
)

// trustStore is the persistence interface for the trust service.
// *Repository satisfies this interface.
type trustStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*TrustRelationship, error)
	GetScoped(ctx context.Context, walletID, id uuid.UUID) (*TrustRelationship, error)
	List(ctx context.Context, f Filter) ([]*TrustRelationship, error)
	Create(ctx context.Context, tr *TrustRelationship) error
	Accept(ctx context.Context, walletID, id uuid.UUID) (*TrustRelationship, error)
	Decline(ctx context.Context, walletID, id uuid.UUID) (*TrustRelationship, error)
	Cancel(ctx context.Context, walletID, id uuid.UUID) (*TrustRelationship, error)
}

// walletDirectory resolves wallet identities and hierarchies.
// *wallet.Service satisfies this interface.
type walletDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error)
	GetByName(ctx context.Context, name string) (*wallet.Wallet, error)
	GetAllWallets(ctx context.Context, id uuid.UUID, paging *wallet.Paging, nameFilter string, wantCount bool) ([]*wallet.Wallet, int, error)
}

// Service orchestrates trust relationship workflows: wallet validation,
// state transitions, hierarchy aggregation, and audit event emission.
type Service struct {
	store   trustStore
	wallets walletDirectory
	events  event.Notifier // nil = no audit events
	logger  *zap.Logger
}

// NewService creates a trust Service. events may be nil to disable audit
// event emission.
func NewService(store trustStore, wallets walletDirectory, events event.Notifier, logger *zap.Logger) *Service {
	return &Service{store: store, wallets: wallets, events: events, logger: logger}
}

// CreateRequest is the input for CreateTrustRelationship.
type CreateRequest struct {
	// WalletLoginID is the authenticated wallet issuing the request.
	WalletLoginID uuid.UUID
	// RequesteeWallet is the counterparty wallet name.
	RequesteeWallet string
	// RequesterWallet optionally names the wallet the request is made on
	// behalf of; empty means the originator requests for itself.
	RequesterWallet string
	// RequestType is the capability being requested.
	RequestType string
}

// GetTrustRelationships lists relationships scoped to one wallet. The
// wallet's existence is checked first so an unknown wallet fails with the
// directory's NotFound before any store query runs.
func (s *Service) GetTrustRelationships(ctx context.Context, f Filter) ([]*TrustRelationship, error) {
	if _, err := s.wallets.GetByID(ctx, f.WalletID); err != nil {
		return nil, err
	}
	return s.store.List(ctx, f)
}

// GetAllTrustRelationships aggregates relationships across the wallet's
// full controlled hierarchy. Each member wallet is queried concurrently
// and results are deduplicated by relationship id.
//
// Offset/limit are deliberately not supported here: the fan-out cannot
// produce a truthful total count, so any paging would misrepresent it. A
// single cross-wallet query would be required first.
func (s *Service) GetAllTrustRelationships(ctx context.Context, f Filter) ([]*TrustRelationship, error) {
	if _, err := s.wallets.GetByID(ctx, f.WalletID); err != nil {
		return nil, err
	}
	members, _, err := s.wallets.GetAllWallets(ctx, f.WalletID, nil, "", false)
	if err != nil {
		return nil, fmt.Errorf("resolve wallet hierarchy: %w", err)
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		all      []*TrustRelationship
		firstErr error
	)
	// One query per hierarchy member, unbounded. Hierarchies are small in
	// practice; a very large one issues that many simultaneous queries.
	for _, m := range members {
		wg.Add(1)
		go func(walletID uuid.UUID) {
			defer wg.Done()
			mf := f
			mf.WalletID = walletID
			mf.Offset = 0
			mf.Limit = 0
			rels, err := s.store.List(ctx, mf)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			all = append(all, rels...)
		}(m.ID)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	// The same relationship is visible through both of its parties, so
	// dedup by id; first seen wins, order is not significant.
	seen := make(map[uuid.UUID]struct{}, len(all))
	out := make([]*TrustRelationship, 0, len(all))
	for _, tr := range all {
		if _, ok := seen[tr.ID]; ok {
			continue
		}
		seen[tr.ID] = struct{}{}
		out = append(out, tr)
	}
	return out, nil
}

// CreateTrustRelationship resolves all three wallet identities and creates
// a relationship in the requested state. The requester becomes the actor
// granting the capability, the requestee the target. Both parties receive
// a trust_request audit event with identical payloads.
func (s *Service) CreateTrustRelationship(ctx context.Context, req CreateRequest) (*TrustRelationship, error) {
	requestType, err := ParseRequestType(req.RequestType)
	if err != nil {
		return nil, err
	}

	originator, err := s.wallets.GetByID(ctx, req.WalletLoginID)
	if err != nil {
		return nil, err
	}
	requestee, err := s.wallets.GetByName(ctx, req.RequesteeWallet)
	if err != nil {
		return nil, err
	}
	requester := originator
	if req.RequesterWallet != "" {
		requester, err = s.wallets.GetByName(ctx, req.RequesterWallet)
		if err != nil {
			return nil, err
		}
	}
	if requester.ID == requestee.ID {
		return nil, ErrSelfTrust
	}

	tr := &TrustRelationship{
		ActorWalletID:      requester.ID,
		TargetWalletID:     requestee.ID,
		OriginatorWalletID: originator.ID,
		RequestType:        requestType,
	}
	if err := s.store.Create(ctx, tr); err != nil {
		return nil, err
	}

	s.logger.Info("trust relationship requested",
		zap.String("id", tr.ID.String()),
		zap.String("requester", requester.Name),
		zap.String("requestee", requestee.Name),
		zap.String("request_type", string(requestType)),
	)

	payload := map[string]string{
		"requester_wallet":   requester.Name,
		"requestee_wallet":   requestee.Name,
		"trust_request_type": string(requestType),
	}
	s.notify(ctx, requester.ID, event.TypeTrustRequest, payload)
	s.notify(ctx, requestee.ID, event.TypeTrustRequest, payload)

	return tr, nil
}

// AcceptTrustRequestSentToMe accepts a pending request addressed to the
// calling wallet. Both the caller and the originator receive a
// trust_request_granted event once the transition has committed.
func (s *Service) AcceptTrustRequestSentToMe(ctx context.Context, walletLoginID, trustRelationshipID uuid.UUID) (*TrustRelationship, error) {
	tr, err := s.store.Accept(ctx, walletLoginID, trustRelationshipID)
	if err != nil {
		return nil, err
	}
	s.notifyTransition(ctx, event.TypeTrustRequestGranted, trustRelationshipID,
		walletLoginID, tr.OriginatorWalletID)
	return tr, nil
}

// DeclineTrustRequestSentToMe declines a pending request addressed to the
// calling wallet.
func (s *Service) DeclineTrustRequestSentToMe(ctx context.Context, walletLoginID, trustRelationshipID uuid.UUID) (*TrustRelationship, error) {
	tr, err := s.store.Decline(ctx, walletLoginID, trustRelationshipID)
	if err != nil {
		return nil, err
	}
	s.notifyTransition(ctx, event.TypeTrustRequestCancelledByTarget, trustRelationshipID,
		walletLoginID, tr.OriginatorWalletID)
	return tr, nil
}

// CancelTrustRequest withdraws a pending request the calling wallet
// originated. The counterparty notified is the target.
func (s *Service) CancelTrustRequest(ctx context.Context, walletLoginID, trustRelationshipID uuid.UUID) (*TrustRelationship, error) {
	tr, err := s.store.Cancel(ctx, walletLoginID, trustRelationshipID)
	if err != nil {
		return nil, err
	}
	s.notifyTransition(ctx, event.TypeTrustRequestCancelledByOriginator, trustRelationshipID,
		walletLoginID, tr.TargetWalletID)
	return tr, nil
}

// TrustRelationshipGetByID fetches a relationship visible to the calling
// wallet.
func (s *Service) TrustRelationshipGetByID(ctx context.Context, walletLoginID, trustRelationshipID uuid.UUID) (*TrustRelationship, error) {
	return s.store.GetScoped(ctx, walletLoginID, trustRelationshipID)
}

// notifyTransition emits the same event to the acting wallet and the
// counterparty. When the two are the same wallet it still receives both
// entries, matching one event per involved party per transition.
func (s *Service) notifyTransition(ctx context.Context, typ event.Type, trustRelationshipID uuid.UUID, actingWalletID, counterpartyID uuid.UUID) {
	payload := map[string]string{"trust_relationship_id": trustRelationshipID.String()}
	s.notify(ctx, actingWalletID, typ, payload)
	s.notify(ctx, counterpartyID, typ, payload)
}

// notify emits one audit event. Failures are logged and never propagate:
// the transition that produced the event has already committed.
func (s *Service) notify(ctx context.Context, walletID uuid.UUID, typ event.Type, payload map[string]string) {
	if s.events == nil {
		return
	}
	if err := s.events.LogEvent(ctx, event.Event{WalletID: walletID, Type: typ, Payload: payload}); err != nil {
		s.logger.Error("log trust event (non-fatal)",
			zap.String("type", string(typ)),
			zap.String("wallet_id", walletID.String()),
			zap.Error(err),
		)
	}
}
