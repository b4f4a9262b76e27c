package trust

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/canopyledger/wallet-trust/internal/event"
	"github.com/canopyledger/wallet-trust/internal/wallet"
)

// stubStore is an in-memory trustStore with the same transition rules as
// the Postgres repository: one live relationship per (actor, target,
// request_type), target-only accept/decline, originator-only cancel, and
// transitions allowed only out of the requested state.
type stubStore struct {
	mu   sync.Mutex
	rels map[uuid.UUID]*TrustRelationship
}

func newStubStore() *stubStore {
	return &stubStore{rels: make(map[uuid.UUID]*TrustRelationship)}
}

func (s *stubStore) GetByID(_ context.Context, id uuid.UUID) (*TrustRelationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.rels[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tr
	return &cp, nil
}

func (s *stubStore) GetScoped(ctx context.Context, walletID, id uuid.UUID) (*TrustRelationship, error) {
	tr, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tr.Involves(walletID) {
		return nil, ErrNotFound
	}
	return tr, nil
}

func (s *stubStore) List(_ context.Context, f Filter) ([]*TrustRelationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*TrustRelationship
	for _, tr := range s.rels {
		if !tr.Involves(f.WalletID) {
			continue
		}
		if f.State != "" && tr.State != f.State {
			continue
		}
		if f.RequestType != "" && tr.RequestType != f.RequestType {
			continue
		}
		cp := *tr
		out = append(out, &cp)
	}
	return out, nil
}

func (s *stubStore) Create(_ context.Context, tr *TrustRelationship) error {
	if tr.ActorWalletID == tr.TargetWalletID {
		return ErrSelfTrust
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rels {
		if existing.ActorWalletID == tr.ActorWalletID &&
			existing.TargetWalletID == tr.TargetWalletID &&
			existing.RequestType == tr.RequestType &&
			(existing.State == StateRequested || existing.State == StateTrusted) {
			return fmt.Errorf("%w: a live %s relationship already exists", ErrConflict, tr.RequestType)
		}
	}
	tr.ID = uuid.New()
	tr.State = StateRequested
	tr.CreatedAt = time.Now()
	tr.UpdatedAt = tr.CreatedAt
	cp := *tr
	s.rels[tr.ID] = &cp
	return nil
}

func (s *stubStore) Accept(ctx context.Context, walletID, id uuid.UUID) (*TrustRelationship, error) {
	return s.transition(id, StateTrusted, func(tr *TrustRelationship) bool {
		return tr.TargetWalletID == walletID
	})
}

func (s *stubStore) Decline(ctx context.Context, walletID, id uuid.UUID) (*TrustRelationship, error) {
	return s.transition(id, StateCanceledByTarget, func(tr *TrustRelationship) bool {
		return tr.TargetWalletID == walletID
	})
}

func (s *stubStore) Cancel(ctx context.Context, walletID, id uuid.UUID) (*TrustRelationship, error) {
	return s.transition(id, StateCanceledByOriginator, func(tr *TrustRelationship) bool {
		return tr.OriginatorWalletID == walletID
	})
}

func (s *stubStore) transition(id uuid.UUID, to State, allowed func(*TrustRelationship) bool) (*TrustRelationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.rels[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !allowed(tr) {
		return nil, ErrForbidden
	}
	if tr.State != StateRequested {
		return nil, fmt.Errorf("%w: relationship is %s", ErrConflict, tr.State)
	}
	tr.State = to
	tr.UpdatedAt = time.Now()
	cp := *tr
	return &cp, nil
}

// stubDirectory resolves wallets from fixed maps. hierarchy lists the
// wallets returned by GetAllWallets per root wallet; a missing entry
// means the wallet only sees itself.
type stubDirectory struct {
	byID      map[uuid.UUID]*wallet.Wallet
	hierarchy map[uuid.UUID][]*wallet.Wallet
}

func newStubDirectory(wallets ...*wallet.Wallet) *stubDirectory {
	d := &stubDirectory{
		byID:      make(map[uuid.UUID]*wallet.Wallet),
		hierarchy: make(map[uuid.UUID][]*wallet.Wallet),
	}
	for _, w := range wallets {
		d.byID[w.ID] = w
	}
	return d
}

func (d *stubDirectory) GetByID(_ context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	w, ok := d.byID[id]
	if !ok {
		return nil, wallet.ErrNotFound
	}
	return w, nil
}

func (d *stubDirectory) GetByName(_ context.Context, name string) (*wallet.Wallet, error) {
	for _, w := range d.byID {
		if w.Name == name {
			return w, nil
		}
	}
	return nil, wallet.ErrNotFound
}

func (d *stubDirectory) GetAllWallets(_ context.Context, id uuid.UUID, _ *wallet.Paging, _ string, _ bool) ([]*wallet.Wallet, int, error) {
	if members, ok := d.hierarchy[id]; ok {
		return members, len(members), nil
	}
	w, ok := d.byID[id]
	if !ok {
		return nil, 0, wallet.ErrNotFound
	}
	return []*wallet.Wallet{w}, 1, nil
}

// recordingNotifier captures emitted events; fail makes every LogEvent
// call return an error.
type recordingNotifier struct {
	mu     sync.Mutex
	events []event.Event
	fail   bool
}

func (n *recordingNotifier) LogEvent(_ context.Context, ev event.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("event sink unavailable")
	}
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) byType(typ event.Type) []event.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []event.Event
	for _, ev := range n.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func testWallet(name string) *wallet.Wallet {
	return &wallet.Wallet{ID: uuid.New(), Name: name, CreatedAt: time.Now()}
}

func newTestService(store *stubStore, dir *stubDirectory, notifier event.Notifier) *Service {
	return NewService(store, dir, notifier, zap.NewNop())
}

func TestCreateTrustRelationship(t *testing.T) {
	requester := testWallet("cedar-grove")
	requestee := testWallet("oak-ridge")
	notifier := &recordingNotifier{}
	svc := newTestService(newStubStore(), newStubDirectory(requester, requestee), notifier)

	tr, err := svc.CreateTrustRelationship(context.Background(), CreateRequest{
		WalletLoginID:   requester.ID,
		RequesteeWallet: "oak-ridge",
		RequestType:     "send",
	})
	if err != nil {
		t.Fatalf("CreateTrustRelationship: %v", err)
	}
	if tr.State != StateRequested {
		t.Errorf("state = %s, want %s", tr.State, StateRequested)
	}
	if tr.ActorWalletID != requester.ID || tr.TargetWalletID != requestee.ID {
		t.Errorf("actor/target = %s/%s, want %s/%s",
			tr.ActorWalletID, tr.TargetWalletID, requester.ID, requestee.ID)
	}
	if tr.OriginatorWalletID != requester.ID {
		t.Errorf("originator = %s, want %s", tr.OriginatorWalletID, requester.ID)
	}

	evs := notifier.byType(event.TypeTrustRequest)
	if len(evs) != 2 {
		t.Fatalf("trust_request events = %d, want 2", len(evs))
	}
	wantPayload := map[string]string{
		"requester_wallet":   "cedar-grove",
		"requestee_wallet":   "oak-ridge",
		"trust_request_type": "send",
	}
	parties := map[uuid.UUID]bool{}
	for _, ev := range evs {
		parties[ev.WalletID] = true
		for k, want := range wantPayload {
			if ev.Payload[k] != want {
				t.Errorf("event payload[%s] = %q, want %q", k, ev.Payload[k], want)
			}
		}
	}
	if !parties[requester.ID] || !parties[requestee.ID] {
		t.Errorf("events went to %v, want both %s and %s", parties, requester.ID, requestee.ID)
	}
}

func TestCreateTrustRelationship_onBehalfOf(t *testing.T) {
	manager := testWallet("cedar-grove")
	managed := testWallet("oak-ridge")
	requestee := testWallet("willow-creek")
	svc := newTestService(newStubStore(), newStubDirectory(manager, managed, requestee), &recordingNotifier{})

	tr, err := svc.CreateTrustRelationship(context.Background(), CreateRequest{
		WalletLoginID:   manager.ID,
		RequesteeWallet: "willow-creek",
		RequesterWallet: "oak-ridge",
		RequestType:     "manage",
	})
	if err != nil {
		t.Fatalf("CreateTrustRelationship: %v", err)
	}
	if tr.ActorWalletID != managed.ID {
		t.Errorf("actor = %s, want managed wallet %s", tr.ActorWalletID, managed.ID)
	}
	if tr.OriginatorWalletID != manager.ID {
		t.Errorf("originator = %s, want authenticated wallet %s", tr.OriginatorWalletID, manager.ID)
	}
}

func TestCreateTrustRelationship_selfTrust(t *testing.T) {
	w := testWallet("cedar-grove")
	svc := newTestService(newStubStore(), newStubDirectory(w), &recordingNotifier{})

	_, err := svc.CreateTrustRelationship(context.Background(), CreateRequest{
		WalletLoginID:   w.ID,
		RequesteeWallet: "cedar-grove",
		RequestType:     "send",
	})
	if !errors.Is(err, ErrSelfTrust) {
		t.Fatalf("expected ErrSelfTrust, got %v", err)
	}
}

func TestCreateTrustRelationship_unknownRequestee(t *testing.T) {
	w := testWallet("cedar-grove")
	svc := newTestService(newStubStore(), newStubDirectory(w), &recordingNotifier{})

	_, err := svc.CreateTrustRelationship(context.Background(), CreateRequest{
		WalletLoginID:   w.ID,
		RequesteeWallet: "no-such-wallet",
		RequestType:     "send",
	})
	if !errors.Is(err, wallet.ErrNotFound) {
		t.Fatalf("expected wallet.ErrNotFound, got %v", err)
	}
}

func TestCreateTrustRelationship_invalidRequestType(t *testing.T) {
	w1, w2 := testWallet("cedar-grove"), testWallet("oak-ridge")
	svc := newTestService(newStubStore(), newStubDirectory(w1, w2), &recordingNotifier{})

	_, err := svc.CreateTrustRelationship(context.Background(), CreateRequest{
		WalletLoginID:   w1.ID,
		RequesteeWallet: "oak-ridge",
		RequestType:     "deduct",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCreateTrustRelationship_duplicateLive(t *testing.T) {
	w1, w2 := testWallet("cedar-grove"), testWallet("oak-ridge")
	svc := newTestService(newStubStore(), newStubDirectory(w1, w2), &recordingNotifier{})

	req := CreateRequest{WalletLoginID: w1.ID, RequesteeWallet: "oak-ridge", RequestType: "send"}
	if _, err := svc.CreateTrustRelationship(context.Background(), req); err != nil {
		t.Fatalf("first request: %v", err)
	}
	_, err := svc.CreateTrustRelationship(context.Background(), req)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate live request, got %v", err)
	}
}

func TestRequestTrust_afterDeclineCreatesNewRow(t *testing.T) {
	w1, w2 := testWallet("cedar-grove"), testWallet("oak-ridge")
	store := newStubStore()
	svc := newTestService(store, newStubDirectory(w1, w2), &recordingNotifier{})
	ctx := context.Background()

	req := CreateRequest{WalletLoginID: w1.ID, RequesteeWallet: "oak-ridge", RequestType: "send"}
	first, err := svc.CreateTrustRelationship(ctx, req)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := svc.DeclineTrustRequestSentToMe(ctx, w2.ID, first.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}

	second, err := svc.CreateTrustRelationship(ctx, req)
	if err != nil {
		t.Fatalf("request after decline: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("expected a new relationship row after decline, got the same id")
	}
	if second.State != StateRequested {
		t.Errorf("new request state = %s, want %s", second.State, StateRequested)
	}

	got, err := store.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("fetch declined row: %v", err)
	}
	if got.State != StateCanceledByTarget {
		t.Errorf("declined row state = %s, want %s", got.State, StateCanceledByTarget)
	}
}

func createRequested(t *testing.T, svc *Service, requester, requestee *wallet.Wallet) *TrustRelationship {
	t.Helper()
	tr, err := svc.CreateTrustRelationship(context.Background(), CreateRequest{
		WalletLoginID:   requester.ID,
		RequesteeWallet: requestee.Name,
		RequestType:     "send",
	})
	if err != nil {
		t.Fatalf("create trust request: %v", err)
	}
	return tr
}

func TestAcceptTrustRequestSentToMe(t *testing.T) {
	w1, w2 := testWallet("cedar-grove"), testWallet("oak-ridge")
	notifier := &recordingNotifier{}
	svc := newTestService(newStubStore(), newStubDirectory(w1, w2), notifier)
	tr := createRequested(t, svc, w1, w2)

	got, err := svc.AcceptTrustRequestSentToMe(context.Background(), w2.ID, tr.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.State != StateTrusted {
		t.Errorf("state = %s, want %s", got.State, StateTrusted)
	}

	evs := notifier.byType(event.TypeTrustRequestGranted)
	if len(evs) != 2 {
		t.Fatalf("granted events = %d, want 2", len(evs))
	}
	for _, ev := range evs {
		if ev.Payload["trust_relationship_id"] != tr.ID.String() {
			t.Errorf("event payload id = %q, want %q", ev.Payload["trust_relationship_id"], tr.ID.String())
		}
	}
}

func TestAcceptTrust_onlyTargetMayAccept(t *testing.T) {
	w1, w2, w3 := testWallet("cedar-grove"), testWallet("oak-ridge"), testWallet("willow-creek")
	svc := newTestService(newStubStore(), newStubDirectory(w1, w2, w3), &recordingNotifier{})
	tr := createRequested(t, svc, w1, w2)

	for _, caller := range []*wallet.Wallet{w1, w3} {
		_, err := svc.AcceptTrustRequestSentToMe(context.Background(), caller.ID, tr.ID)
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("accept by %s: expected ErrForbidden, got %v", caller.Name, err)
		}
	}
}

func TestAcceptTrust_terminalStateConflicts(t *testing.T) {
	w1, w2 := testWallet("cedar-grove"), testWallet("oak-ridge")
	svc := newTestService(newStubStore(), newStubDirectory(w1, w2), &recordingNotifier{})
	tr := createRequested(t, svc, w1, w2)
	ctx := context.Background()

	if _, err := svc.AcceptTrustRequestSentToMe(ctx, w2.ID, tr.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.AcceptTrustRequestSentToMe(ctx, w2.ID, tr.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("second accept: expected ErrConflict, got %v", err)
	}
	if _, err := svc.DeclineTrustRequestSentToMe(ctx, w2.ID, tr.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("decline after accept: expected ErrConflict, got %v", err)
	}
}

func TestAcceptTrust_eventFailureNonFatal(t *testing.T) {
	w1, w2 := testWallet("cedar-grove"), testWallet("oak-ridge")
	notifier := &recordingNotifier{}
	store := newStubStore()
	svc := newTestService(store, newStubDirectory(w1, w2), notifier)
	tr := createRequested(t, svc, w1, w2)

	notifier.fail = true
	got, err := svc.AcceptTrustRequestSentToMe(context.Background(), w2.ID, tr.ID)
	if err != nil {
		t.Fatalf("accept with failing event sink: %v", err)
	}
	if got.State != StateTrusted {
		t.Errorf("state = %s, want %s", got.State, StateTrusted)
	}
	persisted, err := store.GetByID(context.Background(), tr.ID)
	if err != nil {
		t.Fatalf("fetch after accept: %v", err)
	}
	if persisted.State != StateTrusted {
		t.Errorf("persisted state = %s, want %s", persisted.State, StateTrusted)
	}
}

func TestDeclineTrustRequestSentToMe(t *testing.T) {
	w1, w2 := testWallet("cedar-grove"), testWallet("oak-ridge")
	notifier := &recordingNotifier{}
	svc := newTestService(newStubStore(), newStubDirectory(w1, w2), notifier)
	tr := createRequested(t, svc, w1, w2)

	got, err := svc.DeclineTrustRequestSentToMe(context.Background(), w2.ID, tr.ID)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if got.State != StateCanceledByTarget {
		t.Errorf("state = %s, want %s", got.State, StateCanceledByTarget)
	}
	if n := len(notifier.byType(event.TypeTrustRequestCancelledByTarget)); n != 2 {
		t.Errorf("cancelled_by_target events = %d, want 2", n)
	}
}

func TestCancelTrustRequest_onlyOriginator(t *testing.T) {
	w1, w2 := testWallet("cedar-grove"), testWallet("oak-ridge")
	svc := newTestService(newStubStore(), newStubDirectory(w1, w2), &recordingNotifier{})
	tr := createRequested(t, svc, w1, w2)
	ctx := context.Background()

	if _, err := svc.CancelTrustRequest(ctx, w2.ID, tr.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("cancel by target: expected ErrForbidden, got %v", err)
	}
	got, err := svc.CancelTrustRequest(ctx, w1.ID, tr.ID)
	if err != nil {
		t.Fatalf("cancel by originator: %v", err)
	}
	if got.State != StateCanceledByOriginator {
		t.Errorf("state = %s, want %s", got.State, StateCanceledByOriginator)
	}
}

func TestCancelTrustRequest_notFound(t *testing.T) {
	w1 := testWallet("cedar-grove")
	svc := newTestService(newStubStore(), newStubDirectory(w1), &recordingNotifier{})

	_, err := svc.CancelTrustRequest(context.Background(), w1.ID, uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetTrustRelationships(t *testing.T) {
	w1, w2 := testWallet("cedar-grove"), testWallet("oak-ridge")
	svc := newTestService(newStubStore(), newStubDirectory(w1, w2), &recordingNotifier{})
	tr := createRequested(t, svc, w1, w2)
	ctx := context.Background()

	for _, w := range []*wallet.Wallet{w1, w2} {
		rels, err := svc.GetTrustRelationships(ctx, Filter{WalletID: w.ID})
		if err != nil {
			t.Fatalf("list for %s: %v", w.Name, err)
		}
		if len(rels) != 1 || rels[0].ID != tr.ID {
			t.Errorf("list for %s = %d entries, want the one relationship", w.Name, len(rels))
		}
	}

	rels, err := svc.GetTrustRelationships(ctx, Filter{WalletID: w1.ID, State: StateTrusted})
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(rels) != 0 {
		t.Errorf("trusted filter matched %d requested relationships, want 0", len(rels))
	}
}

func TestGetTrustRelationships_unknownWallet(t *testing.T) {
	svc := newTestService(newStubStore(), newStubDirectory(), &recordingNotifier{})

	_, err := svc.GetTrustRelationships(context.Background(), Filter{WalletID: uuid.New()})
	if !errors.Is(err, wallet.ErrNotFound) {
		t.Fatalf("expected wallet.ErrNotFound, got %v", err)
	}
}

func TestGetAllTrustRelationships_dedup(t *testing.T) {
	parent, child, outsider := testWallet("cedar-grove"), testWallet("oak-ridge"), testWallet("willow-creek")
	dir := newStubDirectory(parent, child, outsider)
	dir.hierarchy[parent.ID] = []*wallet.Wallet{parent, child}
	svc := newTestService(newStubStore(), dir, &recordingNotifier{})
	ctx := context.Background()

	// Visible through both parent and child; must appear once.
	shared := createRequested(t, svc, parent, child)
	// Visible through child only.
	childOnly, err := svc.CreateTrustRelationship(ctx, CreateRequest{
		WalletLoginID:   child.ID,
		RequesteeWallet: outsider.Name,
		RequestType:     "yield",
	})
	if err != nil {
		t.Fatalf("child request: %v", err)
	}

	rels, err := svc.GetAllTrustRelationships(ctx, Filter{WalletID: parent.ID})
	if err != nil {
		t.Fatalf("GetAllTrustRelationships: %v", err)
	}
	if len(rels) != 2 {
		t.Fatalf("aggregate returned %d relationships, want 2", len(rels))
	}
	got := map[uuid.UUID]bool{}
	for _, tr := range rels {
		if got[tr.ID] {
			t.Errorf("relationship %s returned twice", tr.ID)
		}
		got[tr.ID] = true
	}
	if !got[shared.ID] || !got[childOnly.ID] {
		t.Errorf("aggregate missing expected relationships: %v", got)
	}
}

func TestTrustRelationshipGetByID_scoping(t *testing.T) {
	w1, w2, outsider := testWallet("cedar-grove"), testWallet("oak-ridge"), testWallet("willow-creek")
	svc := newTestService(newStubStore(), newStubDirectory(w1, w2, outsider), &recordingNotifier{})
	tr := createRequested(t, svc, w1, w2)
	ctx := context.Background()

	if _, err := svc.TrustRelationshipGetByID(ctx, w1.ID, tr.ID); err != nil {
		t.Errorf("actor fetch: %v", err)
	}
	if _, err := svc.TrustRelationshipGetByID(ctx, w2.ID, tr.ID); err != nil {
		t.Errorf("target fetch: %v", err)
	}
	if _, err := svc.TrustRelationshipGetByID(ctx, outsider.ID, tr.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("outsider fetch: expected ErrNotFound, got %v", err)
	}
}
