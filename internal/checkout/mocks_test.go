package checkout

import (
	"context"
	"fmt"

	"velora_back_end/internal/models"
	"velora_back_end/internal/payment"
)

// memOrderStore implémente OrderStore en mémoire
type memOrderStore struct {
	orders      map[string]*models.Order
	byCart      map[string]string
	released    []string
	createCalls int
	updateCalls int
	createErr   error
	fetchErr    error
	updateErr   error
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{
		orders: map[string]*models.Order{},
		byCart: map[string]string{},
	}
}

func (s *memOrderStore) Create(_ context.Context, order *models.Order) (string, error) {
	s.createCalls++
	if s.createErr != nil {
		return "", s.createErr
	}
	if existing, ok := s.byCart[order.CartID]; ok {
		return existing, ErrConflict
	}
	id := fmt.Sprintf("order-%d", len(s.orders)+1)
	copied := *order
	copied.ID = id
	s.orders[id] = &copied
	s.byCart[order.CartID] = id
	return id, nil
}

func (s *memOrderStore) FindByCart(_ context.Context, cartID string) (string, error) {
	return s.byCart[cartID], nil
}

func (s *memOrderStore) Fetch(_ context.Context, orderID string) (*models.Order, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	order, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *order
	return &copied, nil
}

func (s *memOrderStore) UpdatePayment(_ context.Context, orderID, method, status, providerRef string) error {
	s.updateCalls++
	if s.updateErr != nil {
		return s.updateErr
	}
	order, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	order.Payment.Method = method
	order.Payment.Status = status
	if providerRef != "" {
		order.Payment.ProviderRef = providerRef
	}
	return nil
}

func (s *memOrderStore) ReleaseCart(_ context.Context, cartID string) error {
	delete(s.byCart, cartID)
	s.released = append(s.released, cartID)
	return nil
}

// memCartStore implémente CartStore en mémoire
type memCartStore struct {
	carts        map[string]*models.CartSnapshot
	cleanupCalls []string
	cleanupErr   error
}

func newMemCartStore() *memCartStore {
	return &memCartStore{carts: map[string]*models.CartSnapshot{}}
}

func (s *memCartStore) Get(_ context.Context, cartID string) (*models.CartSnapshot, error) {
	cart, ok := s.carts[cartID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *cart
	return &copied, nil
}

func (s *memCartStore) Cleanup(_ context.Context, cartID string) error {
	s.cleanupCalls = append(s.cleanupCalls, cartID)
	if s.cleanupErr != nil {
		return s.cleanupErr
	}
	delete(s.carts, cartID)
	return nil
}

// memDraftStore implémente DraftStore en mémoire
type memDraftStore struct {
	drafts  map[string]models.CheckoutDraft
	saveErr error
}

func newMemDraftStore() *memDraftStore {
	return &memDraftStore{drafts: map[string]models.CheckoutDraft{}}
}

func (s *memDraftStore) Save(_ context.Context, draft *models.CheckoutDraft) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.drafts[draft.SessionID] = *draft
	return nil
}

func (s *memDraftStore) Load(_ context.Context, sessionID string) (*models.CheckoutDraft, error) {
	draft, ok := s.drafts[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := draft
	return &copied, nil
}

func (s *memDraftStore) Clear(_ context.Context, sessionID string) error {
	delete(s.drafts, sessionID)
	return nil
}

// memUsage implémente UsageRecorder en mémoire, idempotent par (promotion, commande)
type memUsage struct {
	records map[string]bool // "promoID|orderID"
	global  map[string]int
	user    map[string]int // "promoID|identity"
}

func newMemUsage() *memUsage {
	return &memUsage{records: map[string]bool{}, global: map[string]int{}, user: map[string]int{}}
}

func (u *memUsage) GlobalCount(_ context.Context, promotionID string) (int, error) {
	return u.global[promotionID], nil
}

func (u *memUsage) UserCount(_ context.Context, promotionID, identity string) (int, error) {
	return u.user[promotionID+"|"+identity], nil
}

func (u *memUsage) Record(_ context.Context, promotionID, identity, orderID string) error {
	key := promotionID + "|" + orderID
	if u.records[key] {
		return nil
	}
	u.records[key] = true
	u.global[promotionID]++
	u.user[promotionID+"|"+identity]++
	return nil
}

// memRefs implémente ReferenceCache en mémoire
type memRefs struct {
	refs   map[string]string
	getErr error
}

func newMemRefs() *memRefs {
	return &memRefs{refs: map[string]string{}}
}

func (r *memRefs) Get(_ context.Context, orderID string) (string, error) {
	if r.getErr != nil {
		return "", r.getErr
	}
	return r.refs[orderID], nil
}

func (r *memRefs) PutIfAbsent(_ context.Context, orderID, ref string) (string, error) {
	if existing, ok := r.refs[orderID]; ok {
		return existing, nil
	}
	r.refs[orderID] = ref
	return ref, nil
}

// memFlags implémente FlagStore en mémoire
type memFlags struct {
	flags map[string]bool
}

func newMemFlags() *memFlags {
	return &memFlags{flags: map[string]bool{}}
}

func (f *memFlags) Set(_ context.Context, orderID string) error {
	f.flags[orderID] = true
	return nil
}

func (f *memFlags) IsSet(_ context.Context, orderID string) (bool, error) {
	return f.flags[orderID], nil
}

// memCatalog implémente PromotionCatalog en mémoire
type memCatalog struct {
	actives []models.Promotion
	byCode  map[string]models.Promotion
	err     error
}

func newMemCatalog() *memCatalog {
	return &memCatalog{byCode: map[string]models.Promotion{}}
}

func (c *memCatalog) ActivePromotions(_ context.Context) ([]models.Promotion, error) {
	return c.actives, c.err
}

func (c *memCatalog) ByCode(_ context.Context, code string) (*models.Promotion, error) {
	promo, ok := c.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &promo, nil
}

// fakeAdapter implémente payment.Adapter pour les tests
type fakeAdapter struct {
	method       string
	mintCalls    int
	lastAmount   int64
	lastCurrency string
	intentErr    error
	confirmCalls int
	result       *payment.Result
	confirmErr   error
}

func (f *fakeAdapter) Method() string {
	return f.method
}

func (f *fakeAdapter) CreateIntent(_ context.Context, orderID string, amountMinor int64, currency string) (*payment.Intent, error) {
	f.mintCalls++
	f.lastAmount = amountMinor
	f.lastCurrency = currency
	if f.intentErr != nil {
		return nil, f.intentErr
	}
	return &payment.Intent{
		ProviderRef:  fmt.Sprintf("%s-ref-%d", f.method, f.mintCalls),
		ClientSecret: "secret_" + orderID,
	}, nil
}

func (f *fakeAdapter) Confirm(_ context.Context, _ string, _ map[string]string) (*payment.Result, error) {
	f.confirmCalls++
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	return f.result, nil
}

// fakeWalletAdapter ajoute la capacité de redirection
type fakeWalletAdapter struct {
	fakeAdapter
}

func (f *fakeWalletAdapter) RedirectURL(orderID string) string {
	return "https://wallet.example.com/pay?orderId=" + orderID
}
