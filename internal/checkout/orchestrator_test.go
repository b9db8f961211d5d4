package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"velora_back_end/internal/models"
	"velora_back_end/internal/payment"
	"velora_back_end/internal/promotion"
)

type fixture struct {
	orders *memOrderStore
	carts  *memCartStore
	drafts *memDraftStore
	usage  *memUsage
	refs   *memRefs
	flags  *memFlags
	wallet *fakeWalletAdapter
	card   *fakeAdapter
	cod    *fakeAdapter
	orch   *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		orders: newMemOrderStore(),
		carts:  newMemCartStore(),
		drafts: newMemDraftStore(),
		usage:  newMemUsage(),
		refs:   newMemRefs(),
		flags:  newMemFlags(),
		wallet: &fakeWalletAdapter{fakeAdapter{method: models.PaymentMethodWallet}},
		card:   &fakeAdapter{method: models.PaymentMethodHostedCard},
		cod:    &fakeAdapter{method: models.PaymentMethodCOD},
	}
	f.orch = NewOrchestrator(f.orders, f.carts, f.drafts, f.usage, f.refs, f.flags, "eur", f.wallet, f.card, f.cod)

	f.carts.carts["sess-1"] = &models.CartSnapshot{
		CartID: "sess-1",
		Items: []models.CartItem{
			{ProductID: "p1", Name: "Article A", Price: 40.00, Quantity: 2},
			{ProductID: "p2", Name: "Article B", Price: 20.00, Quantity: 1},
		},
	}

	return f
}

func testDraft() *models.CheckoutDraft {
	return &models.CheckoutDraft{
		SessionID:      "sess-1",
		CartID:         "sess-1",
		Address:        models.Address{FullName: "Jean Dupont", Street: "1 rue Haute", City: "Bruxelles", PostalCode: "1000", Country: "BE"},
		ShippingMethod: "standard",
		ShippingCost:   0,
		Subtotal:       100.00,
		Tax:            21.00,
		Total:          121.00,
		UpdatedAt:      time.Now(),
	}
}

func testUser() promotion.UserContext {
	return promotion.UserContext{UserID: "u1", Email: "u1@example.com"}
}

func TestCreateOrder_IdempotentPerCart(t *testing.T) {
	f := newFixture(t)
	draft := testDraft()

	first, err := f.orch.CreateOrder(context.Background(), draft, testUser())
	require.NoError(t, err)
	require.NotEmpty(t, first)

	// Double clic : le brouillon porte déjà l'id, aucune nouvelle création
	second, err := f.orch.CreateOrder(context.Background(), draft, testUser())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Rechargement de page : brouillon rechargé sans id (sauvegarde perdue) —
	// la clé panier retombe quand même sur la commande existante
	reloaded := testDraft()
	third, err := f.orch.CreateOrder(context.Background(), reloaded, testUser())
	require.NoError(t, err)
	assert.Equal(t, first, third)

	assert.Len(t, f.orders.orders, 1)
	assert.Equal(t, 1, f.orders.createCalls)
}

func TestCreateOrder_AdoptsConcurrentWinner(t *testing.T) {
	f := newFixture(t)

	// Une création concurrente a déjà gagné la clé panier
	winner := &models.Order{CartID: "sess-1", Status: models.OrderStatusPending,
		Payment: models.Payment{Method: models.PaymentMethodWallet, Status: models.PaymentStatusPending}}
	winnerID, err := f.orders.Create(context.Background(), winner)
	require.NoError(t, err)

	draft := testDraft()
	id, err := f.orch.CreateOrder(context.Background(), draft, testUser())

	require.NoError(t, err)
	assert.Equal(t, winnerID, id)
	assert.Len(t, f.orders.orders, 1)
}

func TestCreateOrder_RecordsPromotionUsageOnce(t *testing.T) {
	f := newFixture(t)
	draft := testDraft()
	draft.Promotion = &models.PromotionSnapshot{PromotionID: "promo-1", Code: "WELCOME", Type: models.PromotionPercentage, Discount: 20.00}
	draft.Discount = 20.00

	_, err := f.orch.CreateOrder(context.Background(), draft, testUser())
	require.NoError(t, err)

	// Retry de création : l'utilisation ne compte pas double
	reloaded := testDraft()
	reloaded.Promotion = draft.Promotion
	_, err = f.orch.CreateOrder(context.Background(), reloaded, testUser())
	require.NoError(t, err)

	assert.Equal(t, 1, f.usage.global["promo-1"])
	assert.Equal(t, 1, f.usage.user["promo-1|u1"])
}

func TestCreateOrder_PersistsOrderIDBeforeReturning(t *testing.T) {
	f := newFixture(t)
	draft := testDraft()
	draft.PendingCreation = true

	id, err := f.orch.CreateOrder(context.Background(), draft, testUser())
	require.NoError(t, err)

	saved, err := f.drafts.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, id, saved.OrderID)
	assert.False(t, saved.PendingCreation, "pending_creation doit retomber dès que order_id existe")
}

func TestCreateOrder_FailureLeavesNoOrder(t *testing.T) {
	f := newFixture(t)
	f.orders.createErr = errors.New("base indisponible")
	draft := testDraft()
	draft.PendingCreation = true

	_, err := f.orch.CreateOrder(context.Background(), draft, testUser())

	require.Error(t, err)
	assert.Empty(t, f.orders.orders)
	// Le brouillon n'est pas sauvegardé avec un id fantôme : retry possible
	_, loadErr := f.drafts.Load(context.Background(), "sess-1")
	assert.ErrorIs(t, loadErr, ErrNotFound)
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	f := newFixture(t)
	f.carts.carts["sess-1"].Items = nil

	_, err := f.orch.CreateOrder(context.Background(), testDraft(), testUser())

	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestStartPayment_WalletMintsReferenceOnce(t *testing.T) {
	f := newFixture(t)
	id, err := f.orch.CreateOrder(context.Background(), testDraft(), testUser())
	require.NoError(t, err)

	first, err := f.orch.StartPayment(context.Background(), id, models.PaymentMethodWallet)
	require.NoError(t, err)
	assert.Contains(t, first.RedirectURL, "orderId="+id)
	assert.NotEmpty(t, first.ProviderRef)

	// Retour arrière navigateur : deuxième redirection, même référence externe
	second, err := f.orch.StartPayment(context.Background(), id, models.PaymentMethodWallet)
	require.NoError(t, err)
	assert.Equal(t, first.ProviderRef, second.ProviderRef)
	assert.Equal(t, 1, f.wallet.mintCalls, "jamais deux références externes pour la même commande")
}

func TestStartPayment_WalletSkipsPendingReupdate(t *testing.T) {
	f := newFixture(t)
	id, err := f.orch.CreateOrder(context.Background(), testDraft(), testUser())
	require.NoError(t, err)

	// Marché courier : paiement déjà marqué pending à la création
	require.NoError(t, f.flags.Set(context.Background(), id))
	before := f.orders.updateCalls

	_, err = f.orch.StartPayment(context.Background(), id, models.PaymentMethodWallet)
	require.NoError(t, err)

	assert.Equal(t, before, f.orders.updateCalls, "pas de réémission de la mise à jour pending")
}

func TestStartPayment_HostedCardAmountFromOrder(t *testing.T) {
	f := newFixture(t)
	draft := testDraft()
	draft.Total = 101.70
	id, err := f.orch.CreateOrder(context.Background(), draft, testUser())
	require.NoError(t, err)

	instruction, err := f.orch.StartPayment(context.Background(), id, models.PaymentMethodHostedCard)
	require.NoError(t, err)

	// Le montant vient de la commande serveur, en centimes
	assert.Equal(t, int64(10170), f.card.lastAmount)
	assert.Equal(t, "eur", f.card.lastCurrency)
	assert.NotEmpty(t, instruction.ClientSecret)
}

func TestStartPayment_AlreadyPaid(t *testing.T) {
	f := newFixture(t)
	id, err := f.orch.CreateOrder(context.Background(), testDraft(), testUser())
	require.NoError(t, err)
	require.NoError(t, f.orders.UpdatePayment(context.Background(), id, models.PaymentMethodHostedCard, models.PaymentStatusPaid, "pi_1"))

	instruction, err := f.orch.StartPayment(context.Background(), id, models.PaymentMethodHostedCard)

	require.NoError(t, err)
	assert.Equal(t, StatePaid.String(), instruction.State)
	assert.Equal(t, 0, f.card.mintCalls)
}

func TestConfirmPayment_AtMostOneCapture(t *testing.T) {
	f := newFixture(t)
	id, err := f.orch.CreateOrder(context.Background(), testDraft(), testUser())
	require.NoError(t, err)

	f.card.result = &payment.Result{Status: models.PaymentStatusPaid, ProviderRef: "pi_1", Completed: true}
	payload := map[string]string{"payment_intent_id": "pi_1"}

	first, err := f.orch.ConfirmPayment(context.Background(), id, models.PaymentMethodHostedCard, payload)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, first.Status)

	// Double soumission du même payload : pas de deuxième appel provider,
	// pas de deuxième nettoyage
	second, err := f.orch.ConfirmPayment(context.Background(), id, models.PaymentMethodHostedCard, payload)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, second.Status)
	assert.Equal(t, "pi_1", second.ProviderRef)

	assert.Equal(t, 1, f.card.confirmCalls)
	assert.Len(t, f.carts.cleanupCalls, 1)

	order, err := f.orders.Fetch(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, order.Payment.Status)
	assert.Equal(t, "pi_1", order.Payment.ProviderRef)
}

func TestConfirmPayment_FailureStaysRetryableWithSameOrder(t *testing.T) {
	f := newFixture(t)
	id, err := f.orch.CreateOrder(context.Background(), testDraft(), testUser())
	require.NoError(t, err)

	f.card.result = &payment.Result{Status: models.PaymentStatusFailed, ProviderRef: "pi_1"}
	res, err := f.orch.ConfirmPayment(context.Background(), id, models.PaymentMethodHostedCard, map[string]string{"payment_intent_id": "pi_1"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, res.Status)
	assert.Empty(t, f.carts.cleanupCalls, "le panier survit à un paiement refusé")

	// Nouvelle tentative avec la même commande : succès, aucune commande créée en plus
	f.card.result = &payment.Result{Status: models.PaymentStatusPaid, ProviderRef: "pi_2", Completed: true}
	res, err = f.orch.ConfirmPayment(context.Background(), id, models.PaymentMethodHostedCard, map[string]string{"payment_intent_id": "pi_2"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, res.Status)
	assert.Len(t, f.orders.orders, 1)
}

func TestConfirmPayment_ProviderErrorLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	id, err := f.orch.CreateOrder(context.Background(), testDraft(), testUser())
	require.NoError(t, err)

	f.card.confirmErr = errors.New("timeout provider")
	_, err = f.orch.ConfirmPayment(context.Background(), id, models.PaymentMethodHostedCard, map[string]string{"payment_intent_id": "pi_1"})

	require.ErrorIs(t, err, ErrProvider)
	order, fetchErr := f.orders.Fetch(context.Background(), id)
	require.NoError(t, fetchErr)
	assert.Equal(t, models.PaymentStatusPending, order.Payment.Status, "jamais d'état ambigu après une erreur provider")
	assert.Empty(t, f.carts.cleanupCalls)
}

func TestConfirmPayment_CODCompletesWithDeferredPayment(t *testing.T) {
	f := newFixture(t)
	id, err := f.orch.CreateOrder(context.Background(), testDraft(), testUser())
	require.NoError(t, err)

	f.cod.result = &payment.Result{Status: models.PaymentStatusPending, Completed: true}
	res, err := f.orch.ConfirmPayment(context.Background(), id, models.PaymentMethodCOD, nil)

	require.NoError(t, err)
	assert.True(t, res.Completed)
	order, fetchErr := f.orders.Fetch(context.Background(), id)
	require.NoError(t, fetchErr)
	assert.Equal(t, models.PaymentStatusPending, order.Payment.Status, "encaissement différé à la livraison")
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Len(t, f.carts.cleanupCalls, 1, "checkout terminé, panier nettoyé")
}

func TestConfirmPayment_WalletRejectsForeignReference(t *testing.T) {
	f := newFixture(t)
	id, err := f.orch.CreateOrder(context.Background(), testDraft(), testUser())
	require.NoError(t, err)
	_, err = f.refs.PutIfAbsent(context.Background(), id, "wal_attendue")
	require.NoError(t, err)

	_, err = f.orch.ConfirmPayment(context.Background(), id, models.PaymentMethodWallet,
		map[string]string{"reference": "wal_inconnue", "status": "success"})

	assert.ErrorIs(t, err, ErrProvider)
	assert.Equal(t, 0, f.wallet.confirmCalls)
}

func TestConfirmPayment_CleanupFailureNeverFailsCapture(t *testing.T) {
	f := newFixture(t)
	id, err := f.orch.CreateOrder(context.Background(), testDraft(), testUser())
	require.NoError(t, err)

	f.carts.cleanupErr = errors.New("redis indisponible")
	f.card.result = &payment.Result{Status: models.PaymentStatusPaid, ProviderRef: "pi_1", Completed: true}

	res, err := f.orch.ConfirmPayment(context.Background(), id, models.PaymentMethodHostedCard, map[string]string{"payment_intent_id": "pi_1"})

	require.NoError(t, err, "un paiement capturé ne se défait jamais pour une erreur de nettoyage")
	assert.Equal(t, models.PaymentStatusPaid, res.Status)
}

func TestConfirmPayment_UnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.ConfirmPayment(context.Background(), "absent", models.PaymentMethodHostedCard, nil)

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartPayment_StoreOutageIsNotOrderNotFound(t *testing.T) {
	f := newFixture(t)
	orderID, err := f.orch.CreateOrder(context.Background(), testDraft(), testUser())
	require.NoError(t, err)

	f.orders.fetchErr = errors.New("base injoignable")

	_, err = f.orch.StartPayment(context.Background(), orderID, models.PaymentMethodHostedCard)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = f.orch.ConfirmPayment(context.Background(), orderID, models.PaymentMethodHostedCard, map[string]string{"payment_intent_id": "pi_1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestConfirmPayment_ReferenceCacheOutageBlocksWalletCallback(t *testing.T) {
	f := newFixture(t)
	orderID, err := f.orch.CreateOrder(context.Background(), testDraft(), testUser())
	require.NoError(t, err)
	_, err = f.orch.StartPayment(context.Background(), orderID, models.PaymentMethodWallet)
	require.NoError(t, err)

	f.refs.getErr = errors.New("redis injoignable")

	_, err = f.orch.ConfirmPayment(context.Background(), orderID, models.PaymentMethodWallet, map[string]string{"reference": "wal_x", "status": "success"})
	require.Error(t, err)
	assert.Zero(t, f.wallet.confirmCalls, "aucune confirmation sans vérification de référence")
}
