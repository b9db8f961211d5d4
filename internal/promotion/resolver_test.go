package promotion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"velora_back_end/internal/models"
)

// fakeCounter implémente UsageCounter en mémoire
type fakeCounter struct {
	global map[string]int
	user   map[string]int // clé "promoID|identity"
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{global: map[string]int{}, user: map[string]int{}}
}

func (f *fakeCounter) GlobalCount(_ context.Context, promotionID string) (int, error) {
	return f.global[promotionID], nil
}

func (f *fakeCounter) UserCount(_ context.Context, promotionID, identity string) (int, error) {
	return f.user[promotionID+"|"+identity], nil
}

func testResolver(counter UsageCounter) *Resolver {
	r := NewResolver(counter)
	r.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	return r
}

func activePromo(id, kind string, value float64) models.Promotion {
	return models.Promotion{
		ID:              id,
		Code:            "CODE-" + id,
		Type:            kind,
		Value:           value,
		ApplicableToAll: true,
		StartsAt:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpiresAt:       time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		IsActive:        true,
	}
}

func sampleCart() models.CartSnapshot {
	return models.CartSnapshot{
		CartID: "cart-1",
		Items: []models.CartItem{
			{ProductID: "p1", CategoryID: "cat-a", Name: "Article A", Price: 40.00, Quantity: 2},
			{ProductID: "p2", CategoryID: "cat-b", Name: "Article B", Price: 20.00, Quantity: 1},
		},
	}
}

func TestEvaluate_PercentageDiscount(t *testing.T) {
	r := testResolver(newFakeCounter())

	discount, err := r.Evaluate(context.Background(), activePromo("a", models.PromotionPercentage, 20), sampleCart(), UserContext{UserID: "u1"})

	require.NoError(t, err)
	assert.InDelta(t, 20.00, discount, 1e-9) // 20% de 100
}

func TestEvaluate_FixedCappedAtSubtotal(t *testing.T) {
	r := testResolver(newFakeCounter())

	discount, err := r.Evaluate(context.Background(), activePromo("a", models.PromotionFixed, 150), sampleCart(), UserContext{UserID: "u1"})

	require.NoError(t, err)
	assert.InDelta(t, 100.00, discount, 1e-9) // plafonnée au sous-total
}

func TestEvaluate_FreeItemRequiresItemInCart(t *testing.T) {
	r := testResolver(newFakeCounter())

	promo := activePromo("a", models.PromotionFreeItem, 0)
	promo.ApplicableToAll = false
	promo.ProductIDs = []string{"p2"}

	discount, err := r.Evaluate(context.Background(), promo, sampleCart(), UserContext{UserID: "u1"})
	require.NoError(t, err)
	assert.InDelta(t, 20.00, discount, 1e-9)

	promo.ProductIDs = []string{"absent"}
	_, err = r.Evaluate(context.Background(), promo, sampleCart(), UserContext{UserID: "u1"})
	assert.ErrorIs(t, err, ErrScope)
}

func TestEvaluate_BogoCheapestDuplicateLine(t *testing.T) {
	r := testResolver(newFakeCounter())
	cart := models.CartSnapshot{
		CartID: "cart-1",
		Items: []models.CartItem{
			{ProductID: "p1", Price: 40.00, Quantity: 2},
			{ProductID: "p2", Price: 15.00, Quantity: 3},
			{ProductID: "p3", Price: 5.00, Quantity: 1}, // pas en double, inéligible
		},
	}

	discount, err := r.Evaluate(context.Background(), activePromo("a", models.PromotionBogo, 0), cart, UserContext{UserID: "u1"})

	require.NoError(t, err)
	assert.InDelta(t, 15.00, discount, 1e-9)
}

func TestEvaluate_Window(t *testing.T) {
	r := testResolver(newFakeCounter())

	early := activePromo("a", models.PromotionPercentage, 10)
	early.StartsAt = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := r.Evaluate(context.Background(), early, sampleCart(), UserContext{UserID: "u1"})
	assert.ErrorIs(t, err, ErrNotStarted)

	late := activePromo("b", models.PromotionPercentage, 10)
	late.ExpiresAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err = r.Evaluate(context.Background(), late, sampleCart(), UserContext{UserID: "u1"})
	assert.ErrorIs(t, err, ErrExpired)

	inactive := activePromo("c", models.PromotionPercentage, 10)
	inactive.IsActive = false
	_, err = r.Evaluate(context.Background(), inactive, sampleCart(), UserContext{UserID: "u1"})
	assert.ErrorIs(t, err, ErrInactive)
}

func TestEvaluate_AuthRequired(t *testing.T) {
	r := testResolver(newFakeCounter())
	promo := activePromo("a", models.PromotionPercentage, 10)
	promo.RequiresAuth = true

	_, err := r.Evaluate(context.Background(), promo, sampleCart(), UserContext{Email: "guest@example.com"})
	assert.ErrorIs(t, err, ErrAuthRequired)

	_, err = r.Evaluate(context.Background(), promo, sampleCart(), UserContext{UserID: "u1"})
	assert.NoError(t, err)
}

func TestEvaluate_MinOrderValue(t *testing.T) {
	r := testResolver(newFakeCounter())
	promo := activePromo("a", models.PromotionPercentage, 10)
	promo.MinOrderValue = 200

	_, err := r.Evaluate(context.Background(), promo, sampleCart(), UserContext{UserID: "u1"})
	assert.ErrorIs(t, err, ErrMinOrder)
}

func TestEvaluate_UsageLimits(t *testing.T) {
	counter := newFakeCounter()
	counter.global["a"] = 5
	r := testResolver(counter)

	limited := activePromo("a", models.PromotionPercentage, 10)
	limited.UsageLimit = 5
	_, err := r.Evaluate(context.Background(), limited, sampleCart(), UserContext{UserID: "u1"})
	assert.ErrorIs(t, err, ErrUsageLimit)
}

func TestEvaluate_PerUserLimitAcrossOrders(t *testing.T) {
	// Une promotion per_user_limit=1 ne peut pas être appliquée deux fois par la même identité
	counter := newFakeCounter()
	r := testResolver(counter)

	promo := activePromo("a", models.PromotionPercentage, 10)
	promo.PerUserLimit = 1

	_, err := r.Evaluate(context.Background(), promo, sampleCart(), UserContext{UserID: "u1"})
	require.NoError(t, err)

	// Première commande enregistrée
	counter.user["a|u1"] = 1

	_, err = r.Evaluate(context.Background(), promo, sampleCart(), UserContext{UserID: "u1"})
	assert.ErrorIs(t, err, ErrPerUserLimit)

	// L'identité email d'un invité est soumise à la même limite
	counter.user["a|guest@example.com"] = 1
	_, err = r.Evaluate(context.Background(), promo, sampleCart(), UserContext{Email: "guest@example.com"})
	assert.ErrorIs(t, err, ErrPerUserLimit)
}

func TestResolve_PicksHighestDiscountDeterministically(t *testing.T) {
	r := testResolver(newFakeCounter())

	candidates := []models.Promotion{
		activePromo("c", models.PromotionFixed, 15),
		activePromo("b", models.PromotionPercentage, 20), // 20.00, la plus élevée
		activePromo("a", models.PromotionFixed, 5),
	}

	snap, err := r.Resolve(context.Background(), sampleCart(), UserContext{UserID: "u1"}, candidates)

	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "b", snap.PromotionID)
	assert.InDelta(t, 20.00, snap.Discount, 1e-9)
}

func TestResolve_TieBreakBySmallestID(t *testing.T) {
	r := testResolver(newFakeCounter())

	// Deux remises identiques : le plus petit id gagne, quel que soit l'ordre du tableau
	candidates := []models.Promotion{
		activePromo("z", models.PromotionFixed, 10),
		activePromo("a", models.PromotionFixed, 10),
	}

	snap, err := r.Resolve(context.Background(), sampleCart(), UserContext{UserID: "u1"}, candidates)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "a", snap.PromotionID)

	// Ordre inversé → même résultat
	reversed := []models.Promotion{candidates[1], candidates[0]}
	snap2, err := r.Resolve(context.Background(), sampleCart(), UserContext{UserID: "u1"}, reversed)
	require.NoError(t, err)
	require.NotNil(t, snap2)
	assert.Equal(t, "a", snap2.PromotionID)
}

func TestResolve_NoCandidateApplies(t *testing.T) {
	r := testResolver(newFakeCounter())

	inactive := activePromo("a", models.PromotionPercentage, 10)
	inactive.IsActive = false

	snap, err := r.Resolve(context.Background(), sampleCart(), UserContext{UserID: "u1"}, []models.Promotion{inactive})
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestValidate_Messages(t *testing.T) {
	r := testResolver(newFakeCounter())

	expired := activePromo("a", models.PromotionPercentage, 10)
	expired.ExpiresAt = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	v := r.Validate(context.Background(), expired, sampleCart(), UserContext{UserID: "u1"})
	assert.False(t, v.IsValid)
	assert.Equal(t, "Cette promotion a expiré", v.ErrorMessage)

	ok := r.Validate(context.Background(), activePromo("b", models.PromotionPercentage, 10), sampleCart(), UserContext{UserID: "u1"})
	assert.True(t, ok.IsValid)
	assert.InDelta(t, 10.00, ok.Discount, 1e-9)
}
