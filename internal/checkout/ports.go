package checkout

import (
	"context"

	"velora_back_end/internal/models"
	"velora_back_end/internal/promotion"
)

// OrderStore est la frontière de persistance des commandes.
// Create est idempotent par cart_id tant que la clé n'a pas été libérée :
// un deuxième appel pour le même panier retourne ErrConflict avec l'id existant.
// FindByCart retourne ("", nil) quand aucun panier n'a de commande.
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) (string, error)
	FindByCart(ctx context.Context, cartID string) (string, error)
	Fetch(ctx context.Context, orderID string) (*models.Order, error)
	UpdatePayment(ctx context.Context, orderID, method, status, providerRef string) error
	// ReleaseCart libère la clé d'idempotence quand le client abandonne
	// explicitement (nouvelle adresse de livraison) ; l'ancienne commande
	// reste orpheline en "pending", réconciliée hors périmètre.
	ReleaseCart(ctx context.Context, cartID string) error
}

// CartStore expose le panier vivant. Cleanup est idempotent : nettoyer un
// panier déjà nettoyé est un no-op, pas une erreur.
type CartStore interface {
	Get(ctx context.Context, cartID string) (*models.CartSnapshot, error)
	Cleanup(ctx context.Context, cartID string) error
}

// DraftStore persiste le brouillon de checkout entre les étapes.
// Save écrase toujours l'enregistrement complet, jamais de fusion partielle.
// Load retourne ErrNotFound quand la session n'a aucun brouillon.
type DraftStore interface {
	Save(ctx context.Context, draft *models.CheckoutDraft) error
	Load(ctx context.Context, sessionID string) (*models.CheckoutDraft, error)
	Clear(ctx context.Context, sessionID string) error
}

// UsageRecorder enregistre les utilisations de promotions.
// Record est idempotent par (promotion, commande) : un retry de création de
// commande ne compte jamais double.
type UsageRecorder interface {
	promotion.UsageCounter
	Record(ctx context.Context, promotionID, identity, orderID string) error
}

// ReferenceCache garde la référence provider frappée pour une commande.
// PutIfAbsent retourne la référence gagnante : jamais deux références
// externes pour le même order id.
type ReferenceCache interface {
	Get(ctx context.Context, orderID string) (string, error)
	PutIfAbsent(ctx context.Context, orderID, ref string) (string, error)
}

// FlagStore porte le drapeau "ne pas réémettre la mise à jour de paiement
// pending" du marché courier (le paiement est déjà marqué pending à la
// création de la commande).
type FlagStore interface {
	Set(ctx context.Context, orderID string) error
	IsSet(ctx context.Context, orderID string) (bool, error)
}

// PromotionCatalog liste les promotions candidates (collaborateur externe)
type PromotionCatalog interface {
	ActivePromotions(ctx context.Context) ([]models.Promotion, error)
	ByCode(ctx context.Context, code string) (*models.Promotion, error)
}
