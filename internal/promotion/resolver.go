package promotion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"velora_back_end/internal/models"
)

// Raisons d'inéligibilité d'une promotion
var (
	ErrInactive      = errors.New("promotion inactive")
	ErrNotStarted    = errors.New("promotion pas encore valide")
	ErrExpired       = errors.New("promotion expirée")
	ErrAuthRequired  = errors.New("connexion requise pour cette promotion")
	ErrMinOrder      = errors.New("montant minimum non atteint")
	ErrScope         = errors.New("aucun article du panier n'est éligible")
	ErrUsageLimit    = errors.New("limite d'utilisation globale atteinte")
	ErrPerUserLimit  = errors.New("limite d'utilisation par client atteinte")
	ErrNotApplicable = errors.New("promotion non applicable à ce panier")
)

// UserContext identifie le client qui résout la promotion
type UserContext struct {
	UserID string
	Email  string
}

// IsAuthenticated indique si le client est connecté
func (u UserContext) IsAuthenticated() bool {
	return u.UserID != ""
}

// Identity retourne l'identité servant aux limites par client : user_id, sinon email invité
func (u UserContext) Identity() string {
	if u.UserID != "" {
		return u.UserID
	}
	return u.Email
}

// UsageCounter expose les compteurs d'utilisation (globaux et par client)
type UsageCounter interface {
	GlobalCount(ctx context.Context, promotionID string) (int, error)
	UserCount(ctx context.Context, promotionID, identity string) (int, error)
}

// Resolver sélectionne au plus une promotion applicable par commande.
//
// Règle de départage (délibérément déterministe, jamais l'ordre du tableau
// de candidats) : la remise la plus élevée gagne ; à égalité, le plus petit
// id de promotion.
type Resolver struct {
	counter UsageCounter
	now     func() time.Time
}

func NewResolver(counter UsageCounter) *Resolver {
	return &Resolver{counter: counter, now: time.Now}
}

// Resolve retourne la promotion retenue pour ce panier, ou nil si aucune ne s'applique
func (r *Resolver) Resolve(ctx context.Context, cart models.CartSnapshot, user UserContext, candidates []models.Promotion) (*models.PromotionSnapshot, error) {
	var best *models.PromotionSnapshot

	for _, promo := range candidates {
		discount, err := r.Evaluate(ctx, promo, cart, user)
		if err != nil {
			if isEligibilityError(err) {
				continue
			}
			return nil, fmt.Errorf("évaluation promotion %s: %w", promo.ID, err)
		}

		if best == nil || discount > best.Discount ||
			(discount == best.Discount && promo.ID < best.PromotionID) {
			best = &models.PromotionSnapshot{
				PromotionID: promo.ID,
				Code:        promo.Code,
				Type:        promo.Type,
				Discount:    discount,
			}
		}
	}

	return best, nil
}

// Evaluate vérifie l'éligibilité d'une promotion et calcule sa remise.
// Retourne une erreur sentinelle (ErrInactive, ErrExpired, ...) si inéligible.
func (r *Resolver) Evaluate(ctx context.Context, promo models.Promotion, cart models.CartSnapshot, user UserContext) (float64, error) {
	now := r.now()

	if !promo.IsActive {
		return 0, ErrInactive
	}
	if now.Before(promo.StartsAt) {
		return 0, ErrNotStarted
	}
	if !promo.ExpiresAt.IsZero() && now.After(promo.ExpiresAt) {
		return 0, ErrExpired
	}
	if promo.RequiresAuth && !user.IsAuthenticated() {
		return 0, ErrAuthRequired
	}

	subtotal := cart.Subtotal()
	if subtotal < promo.MinOrderValue {
		return 0, ErrMinOrder
	}

	eligible := eligibleLines(promo, cart)
	if len(eligible) == 0 {
		return 0, ErrScope
	}

	if promo.UsageLimit > 0 {
		count, err := r.counter.GlobalCount(ctx, promo.ID)
		if err != nil {
			return 0, err
		}
		if count >= promo.UsageLimit {
			return 0, ErrUsageLimit
		}
	}

	if promo.PerUserLimit > 0 && user.Identity() != "" {
		count, err := r.counter.UserCount(ctx, promo.ID, user.Identity())
		if err != nil {
			return 0, err
		}
		if count >= promo.PerUserLimit {
			return 0, ErrPerUserLimit
		}
	}

	return discountFor(promo, subtotal, eligible)
}

// Validate est la validation détaillée exposée à l'API (messages utilisateur)
func (r *Resolver) Validate(ctx context.Context, promo models.Promotion, cart models.CartSnapshot, user UserContext) models.PromotionValidation {
	discount, err := r.Evaluate(ctx, promo, cart, user)
	if err != nil {
		return models.PromotionValidation{
			IsValid:      false,
			ErrorMessage: validationMessage(err, promo),
		}
	}
	return models.PromotionValidation{
		IsValid:  true,
		Discount: discount,
		Type:     promo.Type,
		Code:     promo.Code,
	}
}

// eligibleLines retourne les lignes du panier couvertes par le périmètre de la promotion
func eligibleLines(promo models.Promotion, cart models.CartSnapshot) []models.CartItem {
	if promo.ApplicableToAll {
		return cart.Items
	}

	products := make(map[string]bool, len(promo.ProductIDs))
	for _, id := range promo.ProductIDs {
		products[id] = true
	}
	categories := make(map[string]bool, len(promo.CategoryIDs))
	for _, id := range promo.CategoryIDs {
		categories[id] = true
	}

	var lines []models.CartItem
	for _, item := range cart.Items {
		if products[item.ProductID] || categories[item.CategoryID] {
			lines = append(lines, item)
		}
	}
	return lines
}

// discountFor calcule le montant de remise selon le type de promotion
func discountFor(promo models.Promotion, subtotal float64, eligible []models.CartItem) (float64, error) {
	switch promo.Type {
	case models.PromotionPercentage:
		return subtotal * (promo.Value / 100), nil

	case models.PromotionFixed:
		if promo.Value > subtotal {
			return subtotal, nil
		}
		return promo.Value, nil

	case models.PromotionFreeItem:
		// Remise égale au prix de l'article offert s'il est dans le panier
		for _, item := range eligible {
			return item.Price, nil
		}
		return 0, ErrNotApplicable

	case models.PromotionBogo:
		// Remise égale au prix de la ligne éligible en double la moins chère
		var cheapest float64
		found := false
		for _, item := range eligible {
			if item.Quantity < 2 {
				continue
			}
			if !found || item.Price < cheapest {
				cheapest = item.Price
				found = true
			}
		}
		if !found {
			return 0, ErrNotApplicable
		}
		return cheapest, nil

	default:
		return 0, ErrNotApplicable
	}
}

func isEligibilityError(err error) bool {
	for _, e := range []error{
		ErrInactive, ErrNotStarted, ErrExpired, ErrAuthRequired,
		ErrMinOrder, ErrScope, ErrUsageLimit, ErrPerUserLimit, ErrNotApplicable,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

func validationMessage(err error, promo models.Promotion) string {
	switch {
	case errors.Is(err, ErrInactive):
		return "Cette promotion n'est plus active"
	case errors.Is(err, ErrNotStarted):
		return "Cette promotion n'est pas encore valide"
	case errors.Is(err, ErrExpired):
		return "Cette promotion a expiré"
	case errors.Is(err, ErrAuthRequired):
		return "Connectez-vous pour utiliser cette promotion"
	case errors.Is(err, ErrMinOrder):
		return fmt.Sprintf("Montant minimum requis: %.2f€", promo.MinOrderValue)
	case errors.Is(err, ErrScope), errors.Is(err, ErrNotApplicable):
		return "Cette promotion ne s'applique pas à votre panier"
	case errors.Is(err, ErrUsageLimit):
		return "Cette promotion a atteint sa limite d'utilisation"
	case errors.Is(err, ErrPerUserLimit):
		return "Vous avez déjà utilisé cette promotion le nombre maximum de fois"
	default:
		return "Promotion invalide"
	}
}
