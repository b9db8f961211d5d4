package pricing

import (
	"math"

	"velora_back_end/internal/models"
)

// Quote est le détail des montants calculés pour un panier.
// Tous les intermédiaires sont gardés en pleine précision float64 ;
// l'arrondi à 2 décimales ne se fait qu'à l'affichage (Round2) pour
// éviter de cumuler les erreurs d'arrondi entre remise, livraison et taxe.
type Quote struct {
	Subtotal           float64 `json:"subtotal"`
	Discount           float64 `json:"discount"`
	DiscountedSubtotal float64 `json:"discounted_subtotal"`
	Shipping           float64 `json:"shipping"`
	Tax                float64 `json:"tax"`
	Total              float64 `json:"total"`
}

// Price calcule le devis complet d'un panier pour une région et une méthode de livraison.
// Règle métier : la taxe s'applique sur la base remisée + livraison, dans cet ordre.
func Price(cart models.CartSnapshot, region, shippingMethod string, promotionDiscount float64) Quote {
	subtotal := cart.Subtotal()

	// La remise ne produit jamais de sous-total négatif
	discounted := subtotal - promotionDiscount
	if discounted < 0 {
		promotionDiscount = subtotal
		discounted = 0
	}

	shipping := ShippingCost(region, shippingMethod, discounted)
	tax := (discounted + shipping) * TaxRate(region)

	return Quote{
		Subtotal:           subtotal,
		Discount:           promotionDiscount,
		DiscountedSubtotal: discounted,
		Shipping:           shipping,
		Tax:                tax,
		Total:              discounted + tax + shipping,
	}
}

// Round2 arrondit un montant à 2 décimales pour l'affichage
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// MinorUnits convertit un montant en centimes pour les providers de paiement
func MinorUnits(v float64) int64 {
	return int64(math.Round(v * 100))
}
