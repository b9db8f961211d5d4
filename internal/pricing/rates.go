package pricing

import "velora_back_end/internal/models"

// Tables de taux externes (taxes et livraison), consommées comme fonctions pures.
// La logique de seuil de livraison gratuite vit ici, pas dans le moteur de pricing.

var taxRates = map[string]float64{
	"be": 0.21,
	"fr": 0.20,
	"de": 0.19,
	"ca": 0.13,
	"us": 0.0,
}

type shippingRate struct {
	Name          string
	Description   string
	Price         float64
	EstimatedDays int
	FreeAbove     float64 // 0 = jamais gratuit
}

var shippingRates = map[string]map[string]shippingRate{
	"be": {
		"standard": {"Livraison Standard", "Livraison en 5-7 jours ouvrés", 5.99, 7, 50},
		"express":  {"Livraison Express", "Livraison en 2-3 jours ouvrés", 12.99, 3, 0},
		"next_day": {"Livraison 24h", "Livraison le lendemain avant 18h", 19.99, 1, 0},
	},
	"fr": {
		"standard": {"Livraison Standard", "Livraison en 5-7 jours ouvrés", 6.99, 7, 60},
		"express":  {"Livraison Express", "Livraison en 2-3 jours ouvrés", 14.99, 3, 0},
	},
	"de": {
		"standard": {"Standardversand", "Lieferung in 5-7 Werktagen", 5.49, 7, 50},
		"express":  {"Expressversand", "Lieferung in 2-3 Werktagen", 11.99, 3, 0},
	},
	"ca": {
		"standard": {"Standard Shipping", "Delivery in 5-7 business days", 10.00, 7, 150},
		"express":  {"Express Shipping", "Delivery in 2-3 business days", 19.99, 3, 0},
	},
	"us": {
		"standard": {"Standard Shipping", "Delivery in 5-7 business days", 8.99, 7, 100},
		"express":  {"Express Shipping", "Delivery in 2-3 business days", 17.99, 3, 0},
	},
}

// TaxRate retourne le taux de taxe d'une région (0 si région inconnue)
func TaxRate(region string) float64 {
	return taxRates[region]
}

// ShippingCost résout le coût de livraison par région, méthode et sous-total remisé.
// Le seuil de gratuité s'évalue sur le sous-total après remise.
func ShippingCost(region, method string, discountedSubtotal float64) float64 {
	rates, ok := shippingRates[region]
	if !ok {
		return 0
	}
	rate, ok := rates[method]
	if !ok {
		return 0
	}
	if rate.FreeAbove > 0 && discountedSubtotal >= rate.FreeAbove {
		return 0
	}
	return rate.Price
}

// ShippingOptions retourne les options de livraison d'une région avec la gratuité appliquée
func ShippingOptions(region string, cartTotal float64) models.ShippingCalculation {
	rates, ok := shippingRates[region]
	if !ok {
		return models.ShippingCalculation{CartTotal: cartTotal}
	}

	var freeThreshold float64
	var options []models.ShippingOption
	for id, rate := range rates {
		price := rate.Price
		name := rate.Name
		if rate.FreeAbove > 0 {
			freeThreshold = rate.FreeAbove
			if cartTotal >= rate.FreeAbove {
				price = 0
				name = name + " (offerte)"
			}
		}
		options = append(options, models.ShippingOption{
			ID:            id,
			Name:          name,
			Description:   rate.Description,
			Price:         price,
			EstimatedDays: rate.EstimatedDays,
		})
	}

	// Tri stable par délai décroissant pour un ordre d'affichage déterministe
	for i := 0; i < len(options); i++ {
		for j := i + 1; j < len(options); j++ {
			if options[j].EstimatedDays > options[i].EstimatedDays {
				options[i], options[j] = options[j], options[i]
			}
		}
	}

	return models.ShippingCalculation{
		Options:       options,
		FreeThreshold: freeThreshold,
		CartTotal:     cartTotal,
		IsFree:        freeThreshold > 0 && cartTotal >= freeThreshold,
	}
}
