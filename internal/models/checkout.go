package models

import "time"

// CheckoutDraft est l'état de checkout durable entre les étapes (Livraison → Confirmation → Paiement).
// Il survit aux rechargements de page mais ne fait jamais foi pour les montants :
// dès qu'un OrderID existe, la commande en base est la seule source de vérité.
//
// Invariant : PendingCreation == true implique OrderID == "".
type CheckoutDraft struct {
	SessionID       string             `json:"session_id"`
	CartID          string             `json:"cart_id"`
	Address         Address            `json:"address"`
	ShippingMethod  string             `json:"shipping_method"`
	ShippingCost    float64            `json:"shipping_cost"`
	PaymentMethod   string             `json:"payment_method,omitempty"`
	Subtotal        float64            `json:"subtotal"`
	Discount        float64            `json:"discount"`
	Tax             float64            `json:"tax"`
	Total           float64            `json:"total"`
	Promotion       *PromotionSnapshot `json:"promotion,omitempty"`
	OrderID         string             `json:"order_id,omitempty"`
	PendingCreation bool               `json:"pending_creation"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// HasOrder indique si une commande a déjà été créée pour ce brouillon
func (d *CheckoutDraft) HasOrder() bool {
	return d != nil && d.OrderID != ""
}
