package models

import "time"

// Statuts de commande
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Méthodes de paiement
const (
	PaymentMethodWallet     = "redirect_wallet"
	PaymentMethodHostedCard = "hosted_card"
	PaymentMethodCOD        = "cod"
)

// Statuts de paiement
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// Payment — exactement un paiement par commande
type Payment struct {
	Method      string `json:"method"`
	Status      string `json:"status"`
	ProviderRef string `json:"provider_ref,omitempty"`
}

type OrderItem struct {
	ProductID string  `json:"product_id"`
	VariantID string  `json:"variant_id,omitempty"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// Order est créée exactement une fois par tentative de checkout (clé d'idempotence = cart_id)
type Order struct {
	ID             string             `json:"id"`
	CartID         string             `json:"cart_id"`
	UserID         string             `json:"user_id,omitempty"`
	Email          string             `json:"email"`
	Address        Address            `json:"address"`
	ShippingMethod string             `json:"shipping_method"`
	ShippingCost   float64            `json:"shipping_cost"`
	Subtotal       float64            `json:"subtotal"`
	Discount       float64            `json:"discount"`
	Tax            float64            `json:"tax"`
	Total          float64            `json:"total"`
	Status         string             `json:"status"`
	Payment        Payment            `json:"payment"`
	Promotion      *PromotionSnapshot `json:"promotion,omitempty"`
	Items          []OrderItem        `json:"items"`
	CreatedAt      time.Time          `json:"created_at"`
}
