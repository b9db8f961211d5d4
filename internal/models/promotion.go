package models

import "time"

// Types de promotion
const (
	PromotionPercentage = "percentage"
	PromotionFixed      = "fixed"
	PromotionFreeItem   = "free_item"
	PromotionBogo       = "bogo"
)

type Promotion struct {
	ID              string    `json:"id"`
	Code            string    `json:"code,omitempty"`
	Type            string    `json:"type"` // "percentage", "fixed", "free_item", "bogo"
	Value           float64   `json:"value"`
	MinOrderValue   float64   `json:"min_order_value"`
	ApplicableToAll bool      `json:"applicable_to_all"`
	ProductIDs      []string  `json:"product_ids,omitempty"`
	CategoryIDs     []string  `json:"category_ids,omitempty"`
	RequiresAuth    bool      `json:"requires_auth"`
	UsageLimit      int       `json:"usage_limit"`    // 0 = illimité
	PerUserLimit    int       `json:"per_user_limit"` // 0 = illimité
	StartsAt        time.Time `json:"starts_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// PromotionSnapshot est la valeur figée dans la commande à sa création.
// Elle n'est jamais recalculée après coup, même si le panier vivant change.
type PromotionSnapshot struct {
	PromotionID string  `json:"promotion_id"`
	Code        string  `json:"code,omitempty"`
	Type        string  `json:"type"`
	Discount    float64 `json:"discount"`
}

// PromotionUsage trace une utilisation, liée à la commande (idempotente par order_id)
type PromotionUsage struct {
	PromotionID string    `json:"promotion_id"`
	OrderID     string    `json:"order_id"`
	Identity    string    `json:"identity"` // user_id ou email invité
	UsedAt      time.Time `json:"used_at"`
}

// PromotionValidation est la réponse de validation côté API
type PromotionValidation struct {
	IsValid      bool    `json:"is_valid"`
	ErrorMessage string  `json:"error_message,omitempty"`
	Discount     float64 `json:"discount"`
	Type         string  `json:"type,omitempty"`
	Code         string  `json:"code,omitempty"`
}
