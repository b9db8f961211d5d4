package models

// CartItem est une ligne de panier figée au moment du pricing
type CartItem struct {
	ProductID  string            `json:"product_id"`
	VariantID  string            `json:"variant_id,omitempty"`
	CategoryID string            `json:"category_id,omitempty"`
	Name       string            `json:"name"`
	Price      float64           `json:"price"`
	Quantity   int               `json:"quantity"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// CartSnapshot est la vue immuable du panier utilisée par le checkout (lecture seule)
type CartSnapshot struct {
	CartID string     `json:"cart_id"`
	Items  []CartItem `json:"items"`
}

// Subtotal calcule le montant total des lignes du panier
func (c CartSnapshot) Subtotal() float64 {
	var total float64
	for _, item := range c.Items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

// IsEmpty indique si le panier ne contient aucune ligne
func (c CartSnapshot) IsEmpty() bool {
	return len(c.Items) == 0
}
