package payment

import "context"

// Intent est la référence créée chez le provider pour un montant donné
type Intent struct {
	ProviderRef  string `json:"provider_ref"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// Result est l'issue d'une confirmation de paiement.
// Completed indique que le checkout est terminé : soit le paiement est capturé,
// soit il est différé par nature (contre-remboursement).
type Result struct {
	Status      string `json:"status"` // models.PaymentStatus*
	ProviderRef string `json:"provider_ref,omitempty"`
	Completed   bool   `json:"completed"`
}

// Adapter est le contrat commun aux trois intégrations de paiement.
// Confirm ne retourne "paid" que sur capture confirmée par le provider,
// jamais sur la seule parole du client.
type Adapter interface {
	Method() string
	CreateIntent(ctx context.Context, orderID string, amountMinor int64, currency string) (*Intent, error)
	Confirm(ctx context.Context, orderID string, payload map[string]string) (*Result, error)
}

// Redirector est la capacité optionnelle d'un provider à page hébergée externe
type Redirector interface {
	RedirectURL(orderID string) string
}
