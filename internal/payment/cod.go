package payment

import (
	"context"

	"velora_back_end/internal/models"
)

// CODAdapter : paiement à la livraison. Aucun appel externe, le paiement reste
// "pending" jusqu'à l'encaissement physique (hors périmètre du checkout).
type CODAdapter struct{}

func NewCODAdapter() *CODAdapter {
	return &CODAdapter{}
}

func (a *CODAdapter) Method() string {
	return models.PaymentMethodCOD
}

// CreateIntent ne fait rien : pas de provider externe, pas de référence
func (a *CODAdapter) CreateIntent(_ context.Context, _ string, _ int64, _ string) (*Intent, error) {
	return &Intent{}, nil
}

// Confirm termine le checkout immédiatement, paiement différé à la collecte
func (a *CODAdapter) Confirm(_ context.Context, _ string, _ map[string]string) (*Result, error) {
	return &Result{Status: models.PaymentStatusPending, Completed: true}, nil
}
