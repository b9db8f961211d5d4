package payment

import (
	"context"
	"fmt"
	"log"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"

	"velora_back_end/internal/models"
)

// HostedCardAdapter intègre le processeur carte à champs hébergés via Stripe.
// Le montant vient toujours de la commande serveur, jamais d'un recalcul client.
type HostedCardAdapter struct{}

func NewHostedCardAdapter() *HostedCardAdapter {
	return &HostedCardAdapter{}
}

func (a *HostedCardAdapter) Method() string {
	return models.PaymentMethodHostedCard
}

// CreateIntent crée le PaymentIntent et retourne le client_secret pour le widget hébergé
func (a *HostedCardAdapter) CreateIntent(_ context.Context, orderID string, amountMinor int64, currency string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			"order_id": orderID,
		},
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		log.Printf("❌ Erreur Stripe création intent (commande %s): %v", orderID, err)
		return nil, fmt.Errorf("création intent carte: %w", err)
	}

	log.Printf("💳 PaymentIntent créé: %s (%.2f€) pour commande %s", intent.ID, float64(amountMinor)/100, orderID)

	return &Intent{
		ProviderRef:  intent.ID,
		ClientSecret: intent.ClientSecret,
	}, nil
}

// Confirm relit l'intent chez Stripe : seul le statut "succeeded" vaut capture
func (a *HostedCardAdapter) Confirm(_ context.Context, orderID string, payload map[string]string) (*Result, error) {
	intentID := payload["payment_intent_id"]
	if intentID == "" {
		return nil, fmt.Errorf("payment_intent_id manquant")
	}

	intent, err := paymentintent.Get(intentID, nil)
	if err != nil {
		return nil, fmt.Errorf("lecture intent %s: %w", intentID, err)
	}

	if intent.Metadata["order_id"] != orderID {
		return nil, fmt.Errorf("intent %s ne correspond pas à la commande %s", intentID, orderID)
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return &Result{Status: models.PaymentStatusPaid, ProviderRef: intent.ID, Completed: true}, nil
	case stripe.PaymentIntentStatusProcessing:
		return &Result{Status: models.PaymentStatusPending, ProviderRef: intent.ID}, nil
	default:
		log.Printf("⚠️ Intent %s en statut %s, paiement refusé", intent.ID, intent.Status)
		return &Result{Status: models.PaymentStatusFailed, ProviderRef: intent.ID}, nil
	}
}
