package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"velora_back_end/internal/models"
)

// WalletAdapter intègre le wallet à redirection : le client part en navigation
// complète vers la page hébergée du provider, qui règle la commande hors bande
// (callback). Il n'y a aucun signal de succès synchrone côté checkout.
type WalletAdapter struct {
	baseURL string
}

func NewWalletAdapter(baseURL string) *WalletAdapter {
	return &WalletAdapter{baseURL: baseURL}
}

func (a *WalletAdapter) Method() string {
	return models.PaymentMethodWallet
}

// CreateIntent frappe une référence externe pour la commande.
// L'orchestrateur est responsable de ne jamais en frapper deux pour la même commande.
func (a *WalletAdapter) CreateIntent(_ context.Context, orderID string, _ int64, _ string) (*Intent, error) {
	return &Intent{ProviderRef: "wal_" + uuid.NewString()}, nil
}

// RedirectURL construit l'URL de la page hébergée, paramétrée uniquement par la commande
func (a *WalletAdapter) RedirectURL(orderID string) string {
	return a.baseURL + "?orderId=" + orderID
}

// Confirm traite le callback du wallet (règlement hors bande)
func (a *WalletAdapter) Confirm(_ context.Context, orderID string, payload map[string]string) (*Result, error) {
	ref := payload["reference"]
	if ref == "" {
		return nil, fmt.Errorf("référence wallet manquante pour la commande %s", orderID)
	}

	switch payload["status"] {
	case "success":
		return &Result{Status: models.PaymentStatusPaid, ProviderRef: ref, Completed: true}, nil
	case "pending":
		return &Result{Status: models.PaymentStatusPending, ProviderRef: ref}, nil
	default:
		return &Result{Status: models.PaymentStatusFailed, ProviderRef: ref}, nil
	}
}
