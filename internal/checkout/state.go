package checkout

import "velora_back_end/internal/models"

// State est l'état explicite du parcours de paiement d'une session de checkout.
// Il remplace les combinaisons implicites order_id présent/absent + flags booléens :
// un seul endroit décide où en est la session.
type State int

const (
	StateNoOrder State = iota
	StatePendingCreation
	StateAwaitingPayment
	StateInProgress
	StatePaid
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateNoOrder:
		return "no_order"
	case StatePendingCreation:
		return "order_pending_creation"
	case StateAwaitingPayment:
		return "awaiting_payment"
	case StateInProgress:
		return "payment_in_progress"
	case StatePaid:
		return "paid"
	case StateFailed:
		return "payment_failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal indique si l'état ne peut plus évoluer
func (s State) Terminal() bool {
	return s == StatePaid || s == StateCancelled
}

// CanTransition est l'unique fonction de transition de la machine à états
func CanTransition(from, to State) bool {
	switch from {
	case StateNoOrder:
		return to == StatePendingCreation || to == StateCancelled
	case StatePendingCreation:
		// Une création échouée reste en attente de création, jamais d'état ambigu
		return to == StateAwaitingPayment || to == StateCancelled || to == StatePendingCreation
	case StateAwaitingPayment:
		return to == StateInProgress || to == StateCancelled
	case StateInProgress:
		// Une confirmation échouée redevient retryable avec la même commande
		return to == StatePaid || to == StateFailed || to == StateAwaitingPayment
	case StateFailed:
		return to == StateInProgress
	default:
		return false
	}
}

// StateOf dérive l'état courant depuis le brouillon et la commande serveur.
// La commande en base fait toujours foi quand elle existe.
func StateOf(draft *models.CheckoutDraft, order *models.Order) State {
	if order != nil {
		switch order.Payment.Status {
		case models.PaymentStatusPaid:
			return StatePaid
		case models.PaymentStatusFailed:
			return StateFailed
		}
		if order.Status == models.OrderStatusCancelled {
			return StateCancelled
		}
		return StateAwaitingPayment
	}
	if draft == nil {
		return StateNoOrder
	}
	if draft.PendingCreation {
		return StatePendingCreation
	}
	return StateNoOrder
}
