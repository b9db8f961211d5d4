package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"velora_back_end/internal/models"
	"velora_back_end/internal/payment"
	"velora_back_end/internal/pricing"
	"velora_back_end/internal/promotion"
)

// Orchestrator pilote une commande de sa création jusqu'au paiement capturé.
// Garanties :
//   - création de commande idempotente par panier, l'id est durablement écrit
//     dans le brouillon avant tout appel provider ;
//   - au plus une capture par commande (garde anti double-soumission) ;
//   - nettoyage du panier strictement après capture confirmée, idempotent,
//     et jamais bloquant : on n'annule pas un paiement réussi pour une
//     erreur de nettoyage.
type Orchestrator struct {
	orders   OrderStore
	carts    CartStore
	drafts   DraftStore
	usage    UsageRecorder
	refs     ReferenceCache
	flags    FlagStore
	adapters map[string]payment.Adapter
	currency string
}

func NewOrchestrator(orders OrderStore, carts CartStore, drafts DraftStore, usage UsageRecorder, refs ReferenceCache, flags FlagStore, currency string, adapters ...payment.Adapter) *Orchestrator {
	byMethod := make(map[string]payment.Adapter, len(adapters))
	for _, a := range adapters {
		byMethod[a.Method()] = a
	}
	return &Orchestrator{
		orders:   orders,
		carts:    carts,
		drafts:   drafts,
		usage:    usage,
		refs:     refs,
		flags:    flags,
		adapters: byMethod,
		currency: currency,
	}
}

func (o *Orchestrator) adapter(method string) (payment.Adapter, error) {
	a, ok := o.adapters[method]
	if !ok {
		return nil, fmt.Errorf("%w: méthode de paiement inconnue %q", ErrValidation, method)
	}
	return a, nil
}

// CreateOrder crée la commande du brouillon, exactement une fois par panier.
// Rejouable sans risque : un rechargement de page ou un double clic retombe
// sur la commande existante au lieu d'en créer une deuxième.
func (o *Orchestrator) CreateOrder(ctx context.Context, draft *models.CheckoutDraft, user promotion.UserContext) (string, error) {
	if draft == nil {
		return "", fmt.Errorf("%w: brouillon manquant", ErrValidation)
	}

	// Le brouillon porte déjà une commande : on la réutilise, jamais de doublon
	if draft.HasOrder() {
		return draft.OrderID, nil
	}

	orderID, err := o.orders.FindByCart(ctx, draft.CartID)
	if err != nil {
		return "", fmt.Errorf("recherche commande existante: %w", err)
	}

	if orderID == "" {
		cart, err := o.carts.Get(ctx, draft.CartID)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		if cart.IsEmpty() {
			return "", ErrEmptyCart
		}

		order := orderFromDraft(draft, cart, user)
		orderID, err = o.orders.Create(ctx, order)
		if errors.Is(err, ErrConflict) {
			// Course perdue : une création concurrente a gagné, on adopte son id
			orderID, err = o.orders.FindByCart(ctx, draft.CartID)
			if err != nil || orderID == "" {
				return "", fmt.Errorf("récupération commande concurrente: %w", err)
			}
			log.Printf("🔁 Commande déjà créée pour le panier %s, réutilisation de %s", draft.CartID, orderID)
		} else if err != nil {
			// La création a échoué : on reste sans commande, l'utilisateur peut réessayer
			return "", fmt.Errorf("création commande: %w", err)
		} else {
			log.Printf("✅ Commande créée: %s (%.2f€) pour panier %s", orderID, pricing.Round2(draft.Total), draft.CartID)
		}
	} else {
		log.Printf("🔁 Commande %s réutilisée pour le panier %s", orderID, draft.CartID)
	}

	// Utilisation de la promotion liée à la commande, idempotente par order id
	if draft.Promotion != nil {
		if err := o.usage.Record(ctx, draft.Promotion.PromotionID, user.Identity(), orderID); err != nil {
			return "", fmt.Errorf("enregistrement utilisation promotion: %w", err)
		}
	}

	// L'id doit être durable dans le brouillon AVANT toute navigation ou appel provider
	draft.OrderID = orderID
	draft.PendingCreation = false
	draft.UpdatedAt = time.Now()
	if err := o.drafts.Save(ctx, draft); err != nil {
		return "", fmt.Errorf("sauvegarde brouillon après création: %w", err)
	}

	return orderID, nil
}

// Instruction dit au client comment poursuivre le paiement engagé
type Instruction struct {
	Method       string `json:"method"`
	State        string `json:"state"`
	RedirectURL  string `json:"redirect_url,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	ProviderRef  string `json:"provider_ref,omitempty"`
}

// StartPayment engage le paiement d'une commande existante avec le provider choisi.
// Les montants viennent de la commande en base, jamais du client.
func (o *Orchestrator) StartPayment(ctx context.Context, orderID, method string) (*Instruction, error) {
	order, err := o.orders.Fetch(ctx, orderID)
	if err != nil {
		// Une base injoignable n'est pas une commande absente
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: commande %s", ErrNotFound, orderID)
		}
		return nil, fmt.Errorf("lecture commande %s: %w", orderID, err)
	}

	if order.Payment.Status == models.PaymentStatusPaid {
		return &Instruction{Method: order.Payment.Method, State: StatePaid.String(), ProviderRef: order.Payment.ProviderRef}, nil
	}

	adapter, err := o.adapter(method)
	if err != nil {
		return nil, err
	}

	switch method {
	case models.PaymentMethodWallet:
		return o.startWallet(ctx, order, adapter)

	case models.PaymentMethodHostedCard:
		intent, err := adapter.CreateIntent(ctx, orderID, pricing.MinorUnits(order.Total), o.currency)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProvider, err)
		}
		if err := o.orders.UpdatePayment(ctx, orderID, method, models.PaymentStatusPending, intent.ProviderRef); err != nil {
			return nil, fmt.Errorf("mise à jour paiement: %w", err)
		}
		return &Instruction{
			Method:       method,
			State:        StateInProgress.String(),
			ClientSecret: intent.ClientSecret,
			ProviderRef:  intent.ProviderRef,
		}, nil

	case models.PaymentMethodCOD:
		if err := o.orders.UpdatePayment(ctx, orderID, method, models.PaymentStatusPending, ""); err != nil {
			return nil, fmt.Errorf("mise à jour paiement: %w", err)
		}
		return &Instruction{Method: method, State: StateInProgress.String()}, nil

	default:
		return nil, fmt.Errorf("%w: méthode %q", ErrValidation, method)
	}
}

// startWallet gère la remise au wallet à redirection : une seule référence
// externe par commande, même après retour arrière navigateur ou rechargement.
func (o *Orchestrator) startWallet(ctx context.Context, order *models.Order, adapter payment.Adapter) (*Instruction, error) {
	ref, err := o.refs.Get(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("lecture référence wallet: %w", err)
	}

	if ref == "" {
		intent, err := adapter.CreateIntent(ctx, order.ID, pricing.MinorUnits(order.Total), o.currency)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProvider, err)
		}
		// PutIfAbsent tranche les courses : la première référence écrite gagne
		ref, err = o.refs.PutIfAbsent(ctx, order.ID, intent.ProviderRef)
		if err != nil {
			return nil, fmt.Errorf("cache référence wallet: %w", err)
		}
	} else {
		log.Printf("🔁 Référence wallet réutilisée pour la commande %s: %s", order.ID, ref)
	}

	// Le marché courier marque déjà le paiement pending à la création de la
	// commande : ne pas réémettre la mise à jour dans ce cas.
	skip, err := o.flags.IsSet(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("lecture drapeau paiement: %w", err)
	}
	if !skip {
		if err := o.orders.UpdatePayment(ctx, order.ID, models.PaymentMethodWallet, models.PaymentStatusPending, ref); err != nil {
			return nil, fmt.Errorf("mise à jour paiement: %w", err)
		}
		if err := o.flags.Set(ctx, order.ID); err != nil {
			log.Printf("⚠️ Impossible de poser le drapeau paiement pour %s: %v", order.ID, err)
		}
	}

	redirector, ok := adapter.(payment.Redirector)
	if !ok {
		return nil, fmt.Errorf("%w: le provider wallet ne fournit pas d'URL de redirection", ErrProvider)
	}

	// État local terminal : "redirigé", pas "payé". Le wallet règle hors bande.
	return &Instruction{
		Method:      models.PaymentMethodWallet,
		State:       StateInProgress.String(),
		RedirectURL: redirector.RedirectURL(order.ID),
		ProviderRef: ref,
	}, nil
}

// ConfirmPayment applique une confirmation provider à la commande.
// Au plus une capture : une commande déjà payée retourne son résultat sans
// rappeler le provider, et le nettoyage du panier ne rejoue pas.
func (o *Orchestrator) ConfirmPayment(ctx context.Context, orderID, method string, payload map[string]string) (*payment.Result, error) {
	order, err := o.orders.Fetch(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: commande %s", ErrNotFound, orderID)
		}
		return nil, fmt.Errorf("lecture commande %s: %w", orderID, err)
	}

	if order.Payment.Status == models.PaymentStatusPaid {
		log.Printf("🔁 Commande %s déjà payée, confirmation ignorée", orderID)
		return &payment.Result{
			Status:      models.PaymentStatusPaid,
			ProviderRef: order.Payment.ProviderRef,
			Completed:   true,
		}, nil
	}

	adapter, err := o.adapter(method)
	if err != nil {
		return nil, err
	}

	// Le callback wallet doit porter la référence frappée pour cette commande.
	// Cache illisible = garde inapplicable : on refuse, le callback est rejoué.
	if method == models.PaymentMethodWallet {
		cached, err := o.refs.Get(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("lecture référence wallet: %w", err)
		}
		if cached != "" && payload["reference"] != cached {
			return nil, fmt.Errorf("%w: référence wallet inattendue pour la commande %s", ErrProvider, orderID)
		}
	}

	result, err := adapter.Confirm(ctx, orderID, payload)
	if err != nil {
		// La commande reste en attente de paiement, l'utilisateur peut réessayer
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	switch result.Status {
	case models.PaymentStatusPaid:
		if err := o.orders.UpdatePayment(ctx, orderID, method, models.PaymentStatusPaid, result.ProviderRef); err != nil {
			// La capture provider a eu lieu : on ne la défait jamais, le retry
			// de confirmation (idempotent) finira de persister le statut.
			return nil, fmt.Errorf("persistance paiement capturé: %w", err)
		}
		log.Printf("✅ Paiement capturé pour la commande %s (%s)", orderID, result.ProviderRef)
		o.cleanupCart(ctx, order.CartID)

	case models.PaymentStatusFailed:
		if err := o.orders.UpdatePayment(ctx, orderID, method, models.PaymentStatusFailed, result.ProviderRef); err != nil {
			log.Printf("⚠️ Impossible de marquer le paiement échoué pour %s: %v", orderID, err)
		}
		log.Printf("❌ Paiement refusé pour la commande %s", orderID)

	case models.PaymentStatusPending:
		if result.Completed {
			// Contre-remboursement : checkout terminé, encaissement différé
			if err := o.orders.UpdatePayment(ctx, orderID, method, models.PaymentStatusPending, result.ProviderRef); err != nil {
				return nil, fmt.Errorf("mise à jour paiement différé: %w", err)
			}
			log.Printf("📦 Commande %s confirmée en paiement à la livraison", orderID)
			o.cleanupCart(ctx, order.CartID)
		}
	}

	return result, nil
}

// cleanupCart nettoie le panier source après un checkout terminé.
// Jamais bloquant : un échec est journalisé, pas remonté, car rejouer le
// nettoyage est sans danger alors qu'échouer après capture est une faute.
func (o *Orchestrator) cleanupCart(ctx context.Context, cartID string) {
	if err := o.carts.Cleanup(ctx, cartID); err != nil {
		log.Printf("⚠️ Nettoyage du panier %s à réessayer: %v", cartID, err)
		return
	}
	log.Printf("🧹 Panier %s nettoyé", cartID)
}

// orderFromDraft construit la commande à persister depuis le brouillon et le panier.
// La promotion du brouillon y est figée : elle ne sera plus jamais recalculée.
func orderFromDraft(draft *models.CheckoutDraft, cart *models.CartSnapshot, user promotion.UserContext) *models.Order {
	items := make([]models.OrderItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, models.OrderItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}

	method := draft.PaymentMethod
	if method == "" {
		method = models.PaymentMethodWallet
	}

	return &models.Order{
		CartID:         draft.CartID,
		UserID:         user.UserID,
		Email:          user.Email,
		Address:        draft.Address,
		ShippingMethod: draft.ShippingMethod,
		ShippingCost:   draft.ShippingCost,
		Subtotal:       draft.Subtotal,
		Discount:       draft.Discount,
		Tax:            draft.Tax,
		Total:          draft.Total,
		Status:         models.OrderStatusPending,
		Payment: models.Payment{
			Method: method,
			Status: models.PaymentStatusPending,
		},
		Promotion: draft.Promotion,
		Items:     items,
		CreatedAt: time.Now(),
	}
}
