package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"velora_back_end/internal/models"
	"velora_back_end/internal/payment"
	"velora_back_end/internal/pricing"
	"velora_back_end/internal/promotion"
)

// Market sélectionne la variante de parcours
type Market string

const (
	// MarketCourier : provider wallet unique, commande créée dès l'étape livraison
	MarketCourier Market = "courier"
	// MarketGlobal : choix de provider, création différée au "Confirmer la commande"
	MarketGlobal Market = "global"
)

// ShippingRequest est la saisie de l'étape livraison
type ShippingRequest struct {
	Address        models.Address `json:"address"`
	ShippingMethod string         `json:"shipping_method"`
	PaymentMethod  string         `json:"payment_method,omitempty"`
	CouponCode     string         `json:"coupon_code,omitempty"`
}

// ConfirmationView est l'état affiché sur la page de confirmation.
// Degraded signale des montants issus du brouillon local faute de pouvoir
// joindre la base : affichables, mais non autoritatifs.
type ConfirmationView struct {
	State    string                `json:"state"`
	Order    *models.Order         `json:"order,omitempty"`
	Draft    *models.CheckoutDraft `json:"draft,omitempty"`
	Quote    pricing.Quote         `json:"quote"`
	Degraded bool                  `json:"degraded"`
}

// FlowController séquence Livraison → Confirmation → Paiement pour les deux marchés
type FlowController struct {
	market   Market
	orch     *Orchestrator
	drafts   DraftStore
	carts    CartStore
	orders   OrderStore
	promos   PromotionCatalog
	resolver *promotion.Resolver
}

func NewFlowController(market Market, orch *Orchestrator, drafts DraftStore, carts CartStore, orders OrderStore, promos PromotionCatalog, resolver *promotion.Resolver) *FlowController {
	return &FlowController{
		market:   market,
		orch:     orch,
		drafts:   drafts,
		carts:    carts,
		orders:   orders,
		promos:   promos,
		resolver: resolver,
	}
}

// Market retourne la variante de marché active
func (f *FlowController) Market() Market {
	return f.market
}

// SubmitShipping enregistre l'étape livraison : pricing complet, promotion
// résolue et figée dans le brouillon, puis — marché courier — création
// immédiate de la commande.
//
// Rééditer la livraison écrase tout le brouillon : un order id antérieur est
// abandonné (clé d'idempotence libérée) et ne sera jamais réutilisé pour une
// adresse ou un panier qui a changé.
func (f *FlowController) SubmitShipping(ctx context.Context, sessionID string, user promotion.UserContext, req ShippingRequest) (*models.CheckoutDraft, error) {
	if req.Address.Street == "" || req.Address.City == "" || req.Address.Country == "" {
		return nil, fmt.Errorf("%w: adresse de livraison incomplète", ErrValidation)
	}
	if req.ShippingMethod == "" {
		return nil, fmt.Errorf("%w: méthode de livraison requise", ErrValidation)
	}

	cart, err := f.carts.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: panier introuvable", ErrNotFound)
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	// Abandon explicite d'une commande antérieure si la livraison est rééditée
	if previous, err := f.drafts.Load(ctx, sessionID); err == nil && previous.HasOrder() {
		if err := f.orders.ReleaseCart(ctx, previous.CartID); err != nil {
			return nil, fmt.Errorf("libération clé d'idempotence: %w", err)
		}
		log.Printf("🗑️ Commande %s abandonnée après réédition de la livraison", previous.OrderID)
	}

	region := regionOf(req.Address)

	snap, err := f.resolvePromotion(ctx, *cart, user, req.CouponCode)
	if err != nil {
		return nil, err
	}

	var discount float64
	if snap != nil {
		discount = snap.Discount
	}
	quote := pricing.Price(*cart, region, req.ShippingMethod, discount)

	// Écriture intégrale du brouillon, jamais de fusion avec l'ancien
	draft := &models.CheckoutDraft{
		SessionID:      sessionID,
		CartID:         cart.CartID,
		Address:        req.Address,
		ShippingMethod: req.ShippingMethod,
		ShippingCost:   quote.Shipping,
		PaymentMethod:  req.PaymentMethod,
		Subtotal:       quote.Subtotal,
		Discount:       quote.Discount,
		Tax:            quote.Tax,
		Total:          quote.Total,
		Promotion:      snap,
		UpdatedAt:      time.Now(),
	}

	switch f.market {
	case MarketCourier:
		// La commande existe avant de quitter l'étape livraison, paiement
		// wallet marqué pending dès la création
		draft.PaymentMethod = models.PaymentMethodWallet
		orderID, err := f.orch.CreateOrder(ctx, draft, user)
		if err != nil {
			return nil, err
		}
		if err := f.orch.flags.Set(ctx, orderID); err != nil {
			log.Printf("⚠️ Drapeau paiement non posé pour %s: %v", orderID, err)
		}

	default:
		// Marché global : création différée, le panier reste vivant pour
		// permettre l'abandon sans trace
		draft.PendingCreation = true
		if err := f.drafts.Save(ctx, draft); err != nil {
			return nil, fmt.Errorf("sauvegarde brouillon: %w", err)
		}
	}

	return draft, nil
}

// ConfirmOrder est le "Confirmer la commande" du marché global : création
// explicite, déclenchée par l'utilisateur après revue des totaux.
func (f *FlowController) ConfirmOrder(ctx context.Context, sessionID string, user promotion.UserContext) (string, error) {
	draft, err := f.drafts.Load(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("%w: aucun brouillon de checkout", ErrNotFound)
	}
	if draft.HasOrder() {
		return draft.OrderID, nil
	}
	if !draft.PendingCreation {
		return "", fmt.Errorf("%w: l'étape livraison n'est pas terminée", ErrValidation)
	}
	return f.orch.CreateOrder(ctx, draft, user)
}

// LoadConfirmation reconstruit la page de confirmation. La commande en base
// fait foi : tous les montants affichés en viennent dès qu'elle est lisible,
// le brouillon local ne sert que d'affichage rapide ou de secours dégradé.
// La page est joignable avec le seul order id (retour de redirection externe,
// lien marqué) sans aucun brouillon local.
func (f *FlowController) LoadConfirmation(ctx context.Context, sessionID, orderIDParam string) (*ConfirmationView, error) {
	draft, draftErr := f.drafts.Load(ctx, sessionID)
	if draftErr != nil {
		draft = nil
	}

	orderID := orderIDParam
	if orderID == "" && draft.HasOrder() {
		orderID = draft.OrderID
	}

	if orderID == "" {
		if draft == nil {
			return nil, ErrNoOrder
		}
		// Marché global avant création : la confirmation affiche le brouillon
		return &ConfirmationView{
			State: StateOf(draft, nil).String(),
			Draft: draft,
			Quote: quoteOfDraft(draft),
		}, nil
	}

	order, err := f.orders.Fetch(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: commande %s", ErrNotFound, orderID)
		}
		if draft == nil {
			return nil, fmt.Errorf("lecture commande %s: %w", orderID, err)
		}
		// Base injoignable : on retombe sur le brouillon, explicitement non autoritatif
		log.Printf("⚠️ Commande %s illisible, affichage dégradé depuis le brouillon: %v", orderID, err)
		return &ConfirmationView{
			State:    StateOf(draft, nil).String(),
			Draft:    draft,
			Quote:    quoteOfDraft(draft),
			Degraded: true,
		}, nil
	}

	view := &ConfirmationView{
		State: StateOf(draft, order).String(),
		Order: order,
		Draft: draft,
		Quote: pricing.Quote{
			Subtotal:           order.Subtotal,
			Discount:           order.Discount,
			DiscountedSubtotal: order.Subtotal - order.Discount,
			Shipping:           order.ShippingCost,
			Tax:                order.Tax,
			Total:              order.Total,
		},
	}

	// La promotion figée de la commande gagne toujours ; le brouillon ne sert
	// que si la commande n'en porte aucune.
	if order.Promotion == nil && draft != nil && draft.Promotion != nil {
		view.Order.Promotion = draft.Promotion
	}

	f.reconcileDraft(ctx, draft, order)

	return view, nil
}

// Pay engage le paiement : l'id de commande est exigé avant tout appel provider
func (f *FlowController) Pay(ctx context.Context, sessionID, orderID, method string) (*Instruction, error) {
	if orderID == "" {
		draft, err := f.drafts.Load(ctx, sessionID)
		if err != nil || !draft.HasOrder() {
			return nil, ErrNoOrder
		}
		orderID = draft.OrderID
	}

	if f.market == MarketCourier && method != models.PaymentMethodWallet {
		return nil, fmt.Errorf("%w: ce marché n'accepte que le paiement wallet", ErrValidation)
	}

	instruction, err := f.orch.StartPayment(ctx, orderID, method)
	if err != nil {
		return nil, err
	}

	f.rememberPaymentMethod(ctx, sessionID, orderID, method)

	return instruction, nil
}

// Settle applique un résultat provider (confirmation carte, callback wallet,
// confirmation contre-remboursement) puis solde la session si le checkout est fini.
func (f *FlowController) Settle(ctx context.Context, sessionID, orderID, method string, payload map[string]string) (*payment.Result, error) {
	result, err := f.orch.ConfirmPayment(ctx, orderID, method, payload)
	if err != nil {
		return nil, err
	}

	if result.Completed && sessionID != "" {
		// Garde anti-réponse périmée : on ne solde la session que si elle
		// appartient encore à cette commande.
		draft, err := f.drafts.Load(ctx, sessionID)
		if err == nil && draft.OrderID == orderID {
			if err := f.drafts.Clear(ctx, sessionID); err != nil {
				log.Printf("⚠️ Brouillon %s non purgé: %v", sessionID, err)
			}
		}
	}

	return result, nil
}

// rememberPaymentMethod note la méthode choisie dans le brouillon, avec la
// même garde anti-réponse périmée : une session repartie sur une autre
// commande n'est jamais écrasée par un callback retardataire.
func (f *FlowController) rememberPaymentMethod(ctx context.Context, sessionID, orderID, method string) {
	draft, err := f.drafts.Load(ctx, sessionID)
	if err != nil {
		return
	}
	if draft.OrderID != orderID {
		log.Printf("⚠️ Réponse périmée ignorée: la session %s est passée de %s à %s", sessionID, orderID, draft.OrderID)
		return
	}
	draft.PaymentMethod = method
	draft.UpdatedAt = time.Now()
	if err := f.drafts.Save(ctx, draft); err != nil {
		log.Printf("⚠️ Brouillon %s non mis à jour: %v", sessionID, err)
	}
}

// reconcileDraft écrase les montants du brouillon avec ceux de la commande :
// le cache local n'est qu'une aide au premier affichage, jamais une source.
func (f *FlowController) reconcileDraft(ctx context.Context, draft *models.CheckoutDraft, order *models.Order) {
	if draft == nil {
		return
	}
	if draft.OrderID != order.ID {
		// Sans lien déjà établi, seule une commande issue du même panier peut
		// être adoptée : un lien de confirmation marqué d'un achat antérieur
		// ne capture jamais la session courante.
		if draft.OrderID != "" || draft.CartID != order.CartID {
			return
		}
	}

	draft.OrderID = order.ID
	draft.PendingCreation = false
	draft.Subtotal = order.Subtotal
	draft.Discount = order.Discount
	draft.Tax = order.Tax
	draft.Total = order.Total
	draft.ShippingMethod = order.ShippingMethod
	draft.ShippingCost = order.ShippingCost
	if order.Payment.Method != "" {
		draft.PaymentMethod = order.Payment.Method
	}
	if order.Promotion != nil {
		draft.Promotion = order.Promotion
	}
	draft.UpdatedAt = time.Now()

	if err := f.drafts.Save(ctx, draft); err != nil {
		log.Printf("⚠️ Réconciliation du brouillon %s non sauvegardée: %v", draft.SessionID, err)
	}
}

// resolvePromotion fige la promotion applicable : code saisi prioritaire,
// sinon la meilleure promotion automatique.
func (f *FlowController) resolvePromotion(ctx context.Context, cart models.CartSnapshot, user promotion.UserContext, code string) (*models.PromotionSnapshot, error) {
	if code != "" {
		promo, err := f.promos.ByCode(ctx, strings.ToUpper(code))
		if err != nil {
			return nil, fmt.Errorf("%w: code promotion invalide", ErrValidation)
		}
		discount, err := f.resolver.Evaluate(ctx, *promo, cart, user)
		if err != nil {
			if errors.Is(err, promotion.ErrAuthRequired) {
				// Le brouillon est préservé : l'utilisateur revient après connexion
				return nil, fmt.Errorf("%w: promotion réservée aux clients connectés", ErrAuthRequired)
			}
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return &models.PromotionSnapshot{
			PromotionID: promo.ID,
			Code:        promo.Code,
			Type:        promo.Type,
			Discount:    discount,
		}, nil
	}

	candidates, err := f.promos.ActivePromotions(ctx)
	if err != nil {
		log.Printf("⚠️ Promotions indisponibles, checkout sans remise: %v", err)
		return nil, nil
	}
	return f.resolver.Resolve(ctx, cart, user, candidates)
}

// quoteOfDraft reconstruit le devis affichable depuis un brouillon
func quoteOfDraft(d *models.CheckoutDraft) pricing.Quote {
	return pricing.Quote{
		Subtotal:           d.Subtotal,
		Discount:           d.Discount,
		DiscountedSubtotal: d.Subtotal - d.Discount,
		Shipping:           d.ShippingCost,
		Tax:                d.Tax,
		Total:              d.Total,
	}
}

// regionOf dérive la région de pricing depuis l'adresse
func regionOf(addr models.Address) string {
	return strings.ToLower(addr.Country)
}
