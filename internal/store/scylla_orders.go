package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"velora_back_end/internal/checkout"
	"velora_back_end/internal/database"
	"velora_back_end/internal/models"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// ScyllaOrderStore persiste les commandes dans le keyspace orders.
// La table orders_by_cart porte la clé d'idempotence : une ligne par panier,
// insérée avec IF NOT EXISTS. Le perdant d'une course adopte l'order_id gagnant.
type ScyllaOrderStore struct{}

func NewScyllaOrderStore() *ScyllaOrderStore {
	return &ScyllaOrderStore{}
}

func (s *ScyllaOrderStore) Create(ctx context.Context, order *models.Order) (string, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return "", fmt.Errorf("connexion orders: %w", err)
	}

	orderID := uuid.New().String()

	// 1. Réserver la clé d'idempotence (LWT)
	var existingID string
	applied, err := session.Query(
		"INSERT INTO orders_by_cart (cart_id, order_id) VALUES (?, ?) IF NOT EXISTS",
		order.CartID, orderID,
	).WithContext(ctx).ScanCAS(&existingID)
	if err != nil {
		return "", fmt.Errorf("réservation panier %s: %w", order.CartID, err)
	}
	if !applied {
		// Un autre appel a gagné la course : on adopte sa commande
		log.Printf("⚠️ Commande déjà créée pour le panier %s: %s", order.CartID, existingID)
		return existingID, checkout.ErrConflict
	}

	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return "", fmt.Errorf("sérialisation articles: %w", err)
	}
	addressJSON, err := json.Marshal(order.Address)
	if err != nil {
		return "", fmt.Errorf("sérialisation adresse: %w", err)
	}
	var promoJSON []byte
	if order.Promotion != nil {
		promoJSON, err = json.Marshal(order.Promotion)
		if err != nil {
			return "", fmt.Errorf("sérialisation promotion: %w", err)
		}
	}

	now := time.Now()

	// 2. Écrire la commande elle-même
	err = session.Query(`INSERT INTO orders (order_id, cart_id, user_id, email, address, shipping_method, shipping_cost,
		subtotal, discount, tax, total, status, payment_method, payment_status, payment_provider_ref, promotion, items, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		orderID, order.CartID, order.UserID, order.Email, string(addressJSON),
		order.ShippingMethod, order.ShippingCost,
		order.Subtotal, order.Discount, order.Tax, order.Total,
		order.Status, order.Payment.Method, order.Payment.Status, order.Payment.ProviderRef,
		string(promoJSON), string(itemsJSON), now,
	).WithContext(ctx).Exec()
	if err != nil {
		// On relâche la clé pour qu'un retry puisse repartir proprement
		if relErr := s.ReleaseCart(ctx, order.CartID); relErr != nil {
			log.Printf("⚠️ Impossible de libérer le panier %s après échec: %v", order.CartID, relErr)
		}
		return "", fmt.Errorf("insertion commande: %w", err)
	}

	if order.UserID != "" {
		if err := session.Query(
			"INSERT INTO orders_by_user (user_id, order_id, total, status, created_at) VALUES (?, ?, ?, ?, ?)",
			order.UserID, orderID, order.Total, order.Status, now,
		).WithContext(ctx).Exec(); err != nil {
			log.Printf("⚠️ Index orders_by_user non mis à jour pour %s: %v", orderID, err)
		}
	}

	log.Printf("📦 Commande créée: %s (panier %s, %.2f€)", orderID, order.CartID, order.Total)
	return orderID, nil
}

func (s *ScyllaOrderStore) FindByCart(ctx context.Context, cartID string) (string, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return "", fmt.Errorf("connexion orders: %w", err)
	}

	var orderID string
	err = session.Query("SELECT order_id FROM orders_by_cart WHERE cart_id = ?", cartID).
		WithContext(ctx).Scan(&orderID)
	if errors.Is(err, gocql.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("recherche par panier %s: %w", cartID, err)
	}
	return orderID, nil
}

func (s *ScyllaOrderStore) Fetch(ctx context.Context, orderID string) (*models.Order, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, fmt.Errorf("connexion orders: %w", err)
	}

	var (
		order                             models.Order
		addressJSON, promoJSON, itemsJSON string
	)
	order.ID = orderID
	err = session.Query(`SELECT cart_id, user_id, email, address, shipping_method, shipping_cost,
		subtotal, discount, tax, total, status, payment_method, payment_status, payment_provider_ref, promotion, items, created_at
		FROM orders WHERE order_id = ?`, orderID).WithContext(ctx).Scan(
		&order.CartID, &order.UserID, &order.Email, &addressJSON,
		&order.ShippingMethod, &order.ShippingCost,
		&order.Subtotal, &order.Discount, &order.Tax, &order.Total,
		&order.Status, &order.Payment.Method, &order.Payment.Status, &order.Payment.ProviderRef,
		&promoJSON, &itemsJSON, &order.CreatedAt,
	)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, checkout.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture commande %s: %w", orderID, err)
	}

	if addressJSON != "" {
		if err := json.Unmarshal([]byte(addressJSON), &order.Address); err != nil {
			return nil, fmt.Errorf("adresse commande %s: %w", orderID, err)
		}
	}
	if promoJSON != "" {
		var snap models.PromotionSnapshot
		if err := json.Unmarshal([]byte(promoJSON), &snap); err != nil {
			return nil, fmt.Errorf("promotion commande %s: %w", orderID, err)
		}
		order.Promotion = &snap
	}
	if itemsJSON != "" {
		if err := json.Unmarshal([]byte(itemsJSON), &order.Items); err != nil {
			return nil, fmt.Errorf("articles commande %s: %w", orderID, err)
		}
	}

	return &order, nil
}

func (s *ScyllaOrderStore) UpdatePayment(ctx context.Context, orderID, method, status, providerRef string) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return fmt.Errorf("connexion orders: %w", err)
	}

	orderStatus := models.OrderStatusPending
	if status == models.PaymentStatusPaid {
		orderStatus = models.OrderStatusProcessing
	}

	err = session.Query(
		"UPDATE orders SET payment_method = ?, payment_status = ?, payment_provider_ref = ?, status = ? WHERE order_id = ?",
		method, status, providerRef, orderStatus, orderID,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("mise à jour paiement %s: %w", orderID, err)
	}

	log.Printf("💳 Paiement %s: %s/%s (ref: %s)", orderID, method, status, providerRef)
	return nil
}

func (s *ScyllaOrderStore) ReleaseCart(ctx context.Context, cartID string) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return fmt.Errorf("connexion orders: %w", err)
	}

	if err := session.Query("DELETE FROM orders_by_cart WHERE cart_id = ?", cartID).
		WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("libération panier %s: %w", cartID, err)
	}
	return nil
}
