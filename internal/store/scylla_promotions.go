package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"velora_back_end/internal/checkout"
	"velora_back_end/internal/database"
	"velora_back_end/internal/models"

	"github.com/gocql/gocql"
)

// ScyllaPromotionStore sert de catalogue de promotions et de registre
// d'utilisations. La table promotion_usage a pour clé ((promotion_id), order_id) :
// réinsérer la même paire est un no-op CQL, donc Record est idempotent par retry.
type ScyllaPromotionStore struct{}

func NewScyllaPromotionStore() *ScyllaPromotionStore {
	return &ScyllaPromotionStore{}
}

const promotionColumns = `promotion_id, code, type, value, min_order_value,
	applicable_to_all, product_ids, category_ids,
	requires_auth, usage_limit, per_user_limit,
	starts_at, expires_at, is_active, created_at`

func (s *ScyllaPromotionStore) ActivePromotions(ctx context.Context) ([]models.Promotion, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, fmt.Errorf("connexion orders: %w", err)
	}

	iter := session.Query("SELECT "+promotionColumns+" FROM promotions WHERE is_active = true ALLOW FILTERING").
		WithContext(ctx).Iter()

	var promotions []models.Promotion
	var p models.Promotion
	for iter.Scan(
		&p.ID, &p.Code, &p.Type, &p.Value, &p.MinOrderValue,
		&p.ApplicableToAll, &p.ProductIDs, &p.CategoryIDs,
		&p.RequiresAuth, &p.UsageLimit, &p.PerUserLimit,
		&p.StartsAt, &p.ExpiresAt, &p.IsActive, &p.CreatedAt,
	) {
		promotions = append(promotions, p)
		p = models.Promotion{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("liste promotions: %w", err)
	}
	return promotions, nil
}

func (s *ScyllaPromotionStore) ByCode(ctx context.Context, code string) (*models.Promotion, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, fmt.Errorf("connexion orders: %w", err)
	}

	var p models.Promotion
	err = session.Query("SELECT "+promotionColumns+" FROM promotions_by_code WHERE code = ?",
		strings.ToUpper(code)).WithContext(ctx).Scan(
		&p.ID, &p.Code, &p.Type, &p.Value, &p.MinOrderValue,
		&p.ApplicableToAll, &p.ProductIDs, &p.CategoryIDs,
		&p.RequiresAuth, &p.UsageLimit, &p.PerUserLimit,
		&p.StartsAt, &p.ExpiresAt, &p.IsActive, &p.CreatedAt,
	)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, checkout.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("promotion %s: %w", code, err)
	}
	return &p, nil
}

func (s *ScyllaPromotionStore) Record(ctx context.Context, promotionID, identity, orderID string) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return fmt.Errorf("connexion orders: %w", err)
	}

	err = session.Query(
		"INSERT INTO promotion_usage (promotion_id, order_id, identity, used_at) VALUES (?, ?, ?, ?)",
		promotionID, orderID, identity, time.Now(),
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("usage promotion %s: %w", promotionID, err)
	}
	return nil
}

func (s *ScyllaPromotionStore) GlobalCount(ctx context.Context, promotionID string) (int, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return 0, fmt.Errorf("connexion orders: %w", err)
	}

	var count int
	err = session.Query("SELECT COUNT(*) FROM promotion_usage WHERE promotion_id = ?", promotionID).
		WithContext(ctx).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("compteur global %s: %w", promotionID, err)
	}
	return count, nil
}

func (s *ScyllaPromotionStore) UserCount(ctx context.Context, promotionID, identity string) (int, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return 0, fmt.Errorf("connexion orders: %w", err)
	}

	var count int
	err = session.Query(
		"SELECT COUNT(*) FROM promotion_usage WHERE promotion_id = ? AND identity = ? ALLOW FILTERING",
		promotionID, identity,
	).WithContext(ctx).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("compteur client %s: %w", promotionID, err)
	}
	return count, nil
}
