package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"velora_back_end/internal/database"
	"velora_back_end/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisCartStore lit le panier vivant stocké en Redis sous "cart:<identity>"
// (tableau JSON d'articles, même format que le front).
type RedisCartStore struct{}

func NewRedisCartStore() *RedisCartStore {
	return &RedisCartStore{}
}

func (s *RedisCartStore) Get(ctx context.Context, cartID string) (*models.CartSnapshot, error) {
	data, err := database.Redis.Get(ctx, "cart:"+cartID).Result()
	if errors.Is(err, redis.Nil) {
		return &models.CartSnapshot{CartID: cartID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lecture panier %s: %w", cartID, err)
	}

	var items []models.CartItem
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, fmt.Errorf("panier %s corrompu: %w", cartID, err)
	}

	return &models.CartSnapshot{CartID: cartID, Items: items}, nil
}

// Cleanup supprime le panier. DEL sur une clé absente est un no-op Redis,
// donc un deuxième nettoyage ne remonte jamais d'erreur.
func (s *RedisCartStore) Cleanup(ctx context.Context, cartID string) error {
	if err := database.Redis.Del(ctx, "cart:"+cartID).Err(); err != nil {
		return fmt.Errorf("nettoyage panier %s: %w", cartID, err)
	}
	log.Printf("🧹 Panier nettoyé: %s", cartID)
	return nil
}
