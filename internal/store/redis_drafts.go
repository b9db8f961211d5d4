package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"velora_back_end/internal/checkout"
	"velora_back_end/internal/database"
	"velora_back_end/internal/models"

	"github.com/redis/go-redis/v9"
)

// Durée de vie des clés de checkout en Redis. Un brouillon abandonné expire
// seul ; la commande en base reste la source de vérité.
const (
	draftTTL = 24 * time.Hour
	refTTL   = 24 * time.Hour
	flagTTL  = 24 * time.Hour
)

// RedisDraftStore persiste le brouillon de checkout sous "checkout:draft:<session>".
// Save écrase tout l'enregistrement, jamais de fusion champ par champ.
type RedisDraftStore struct{}

func NewRedisDraftStore() *RedisDraftStore {
	return &RedisDraftStore{}
}

func (s *RedisDraftStore) Save(ctx context.Context, draft *models.CheckoutDraft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("sérialisation brouillon %s: %w", draft.SessionID, err)
	}
	if err := database.Redis.Set(ctx, "checkout:draft:"+draft.SessionID, data, draftTTL).Err(); err != nil {
		return fmt.Errorf("sauvegarde brouillon %s: %w", draft.SessionID, err)
	}
	return nil
}

func (s *RedisDraftStore) Load(ctx context.Context, sessionID string) (*models.CheckoutDraft, error) {
	data, err := database.Redis.Get(ctx, "checkout:draft:"+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, checkout.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture brouillon %s: %w", sessionID, err)
	}

	var draft models.CheckoutDraft
	if err := json.Unmarshal([]byte(data), &draft); err != nil {
		return nil, fmt.Errorf("brouillon %s corrompu: %w", sessionID, err)
	}
	return &draft, nil
}

func (s *RedisDraftStore) Clear(ctx context.Context, sessionID string) error {
	if err := database.Redis.Del(ctx, "checkout:draft:"+sessionID).Err(); err != nil {
		return fmt.Errorf("suppression brouillon %s: %w", sessionID, err)
	}
	return nil
}

// RedisReferenceCache garde la référence provider frappée pour une commande
// sous "checkout:walletref:<order>". SetNX garantit un seul gagnant.
type RedisReferenceCache struct{}

func NewRedisReferenceCache() *RedisReferenceCache {
	return &RedisReferenceCache{}
}

func (s *RedisReferenceCache) Get(ctx context.Context, orderID string) (string, error) {
	ref, err := database.Redis.Get(ctx, "checkout:walletref:"+orderID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lecture référence %s: %w", orderID, err)
	}
	return ref, nil
}

func (s *RedisReferenceCache) PutIfAbsent(ctx context.Context, orderID, ref string) (string, error) {
	key := "checkout:walletref:" + orderID
	set, err := database.Redis.SetNX(ctx, key, ref, refTTL).Result()
	if err != nil {
		return "", fmt.Errorf("écriture référence %s: %w", orderID, err)
	}
	if set {
		return ref, nil
	}
	// Un autre appel a gagné : on retourne sa référence
	winner, err := database.Redis.Get(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("relecture référence %s: %w", orderID, err)
	}
	return winner, nil
}

// RedisFlagStore porte le drapeau "mise à jour de paiement déjà émise"
// sous "checkout:skipupdate:<order>".
type RedisFlagStore struct{}

func NewRedisFlagStore() *RedisFlagStore {
	return &RedisFlagStore{}
}

func (s *RedisFlagStore) Set(ctx context.Context, orderID string) error {
	if err := database.Redis.Set(ctx, "checkout:skipupdate:"+orderID, "1", flagTTL).Err(); err != nil {
		return fmt.Errorf("pose drapeau %s: %w", orderID, err)
	}
	return nil
}

func (s *RedisFlagStore) IsSet(ctx context.Context, orderID string) (bool, error) {
	_, err := database.Redis.Get(ctx, "checkout:skipupdate:"+orderID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lecture drapeau %s: %w", orderID, err)
	}
	return true, nil
}
