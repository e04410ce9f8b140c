package repositories

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/sbilibin2017/watertemp-auth/internal/logger"
)

const accountsExistKey = "accounts:exist"

// AccountsExistCacheRepository remembers in Redis that an account has been registered.
// Accounts are never deleted, so the flag is stored without expiration.
type AccountsExistCacheRepository struct {
	client *redis.Client
}

// NewAccountsExistCacheRepository creates a new cache repository.
func NewAccountsExistCacheRepository(client *redis.Client) *AccountsExistCacheRepository {
	return &AccountsExistCacheRepository{client: client}
}

// GetAccountsExist reports whether the flag is set. A missing key is false, not an error.
func (r *AccountsExistCacheRepository) GetAccountsExist(ctx context.Context) (bool, error) {
	val, err := r.client.Get(ctx, accountsExistKey).Result()

	logger.Log.Infow("cache",
		"key", accountsExistKey,
		"value", val,
		"error", err,
	)

	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == "1", nil
}

// SetAccountsExist sets the flag.
func (r *AccountsExistCacheRepository) SetAccountsExist(ctx context.Context) error {
	err := r.client.Set(ctx, accountsExistKey, "1", 0).Err()

	logger.Log.Infow("cache",
		"key", accountsExistKey,
		"result", "ok",
		"error", err,
	)

	return err
}
