package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/go-redis/redis/v8"

	"tuition-receipts-go/models"
)

const (
	defaultKeyPrefix = "tuition:" // Namespace for every key this service writes
	paymentsKey      = "payments" // Hash: student key -> toggle counter
)

// RedisService keeps payment state in Redis so several server instances share
// one view of who has paid.
type RedisService struct {
	Client    *redis.Client
	Ctx       context.Context // Base context
	KeyPrefix string
}

// NewRedisService creates a new RedisService instance
func NewRedisService(client *redis.Client, keyPrefix string) *RedisService {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisService{
		Client:    client,
		Ctx:       context.Background(),
		KeyPrefix: keyPrefix,
	}
}

// Helper to generate the payments hash key
func (s *RedisService) getPaymentsKey() string {
	return s.KeyPrefix + paymentsKey
}

// --- Payment Operations ---

// Toggle flips the paid flag of a student. The hash field counts toggles, so
// the flag is the counter's parity and concurrent toggles never get lost.
func (s *RedisService) Toggle(key models.StudentKey) (bool, error) {
	n, err := s.Client.HIncrBy(s.Ctx, s.getPaymentsKey(), key.String(), 1).Result()
	if err != nil {
		log.Printf("Error toggling payment for %s: %v", key, err)
		return false, fmt.Errorf("failed to toggle payment in Redis: %w", err)
	}
	return n%2 == 1, nil
}

// IsPaid reports the paid flag; unknown students are unpaid.
func (s *RedisService) IsPaid(key models.StudentKey) (bool, error) {
	v, err := s.Client.HGet(s.Ctx, s.getPaymentsKey(), key.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		log.Printf("Error getting payment for %s: %v", key, err)
		return false, fmt.Errorf("failed to get payment from Redis: %w", err)
	}
	return parsePaid(v), nil
}

// Paid returns every student currently marked paid.
func (s *RedisService) Paid() (map[models.StudentKey]bool, error) {
	data, err := s.Client.HGetAll(s.Ctx, s.getPaymentsKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return map[models.StudentKey]bool{}, nil
		}
		log.Printf("Error getting payments: %v", err)
		return nil, fmt.Errorf("failed to get payments from Redis: %w", err)
	}

	paid := make(map[models.StudentKey]bool, len(data))
	for k, v := range data {
		if parsePaid(v) {
			paid[models.StudentKey(k)] = true
		}
	}
	return paid, nil
}

// Reset drops all payment state.
func (s *RedisService) Reset() error {
	if err := s.Client.Del(s.Ctx, s.getPaymentsKey()).Err(); err != nil {
		log.Printf("Error resetting payments: %v", err)
		return fmt.Errorf("failed to reset payments in Redis: %w", err)
	}
	return nil
}

func parsePaid(v string) bool {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("Ignoring malformed payment counter %q", v)
		return false
	}
	return n%2 == 1
}

// --- Utility ---

// InitializeRedisClient creates and tests a Redis client connection
func InitializeRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Ping Redis to check connection
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", addr, err)
	}

	log.Printf("Successfully connected to Redis %s DB %d", addr, db)
	return rdb, nil
}
