package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

// NewClient returns a configured go-redis client and validates the connection
// with PING.
func NewClient(addr, password string) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redisstore: addr is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultDialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

// ActiveTransaction cached for quick lookup while charging is in progress.
type ActiveTransaction struct {
	TransactionID int64     `json:"transaction_id"`
	ChargePointID string    `json:"charge_point_id"`
	ConnectorID   int       `json:"connector_id"`
	IdTag         string    `json:"id_tag"`
	MeterStart    int64     `json:"meter_start"`
	StartedAt     time.Time `json:"started_at"`
}

// ActiveTransactions manages the cache of running transactions.
type ActiveTransactions struct {
	client *redis.Client
	ttl    time.Duration
}

// NewActiveTransactions returns a redis-backed cache.
func NewActiveTransactions(client *redis.Client, ttl time.Duration) *ActiveTransactions {
	return &ActiveTransactions{client: client, ttl: ttl}
}

func (s *ActiveTransactions) key(transactionID int64) string {
	return fmt.Sprintf("ocpp:active:%d", transactionID)
}

// Save caches a started transaction.
func (s *ActiveTransactions) Save(ctx context.Context, tx ActiveTransaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(tx.TransactionID), data, s.ttl).Err()
}

// Get returns a cached transaction.
func (s *ActiveTransactions) Get(ctx context.Context, transactionID int64) (*ActiveTransaction, error) {
	result, err := s.client.Get(ctx, s.key(transactionID)).Result()
	if err != nil {
		return nil, err
	}
	var tx ActiveTransaction
	if err := json.Unmarshal([]byte(result), &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Delete removes a transaction from the cache once it stops.
func (s *ActiveTransactions) Delete(ctx context.Context, transactionID int64) error {
	return s.client.Del(ctx, s.key(transactionID)).Err()
}
