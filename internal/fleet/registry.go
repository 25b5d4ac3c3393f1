// Package fleet tracks which workers are alive via Redis TTL keys, so
// operators can see the fleet without querying every worker.
package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mintmarkhq/mintmark/internal/logger"
)

const (
	// keyPrefix namespaces worker liveness keys.
	keyPrefix = "fleet:worker:"
	// connectionTimeout bounds the startup ping.
	connectionTimeout = 5 * time.Second
)

// Config holds Redis connection configuration.
type Config struct {
	Address  string
	Password string
	DB       int
}

// ErrEmptyAddress is returned when the Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

// NewClient creates a Redis client and verifies connectivity.
func NewClient(cfg Config) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// Status is one worker's liveness record.
type Status struct {
	WorkerID     string    `json:"worker_id"`
	JobType      string    `json:"job_type"`
	CurrentJobID string    `json:"current_job_id,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	ReportedAt   time.Time `json:"reported_at"`
}

// Registry writes worker liveness records with a TTL. A worker that
// stops reporting simply expires from the registry.
type Registry struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Interface
}

// NewRegistry creates a fleet registry. ttl should be a small multiple
// of the worker heartbeat interval.
func NewRegistry(client *redis.Client, ttl time.Duration, log logger.Interface) *Registry {
	return &Registry{client: client, ttl: ttl, logger: log}
}

// Report refreshes the calling worker's liveness record.
func (r *Registry) Report(ctx context.Context, status Status) error {
	status.ReportedAt = time.Now().UTC()

	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal worker status: %w", err)
	}

	if setErr := r.client.Set(ctx, keyPrefix+status.WorkerID, data, r.ttl).Err(); setErr != nil {
		return fmt.Errorf("failed to report worker status: %w", setErr)
	}

	return nil
}

// Deregister removes the worker's record immediately on clean shutdown.
func (r *Registry) Deregister(ctx context.Context, workerID string) error {
	if err := r.client.Del(ctx, keyPrefix+workerID).Err(); err != nil {
		return fmt.Errorf("failed to deregister worker: %w", err)
	}
	return nil
}

// List returns the currently live workers.
func (r *Registry) List(ctx context.Context) ([]Status, error) {
	var statuses []Status

	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // expired between scan and get
			}
			return nil, fmt.Errorf("failed to read worker status: %w", err)
		}

		var status Status
		if unmarshalErr := json.Unmarshal(data, &status); unmarshalErr != nil {
			r.logger.Warn("Skipping malformed worker status", "key", iter.Val())
			continue
		}
		statuses = append(statuses, status)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan worker registry: %w", err)
	}

	if statuses == nil {
		statuses = []Status{}
	}

	return statuses, nil
}
