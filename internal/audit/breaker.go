package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/ddx-ranking-engine/internal/domain"
)

// BreakerConfig tunes the circuit breaker around a remote audit store
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// BreakerStore guards a remote audit store with a circuit breaker so that a
// failing database stops being hit on every ranking run
type BreakerStore struct {
	store   domain.AuditStore
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// NewBreakerStore wraps store with a circuit breaker
func NewBreakerStore(store domain.AuditStore, config BreakerConfig, logger *logrus.Logger) *BreakerStore {
	if logger == nil {
		logger = logrus.New()
	}
	if config.MaxRequests == 0 {
		config.MaxRequests = 3
	}
	if config.Interval == 0 {
		config.Interval = 10 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}

	settings := gobreaker.Settings{
		Name:        "AuditStore",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &BreakerStore{
		store:   store,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// State returns the current breaker state
func (b *BreakerStore) State() gobreaker.State {
	return b.breaker.State()
}

// Save records a run through the breaker
func (b *BreakerStore) Save(ctx context.Context, record *domain.AuditRecord) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.store.Save(ctx, record)
	})
	if err != nil {
		return fmt.Errorf("audit save: %w", err)
	}
	return nil
}

// Get reads a run through the breaker. A missing run does not count as a
// store failure.
func (b *BreakerStore) Get(ctx context.Context, runID string) (*domain.AuditRecord, error) {
	var notFound error
	result, err := b.breaker.Execute(func() (interface{}, error) {
		rec, err := b.store.Get(ctx, runID)
		if err != nil && isNotFound(err) {
			notFound = err
			return nil, nil
		}
		return rec, err
	})
	if notFound != nil {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("audit get: %w", err)
	}
	return result.(*domain.AuditRecord), nil
}

// List reads runs through the breaker
func (b *BreakerStore) List(ctx context.Context, limit, offset int) ([]*domain.AuditRecord, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.store.List(ctx, limit, offset)
	})
	if err != nil {
		return nil, fmt.Errorf("audit list: %w", err)
	}
	return result.([]*domain.AuditRecord), nil
}

// Count counts runs through the breaker
func (b *BreakerStore) Count(ctx context.Context) (int64, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.store.Count(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("audit count: %w", err)
	}
	return result.(int64), nil
}

// Close closes the wrapped store
func (b *BreakerStore) Close() error {
	return b.store.Close()
}
