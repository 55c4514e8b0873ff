package flags

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tylerearls/folio/pkg/domain"
	"github.com/tylerearls/folio/pkg/repository"
)

// StoreKey is the key holding the whole flag set as JSON text
const StoreKey = "feature_flags"

// Store is the key-value storage for the flag set
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
}

// Service loads and saves the flag set
type Service struct {
	store Store
}

// NewService makes a flag service on top of the store
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Load reads the flag set. Missing key gives defaults, malformed data is an error.
func (s *Service) Load(ctx context.Context) (domain.FeatureFlagSet, error) {
	val, err := s.store.Get(ctx, StoreKey)
	if errors.Is(err, repository.ErrNotFound) {
		return Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}
	set, err := Parse([]byte(val))
	if err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}
	return set, nil
}

// Save replaces the stored flag set
func (s *Service) Save(ctx context.Context, set domain.FeatureFlagSet) error {
	if err := Validate(set); err != nil {
		return err
	}
	data, err := Marshal(set)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, StoreKey, string(data), 0); err != nil {
		return fmt.Errorf("save flags: %w", err)
	}
	return nil
}
