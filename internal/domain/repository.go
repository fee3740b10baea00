package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// DatasetProvider hands out the loaded search dataset. Ensure performs the
// one-time load on first call and returns the same immutable dataset to
// every subsequent caller.
type DatasetProvider interface {
	Ensure(ctx context.Context) (*Dataset, error)
}

// NutrientRepository reads the silver nutrient fact table for micronutrient
// panels. Implementations may not be available in every deployment (the
// sample dataset has no fact table), in which case services skip the panel.
type NutrientRepository interface {
	// Catalog returns the distinct nutrient names and units, ordered by name.
	Catalog(ctx context.Context) ([]NutrientRef, error)
	// AmountsByFood returns the measured amounts for the given foods.
	AmountsByFood(ctx context.Context, fdcIDs []int64) (map[int64][]NutrientAmount, error)
}
