package domain

import "errors"

var (
	// ErrDatasetUnavailable is returned when a search or detail lookup is
	// attempted before the gold dataset has been loaded successfully
	ErrDatasetUnavailable = errors.New("food search dataset is not loaded")

	// ErrSourceNotFound is returned when the builder's source directory is
	// missing or contains no usable input files
	ErrSourceNotFound = errors.New("no source data found")

	// ErrEmptyFoodCore is returned by the gold stage when the silver food
	// core table produced zero rows
	ErrEmptyFoodCore = errors.New("silver food core table is empty")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)
