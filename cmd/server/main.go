package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/pkang0831/fromFatToFit/config"
	httpDelivery "github.com/pkang0831/fromFatToFit/internal/delivery/http"
	"github.com/pkang0831/fromFatToFit/internal/infrastructure/cache"
	"github.com/pkang0831/fromFatToFit/internal/infrastructure/gold"
	"github.com/pkang0831/fromFatToFit/internal/infrastructure/nutrient"
	"github.com/pkang0831/fromFatToFit/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting fromFatToFit Backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)
	log.Printf("Gold dataset: %s", cfg.Dataset.GoldPath)
	log.Printf("Detail cache TTL: %s", cfg.Dataset.DetailCacheTTL)

	// Initialize infrastructure dependencies
	memoryCache := cache.NewMemoryCache()
	loader := gold.NewLoader(cfg.Dataset.GoldPath)
	nutrients := nutrient.NewFactRepository(cfg.Dataset.NutrientFactPath)
	defer nutrients.Close()

	// Warm the dataset in the background so the first search request does
	// not pay the load cost. Requests arriving before the load completes
	// block on the same load inside the loader.
	go loader.Preload(context.Background())

	// Initialize usecase layer
	searchService := usecase.NewSearchService(loader, nutrients)
	detailService := usecase.NewDetailService(loader, nutrients, memoryCache, cfg.Dataset.DetailCacheTTL)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(searchService, detailService, cfg)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
