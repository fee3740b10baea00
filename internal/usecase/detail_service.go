package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pkang0831/fromFatToFit/internal/domain"
)

// DetailService assembles the full nutrition detail for a single food,
// caching assembled responses to avoid repeated fact-table lookups.
type DetailService struct {
	datasets  domain.DatasetProvider
	nutrients domain.NutrientRepository
	cache     domain.CacheRepository
	cacheTTL  time.Duration
}

// NewDetailService creates a detail service with the given cache TTL.
func NewDetailService(
	datasets domain.DatasetProvider,
	nutrients domain.NutrientRepository,
	cache domain.CacheRepository,
	cacheTTL time.Duration,
) *DetailService {
	return &DetailService{
		datasets:  datasets,
		nutrients: nutrients,
		cache:     cache,
		cacheTTL:  cacheTTL,
	}
}

// GetDetail returns the nutrition detail for the given food, or (nil, nil)
// when the id is unknown. A stale client-side id is an expected case, not an
// error. When includeMicros is false the fact-table lookup is skipped.
func (s *DetailService) GetDetail(ctx context.Context, fdcID int64, includeMicros bool) (*domain.FoodDetail, error) {
	cacheKey := fmt.Sprintf("food-detail:%d:%t", fdcID, includeMicros)
	if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
		if detail, ok := cached.(*domain.FoodDetail); ok {
			return detail, nil
		}
	}

	ds, err := s.datasets.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	rec, ok := ds.ByID(fdcID)
	if !ok {
		return nil, nil
	}

	detail := buildDetail(rec)

	if includeMicros {
		panels, err := micronutrientPanels(ctx, s.nutrients, []int64{fdcID})
		if err != nil {
			return nil, err
		}
		detail.Micronutrients = panels[fdcID]
	}

	if err := s.cache.Set(ctx, cacheKey, detail, s.cacheTTL); err != nil {
		log.Printf("[DETAIL] Failed to cache detail for %d: %v", fdcID, err)
	}
	return detail, nil
}

// buildDetail projects a search record into the detail response shape. The
// unit category comes from the stored basis, never from the description.
func buildDetail(rec *domain.SearchRecord) *domain.FoodDetail {
	unit := "g"
	if rec.Basis == domain.BasisPer100ML {
		unit = "ml"
	}

	detail := &domain.FoodDetail{
		FdcID:           rec.FdcID,
		Description:     rec.Description,
		BrandOwner:      rec.BrandOwner,
		DataType:        rec.DataType,
		GtinUPC:         rec.GtinUPC,
		ServingSize:     rec.ServingSize,
		ServingSizeUnit: rec.ServingSizeUnit,
		Ingredients:     rec.Ingredients,
		Kcal:            domain.Finite(rec.Kcal),
		ProteinG:        domain.Finite(rec.ProteinG),
		FatG:            domain.Finite(rec.FatG),
		CarbG:           domain.Finite(rec.CarbG),
		UnitCategory:    domain.UnitCategoryForBasis(rec.Basis),
		Per100: domain.PerHundred{
			Unit:     unit,
			Amount:   100,
			Calories: domain.Finite(rec.Kcal),
			Protein:  domain.Finite(rec.ProteinG),
			Carbs:    domain.Finite(rec.CarbG),
			Fat:      domain.Finite(rec.FatG),
		},
	}

	if rec.KcalPerG != nil || rec.ProteinPerG != nil || rec.FatPerG != nil || rec.CarbPerG != nil {
		detail.PerGram = &domain.PerGram{
			Kcal:    domain.Finite(rec.KcalPerG),
			Protein: domain.Finite(rec.ProteinPerG),
			Fat:     domain.Finite(rec.FatPerG),
			Carb:    domain.Finite(rec.CarbPerG),
		}
	}
	return detail
}

// micronutrientPanels builds the panel for each of the given foods: every
// nutrient in the catalog is prefilled with a zero amount and the food's
// measured values are overlaid, so the panel has a stable key set across
// foods. Catalog names are matched lowercased. An empty catalog (no fact
// table deployed) yields no panels.
func micronutrientPanels(ctx context.Context, nutrients domain.NutrientRepository, fdcIDs []int64) (map[int64]map[string]domain.MicronutrientEntry, error) {
	catalog, err := nutrients.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	if len(catalog) == 0 {
		return nil, nil
	}

	amounts, err := nutrients.AmountsByFood(ctx, fdcIDs)
	if err != nil {
		return nil, err
	}

	panels := make(map[int64]map[string]domain.MicronutrientEntry, len(fdcIDs))
	for _, fdcID := range fdcIDs {
		panel := make(map[string]domain.MicronutrientEntry, len(catalog))
		for _, ref := range catalog {
			panel[domain.Lower(ref.Name)] = domain.MicronutrientEntry{
				Amount: 0,
				Unit:   ref.Unit,
				Label:  ref.Name,
			}
		}
		for _, a := range amounts[fdcID] {
			key := domain.Lower(a.Name)
			entry, ok := panel[key]
			if !ok {
				entry = domain.MicronutrientEntry{Label: a.Name}
			}
			entry.Amount = a.Amount
			if entry.Unit == "" {
				entry.Unit = a.Unit
			}
			panel[key] = entry
		}
		panels[fdcID] = panel
	}
	return panels, nil
}
