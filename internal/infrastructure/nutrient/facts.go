package nutrient

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/pkang0831/fromFatToFit/internal/domain"
	"github.com/pkang0831/fromFatToFit/internal/infrastructure/duckdb"
)

// FactRepository answers micronutrient queries against the silver
// food_nutrients Parquet file through an in-memory DuckDB view. The file is
// optional; deployments running on the sample dataset construct the
// repository with an empty path and get empty results.
type FactRepository struct {
	path string

	mu      sync.Mutex
	db      *duckdb.DB
	catalog []domain.NutrientRef
}

// NewFactRepository returns a repository over the silver nutrient fact file.
// An empty or missing path yields a repository that reports no nutrients.
func NewFactRepository(path string) *FactRepository {
	return &FactRepository{path: path}
}

// Close releases the underlying DuckDB connection if one was opened.
func (r *FactRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db != nil {
		err := r.db.Close()
		r.db = nil
		return err
	}
	return nil
}

// ensureView opens the in-memory database and registers the fact view on
// first use. Returns (nil, nil) when no fact file is available.
func (r *FactRepository) ensureView(ctx context.Context) (*duckdb.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	if r.path == "" {
		return nil, nil
	}
	if _, err := os.Stat(r.path); err != nil {
		log.Printf("[NUTRIENT] Fact file not found at %s; micronutrient panels disabled", r.path)
		r.path = ""
		return nil, nil
	}

	db, err := duckdb.Open(ctx, "")
	if err != nil {
		return nil, err
	}
	view := fmt.Sprintf(`
		CREATE OR REPLACE VIEW fact_food_nutrient AS
		SELECT
		  fdc_id,
		  nutrient_info.name AS nutrient_name,
		  nutrient_info.unit_name AS unit_name,
		  amount
		FROM read_parquet('%s')
		WHERE amount IS NOT NULL
		  AND nutrient_info.name IS NOT NULL;`, duckdb.QuotePath(r.path))
	if err := db.Exec(ctx, view); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("registering nutrient fact view: %w", err)
	}
	r.db = db
	return r.db, nil
}

// Catalog returns the distinct nutrient names and units, ordered by name.
// The result is computed once and cached for the life of the repository.
func (r *FactRepository) Catalog(ctx context.Context) ([]domain.NutrientRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.catalog != nil {
		return r.catalog, nil
	}
	db, err := r.ensureView(ctx)
	if err != nil {
		return nil, err
	}
	if db == nil {
		r.catalog = []domain.NutrientRef{}
		return r.catalog, nil
	}

	rows, err := db.Query(ctx, `
		SELECT DISTINCT nutrient_name, COALESCE(unit_name, '') AS unit_name
		FROM fact_food_nutrient
		ORDER BY nutrient_name;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []domain.NutrientRef
	for rows.Next() {
		var ref domain.NutrientRef
		if err := rows.Scan(&ref.Name, &ref.Unit); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if refs == nil {
		refs = []domain.NutrientRef{}
	}
	r.catalog = refs
	return r.catalog, nil
}

// AmountsByFood returns the measured nutrient amounts for the given foods,
// keyed by fdc_id. Foods with no measurements are absent from the map.
func (r *FactRepository) AmountsByFood(ctx context.Context, fdcIDs []int64) (map[int64][]domain.NutrientAmount, error) {
	out := make(map[int64][]domain.NutrientAmount, len(fdcIDs))
	if len(fdcIDs) == 0 {
		return out, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	db, err := r.ensureView(ctx)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return out, nil
	}

	placeholders := make([]string, len(fdcIDs))
	args := make([]any, len(fdcIDs))
	for i, id := range fdcIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`
		SELECT fdc_id, nutrient_name, COALESCE(unit_name, ''), amount
		FROM fact_food_nutrient
		WHERE fdc_id IN (%s);`, strings.Join(placeholders, ", "))

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var fdcID int64
		var amt domain.NutrientAmount
		if err := rows.Scan(&fdcID, &amt.Name, &amt.Unit, &amt.Amount); err != nil {
			return nil, err
		}
		out[fdcID] = append(out[fdcID], amt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
