package gold

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pkang0831/fromFatToFit/internal/domain"
	"github.com/pkang0831/fromFatToFit/internal/infrastructure/duckdb"
)

// Loader reads the gold food_search Parquet file into an immutable
// domain.Dataset exactly once. The first caller to Ensure pays the load
// cost; every later caller gets the same pointer. A failed load is not
// cached, so a missing artifact can be fixed and retried without a restart.
type Loader struct {
	path string

	mu      sync.Mutex
	dataset atomic.Pointer[domain.Dataset]
}

// NewLoader returns a loader for the gold Parquet file at path. Nothing is
// read until Ensure or Preload is called.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Ensure returns the loaded dataset, loading it on first call. Concurrent
// callers during the initial load block until it completes and then share
// the single result.
func (l *Loader) Ensure(ctx context.Context) (*domain.Dataset, error) {
	if ds := l.dataset.Load(); ds != nil {
		return ds, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if ds := l.dataset.Load(); ds != nil {
		return ds, nil
	}

	ds, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	l.dataset.Store(ds)
	return ds, nil
}

// Preload warms the dataset at startup. A failure is logged and swallowed;
// the dataset may become available later (e.g. after the medallion build
// finishes) and request paths will retry through Ensure.
func (l *Loader) Preload(ctx context.Context) {
	if _, err := os.Stat(l.path); err != nil {
		log.Printf("[DATASET] Gold file not found at %s; search disabled until it appears", l.path)
		return
	}
	if _, err := l.Ensure(ctx); err != nil {
		log.Printf("[DATASET] Preload failed: %v", err)
	}
}

func (l *Loader) load(ctx context.Context) (*domain.Dataset, error) {
	if _, err := os.Stat(l.path); err != nil {
		return nil, fmt.Errorf("%w: gold file %s", domain.ErrDatasetUnavailable, l.path)
	}

	start := time.Now()
	db, err := duckdb.Open(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDatasetUnavailable, err)
	}
	defer db.Close()

	rows, err := db.Query(ctx, fmt.Sprintf(
		"SELECT * FROM read_parquet('%s')", duckdb.QuotePath(l.path)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDatasetUnavailable, err)
	}
	defer rows.Close()

	// Column set varies between the full medallion output and sample
	// datasets that already carry basis and per-gram columns, so rows are
	// scanned generically and mapped by column name.
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDatasetUnavailable, err)
	}

	var records []domain.SearchRecord
	values := make([]any, len(cols))
	scan := make([]any, len(cols))
	for i := range values {
		scan[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrDatasetUnavailable, err)
		}
		rec := domain.SearchRecord{}
		for i, col := range cols {
			assignColumn(&rec, col, values[i])
		}
		Normalize(&rec)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDatasetUnavailable, err)
	}

	ds := domain.BuildDataset(records)
	log.Printf("[DATASET] Loaded %s food records from %s in %.1fs",
		humanize.Comma(int64(ds.Len())), l.path, time.Since(start).Seconds())
	return ds, nil
}

func assignColumn(rec *domain.SearchRecord, col string, v any) {
	switch col {
	case "fdc_id":
		rec.FdcID = asInt64(v)
	case "description":
		rec.Description = asString(v)
	case "brand_owner":
		rec.BrandOwner = asString(v)
	case "category_description":
		rec.CategoryDescription = asString(v)
	case "serving_size":
		if f := asFloat(v); f != nil {
			rec.ServingSize = *f
		}
	case "serving_size_unit":
		rec.ServingSizeUnit = asString(v)
	case "kcal":
		rec.Kcal = asFloat(v)
	case "protein_g":
		rec.ProteinG = asFloat(v)
	case "fat_g":
		rec.FatG = asFloat(v)
	case "carb_g":
		rec.CarbG = asFloat(v)
	case "publication_date":
		rec.PublicationDate = asString(v)
	case "data_type":
		rec.DataType = asString(v)
	case "gtin_upc":
		rec.GtinUPC = asString(v)
	case "ingredients":
		rec.Ingredients = asString(v)
	case "household_serving_fulltext":
		rec.HouseholdServing = asString(v)
	case "branded_food_category":
		rec.BrandedFoodCategory = asString(v)
	case "basis":
		rec.Basis = asString(v)
	case "kcal_per_g":
		rec.KcalPerG = asFloat(v)
	case "protein_per_g":
		rec.ProteinPerG = asFloat(v)
	case "fat_per_g":
		rec.FatPerG = asFloat(v)
	case "carb_per_g":
		rec.CarbPerG = asFloat(v)
	}
}

// Normalize fills serving defaults, resolves the storage basis, derives
// per-gram coefficients for mass-basis records and computes the lowercased
// search fields. It is idempotent and safe to call on records that already
// carry basis or per-gram columns.
func Normalize(rec *domain.SearchRecord) {
	if rec.ServingSize <= 0 {
		rec.ServingSize = 100.0
	}

	if rec.Basis == "" {
		switch domain.Lower(rec.ServingSizeUnit) {
		case "ml", "l", "milliliter", "milliliters", "fl oz":
			rec.Basis = domain.BasisPer100ML
		default:
			rec.Basis = domain.BasisPer100G
		}
	}
	if rec.ServingSizeUnit == "" {
		if rec.Basis == domain.BasisPer100ML {
			rec.ServingSizeUnit = "ml"
		} else {
			rec.ServingSizeUnit = "g"
		}
	}

	rec.Kcal = domain.Finite(rec.Kcal)
	rec.ProteinG = domain.Finite(rec.ProteinG)
	rec.FatG = domain.Finite(rec.FatG)
	rec.CarbG = domain.Finite(rec.CarbG)
	rec.KcalPerG = domain.Finite(rec.KcalPerG)
	rec.ProteinPerG = domain.Finite(rec.ProteinPerG)
	rec.FatPerG = domain.Finite(rec.FatPerG)
	rec.CarbPerG = domain.Finite(rec.CarbPerG)

	// Per-gram coefficients only make sense on a mass basis. Per-100ml
	// records keep nil coefficients rather than pretending 1 ml weighs 1 g.
	if rec.Basis == domain.BasisPer100G {
		if rec.KcalPerG == nil {
			rec.KcalPerG = perGram(rec.Kcal)
		}
		if rec.ProteinPerG == nil {
			rec.ProteinPerG = perGram(rec.ProteinG)
		}
		if rec.FatPerG == nil {
			rec.FatPerG = perGram(rec.FatG)
		}
		if rec.CarbPerG == nil {
			rec.CarbPerG = perGram(rec.CarbG)
		}
	} else {
		rec.KcalPerG = nil
		rec.ProteinPerG = nil
		rec.FatPerG = nil
		rec.CarbPerG = nil
	}

	rec.DescriptionLower = domain.Lower(rec.Description)
	rec.BrandLower = domain.Lower(rec.BrandOwner)
	rec.CategoryLower = domain.Lower(rec.CategoryDescription)
}

func perGram(per100 *float64) *float64 {
	if per100 == nil {
		return nil
	}
	v := *per100 / 100.0
	return domain.Finite(&v)
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asFloat(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case int:
		f = float64(t)
	default:
		return nil
	}
	return domain.Finite(&f)
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}
