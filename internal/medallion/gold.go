package medallion

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/pkang0831/fromFatToFit/internal/domain"
	"github.com/pkang0831/fromFatToFit/internal/infrastructure/duckdb"
)

// StageGold flattens silver food_core and food_nutrients into the single
// search table the runtime loads. Macro columns come from per-100 nutrient
// measurements keyed by nutrient id; energy falls back to the Atwater
// formula (4/9/4) only when no direct Energy measurement exists. Duplicate
// listings of the same product are collapsed to the most recent publication.
func StageGold(ctx context.Context, db *duckdb.DB, silverDir, goldDir string, rebuild bool) error {
	log.Printf("[GOLD] Building deduplicated search table")

	goldPath := filepath.Join(goldDir, "food_search.parquet")
	if _, err := os.Stat(goldPath); err == nil && !rebuild {
		log.Printf("[GOLD] %s already present; skipping (use --rebuild to regenerate)", goldPath)
		return nil
	}
	if err := ensureDir(goldDir, rebuild); err != nil {
		return err
	}

	corePath := filepath.Join(silverDir, "food_core.parquet")
	nutrientPath := filepath.Join(silverDir, "food_nutrients.parquet")
	if err := requireFiles(corePath, nutrientPath); err != nil {
		return err
	}

	coreRows, err := db.Count(ctx, fmt.Sprintf("read_parquet('%s')", duckdb.QuotePath(corePath)))
	if err != nil {
		return err
	}
	if coreRows == 0 {
		return fmt.Errorf("%w: %s", domain.ErrEmptyFoodCore, corePath)
	}

	query := fmt.Sprintf(`
	CREATE OR REPLACE TABLE gold_food_search AS
	WITH catalog AS (
	  SELECT * FROM read_parquet('%s')
	),
	nutrients_base AS (
	  SELECT
	    fdc_id,
	    SUM(CASE WHEN nutrient_id = 1008 THEN amount END) AS kcal_raw,
	    SUM(CASE WHEN nutrient_id = 1003 THEN amount END) AS protein_g,
	    SUM(CASE WHEN nutrient_id = 1004 THEN amount END) AS fat_g,
	    SUM(CASE WHEN nutrient_id = 1005 THEN amount END) AS carb_g
	  FROM read_parquet('%s')
	  GROUP BY fdc_id
	),
	nutrients AS (
	  SELECT
	    fdc_id,
	    protein_g,
	    fat_g,
	    carb_g,
	    CASE
	      WHEN kcal_raw IS NOT NULL THEN kcal_raw
	      WHEN protein_g IS NOT NULL OR fat_g IS NOT NULL OR carb_g IS NOT NULL THEN
	        (4 * COALESCE(protein_g, 0)) + (9 * COALESCE(fat_g, 0)) + (4 * COALESCE(carb_g, 0))
	      ELSE NULL
	    END AS kcal
	  FROM nutrients_base
	),
	flattened AS (
	  SELECT
	    c.fdc_id,
	    c.description,
	    c.data_type,
	    c.publication_date,
	    c.category.description AS category_description,
	    c.branded_detail.brand_owner AS brand_owner,
	    c.branded_detail.gtin_upc AS gtin_upc,
	    c.branded_detail.ingredients AS ingredients,
	    c.branded_detail.serving_size AS serving_size,
	    c.branded_detail.serving_size_unit AS serving_size_unit,
	    c.branded_detail.household_serving_fulltext AS household_serving_fulltext,
	    c.branded_detail.branded_food_category AS branded_food_category,
	    nutrients.kcal,
	    nutrients.protein_g,
	    nutrients.fat_g,
	    nutrients.carb_g
	  FROM catalog c
	  LEFT JOIN nutrients ON nutrients.fdc_id = c.fdc_id
	),
	ranked AS (
	  SELECT
	    flattened.*,
	    ROW_NUMBER() OVER (
	      PARTITION BY
	        LOWER(COALESCE(flattened.description, '')),
	        LOWER(COALESCE(flattened.brand_owner, '')),
	        COALESCE(flattened.serving_size, -1),
	        COALESCE(flattened.serving_size_unit, '')
	      ORDER BY
	        flattened.publication_date DESC NULLS LAST,
	        flattened.fdc_id DESC
	    ) AS rn
	  FROM flattened
	)
	SELECT
	  fdc_id,
	  description,
	  brand_owner,
	  category_description,
	  serving_size,
	  serving_size_unit,
	  kcal,
	  protein_g,
	  fat_g,
	  carb_g,
	  publication_date,
	  data_type,
	  gtin_upc,
	  ingredients,
	  household_serving_fulltext,
	  branded_food_category
	FROM ranked
	WHERE rn = 1;`,
		duckdb.QuotePath(corePath), duckdb.QuotePath(nutrientPath))

	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("building gold_food_search: %w", err)
	}

	rows, err := db.Count(ctx, "gold_food_search")
	if err != nil {
		return err
	}
	log.Printf("[GOLD] gold_food_search: %s rows after deduplication", humanize.Comma(rows))

	export := fmt.Sprintf(
		"COPY gold_food_search TO '%s' (FORMAT PARQUET, COMPRESSION ZSTD);",
		duckdb.QuotePath(goldPath))
	if err := db.Exec(ctx, export); err != nil {
		return fmt.Errorf("exporting gold table: %w", err)
	}
	log.Printf("[GOLD] Search table saved to %s", goldPath)
	return nil
}
