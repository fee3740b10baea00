package medallion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pkang0831/fromFatToFit/internal/domain"
	"github.com/pkang0831/fromFatToFit/internal/infrastructure/duckdb"
)

// writeSilverFixtures materializes minimal silver-shaped parquet files so the
// gold stage can run against a controlled dataset.
func writeSilverFixtures(t *testing.T, db *duckdb.DB, silverDir string, coreRows, nutrientRows string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(silverDir, 0o755))

	core := fmt.Sprintf(`
		COPY (
		  SELECT
		    fdc_id,
		    description,
		    data_type,
		    publication_date,
		    struct_pack(id := CAST(1 AS BIGINT), description := category_name) AS category,
		    struct_pack(
		      brand_owner := brand_owner,
		      gtin_upc := CAST(NULL AS VARCHAR),
		      ingredients := CAST(NULL AS VARCHAR),
		      serving_size := serving_size,
		      serving_size_unit := serving_size_unit,
		      household_serving_fulltext := CAST(NULL AS VARCHAR),
		      branded_food_category := CAST(NULL AS VARCHAR)
		    ) AS branded_detail
		  FROM (%s)
		) TO '%s' (FORMAT PARQUET);`,
		coreRows, duckdb.QuotePath(filepath.Join(silverDir, "food_core.parquet")))
	require.NoError(t, db.Exec(ctx, core))

	nutrients := fmt.Sprintf(`
		COPY (SELECT * FROM (%s)) TO '%s' (FORMAT PARQUET);`,
		nutrientRows, duckdb.QuotePath(filepath.Join(silverDir, "food_nutrients.parquet")))
	require.NoError(t, db.Exec(ctx, nutrients))
}

type goldRow struct {
	FdcID       int64
	Description string
	Kcal        *float64
}

func readGoldRows(t *testing.T, db *duckdb.DB, goldDir string) map[int64]goldRow {
	t.Helper()

	rows, err := db.Query(context.Background(), fmt.Sprintf(
		"SELECT fdc_id, description, kcal FROM read_parquet('%s') ORDER BY fdc_id",
		duckdb.QuotePath(filepath.Join(goldDir, "food_search.parquet"))))
	require.NoError(t, err)
	defer rows.Close()

	out := make(map[int64]goldRow)
	for rows.Next() {
		var r goldRow
		require.NoError(t, rows.Scan(&r.FdcID, &r.Description, &r.Kcal))
		out[r.FdcID] = r
	}
	require.NoError(t, rows.Err())
	return out
}

func TestStageGold_AtwaterFallback(t *testing.T) {
	ctx := context.Background()
	db, err := duckdb.Open(ctx, "")
	require.NoError(t, err)
	defer db.Close()

	dir := t.TempDir()
	silverDir := filepath.Join(dir, "silver")
	goldDir := filepath.Join(dir, "gold")

	writeSilverFixtures(t, db, silverDir, `
		SELECT CAST(1 AS BIGINT) AS fdc_id, 'No Energy Food' AS description,
		       'branded_food' AS data_type, '2024-01-01' AS publication_date,
		       'Snacks' AS category_name, 'Acme' AS brand_owner,
		       CAST(100 AS DOUBLE) AS serving_size, 'g' AS serving_size_unit
		UNION ALL
		SELECT 2, 'Direct Energy Food', 'branded_food', '2024-01-01',
		       'Snacks', 'Acme', 100, 'g'`, `
		SELECT CAST(1 AS BIGINT) AS fdc_id, CAST(1003 AS BIGINT) AS nutrient_id, CAST(10 AS DOUBLE) AS amount
		UNION ALL SELECT 1, 1004, 5
		UNION ALL SELECT 1, 1005, 20
		UNION ALL SELECT 2, 1008, 200
		UNION ALL SELECT 2, 1003, 10
		UNION ALL SELECT 2, 1004, 5
		UNION ALL SELECT 2, 1005, 20`)

	require.NoError(t, StageGold(ctx, db, silverDir, goldDir, false))
	got := readGoldRows(t, db, goldDir)

	t.Run("derives kcal via Atwater when Energy is absent", func(t *testing.T) {
		row, ok := got[1]
		require.True(t, ok)
		require.NotNil(t, row.Kcal)
		// 4*10 + 9*5 + 4*20
		require.InDelta(t, 165.0, *row.Kcal, 1e-9)
	})

	t.Run("keeps the direct Energy measurement when present", func(t *testing.T) {
		row, ok := got[2]
		require.True(t, ok)
		require.NotNil(t, row.Kcal)
		require.InDelta(t, 200.0, *row.Kcal, 1e-9)
	})
}

func TestStageGold_Deduplication(t *testing.T) {
	ctx := context.Background()
	db, err := duckdb.Open(ctx, "")
	require.NoError(t, err)
	defer db.Close()

	dir := t.TempDir()
	silverDir := filepath.Join(dir, "silver")
	goldDir := filepath.Join(dir, "gold")

	// 10 and 11 differ only in case and publication date; 20 and 21 are
	// exact ties on the dedup key and publication date.
	writeSilverFixtures(t, db, silverDir, `
		SELECT CAST(10 AS BIGINT) AS fdc_id, 'Peanut Butter' AS description,
		       'branded_food' AS data_type, '2023-01-01' AS publication_date,
		       'Spreads' AS category_name, 'NutCo' AS brand_owner,
		       CAST(32 AS DOUBLE) AS serving_size, 'g' AS serving_size_unit
		UNION ALL
		SELECT 11, 'PEANUT BUTTER', 'branded_food', '2024-06-01', 'Spreads', 'NutCo', 32, 'g'
		UNION ALL
		SELECT 20, 'Almond Milk', 'branded_food', '2024-01-01', 'Beverages', 'NutCo', 240, 'ml'
		UNION ALL
		SELECT 21, 'Almond Milk', 'branded_food', '2024-01-01', 'Beverages', 'NutCo', 240, 'ml'`, `
		SELECT CAST(10 AS BIGINT) AS fdc_id, CAST(1008 AS BIGINT) AS nutrient_id, CAST(588 AS DOUBLE) AS amount`)

	require.NoError(t, StageGold(ctx, db, silverDir, goldDir, false))
	got := readGoldRows(t, db, goldDir)

	t.Run("later publication date wins", func(t *testing.T) {
		_, older := got[10]
		_, newer := got[11]
		require.False(t, older, "older revision should have been deduplicated away")
		require.True(t, newer, "newest revision must survive")
	})

	t.Run("higher fdc_id wins an exact tie", func(t *testing.T) {
		_, lower := got[20]
		_, higher := got[21]
		require.False(t, lower)
		require.True(t, higher)
	})
}

func TestStageGold_EmptyCoreIsFatal(t *testing.T) {
	ctx := context.Background()
	db, err := duckdb.Open(ctx, "")
	require.NoError(t, err)
	defer db.Close()

	dir := t.TempDir()
	silverDir := filepath.Join(dir, "silver")
	goldDir := filepath.Join(dir, "gold")

	writeSilverFixtures(t, db, silverDir, `
		SELECT CAST(1 AS BIGINT) AS fdc_id, 'x' AS description,
		       'y' AS data_type, '2024-01-01' AS publication_date,
		       'z' AS category_name, 'b' AS brand_owner,
		       CAST(1 AS DOUBLE) AS serving_size, 'g' AS serving_size_unit
		WHERE 1 = 0`, `
		SELECT CAST(1 AS BIGINT) AS fdc_id, CAST(1008 AS BIGINT) AS nutrient_id, CAST(1 AS DOUBLE) AS amount
		WHERE 1 = 0`)

	err = StageGold(ctx, db, silverDir, goldDir, false)
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrEmptyFoodCore), "got %v", err)
}

func TestStageGold_SkipsExistingOutput(t *testing.T) {
	ctx := context.Background()
	db, err := duckdb.Open(ctx, "")
	require.NoError(t, err)
	defer db.Close()

	dir := t.TempDir()
	goldDir := filepath.Join(dir, "gold")
	require.NoError(t, os.MkdirAll(goldDir, 0o755))

	// Pre-existing artifact short-circuits the stage before inputs are read,
	// so a missing silver directory must not matter.
	goldPath := filepath.Join(goldDir, "food_search.parquet")
	require.NoError(t, os.WriteFile(goldPath, []byte("placeholder"), 0o644))

	require.NoError(t, StageGold(ctx, db, filepath.Join(dir, "missing-silver"), goldDir, false))

	content, err := os.ReadFile(goldPath)
	require.NoError(t, err)
	require.Equal(t, "placeholder", string(content))
}
