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

func TestStageBronze_ConvertsCSVs(t *testing.T) {
	ctx := context.Background()
	db, err := duckdb.Open(ctx, "")
	require.NoError(t, err)
	defer db.Close()

	dir := t.TempDir()
	sourceDir := filepath.Join(dir, "source")
	bronzeDir := filepath.Join(dir, "bronze")
	require.NoError(t, os.MkdirAll(sourceDir, 0o755))

	csv := "fdc_id,description\n1,Chicken Breast\n2,Brown Rice\n"
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "food.csv"), []byte(csv), 0o644))

	require.NoError(t, StageBronze(ctx, db, sourceDir, bronzeDir, false))

	parquet := filepath.Join(bronzeDir, "food.parquet")
	rows, err := db.Count(ctx, fmt.Sprintf("read_parquet('%s')", duckdb.QuotePath(parquet)))
	require.NoError(t, err)
	require.Equal(t, int64(2), rows)
}

func TestStageBronze_IdempotentSecondRun(t *testing.T) {
	ctx := context.Background()
	db, err := duckdb.Open(ctx, "")
	require.NoError(t, err)
	defer db.Close()

	dir := t.TempDir()
	sourceDir := filepath.Join(dir, "source")
	bronzeDir := filepath.Join(dir, "bronze")
	require.NoError(t, os.MkdirAll(sourceDir, 0o755))

	csv := "fdc_id,description\n1,Chicken Breast\n"
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "food.csv"), []byte(csv), 0o644))

	require.NoError(t, StageBronze(ctx, db, sourceDir, bronzeDir, false))

	parquet := filepath.Join(bronzeDir, "food.parquet")
	before, err := os.Stat(parquet)
	require.NoError(t, err)

	// Second run without rebuild must skip the existing file untouched.
	require.NoError(t, StageBronze(ctx, db, sourceDir, bronzeDir, false))
	after, err := os.Stat(parquet)
	require.NoError(t, err)

	require.Equal(t, before.ModTime(), after.ModTime(), "existing output was rewritten")
	require.Equal(t, before.Size(), after.Size())
}

func TestStageBronze_RebuildRegenerates(t *testing.T) {
	ctx := context.Background()
	db, err := duckdb.Open(ctx, "")
	require.NoError(t, err)
	defer db.Close()

	dir := t.TempDir()
	sourceDir := filepath.Join(dir, "source")
	bronzeDir := filepath.Join(dir, "bronze")
	require.NoError(t, os.MkdirAll(sourceDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "food.csv"),
		[]byte("fdc_id,description\n1,Chicken Breast\n"), 0o644))
	require.NoError(t, StageBronze(ctx, db, sourceDir, bronzeDir, false))

	// Source grows a row; a rebuild run must pick it up.
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "food.csv"),
		[]byte("fdc_id,description\n1,Chicken Breast\n2,Brown Rice\n"), 0o644))
	require.NoError(t, StageBronze(ctx, db, sourceDir, bronzeDir, true))

	rows, err := db.Count(ctx, fmt.Sprintf("read_parquet('%s')",
		duckdb.QuotePath(filepath.Join(bronzeDir, "food.parquet"))))
	require.NoError(t, err)
	require.Equal(t, int64(2), rows)
}

func TestStageBronze_ParquetPassthrough(t *testing.T) {
	ctx := context.Background()
	db, err := duckdb.Open(ctx, "")
	require.NoError(t, err)
	defer db.Close()

	dir := t.TempDir()
	sourceDir := filepath.Join(dir, "source")
	bronzeDir := filepath.Join(dir, "bronze")
	require.NoError(t, os.MkdirAll(sourceDir, 0o755))

	src := filepath.Join(sourceDir, "food.parquet")
	require.NoError(t, db.Exec(ctx, fmt.Sprintf(
		"COPY (SELECT CAST(1 AS BIGINT) AS fdc_id, 'Chicken Breast' AS description) TO '%s' (FORMAT PARQUET);",
		duckdb.QuotePath(src))))

	require.NoError(t, StageBronze(ctx, db, sourceDir, bronzeDir, false))

	rows, err := db.Count(ctx, fmt.Sprintf("read_parquet('%s')",
		duckdb.QuotePath(filepath.Join(bronzeDir, "food.parquet"))))
	require.NoError(t, err)
	require.Equal(t, int64(1), rows)
}

func TestStageBronze_MissingSource(t *testing.T) {
	ctx := context.Background()
	db, err := duckdb.Open(ctx, "")
	require.NoError(t, err)
	defer db.Close()

	dir := t.TempDir()
	err = StageBronze(ctx, db, filepath.Join(dir, "does-not-exist"), filepath.Join(dir, "bronze"), false)
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrSourceNotFound), "got %v", err)
}
