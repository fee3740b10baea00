package medallion

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"

	"github.com/pkang0831/fromFatToFit/internal/domain"
	"github.com/pkang0831/fromFatToFit/internal/infrastructure/duckdb"
)

// StageBronze converts every raw CSV under sourceDir into a Parquet file in
// bronzeDir, one to one, with no semantic change. Parsing is permissive:
// DuckDB infers column types and malformed rows are dropped rather than
// aborting the conversion. Existing outputs are skipped unless rebuild is
// set. If the source directory holds pre-converted Parquet files instead of
// CSVs, they are copied through unchanged.
func StageBronze(ctx context.Context, db *duckdb.DB, sourceDir, bronzeDir string, rebuild bool) error {
	log.Printf("[BRONZE] Converting CSVs under %s", sourceDir)

	if _, err := os.Stat(sourceDir); err != nil {
		return fmt.Errorf("%w: source directory %s", domain.ErrSourceNotFound, sourceDir)
	}
	if err := ensureDir(bronzeDir, rebuild); err != nil {
		return err
	}

	csvFiles, err := listByExt(sourceDir, ".csv")
	if err != nil {
		return err
	}

	if len(csvFiles) == 0 {
		parquetFiles, err := listByExt(sourceDir, ".parquet")
		if err != nil {
			return err
		}
		if len(parquetFiles) == 0 {
			return fmt.Errorf("%w: no CSV or Parquet files in %s", domain.ErrSourceNotFound, sourceDir)
		}
		log.Printf("[BRONZE] No CSV detected; copying %d Parquet files into bronze staging", len(parquetFiles))
		for _, src := range parquetFiles {
			target := filepath.Join(bronzeDir, filepath.Base(src))
			if _, statErr := os.Stat(target); statErr == nil && !rebuild {
				continue
			}
			if err := copyFile(src, target); err != nil {
				return fmt.Errorf("copying %s: %w", filepath.Base(src), err)
			}
		}
		return nil
	}

	bar := pb.Full.Start(len(csvFiles))
	bar.Set(pb.CleanOnFinish, true)
	defer bar.Finish()

	var converted, skipped int
	var totalRows int64
	for _, csvPath := range csvFiles {
		bar.Increment()

		stem := strings.TrimSuffix(filepath.Base(csvPath), ".csv")
		parquetPath := filepath.Join(bronzeDir, stem+".parquet")
		if _, statErr := os.Stat(parquetPath); statErr == nil && !rebuild {
			skipped++
			continue
		}

		query := fmt.Sprintf(`
			COPY (
			  SELECT *
			  FROM read_csv_auto('%s', ALL_VARCHAR=FALSE, IGNORE_ERRORS=TRUE)
			)
			TO '%s' (FORMAT PARQUET);`,
			duckdb.QuotePath(csvPath), duckdb.QuotePath(parquetPath))
		if err := db.Exec(ctx, query); err != nil {
			return fmt.Errorf("converting %s: %w", filepath.Base(csvPath), err)
		}

		rows, err := db.Count(ctx, fmt.Sprintf("read_parquet('%s')", duckdb.QuotePath(parquetPath)))
		if err != nil {
			return err
		}
		totalRows += rows
		converted++
		log.Printf("[BRONZE] %s -> %s (%s rows)", filepath.Base(csvPath), stem+".parquet", humanize.Comma(rows))
	}

	log.Printf("[BRONZE] Done: %d converted, %d skipped, %s rows written",
		converted, skipped, humanize.Comma(totalRows))
	return nil
}

// listByExt returns the sorted paths of files with the given extension.
func listByExt(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ext) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
