package medallion

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/pkang0831/fromFatToFit/internal/infrastructure/duckdb"
)

// Options configures one pipeline run.
type Options struct {
	// SourceDir contains the raw USDA FoodData Central CSV export (or a
	// pre-converted Parquet copy of it).
	SourceDir string
	// OutputDir receives the bronze/, silver/ and gold/ subtrees.
	OutputDir string
	// DatabasePath is the DuckDB file used for intermediate transformation
	// state between stages.
	DatabasePath string
	// Rebuild forces every stage to discard and regenerate existing outputs.
	Rebuild bool
}

// Run executes the full Bronze -> Silver -> Gold pipeline. Each stage is
// fully materialized to disk before the next begins, so a run is bounded by
// the largest single table and every stage is independently inspectable.
func Run(ctx context.Context, opts Options) error {
	sourceDir, err := filepath.Abs(opts.SourceDir)
	if err != nil {
		return fmt.Errorf("resolving source directory: %w", err)
	}
	outputDir, err := filepath.Abs(opts.OutputDir)
	if err != nil {
		return fmt.Errorf("resolving output directory: %w", err)
	}
	dbPath, err := filepath.Abs(opts.DatabasePath)
	if err != nil {
		return fmt.Errorf("resolving database path: %w", err)
	}

	bronzeDir := filepath.Join(outputDir, "bronze")
	silverDir := filepath.Join(outputDir, "silver")
	goldDir := filepath.Join(outputDir, "gold")

	log.Printf("[MEDALLION] Starting USDA medallion pipeline")
	log.Printf("[MEDALLION] Source directory: %s", sourceDir)
	log.Printf("[MEDALLION] Output root: %s", outputDir)

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	if opts.Rebuild {
		if _, statErr := os.Stat(dbPath); statErr == nil {
			log.Printf("[MEDALLION] Removing existing DuckDB database: %s", dbPath)
			if err := os.Remove(dbPath); err != nil {
				return fmt.Errorf("removing database: %w", err)
			}
		}
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}

	db, err := duckdb.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	start := time.Now()
	if err := StageBronze(ctx, db, sourceDir, bronzeDir, opts.Rebuild); err != nil {
		return err
	}
	if err := StageSilver(ctx, db, bronzeDir, silverDir, opts.Rebuild); err != nil {
		return err
	}
	if err := StageGold(ctx, db, silverDir, goldDir, opts.Rebuild); err != nil {
		return err
	}
	log.Printf("[MEDALLION] Pipeline finished in %.1fs", time.Since(start).Seconds())
	return nil
}

// ensureDir creates the stage directory, wiping it first on rebuild.
func ensureDir(path string, rebuild bool) error {
	if rebuild {
		if _, err := os.Stat(path); err == nil {
			log.Printf("[MEDALLION] Removing existing directory: %s", path)
			if err := os.RemoveAll(path); err != nil {
				return fmt.Errorf("removing %s: %w", path, err)
			}
		}
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	return nil
}

// requireFiles verifies the named files exist, reporting the first missing
// one. Stage inputs are a fixed contract; a missing table stops the build.
func requireFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("required input file missing: %s", p)
		}
	}
	return nil
}
