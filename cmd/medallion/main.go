package main

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/pkang0831/fromFatToFit/config"
	"github.com/pkang0831/fromFatToFit/internal/medallion"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	opts := medallion.Options{
		SourceDir:    cfg.Medallion.SourceDir,
		OutputDir:    cfg.Medallion.OutputDir,
		DatabasePath: cfg.Medallion.DatabasePath,
	}

	rootCmd := &cobra.Command{
		Use:   "medallion",
		Short: "Build the USDA food medallion dataset",
		Long: `Converts a raw USDA FoodData Central CSV export into the bronze, silver
and gold Parquet artifacts the runtime search engine reads. Stages that
already produced their outputs are skipped unless --rebuild is given.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return medallion.Run(cmd.Context(), opts)
		},
	}

	rootCmd.Flags().StringVar(&opts.SourceDir, "source", opts.SourceDir,
		"directory containing the raw USDA CSV files")
	rootCmd.Flags().StringVar(&opts.OutputDir, "output", opts.OutputDir,
		"directory receiving the bronze/, silver/ and gold/ outputs")
	rootCmd.Flags().StringVar(&opts.DatabasePath, "database", opts.DatabasePath,
		"DuckDB file used for intermediate transformations")
	rootCmd.Flags().BoolVar(&opts.Rebuild, "rebuild", false,
		"discard and regenerate existing stage outputs")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	log.SetFlags(log.Ldate | log.Ltime)
	log.SetOutput(os.Stdout)
}
