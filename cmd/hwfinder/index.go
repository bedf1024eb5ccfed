package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hwfinder/internal/domain"
	"github.com/kailas-cloud/hwfinder/internal/repository/catalog"
)

func newIndexCmd(a *app) *cobra.Command {
	var csvPath string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the local product index from a CSV catalog",
		Long: `Reads a CSV with a "Product Name" column, an optional "Description"
column and any extra attribute columns, embeds every row and replaces the
local vector index.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.LocalIndex.Enabled {
				return fmt.Errorf("%w: local_index.enabled is false", domain.ErrInvalidConfig)
			}

			f, err := os.Open(filepath.Clean(csvPath))
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer func() { _ = f.Close() }()

			rows, err := catalog.ReadCSV(f)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				return errors.New("catalog has no product rows")
			}

			svc, err := buildLocalIndex(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			stats, err := svc.catalog.Rebuild(cmd.Context(), rows, svc.embedder)
			if err != nil {
				return fmt.Errorf("rebuild index: %w", err)
			}

			a.logger.Info("Index rebuilt", zap.String("csv", csvPath))
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d products (%d removed, %d dims, %d tokens) in %s\n",
				stats.Rows, stats.Removed, stats.Dimensions, stats.Tokens, stats.Elapsed)
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "catalog CSV file")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}
