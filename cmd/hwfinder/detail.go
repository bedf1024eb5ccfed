package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDetailCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "detail NAME...",
		Short: "Fetch full product details by exact name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildRuntime(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			failed := 0
			for _, d := range resolveAll(cmd.Context(), svc.details, args, a.cfg.Batch.Concurrency) {
				if d.err != nil {
					failed++
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatDetail(d))
			}
			if failed == len(args) {
				return fmt.Errorf("no details found for %d product(s)", failed)
			}
			return nil
		},
	}
}
