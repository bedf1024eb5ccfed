package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	dombatch "github.com/kailas-cloud/hwfinder/internal/domain/batch"
	"github.com/kailas-cloud/hwfinder/internal/domain/product"
)

func newBatchCmd(a *app) *cobra.Command {
	var (
		file       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Answer many queries without dialogue",
		Long:  `Reads one query per line (blank lines and # comments are skipped) and prints a shortlist per query.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			queries, err := readQueries(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			if len(queries) == 0 {
				return fmt.Errorf("no queries in %s", file)
			}

			svc, err := buildRuntime(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			results := svc.batch.Run(cmd.Context(), queries)
			if jsonOutput {
				return writeBatchJSON(cmd.OutOrStdout(), results)
			}
			writeBatchText(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", `queries file, one per line ("-" for stdin)`)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readQueries(stdin io.Reader, path string) ([]string, error) {
	in := stdin
	if path != "-" {
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("open queries: %w", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}
	return parseQueries(in)
}

func parseQueries(in io.Reader) ([]string, error) {
	var queries []string
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}
	return queries, nil
}

type batchOutput struct {
	Query    string              `json:"query"`
	Status   dombatch.ItemStatus `json:"status"`
	Products []product.Product   `json:"products"`
	Error    string              `json:"error,omitempty"`
}

func writeBatchJSON(w io.Writer, results []dombatch.Result) error {
	out := make([]batchOutput, len(results))
	for i, r := range results {
		products := r.Products()
		if products == nil {
			products = []product.Product{}
		}
		out[i] = batchOutput{Query: r.Query(), Status: r.Status(), Products: products}
		if r.Err() != nil {
			out[i].Error = r.Err().Error()
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return nil
}

func writeBatchText(w io.Writer, results []dombatch.Result) {
	for _, r := range results {
		fmt.Fprintf(w, "Query: %s [%s]\n", r.Query(), r.Status())
		if r.Err() != nil {
			fmt.Fprintf(w, "  %v\n", r.Err())
		}
		for i, p := range r.Products() {
			fmt.Fprintf(w, "  %d. %s", i+1, p.Name())
			if product.Has(p.Price()) {
				fmt.Fprintf(w, " (%s)", p.Price())
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}
}
