package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/character-catalog/pkg/catalog"
	"github.com/Sternrassler/character-catalog/pkg/pagination"
)

// Export formats.
const (
	formatJSON  = "json"
	formatJSONL = "jsonl"
	formatCSV   = "csv"
)

func newExportCmd(opts *globalOptions) *cobra.Command {
	var (
		filters     filterFlags
		format      string
		output      string
		concurrency int
		maxPages    int
		quiet       bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every character matching the filters",
		Long: `Export fetches every page of the filtered listing in parallel and writes
the characters in page order.

Examples:
  catalog export --status Dead --format csv -o dead.csv
  catalog export --name smith --format jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := filters.state()
			if err != nil {
				return err
			}
			switch format {
			case formatJSON, formatJSONL, formatCSV:
			default:
				return fmt.Errorf("invalid format %q (want json, jsonl or csv)", format)
			}

			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close()

			cfg := pagination.DefaultConfig()
			cfg.MaxConcurrency = concurrency
			cfg.MaxPages = maxPages
			if !quiet {
				progress := cmd.ErrOrStderr()
				cfg.OnProgress = func(done, total int) {
					fmt.Fprintf(progress, "\rfetched %d/%d pages", done, total)
					if done == total {
						fmt.Fprintln(progress)
					}
				}
			}

			res, fetchErr := pagination.NewBatchFetcher(rt.collection, cfg).FetchAll(cmd.Context(), state)
			if res == nil {
				return fetchErr
			}
			if !quiet && !res.Complete() {
				fmt.Fprintln(cmd.ErrOrStderr())
			}

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			chars := res.Characters()
			if err := writeCharacters(w, format, chars); err != nil {
				return fmt.Errorf("write %s: %w", format, err)
			}
			if output != "" && output != "-" {
				cmd.PrintErrf("wrote %d characters to %s\n", len(chars), output)
			}

			if fetchErr != nil {
				return fmt.Errorf("export incomplete, pages %v missing: %w", res.Failed, fetchErr)
			}
			return nil
		},
	}

	filters.register(cmd, false)
	cmd.Flags().StringVarP(&format, "format", "f", formatJSON, "output format: json, jsonl or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "parallel page loads")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "stop after this many pages (0 = all)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not report progress")
	return cmd
}

func writeCharacters(w io.Writer, format string, chars []catalog.Character) error {
	switch format {
	case formatJSONL:
		enc := json.NewEncoder(w)
		for _, c := range chars {
			if err := enc.Encode(c); err != nil {
				return err
			}
		}
		return nil
	case formatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"id", "name", "status", "species", "type", "gender", "origin", "location", "episodes", "created"}); err != nil {
			return err
		}
		for _, c := range chars {
			created := ""
			if !c.Created.IsZero() {
				created = c.Created.UTC().Format("2006-01-02T15:04:05Z")
			}
			if err := cw.Write([]string{
				strconv.Itoa(c.ID), c.Name, c.Status, c.Species, c.Type, c.Gender,
				c.Origin.Name, c.Location.Name, strconv.Itoa(len(c.Episode)), created,
			}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		if chars == nil {
			chars = []catalog.Character{}
		}
		return writeJSON(w, chars)
	}
}
