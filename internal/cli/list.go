package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/character-catalog/internal/tui"
	"github.com/Sternrassler/character-catalog/pkg/catalog"
	"github.com/Sternrassler/character-catalog/pkg/filter"
)

func newListCmd(opts *globalOptions) *cobra.Command {
	var (
		filters filterFlags
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of characters",
		Long: `List one page of characters matching the filters.

Examples:
  catalog list
  catalog list --name rick --status Alive
  catalog list -p 3 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := filters.state()
			if err != nil {
				return err
			}

			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close()

			page, err := rt.collection.LoadPage(cmd.Context(), state)
			if err != nil {
				return fmt.Errorf("load %s: %w", state, err)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), page)
			}
			return printPage(cmd.OutOrStdout(), state, page)
		},
	}

	filters.register(cmd, true)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the page as JSON")
	return cmd
}

func printPage(w io.Writer, state filter.State, page catalog.PageResult) error {
	if page.IsEmpty() {
		if state.Page > 1 && page.Info.Pages > 0 {
			_, err := fmt.Fprintf(w, "Page %d is past the last page (%d).\n", state.Page, page.Info.Pages)
			return err
		}
		_, err := fmt.Fprintln(w, "No characters match.")
		return err
	}

	styles := tui.DefaultStyles()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tSPECIES\tLOCATION")
	for _, c := range page.Results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			c.ID, c.Name, styles.Status(c.Status).Render(c.Status), c.Species, c.Location.Name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\npage %d of %d (%d characters)\n", state.Page, page.Info.Pages, page.Info.Count)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
