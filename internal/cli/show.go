package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/character-catalog/pkg/catalog"
)

func newShowCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := catalog.ParseID(args[0])
			if err != nil {
				return err
			}

			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close()

			c, err := rt.collection.LoadEntity(cmd.Context(), id)
			if errors.Is(err, catalog.ErrNotFound) {
				return fmt.Errorf("character %d not found", id)
			}
			if err != nil {
				return fmt.Errorf("load character %d: %w", id, err)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), c)
			}
			printCharacter(cmd.OutOrStdout(), c)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the character as JSON")
	return cmd
}

func printCharacter(w io.Writer, c catalog.Character) {
	field := func(label, value string) {
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(w, "%-10s %s\n", label+":", value)
	}

	fmt.Fprintf(w, "#%d %s\n\n", c.ID, c.Name)
	field("Status", c.Status)
	field("Species", c.Species)
	field("Type", c.Type)
	field("Gender", c.Gender)
	field("Origin", c.Origin.Name)
	field("Location", c.Location.Name)
	field("Episodes", fmt.Sprint(len(c.Episode)))
	if !c.Created.IsZero() {
		field("Created", c.Created.Format("2006-01-02"))
	}
	if len(c.Episode) > 0 {
		eps := make([]string, 0, len(c.Episode))
		for _, e := range c.Episode {
			eps = append(eps, e[strings.LastIndex(e, "/")+1:])
		}
		field("Appears", strings.Join(eps, ", "))
	}
}
