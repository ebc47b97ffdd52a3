package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/character-catalog/pkg/filter"
)

// filterFlags binds the filter constraints shared by list, export and browse.
type filterFlags struct {
	page   int
	name   string
	status string
}

func (f *filterFlags) register(cmd *cobra.Command, withPage bool) {
	if withPage {
		cmd.Flags().IntVarP(&f.page, "page", "p", 1, "page number")
	}
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "name substring")
	cmd.Flags().StringVarP(&f.status, "status", "s", "", "status: Alive, Dead or unknown")
}

// state validates the flags. Unlike location descriptors, flags are typed by
// a person, so a bad status is reported instead of dropped.
func (f *filterFlags) state() (filter.State, error) {
	if f.status != "" && !filter.Status(f.status).Valid() {
		return filter.State{}, fmt.Errorf("invalid status %q (want one of %v)", f.status, filter.Statuses())
	}
	if f.page < 0 {
		return filter.State{}, fmt.Errorf("invalid page %d", f.page)
	}
	return filter.Normalize(filter.Raw{
		Page:   strconv.Itoa(f.page),
		Name:   f.name,
		Status: f.status,
	}), nil
}
