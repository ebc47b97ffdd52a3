package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/character-catalog/internal/tui"
)

func newBrowseCmd(opts *globalOptions) *cobra.Command {
	var (
		filters filterFlags
		logFile string
	)

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse characters interactively",
		Long: `Browse opens a full-screen character browser. Press ? for keys.

Logs are discarded while the browser runs unless --log-file is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := filters.state()
			if err != nil {
				return err
			}

			var logs io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return err
				}
				defer f.Close()
				logs = f
			}
			opts.redirectLogs(logs)

			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close()

			return tui.Run(cmd.Context(), rt.collection, state)
		},
	}

	filters.register(cmd, true)
	cmd.Flags().StringVar(&logFile, "log-file", "", "append logs to this file")
	return cmd
}
