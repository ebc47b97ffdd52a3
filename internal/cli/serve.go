package cli

import (
	"github.com/spf13/cobra"

	"github.com/Sternrassler/character-catalog/internal/server"
	"github.com/Sternrassler/character-catalog/pkg/logging"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var (
		port     int
		maxSlots int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog over HTTP",
		Long: `Serve exposes the cached catalog over HTTP:

  GET  /characters?page=&name=&status=   one page (X-Catalog-Slot keeps placeholders per client)
  POST /characters/refresh               refetch the current page
  GET  /characters/{id}                  one character
  GET  /healthz, /readyz, /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close()

			so := server.DefaultOptions()
			so.Pinger = rt.client
			if maxSlots > 0 {
				so.MaxSlots = maxSlots
			}

			logger := logging.NewLogger("serve")
			logger.Info().
				Str("catalog", cfg.Catalog.BaseURL).
				Bool("shared_backoff", rt.redis != nil).
				Msg("Starting catalog server")

			return server.New(rt.collection, so).Run(cmd.Context(), cfg.Addr(), cfg.ShutdownTimeout())
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config, 8080)")
	cmd.Flags().IntVar(&maxSlots, "max-slots", 0, "maximum concurrent client slots")
	return cmd
}
