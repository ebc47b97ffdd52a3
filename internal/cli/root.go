// Package cli implements the catalog command line.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/character-catalog/internal/config"
	"github.com/Sternrassler/character-catalog/pkg/browse"
	"github.com/Sternrassler/character-catalog/pkg/catalog"
	"github.com/Sternrassler/character-catalog/pkg/logging"
)

// globalOptions are the persistent flags shared by all commands.
type globalOptions struct {
	configPath string
	logLevel   string
	baseURL    string
	pretty     bool

	cfg config.Config
}

// NewRootCommand builds the catalog command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the character catalog",
		Long: `catalog lists, filters and exports characters from the character catalog.

Filters are a name substring and a status (Alive, Dead, unknown). Results are
paged by the catalog, 20 characters per page.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default catalog.yaml if present)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error, disabled")
	root.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "catalog base URL")
	root.PersistentFlags().BoolVar(&opts.pretty, "log-pretty", false, "human-readable logs")

	root.AddCommand(
		newListCmd(opts),
		newShowCmd(opts),
		newExportCmd(opts),
		newServeCmd(opts),
		newBrowseCmd(opts),
	)
	return root
}

// Execute runs the command tree with args taken from os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (o *globalOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg, err = cfg.Override(config.Overrides{
		BaseURL:  o.baseURL,
		LogLevel: o.logLevel,
		Pretty:   o.pretty,
	})
	if err != nil {
		return err
	}
	o.cfg = cfg

	lc := cfg.LogConfig()
	lc.Output = cmd.ErrOrStderr()
	logging.Setup(lc)
	return nil
}

// runtime is the object graph a command works with.
type runtime struct {
	redis      *redis.Client
	client     *catalog.Client
	collection *browse.Collection
}

func (o *globalOptions) open() (*runtime, error) {
	rdb := o.cfg.RedisClient()
	client, err := catalog.New(o.cfg.ClientConfig(rdb))
	if err != nil {
		if rdb != nil {
			rdb.Close()
		}
		return nil, fmt.Errorf("create catalog client: %w", err)
	}

	return &runtime{
		redis:      rdb,
		client:     client,
		collection: browse.NewCollection(client, logging.NewLogger("collection")),
	}, nil
}

func (rt *runtime) Close() {
	rt.collection.Close()
	rt.client.Close()
	if rt.redis != nil {
		rt.redis.Close()
	}
}

// redirectLogs sends logs to w, used while a full-screen UI owns the
// terminal.
func (o *globalOptions) redirectLogs(w io.Writer) {
	lc := o.cfg.LogConfig()
	lc.Output = w
	lc.Pretty = false
	logging.Setup(lc)
}
