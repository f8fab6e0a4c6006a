// Package app wires settings, logging, storage and the editor into cobra commands.
package app

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"docadmin/internal/clipboard"
	"docadmin/internal/core"
	"docadmin/internal/settings"
	"docadmin/internal/storage"
)

// App holds the state shared by all commands of one invocation.
type App struct {
	configPath string
	debug      bool
	collection string

	settings *settings.Store
	config   *settings.Config

	client *mongo.Client
	store  storage.DocumentStore
	clip   clipboard.Clipboard

	stdin  io.Reader
	stdout io.Writer
}

// Option configures an App.
type Option func(*App)

// WithStore uses store instead of dialing MongoDB.
func WithStore(store storage.DocumentStore) Option {
	return func(a *App) {
		a.store = store
	}
}

// WithClipboard uses clip instead of the system clipboard.
func WithClipboard(clip clipboard.Clipboard) Option {
	return func(a *App) {
		a.clip = clip
	}
}

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(a *App) {
		a.stdin = in
		a.stdout = out
	}
}

// New creates an App.
func New(opts ...Option) *App {
	a := &App{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Execute runs the command line.
func (a *App) Execute(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	if a.stdin != nil {
		root.SetIn(a.stdin)
	}
	if a.stdout != nil {
		root.SetOut(a.stdout)
	}
	return root.ExecuteContext(ctx)
}

// Shutdown closes the store and disconnects from MongoDB.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error
	if a.store != nil && a.client != nil {
		if err := a.store.Close(); err != nil {
			firstErr = err
		}
	}
	if a.client != nil {
		if err := a.client.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "failed to disconnect from MongoDB")
		}
		a.client = nil
	}
	return firstErr
}

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "docadmin",
		Short: "Browse and edit MongoDB documents",
		Long: `docadmin edits MongoDB documents field by field.

Every field is shown as text. Numbers must stay numeric, objects and arrays
are edited as relaxed Extended JSON, and only the fields that changed are
written back.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default $HOME/.docadmin.yaml)")
	flags.BoolVar(&a.debug, "debug", false, "enable debug logging")
	flags.StringVarP(&a.collection, "collection", "c", "", "collection to work on")

	root.AddCommand(
		a.collectionsCommand(),
		a.listCommand(),
		a.showCommand(),
		a.editCommand(),
		a.exportCommand(),
		a.importCommand(),
		a.insertCommand(),
		a.deleteCommand(),
		a.configCommand(),
	)
	return root
}

func (a *App) setup(cmd *cobra.Command, args []string) error {
	store, err := settings.Open(a.configPath)
	if err != nil {
		return err
	}
	cfg, err := store.Config()
	if err != nil {
		return err
	}

	a.settings = store
	a.config = cfg

	level := cfg.LogLevel
	if a.debug {
		level = "debug"
	}
	if err := core.ConfigureLogger(cfg.Development || a.debug, level); err != nil {
		return errors.Wrap(err, "failed to configure logger")
	}

	if a.collection == "" {
		a.collection = cfg.Collection
	}
	return nil
}

// connect returns the document store, dialing MongoDB on first use.
func (a *App) connect(ctx context.Context) (storage.DocumentStore, error) {
	if a.store != nil {
		return a.store, nil
	}

	client, err := storage.Dial(ctx, a.config.Connection)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", a.config.Connection.Address())
	}

	pageCache, err := storage.NewCache(ctx, a.config.Cache)
	if err != nil {
		// The editor works without a cache
		core.Warn("Cache unavailable, reading directly from MongoDB",
			zap.String("backend", a.config.Cache.Backend), zap.Error(err))
	}

	a.client = client
	a.store = storage.NewMongoStore(client, a.config.Connection.Database, pageCache, &storage.Options{
		CacheTTL:         a.config.Cache.TTL,
		OperationTimeout: storage.DefaultOptions().OperationTimeout,
	})
	return a.store, nil
}

func (a *App) clipboard() (clipboard.Clipboard, error) {
	if a.clip != nil {
		return a.clip, nil
	}
	system, err := clipboard.NewSystem()
	if err != nil {
		return nil, err
	}
	a.clip = system
	return a.clip, nil
}

func (a *App) requireCollection() (string, error) {
	if a.collection == "" {
		return "", errors.New("no collection selected, use --collection or set collection in the config file")
	}
	return a.collection, nil
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
