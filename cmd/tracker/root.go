package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/juju/clock"
	"github.com/juju/loggo"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tracker/internal/catalog"
	"github.com/mesh-intelligence/tracker/internal/paths"
	"github.com/mesh-intelligence/tracker/internal/tracker"
	"github.com/mesh-intelligence/tracker/pkg/storage"
	"github.com/mesh-intelligence/tracker/pkg/types"
)

var logger = loggo.GetLogger("tracker.cli")

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// errUsage marks errors caused by bad arguments.
var errUsage = errors.New("usage")

// app holds global flag values and the configuration resolved before each
// subcommand runs.
type app struct {
	configDir string
	dataDir   string
	jsonMode  bool
	logLevel  string

	cfg   types.Config
	clock clock.Clock
}

func newRootCmd() *cobra.Command {
	a := &app{clock: clock.WallClock}
	root := &cobra.Command{
		Use:   "tracker",
		Short: "Persist the sample catalog through the change-tracking engine",
		Long: `tracker tracks in-memory changes to catalog entities and writes them to
SQLite or Postgres as one ordered transaction per command.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (default: $(CWD)/.tracker-db)")
	root.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "output as JSON")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: TRACE, DEBUG, INFO, WARNING, ERROR")

	root.AddCommand(newVersionCmd())
	root.AddCommand(a.newInitCmd())
	root.AddCommand(a.newDemoCmd())
	root.AddCommand(a.newCategoryCmd())
	root.AddCommand(a.newProductCmd())
	return root
}

// setup loads config.yaml, configures logging, and resolves the store
// configuration.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return err
	}

	level := a.logLevel
	if level == "" {
		level = v.GetString(cfgKeyLogLevel)
	}
	if err := configureLogging(level); err != nil {
		return err
	}

	dataDir, err := paths.ResolveDataDir(a.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	a.configDir = configDir
	a.dataDir = dataDir
	a.cfg = storeConfig(v, dataDir)
	logger.Debugf("config dir %s, data dir %s, backend %s", configDir, dataDir, a.cfg.Backend)
	return nil
}

func configureLogging(level string) error {
	if level == "" {
		return nil
	}
	lvl, ok := loggo.ParseLevel(level)
	if !ok {
		return fmt.Errorf("%w: unknown log level %q", errUsage, level)
	}
	return loggo.ConfigureLoggers(fmt.Sprintf("<root>=%s", lvl.String()))
}

// openEngine opens the configured store, creating the catalog schema when
// missing, and returns an engine over it. The caller closes the store.
func (a *app) openEngine(ctx context.Context) (*tracker.Engine, types.Store, error) {
	store, err := storage.OpenCatalog(ctx, a.cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	model, err := catalog.NewModel()
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return tracker.New(store, model, tracker.WithClock(a.clock)), store, nil
}

// exitCode maps an error to the process exit status: 1 for errors the user
// can fix by changing the input, 2 for everything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, errUsage),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, types.ErrConstraintViolation),
		errors.Is(err, types.ErrConcurrencyConflict),
		errors.Is(err, types.ErrBackendUnknown),
		errors.Is(err, types.ErrBackendEmpty):
		return exitUserError
	default:
		return exitSysError
	}
}
