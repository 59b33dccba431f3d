// Package cli implements the shelf command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/midishelf/internal/paths"
	"github.com/mesh-intelligence/midishelf/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// app holds global flag values and the state set up before a subcommand
// runs.
type app struct {
	configDir string
	dataDir   string
	jsonMode  bool
	verbose   bool

	// started is set once flags and arguments have been accepted. Errors
	// raised before that are usage errors.
	started bool

	configPath string
	v          *viper.Viper
	log        *slog.Logger
}

// NewRootCmd creates the top-level "shelf" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	root, _ := newRootCmd()
	return root
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:   "shelf",
		Short: "A catalog of MIDI songs with backup and restore",
		Long: "Shelf keeps MIDI files, notation sources and lyrics together with\n" +
			"song metadata, names the instrument tracks of every MIDI file, and\n" +
			"backs the whole catalog up to a single zip archive.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (default: per-user config dir)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (default: $(CWD)/"+paths.DefaultDataDirName+")")
	root.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		a.newVersionCmd(),
		a.newInitCmd(),
		a.newAddCmd(),
		a.newEditCmd(),
		a.newRmCmd(),
		a.newListCmd(),
		a.newShowCmd(),
		a.newTracksCmd(),
		a.newRetrackCmd(),
		a.newDownloadCmd(),
		a.newExportCmd(),
		a.newBackupCmd(),
		a.newRestoreCmd(),
	)
	return root, a
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

// Run executes the command line args and returns the exit code. Errors are
// printed to stderr.
func Run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root, a := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	code := a.exitCode(err)
	if err != nil {
		fmt.Fprintln(stderr, "shelf:", err)
		if code == exitUserError && !a.started {
			fmt.Fprintln(stderr, "Run 'shelf --help' for usage.")
		}
	}
	return code
}

// exitCode classifies err. Usage errors and the user-facing error
// categories exit 1; everything else exits 2.
func (a *app) exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case !a.started,
		errors.Is(err, types.ErrInvalidInput),
		errors.Is(err, types.ErrInvalidArchive),
		errors.Is(err, types.ErrNotFound):
		return exitUserError
	}
	return exitSysError
}

// setup resolves the config directory, loads config.yaml and builds the
// logger. It runs before every subcommand.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.started = true

	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	a.v = v
	a.configPath = configPath(configDir)

	level := v.GetString(cfgKeyLogLevel)
	if a.verbose {
		level = "debug"
	}
	log, err := newLogger(cmd.ErrOrStderr(), level)
	if err != nil {
		return err
	}
	a.log = log
	return nil
}

// newLogger returns a text logger on w at the named level.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("%w: log_level %q: %w", types.ErrInvalidInput, level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
