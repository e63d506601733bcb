// Package main is the entry point for the reqhub host.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"github.com/dshills/reqhub/internal/app"
	"github.com/dshills/reqhub/internal/config"
	"github.com/dshills/reqhub/internal/hub"
	"github.com/dshills/reqhub/internal/requisition"
	"github.com/dshills/reqhub/internal/script"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

type globalFlags struct {
	configPath string
	logSpec    string
	logFile    string
}

func newRootCommand() *cobra.Command {
	var flags globalFlags
	root := &cobra.Command{
		Use:           "reqhub",
		Short:         "Requisition hub for database tool webviews",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", config.DefaultPath(), "Path to configuration file")
	root.PersistentFlags().StringVar(&flags.logSpec, "log", "", `Log specification, e.g. "<root>=DEBUG"`)
	root.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "Write logs to this file instead of stderr")

	root.AddCommand(
		newServeCommand(&flags),
		newJobCommand(&flags),
		newVersionCommand(),
	)
	return root
}

// setupLogging applies the configured spec, then the flag. The returned
// closer releases the log file, if any.
func setupLogging(flags *globalFlags, cfg *config.Config) (io.Closer, error) {
	var w io.Writer
	var closer io.Closer = io.NopCloser(nil)
	if flags.logFile != "" {
		f, err := os.OpenFile(flags.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, errors.Annotate(err, "opening log file")
		}
		w, closer = f, f
	}
	if err := app.ConfigureLogging(cfg.Log.Level, w); err != nil {
		closer.Close()
		return nil, err
	}
	if err := app.ConfigureLogging(flags.logSpec, nil); err != nil {
		closer.Close()
		return nil, err
	}
	return closer, nil
}

func newServeCommand(flags *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve webviews and the shell backend bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return errors.Annotatef(err, "loading %s", flags.configPath)
			}
			if cfg.StatusBar.Terminal && flags.logFile == "" {
				return errors.NotValidf("a terminal status line without --log-file")
			}
			logs, err := setupLogging(flags, cfg)
			if err != nil {
				return err
			}
			defer logs.Close()

			opts := app.Options{Config: cfg}
			if _, err := os.Stat(flags.configPath); err == nil {
				// Passing the path as well lets the App watch it.
				opts = app.Options{ConfigPath: flags.configPath}
			}
			a, err := app.New(opts)
			if err != nil {
				return errors.Annotate(err, "failed to initialize")
			}
			if addr != "" {
				a.Config().Server.Addr = addr
			}
			return a.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides server.addr")
	return cmd
}

func newJobCommand(flags *globalFlags) *cobra.Command {
	job := &cobra.Command{
		Use:   "job",
		Short: "Work with requisition jobs",
	}

	var scriptDir string
	runCmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run a YAML job on a local hub",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return errors.Annotatef(err, "loading %s", flags.configPath)
			}
			logs, err := setupLogging(flags, cfg)
			if err != nil {
				return err
			}
			defer logs.Close()

			entries, err := hub.LoadJobFile(args[0])
			if err != nil {
				return err
			}
			if scriptDir == "" {
				scriptDir = cfg.Scripts.Dir
			}
			handled, err := runJob(cmd.Context(), cmd.OutOrStdout(), entries, scriptDir)
			if err != nil {
				return err
			}
			if !handled {
				return errors.Errorf("no step of %s was handled", args[0])
			}
			return nil
		},
	}
	runCmd.Flags().StringVar(&scriptDir, "scripts", "", "Directory of Lua scripts to load first")

	job.AddCommand(runCmd)
	return job
}

// runJob executes entries on a fresh hub. Notices are printed to out.
func runJob(ctx context.Context, out io.Writer, entries []requisition.JobEntry, scriptDir string) (bool, error) {
	h := hub.New(hub.WithSource("job"))
	defer h.Clear()

	for _, k := range []requisition.Kind[string]{requisition.ShowInfo, requisition.ShowWarning, requisition.ShowError} {
		label := k.Name()
		if _, err := hub.On(h, k, func(_ context.Context, msg string) (bool, error) {
			fmt.Fprintf(out, "%s: %s\n", label, msg)
			return true, nil
		}); err != nil {
			return false, errors.Trace(err)
		}
	}

	if scriptDir != "" {
		engine := script.NewEngine(h, "job")
		defer engine.Close()
		if _, err := engine.LoadDir(ctx, scriptDir); err != nil {
			return false, errors.Trace(err)
		}
	}
	return hub.Execute(ctx, h, requisition.Job, entries), nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "reqhub %s\n", version)
			fmt.Fprintf(out, "Commit: %s\n", commit)
			fmt.Fprintf(out, "Built: %s\n", date)
		},
	}
}
