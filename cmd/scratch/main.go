package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/scratch/internal/config"
	"github.com/bamsammich/scratch/internal/session"
	"github.com/bamsammich/scratch/internal/stage"
	"github.com/bamsammich/scratch/internal/stats"
	"github.com/bamsammich/scratch/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// sizeFlag is a pflag.Value accepting human-readable sizes such as 100M.
type sizeFlag struct {
	n *int64
}

var _ pflag.Value = sizeFlag{}

func (f sizeFlag) String() string {
	if f.n == nil || *f.n < 0 {
		return ""
	}
	return strconv.FormatInt(*f.n, 10)
}

func (sizeFlag) Type() string { return "size" }

func (f sizeFlag) Set(val string) error {
	n, err := stats.ParseSize(val)
	if err != nil {
		return err
	}
	*f.n = n
	return nil
}

// run owns the session so that its Close runs on every way out of the
// command: normal return, error, signal-driven cancellation or a panic
// unwinding this goroutine.
//
//nolint:gocyclo,revive // cyclomatic,cognitive-complexity: CLI entry point wires flags, config and staging
func run(args []string, stdout, stderr io.Writer) int {
	sess := session.New(stdout)
	defer sess.Close()

	var (
		tmpDir      string
		workers     int
		bwLimit     int64
		truncate    = stage.NoTruncate
		verbose     bool
		quiet       bool
		logFile     string
		showVersion bool
	)

	rootCmd := &cobra.Command{
		Use:   "scratch [flags] <input>... [-- command [args...]]",
		Short: "Decode inputs into tracked scratch files and hand them to a command",
		Long: `scratch decodes each input (plain, gzip, zstd or LZ4) into its own
uniquely named scratch file. Without a command it prints a manifest of the
staged files; with a command, the scratch paths are appended to its
arguments. Every scratch file is removed before scratch exits, and the total
number of bytes written is reported on stdout.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return nil
			}
			inputs, _ := splitArgs(cmd, args)
			if len(inputs) == 0 {
				return errors.New("requires at least 1 input")
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintf(stdout, "scratch %s\n", version)
				return nil
			}
			inputs, command := splitArgs(cmd, args)

			// Configure logging.
			logLevel := slog.LevelWarn
			if verbose {
				logLevel = slog.LevelDebug
			} else if !quiet {
				logLevel = slog.LevelInfo
			}
			textHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{
				Level: logLevel,
			})
			var logHandler slog.Handler = textHandler
			if logFile != "" {
				lf, lfErr := os.Create(logFile)
				if lfErr != nil {
					return fmt.Errorf("open log file: %w", lfErr)
				}
				defer lf.Close()
				jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})
				logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
			}
			slog.SetDefault(slog.New(logHandler))

			// Load optional config file.
			cfg, err := config.Load()
			var unknown *config.UnknownKeysError
			switch {
			case errors.As(err, &unknown):
				slog.Warn("ignoring config keys", "path", config.Path(), "keys", unknown.Keys)
			case err != nil:
				slog.Warn("failed to load config", "error", err)
				cfg = config.Config{}
			}
			if err := applyConfigDefaults(cmd, cfg.Defaults, &workers, &bwLimit, &truncate); err != nil {
				return fmt.Errorf("config %s: %w", config.Path(), err)
			}

			if workers <= 0 {
				workers = min(runtime.NumCPU(), len(inputs))
			}

			// The directory must be set before any name is allocated.
			sess.Tmp.SetDirectory(config.TmpDir(tmpDir, cmd.Flags().Changed("tmp-dir"), cfg))

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			slog.Debug("staging",
				"inputs", inputs,
				"dir", sess.Tmp.Dir(),
				"workers", workers,
				"bwlimit", bwLimit,
				"truncate", truncate,
			)

			stager := stage.New(stage.Config{
				Inputs:   inputs,
				Workers:  workers,
				BWLimit:  bwLimit,
				Truncate: truncate,
				Session:  sess,
			})
			files, stageErr := stager.Stage(ctx)
			defer stager.Release(files)

			snap := stager.Stats().Snapshot()
			if !quiet {
				fmt.Fprintln(stderr, ui.Summary(snap, isTTY(stderr)))
			}
			if stageErr != nil {
				slog.Error("staging failed", "error", stageErr)
				if snap.FilesStaged == 0 {
					return &exitError{code: 2}
				}
				if len(command) > 0 {
					// A command never sees a partial input set.
					return &exitError{code: 1}
				}
			}

			if len(command) == 0 {
				if err := ui.WriteManifest(stdout, files, isTTY(stdout)); err != nil {
					return fmt.Errorf("write manifest: %w", err)
				}
				if stageErr != nil {
					return &exitError{code: 1}
				}
				return nil
			}

			return runCommand(ctx, command, files, stdout, stderr)
		},
	}

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")
	rootCmd.Flags().
		StringVarP(&tmpDir, "tmp-dir", "t", "", "directory for scratch files (default: $"+config.EnvTmpDir+" or .)")
	rootCmd.Flags().
		IntVarP(&workers, "workers", "n", 0, "number of staging workers (default: min(NumCPU, inputs))")
	rootCmd.Flags().
		Var(sizeFlag{n: &bwLimit}, "bwlimit", "aggregate write bandwidth limit (e.g. 100M)")
	rootCmd.Flags().
		Var(sizeFlag{n: &truncate}, "truncate", "truncate every staged file to SIZE after decoding")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.Flags().StringVar(&logFile, "log", "", "write structured JSON log to FILE")

	rootCmd.AddCommand(docsCmd)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	return 0
}

// splitArgs separates inputs from the command following "--".
func splitArgs(cmd *cobra.Command, args []string) (inputs, command []string) {
	dash := cmd.ArgsLenAtDash()
	if dash < 0 || dash > len(args) {
		return args, nil
	}
	return args[:dash], args[dash:]
}

// runCommand executes command with the staged scratch paths appended and
// maps its exit status onto ours.
func runCommand(ctx context.Context, command []string, files []stage.File, stdout, stderr io.Writer) error {
	args := append([]string{}, command[1:]...)
	for _, f := range files {
		args = append(args, f.Path)
	}

	c := exec.CommandContext(ctx, command[0], args...) //nolint:gosec // G204: running the user's command is the point
	c.Stdin = os.Stdin
	c.Stdout = stdout
	c.Stderr = stderr

	slog.Debug("running command", "command", command[0], "args", args)
	err := c.Run()
	var ee *exec.ExitError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ee):
		code := ee.ExitCode()
		if code < 0 {
			code = 2 // killed by signal
		}
		slog.Info("command exited", "command", command[0], "code", code)
		return &exitError{code: code}
	default:
		return fmt.Errorf("run %s: %w", command[0], err)
	}
}

// isTTY reports whether w is a terminal; only *os.File can be one.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && ui.IsTTY(f.Fd())
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyConfigDefaults(
	cmd *cobra.Command,
	defaults config.DefaultsConfig,
	workers *int,
	bwLimit *int64,
	truncate *int64,
) error {
	if !cmd.Flags().Changed("workers") && defaults.Workers != nil {
		*workers = *defaults.Workers
	}
	if !cmd.Flags().Changed("bwlimit") && defaults.BWLimit != nil {
		n, err := stats.ParseSize(*defaults.BWLimit)
		if err != nil {
			return fmt.Errorf("bwlimit: %w", err)
		}
		*bwLimit = n
	}
	if !cmd.Flags().Changed("truncate") && defaults.Truncate != nil {
		n, err := stats.ParseSize(*defaults.Truncate)
		if err != nil {
			return fmt.Errorf("truncate: %w", err)
		}
		*truncate = n
	}
	return nil
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
