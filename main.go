package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/lexandro/buildwatch/config"
	"github.com/lexandro/buildwatch/register"
	"github.com/lexandro/buildwatch/server"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flags holds command line overrides. Only flags the user set are applied.
type flags struct {
	configPath        string
	rootDir           string
	buildConfig       string
	delay             string
	copyTasks         []string
	excludes          []string
	buildCommand      string
	maxFileSize       int64
	reconcileInterval string
	logLevel          string
	logFile           string
	noColor           bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "buildwatch",
		Short:         "Watch a project and rebuild it when sources change",
		Version:       server.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	bindFlags(root.PersistentFlags(), f)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the project and run the build command on changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, f, sessionOptions{noColor: f.noColor})
		},
	}
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Watch the project and serve status, search and rebuild tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, f, sessionOptions{withIndex: true, serveMCP: true, noColor: true})
		},
	}

	root.AddCommand(watchCmd, serveCmd, newInitCommand(f), newRegisterCommand())
	// Bare "buildwatch" behaves like "buildwatch watch".
	root.RunE = watchCmd.RunE
	return root
}

// bindFlags registers the configuration overrides shared by every subcommand.
func bindFlags(pf *pflag.FlagSet, f *flags) {
	pf.StringVarP(&f.configPath, "config", "c", "", "Config file (default: <root>/"+config.DefaultFileName+" if present)")
	pf.StringVar(&f.rootDir, "root", "", "Project root directory (default: current working directory)")
	pf.StringVar(&f.buildConfig, "build-config", "", "Build config file; changes force a full rebuild")
	pf.StringVar(&f.delay, "delay", "", "Quiet period before a rebuild, e.g. 20ms")
	pf.StringArrayVar(&f.copyTasks, "copy", nil, "Copy task source, directory or glob (repeatable)")
	pf.StringArrayVar(&f.excludes, "exclude", nil, "Extra ignore pattern (repeatable)")
	pf.StringVar(&f.buildCommand, "build-command", "", "Command run for each change set")
	pf.Int64Var(&f.maxFileSize, "max-file-size", 0, "Maximum indexed file size in bytes")
	pf.StringVar(&f.reconcileInterval, "reconcile-interval", "", "Compare the index with disk at this interval, e.g. 30s (0 disables)")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	pf.StringVar(&f.logFile, "log-file", "", "Log file path (default: <root>/buildwatch.log)")
	pf.BoolVar(&f.noColor, "no-color", false, "Disable colored change summaries")
}

func newInitCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default " + config.DefaultFileName,
		RunE: func(cmd *cobra.Command, args []string) error {
			rootDir, err := resolveRoot(f.rootDir)
			if err != nil {
				return err
			}
			path := filepath.Join(rootDir, config.DefaultFileName)
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
}

func newRegisterCommand() *cobra.Command {
	var serverName string
	cmd := &cobra.Command{
		Use:   "register project|user [directory] [-- server flags]",
		Short: "Add buildwatch to an MCP client configuration",
		Args:  cobra.RangeArgs(1, 64),
		RunE: func(cmd *cobra.Command, args []string) error {
			var serverArgs []string
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				serverArgs = args[dash:]
				args = args[:dash]
			}
			if len(args) == 0 || len(args) > 2 {
				return errors.New("expected a scope and an optional directory")
			}
			scope, err := register.ParseScope(args[0])
			if err != nil {
				return err
			}
			opts := register.Options{Scope: scope, ServerName: serverName, ServerArgs: serverArgs}
			if len(args) == 2 {
				opts.Directory = args[1]
			}
			path, err := register.Register(opts)
			if err != nil {
				return err
			}
			name := serverName
			if name == "" {
				name = register.DefaultServerName
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %q in %s\n", name, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverName, "name", "", "Server name in the client config (default: buildwatch)")
	return cmd
}

func runSession(cmd *cobra.Command, f *flags, opts sessionOptions) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	// Logs go to a file or stderr, never stdout: stdout carries MCP traffic in serve mode.
	logger := setupLogger(cfg.LogLevel, cfg.LogFile)
	logger.Info("starting buildwatch",
		"root", cfg.RootDir,
		"buildConfig", cfg.BuildConfig,
		"delay", cfg.Delay,
		"copyTasks", cfg.CopyTasks,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.serveMCP {
		opts.stdout = os.Stderr
	} else {
		opts.stdout = cmd.OutOrStdout()
	}
	opts.stderr = os.Stderr

	s, err := newSession(cfg, opts, logger)
	if err != nil {
		logger.Error("failed to start session", "error", err)
		return err
	}
	defer s.Close()

	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("session stopped", "error", err)
		return err
	}
	logger.Info("buildwatch stopped")
	return nil
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(cmd *cobra.Command, f *flags) (config.Config, error) {
	rootDir, err := resolveRoot(f.rootDir)
	if err != nil {
		return config.Config{}, err
	}

	path := f.configPath
	if path == "" {
		path = filepath.Join(rootDir, config.DefaultFileName)
	}
	cfg, err := config.Load(path)
	switch {
	case errors.Is(err, config.ErrNoConfigFile) && f.configPath == "":
		cfg, err = config.FromEnv(rootDir)
		if err != nil {
			return config.Config{}, err
		}
	case err != nil:
		return config.Config{}, err
	}

	changed := cmd.Flags().Changed
	if changed("root") {
		cfg.RootDir = rootDir
	}
	if changed("build-config") {
		cfg.BuildConfig = f.buildConfig
	}
	if changed("delay") {
		if cfg.Delay, err = parseDuration("delay", f.delay); err != nil {
			return config.Config{}, err
		}
	}
	if changed("copy") {
		cfg.CopyTasks = f.copyTasks
	}
	if changed("exclude") {
		cfg.Exclude = append(cfg.Exclude, f.excludes...)
	}
	if changed("build-command") {
		cfg.BuildCommand = f.buildCommand
	}
	if changed("max-file-size") {
		cfg.MaxFileSize = f.maxFileSize
	}
	if changed("reconcile-interval") {
		if cfg.ReconcileInterval, err = parseDuration("reconcile-interval", f.reconcileInterval); err != nil {
			return config.Config{}, err
		}
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-file") {
		cfg.LogFile = f.logFile
	}
	cfg.Resolve(rootDir)
	return cfg, nil
}

func resolveRoot(rootDir string) (string, error) {
	if rootDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting working directory: %w", err)
		}
		rootDir = wd
	}
	return filepath.Abs(rootDir)
}

func parseDuration(flag, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s %q: %w", flag, value, err)
	}
	return d, nil
}

// setupLogger creates an slog.Logger writing to stderr or a file.
func setupLogger(level string, logFile string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	writer := os.Stderr
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cannot open log file %s: %v, falling back to stderr\n", logFile, err)
		} else {
			writer = f
		}
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler)
}
