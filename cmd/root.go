package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/avhost/av/cmd/config"
	"github.com/avhost/av/cmd/devices"
	"github.com/avhost/av/cmd/play"
	"github.com/avhost/av/cmd/render"
	"github.com/avhost/av/internal/buildinfo"
	"github.com/avhost/av/internal/conf"
	"github.com/avhost/av/internal/logger"
	"github.com/avhost/av/internal/telemetry"
)

// telemetryFlushTimeout bounds the wait for buffered error reports on exit
const telemetryFlushTimeout = 2 * time.Second

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "av",
		Short:         "Real-time audio stream host",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		panic(err)
	}

	versionCmd := versionCommand()
	configCmd := config.Command(settings)

	rootCmd.AddCommand(
		devices.Command(settings),
		play.Command(settings),
		render.Command(settings),
		configCmd,
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// version and config do not need logging or telemetry
		if cmd == versionCmd || cmd.Parent() == configCmd {
			return nil
		}
		return initialize(settings)
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		telemetry.Shutdown(telemetryFlushTimeout)
		_ = logger.Global().Close()
	}

	return rootCmd
}

// initialize is called before any subcommand runs, after flags are parsed.
// It sets up the central logger and, when enabled, Sentry.
func initialize(settings *conf.Settings) error {
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	cl, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(cl)

	if !settings.Sentry.Enabled {
		return nil
	}

	paths, err := conf.GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	systemID, err := telemetry.LoadOrCreateSystemID(paths[0])
	if err != nil {
		return fmt.Errorf("failed to load system ID: %w", err)
	}
	info := buildinfo.New(systemID)
	return telemetry.InitSentry(&settings.Sentry, info.GetVersion(), info.GetSystemID())
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().BoolVar(&settings.Sentry.Enabled, "telemetry", viper.GetBool("sentry.enabled"), "Enable error reporting to Sentry")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := viper.BindPFlag("sentry.enabled", rootCmd.PersistentFlags().Lookup("telemetry")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildinfo.New("")
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "av %s (built %s)\n", info.GetVersion(), info.GetBuildDate())
			return err
		},
	}
}
