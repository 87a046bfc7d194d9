package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/cocoseg/internal/config"
	"github.com/MeKo-Tech/cocoseg/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "cocoseg",
	Short: "Segmentation masks for COCO annotation stores",
	Long: `cocoseg turns the bounding boxes of a COCO annotation store into polygon
segmentations and renders segmentation masks onto page images.

This tool provides:
- Mask synthesis: every bbox becomes a 4-corner polygon with matching area
- Mask rendering: polygon and RLE segmentations alpha-blended onto an image
- Batch rendering of every image referenced by a store
- Store validation and an HTTP API

Examples:
  cocoseg synthesize results.json
  cocoseg render page-001.png 1 new_results.json --alpha 0.4
  cocoseg batch new_results.json --images-dir pages --output-dir overlays
  cocoseg serve --port 8080`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.Flags().GetBool("version")
		if v {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the root command and exits non-zero on failure.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $XDG_CONFIG_HOME/cocoseg, /etc/cocoseg)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().Bool("version", false, "print version information and exit")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}

		var logLevel slog.Level
		if globalConfig.Verbose {
			logLevel = slog.LevelDebug
		} else {
			switch globalConfig.LogLevel {
			case "debug":
				logLevel = slog.LevelDebug
			case "warn":
				logLevel = slog.LevelWarn
			case "error":
				logLevel = slog.LevelError
			default:
				logLevel = slog.LevelInfo
			}
		}

		// Logs go to stderr; stdout carries command output.
		logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
		return nil
	}
}

// initConfig reads in the config file and ENV variables. Each invocation
// starts from a fresh viper instance bound to the global flags.
func initConfig() error {
	v := viper.New()
	_ = v.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	configLoader = config.NewLoaderWithViper(v)

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	if used := configLoader.GetConfigFileUsed(); used != "" {
		slog.Debug("Loaded configuration", "file", used)
	}
	return nil
}

// GetConfig returns the global configuration.
func GetConfig() *config.Config {
	if globalConfig == nil {
		if err := initConfig(); err != nil {
			slog.Warn("Falling back to default configuration", "error", err)
			cfg := config.DefaultConfig()
			globalConfig = &cfg
		}
	}
	return globalConfig
}
