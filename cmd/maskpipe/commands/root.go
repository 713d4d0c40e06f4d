package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/maskpipe/maskpipe/internal/config"
	"github.com/maskpipe/maskpipe/internal/logger"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "maskpipe",
		Short: "maskpipe - Live background removal split across two processes",
		Long: `maskpipe splits live background removal into two cooperating processes:

  maskpipe capture   grabs camera frames, previews them, ships them out
  maskpipe process   removes backgrounds and writes the results to disk

The capture side stays responsive no matter how slow inference runs:
the frame link buffers a handful of frames and drops the oldest under
load instead of stalling capture.`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/maskpipe/config.yaml)")
	rootCmd.PersistentFlags().String("addr", "", "frame link address (default is localhost:6100)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("pretty", false, "human-readable log output")

	// Bind flags to viper
	viper.BindPFlag("addr", rootCmd.PersistentFlags().Lookup("addr"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("pretty", rootCmd.PersistentFlags().Lookup("pretty"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file and applies global flag overrides.
func loadConfig() (*config.Config, error) {
	configMgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config manager: %w", err)
	}

	cfg := configMgr.Get()
	if addr := viper.GetString("addr"); addr != "" {
		cfg.Transport.Addr = addr
	}
	if level := viper.GetString("log_level"); level != "" {
		cfg.LogLevel = level
	}

	logger.Init(cfg.LogLevel, viper.GetBool("pretty"))
	logger.Get().Info().
		Str("config", configMgr.GetConfigPath()).
		Str("addr", cfg.Transport.Addr).
		Msg("Configuration loaded")
	return cfg, nil
}
