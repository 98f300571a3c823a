package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/photodump/internal/common"
	"github.com/Veraticus/photodump/internal/config"
)

var (
	cfgFile string
	version = "dev"
	rootCmd = &cobra.Command{
		Use:   "photodump",
		Short: "📷 Curated photo dump selector",
		Long: `photodump turns an unsorted photo album into a curated dump: every photo
is assigned to one of your categories, ranked by a blend of aesthetic and
similarity scores, and only the best shots per category survive.`,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/photodump/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")

	// Bind flags to viper
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	// Add commands
	rootCmd.AddCommand(dumpCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(albumCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(clearCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received interrupt signal, shutting down gracefully...")
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel() // Always cleanup

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	// Set up config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		// Search for config in standard locations
		viper.AddConfigPath(fmt.Sprintf("%s/.config/photodump", home))
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("PHOTODUMP")
	viper.AutomaticEnv()

	setDefaults()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	// Set up logging
	if err := setupLogging(); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	return nil
}

func setDefaults() {
	dataDir := config.DataDir()

	viper.SetDefault("dirs.uploads", filepath.Join(dataDir, "uploads"))
	viper.SetDefault("dirs.output", filepath.Join(dataDir, "output"))
	viper.SetDefault("database.path", filepath.Join(dataDir, "photodump.db"))

	viper.SetDefault("server.addr", ":8000")
	viper.SetDefault("categories.file", filepath.Join(dataDir, "photodump_list.txt"))

	viper.SetDefault("pipeline.batch_size", 4)
	viper.SetDefault("pipeline.pre_filter", 100)
	viper.SetDefault("pipeline.keep_top_k", 1)
	viper.SetDefault("pipeline.aesthetic_weight", 0.6)
	viper.SetDefault("pipeline.dedupe_distance", 0)

	viper.SetDefault("models.runtime_lib", "")
	viper.SetDefault("models.clip", filepath.Join(dataDir, "models", "clip.onnx"))
	viper.SetDefault("models.tokenizer", filepath.Join(dataDir, "models", "tokenizer.json"))
	viper.SetDefault("models.aesthetic", filepath.Join(dataDir, "models", "aesthetic.onnx"))
}

func setupLogging() error {
	level := viper.GetString("logging.level")
	format := viper.GetString("logging.format")

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return fmt.Errorf("invalid log level: %s", level)
	}

	return common.SetupLogger(slogLevel, format)
}
