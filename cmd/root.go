// Package cmd implements the mintmark command-line interface: the
// pricing and grading worker loops and the one-shot reclamation sweep.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug forces debug-level logging.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "mintmark",
		Short: "Collectible-coin pricing and grading workers",
		Long:  `Job workers that collect market listings, compute valuations, and estimate grading ROI for coin intakes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment variables are visible to viper.
	_ = godotenv.Load()

	_ = rootCmd.ParseFlags(os.Args[1:])

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("worker-id", "", "worker identifier (default from WORKER_ID or config)")
	rootCmd.PersistentFlags().Duration("poll-interval", 0, "queue poll interval (default from config)")

	rootCmd.AddCommand(workerCommand())
	rootCmd.AddCommand(graderCommand())
	rootCmd.AddCommand(reclaimCommand())
	rootCmd.AddCommand(versionCommand())
}

// initConfig layers configuration: defaults, then the optional config
// file, then environment variables, then flags.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; env vars and defaults cover everything.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Warning: config file not read: %v\n", err)
		}
	}

	if err := bindEnvVars(); err != nil {
		return err
	}
	if err := bindFlags(); err != nil {
		return err
	}

	if debug {
		viper.Set("logger.level", "debug")
	}

	return nil
}

func bindFlags() error {
	if err := viper.BindPFlag("worker.id", rootCmd.PersistentFlags().Lookup("worker-id")); err != nil {
		return fmt.Errorf("failed to bind worker-id flag: %w", err)
	}
	if err := viper.BindPFlag("worker.poll_interval", rootCmd.PersistentFlags().Lookup("poll-interval")); err != nil {
		return fmt.Errorf("failed to bind poll-interval flag: %w", err)
	}
	return nil
}

func bindEnvVars() error {
	bindings := map[string][]string{
		"worker.id":                  {"WORKER_ID"},
		"worker.poll_interval":       {"POLL_INTERVAL"},
		"worker.lock_timeout":        {"JOB_LOCK_TIMEOUT"},
		"database.host":              {"DATABASE_HOST"},
		"database.port":              {"DATABASE_PORT"},
		"database.user":              {"DATABASE_USER"},
		"database.password":          {"DATABASE_PASSWORD"},
		"database.dbname":            {"DATABASE_NAME"},
		"database.sslmode":           {"DATABASE_SSLMODE"},
		"redis.addr":                 {"REDIS_ADDR"},
		"redis.password":             {"REDIS_PASSWORD"},
		"cache.enabled":              {"CACHE_ENABLED"},
		"cache.ttl":                  {"CACHE_TTL"},
		"marketplace.client_id":      {"EBAY_CLIENT_ID"},
		"marketplace.client_secret":  {"EBAY_CLIENT_SECRET"},
		"marketplace.marketplace_id": {"EBAY_MARKETPLACE_ID"},
		"logger.level":               {"LOG_LEVEL"},
		"logger.encoding":            {"LOG_FORMAT"},
		"metrics.enabled":            {"METRICS_ENABLED"},
		"metrics.addr":               {"METRICS_ADDR"},
	}

	for key, envs := range bindings {
		if err := viper.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}
