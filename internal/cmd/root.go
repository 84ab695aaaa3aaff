// Package cmd provides the command-line interface for supplycheck.
// It handles command parsing, configuration loading, and wiring of the
// check and feed runs.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/masahif/supplycheck/internal/config"
	"github.com/masahif/supplycheck/internal/logging"
)

const envPrefix = "SC"

var (
	cfgFile   string
	version   string
	buildTime string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "supplycheck",
	Short: "Supplier page checker for marketplace inventories",
	Long: `supplycheck checks the supplier pages of an inventory through a pool of
authenticated proxies.

It records stock, price and shipping changes, flags listings that can no
longer be fulfilled and prepares marketplace listing feeds from the results.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets version information for the CLI
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Configuration file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./supplycheck.yml)")

	// Configuration management flags
	rootCmd.PersistentFlags().Bool("show-config", false, "Display current configuration in YAML format and exit")

	// Logging flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format: json or text")
	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to this file")

	bindFlags(rootCmd, []flagBinding{
		{"log.level", "log-level"},
		{"log.format", "log-format"},
		{"log.file", "log-file"},
	})

	rootCmd.AddCommand(checkCmd, feedCmd)
}

type flagBinding struct {
	viperKey string
	flagName string
}

// bindFlags binds local or persistent flags of cmd to viper keys.
func bindFlags(cmd *cobra.Command, bindings []flagBinding) {
	for _, bind := range bindings {
		flag := cmd.Flags().Lookup(bind.flagName)
		if flag == nil {
			flag = cmd.PersistentFlags().Lookup(bind.flagName)
		}
		if err := viper.BindPFlag(bind.viperKey, flag); err != nil {
			// Log the error but continue - non-critical for operation
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", bind.flagName, err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in current directory
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("supplycheck")
	}

	setupEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// envKeys are settings without a flag that may still come from SC_*
// variables. viper only resolves environment variables for keys it knows.
var envKeys = []string{
	"shop_name",
	"proxies_file",
	"proxy_api.url",
	"proxy_api.api_key",
	"proxy_api.api_key_env",
	"repricer_exceptions_file",
	"notify.timeout",
	"notify.proxies",
	"log.max_size_mb",
	"log.max_backups",
}

func setupEnv() {
	viper.AutomaticEnv() // read in environment variables that match
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	for _, key := range envKeys {
		if err := viper.BindEnv(key); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind environment for %s: %v\n", key, err)
		}
	}
}

// loadConfig builds the run configuration from defaults, the config file,
// environment variables and flags.
func loadConfig() (*config.CheckConfig, error) {
	cfg := config.DefaultConfig()

	// Override with viper values
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Request headers from SC_HEADER_* variables
	cfg.LoadHeadersFromEnv()

	if err := cfg.LoadLists(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging installs the configured logger as the slog default.
func setupLogging(cfg *config.CheckConfig) (io.Closer, error) {
	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.Log.Level)
	logCfg.Format = cfg.Log.Format
	logCfg.FilePath = cfg.Log.File
	logCfg.MaxSize = int64(cfg.Log.MaxSizeMB)
	logCfg.MaxBackups = cfg.Log.MaxBackups
	return logging.SetDefault(*logCfg)
}

func showCurrentConfig(w io.Writer, cfg *config.CheckConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	// Validate configuration before showing it
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Configuration validation failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "Displaying configuration anyway...\n\n")
	}

	// Mask the vendor key
	shown := *cfg
	if shown.ProxyAPI.APIKey != "" {
		shown.ProxyAPI.APIKey = "********"
	}

	yamlData, err := yaml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	// Add header comment to the output
	fmt.Fprintf(w, "# Current supplycheck Configuration\n")
	fmt.Fprintf(w, "# Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(w, "# Configuration file search paths: ./supplycheck.yml\n")
	fmt.Fprintf(w, "# Environment variables prefix: %s_\n\n", envPrefix)

	fmt.Fprint(w, string(yamlData))

	// Add footer with additional information
	fmt.Fprintf(w, "\n# Configuration source priority:\n")
	fmt.Fprintf(w, "# 1. Command-line arguments (highest priority)\n")
	fmt.Fprintf(w, "# 2. Environment variables (%s_ prefix)\n", envPrefix)
	fmt.Fprintf(w, "# 3. Configuration file (supplycheck.yml)\n")
	fmt.Fprintf(w, "# 4. Default values (lowest priority)\n")

	return nil
}
