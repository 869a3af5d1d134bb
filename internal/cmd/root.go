package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Iron-Ham/bufferlab/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "bufferlab",
	Short: "Concurrency coordination lab",
	Long: `Bufferlab runs small concurrency experiments on goroutine pools:
a shared counter raced with and without a lock, a producer/consumer
pipeline over a bounded buffer, and a CPU-bound scaling comparison.`,
	SilenceUsage: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the running
// experiment, which stops its workers and still prints what was measured.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.config/bufferlab/config.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-dir", "", "write logs to bufferlab.log in this directory instead of stderr")
	flags.StringP("format", "o", "", "output format: text, json, yaml")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("logging.dir", flags.Lookup("log-dir"))
	_ = viper.BindPFlag("output.format", flags.Lookup("format"))
	_ = viper.BindPFlag("metrics.addr", flags.Lookup("metrics-addr"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/bufferlab")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("BUFFERLAB")
	// Replace dots with underscores for nested keys in env vars
	// e.g., BUFFERLAB_RACE_ITERATIONS for race.iterations
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
