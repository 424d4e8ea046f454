package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vinayprograms/voyagekit/config"
	"github.com/vinayprograms/voyagekit/credentials"
	"github.com/vinayprograms/voyagekit/gateway"
	"github.com/vinayprograms/voyagekit/logging"
)

var rootCmd = &cobra.Command{
	Use:   "voyage",
	Short: "Rate limited embedding and rerank client",
	Long: `voyage sends embedding and rerank requests while keeping within the
per-minute token budgets of each call class.

Settings come from a TOML config file, VOYAGE_* environment variables and
flags, in increasing order of precedence.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (TOML)")
	flags.String("credentials", "", "credentials file (default: standard locations)")
	flags.String("log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("base-url", "", "API base URL")
	flags.String("accounting", "", "rate limit accounting (reserve, check)")

	viper.BindPFlag("config", flags.Lookup("config"))
	viper.BindPFlag("credentials", flags.Lookup("credentials"))
	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("api.base_url", flags.Lookup("base-url"))
	viper.BindPFlag("limits.accounting", flags.Lookup("accounting"))

	viper.SetEnvPrefix("VOYAGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// loadConfig reads the config file, if any, and overlays flags and
// environment variables on top of it.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if path := viper.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if viper.IsSet("log.level") {
		cfg.Log.Level = viper.GetString("log.level")
	}
	if viper.IsSet("api.base_url") {
		cfg.API.BaseURL = viper.GetString("api.base_url")
	}
	if viper.IsSet("api.embedding_model") {
		cfg.API.EmbeddingModel = viper.GetString("api.embedding_model")
	}
	if viper.IsSet("api.rerank_top_k") {
		cfg.API.RerankTopK = viper.GetInt("api.rerank_top_k")
	}
	if viper.IsSet("limits.accounting") {
		cfg.Limits.Accounting = viper.GetString("limits.accounting")
	}

	key, err := credentials.Resolve(viper.GetString("credentials"))
	if err != nil {
		return config.Config{}, err
	}
	cfg.API.APIKey = key
	return cfg, nil
}

// newGateway builds a gateway from the merged configuration. Logs go to
// stderr so command output stays clean.
func newGateway() (*gateway.Gateway, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logging.ParseLevel(cfg.Log.Level))
	return gateway.New(cfg, gateway.WithLogger(logger))
}
