// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/csvmapper-cli/internal/config"
	"github.com/xkilldash9x/csvmapper-cli/internal/observability"
)

const (
	envPrefix         = "CSVMAPPER"
	defaultConfigName = ".csvmapper"
)

// cli carries the state shared by the commands of one invocation. A fresh
// instance per NewRootCommand keeps interactive runs independent.
type cli struct {
	v       *viper.Viper
	cfgFile string
	output  string

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCommand builds the complete command tree.
func NewRootCommand() *cobra.Command {
	c := &cli{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:           "csvmapper",
		Short:         "csvmapper manages CSV sources, graphs and datasets of a csv mapper server.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initialize(cmd)
		},
	}
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&c.cfgFile, "config", "c", "", "config file (default is $HOME/.csvmapper.yaml)")
	flags.String("base-url", "", "server base URL (overrides server.base_url)")
	flags.StringP("username", "u", "", "login username (overrides server.username)")
	flags.StringVarP(&c.output, "output", "o", "table", "output format: table or json")
	_ = c.v.BindPFlag("server.base_url", flags.Lookup("base-url"))
	_ = c.v.BindPFlag("server.username", flags.Lookup("username"))

	rootCmd.AddCommand(
		newVersionCmd(),
		newLoginCmd(c),
		newSourceCmd(c),
		newGraphCmd(c),
		newDatasetCmd(c),
		newFormCmd(c),
	)
	return rootCmd
}

// Execute runs the root command with ctx and logs a failure.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	observability.Sync()
	return err
}

// initialize loads .env, the config file and the environment, then starts
// the logger.
func (c *cli) initialize(cmd *cobra.Command) error {
	if c.output != "table" && c.output != "json" {
		return fmt.Errorf("unsupported output format %q (want table or json)", c.output)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	if err := c.readConfig(); err != nil {
		return err
	}

	cfg, err := config.NewConfigFromViper(c.v)
	if err != nil {
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "csvmapper"})
		return err
	}
	c.cfg = cfg

	observability.InitializeLogger(cfg.Logger())
	c.logger = observability.GetLogger()
	c.logger.Debug("Configuration loaded",
		zap.String("command", cmd.CommandPath()),
		zap.String("base_url", cfg.Server().BaseURL),
		zap.String("config_file", c.v.ConfigFileUsed()))
	return nil
}

func (c *cli) readConfig() error {
	config.SetDefaults(c.v)

	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return fmt.Errorf("failed to locate home directory: %w", err)
		}
		c.v.AddConfigPath(home)
		c.v.SetConfigName(defaultConfigName)
		c.v.SetConfigType("yaml")
	}

	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	c.v.AutomaticEnv()

	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file %s: %w", c.v.ConfigFileUsed(), err)
		}
	}
	return nil
}
