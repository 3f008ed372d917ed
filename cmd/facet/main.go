package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"facet/pkg/config"
)

var (
	version = "devel"

	// configFile is the optional YAML file passed with --config.
	configFile string

	// cfg is resolved before any subcommand runs.
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:               "facet [command]",
		Short:             "Filter the RubyGems versions feed by gem name",
		PersistentPreRunE: preRun,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number and exit.",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("%s version %s\n", cmd.Root().Name(), version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(versionCmd)
}

func preRun(cmd *cobra.Command, args []string) error {
	c, err := config.Load(viper.GetViper(), configFile)
	if err != nil {
		return err
	}
	cfg = c
	return setupLogging(cfg.Log)
}

// setupLogging sends logs to stderr so stdout stays free for filtered
// output.
func setupLogging(lc config.LogConfig) error {
	level, err := log.ParseLevel(lc.Level)
	if err != nil {
		return errors.Wrapf(ErrLogLevel, "%q", lc.Level)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	switch lc.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return errors.Wrapf(ErrLogFormat, "%q", lc.Format)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Fatal(err)
	}
}
