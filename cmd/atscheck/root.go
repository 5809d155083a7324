package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/atscore/internal/config"
	logpkg "github.com/kailas-cloud/atscore/internal/logger"
)

const cliName = "atscheck"

type rootOptions struct {
	configFile string
	env        string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          cliName,
		Short:        "atscheck estimates how well a resume matches a job description",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "",
		"config file (default is config/<env>.yaml)")
	cmd.PersistentFlags().StringVar(&opts.env, "env", config.GetEnv(), "environment: local, dev, docker or prod")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	cmd.AddCommand(
		newScoreCmd(opts),
		newExtractCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	if o.configFile != "" {
		return config.LoadFile(o.configFile) //nolint:wrapcheck // already descriptive
	}
	return config.Load(o.env) //nolint:wrapcheck // already descriptive
}

func (o *rootOptions) logger() (*zap.Logger, error) {
	env := o.env
	if env != "prod" {
		env = "local"
	}
	l, err := logpkg.NewLogger(env, o.logLevel, zap.String("service", cliName))
	if err != nil {
		return nil, fmt.Errorf("creating a logger: %w", err)
	}
	return l, nil
}
