package main

import (
	"context"
	"fmt"

	"github.com/bundlekit/bundlekit/internal/runner"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var unpackCommand = &cli.Command{
	Name:  "unpack",
	Usage: "Unpack bundle archives and print the extension mapping",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      "config",
			UsageText: "The unpack configuration file",
		},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		logger := getLogger(ctx)

		configFilename := command.StringArg("config")
		configFile, configName, err := readConfigFile(ctx, configFilename)
		if err != nil {
			return fmt.Errorf("failed to read config file '%s': %w", configFilename, err)
		}

		cfg, err := runner.ParseUnpackConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to parse config '%s': %w", configName, err)
		}

		r := runner.New(logger.Named("runner"), cfg)

		result, err := r.Run(ctx)
		if err != nil {
			return fmt.Errorf("failed to run unpack: %w", err)
		}

		for _, name := range result.ExtensionNames() {
			bundleID, _ := result.Lookup(name)
			fmt.Printf("%s\t%s\n", name, bundleID)
		}

		for _, warning := range result.Warnings {
			logger.Warn(warning.Message, zap.String("kind", string(warning.Kind)))
		}

		return nil
	},
}
