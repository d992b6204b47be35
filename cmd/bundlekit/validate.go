package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bundlekit/bundlekit/internal/runner"
	"github.com/go-playground/validator/v10"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var validateCommand = &cli.Command{
	Name:  "validate",
	Usage: "Validate an unpack configuration file",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      "config",
			UsageText: "The configuration file to validate",
		},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		logger := getLogger(ctx)

		configFilename := command.StringArg("config")
		configFile, configName, err := readConfigFile(ctx, configFilename)
		if err != nil {
			return fmt.Errorf("failed to read config file '%s': %w", configFilename, err)
		}

		logger = logger.With(zap.String("config_filename", configName))
		logger.Debug("validating config file")

		if _, err := runner.ParseUnpackConfig(configFile); err != nil {
			fmt.Println(formatValidationError(err))
			return fmt.Errorf("config file '%s' is invalid", configName)
		}

		fmt.Printf("✓ Config file '%s' is valid\n", configName)
		return nil
	},
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("config file has %d validation error(s):", len(validationErrs)))
		for _, fe := range validationErrs {
			sb.WriteString(fmt.Sprintf("\n  • %s: failed '%s' validation", fe.Namespace(), fe.Tag()))
			if fe.Param() != "" {
				sb.WriteString(fmt.Sprintf(" (param: %s)", fe.Param()))
			}
		}
		return errors.New(sb.String())
	}
	return err
}
