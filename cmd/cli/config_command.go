package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	configCommandUseConstant                 = "config"
	configCommandShortDescriptionConstant    = "Print the effective configuration"
	configCommandLongDescriptionConstant     = "config prints the configuration after embedded defaults, the configuration file, .env files, and ISSUEMIGRATE_* environment variables are merged. The access token is redacted."
	redactedSecretValueConstant              = "<redacted>"
	configurationEncodeErrorTemplateConstant = "unable to encode configuration: %w"
)

func (application *Application) buildConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:           configCommandUseConstant,
		Short:         configCommandShortDescriptionConstant,
		Long:          configCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			encodedConfiguration, encodeError := application.effectiveConfigurationYAML()
			if encodeError != nil {
				return encodeError
			}
			_, writeError := command.OutOrStdout().Write(encodedConfiguration)
			return writeError
		},
	}
}

func (application *Application) effectiveConfigurationYAML() ([]byte, error) {
	printable := application.configuration
	printable.Migration = printable.Migration.Sanitize()
	if len(printable.Migration.GitHub.AccessToken) > 0 {
		printable.Migration.GitHub.AccessToken = redactedSecretValueConstant
	}

	encodedConfiguration, encodeError := yaml.Marshal(printable)
	if encodeError != nil {
		return nil, fmt.Errorf(configurationEncodeErrorTemplateConstant, encodeError)
	}
	return encodedConfiguration, nil
}
