package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/issuemigrate/internal/migrate"
	"github.com/temirov/issuemigrate/internal/utils"
)

const (
	applicationNameConstant                = "issue-migrate"
	applicationShortDescriptionConstant    = "Migrate Bitbucket issues into GitHub"
	applicationLongDescriptionConstant     = "issue-migrate replays a Bitbucket issue export into a GitHub repository through the GitHub CLI, rebuilding labels and milestones and pacing every API call."
	configFileFlagNameConstant             = "config"
	configFileFlagUsageConstant            = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant               = "log-level"
	logLevelFlagUsageConstant              = "Override common.log_level (debug, info, warn, error)."
	logFormatFlagNameConstant              = "log-format"
	logFormatFlagUsageConstant             = "Override common.log_format (structured or console)."
	commonLogLevelConfigKeyConstant        = "common.log_level"
	commonLogFormatConfigKeyConstant       = "common.log_format"
	environmentPrefixConstant              = "ISSUEMIGRATE"
	environmentFileNameConstant            = ".env"
	configurationNameConstant              = "config"
	configurationTypeConstant              = "yaml"
	defaultConfigurationSearchPathConstant = "."
	configurationLoadErrorTemplateConstant = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant    = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant        = "unable to flush logger: %w"
	configurationLoadedMessageConstant     = "Configuration loaded"
	commandFieldNameConstant               = "command"
	logLevelFieldNameConstant              = "log_level"
	logFormatFieldNameConstant             = "log_format"
	configurationFileFieldNameConstant     = "config_file"
	environmentFilesFieldNameConstant      = "environment_files"
	targetRepositoryFieldNameConstant      = "target_repository"
)

// ApplicationConfiguration is the full configuration tree: shared logging settings and the migration section.
type ApplicationConfiguration struct {
	Common    ApplicationCommonConfiguration `mapstructure:"common" yaml:"common"`
	Migration migrate.Configuration          `mapstructure:"migration" yaml:"migration"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

type rootFlagValues struct {
	configurationFilePath string
	logLevel              string
	logFormat             string
}

// Application owns the root command and the state produced by configuration loading.
type Application struct {
	rootCommand           *cobra.Command
	configurationLoader   *utils.ConfigurationLoader
	loggerFactory         *utils.LoggerFactory
	loggers               utils.LoggerOutputs
	configuration         ApplicationConfiguration
	configurationMetadata utils.LoadedConfiguration
	flagValues            rootFlagValues
}

// NewApplication assembles the root command with the migrate and config subcommands.
func NewApplication() *Application {
	application := &Application{
		configurationLoader: newConfigurationLoader(),
		loggerFactory:       utils.NewLoggerFactory(),
		loggers:             utils.LoggerOutputs{DiagnosticLogger: zap.NewNop()},
	}

	rootCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}
	rootCommand.SetContext(context.Background())

	persistentFlags := rootCommand.PersistentFlags()
	persistentFlags.StringVar(&application.flagValues.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	persistentFlags.StringVar(&application.flagValues.logLevel, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	persistentFlags.StringVar(&application.flagValues.logFormat, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)

	migrateBuilder := migrate.CommandBuilder{
		LoggerProvider:        application.diagnosticLogger,
		ConsoleLoggerProvider: application.consoleLogger,
		ConfigurationProvider: func() migrate.Configuration {
			return application.configuration.Migration
		},
	}
	if migrateCommand, buildError := migrateBuilder.Build(); buildError == nil {
		rootCommand.AddCommand(migrateCommand)
	}
	rootCommand.AddCommand(application.buildConfigCommand())

	application.rootCommand = rootCommand
	return application
}

// Execute runs the command tree under a context cancelled by SIGINT or SIGTERM and flushes the logger.
func (application *Application) Execute() error {
	signalContext, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	executionError := application.rootCommand.ExecuteContext(signalContext)
	if syncError := syncLogger(application.loggers.DiagnosticLogger); syncError != nil && executionError == nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application and runs it.
func Execute() error {
	return NewApplication().Execute()
}

func newConfigurationLoader() *utils.ConfigurationLoader {
	loader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigurationSearchPathConstant},
	)
	loader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())
	loader.SetEnvironmentFiles(environmentFileNameConstant)
	return loader
}

func (application *Application) diagnosticLogger() *zap.Logger {
	return application.loggers.DiagnosticLogger
}

func (application *Application) consoleLogger() *zap.Logger {
	return application.loggers.ConsoleLogger
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatStructured),
	}

	var loadedConfiguration ApplicationConfiguration
	metadata, loadError := application.configurationLoader.LoadConfiguration(application.flagValues.configurationFilePath, defaultValues, &loadedConfiguration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	if rootFlagChanged(command, logLevelFlagNameConstant) {
		loadedConfiguration.Common.LogLevel = application.flagValues.logLevel
	}
	if rootFlagChanged(command, logFormatFlagNameConstant) {
		loadedConfiguration.Common.LogFormat = application.flagValues.logFormat
	}

	loggers, loggerError := application.loggerFactory.CreateLoggerOutputs(
		utils.LogLevel(loadedConfiguration.Common.LogLevel),
		utils.LogFormat(loadedConfiguration.Common.LogFormat),
	)
	if loggerError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerError)
	}

	application.configuration = loadedConfiguration
	application.configurationMetadata = metadata
	application.loggers = loggers

	loggers.DiagnosticLogger.Debug(
		configurationLoadedMessageConstant,
		zap.String(commandFieldNameConstant, command.Name()),
		zap.String(logLevelFieldNameConstant, loadedConfiguration.Common.LogLevel),
		zap.String(logFormatFieldNameConstant, loadedConfiguration.Common.LogFormat),
		zap.String(configurationFileFieldNameConstant, metadata.ConfigFileUsed),
		zap.Strings(environmentFilesFieldNameConstant, metadata.EnvironmentFilesLoaded),
		zap.String(targetRepositoryFieldNameConstant, loadedConfiguration.Migration.GitHub.Repository),
	)
	return nil
}

// rootFlagChanged reports whether a persistent root flag was set on the command line.
func rootFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}
	if command.Flags().Changed(flagName) {
		return true
	}
	return command.Root().PersistentFlags().Changed(flagName)
}

// syncLogger flushes logger, ignoring the errors returned when stderr is a terminal or pipe.
func syncLogger(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	syncError := logger.Sync()
	if errors.Is(syncError, syscall.ENOTSUP) || errors.Is(syncError, syscall.EINVAL) {
		return nil
	}
	return syncError
}
