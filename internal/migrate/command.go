package migrate

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/issuemigrate/internal/execshell"
	"github.com/temirov/issuemigrate/internal/export"
	"github.com/temirov/issuemigrate/internal/githubauth"
	"github.com/temirov/issuemigrate/internal/githubcli"
	"github.com/temirov/issuemigrate/internal/ratelimit"
	"github.com/temirov/issuemigrate/internal/ui"
)

const (
	commandUseConstant                        = "migrate"
	commandShortDescriptionConstant           = "Migrate Bitbucket issues into a GitHub repository"
	commandLongDescriptionConstant            = "migrate rebuilds labels and milestones in the destination repository, then recreates every exported Bitbucket issue with its comments in ascending id order, pacing requests and waiting out secondary rate limits."
	delayFlagNameConstant                     = "delay"
	delayFlagUsageConstant                    = "Pause between consecutive GitHub API calls (overrides migration.rate_limit.delay)."
	accessTokenFlagNameConstant               = "access-token"
	accessTokenFlagUsageConstant              = "GitHub access token passed to gh (overrides migration.github.access_token and the environment)."
	startIssueFlagNameConstant                = "start-issue"
	startIssueFlagUsageConstant               = "Lowest source issue id to migrate (overrides migration.continue.start_issue_number)."
	exportFlagNameConstant                    = "export"
	exportFlagUsageConstant                   = "Path to the Bitbucket export JSON or its directory (overrides migration.source.export_path)."
	exportReadErrorTemplateConstant           = "unable to read export: %w"
	executorCreationErrorTemplateConstant     = "unable to construct command executor: %w"
	githubClientCreationErrorTemplateConstant = "unable to construct GitHub client: %w"
	invokerCreationErrorTemplateConstant      = "unable to construct rate limited invoker: %w"
	tokenResolvedMessageConstant              = "Using GitHub access token"
	tokenMissingMessageConstant               = "No access token configured; relying on gh stored credentials"
	exportLoadedMessageConstant               = "Export loaded"
	migrationFailedMessageConstant            = "Migration aborted"
	tokenSourceFieldNameConstant              = "token_source"
	tokenEnvironmentVariableFieldConstant     = "environment_variable"
	exportPathFieldNameConstant               = "export_path"
	repositoryTargetFieldNameConstant         = "target_repository"
	issuesMigratedFieldNameConstant           = "issues_migrated"
	lastIssueFieldNameConstant                = "last_issue"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ExportReader loads a Bitbucket export.
type ExportReader interface {
	Read(exportPath string) (*export.Document, error)
}

// CommandBuilder assembles the migrate Cobra command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConsoleLoggerProvider LoggerProvider
	ConfigurationProvider func() Configuration
	Runner                execshell.CommandRunner
	ExportReader          ExportReader
	Clock                 ratelimit.Clock
	EnvironmentLookup     githubauth.EnvironmentLookup
	ReportWriter          io.Writer
}

type commandOptions struct {
	configuration    Configuration
	accessTokenValue string
}

// Build constructs the migrate command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		Long:          commandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.runMigrate,
	}

	command.Flags().Duration(delayFlagNameConstant, ratelimit.DefaultPacingDelay, delayFlagUsageConstant)
	command.Flags().String(accessTokenFlagNameConstant, "", accessTokenFlagUsageConstant)
	command.Flags().Int(startIssueFlagNameConstant, defaultStartIssueNumberConstant, startIssueFlagUsageConstant)
	command.Flags().String(exportFlagNameConstant, "", exportFlagUsageConstant)

	return command, nil
}

func (builder *CommandBuilder) runMigrate(command *cobra.Command, arguments []string) error {
	options, optionsError := builder.parseOptions(command)
	if optionsError != nil {
		return optionsError
	}
	configuration := options.configuration
	logger := builder.resolveLogger()

	resolvedToken := githubauth.ResolveToken(githubauth.TokenRequest{
		FlagValue:          options.accessTokenValue,
		ConfigurationValue: configuration.GitHub.AccessToken,
		LookupEnvironment:  builder.EnvironmentLookup,
	})
	if resolvedToken.Found() {
		logger.Info(
			tokenResolvedMessageConstant,
			zap.String(tokenSourceFieldNameConstant, string(resolvedToken.Source)),
			zap.String(tokenEnvironmentVariableFieldConstant, resolvedToken.EnvironmentVariable),
		)
	} else {
		logger.Warn(tokenMissingMessageConstant)
	}

	document, readError := builder.resolveExportReader().Read(configuration.Source.ExportPath)
	if readError != nil {
		return fmt.Errorf(exportReadErrorTemplateConstant, readError)
	}
	logger.Info(
		exportLoadedMessageConstant,
		zap.String(exportPathFieldNameConstant, configuration.Source.ExportPath),
		zap.Int(issueCountFieldNameConstant, document.IssueCount()),
	)

	executor, executorError := builder.resolveExecutor(logger)
	if executorError != nil {
		return fmt.Errorf(executorCreationErrorTemplateConstant, executorError)
	}

	client, clientError := githubcli.NewClient(executor, githubcli.ClientOptions{
		Repository:  configuration.GitHub.Repository,
		Hostname:    configuration.GitHub.Hostname,
		AccessToken: resolvedToken.Value,
	})
	if clientError != nil {
		return fmt.Errorf(githubClientCreationErrorTemplateConstant, clientError)
	}

	invoker, invokerError := ratelimit.NewInvoker(configuration.RateLimitSettings(), ratelimit.Dependencies{
		RateLimits: client,
		Clock:      builder.Clock,
		Logger:     logger,
	})
	if invokerError != nil {
		return fmt.Errorf(invokerCreationErrorTemplateConstant, invokerError)
	}

	reportWriter := builder.ReportWriter
	if reportWriter == nil {
		reportWriter = command.OutOrStdout()
	}

	service, serviceError := NewService(ServiceDependencies{
		Client:   client,
		Invoker:  invoker,
		Reporter: ui.NewRateLimitReporter(reportWriter),
		Logger:   logger,
	})
	if serviceError != nil {
		return serviceError
	}

	result, migrationError := service.Execute(command.Context(), document, configuration)
	if migrationError != nil {
		logger.Error(
			migrationFailedMessageConstant,
			zap.String(repositoryTargetFieldNameConstant, configuration.GitHub.Repository),
			zap.Int(issuesMigratedFieldNameConstant, result.IssuesMigrated),
			zap.Int(lastIssueFieldNameConstant, result.LastIssueID),
			zap.Int(callCountFieldNameConstant, result.CallCount),
			zap.Error(migrationError),
		)
		return migrationError
	}
	return nil
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command) (commandOptions, error) {
	configuration := builder.resolveConfiguration()
	options := commandOptions{}

	if command != nil {
		flags := command.Flags()
		if flags.Changed(delayFlagNameConstant) {
			delay, delayError := flags.GetDuration(delayFlagNameConstant)
			if delayError != nil {
				return commandOptions{}, delayError
			}
			configuration.RateLimit.Delay = delay
		}
		if flags.Changed(startIssueFlagNameConstant) {
			startIssue, startIssueError := flags.GetInt(startIssueFlagNameConstant)
			if startIssueError != nil {
				return commandOptions{}, startIssueError
			}
			configuration.Continue.StartIssueNumber = startIssue
		}
		if flags.Changed(exportFlagNameConstant) {
			exportPath, _ := flags.GetString(exportFlagNameConstant)
			configuration.Source.ExportPath = strings.TrimSpace(exportPath)
		}
		if flags.Changed(accessTokenFlagNameConstant) {
			options.accessTokenValue, _ = flags.GetString(accessTokenFlagNameConstant)
		}
	}

	configuration = configuration.Sanitize()
	if validationError := configuration.Validate(); validationError != nil {
		return commandOptions{}, validationError
	}
	options.configuration = configuration
	return options, nil
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	var logger *zap.Logger
	if builder.LoggerProvider != nil {
		logger = builder.LoggerProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveExecutor(logger *zap.Logger) (*execshell.ShellExecutor, error) {
	runner := builder.Runner
	if runner == nil {
		runner = execshell.NewOSCommandRunner()
	}

	var observers []execshell.CommandEventObserver
	if builder.ConsoleLoggerProvider != nil {
		if consoleLogger := builder.ConsoleLoggerProvider(); consoleLogger != nil {
			observers = append(observers, ui.NewConsoleCommandEventLogger(consoleLogger))
		}
	}
	return execshell.NewShellExecutor(logger, runner, observers...)
}

func (builder *CommandBuilder) resolveExportReader() ExportReader {
	if builder.ExportReader != nil {
		return builder.ExportReader
	}
	return export.NewReader()
}

func (builder *CommandBuilder) resolveConfiguration() Configuration {
	if builder.ConfigurationProvider == nil {
		return DefaultConfiguration()
	}
	return builder.ConfigurationProvider()
}
