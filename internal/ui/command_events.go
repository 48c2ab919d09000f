package ui

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/issuemigrate/internal/execshell"
)

const (
	commandStartedMessageTemplateConstant          = "Calling %s"
	commandCompletedMessageTemplateConstant        = "Completed %s"
	commandFailedExitCodeMessageTemplateConstant   = "%s failed with exit code %d"
	commandExecutionFailureMessageTemplateConstant = "%s failed: %s"
	standardErrorSuffixTemplateConstant            = ": %s"
	commandArgumentsJoinSeparatorConstant          = " "
	methodArgumentConstant                         = "--method"
	headerArgumentConstant                         = "-H"
	hostnameArgumentConstant                       = "--hostname"
	inputArgumentConstant                          = "--input"
	flagPrefixConstant                             = "-"
	defaultRequestMethodConstant                   = "GET"
	hostnameSuffixTemplateConstant                 = " on %s"
	unknownFailureMessageConstant                  = "unknown error"
	emptyStringConstant                            = ""
)

// CommandEventFormatter builds human-readable messages for gh api invocations.
// Only the request line is shown; request payloads and headers are never printed.
type CommandEventFormatter struct{}

// BuildStartedMessage formats the message describing a request about to be sent.
func (formatter CommandEventFormatter) BuildStartedMessage(command execshell.ShellCommand) string {
	return fmt.Sprintf(commandStartedMessageTemplateConstant, formatter.formatRequestLabel(command))
}

// BuildSuccessMessage formats the message describing a request whose gh process exited cleanly.
func (formatter CommandEventFormatter) BuildSuccessMessage(command execshell.ShellCommand) string {
	return fmt.Sprintf(commandCompletedMessageTemplateConstant, formatter.formatRequestLabel(command))
}

// BuildFailureMessage formats the message describing a gh process that returned a non-zero exit code.
func (formatter CommandEventFormatter) BuildFailureMessage(command execshell.ShellCommand, result execshell.ExecutionResult) string {
	baseMessage := fmt.Sprintf(commandFailedExitCodeMessageTemplateConstant, formatter.formatRequestLabel(command), result.ExitCode)
	trimmedStandardError := strings.TrimSpace(result.StandardError)
	if len(trimmedStandardError) == 0 {
		return baseMessage
	}
	return baseMessage + fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

// BuildExecutionFailureMessage formats the message describing a gh process that could not be run.
func (formatter CommandEventFormatter) BuildExecutionFailureMessage(command execshell.ShellCommand, failure error) string {
	failureMessage := unknownFailureMessageConstant
	if failure != nil {
		failureMessage = failure.Error()
	}
	return fmt.Sprintf(commandExecutionFailureMessageTemplateConstant, formatter.formatRequestLabel(command), failureMessage)
}

// formatRequestLabel reduces "gh api --include --method POST -H ... repos/o/r/issues --input -"
// to "POST repos/o/r/issues". Commands that are not gh api calls are shown verbatim.
func (formatter CommandEventFormatter) formatRequestLabel(command execshell.ShellCommand) string {
	arguments := command.Details.Arguments
	if command.Name != execshell.CommandGitHub || len(arguments) == 0 || arguments[0] != "api" {
		return strings.TrimSpace(string(command.Name) + commandArgumentsJoinSeparatorConstant + strings.Join(arguments, commandArgumentsJoinSeparatorConstant))
	}

	method := defaultRequestMethodConstant
	endpoint := emptyStringConstant
	hostname := emptyStringConstant
	for argumentIndex := 1; argumentIndex < len(arguments); argumentIndex++ {
		argument := arguments[argumentIndex]
		switch argument {
		case methodArgumentConstant:
			if argumentIndex+1 < len(arguments) {
				argumentIndex++
				method = arguments[argumentIndex]
			}
		case hostnameArgumentConstant:
			if argumentIndex+1 < len(arguments) {
				argumentIndex++
				hostname = arguments[argumentIndex]
			}
		case headerArgumentConstant, inputArgumentConstant:
			argumentIndex++
		default:
			if !strings.HasPrefix(argument, flagPrefixConstant) && len(endpoint) == 0 {
				endpoint = argument
			}
		}
	}

	label := method + commandArgumentsJoinSeparatorConstant + endpoint
	if len(hostname) > 0 {
		label += fmt.Sprintf(hostnameSuffixTemplateConstant, hostname)
	}
	return label
}

// ConsoleCommandEventLogger renders command lifecycle events using a zap logger configured for human-readable output.
type ConsoleCommandEventLogger struct {
	logger    *zap.Logger
	formatter CommandEventFormatter
}

// NewConsoleCommandEventLogger constructs a console event logger backed by the provided zap logger.
func NewConsoleCommandEventLogger(logger *zap.Logger) *ConsoleCommandEventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleCommandEventLogger{logger: logger, formatter: CommandEventFormatter{}}
}

// CommandStarted implements execshell.CommandEventObserver. Request starts are logged at debug level.
func (eventLogger *ConsoleCommandEventLogger) CommandStarted(command execshell.ShellCommand) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Debug(eventLogger.formatter.BuildStartedMessage(command))
}

// CommandCompleted implements execshell.CommandEventObserver.
func (eventLogger *ConsoleCommandEventLogger) CommandCompleted(command execshell.ShellCommand, result execshell.ExecutionResult) {
	if eventLogger == nil {
		return
	}
	if result.ExitCode == 0 {
		eventLogger.logger.Info(eventLogger.formatter.BuildSuccessMessage(command))
		return
	}
	eventLogger.logger.Warn(eventLogger.formatter.BuildFailureMessage(command, result))
}

// CommandExecutionFailed implements execshell.CommandEventObserver.
func (eventLogger *ConsoleCommandEventLogger) CommandExecutionFailed(command execshell.ShellCommand, failure error) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Error(eventLogger.formatter.BuildExecutionFailureMessage(command, failure))
}
