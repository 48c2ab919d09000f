package ui_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/issuemigrate/internal/execshell"
	"github.com/temirov/issuemigrate/internal/ui"
)

const (
	testRequestLabelExpectationConstant    = "POST repos/octo/widgets/issues on github.example.com"
	testExecutionFailureReasonConstant     = "executable file not found in $PATH"
	testStandardErrorMessageConstant       = "gh: Validation Failed (HTTP 422)"
	testStartMessageExpectationConstant    = "Calling " + testRequestLabelExpectationConstant
	testSuccessMessageExpectationConstant  = "Completed " + testRequestLabelExpectationConstant
	testFailureMessageExpectationConstant  = testRequestLabelExpectationConstant + " failed with exit code 1: " + testStandardErrorMessageConstant
	testExecutionFailureMessageExpectation = testRequestLabelExpectationConstant + " failed: " + testExecutionFailureReasonConstant
	testPayloadConstant                    = `{"title":"secret body"}`
	testCommandStartedCaseNameConstant     = "command_started"
	testCommandSucceededCaseNameConstant   = "command_completed_success"
	testCommandFailedCaseNameConstant      = "command_completed_failure"
	testCommandExecutionFailedCaseConstant = "command_execution_failure"
	testDefaultMethodCaseNameConstant      = "default_method"
	testNonAPICommandCaseNameConstant      = "non_api_command"
)

func newCreateIssueCommand() execshell.ShellCommand {
	return execshell.ShellCommand{
		Name: execshell.CommandGitHub,
		Details: execshell.CommandDetails{
			Arguments: []string{
				"api", "--include", "--method", "POST",
				"-H", "Accept: application/vnd.github+json",
				"--hostname", "github.example.com",
				"repos/octo/widgets/issues", "--input", "-",
			},
			StandardInput: []byte(testPayloadConstant),
		},
	}
}

func TestConsoleCommandEventLoggerEmitsMessages(testInstance *testing.T) {
	command := newCreateIssueCommand()

	testCases := []struct {
		name            string
		invoke          func(logger *ui.ConsoleCommandEventLogger)
		expectedLevel   zapcore.Level
		expectedMessage string
	}{
		{
			name: testCommandStartedCaseNameConstant,
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandStarted(command)
			},
			expectedLevel:   zapcore.DebugLevel,
			expectedMessage: testStartMessageExpectationConstant,
		},
		{
			name: testCommandSucceededCaseNameConstant,
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandCompleted(command, execshell.ExecutionResult{ExitCode: 0})
			},
			expectedLevel:   zapcore.InfoLevel,
			expectedMessage: testSuccessMessageExpectationConstant,
		},
		{
			name: testCommandFailedCaseNameConstant,
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandCompleted(command, execshell.ExecutionResult{ExitCode: 1, StandardError: testStandardErrorMessageConstant + "\n"})
			},
			expectedLevel:   zapcore.WarnLevel,
			expectedMessage: testFailureMessageExpectationConstant,
		},
		{
			name: testCommandExecutionFailedCaseConstant,
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandExecutionFailed(command, errors.New(testExecutionFailureReasonConstant))
			},
			expectedLevel:   zapcore.ErrorLevel,
			expectedMessage: testExecutionFailureMessageExpectation,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			observerCore, observedLogs := observer.New(zapcore.DebugLevel)
			eventLogger := ui.NewConsoleCommandEventLogger(zap.New(observerCore))

			testCase.invoke(eventLogger)

			entries := observedLogs.All()
			require.Len(testInstance, entries, 1)
			require.Equal(testInstance, testCase.expectedLevel, entries[0].Level)
			require.Equal(testInstance, testCase.expectedMessage, entries[0].Message)
			require.NotContains(testInstance, entries[0].Message, "secret body")
		})
	}
}

func TestCommandEventFormatterRequestLabels(testInstance *testing.T) {
	testCases := []struct {
		name            string
		command         execshell.ShellCommand
		expectedMessage string
	}{
		{
			name: testDefaultMethodCaseNameConstant,
			command: execshell.ShellCommand{
				Name:    execshell.CommandGitHub,
				Details: execshell.CommandDetails{Arguments: []string{"api", "--include", "repos/octo/widgets/labels?page=1&per_page=100"}},
			},
			expectedMessage: "Completed GET repos/octo/widgets/labels?page=1&per_page=100",
		},
		{
			name: testNonAPICommandCaseNameConstant,
			command: execshell.ShellCommand{
				Name:    execshell.CommandGitHub,
				Details: execshell.CommandDetails{Arguments: []string{"auth", "status"}},
			},
			expectedMessage: "Completed gh auth status",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expectedMessage, ui.CommandEventFormatter{}.BuildSuccessMessage(testCase.command))
		})
	}
}
