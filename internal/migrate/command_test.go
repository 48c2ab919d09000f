package migrate_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/issuemigrate/internal/execshell"
	"github.com/temirov/issuemigrate/internal/export"
	"github.com/temirov/issuemigrate/internal/githubcli"
	"github.com/temirov/issuemigrate/internal/migrate"
)

const (
	testCommandExportConstant = `{
  "issues": [
    {"id": 1, "title": "Skipped", "reporter": "alice", "content": "one", "created_on": "2013-01-01T00:00:00+00:00", "status": "open", "kind": "bug"},
    {"id": 2, "title": "Crash on start", "reporter": "bob", "content": "two", "created_on": "2013-01-02T00:00:00+00:00", "status": "resolved", "kind": "bug"}
  ],
  "comments": [
    {"id": 7, "issue": 2, "user": "carol", "content": "fixed in tip", "created_on": "2013-01-03T00:00:00+00:00"}
  ],
  "versions": [],
  "milestones": []
}`
	testFlagTokenConstant                 = "flag-token"
	testEnvironmentTokenConstant          = "environment-token"
	testGitHubTokenVariableConstant       = "GH_TOKEN"
	testMethodFlagConstant                = "--method"
	testEndpointPrefixConstant            = "repos/"
	testCreatedIssueNumberConstant        = 100
	testMissingRepositoryCaseNameConstant = "missing_repository"
	testNegativeDelayCaseNameConstant     = "negative_delay_flag"
	testBothReferenceCaseNameConstant     = "both_categories_reference_milestones"
)

type scriptedRequest struct {
	method      string
	endpoint    string
	environment map[string]string
	payload     map[string]any
}

type scriptedGitHubRunner struct {
	requests             []scriptedRequest
	failingRequest       string
	rateLimitedRequest   string
	rateLimitedResponses int
}

func (runner *scriptedGitHubRunner) Run(_ context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	request := scriptedRequest{environment: command.Details.EnvironmentVariables}
	arguments := command.Details.Arguments
	for argumentIndex, argument := range arguments {
		if argument == testMethodFlagConstant && argumentIndex+1 < len(arguments) {
			request.method = arguments[argumentIndex+1]
		}
		if strings.HasPrefix(argument, testEndpointPrefixConstant) {
			request.endpoint = argument
		}
	}
	if len(command.Details.StandardInput) > 0 {
		var decodedPayload any
		if decodingError := json.Unmarshal(command.Details.StandardInput, &decodedPayload); decodingError != nil {
			return execshell.ExecutionResult{}, decodingError
		}
		request.payload, _ = decodedPayload.(map[string]any)
	}
	runner.requests = append(runner.requests, request)

	requestLabel := request.method + " " + request.endpoint
	if len(runner.failingRequest) > 0 && strings.HasPrefix(requestLabel, runner.failingRequest) {
		return execshell.ExecutionResult{
			StandardOutput: scriptedResponse(422, `{"message":"Validation Failed"}`),
			StandardError:  "gh: Validation Failed (HTTP 422)",
			ExitCode:       1,
		}, nil
	}

	if len(runner.rateLimitedRequest) > 0 && strings.HasPrefix(requestLabel, runner.rateLimitedRequest) && runner.rateLimitedResponses == 0 {
		runner.rateLimitedResponses++
		return execshell.ExecutionResult{
			StandardOutput: "HTTP/2.0 403 Forbidden\r\nRetry-After: 90\r\nX-Ratelimit-Limit: 5000\r\nX-Ratelimit-Remaining: 4999\r\nX-Ratelimit-Reset: 1700000000\r\n\r\n" +
				`{"message":"You have exceeded a secondary rate limit.","documentation_url":"https://docs.github.com/rest/overview/rate-limits-for-the-rest-api#about-secondary-rate-limits"}`,
			StandardError: "gh: You have exceeded a secondary rate limit. (HTTP 403)",
			ExitCode:      1,
		}, nil
	}

	switch {
	case request.endpoint == testRepositoryConstant || request.endpoint == testEndpointPrefixConstant+testRepositoryConstant:
		return execshell.ExecutionResult{StandardOutput: scriptedResponse(200, `{"full_name":"octo/widgets","has_issues":true}`)}, nil
	case strings.Contains(request.endpoint, "/milestones"):
		return execshell.ExecutionResult{StandardOutput: scriptedResponse(200, `[]`)}, nil
	case request.method == "POST" && strings.HasSuffix(request.endpoint, "/issues"):
		return execshell.ExecutionResult{StandardOutput: scriptedResponse(201, fmt.Sprintf(`{"number":%d}`, testCreatedIssueNumberConstant))}, nil
	default:
		return execshell.ExecutionResult{StandardOutput: scriptedResponse(200, "")}, nil
	}
}

func (runner *scriptedGitHubRunner) requestLabels() []string {
	requestLabels := make([]string, 0, len(runner.requests))
	for _, request := range runner.requests {
		endpoint := request.endpoint
		if queryIndex := strings.Index(endpoint, "?"); queryIndex >= 0 {
			endpoint = endpoint[:queryIndex]
		}
		requestLabels = append(requestLabels, request.method+" "+endpoint)
	}
	return requestLabels
}

func scriptedResponse(statusCode int, body string) string {
	return fmt.Sprintf("HTTP/2.0 %d Status\r\nX-Ratelimit-Limit: 5000\r\nX-Ratelimit-Remaining: 4999\r\nX-Ratelimit-Reset: 1700000000\r\n\r\n%s", statusCode, body)
}

func writeCommandExport(testInstance *testing.T) string {
	testInstance.Helper()
	exportDirectory := testInstance.TempDir()
	exportPath := filepath.Join(exportDirectory, export.DefaultExportFileName)
	require.NoError(testInstance, os.WriteFile(exportPath, []byte(testCommandExportConstant), 0o600))
	return exportDirectory
}

func newCommandBuilder(runner *scriptedGitHubRunner, configuration migrate.Configuration, reportWriter *bytes.Buffer) *migrate.CommandBuilder {
	return &migrate.CommandBuilder{
		ConfigurationProvider: func() migrate.Configuration { return configuration },
		Runner:                runner,
		Clock:                 &immediateClock{now: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)},
		EnvironmentLookup: func(key string) (string, bool) {
			if key == testGitHubTokenVariableConstant {
				return testEnvironmentTokenConstant, true
			}
			return "", false
		},
		ReportWriter: reportWriter,
	}
}

func executeMigrateCommand(testInstance *testing.T, builder *migrate.CommandBuilder, arguments ...string) error {
	testInstance.Helper()
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	command.SetArgs(arguments)
	command.SetOut(&bytes.Buffer{})
	command.SetErr(&bytes.Buffer{})
	command.SetContext(context.Background())
	return command.Execute()
}

func TestMigrateCommandRunsMigrationWithFlagOverrides(testInstance *testing.T) {
	runner := &scriptedGitHubRunner{}
	reportWriter := &bytes.Buffer{}
	builder := newCommandBuilder(runner, baseConfiguration(), reportWriter)

	executionError := executeMigrateCommand(
		testInstance,
		builder,
		"--export", writeCommandExport(testInstance),
		"--start-issue", "2",
		"--access-token", testFlagTokenConstant,
		"--delay", "1s",
	)
	require.NoError(testInstance, executionError)

	require.Equal(testInstance, []string{
		"GET repos/octo/widgets",
		"GET repos/octo/widgets/milestones",
		"POST repos/octo/widgets/issues",
		"POST repos/octo/widgets/issues/100/comments",
		"PATCH repos/octo/widgets/issues/100",
	}, runner.requestLabels())

	for _, request := range runner.requests {
		require.Equal(testInstance, testFlagTokenConstant, request.environment[testGitHubTokenVariableConstant])
	}

	require.Equal(testInstance, "Crash on start (#2)", runner.requests[2].payload["title"])
	require.Equal(testInstance, "closed", runner.requests[4].payload["state"])
	require.Empty(testInstance, reportWriter.String())
}

func TestMigrateCommandFallsBackToEnvironmentToken(testInstance *testing.T) {
	runner := &scriptedGitHubRunner{}
	builder := newCommandBuilder(runner, baseConfiguration(), &bytes.Buffer{})

	require.NoError(testInstance, executeMigrateCommand(testInstance, builder, "--export", writeCommandExport(testInstance)))
	require.NotEmpty(testInstance, runner.requests)
	require.Equal(testInstance, testEnvironmentTokenConstant, runner.requests[0].environment[testGitHubTokenVariableConstant])

	createdTitles := []any{}
	for _, request := range runner.requests {
		if request.method == "POST" && strings.HasSuffix(request.endpoint, "/issues") {
			createdTitles = append(createdTitles, request.payload["title"])
		}
	}
	require.Equal(testInstance, []any{"Skipped (#1)", "Crash on start (#2)"}, createdTitles)
}

func TestMigrateCommandRejectsInvalidConfiguration(testInstance *testing.T) {
	testCases := []struct {
		name          string
		configure     func(*migrate.Configuration)
		arguments     []string
		expectedField string
	}{
		{
			name:          testMissingRepositoryCaseNameConstant,
			configure:     func(configuration *migrate.Configuration) { configuration.GitHub.Repository = " " },
			expectedField: "migration.github.repository",
		},
		{
			name:          testNegativeDelayCaseNameConstant,
			configure:     func(*migrate.Configuration) {},
			arguments:     []string{"--delay=-1s"},
			expectedField: "migration.rate_limit.delay",
		},
		{
			name: testBothReferenceCaseNameConstant,
			configure: func(configuration *migrate.Configuration) {
				configuration.Versions.AsLabel = false
				configuration.Milestones.AsLabel = false
			},
			expectedField: "migration.versions.as_label/migration.milestones.as_label",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			configuration := baseConfiguration()
			testCase.configure(&configuration)
			runner := &scriptedGitHubRunner{}
			builder := newCommandBuilder(runner, configuration, &bytes.Buffer{})

			arguments := append([]string{"--export", writeCommandExport(testInstance)}, testCase.arguments...)
			executionError := executeMigrateCommand(testInstance, builder, arguments...)

			var configurationError migrate.InvalidConfigurationError
			require.ErrorAs(testInstance, executionError, &configurationError)
			require.Equal(testInstance, testCase.expectedField, configurationError.FieldName)
			require.Empty(testInstance, runner.requests)
		})
	}
}

func TestMigrateCommandReportsExportReadErrors(testInstance *testing.T) {
	runner := &scriptedGitHubRunner{}
	builder := newCommandBuilder(runner, baseConfiguration(), &bytes.Buffer{})

	missingPath := filepath.Join(testInstance.TempDir(), "missing")
	executionError := executeMigrateCommand(testInstance, builder, "--export", missingPath)

	require.Error(testInstance, executionError)
	require.Contains(testInstance, executionError.Error(), "unable to read export")
	var readError export.ReadError
	require.ErrorAs(testInstance, executionError, &readError)
	require.Empty(testInstance, runner.requests)
}

func TestMigrateCommandStopsOnDestinationFailure(testInstance *testing.T) {
	runner := &scriptedGitHubRunner{failingRequest: "POST repos/octo/widgets/issues/100/comments"}
	builder := newCommandBuilder(runner, baseConfiguration(), &bytes.Buffer{})

	executionError := executeMigrateCommand(testInstance, builder, "--export", writeCommandExport(testInstance), "--start-issue", "2")

	var migrationError migrate.IssueMigrationError
	require.ErrorAs(testInstance, executionError, &migrationError)
	require.Equal(testInstance, 2, migrationError.IssueID)

	var apiError githubcli.APIError
	require.ErrorAs(testInstance, executionError, &apiError)
	require.Equal(testInstance, 422, apiError.StatusCode)

	require.Equal(testInstance, "POST repos/octo/widgets/issues/100/comments", runner.requestLabels()[len(runner.requests)-1])
}

func TestMigrateCommandWaitsRetryAfterWhenResetHeaderIsStale(testInstance *testing.T) {
	runner := &scriptedGitHubRunner{rateLimitedRequest: "POST repos/octo/widgets/issues/100/comments"}
	builder := newCommandBuilder(runner, baseConfiguration(), &bytes.Buffer{})
	recordingClock := &immediateClock{now: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)}
	builder.Clock = recordingClock

	executionError := executeMigrateCommand(testInstance, builder, "--export", writeCommandExport(testInstance), "--start-issue", "2", "--delay", "1s")
	require.NoError(testInstance, executionError)

	require.Equal(testInstance, []string{
		"GET repos/octo/widgets",
		"GET repos/octo/widgets/milestones",
		"POST repos/octo/widgets/issues",
		"POST repos/octo/widgets/issues/100/comments",
		"POST repos/octo/widgets/issues/100/comments",
		"PATCH repos/octo/widgets/issues/100",
	}, runner.requestLabels())
	require.Equal(testInstance, []time.Duration{time.Second, time.Second, time.Second, 90 * time.Second, time.Second}, recordingClock.sleeps)
}
