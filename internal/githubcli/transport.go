package githubcli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/temirov/issuemigrate/internal/execshell"
)

const (
	apiSubcommandConstant             = "api"
	includeFlagConstant               = "--include"
	methodFlagConstant                = "--method"
	hostnameFlagConstant              = "--hostname"
	inputFlagConstant                 = "--input"
	stdinReferenceConstant            = "-"
	headerFlagConstant                = "-H"
	acceptHeaderValueConstant         = "Accept: application/vnd.github+json"
	apiVersionHeaderValueConstant     = "X-GitHub-Api-Version: 2022-11-28"
	endpointPathSeparatorConstant     = "/"
	endpointQueryTemplateConstant     = "%s?%s"
	malformedResponseTemplateConstant = "gh api output is not an HTTP response: %v"
)

// malformedResponseError reports gh output that could not be read as an HTTP response.
type malformedResponseError struct {
	cause error
}

func (responseError malformedResponseError) Error() string {
	return fmt.Sprintf(malformedResponseTemplateConstant, responseError.cause)
}

func (responseError malformedResponseError) Unwrap() error {
	return responseError.cause
}

// cliTransport is an http.RoundTripper that replays each request through `gh api --include`
// and reads the printed status line, headers, and body back as an *http.Response.
type cliTransport struct {
	executor    GitHubCommandExecutor
	hostname    string
	environment map[string]string
}

func (transport *cliTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	details, detailsError := transport.commandDetails(request)
	if detailsError != nil {
		return nil, detailsError
	}

	executionResult, executionError := transport.executor.ExecuteGitHubCLI(request.Context(), details)
	responseOutput := executionResult.StandardOutput
	if executionError != nil {
		var failedError execshell.CommandFailedError
		if !errors.As(executionError, &failedError) {
			return nil, executionError
		}
		// gh exits non-zero on HTTP errors but still prints the response.
		responseOutput = failedError.Result.StandardOutput
	}

	response, parseError := http.ReadResponse(bufio.NewReader(strings.NewReader(responseOutput)), request)
	if parseError != nil {
		if executionError != nil {
			return nil, executionError
		}
		return nil, malformedResponseError{cause: parseError}
	}
	return response, nil
}

func (transport *cliTransport) commandDetails(request *http.Request) (execshell.CommandDetails, error) {
	arguments := []string{
		apiSubcommandConstant,
		includeFlagConstant,
		methodFlagConstant,
		request.Method,
		headerFlagConstant,
		acceptHeaderValueConstant,
		headerFlagConstant,
		apiVersionHeaderValueConstant,
	}
	if len(transport.hostname) > 0 {
		arguments = append(arguments, hostnameFlagConstant, transport.hostname)
	}

	endpoint := strings.TrimPrefix(request.URL.EscapedPath(), endpointPathSeparatorConstant)
	if len(request.URL.RawQuery) > 0 {
		endpoint = fmt.Sprintf(endpointQueryTemplateConstant, endpoint, request.URL.RawQuery)
	}
	arguments = append(arguments, endpoint)

	details := execshell.CommandDetails{
		Arguments:            arguments,
		EnvironmentVariables: transport.environment,
	}
	if request.Body == nil {
		return details, nil
	}

	payload, readError := io.ReadAll(request.Body)
	closeError := request.Body.Close()
	if readError != nil {
		return execshell.CommandDetails{}, readError
	}
	if closeError != nil {
		return execshell.CommandDetails{}, closeError
	}
	if len(payload) > 0 {
		details.Arguments = append(details.Arguments, inputFlagConstant, stdinReferenceConstant)
		details.StandardInput = payload
	}
	return details, nil
}
