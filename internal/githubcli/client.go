package githubcli

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/go-github/v68/github"

	"github.com/temirov/issuemigrate/internal/execshell"
)

const (
	httpMethodDeleteConstant       = "DELETE"
	gitHubTokenEnvironmentConstant = "GH_TOKEN"
	enterpriseTokenEnvironment     = "GH_ENTERPRISE_TOKEN"
	promptDisabledEnvironment      = "GH_PROMPT_DISABLED"
	promptDisabledValueConstant    = "1"
	publicGitHubHostnameConstant   = "github.com"
	labelPathTemplateConstant      = "repos/%s/labels/%s"
	milestoneStateAllConstant      = "all"
	pageSizeConstant               = 100
	repositoryFieldNameConstant    = "repository"
	labelNameFieldNameConstant     = "label name"
	milestoneTitleFieldConstant    = "milestone title"
	issueTitleFieldNameConstant    = "issue title"
	milestoneNumberFieldConstant   = "milestone number"
	issueNumberFieldNameConstant   = "issue number"
	requiredValueMessageConstant   = "value required"
	repositoryFormatMessage        = "expected owner/name"
	positiveNumberMessageConstant  = "must be positive"
	repositorySeparatorConstant    = "/"
	repositoryPartCountConstant    = 2
)

// Operation names reported in errors.
const (
	repositoryMetadataOperationNameConstant = OperationName("ResolveRepoMetadata")
	listLabelsOperationNameConstant         = OperationName("ListLabels")
	deleteLabelOperationNameConstant        = OperationName("DeleteLabel")
	createLabelOperationNameConstant        = OperationName("CreateLabel")
	listMilestonesOperationNameConstant     = OperationName("ListMilestones")
	deleteMilestoneOperationNameConstant    = OperationName("DeleteMilestone")
	createMilestoneOperationNameConstant    = OperationName("CreateMilestone")
	createIssueOperationNameConstant        = OperationName("CreateIssue")
	createCommentOperationNameConstant      = OperationName("CreateComment")
	updateIssueOperationNameConstant        = OperationName("UpdateIssue")
	addLabelsOperationNameConstant          = OperationName("AddLabelsToIssue")
)

// OperationName describes a named GitHub API workflow supported by the client.
type OperationName string

// IssueState enumerates destination issue states.
type IssueState string

// Issue states.
const (
	IssueStateOpen   IssueState = IssueState("open")
	IssueStateClosed IssueState = IssueState("closed")
)

// RepositoryMetadata contains key details resolved from GitHub.
type RepositoryMetadata struct {
	NameWithOwner string
	Description   string
	DefaultBranch string
	HasIssues     bool
}

// Label is a destination repository label.
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Milestone is a destination repository milestone.
type Milestone struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
}

// Issue identifies a created destination issue.
type Issue struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

// NewIssue is the payload of an issue creation request.
type NewIssue struct {
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Labels    []string `json:"labels,omitempty"`
	Assignees []string `json:"assignees,omitempty"`
	Milestone *int     `json:"milestone,omitempty"`
}

// IssueUpdate is the payload of an issue update request.
type IssueUpdate struct {
	State     IssueState `json:"state,omitempty"`
	Milestone *int       `json:"milestone,omitempty"`
}

// ClientOptions selects the destination repository and credentials.
type ClientOptions struct {
	Repository  string
	Hostname    string
	AccessToken string
}

// GitHubCommandExecutor is the minimal interface required from execshell.ShellExecutor.
type GitHubCommandExecutor interface {
	ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Client issues GitHub REST API requests through a go-github client whose transport is
// `gh api`, and remembers the rate-limit headers of the most recent response.
type Client struct {
	api        *github.Client
	owner      string
	name       string
	repository string

	rateLimitMutex sync.Mutex
	lastRateLimit  RateLimit
	rateLimitKnown bool
}

// NewClient constructs a GitHub API client bound to one repository.
func NewClient(executor GitHubCommandExecutor, options ClientOptions) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}

	repository := strings.TrimSpace(options.Repository)
	if len(repository) == 0 {
		return nil, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	repositoryParts := strings.Split(repository, repositorySeparatorConstant)
	if len(repositoryParts) != repositoryPartCountConstant || len(repositoryParts[0]) == 0 || len(repositoryParts[1]) == 0 {
		return nil, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: repositoryFormatMessage}
	}

	hostname := strings.TrimSpace(options.Hostname)
	environment := map[string]string{promptDisabledEnvironment: promptDisabledValueConstant}
	accessToken := strings.TrimSpace(options.AccessToken)
	if len(accessToken) > 0 {
		environment[gitHubTokenEnvironmentConstant] = accessToken
		if len(hostname) > 0 && !strings.EqualFold(hostname, publicGitHubHostnameConstant) {
			environment[enterpriseTokenEnvironment] = accessToken
		}
	}

	transport := &cliTransport{executor: executor, hostname: hostname, environment: environment}
	return &Client{
		api:        github.NewClient(&http.Client{Transport: transport}),
		owner:      repositoryParts[0],
		name:       repositoryParts[1],
		repository: repository,
	}, nil
}

// Repository returns the owner/name the client targets.
func (client *Client) Repository() string {
	return client.repository
}

// LastRateLimit returns the rate-limit headers of the most recent response that carried them.
func (client *Client) LastRateLimit() (RateLimit, bool) {
	client.rateLimitMutex.Lock()
	defer client.rateLimitMutex.Unlock()
	return client.lastRateLimit, client.rateLimitKnown
}

// ResolveRepoMetadata retrieves canonical metadata for the repository.
func (client *Client) ResolveRepoMetadata(executionContext context.Context) (RepositoryMetadata, error) {
	repository, response, requestError := client.api.Repositories.Get(client.requestContext(executionContext), client.owner, client.name)
	if completionError := client.complete(repositoryMetadataOperationNameConstant, response, requestError); completionError != nil {
		return RepositoryMetadata{}, completionError
	}

	return RepositoryMetadata{
		NameWithOwner: repository.GetFullName(),
		Description:   repository.GetDescription(),
		DefaultBranch: repository.GetDefaultBranch(),
		HasIssues:     repository.GetHasIssues(),
	}, nil
}

// ListLabels returns every label defined in the repository.
func (client *Client) ListLabels(executionContext context.Context) ([]Label, error) {
	var collected []Label
	listError := client.paginate(executionContext, listLabelsOperationNameConstant, func(requestContext context.Context, options github.ListOptions) (int, *github.Response, error) {
		pageLabels, response, requestError := client.api.Issues.ListLabels(requestContext, client.owner, client.name, &options)
		for _, pageLabel := range pageLabels {
			collected = append(collected, Label{Name: pageLabel.GetName(), Color: pageLabel.GetColor()})
		}
		return len(pageLabels), response, requestError
	})
	if listError != nil {
		return nil, listError
	}
	return collected, nil
}

// DeleteLabel removes a label by name.
func (client *Client) DeleteLabel(executionContext context.Context, name string) error {
	if len(strings.TrimSpace(name)) == 0 {
		return InvalidInputError{FieldName: labelNameFieldNameConstant, Message: requiredValueMessageConstant}
	}
	endpoint := fmt.Sprintf(labelPathTemplateConstant, client.repository, url.PathEscape(name))
	request, requestBuildError := client.api.NewRequest(httpMethodDeleteConstant, endpoint, nil)
	if requestBuildError != nil {
		return OperationError{Operation: deleteLabelOperationNameConstant, Cause: requestBuildError}
	}
	response, requestError := client.api.Do(client.requestContext(executionContext), request, nil)
	return client.complete(deleteLabelOperationNameConstant, response, requestError)
}

// CreateLabel creates a label.
func (client *Client) CreateLabel(executionContext context.Context, label Label) (Label, error) {
	if len(strings.TrimSpace(label.Name)) == 0 {
		return Label{}, InvalidInputError{FieldName: labelNameFieldNameConstant, Message: requiredValueMessageConstant}
	}
	requestLabel := &github.Label{Name: github.Ptr(label.Name)}
	if len(label.Color) > 0 {
		requestLabel.Color = github.Ptr(label.Color)
	}

	created, response, requestError := client.api.Issues.CreateLabel(client.requestContext(executionContext), client.owner, client.name, requestLabel)
	if completionError := client.complete(createLabelOperationNameConstant, response, requestError); completionError != nil {
		return Label{}, completionError
	}
	return Label{Name: created.GetName(), Color: created.GetColor()}, nil
}

// ListMilestones returns every milestone in the repository regardless of state.
func (client *Client) ListMilestones(executionContext context.Context) ([]Milestone, error) {
	var collected []Milestone
	listError := client.paginate(executionContext, listMilestonesOperationNameConstant, func(requestContext context.Context, options github.ListOptions) (int, *github.Response, error) {
		listOptions := &github.MilestoneListOptions{State: milestoneStateAllConstant, ListOptions: options}
		pageMilestones, response, requestError := client.api.Issues.ListMilestones(requestContext, client.owner, client.name, listOptions)
		for _, pageMilestone := range pageMilestones {
			collected = append(collected, Milestone{Number: pageMilestone.GetNumber(), Title: pageMilestone.GetTitle(), State: pageMilestone.GetState()})
		}
		return len(pageMilestones), response, requestError
	})
	if listError != nil {
		return nil, listError
	}
	return collected, nil
}

// DeleteMilestone removes a milestone by number.
func (client *Client) DeleteMilestone(executionContext context.Context, number int) error {
	if number <= 0 {
		return InvalidInputError{FieldName: milestoneNumberFieldConstant, Message: positiveNumberMessageConstant}
	}
	response, requestError := client.api.Issues.DeleteMilestone(client.requestContext(executionContext), client.owner, client.name, number)
	return client.complete(deleteMilestoneOperationNameConstant, response, requestError)
}

// CreateMilestone creates an open milestone with the given title.
func (client *Client) CreateMilestone(executionContext context.Context, title string) (Milestone, error) {
	if len(strings.TrimSpace(title)) == 0 {
		return Milestone{}, InvalidInputError{FieldName: milestoneTitleFieldConstant, Message: requiredValueMessageConstant}
	}
	created, response, requestError := client.api.Issues.CreateMilestone(client.requestContext(executionContext), client.owner, client.name, &github.Milestone{Title: github.Ptr(title)})
	if completionError := client.complete(createMilestoneOperationNameConstant, response, requestError); completionError != nil {
		return Milestone{}, completionError
	}
	return Milestone{Number: created.GetNumber(), Title: created.GetTitle(), State: created.GetState()}, nil
}

// CreateIssue opens a new issue.
func (client *Client) CreateIssue(executionContext context.Context, issue NewIssue) (Issue, error) {
	if len(strings.TrimSpace(issue.Title)) == 0 {
		return Issue{}, InvalidInputError{FieldName: issueTitleFieldNameConstant, Message: requiredValueMessageConstant}
	}
	issueRequest := &github.IssueRequest{
		Title:     github.Ptr(issue.Title),
		Body:      github.Ptr(issue.Body),
		Milestone: issue.Milestone,
	}
	if len(issue.Labels) > 0 {
		issueRequest.Labels = &issue.Labels
	}
	if len(issue.Assignees) > 0 {
		issueRequest.Assignees = &issue.Assignees
	}

	created, response, requestError := client.api.Issues.Create(client.requestContext(executionContext), client.owner, client.name, issueRequest)
	if completionError := client.complete(createIssueOperationNameConstant, response, requestError); completionError != nil {
		return Issue{}, completionError
	}
	return Issue{Number: created.GetNumber(), HTMLURL: created.GetHTMLURL()}, nil
}

// CreateComment adds a comment to an issue.
func (client *Client) CreateComment(executionContext context.Context, issueNumber int, body string) error {
	if issueNumber <= 0 {
		return InvalidInputError{FieldName: issueNumberFieldNameConstant, Message: positiveNumberMessageConstant}
	}
	_, response, requestError := client.api.Issues.CreateComment(client.requestContext(executionContext), client.owner, client.name, issueNumber, &github.IssueComment{Body: github.Ptr(body)})
	return client.complete(createCommentOperationNameConstant, response, requestError)
}

// UpdateIssue changes an issue's state and milestone.
func (client *Client) UpdateIssue(executionContext context.Context, issueNumber int, update IssueUpdate) error {
	if issueNumber <= 0 {
		return InvalidInputError{FieldName: issueNumberFieldNameConstant, Message: positiveNumberMessageConstant}
	}
	issueRequest := &github.IssueRequest{Milestone: update.Milestone}
	if len(update.State) > 0 {
		issueRequest.State = github.Ptr(string(update.State))
	}
	_, response, requestError := client.api.Issues.Edit(client.requestContext(executionContext), client.owner, client.name, issueNumber, issueRequest)
	return client.complete(updateIssueOperationNameConstant, response, requestError)
}

// AddLabelsToIssue attaches labels to an existing issue.
func (client *Client) AddLabelsToIssue(executionContext context.Context, issueNumber int, labels []string) error {
	if issueNumber <= 0 {
		return InvalidInputError{FieldName: issueNumberFieldNameConstant, Message: positiveNumberMessageConstant}
	}
	_, response, requestError := client.api.Issues.AddLabelsToIssue(client.requestContext(executionContext), client.owner, client.name, issueNumber, labels)
	return client.complete(addLabelsOperationNameConstant, response, requestError)
}

// requestContext disables go-github's own rate-limit short-circuits; pacing and retries
// belong to the ratelimit package.
func (client *Client) requestContext(executionContext context.Context) context.Context {
	return context.WithValue(executionContext, github.BypassRateLimitCheck, true)
}

// paginate requests pages until one comes back shorter than the page size.
func (client *Client) paginate(executionContext context.Context, operation OperationName, listPage func(context.Context, github.ListOptions) (int, *github.Response, error)) error {
	requestContext := client.requestContext(executionContext)
	for page := 1; ; page++ {
		itemCount, response, requestError := listPage(requestContext, github.ListOptions{Page: page, PerPage: pageSizeConstant})
		if completionError := client.complete(operation, response, requestError); completionError != nil {
			return completionError
		}
		if itemCount < pageSizeConstant {
			return nil
		}
	}
}

// complete records the response's rate-limit headers and classifies requestError.
func (client *Client) complete(operation OperationName, response *github.Response, requestError error) error {
	client.recordRateLimit(response)
	if requestError == nil {
		return nil
	}
	return classifyRequestError(operation, requestError)
}

func (client *Client) recordRateLimit(response *github.Response) {
	rateLimit, known := rateLimitOf(response)
	if !known {
		return
	}
	client.rateLimitMutex.Lock()
	defer client.rateLimitMutex.Unlock()
	client.lastRateLimit = rateLimit
	client.rateLimitKnown = true
}
