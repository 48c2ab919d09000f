package migrate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/issuemigrate/internal/content"
	"github.com/temirov/issuemigrate/internal/export"
	"github.com/temirov/issuemigrate/internal/githubcli"
	"github.com/temirov/issuemigrate/internal/labels"
	"github.com/temirov/issuemigrate/internal/ratelimit"
)

const (
	destinationClientMissingMessageConstant = "destination client not configured"
	invokerMissingMessageConstant           = "rate limited invoker not configured"
	documentMissingMessageConstant          = "export document not provided"
	issuesDisabledTemplateConstant          = "repository %s has issues disabled"
	repositoryMetadataErrorTemplateConstant = "unable to resolve repository metadata: %w"
	labelRebuildErrorTemplateConstant       = "label rebuild failed: %w"
	milestoneRebuildErrorTemplateConstant   = "milestone rebuild for %ss failed: %w"
	milestoneListErrorTemplateConstant      = "unable to list existing milestones: %w"
	issueMigrationErrorTemplateConstant     = "issue %d: %s failed (resume with start_issue_number=%d): %v"

	issueStageResolveConstant   = "label and milestone resolution"
	issueStageCreateConstant    = "issue creation"
	issueStageCommentConstant   = "comment creation"
	issueStageOmitLabelConstant = "omit label attachment"
	issueStageCloseConstant     = "close"

	repositoryLogFieldNameConstant         = "repository"
	repositoryResolvedMessageConstant      = "Destination repository resolved"
	labelCountFieldNameConstant            = "labels"
	labelNameFieldNameConstant             = "label"
	milestoneCountFieldNameConstant        = "milestones"
	milestoneTitleFieldNameConstant        = "milestone"
	categoryFieldNameConstant              = "category"
	sourceIssueFieldNameConstant           = "source_issue"
	destinationIssueFieldNameConstant      = "destination_issue"
	commentCountFieldNameConstant          = "comments"
	closedFieldNameConstant                = "closed"
	truncatedFieldNameConstant             = "truncated"
	issueCountFieldNameConstant            = "issues"
	startIssueFieldNameConstant            = "start_issue_number"
	callCountFieldNameConstant             = "api_calls"
	labelRebuildStartedMessageConstant     = "Rebuilding labels"
	labelDeletedMessageConstant            = "Label deleted"
	labelCreatedMessageConstant            = "Label created"
	milestoneRebuildStartedMessageConstant = "Rebuilding milestones"
	milestoneDeletedMessageConstant        = "Milestone deleted"
	milestoneCreatedMessageConstant        = "Milestone created"
	milestonesLoadedMessageConstant        = "Loaded existing milestones"
	issueMigrationStartedMessageConstant   = "Migrating issues"
	issueMigratedMessageConstant           = "Issue migrated"
	migrationCompletedMessageConstant      = "Migration completed"
)

var (
	// ErrDestinationClientNotConfigured indicates the Service was built without a destination client.
	ErrDestinationClientNotConfigured = errors.New(destinationClientMissingMessageConstant)
	// ErrInvokerNotConfigured indicates the Service was built without a rate limited invoker.
	ErrInvokerNotConfigured = errors.New(invokerMissingMessageConstant)
	// ErrDocumentNotProvided indicates Execute was called without an export document.
	ErrDocumentNotProvided = errors.New(documentMissingMessageConstant)
)

// DestinationClient is the subset of githubcli.Client the migration drives.
type DestinationClient interface {
	ResolveRepoMetadata(executionContext context.Context) (githubcli.RepositoryMetadata, error)
	ListLabels(executionContext context.Context) ([]githubcli.Label, error)
	DeleteLabel(executionContext context.Context, name string) error
	CreateLabel(executionContext context.Context, label githubcli.Label) (githubcli.Label, error)
	ListMilestones(executionContext context.Context) ([]githubcli.Milestone, error)
	DeleteMilestone(executionContext context.Context, number int) error
	CreateMilestone(executionContext context.Context, title string) (githubcli.Milestone, error)
	CreateIssue(executionContext context.Context, issue githubcli.NewIssue) (githubcli.Issue, error)
	CreateComment(executionContext context.Context, issueNumber int, body string) error
	UpdateIssue(executionContext context.Context, issueNumber int, update githubcli.IssueUpdate) error
	AddLabelsToIssue(executionContext context.Context, issueNumber int, labelNames []string) error
}

// ProgressReporter receives the periodic rate-limit display.
type ProgressReporter interface {
	ReportRateLimit(issueNumber int, callCount int, rateLimit githubcli.RateLimit, known bool)
}

// IssueMigrationError reports the issue and stage at which the run aborted.
type IssueMigrationError struct {
	IssueID int
	Stage   string
	Cause   error
}

// Error describes the failure and the resume point.
func (migrationError IssueMigrationError) Error() string {
	return fmt.Sprintf(issueMigrationErrorTemplateConstant, migrationError.IssueID, migrationError.Stage, migrationError.IssueID, migrationError.Cause)
}

// Unwrap exposes the underlying failure.
func (migrationError IssueMigrationError) Unwrap() error {
	return migrationError.Cause
}

// ServiceDependencies describes required collaborators for migration.
type ServiceDependencies struct {
	Client   DestinationClient
	Invoker  *ratelimit.Invoker
	Reporter ProgressReporter
	Logger   *zap.Logger
}

// MigrationResult summarizes a completed run.
type MigrationResult struct {
	LabelsCreated     int
	MilestonesCreated int
	IssuesMigrated    int
	CommentsMigrated  int
	IssuesClosed      int
	LastIssueID       int
	CallCount         int
}

// Service sequences the label rebuild, milestone rebuild, and per-issue migration.
type Service struct {
	client   DestinationClient
	invoker  *ratelimit.Invoker
	reporter ProgressReporter
	logger   *zap.Logger
}

// issueRun carries the per-run collaborators derived from configuration.
type issueRun struct {
	configuration Configuration
	resolver      labels.Resolver
	transformer   content.Transformer
	placeholders  content.PlaceholderBuilder
	milestones    labels.MilestoneMap
	closeStatuses map[string]struct{}
}

// NewService constructs a Service with the provided dependencies.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Client == nil {
		return nil, ErrDestinationClientNotConfigured
	}
	if dependencies.Invoker == nil {
		return nil, ErrInvokerNotConfigured
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		client:   dependencies.Client,
		invoker:  dependencies.Invoker,
		reporter: dependencies.Reporter,
		logger:   logger,
	}, nil
}

// Execute runs one migration of document into the configured repository. The configuration
// is sanitized and validated first. Any failure aborts the run without rollback.
func (service *Service) Execute(executionContext context.Context, document *export.Document, configuration Configuration) (MigrationResult, error) {
	if document == nil {
		return MigrationResult{}, ErrDocumentNotProvided
	}

	sanitized := configuration.Sanitize()
	if validationError := sanitized.Validate(); validationError != nil {
		return MigrationResult{}, validationError
	}
	resolver, resolverError := labels.NewResolver(sanitized.LabelRules())
	if resolverError != nil {
		return MigrationResult{}, resolverError
	}

	run := &issueRun{
		configuration: sanitized,
		resolver:      resolver,
		transformer:   content.NewTransformer(sanitized.Content.MaxLength),
		placeholders:  content.PlaceholderBuilder{IssueBaseURL: sanitized.Source.IssueBaseURL},
		closeStatuses: make(map[string]struct{}, len(sanitized.CloseStatuses)),
	}
	for _, status := range sanitized.CloseStatuses {
		run.closeStatuses[status] = struct{}{}
	}

	result := MigrationResult{}

	if metadataError := service.verifyRepository(executionContext); metadataError != nil {
		return service.finish(result), metadataError
	}

	if sanitized.Continue.BuildLabels {
		labelsCreated, labelError := service.rebuildLabels(executionContext, document, run)
		result.LabelsCreated = labelsCreated
		if labelError != nil {
			return service.finish(result), fmt.Errorf(labelRebuildErrorTemplateConstant, labelError)
		}
	}

	milestones, milestonesCreated, milestoneError := service.prepareMilestones(executionContext, document, run)
	result.MilestonesCreated = milestonesCreated
	if milestoneError != nil {
		return service.finish(result), milestoneError
	}
	run.milestones = milestones

	issues := document.IssuesFrom(sanitized.Continue.StartIssueNumber)
	service.logger.Info(
		issueMigrationStartedMessageConstant,
		zap.Int(issueCountFieldNameConstant, len(issues)),
		zap.Int(startIssueFieldNameConstant, sanitized.Continue.StartIssueNumber),
	)

	for issueIndex, issue := range issues {
		issueOutcome, issueError := service.migrateIssue(executionContext, document, run, issue)
		result.CommentsMigrated += issueOutcome.comments
		if issueError != nil {
			return service.finish(result), issueError
		}
		result.IssuesMigrated++
		result.LastIssueID = issue.ID
		if issueOutcome.closed {
			result.IssuesClosed++
		}

		reportInterval := sanitized.RateLimit.ReportInterval
		if service.reporter != nil && reportInterval > 0 && (issueIndex+1)%reportInterval == 0 {
			rateLimit, known := service.invoker.LastRateLimit()
			service.reporter.ReportRateLimit(issue.ID, service.invoker.CallCount(), rateLimit, known)
		}
	}

	result = service.finish(result)
	service.logger.Info(
		migrationCompletedMessageConstant,
		zap.Int(issueCountFieldNameConstant, result.IssuesMigrated),
		zap.Int(commentCountFieldNameConstant, result.CommentsMigrated),
		zap.Int(callCountFieldNameConstant, result.CallCount),
	)
	return result, nil
}

func (service *Service) finish(result MigrationResult) MigrationResult {
	result.CallCount = service.invoker.CallCount()
	return result
}

func (service *Service) verifyRepository(executionContext context.Context) error {
	metadata, metadataError := ratelimit.Invoke(executionContext, service.invoker, service.client.ResolveRepoMetadata)
	if metadataError != nil {
		return fmt.Errorf(repositoryMetadataErrorTemplateConstant, metadataError)
	}
	if !metadata.HasIssues {
		return fmt.Errorf(issuesDisabledTemplateConstant, metadata.NameWithOwner)
	}
	service.logger.Debug(repositoryResolvedMessageConstant, zap.String(repositoryLogFieldNameConstant, metadata.NameWithOwner))
	return nil
}

func (service *Service) rebuildLabels(executionContext context.Context, document *export.Document, run *issueRun) (int, error) {
	existingLabels, listError := ratelimit.Invoke(executionContext, service.invoker, service.client.ListLabels)
	if listError != nil {
		return 0, listError
	}

	labelNames := run.resolver.LabelNames(presentNames(document.VersionNames()), presentNames(document.MilestoneNames()))
	service.logger.Info(labelRebuildStartedMessageConstant, zap.Int(labelCountFieldNameConstant, len(labelNames)))

	for _, existingLabel := range existingLabels {
		labelName := existingLabel.Name
		deleteError := service.invoker.Do(executionContext, func(attemptContext context.Context) error {
			return service.client.DeleteLabel(attemptContext, labelName)
		})
		if deleteError != nil {
			return 0, deleteError
		}
		service.logger.Debug(labelDeletedMessageConstant, zap.String(labelNameFieldNameConstant, labelName))
	}

	labelColors := run.configuration.LabelColors()
	created := 0
	for _, labelName := range labelNames {
		color, configured := labelColors[labelName]
		if !configured {
			color = run.configuration.Labels.Color
		}
		newLabel := githubcli.Label{Name: labelName, Color: color}
		_, createError := ratelimit.Invoke(executionContext, service.invoker, func(attemptContext context.Context) (githubcli.Label, error) {
			return service.client.CreateLabel(attemptContext, newLabel)
		})
		if createError != nil {
			return created, createError
		}
		created++
		service.logger.Debug(labelCreatedMessageConstant, zap.String(labelNameFieldNameConstant, labelName))
	}
	return created, nil
}

// prepareMilestones rebuilds milestones for categories in reference mode when enabled and
// returns the MilestoneMap used by every issue. Without a rebuild, the map is built from the
// repository's existing milestones so resumed runs still resolve references.
func (service *Service) prepareMilestones(executionContext context.Context, document *export.Document, run *issueRun) (labels.MilestoneMap, int, error) {
	categories := []struct {
		category labels.Category
		enabled  bool
		names    []string
	}{
		{category: labels.CategoryVersion, enabled: run.configuration.Continue.BuildVersions, names: document.VersionNames()},
		{category: labels.CategoryMilestone, enabled: run.configuration.Continue.BuildMilestones, names: document.MilestoneNames()},
	}

	referenceModeUsed := false
	rebuilt := false
	var references []labels.MilestoneReference
	for _, candidate := range categories {
		if !run.resolver.UsesMilestones(candidate.category) {
			continue
		}
		referenceModeUsed = true
		if !candidate.enabled {
			continue
		}
		categoryReferences, rebuildError := service.rebuildMilestones(executionContext, candidate.category, presentNames(candidate.names))
		references = append(references, categoryReferences...)
		if rebuildError != nil {
			return labels.MilestoneMap{}, len(references), fmt.Errorf(milestoneRebuildErrorTemplateConstant, candidate.category, rebuildError)
		}
		rebuilt = true
	}

	if !referenceModeUsed {
		return labels.NewMilestoneMap(nil), 0, nil
	}
	if rebuilt {
		return labels.NewMilestoneMap(references), len(references), nil
	}

	existingMilestones, listError := ratelimit.Invoke(executionContext, service.invoker, service.client.ListMilestones)
	if listError != nil {
		return labels.MilestoneMap{}, 0, fmt.Errorf(milestoneListErrorTemplateConstant, listError)
	}
	for _, milestone := range existingMilestones {
		references = append(references, labels.MilestoneReference{Title: milestone.Title, Number: milestone.Number})
	}
	service.logger.Info(milestonesLoadedMessageConstant, zap.Int(milestoneCountFieldNameConstant, len(references)))
	return labels.NewMilestoneMap(references), 0, nil
}

func (service *Service) rebuildMilestones(executionContext context.Context, category labels.Category, names []string) ([]labels.MilestoneReference, error) {
	existingMilestones, listError := ratelimit.Invoke(executionContext, service.invoker, service.client.ListMilestones)
	if listError != nil {
		return nil, listError
	}

	service.logger.Info(
		milestoneRebuildStartedMessageConstant,
		zap.String(categoryFieldNameConstant, string(category)),
		zap.Int(milestoneCountFieldNameConstant, len(names)),
	)

	for _, existingMilestone := range existingMilestones {
		milestoneNumber := existingMilestone.Number
		deleteError := service.invoker.Do(executionContext, func(attemptContext context.Context) error {
			return service.client.DeleteMilestone(attemptContext, milestoneNumber)
		})
		if deleteError != nil {
			return nil, deleteError
		}
		service.logger.Debug(milestoneDeletedMessageConstant, zap.String(milestoneTitleFieldNameConstant, existingMilestone.Title))
	}

	references := make([]labels.MilestoneReference, 0, len(names))
	for _, name := range names {
		title := name
		createdMilestone, createError := ratelimit.Invoke(executionContext, service.invoker, func(attemptContext context.Context) (githubcli.Milestone, error) {
			return service.client.CreateMilestone(attemptContext, title)
		})
		if createError != nil {
			return references, createError
		}
		references = append(references, labels.MilestoneReference{Title: title, Number: createdMilestone.Number})
		service.logger.Debug(milestoneCreatedMessageConstant, zap.String(milestoneTitleFieldNameConstant, title))
	}
	return references, nil
}

type issueOutcome struct {
	comments int
	closed   bool
}

func (service *Service) migrateIssue(executionContext context.Context, document *export.Document, run *issueRun, issue export.Issue) (issueOutcome, error) {
	outcome := issueOutcome{}
	templates := run.configuration.Templates

	bodyContent, bodyTruncated := run.transformer.Transform(issue.Content)
	title := content.RenderTemplate(templates.IssueTitle, run.placeholders.Title(issue))
	body := content.RenderTemplate(templates.IssueBody, run.placeholders.Issue(issue, bodyContent))

	plan, planError := run.resolver.ResolveCreation(issue, run.milestones, bodyTruncated)
	if planError != nil {
		return outcome, IssueMigrationError{IssueID: issue.ID, Stage: issueStageResolveConstant, Cause: planError}
	}

	newIssue := githubcli.NewIssue{
		Title:     title,
		Body:      body,
		Labels:    plan.Labels,
		Assignees: plan.Assignees,
		Milestone: plan.Milestone,
	}
	createdIssue, createError := ratelimit.Invoke(executionContext, service.invoker, func(attemptContext context.Context) (githubcli.Issue, error) {
		return service.client.CreateIssue(attemptContext, newIssue)
	})
	if createError != nil {
		return outcome, IssueMigrationError{IssueID: issue.ID, Stage: issueStageCreateConstant, Cause: createError}
	}

	omitLabel, omitConfigured := run.resolver.OmitLabel()
	omitApplied := bodyTruncated
	anyTruncated := bodyTruncated

	for _, comment := range document.CommentsFor(issue.ID) {
		commentContent, commentTruncated := run.transformer.Transform(comment.Content)
		commentBody := content.RenderTemplate(templates.Comment, run.placeholders.Comment(issue, comment, commentContent))

		// The omit label is attached ahead of the first truncated comment.
		if commentTruncated && !omitApplied {
			omitApplied = true
			if omitConfigured {
				labelError := service.invoker.Do(executionContext, func(attemptContext context.Context) error {
					return service.client.AddLabelsToIssue(attemptContext, createdIssue.Number, []string{omitLabel})
				})
				if labelError != nil {
					return outcome, IssueMigrationError{IssueID: issue.ID, Stage: issueStageOmitLabelConstant, Cause: labelError}
				}
			}
		}
		anyTruncated = anyTruncated || commentTruncated

		commentError := service.invoker.Do(executionContext, func(attemptContext context.Context) error {
			return service.client.CreateComment(attemptContext, createdIssue.Number, commentBody)
		})
		if commentError != nil {
			return outcome, IssueMigrationError{IssueID: issue.ID, Stage: issueStageCommentConstant, Cause: commentError}
		}
		outcome.comments++
	}

	if _, closable := run.closeStatuses[issue.Status]; closable {
		closeMilestone, closeResolveError := run.resolver.ResolveClose(issue, run.milestones)
		if closeResolveError != nil {
			return outcome, IssueMigrationError{IssueID: issue.ID, Stage: issueStageCloseConstant, Cause: closeResolveError}
		}
		update := githubcli.IssueUpdate{State: githubcli.IssueStateClosed, Milestone: closeMilestone}
		closeError := service.invoker.Do(executionContext, func(attemptContext context.Context) error {
			return service.client.UpdateIssue(attemptContext, createdIssue.Number, update)
		})
		if closeError != nil {
			return outcome, IssueMigrationError{IssueID: issue.ID, Stage: issueStageCloseConstant, Cause: closeError}
		}
		outcome.closed = true
	}

	service.logger.Info(
		issueMigratedMessageConstant,
		zap.Int(sourceIssueFieldNameConstant, issue.ID),
		zap.Int(destinationIssueFieldNameConstant, createdIssue.Number),
		zap.Int(commentCountFieldNameConstant, outcome.comments),
		zap.Bool(closedFieldNameConstant, outcome.closed),
		zap.Bool(truncatedFieldNameConstant, anyTruncated),
	)
	return outcome, nil
}

func presentNames(names []string) []string {
	present := make([]string, 0, len(names))
	for _, name := range names {
		if len(strings.TrimSpace(name)) > 0 {
			present = append(present, name)
		}
	}
	return present
}
