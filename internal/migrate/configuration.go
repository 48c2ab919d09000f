package migrate

import (
	"fmt"
	"strings"
	"time"

	"github.com/temirov/issuemigrate/internal/content"
	"github.com/temirov/issuemigrate/internal/labels"
	"github.com/temirov/issuemigrate/internal/ratelimit"
)

const (
	defaultLabelColorConstant           = "cccccc"
	defaultIssueTitleTemplateConstant   = "${TITLE}"
	defaultIssueBodyTemplateConstant    = "${MARKDOWN}\n\n----\n\nMigrated from ${URL} (reported by ${USER} at ${CREATED_AT})"
	defaultCommentTemplateConstant      = "${QUOTE_MARKDOWN}\n\n----\n\n${USER} commented at ${CREATED_AT}: ${URL}"
	defaultVersionLabelTemplateConstant = "version: ${VERSION}"
	defaultMilestoneTemplateConstant    = "milestone: ${MILESTONE}"
	defaultReportIntervalConstant       = 10
	defaultStartIssueNumberConstant     = 1
	labelColorPrefixConstant            = "#"
	repositorySeparatorConstant         = "/"

	invalidConfigurationTemplateConstant = "invalid migration configuration: %s: %s"
	repositoryFieldNameConstant          = "migration.github.repository"
	repositoryRequiredMessageConstant    = "must be set as owner/name"
	repositoryFormatMessageConstant      = "must have the form owner/name"
	categoryModesFieldNameConstant       = "migration.versions.as_label/migration.milestones.as_label"
	maximumAttemptsFieldNameConstant     = "migration.rate_limit.max_attempts"
	maximumAttemptsMessageConstant       = "must be at least 1"
	delayFieldNameConstant               = "migration.rate_limit.delay"
	secondaryBufferFieldNameConstant     = "migration.rate_limit.secondary_buffer"
	negativeDurationMessageConstant      = "must not be negative"
	maximumLengthFieldNameConstant       = "migration.content.max_length"
	maximumLengthMessageConstant         = "must be positive"
	reportIntervalFieldNameConstant      = "migration.rate_limit.report_interval"
	reportIntervalMessageConstant        = "must not be negative"
	labelItemFieldNameTemplateConstant   = "migration.labels.items[%d].name"
	labelItemNameRequiredMessageConstant = "must not be empty"
)

// InvalidConfigurationError reports a configuration value the migration cannot run with.
type InvalidConfigurationError struct {
	FieldName string
	Message   string
}

// Error describes the invalid value.
func (configurationError InvalidConfigurationError) Error() string {
	return fmt.Sprintf(invalidConfigurationTemplateConstant, configurationError.FieldName, configurationError.Message)
}

// Configuration captures the migration section of the configuration file.
type Configuration struct {
	GitHub        GitHubConfiguration    `mapstructure:"github" yaml:"github"`
	Source        SourceConfiguration    `mapstructure:"source" yaml:"source"`
	Continue      ContinueConfiguration  `mapstructure:"continue" yaml:"continue"`
	Labels        LabelConfiguration     `mapstructure:"labels" yaml:"labels"`
	Users         UserConfiguration      `mapstructure:"users" yaml:"users"`
	Versions      CategoryConfiguration  `mapstructure:"versions" yaml:"versions"`
	Milestones    CategoryConfiguration  `mapstructure:"milestones" yaml:"milestones"`
	Templates     TemplateConfiguration  `mapstructure:"templates" yaml:"templates"`
	CloseStatuses []string               `mapstructure:"close_statuses" yaml:"close_statuses"`
	RateLimit     RateLimitConfiguration `mapstructure:"rate_limit" yaml:"rate_limit"`
	Content       ContentConfiguration   `mapstructure:"content" yaml:"content"`
}

// GitHubConfiguration identifies the destination repository.
type GitHubConfiguration struct {
	Repository  string `mapstructure:"repository" yaml:"repository"`
	Hostname    string `mapstructure:"hostname" yaml:"hostname"`
	AccessToken string `mapstructure:"access_token" yaml:"access_token"`
}

// SourceConfiguration locates the Bitbucket export.
type SourceConfiguration struct {
	ExportPath   string `mapstructure:"export_path" yaml:"export_path"`
	IssueBaseURL string `mapstructure:"issue_base_url" yaml:"issue_base_url"`
}

// ContinueConfiguration controls which phases run and where issue migration resumes.
type ContinueConfiguration struct {
	StartIssueNumber int  `mapstructure:"start_issue_number" yaml:"start_issue_number"`
	BuildLabels      bool `mapstructure:"build_labels" yaml:"build_labels"`
	BuildVersions    bool `mapstructure:"build_versions" yaml:"build_versions"`
	BuildMilestones  bool `mapstructure:"build_milestones" yaml:"build_milestones"`
}

// LabelItem is one statically configured destination label.
type LabelItem struct {
	Name  string `mapstructure:"name" yaml:"name"`
	Color string `mapstructure:"color" yaml:"color,omitempty"`
}

// LabelMappingConfiguration maps source attributes to destination label names.
type LabelMappingConfiguration struct {
	Status     map[string]string `mapstructure:"status" yaml:"status"`
	Kinds      map[string]string `mapstructure:"kinds" yaml:"kinds"`
	Components map[string]string `mapstructure:"components" yaml:"components"`
}

// LabelConfiguration describes the label rebuild set and per-issue label rules.
type LabelConfiguration struct {
	Color   string                    `mapstructure:"color" yaml:"color"`
	Items   []LabelItem               `mapstructure:"items" yaml:"items"`
	Force   string                    `mapstructure:"force" yaml:"force"`
	Omit    string                    `mapstructure:"omit" yaml:"omit"`
	Mapping LabelMappingConfiguration `mapstructure:"mapping" yaml:"mapping"`
}

// UserConfiguration maps source user names to destination logins.
type UserConfiguration struct {
	Mapping map[string]string `mapstructure:"mapping" yaml:"mapping"`
}

// CategoryConfiguration selects label or milestone-reference mode for versions or milestones.
type CategoryConfiguration struct {
	AsLabel       bool   `mapstructure:"as_label" yaml:"as_label"`
	LabelTemplate string `mapstructure:"label_template" yaml:"label_template"`
}

// TemplateConfiguration holds the title, body, and comment templates.
type TemplateConfiguration struct {
	IssueTitle string `mapstructure:"issue_title" yaml:"issue_title"`
	IssueBody  string `mapstructure:"issue_body" yaml:"issue_body"`
	Comment    string `mapstructure:"comment" yaml:"comment"`
}

// RateLimitConfiguration tunes pacing, secondary rate limit retries, and progress reporting.
type RateLimitConfiguration struct {
	Delay           time.Duration `mapstructure:"delay" yaml:"delay"`
	SecondaryBuffer time.Duration `mapstructure:"secondary_buffer" yaml:"secondary_buffer"`
	MaxAttempts     int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	ReportInterval  int           `mapstructure:"report_interval" yaml:"report_interval"`
}

// ContentConfiguration bounds transformed content.
type ContentConfiguration struct {
	MaxLength int `mapstructure:"max_length" yaml:"max_length"`
}

// DefaultConfiguration returns baseline migration settings.
func DefaultConfiguration() Configuration {
	return Configuration{
		Continue: ContinueConfiguration{
			StartIssueNumber: defaultStartIssueNumberConstant,
			BuildLabels:      true,
			BuildVersions:    true,
			BuildMilestones:  true,
		},
		Labels: LabelConfiguration{Color: defaultLabelColorConstant},
		Versions: CategoryConfiguration{
			AsLabel:       true,
			LabelTemplate: defaultVersionLabelTemplateConstant,
		},
		Milestones: CategoryConfiguration{
			AsLabel:       false,
			LabelTemplate: defaultMilestoneTemplateConstant,
		},
		Templates: TemplateConfiguration{
			IssueTitle: defaultIssueTitleTemplateConstant,
			IssueBody:  defaultIssueBodyTemplateConstant,
			Comment:    defaultCommentTemplateConstant,
		},
		CloseStatuses: []string{"closed", "resolved", "wontfix", "duplicate"},
		RateLimit: RateLimitConfiguration{
			Delay:           ratelimit.DefaultPacingDelay,
			SecondaryBuffer: ratelimit.DefaultSecondaryBuffer,
			MaxAttempts:     ratelimit.DefaultMaximumAttempts,
			ReportInterval:  defaultReportIntervalConstant,
		},
		Content: ContentConfiguration{MaxLength: content.DefaultMaximumLength},
	}
}

// Sanitize trims textual values, drops empty close statuses, fills empty templates and colors
// with defaults, and strips a leading '#' from label colors.
func (configuration Configuration) Sanitize() Configuration {
	defaults := DefaultConfiguration()
	sanitized := configuration

	sanitized.GitHub.Repository = strings.Trim(strings.TrimSpace(configuration.GitHub.Repository), repositorySeparatorConstant)
	sanitized.GitHub.Hostname = strings.TrimSpace(configuration.GitHub.Hostname)
	sanitized.GitHub.AccessToken = strings.TrimSpace(configuration.GitHub.AccessToken)
	sanitized.Source.ExportPath = strings.TrimSpace(configuration.Source.ExportPath)
	sanitized.Source.IssueBaseURL = strings.TrimSpace(configuration.Source.IssueBaseURL)
	sanitized.Labels.Force = strings.TrimSpace(configuration.Labels.Force)
	sanitized.Labels.Omit = strings.TrimSpace(configuration.Labels.Omit)

	sanitized.Labels.Color = normalizeColor(configuration.Labels.Color, defaults.Labels.Color)
	sanitized.Labels.Items = make([]LabelItem, 0, len(configuration.Labels.Items))
	for _, item := range configuration.Labels.Items {
		sanitized.Labels.Items = append(sanitized.Labels.Items, LabelItem{
			Name:  strings.TrimSpace(item.Name),
			Color: normalizeColor(item.Color, sanitized.Labels.Color),
		})
	}

	sanitized.CloseStatuses = make([]string, 0, len(configuration.CloseStatuses))
	for _, status := range configuration.CloseStatuses {
		if trimmedStatus := strings.TrimSpace(status); len(trimmedStatus) > 0 {
			sanitized.CloseStatuses = append(sanitized.CloseStatuses, trimmedStatus)
		}
	}

	if len(strings.TrimSpace(configuration.Templates.IssueTitle)) == 0 {
		sanitized.Templates.IssueTitle = defaults.Templates.IssueTitle
	}
	if len(strings.TrimSpace(configuration.Templates.IssueBody)) == 0 {
		sanitized.Templates.IssueBody = defaults.Templates.IssueBody
	}
	if len(strings.TrimSpace(configuration.Templates.Comment)) == 0 {
		sanitized.Templates.Comment = defaults.Templates.Comment
	}
	if len(strings.TrimSpace(configuration.Versions.LabelTemplate)) == 0 {
		sanitized.Versions.LabelTemplate = defaults.Versions.LabelTemplate
	}
	if len(strings.TrimSpace(configuration.Milestones.LabelTemplate)) == 0 {
		sanitized.Milestones.LabelTemplate = defaults.Milestones.LabelTemplate
	}

	return sanitized
}

// Validate rejects configurations the migration cannot run with.
func (configuration Configuration) Validate() error {
	repository := strings.TrimSpace(configuration.GitHub.Repository)
	if len(repository) == 0 {
		return InvalidConfigurationError{FieldName: repositoryFieldNameConstant, Message: repositoryRequiredMessageConstant}
	}
	repositoryParts := strings.Split(repository, repositorySeparatorConstant)
	if len(repositoryParts) != 2 || len(repositoryParts[0]) == 0 || len(repositoryParts[1]) == 0 {
		return InvalidConfigurationError{FieldName: repositoryFieldNameConstant, Message: repositoryFormatMessageConstant}
	}
	if !configuration.Versions.AsLabel && !configuration.Milestones.AsLabel {
		return InvalidConfigurationError{FieldName: categoryModesFieldNameConstant, Message: labels.ErrBothCategoriesReferenceMilestones.Error()}
	}
	if configuration.RateLimit.MaxAttempts < 1 {
		return InvalidConfigurationError{FieldName: maximumAttemptsFieldNameConstant, Message: maximumAttemptsMessageConstant}
	}
	if configuration.RateLimit.Delay < 0 {
		return InvalidConfigurationError{FieldName: delayFieldNameConstant, Message: negativeDurationMessageConstant}
	}
	if configuration.RateLimit.SecondaryBuffer < 0 {
		return InvalidConfigurationError{FieldName: secondaryBufferFieldNameConstant, Message: negativeDurationMessageConstant}
	}
	if configuration.RateLimit.ReportInterval < 0 {
		return InvalidConfigurationError{FieldName: reportIntervalFieldNameConstant, Message: reportIntervalMessageConstant}
	}
	if configuration.Content.MaxLength <= 0 {
		return InvalidConfigurationError{FieldName: maximumLengthFieldNameConstant, Message: maximumLengthMessageConstant}
	}
	for itemIndex, item := range configuration.Labels.Items {
		if len(strings.TrimSpace(item.Name)) == 0 {
			return InvalidConfigurationError{FieldName: fmt.Sprintf(labelItemFieldNameTemplateConstant, itemIndex), Message: labelItemNameRequiredMessageConstant}
		}
	}
	return nil
}

// LabelRules converts the configuration into resolver rules.
func (configuration Configuration) LabelRules() labels.Rules {
	staticLabels := make([]string, 0, len(configuration.Labels.Items))
	for _, item := range configuration.Labels.Items {
		staticLabels = append(staticLabels, item.Name)
	}
	return labels.Rules{
		StatusLabels:    configuration.Labels.Mapping.Status,
		KindLabels:      configuration.Labels.Mapping.Kinds,
		ComponentLabels: configuration.Labels.Mapping.Components,
		UserLogins:      configuration.Users.Mapping,
		StaticLabels:    staticLabels,
		ForceLabel:      configuration.Labels.Force,
		OmitLabel:       configuration.Labels.Omit,
		Version:         labels.CategoryPolicy{AsLabel: configuration.Versions.AsLabel, LabelTemplate: configuration.Versions.LabelTemplate},
		Milestone:       labels.CategoryPolicy{AsLabel: configuration.Milestones.AsLabel, LabelTemplate: configuration.Milestones.LabelTemplate},
	}
}

// RateLimitSettings converts the configuration into invoker settings.
func (configuration Configuration) RateLimitSettings() ratelimit.Settings {
	return ratelimit.Settings{
		PacingDelay:     configuration.RateLimit.Delay,
		SecondaryBuffer: configuration.RateLimit.SecondaryBuffer,
		MaximumAttempts: configuration.RateLimit.MaxAttempts,
	}
}

// LabelColors returns the color of every statically configured label by name.
func (configuration Configuration) LabelColors() map[string]string {
	colors := make(map[string]string, len(configuration.Labels.Items))
	for _, item := range configuration.Labels.Items {
		colors[item.Name] = item.Color
	}
	return colors
}

func normalizeColor(value string, fallback string) string {
	trimmedValue := strings.TrimPrefix(strings.TrimSpace(value), labelColorPrefixConstant)
	if len(trimmedValue) == 0 {
		return fallback
	}
	return strings.ToLower(trimmedValue)
}
