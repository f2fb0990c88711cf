package views

import "strings"

// Reserved identifiers. None of them can be a Jira issue key: keys are upper-case and
// never contain an underscore.
const (
	DailyShortcutID        = "daily"
	DailyModalCallbackID   = "daily_modal_submission"
	SelectStatusAction     = "select_status_action"
	IssueLinkAction        = "issue_link_action"
	IssueSummeryAction     = "issue_summery_action"
	IgnoreIssueAction      = "ignore_issue_action"
	GeneralCommentsAction  = "general_comments_action"
	SaveUserConfigurations = "save_user_configurations"
	SelectUserTeam         = "select_user_team"
	TypeOrSelectUserBoard  = "type_or_select_user_board"
	SelectUserBoard        = "select_user_board"
	TypeUserBoard          = "type_user_board"
	SaveUserBoard          = "save_user_board"
	JiraHostTypeAction     = "jira_host_type"
	JiraServerURLAction    = "jira_server_url_action"
	JiraEmailAction        = "jira_email_action"
	JiraAPITokenAction     = "jira_api_token_action"
)

const (
	// BlockIDSeparator joins an issue key and a field role.
	BlockIDSeparator = "|"

	// MaxSlackSelectorOptions is the most options a Slack select menu accepts.
	MaxSlackSelectorOptions = 100

	// IgnoreIssueValue is the value of the checked ignore box.
	IgnoreIssueValue = "ignore-issue"
)

var reserved = map[string]struct{}{
	DailyShortcutID:        {},
	DailyModalCallbackID:   {},
	SelectStatusAction:     {},
	IssueLinkAction:        {},
	IssueSummeryAction:     {},
	IgnoreIssueAction:      {},
	GeneralCommentsAction:  {},
	SaveUserConfigurations: {},
	SelectUserTeam:         {},
	TypeOrSelectUserBoard:  {},
	SelectUserBoard:        {},
	TypeUserBoard:          {},
	SaveUserBoard:          {},
	JiraHostTypeAction:     {},
	JiraServerURLAction:    {},
	JiraEmailAction:        {},
	JiraAPITokenAction:     {},
}

// IsReserved reports whether id is one of the non issue-scoped identifiers.
func IsReserved(id string) bool {
	_, ok := reserved[id]
	return ok
}

// BlockID builds the identifier of an issue-scoped field.
func BlockID(issueKey, role string) string {
	return issueKey + BlockIDSeparator + role
}

// ParseBlockID splits an issue-scoped identifier into issue key and role.
// Both parts must be non-empty, the separator must appear exactly once and
// the key must not collide with a reserved identifier.
func ParseBlockID(id string) (issueKey, role string, ok bool) {
	parts := strings.Split(id, BlockIDSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || IsReserved(parts[0]) {
		return "", "", false
	}
	return parts[0], parts[1], true
}
