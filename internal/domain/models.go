package domain

import (
	"sort"
	"time"
)

// DateLayout is the format of Daily.Date.
const DateLayout = "2006-01-02"

// JiraHostType selects how a user authenticates against Jira.
type JiraHostType string

const (
	JiraHostLocal JiraHostType = "Local"
	JiraHostCloud JiraHostType = "Cloud"
)

// SlackUserData is captured from the interaction payload when a user saves their configuration.
type SlackUserData struct {
	TeamID     string `json:"team_id" bson:"team_id"`
	TeamDomain string `json:"team_domain" bson:"team_domain"`
	UserID     string `json:"user_id" bson:"user_id"`
	UserName   string `json:"user_name" bson:"user_name"`
}

// User is a configured bot user. Identity is the Slack user id.
type User struct {
	Team          string        `json:"team"`
	JiraServerURL string        `json:"jira_server_url"`
	JiraAPIToken  string        `json:"-"`
	JiraEmail     string        `json:"jira_email"`
	JiraHostType  JiraHostType  `json:"jira_host_type"`
	JiraKeys      []string      `json:"jira_keys"`
	SlackData     SlackUserData `json:"slack_data"`
}

// ID returns the user's identity.
func (u User) ID() string {
	return u.SlackData.UserID
}

// HasBoards reports whether the user picked at least one Jira project.
func (u User) HasBoards() bool {
	return len(u.JiraKeys) > 0
}

// Team is a stand-up team with the channel its summary is posted to.
type Team struct {
	Name         string `json:"name"`
	DailyChannel string `json:"daily_channel"`
}

// DailyIssueReport is one user's update for one Jira issue.
type DailyIssueReport struct {
	Key     string `json:"key" bson:"key"`
	Status  string `json:"status" bson:"status"`
	Details string `json:"details,omitempty" bson:"details,omitempty"`
	Link    string `json:"link,omitempty" bson:"link,omitempty"`
	Summary string `json:"summary,omitempty" bson:"summary,omitempty"`
}

// DailyReport is everything a user submitted for one daily.
type DailyReport struct {
	IssueReports    []DailyIssueReport `json:"issue_reports" bson:"issue_reports"`
	GeneralComments string             `json:"general_comments,omitempty" bson:"general_comments,omitempty"`
	SubmittedAt     time.Time          `json:"submitted_at" bson:"submitted_at"`
}

// IssueReport returns the stored report for the given issue key.
func (r DailyReport) IssueReport(key string) (DailyIssueReport, bool) {
	for _, report := range r.IssueReports {
		if report.Key == key {
			return report, true
		}
	}
	return DailyIssueReport{}, false
}

// IsEmpty reports whether the report carries nothing worth rendering.
func (r DailyReport) IsEmpty() bool {
	return len(r.IssueReports) == 0 && r.GeneralComments == ""
}

// Daily aggregates all reports of a team for one date.
type Daily struct {
	Team    string                 `json:"team"`
	Date    string                 `json:"date"`
	Reports map[string]DailyReport `json:"reports"`
}

// NewDaily returns an empty daily for the team and date.
func NewDaily(team, date string) Daily {
	return Daily{Team: team, Date: date, Reports: map[string]DailyReport{}}
}

// DailyID builds the composite identifier of a daily.
func DailyID(date, team string) string {
	return date + "|" + team
}

// ID returns the composite identifier "<date>|<team>".
func (d Daily) ID() string {
	return DailyID(d.Date, d.Team)
}

// OrderedUserIDs lists report owners by submission time, then user id.
func (d Daily) OrderedUserIDs() []string {
	ids := make([]string, 0, len(d.Reports))
	for id := range d.Reports {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := d.Reports[ids[i]].SubmittedAt, d.Reports[ids[j]].SubmittedAt
		if !a.Equal(b) {
			return a.Before(b)
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Issue is the subset of a Jira issue the bot works with.
type Issue struct {
	Key     string
	Summary string
	Status  string
	Link    string
}

// Transition is a workflow move advertised by Jira for a specific issue.
type Transition struct {
	ID          string
	Name        string
	ToStatus    string
	IsAvailable bool
}

// Project is a Jira project a user can pick as a board.
type Project struct {
	Key  string
	Name string
}
