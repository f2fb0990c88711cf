package form

import (
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/GolovachevS/dailybot/internal/domain"
	"github.com/GolovachevS/dailybot/internal/views"
)

// UserFromConfig reads the home tab configuration form.
func UserFromConfig(callback slack.InteractionCallback) (domain.User, error) {
	state := StateFromView(callback.View)

	var missing []string
	text := func(id, name string) string {
		action, _ := state.Value(id, id)
		value := strings.TrimSpace(action.Value)
		if value == "" {
			missing = append(missing, name)
		}
		return value
	}
	selected := func(id, name string) string {
		action, _ := state.Value(id, id)
		value := action.SelectedOption.Value
		if value == "" {
			missing = append(missing, name)
		}
		return value
	}

	user := domain.User{
		JiraServerURL: text(views.JiraServerURLAction, "jira server url"),
		JiraEmail:     text(views.JiraEmailAction, "jira email"),
		JiraAPIToken:  text(views.JiraAPITokenAction, "jira api token"),
		Team:          selected(views.SelectUserTeam, "team"),
		JiraHostType:  domain.JiraHostCloud,
		JiraKeys:      []string{},
		SlackData: domain.SlackUserData{
			TeamID:     callback.Team.ID,
			TeamDomain: callback.Team.Domain,
			UserID:     callback.User.ID,
			UserName:   callback.User.Name,
		},
	}
	if action, ok := state.Value(views.JiraHostTypeAction, views.JiraHostTypeAction); ok && action.SelectedOption.Value != "" {
		user.JiraHostType = domain.JiraHostType(action.SelectedOption.Value)
	}

	if len(missing) > 0 {
		return domain.User{}, domain.NewValidationError("missing " + strings.Join(missing, ", "))
	}
	if user.JiraHostType != domain.JiraHostCloud && user.JiraHostType != domain.JiraHostLocal {
		return domain.User{}, domain.NewValidationError(fmt.Sprintf("unknown jira host type %q", user.JiraHostType))
	}
	if !strings.HasPrefix(user.JiraServerURL, "http://") && !strings.HasPrefix(user.JiraServerURL, "https://") {
		return domain.User{}, domain.NewValidationError("jira server url must start with http:// or https://")
	}
	if user.SlackData.UserID == "" {
		return domain.User{}, domain.NewValidationError("missing slack user")
	}
	return user, nil
}

// BoardKeys parses a comma separated list of project keys. Blank entries are
// dropped and repeated keys are kept once, in first-seen order.
func BoardKeys(text string) []string {
	return uniqueKeys(strings.Split(text, ","))
}

// SelectedBoardKeys reads the projects picked in the board multi select.
func SelectedBoardKeys(action slack.BlockAction) []string {
	values := make([]string, 0, len(action.SelectedOptions))
	for _, opt := range action.SelectedOptions {
		values = append(values, opt.Value)
	}
	return uniqueKeys(values)
}

func uniqueKeys(values []string) []string {
	seen := sets.New[string]()
	keys := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen.Has(v) {
			continue
		}
		seen.Insert(v)
		keys = append(keys, v)
	}
	return keys
}

// AddTeamArgs parses "/add-team-daily <name> <channel>". The channel may be
// a plain id or an escaped channel mention such as <#C123|general>.
func AddTeamArgs(text string) (domain.Team, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return domain.Team{}, domain.NewValidationError("usage: /add-team-daily <team name> <daily channel>")
	}

	channel := fields[1]
	if strings.HasPrefix(channel, "<#") && strings.HasSuffix(channel, ">") {
		channel = strings.TrimSuffix(strings.TrimPrefix(channel, "<#"), ">")
		channel, _, _ = strings.Cut(channel, "|")
	}
	if channel == "" {
		return domain.Team{}, domain.NewValidationError("daily channel is empty")
	}
	return domain.Team{Name: fields[0], DailyChannel: channel}, nil
}

// ShowDailyArgs holds the parsed arguments of /show-daily-report.
type ShowDailyArgs struct {
	Mode views.SummaryMode
	Date string
}

// ParseShowDailyArgs accepts an optional summary mode and an optional date in
// any order. Missing values come from the defaults.
func ParseShowDailyArgs(text string, defaults ShowDailyArgs) (ShowDailyArgs, error) {
	args := defaults
	for _, field := range strings.Fields(text) {
		if mode, ok := views.ParseSummaryMode(field); ok {
			args.Mode = mode
			continue
		}
		if _, err := time.Parse(domain.DateLayout, field); err == nil {
			args.Date = field
			continue
		}
		return ShowDailyArgs{}, domain.NewValidationError(fmt.Sprintf("unexpected argument %q, use [rich|compact] [YYYY-MM-DD]", field))
	}
	return args, nil
}
