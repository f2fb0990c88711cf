package views

import (
	"github.com/slack-go/slack"

	"github.com/GolovachevS/dailybot/internal/domain"
)

const apiTokenHelp = "To generate Jira API Token go to https://id.atlassian.com/manage-profile/security/api-tokens"

// Home picks the home tab for the user's configuration state: a credentials
// form for unknown users, board selection until boards are chosen, and a
// confirmation once everything is set.
func Home(teams []domain.Team, user *domain.User, projects []domain.Project) slack.HomeTabViewRequest {
	switch {
	case user == nil:
		return ConfigurationForm(teams)
	case !user.HasBoards():
		return BoardSelection(projects)
	default:
		return Configured()
	}
}

func homeTab(blocks ...slack.Block) slack.HomeTabViewRequest {
	return slack.HomeTabViewRequest{Type: slack.VTHomeTab, Blocks: slack.Blocks{BlockSet: blocks}}
}

func textInput(blockID, label string, hint *slack.TextBlockObject) *slack.InputBlock {
	return slack.NewInputBlock(blockID, plain(label), hint, slack.NewPlainTextInputBlockElement(nil, blockID))
}

// ConfigurationForm asks for Jira credentials and the user's team.
func ConfigurationForm(teams []domain.Team) slack.HomeTabViewRequest {
	hostTypes := []*slack.OptionBlockObject{option(string(domain.JiraHostCloud)), option(string(domain.JiraHostLocal))}
	hostType := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plain("Select options"), JiraHostTypeAction, hostTypes...)
	hostType.InitialOption = hostTypes[0]

	save := slack.NewButtonBlockElement(SaveUserConfigurations, SaveUserConfigurations, plain("Save"))

	return homeTab(
		markdownSection("*Hey there! im DailyBot :smile:*"),
		slack.NewDividerBlock(),
		markdownSection("Lets configure your profile :gear:"),
		slack.NewDividerBlock(),
		textInput(JiraServerURLAction, "Jira server url",
			plain("https://<your-domain>.atlassian.net/ (if using cloud), don't forget the 'https://'")),
		slack.NewInputBlock(JiraHostTypeAction, plain("Select your Jira host type"), nil, hostType),
		textInput(JiraEmailAction, "Jira E-Mail", nil),
		slack.NewDividerBlock(),
		textInput(JiraAPITokenAction, "Jira API Token", nil),
		slack.NewContextBlock("", mrkdwn(apiTokenHelp)),
		slack.NewDividerBlock(),
		teamSelector(teams),
		slack.NewActionBlock("", save),
	)
}

func teamSelector(teams []domain.Team) slack.Block {
	if len(teams) == 0 {
		return slack.NewContextBlock(SelectUserTeam, mrkdwn("No teams yet. Create one with `/add-team-daily <team name> <daily channel>`."))
	}
	options := make([]*slack.OptionBlockObject, 0, len(teams))
	for _, team := range teams {
		options = append(options, option(team.Name))
	}
	teamSelect := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plain("Teams"), SelectUserTeam, options...)
	return slack.NewSectionBlock(mrkdwn("*Select your team*"), nil, slack.NewAccessory(teamSelect),
		slack.SectionBlockOptionBlockID(SelectUserTeam))
}

// BoardSelection lets the user pick Jira projects. Slack select menus hold
// between one and MaxSlackSelectorOptions entries, other lists fall back to
// typing keys.
func BoardSelection(projects []domain.Project) slack.HomeTabViewRequest {
	blocks := []slack.Block{header("Configurations is set")}

	if len(projects) > 0 && len(projects) < MaxSlackSelectorOptions {
		options := make([]*slack.OptionBlockObject, 0, len(projects))
		for _, project := range projects {
			options = append(options, option(project.Key))
		}
		boards := slack.NewOptionsMultiSelectBlockElement(slack.MultiOptTypeStatic, plain("Select options"), SelectUserBoard, options...)
		blocks = append(blocks, slack.NewSectionBlock(
			mrkdwn("*Select your Jira boards from the select options*"), nil, slack.NewAccessory(boards),
			slack.SectionBlockOptionBlockID(TypeOrSelectUserBoard),
		))
		return homeTab(blocks...)
	}

	input := slack.NewInputBlock(TypeOrSelectUserBoard, plain("Please write your issue keys:"), nil,
		slack.NewPlainTextInputBlockElement(nil, TypeUserBoard))
	submit := slack.NewButtonBlockElement(SaveUserBoard, SaveUserBoard, plain("Submit"))
	blocks = append(blocks,
		input,
		slack.NewContextBlock("", plain("Please write the keys in a list like so: `EDGE,ULT` with , and no spaces")),
		slack.NewActionBlock("", submit),
	)
	return homeTab(blocks...)
}

// Configured confirms the setup and explains how to open the daily form.
func Configured() slack.HomeTabViewRequest {
	return homeTab(
		header("Well done! Every thing is configured!"),
		markdownSection("Click the + button in the text area and write `daily`. click `daily with Daily Bot` to fill out daily form."),
		slack.NewContextBlock("", mrkdwn("Other capabilities will come soon..")),
	)
}
