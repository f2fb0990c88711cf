package views

import (
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/GolovachevS/dailybot/internal/domain"
)

// SummaryMode selects how a daily is rendered in a channel.
type SummaryMode string

const (
	SummaryCompact SummaryMode = "compact"
	SummaryRich    SummaryMode = "rich"
)

// ParseSummaryMode accepts the names of the known modes.
func ParseSummaryMode(s string) (SummaryMode, bool) {
	switch mode := SummaryMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case SummaryCompact, SummaryRich:
		return mode, true
	default:
		return "", false
	}
}

var mrkdwnEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// SummaryTitle is the heading of a daily summary, also used as the
// notification text of the message.
func SummaryTitle(daily domain.Daily) string {
	return "Daily Report for " + daily.Date
}

// Summary renders all reports of a daily. Users are listed by submission
// order and users without content are left out. A rich rendering that does
// not fit into one message falls back to the compact one.
func Summary(daily domain.Daily, mode SummaryMode) []slack.Block {
	blocks := []slack.Block{
		header(SummaryTitle(daily)),
		slack.NewContextBlock("", plain("Feel free to extend and comment in the thread.")),
	}

	if mode == SummaryRich {
		rich := richSummary(daily)
		if len(blocks)+len(rich) <= MaxMessageBlocks {
			return append(blocks, rich...)
		}
	}
	return append(blocks, markdownSections(CompactSummaryText(daily))...)
}

// CompactSummaryText renders one line per issue under a mention of its reporter.
func CompactSummaryText(daily domain.Daily) string {
	var users []string
	for _, userID := range daily.OrderedUserIDs() {
		report := daily.Reports[userID]
		if report.IsEmpty() {
			continue
		}

		lines := []string{fmt.Sprintf("<@%s>:", userID)}
		for _, issue := range report.IssueReports {
			lines = append(lines, compactIssueLine(issue))
		}
		if report.GeneralComments != "" {
			lines = append(lines, " - "+mrkdwnEscaper.Replace(report.GeneralComments))
		}
		users = append(users, strings.Join(lines, "\n"))
	}
	return strings.Join(users, "\n")
}

func compactIssueLine(issue domain.DailyIssueReport) string {
	label := issue.Summary
	if label == "" {
		label = issue.Key
	}
	label = mrkdwnEscaper.Replace(label)
	if issue.Link != "" {
		label = "<" + issue.Link + "|" + strings.ReplaceAll(label, "|", "/") + ">"
	}

	line := " - " + label + " - " + issue.Status
	if issue.Details != "" {
		line += " - " + mrkdwnEscaper.Replace(issue.Details)
	}
	return line
}

func richSummary(daily domain.Daily) []slack.Block {
	var blocks []slack.Block
	for _, userID := range daily.OrderedUserIDs() {
		report := daily.Reports[userID]
		for _, issue := range report.IssueReports {
			blocks = append(blocks, richIssue(userID, issue)...)
		}
		blocks = append(blocks, richComments(userID, report.GeneralComments)...)
	}
	return blocks
}

func richIssue(userID string, issue domain.DailyIssueReport) []slack.Block {
	title := issue.Key
	if issue.Summary != "" {
		title += " - " + issue.Summary
	}

	var fields []*slack.TextBlockObject
	if issue.Status != "" {
		fields = append(fields, plain(issue.Status))
	}
	fields = append(fields, mrkdwn(fmt.Sprintf("*<@%s>*", userID)))

	var accessory *slack.Accessory
	if buttons := linkButtonIf(IssueLinkAction, "link-issue-"+issue.Key, issue.Link); len(buttons) > 0 {
		accessory = slack.NewAccessory(buttons[0])
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(plain(truncate(title, MaxTextLength)), nil, nil),
		slack.NewSectionBlock(nil, fields, accessory),
	}
	blocks = append(blocks, plainSectionIf(":speech_balloon: ", issue.Details)...)
	return append(blocks, slack.NewDividerBlock())
}

func richComments(userID, comments string) []slack.Block {
	if comments == "" {
		return nil
	}
	return []slack.Block{
		header("General Comments"),
		slack.NewContextBlock("", mrkdwn(fmt.Sprintf("<@%s>", userID))),
		slack.NewSectionBlock(plain(truncate(comments, MaxTextLength)), nil, nil),
		slack.NewDividerBlock(),
	}
}
