package views

import (
	"fmt"

	"github.com/slack-go/slack"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/GolovachevS/dailybot/internal/domain"
)

// MaxModalBlocks is the most blocks Slack accepts in a modal.
const MaxModalBlocks = 100

// StatusOptions lists the statuses an issue can be put in: the current status
// first and exactly once, then every available transition target in sorted order.
func StatusOptions(current string, transitions []domain.Transition) []string {
	targets := sets.New[string]()
	for _, t := range transitions {
		if t.IsAvailable && t.ToStatus != "" {
			targets.Insert(t.ToStatus)
		}
	}
	targets.Delete(current)

	options := make([]string, 0, targets.Len()+1)
	if current != "" {
		options = append(options, current)
	}
	return append(options, sets.List(targets)...)
}

// DailyModal renders the daily form for the user's open issues, pre-filled
// with whatever the user already stored for this daily. The daily date travels
// in the private metadata so the submission lands on the same daily.
func DailyModal(user domain.User, issues []domain.Issue, transitions map[string][]domain.Transition, daily domain.Daily) slack.ModalViewRequest {
	report, hasReport := daily.Reports[user.ID()]

	blocks := []slack.Block{
		markdownSection(fmt.Sprintf("*Hi <@%s>!* Please change the statuses of the following issues to the updated status, "+
			"and add comments of the progress of the issues.", user.ID())),
	}

	tail := generalComments(report.GeneralComments)
	for i, issue := range issues {
		issueBlocks := issueForm(issue, transitions[issue.Key], report, hasReport)
		// leave room for the overflow notice and the comments input
		if len(blocks)+len(issueBlocks)+len(tail)+1 > MaxModalBlocks {
			blocks = append(blocks, contextIf(fmt.Sprintf("%d more issues are not shown.", len(issues)-i))...)
			break
		}
		blocks = append(blocks, issueBlocks...)
	}
	blocks = append(blocks, tail...)

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      DailyModalCallbackID,
		Title:           plain("Daily Report"),
		Submit:          plain("Submit"),
		Close:           plain("Cancel"),
		PrivateMetadata: daily.Date,
		Blocks:          slack.Blocks{BlockSet: blocks},
	}
}

func issueForm(issue domain.Issue, transitions []domain.Transition, report domain.DailyReport, hasReport bool) []slack.Block {
	stored, isStored := report.IssueReport(issue.Key)

	ignore := slack.NewCheckboxGroupsBlockElement(IgnoreIssueAction,
		slack.NewOptionBlockObject(IgnoreIssueValue, mrkdwn("Ignore this issue"), nil))
	// a stored report without this issue means the user ignored it last time
	if hasReport && !isStored {
		ignore.InitialOptions = ignore.Options
	}

	elements := []slack.BlockElement{ignore}
	if status := statusSelect(issue.Status, stored.Status, transitions); status != nil {
		elements = append(elements, status)
	}
	elements = append(elements, linkButtonIf(IssueLinkAction, "link-issue-"+issue.Key, issue.Link)...)

	details := slack.NewPlainTextInputBlockElement(nil, IssueSummeryAction)
	details.InitialValue = stored.Details
	detailsInput := slack.NewInputBlock(BlockID(issue.Key, IssueSummeryAction), plain("Progress details"), nil, details)
	detailsInput.Optional = true

	blocks := []slack.Block{
		header(issue.Key + ": " + issue.Summary),
		slack.NewActionBlock(BlockID(issue.Key, SelectStatusAction), elements...),
		detailsInput,
	}
	if isStored {
		blocks = append(blocks, contextIf(storedLine(stored))...)
	}
	return append(blocks, slack.NewDividerBlock())
}

func storedLine(stored domain.DailyIssueReport) string {
	line := "Stored data: " + stored.Status
	if stored.Details != "" {
		line += " - " + stored.Details
	}
	return line
}

func statusSelect(current, stored string, transitions []domain.Transition) *slack.SelectBlockElement {
	statuses := StatusOptions(current, transitions)
	if len(statuses) == 0 {
		return nil
	}

	options := make([]*slack.OptionBlockObject, 0, len(statuses))
	initial := 0
	for i, status := range statuses {
		options = append(options, option(status))
		if status == stored {
			initial = i
		}
	}
	sel := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plain("Select current status"), SelectStatusAction, options...)
	sel.InitialOption = options[initial]
	return sel
}

func generalComments(stored string) []slack.Block {
	comments := slack.NewPlainTextInputBlockElement(nil, GeneralCommentsAction)
	comments.Multiline = true
	comments.InitialValue = stored
	input := slack.NewInputBlock(GeneralCommentsAction, plain("Other comments / blockers"), nil, comments)
	input.Optional = true

	blocks := []slack.Block{input}
	if stored != "" {
		blocks = append(blocks, contextIf("Stored data: "+stored)...)
	}
	return blocks
}

// NotConfiguredModal explains how to set up an unknown user.
func NotConfiguredModal() slack.ModalViewRequest {
	return slack.ModalViewRequest{
		Type:  slack.VTModal,
		Title: plain("Daily Report"),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			header("Your user is not defined!"),
			markdownSection("Press the `Add apps` button in the bottom left corner (bottom of the users list) " +
				"and add the `DailyBot` app, all the configurations are in the home tab."),
		}},
	}
}
