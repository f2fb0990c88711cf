package form

import (
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/GolovachevS/dailybot/internal/domain"
	"github.com/GolovachevS/dailybot/internal/views"
)

type issueDraft struct {
	report  domain.DailyIssueReport
	ignored bool
}

// Reconcile builds a DailyReport from the submitted daily modal. Issue
// reports keep the order in which their keys first appear and issues marked
// as ignored are dropped. SubmittedAt is left for the caller to stamp.
func Reconcile(state State) (domain.DailyReport, error) {
	var (
		report domain.DailyReport
		order  []string
		drafts = make(map[string]*issueDraft)
	)

	draftFor := func(key string) *issueDraft {
		d, ok := drafts[key]
		if !ok {
			d = &issueDraft{report: domain.DailyIssueReport{Key: key}}
			drafts[key] = d
			order = append(order, key)
		}
		return d
	}

	for _, entry := range state {
		if entry.BlockID == views.GeneralCommentsAction {
			report.GeneralComments = strings.TrimSpace(entry.Values[views.GeneralCommentsAction].Value)
			continue
		}

		key, role, ok := views.ParseBlockID(entry.BlockID)
		if !ok {
			return domain.DailyReport{}, domain.NewValidationError(fmt.Sprintf("malformed block id %q", entry.BlockID))
		}

		d := draftFor(key)
		switch role {
		case views.SelectStatusAction:
			if action, ok := entry.Values[views.SelectStatusAction]; ok {
				d.report.Status = action.SelectedOption.Value
			}
			if action, ok := entry.Values[views.IgnoreIssueAction]; ok {
				d.ignored = isChecked(action, views.IgnoreIssueValue)
			}
		case views.IssueSummeryAction:
			d.report.Details = strings.TrimSpace(entry.Values[views.IssueSummeryAction].Value)
		default:
			return domain.DailyReport{}, domain.NewValidationError(fmt.Sprintf("unknown field %q for issue %s", role, key))
		}
	}

	for _, key := range order {
		if d := drafts[key]; !d.ignored {
			report.IssueReports = append(report.IssueReports, d.report)
		}
	}
	return report, nil
}

func isChecked(action slack.BlockAction, value string) bool {
	for _, opt := range action.SelectedOptions {
		if opt.Value == value {
			return true
		}
	}
	return false
}
