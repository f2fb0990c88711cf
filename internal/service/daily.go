package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"golang.org/x/sync/errgroup"

	"github.com/GolovachevS/dailybot/internal/domain"
	"github.com/GolovachevS/dailybot/internal/form"
	"github.com/GolovachevS/dailybot/internal/views"
)

// transitionLookups bounds concurrent Jira calls while the modal is built.
// Slack trigger ids expire after a few seconds, so lookups cannot run one by one.
const transitionLookups = 8

// OpenDaily opens today's daily form. Users without configuration get the
// setup instructions instead. Jira failures leave the form with fewer options.
func (s *Service) OpenDaily(ctx context.Context, userID, triggerID string) error {
	user, err := s.loadUser(ctx, userID)
	if domain.HasCode(err, domain.ErrCodeConfigurationMissing) {
		return s.slack.OpenView(ctx, triggerID, views.NotConfiguredModal())
	}
	if err != nil {
		return err
	}

	daily, err := s.loadDaily(ctx, user.Team, s.Today())
	if err != nil {
		return fmt.Errorf("load daily: %w", err)
	}

	issues, err := s.jira.ListOpenIssues(ctx, user)
	if err != nil {
		s.log.Warn().Err(err).Str("user", userID).Msg("list open issues failed")
	}

	modal := views.DailyModal(user, issues, s.transitions(ctx, user, issues), daily)
	return s.slack.OpenView(ctx, triggerID, modal)
}

func (s *Service) transitions(ctx context.Context, user domain.User, issues []domain.Issue) map[string][]domain.Transition {
	var (
		mu  sync.Mutex
		out = make(map[string][]domain.Transition, len(issues))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(transitionLookups)
	for _, issue := range issues {
		g.Go(func() error {
			transitions, err := s.jira.ListTransitions(gctx, user, issue.Key)
			if err != nil {
				s.log.Warn().Err(err).Str("issue", issue.Key).Msg("list transitions failed")
				return nil
			}
			mu.Lock()
			out[issue.Key] = transitions
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// SubmitDaily validates the submitted form and returns so Slack gets its
// reply in time. Jira sync and the save continue in the background, detached
// from the request, for the daily the form was rendered for. A failing issue
// never prevents the report from being saved.
func (s *Service) SubmitDaily(ctx context.Context, userID string, view slack.View) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	report, err := form.Reconcile(form.StateFromView(view))
	if err != nil {
		return err
	}
	report.SubmittedAt = s.now().UTC()

	date := view.PrivateMetadata
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		date = s.Today()
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.submitTimeout)
		defer cancel()
		if err := s.saveReport(ctx, user, date, report); err != nil {
			s.log.Error().Err(err).Str("user", user.ID()).Str("date", date).Msg("daily report not saved")
		}
	}()
	return nil
}

func (s *Service) saveReport(ctx context.Context, user domain.User, date string, report domain.DailyReport) error {
	for i := range report.IssueReports {
		s.syncIssue(ctx, user, &report.IssueReports[i])
	}

	if err := s.repo.PutDailyReport(ctx, user.Team, date, user.ID(), report); err != nil {
		return fmt.Errorf("save daily report: %w", err)
	}
	s.log.Info().Str("user", user.ID()).Str("team", user.Team).Str("date", date).
		Int("issues", len(report.IssueReports)).Msg("daily report saved")
	return nil
}

// syncIssue enriches the report with the issue's link and summary and moves
// the issue to the reported status when Jira allows it.
func (s *Service) syncIssue(ctx context.Context, user domain.User, report *domain.DailyIssueReport) {
	log := s.log.With().Str("user", user.ID()).Str("issue", report.Key).Logger()

	issue, err := s.jira.FetchIssue(ctx, user, report.Key)
	if err != nil {
		log.Warn().Err(err).Msg("fetch issue failed")
		return
	}
	report.Link = issue.Link
	report.Summary = issue.Summary

	if report.Status == "" || report.Status == issue.Status {
		return
	}

	transitions, err := s.jira.ListTransitions(ctx, user, report.Key)
	if err != nil {
		log.Warn().Err(err).Msg("list transitions failed")
		return
	}
	transition, ok := findTransition(transitions, report.Status)
	if !ok {
		log.Warn().Err(domain.NewStaleTransitionError(report.Key, report.Status)).Msg("status not reachable")
		return
	}
	if err := s.jira.ApplyTransition(ctx, user, report.Key, transition.ID); err != nil {
		log.Warn().Err(err).Str("transition", transition.ID).Msg("apply transition failed")
		return
	}
	log.Info().Str("from", issue.Status).Str("to", report.Status).Msg("issue transitioned")
}

func findTransition(transitions []domain.Transition, status string) (domain.Transition, bool) {
	for _, t := range transitions {
		if t.IsAvailable && t.ToStatus == status {
			return t, true
		}
	}
	return domain.Transition{}, false
}

// CheckStatus verifies a status picked in the open form is still reachable.
func (s *Service) CheckStatus(ctx context.Context, userID, blockID, status string) error {
	key, _, ok := views.ParseBlockID(blockID)
	if !ok {
		return domain.NewValidationError(fmt.Sprintf("malformed block id %q", blockID))
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	issue, err := s.jira.FetchIssue(ctx, user, key)
	if err != nil {
		return err
	}
	if status == issue.Status {
		return nil
	}
	transitions, err := s.jira.ListTransitions(ctx, user, key)
	if err != nil {
		return err
	}
	if _, ok := findTransition(transitions, status); !ok {
		return domain.NewStaleTransitionError(key, status)
	}
	return nil
}
