package service

import (
	"context"
	"fmt"

	"github.com/GolovachevS/dailybot/internal/domain"
	"github.com/GolovachevS/dailybot/internal/form"
	"github.com/GolovachevS/dailybot/internal/views"
)

// ShowDaily posts the summary of the user's team into the channel the
// command was issued from. text may carry a mode and a date.
func (s *Service) ShowDaily(ctx context.Context, userID, channelID, text string) error {
	args, err := form.ParseShowDailyArgs(text, form.ShowDailyArgs{Mode: s.mode, Date: s.Today()})
	if err != nil {
		return err
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	daily, err := s.loadDaily(ctx, user.Team, args.Date)
	if err != nil {
		return fmt.Errorf("load daily: %w", err)
	}
	return s.slack.PostMessage(ctx, channelID, views.SummaryTitle(daily), views.Summary(daily, args.Mode))
}

// AddTeam creates a team from the /add-team-daily arguments and returns the reply text.
func (s *Service) AddTeam(ctx context.Context, text string) (string, error) {
	team, err := form.AddTeamArgs(text)
	if err != nil {
		return "", err
	}
	if err := s.repo.CreateTeam(ctx, team); err != nil {
		return "", err
	}
	s.log.Info().Str("team", team.Name).Str("channel", team.DailyChannel).Msg("team added")
	return fmt.Sprintf("Added team %s with daily channel %s", team.Name, team.DailyChannel), nil
}

// PostDailySummaries posts today's daily of every team to its channel.
// Teams without a channel or without reports are skipped and a failing team
// does not stop the others. It returns the number of summaries posted.
func (s *Service) PostDailySummaries(ctx context.Context) (int, error) {
	teams, err := s.repo.ListTeams(ctx)
	if err != nil {
		return 0, fmt.Errorf("list teams: %w", err)
	}

	date := s.Today()
	posted := 0
	for _, team := range teams {
		if team.DailyChannel == "" {
			continue
		}
		log := s.log.With().Str("team", team.Name).Str("date", date).Logger()

		daily, err := s.repo.GetDaily(ctx, team.Name, date)
		if err != nil {
			if !domain.IsNotFound(err) {
				log.Error().Err(err).Msg("load daily failed")
			}
			continue
		}
		if !hasContent(daily) {
			continue
		}

		if err := s.slack.PostMessage(ctx, team.DailyChannel, views.SummaryTitle(daily), views.Summary(daily, s.mode)); err != nil {
			log.Error().Err(err).Msg("post daily summary failed")
			continue
		}
		posted++
	}
	return posted, nil
}

func hasContent(daily domain.Daily) bool {
	for _, report := range daily.Reports {
		if !report.IsEmpty() {
			return true
		}
	}
	return false
}
