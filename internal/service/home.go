package service

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/GolovachevS/dailybot/internal/domain"
	"github.com/GolovachevS/dailybot/internal/form"
	"github.com/GolovachevS/dailybot/internal/views"
)

// PublishHome renders the home tab matching the user's configuration state.
// There is no channel to report a failed publish to, so it is only logged.
func (s *Service) PublishHome(ctx context.Context, userID string) error {
	var (
		user     *domain.User
		teams    []domain.Team
		projects []domain.Project
	)

	stored, err := s.repo.GetUser(ctx, userID)
	switch {
	case err == nil:
		user = &stored
	case domain.IsNotFound(err):
		teams, err = s.repo.ListTeams(ctx)
		if err != nil {
			return fmt.Errorf("list teams: %w", err)
		}
	default:
		return fmt.Errorf("load user %s: %w", userID, err)
	}

	if user != nil && !user.HasBoards() {
		projects = s.projects(ctx, *user)
	}

	s.publish(ctx, userID, views.Home(teams, user, projects))
	return nil
}

// SaveConfiguration stores the credentials from the home tab form and moves
// the user on to board selection.
func (s *Service) SaveConfiguration(ctx context.Context, callback slack.InteractionCallback) error {
	user, err := form.UserFromConfig(callback)
	if err != nil {
		return err
	}
	if _, err := s.repo.GetTeam(ctx, user.Team); err != nil {
		return fmt.Errorf("load team %s: %w", user.Team, err)
	}
	if err := s.repo.PutUser(ctx, user); err != nil {
		return fmt.Errorf("save user %s: %w", user.ID(), err)
	}

	s.log.Info().Str("user", user.ID()).Str("team", user.Team).Msg("user configured")
	s.publish(ctx, user.ID(), views.BoardSelection(s.projects(ctx, user)))
	return nil
}

// SaveBoards stores the Jira projects the user's daily is built from.
func (s *Service) SaveBoards(ctx context.Context, userID string, keys []string) error {
	if len(keys) == 0 {
		return domain.NewValidationError("select at least one board")
	}
	if err := s.repo.UpdateJiraKeys(ctx, userID, keys); err != nil {
		return fmt.Errorf("save boards of %s: %w", userID, err)
	}

	s.log.Info().Str("user", userID).Strs("boards", keys).Msg("boards saved")
	s.publish(ctx, userID, views.Configured())
	return nil
}

// projects degrades to an empty list so the user can still type board keys.
func (s *Service) projects(ctx context.Context, user domain.User) []domain.Project {
	projects, err := s.jira.ListProjects(ctx, user)
	if err != nil {
		s.log.Warn().Err(err).Str("user", user.ID()).Msg("list jira projects failed")
		return nil
	}
	return projects
}

func (s *Service) publish(ctx context.Context, userID string, view slack.HomeTabViewRequest) {
	if err := s.slack.PublishView(ctx, userID, view); err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("publish home tab failed")
	}
}
