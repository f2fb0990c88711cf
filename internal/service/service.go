package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/GolovachevS/dailybot/internal/domain"
	"github.com/GolovachevS/dailybot/internal/views"
)

// Repository defines required storage methods to satisfy the bot flows.
type Repository interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
	PutUser(ctx context.Context, user domain.User) error
	UpdateJiraKeys(ctx context.Context, userID string, keys []string) error
	GetTeam(ctx context.Context, name string) (domain.Team, error)
	ListTeams(ctx context.Context) ([]domain.Team, error)
	CreateTeam(ctx context.Context, team domain.Team) error
	GetDaily(ctx context.Context, team, date string) (domain.Daily, error)
	PutDaily(ctx context.Context, daily domain.Daily) error
	PutDailyReport(ctx context.Context, team, date, userID string, report domain.DailyReport) error
}

// Jira is the per-user view of the issue tracker.
type Jira interface {
	ListOpenIssues(ctx context.Context, user domain.User) ([]domain.Issue, error)
	ListTransitions(ctx context.Context, user domain.User, key string) ([]domain.Transition, error)
	ApplyTransition(ctx context.Context, user domain.User, key, transitionID string) error
	FetchIssue(ctx context.Context, user domain.User, key string) (domain.Issue, error)
	ListProjects(ctx context.Context, user domain.User) ([]domain.Project, error)
}

// Slack delivers rendered views and messages.
type Slack interface {
	OpenView(ctx context.Context, triggerID string, view slack.ModalViewRequest) error
	PublishView(ctx context.Context, userID string, view slack.HomeTabViewRequest) error
	PostMessage(ctx context.Context, channelID, text string, blocks []slack.Block) error
}

// defaultSubmitTimeout bounds the Jira sync and save that follow a daily submission.
const defaultSubmitTimeout = 2 * time.Minute

// Options tune the service. Zero values fall back to UTC, compact summaries,
// time.Now and defaultSubmitTimeout.
type Options struct {
	Location      *time.Location
	SummaryMode   views.SummaryMode
	Now           func() time.Time
	SubmitTimeout time.Duration
}

// Service orchestrates the bot flows.
type Service struct {
	repo  Repository
	jira  Jira
	slack Slack
	log   zerolog.Logger

	loc           *time.Location
	mode          views.SummaryMode
	now           func() time.Time
	submitTimeout time.Duration

	// pending tracks submissions still syncing after the reply went out.
	pending sync.WaitGroup
}

// New returns a configured service.
func New(repo Repository, jira Jira, slack Slack, log zerolog.Logger, opts Options) *Service {
	s := &Service{
		repo:  repo,
		jira:  jira,
		slack: slack,
		log:   log.With().Str("component", "service").Logger(),
		loc:   opts.Location,
		mode:  opts.SummaryMode,
		now:   opts.Now,

		submitTimeout: opts.SubmitTimeout,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.mode == "" {
		s.mode = views.SummaryCompact
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.submitTimeout <= 0 {
		s.submitTimeout = defaultSubmitTimeout
	}
	return s
}

// Wait blocks until every accepted submission has been synced and saved.
func (s *Service) Wait() {
	s.pending.Wait()
}

// Today is the current date in the configured timezone.
func (s *Service) Today() string {
	return s.now().In(s.loc).Format(domain.DateLayout)
}

// loadUser returns ConfigurationMissing for users that never saved the home tab form.
func (s *Service) loadUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.User{}, domain.NewConfigurationMissingError(userID)
		}
		return domain.User{}, err
	}
	return user, nil
}

// loadDaily returns an empty daily when nothing was stored for the date yet.
func (s *Service) loadDaily(ctx context.Context, team, date string) (domain.Daily, error) {
	daily, err := s.repo.GetDaily(ctx, team, date)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.NewDaily(team, date), nil
		}
		return domain.Daily{}, err
	}
	return daily, nil
}
