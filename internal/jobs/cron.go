package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/GolovachevS/dailybot/internal/config"
)

const summaryTimeout = 5 * time.Minute

type summaryPoster interface {
	PostDailySummaries(ctx context.Context) (int, error)
}

// Cron posts every team's daily summary on the configured schedule.
type Cron struct {
	log     zerolog.Logger
	svc     summaryPoster
	c       *cron.Cron
	timeout time.Duration
}

// NewCron schedules the summary job. An empty schedule leaves the job disabled.
func NewCron(cfg config.DailyConfig, loc *time.Location, log zerolog.Logger, svc summaryPoster) (*Cron, error) {
	log = log.With().Str("component", "cron").Logger()
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(&log))),
	)
	cr := &Cron{log: log, svc: svc, c: c, timeout: summaryTimeout}

	if cfg.SummaryCron == "" {
		log.Info().Msg("daily summary schedule disabled")
		return cr, nil
	}
	if _, err := c.AddFunc(cfg.SummaryCron, cr.postSummaries); err != nil {
		return nil, fmt.Errorf("schedule daily summary %q: %w", cfg.SummaryCron, err)
	}
	return cr, nil
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop halts the scheduler and returns a context done once the running job finished.
func (cr *Cron) Stop() context.Context { return cr.c.Stop() }

// Scheduled reports whether the summary job is registered.
func (cr *Cron) Scheduled() bool { return len(cr.c.Entries()) > 0 }

func (cr *Cron) postSummaries() {
	ctx, cancel := context.WithTimeout(context.Background(), cr.timeout)
	defer cancel()

	cr.log.Info().Msg("cron: daily summaries")
	posted, err := cr.svc.PostDailySummaries(ctx)
	if err != nil {
		cr.log.Error().Err(err).Msg("cron: daily summaries failed")
		return
	}
	cr.log.Info().Int("posted", posted).Msg("cron: daily summaries done")
}
