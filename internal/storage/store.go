package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/GolovachevS/dailybot/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxPool interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements the service.Repository interface using PostgreSQL.
type Store struct {
	pool pgxPool
}

func New(pool pgxPool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT user_id, team, jira_server_url, jira_api_token, jira_email, jira_host_type,
		jira_keys, slack_team_id, slack_team_domain, slack_user_name
		FROM users WHERE user_id=$1`, userID)

	var user domain.User
	var hostType string
	err := row.Scan(
		&user.SlackData.UserID,
		&user.Team,
		&user.JiraServerURL,
		&user.JiraAPIToken,
		&user.JiraEmail,
		&hostType,
		&user.JiraKeys,
		&user.SlackData.TeamID,
		&user.SlackData.TeamDomain,
		&user.SlackData.UserName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.NewNotFoundError("user not found", err)
		}
		return domain.User{}, err
	}
	user.JiraHostType = domain.JiraHostType(hostType)
	return user, nil
}

func (s *Store) PutUser(ctx context.Context, user domain.User) error {
	keys := user.JiraKeys
	if keys == nil {
		keys = []string{}
	}
	_, err := s.pool.Exec(
		ctx,
		`INSERT INTO users(user_id, team, jira_server_url, jira_api_token, jira_email, jira_host_type,
		                   jira_keys, slack_team_id, slack_team_domain, slack_user_name)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (user_id)
		 DO UPDATE SET team = EXCLUDED.team,
		               jira_server_url = EXCLUDED.jira_server_url,
		               jira_api_token = EXCLUDED.jira_api_token,
		               jira_email = EXCLUDED.jira_email,
		               jira_host_type = EXCLUDED.jira_host_type,
		               jira_keys = EXCLUDED.jira_keys,
		               slack_team_id = EXCLUDED.slack_team_id,
		               slack_team_domain = EXCLUDED.slack_team_domain,
		               slack_user_name = EXCLUDED.slack_user_name,
		               updated_at = NOW()`,
		user.ID(),
		user.Team,
		user.JiraServerURL,
		user.JiraAPIToken,
		user.JiraEmail,
		string(user.JiraHostType),
		keys,
		user.SlackData.TeamID,
		user.SlackData.TeamDomain,
		user.SlackData.UserName,
	)
	return err
}

func (s *Store) UpdateJiraKeys(ctx context.Context, userID string, keys []string) error {
	if keys == nil {
		keys = []string{}
	}
	tag, err := s.pool.Exec(ctx, `UPDATE users SET jira_keys=$2, updated_at=NOW() WHERE user_id=$1`, userID, keys)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("user not found", nil)
	}
	return nil
}

func (s *Store) GetTeam(ctx context.Context, name string) (domain.Team, error) {
	var team domain.Team
	row := s.pool.QueryRow(ctx, `SELECT name, daily_channel FROM teams WHERE name=$1`, name)
	if err := row.Scan(&team.Name, &team.DailyChannel); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Team{}, domain.NewNotFoundError("team not found", err)
		}
		return domain.Team{}, err
	}
	return team, nil
}

func (s *Store) ListTeams(ctx context.Context) ([]domain.Team, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, daily_channel FROM teams ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []domain.Team
	for rows.Next() {
		var team domain.Team
		if err := rows.Scan(&team.Name, &team.DailyChannel); err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

func (s *Store) CreateTeam(ctx context.Context, team domain.Team) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO teams(name, daily_channel) VALUES($1, $2)`, team.Name, team.DailyChannel)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewTeamExistsError(err)
		}
		return err
	}
	return nil
}

func (s *Store) GetDaily(ctx context.Context, team, date string) (domain.Daily, error) {
	dailyID := domain.DailyID(date, team)

	daily := domain.NewDaily(team, date)
	row := s.pool.QueryRow(ctx, `SELECT team, date FROM dailies WHERE daily_id=$1`, dailyID)
	if err := row.Scan(&daily.Team, &daily.Date); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Daily{}, domain.NewNotFoundError("daily not found", err)
		}
		return domain.Daily{}, err
	}

	rows, err := s.pool.Query(ctx, `SELECT user_id, issue_reports, general_comments, submitted_at
		FROM daily_reports WHERE daily_id=$1 ORDER BY submitted_at, user_id`, dailyID)
	if err != nil {
		return domain.Daily{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID  string
			payload []byte
			report  domain.DailyReport
		)
		if err := rows.Scan(&userID, &payload, &report.GeneralComments, &report.SubmittedAt); err != nil {
			return domain.Daily{}, err
		}
		if err := json.Unmarshal(payload, &report.IssueReports); err != nil {
			return domain.Daily{}, fmt.Errorf("decode issue reports of %s: %w", userID, err)
		}
		daily.Reports[userID] = report
	}
	if err := rows.Err(); err != nil {
		return domain.Daily{}, err
	}

	return daily, nil
}

// PutDaily replaces the whole daily, reports included.
func (s *Store) PutDaily(ctx context.Context, daily domain.Daily) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer rollbackTx(ctx, tx)

	if err := ensureDailyTx(ctx, tx, daily.Team, daily.Date); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM daily_reports WHERE daily_id=$1`, daily.ID()); err != nil {
		return err
	}
	for userID, report := range daily.Reports {
		if err := upsertReportTx(ctx, tx, daily.ID(), userID, report); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// PutDailyReport upserts a single user's report without touching the others.
func (s *Store) PutDailyReport(ctx context.Context, team, date, userID string, report domain.DailyReport) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer rollbackTx(ctx, tx)

	if err := ensureDailyTx(ctx, tx, team, date); err != nil {
		return err
	}
	if err := upsertReportTx(ctx, tx, domain.DailyID(date, team), userID, report); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Helper functions

func ensureDailyTx(ctx context.Context, tx pgx.Tx, team, date string) error {
	_, err := tx.Exec(
		ctx,
		`INSERT INTO dailies(daily_id, team, date) VALUES($1, $2, $3) ON CONFLICT (daily_id) DO NOTHING`,
		domain.DailyID(date, team),
		team,
		date,
	)
	return err
}

func upsertReportTx(ctx context.Context, tx pgx.Tx, dailyID, userID string, report domain.DailyReport) error {
	issues := report.IssueReports
	if issues == nil {
		issues = []domain.DailyIssueReport{}
	}
	payload, err := json.Marshal(issues)
	if err != nil {
		return fmt.Errorf("encode issue reports: %w", err)
	}

	_, err = tx.Exec(
		ctx,
		`INSERT INTO daily_reports(daily_id, user_id, issue_reports, general_comments, submitted_at)
		 VALUES($1, $2, $3, $4, $5)
		 ON CONFLICT (daily_id, user_id)
		 DO UPDATE SET issue_reports = EXCLUDED.issue_reports,
		               general_comments = EXCLUDED.general_comments,
		               submitted_at = EXCLUDED.submitted_at`,
		dailyID,
		userID,
		payload,
		report.GeneralComments,
		report.SubmittedAt,
	)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func rollbackTx(ctx context.Context, tx pgx.Tx) {
	if tx == nil {
		return
	}
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		_ = err // rollback is best-effort; nothing else to do here
	}
}
