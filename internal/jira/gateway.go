package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/andygrunwald/go-jira"
	"github.com/rs/zerolog"

	"github.com/GolovachevS/dailybot/internal/config"
	"github.com/GolovachevS/dailybot/internal/domain"
)

var issueFields = []string{"summary", "status"}

// Gateway talks to each user's Jira server with that user's credentials.
type Gateway struct {
	clients  *clientCache
	pageSize int
	excluded []string
	log      zerolog.Logger
}

func NewGateway(cfg config.JiraConfig, log zerolog.Logger) *Gateway {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Gateway{
		clients:  newClientCache(cfg.MaxClients, cfg.Timeout),
		pageSize: pageSize,
		excluded: cfg.ExcludedStatuses,
		log:      log.With().Str("component", "jira").Logger(),
	}
}

// OpenIssuesJQL selects the current user's issues in the given projects that are not in a closed status.
func OpenIssuesJQL(projectKeys, excludedStatuses []string) string {
	jql := fmt.Sprintf("assignee = currentUser() AND project in (%s)", joinJQL(projectKeys))
	if len(excludedStatuses) > 0 {
		jql += fmt.Sprintf(" AND status not in (%s)", joinJQL(excludedStatuses))
	}
	return jql
}

func joinJQL(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, quoteJQL(v))
	}
	return strings.Join(quoted, ", ")
}

func quoteJQL(v string) string {
	for _, r := range v {
		if !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r == '-') {
			return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
		}
	}
	return v
}

// Permalink returns the browse URL of an issue.
func Permalink(serverURL, key string) string {
	return strings.TrimRight(serverURL, "/") + "/browse/" + key
}

func (g *Gateway) client(user domain.User) (*jira.Client, error) {
	return g.clients.get(CredentialsFor(user))
}

// ListOpenIssues pages through the user's open issues. Users without boards get nothing.
func (g *Gateway) ListOpenIssues(ctx context.Context, user domain.User) ([]domain.Issue, error) {
	if !user.HasBoards() {
		return nil, nil
	}
	client, err := g.client(user)
	if err != nil {
		return nil, err
	}

	jql := OpenIssuesJQL(user.JiraKeys, g.excluded)
	var issues []domain.Issue
	for startAt := 0; ; startAt += g.pageSize {
		page, resp, err := client.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{
			StartAt:    startAt,
			MaxResults: g.pageSize,
			Fields:     issueFields,
		})
		if err != nil {
			return nil, domain.NewUpstreamError("search jira issues", err)
		}
		for _, issue := range page {
			issues = append(issues, convertIssue(user.JiraServerURL, issue))
		}
		if resp == nil || len(page) == 0 || startAt+g.pageSize >= resp.Total {
			break
		}
	}

	g.log.Debug().Str("user", user.ID()).Int("issues", len(issues)).Msg("fetched open issues")
	return issues, nil
}

// FetchIssue loads a single issue with its current summary and status.
func (g *Gateway) FetchIssue(ctx context.Context, user domain.User, key string) (domain.Issue, error) {
	client, err := g.client(user)
	if err != nil {
		return domain.Issue{}, err
	}
	issue, _, err := client.Issue.GetWithContext(ctx, key, &jira.GetQueryOptions{Fields: strings.Join(issueFields, ",")})
	if err != nil {
		return domain.Issue{}, domain.NewUpstreamError("fetch jira issue "+key, err)
	}
	return convertIssue(user.JiraServerURL, *issue), nil
}

type transitionsResponse struct {
	Transitions []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		To   struct {
			Name string `json:"name"`
		} `json:"to"`
		IsAvailable *bool `json:"isAvailable"`
	} `json:"transitions"`
}

// ListTransitions returns the workflow moves Jira advertises for the issue.
func (g *Gateway) ListTransitions(ctx context.Context, user domain.User, key string) ([]domain.Transition, error) {
	client, err := g.client(user)
	if err != nil {
		return nil, err
	}

	req, err := client.NewRequestWithContext(ctx, http.MethodGet, "rest/api/2/issue/"+url.PathEscape(key)+"/transitions", nil)
	if err != nil {
		return nil, fmt.Errorf("build transitions request: %w", err)
	}
	var out transitionsResponse
	if _, err := client.Do(req, &out); err != nil {
		return nil, domain.NewUpstreamError("list jira transitions of "+key, err)
	}

	transitions := make([]domain.Transition, 0, len(out.Transitions))
	for _, t := range out.Transitions {
		available := true
		if t.IsAvailable != nil {
			available = *t.IsAvailable
		}
		transitions = append(transitions, domain.Transition{
			ID:          t.ID,
			Name:        t.Name,
			ToStatus:    t.To.Name,
			IsAvailable: available,
		})
	}
	return transitions, nil
}

func (g *Gateway) ApplyTransition(ctx context.Context, user domain.User, key, transitionID string) error {
	client, err := g.client(user)
	if err != nil {
		return err
	}
	if _, err := client.Issue.DoTransitionWithContext(ctx, key, transitionID); err != nil {
		return domain.NewUpstreamError("transition jira issue "+key, err)
	}
	return nil
}

// ListProjects returns the projects visible to the user, used as board options.
func (g *Gateway) ListProjects(ctx context.Context, user domain.User) ([]domain.Project, error) {
	client, err := g.client(user)
	if err != nil {
		return nil, err
	}
	list, _, err := client.Project.GetListWithContext(ctx)
	if err != nil {
		return nil, domain.NewUpstreamError("list jira projects", err)
	}
	if list == nil {
		return nil, nil
	}

	projects := make([]domain.Project, 0, len(*list))
	for _, p := range *list {
		projects = append(projects, domain.Project{Key: p.Key, Name: p.Name})
	}
	return projects, nil
}

func convertIssue(serverURL string, issue jira.Issue) domain.Issue {
	out := domain.Issue{Key: issue.Key, Link: Permalink(serverURL, issue.Key)}
	if issue.Fields != nil {
		out.Summary = issue.Fields.Summary
		if issue.Fields.Status != nil {
			out.Status = issue.Fields.Status.Name
		}
	}
	return out
}
