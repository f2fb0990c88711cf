package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andygrunwald/go-jira"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/GolovachevS/dailybot/internal/config"
	"github.com/GolovachevS/dailybot/internal/domain"
)

func newTestGateway(pageSize int) *Gateway {
	return NewGateway(config.JiraConfig{
		Timeout:          5 * time.Second,
		PageSize:         pageSize,
		MaxClients:       4,
		ExcludedStatuses: []string{"Done", "TO DO"},
	}, zerolog.Nop())
}

func testUser(serverURL string, hostType domain.JiraHostType) domain.User {
	return domain.User{
		JiraServerURL: serverURL,
		JiraEmail:     "a@example.com",
		JiraAPIToken:  "secret",
		JiraHostType:  hostType,
		JiraKeys:      []string{"ABC", "DEF"},
		SlackData:     domain.SlackUserData{UserID: "U1"},
	}
}

func TestOpenIssuesJQL(t *testing.T) {
	got := OpenIssuesJQL([]string{"ABC", "DEF"}, []string{"Done", "TO DO"})
	want := `assignee = currentUser() AND project in (ABC, DEF) AND status not in (Done, "TO DO")`
	require.Equal(t, want, got)

	require.Equal(t, "assignee = currentUser() AND project in (ABC)", OpenIssuesJQL([]string{"ABC"}, nil))
}

func TestListOpenIssuesPagesUntilTotal(t *testing.T) {
	all := []string{"ABC-1", "ABC-2", "DEF-1"}
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		require.Equal(t, "/rest/api/2/search", r.URL.Path)
		require.Equal(t, "summary,status", r.URL.Query().Get("fields"))
		require.Contains(t, r.URL.Query().Get("jql"), "project in (ABC, DEF)")

		startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
		maxResults, _ := strconv.Atoi(r.URL.Query().Get("maxResults"))
		end := startAt + maxResults
		if end > len(all) {
			end = len(all)
		}
		issues := make([]map[string]any, 0)
		for _, key := range all[startAt:end] {
			issues = append(issues, map[string]any{
				"key": key,
				"fields": map[string]any{
					"summary": "summary of " + key,
					"status":  map[string]any{"name": "In Progress"},
				},
			})
		}
		writeJSON(t, w, map[string]any{"startAt": startAt, "maxResults": maxResults, "total": len(all), "issues": issues})
	}))
	defer srv.Close()

	got, err := newTestGateway(2).ListOpenIssues(context.Background(), testUser(srv.URL, domain.JiraHostCloud))
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))

	want := []domain.Issue{
		{Key: "ABC-1", Summary: "summary of ABC-1", Status: "In Progress", Link: srv.URL + "/browse/ABC-1"},
		{Key: "ABC-2", Summary: "summary of ABC-2", Status: "In Progress", Link: srv.URL + "/browse/ABC-2"},
		{Key: "DEF-1", Summary: "summary of DEF-1", Status: "In Progress", Link: srv.URL + "/browse/DEF-1"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
}

func TestListOpenIssuesWithoutBoardsSkipsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request %s", r.URL)
	}))
	defer srv.Close()

	user := testUser(srv.URL, domain.JiraHostCloud)
	user.JiraKeys = nil
	got, err := newTestGateway(10).ListOpenIssues(context.Background(), user)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestListOpenIssuesUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessages":["boom"]}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestGateway(10).ListOpenIssues(context.Background(), testUser(srv.URL, domain.JiraHostCloud))
	require.True(t, domain.HasCode(err, domain.ErrCodeUpstream), "got %v", err)
}

func TestAuthenticationByHostType(t *testing.T) {
	var header atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header.Store(r.Header.Get("Authorization"))
		writeJSON(t, w, []map[string]any{{"key": "ABC", "name": "Alpha"}})
	}))
	defer srv.Close()

	gw := newTestGateway(10)

	projects, err := gw.ListProjects(context.Background(), testUser(srv.URL, domain.JiraHostLocal))
	require.NoError(t, err)
	require.Equal(t, []domain.Project{{Key: "ABC", Name: "Alpha"}}, projects)
	require.Equal(t, "Bearer secret", header.Load())

	_, err = gw.ListProjects(context.Background(), testUser(srv.URL, domain.JiraHostCloud))
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.SetBasicAuth("a@example.com", "secret")
	require.Equal(t, req.Header.Get("Authorization"), header.Load())
}

func TestUnknownHostTypeIsRejected(t *testing.T) {
	_, err := NewClient(Credentials{ServerURL: "https://jira.example.com", HostType: "Server"}, time.Second)
	require.True(t, domain.HasCode(err, domain.ErrCodeValidation), "got %v", err)
}

func TestListTransitionsDefaultsAvailability(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/2/issue/ABC-1/transitions", r.URL.Path)
		io.WriteString(w, `{"transitions":[
			{"id":"11","name":"Start","to":{"name":"In Progress"}},
			{"id":"21","name":"Finish","to":{"name":"Done"},"isAvailable":false}
		]}`)
	}))
	defer srv.Close()

	got, err := newTestGateway(10).ListTransitions(context.Background(), testUser(srv.URL, domain.JiraHostCloud), "ABC-1")
	require.NoError(t, err)
	require.Equal(t, []domain.Transition{
		{ID: "11", Name: "Start", ToStatus: "In Progress", IsAvailable: true},
		{ID: "21", Name: "Finish", ToStatus: "Done", IsAvailable: false},
	}, got)
}

func TestApplyTransitionPostsID(t *testing.T) {
	var body struct {
		Transition struct {
			ID string `json:"id"`
		} `json:"transition"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/rest/api/2/issue/ABC-1/transitions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := newTestGateway(10).ApplyTransition(context.Background(), testUser(srv.URL, domain.JiraHostCloud), "ABC-1", "31")
	require.NoError(t, err)
	require.Equal(t, "31", body.Transition.ID)
}

func TestFetchIssue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/2/issue/ABC-1", r.URL.Path)
		require.Equal(t, "summary,status", r.URL.Query().Get("fields"))
		writeJSON(t, w, map[string]any{
			"key":    "ABC-1",
			"fields": map[string]any{"summary": "Fix bug", "status": map[string]any{"name": "Done"}},
		})
	}))
	defer srv.Close()

	got, err := newTestGateway(10).FetchIssue(context.Background(), testUser(srv.URL+"/", domain.JiraHostCloud), "ABC-1")
	require.NoError(t, err)
	require.Equal(t, domain.Issue{Key: "ABC-1", Summary: "Fix bug", Status: "Done", Link: srv.URL + "/browse/ABC-1"}, got)
}

func TestClientCacheEvictsOldest(t *testing.T) {
	cache := newClientCache(2, time.Second)
	var built int
	cache.build = func(creds Credentials, timeout time.Duration) (*jira.Client, error) {
		built++
		return &jira.Client{}, nil
	}

	creds := func(i int) Credentials {
		return Credentials{ServerURL: fmt.Sprintf("https://jira%d.example.com", i), HostType: domain.JiraHostCloud}
	}
	for _, i := range []int{1, 2, 1, 3, 1} {
		_, err := cache.get(creds(i))
		require.NoError(t, err)
	}

	// 1 and 2 are built, 1 is reused, 3 evicts 1, 1 is rebuilt and evicts 2
	require.Equal(t, 4, built)
	require.Equal(t, 2, cache.len())
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}
