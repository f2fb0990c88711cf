package jira

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/andygrunwald/go-jira"

	"github.com/GolovachevS/dailybot/internal/domain"
)

// Credentials identify one authenticated Jira client.
type Credentials struct {
	ServerURL string
	Email     string
	Token     string
	HostType  domain.JiraHostType
}

// CredentialsFor extracts the Jira credentials stored on a user.
func CredentialsFor(user domain.User) Credentials {
	return Credentials{
		ServerURL: strings.TrimRight(user.JiraServerURL, "/"),
		Email:     user.JiraEmail,
		Token:     user.JiraAPIToken,
		HostType:  user.JiraHostType,
	}
}

// NewClient builds a go-jira client authenticated for the host type:
// Local servers take a personal access token, Cloud takes email and API token.
func NewClient(creds Credentials, timeout time.Duration) (*jira.Client, error) {
	var transport http.RoundTripper
	switch creds.HostType {
	case domain.JiraHostLocal:
		transport = &jira.PATAuthTransport{Token: creds.Token}
	case domain.JiraHostCloud, "":
		transport = &jira.BasicAuthTransport{Username: creds.Email, Password: creds.Token}
	default:
		return nil, domain.NewValidationError(fmt.Sprintf("unknown jira host type %q", creds.HostType))
	}

	client, err := jira.NewClient(&http.Client{Transport: transport, Timeout: timeout}, creds.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("create jira client for %s: %w", creds.ServerURL, err)
	}
	return client, nil
}

// clientCache keeps at most max clients and evicts the oldest first.
type clientCache struct {
	mu      sync.Mutex
	max     int
	timeout time.Duration
	clients map[Credentials]*jira.Client
	order   []Credentials
	build   func(Credentials, time.Duration) (*jira.Client, error)
}

func newClientCache(max int, timeout time.Duration) *clientCache {
	if max <= 0 {
		max = 1
	}
	return &clientCache{
		max:     max,
		timeout: timeout,
		clients: make(map[Credentials]*jira.Client, max),
		build:   NewClient,
	}
}

func (c *clientCache) get(creds Credentials) (*jira.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[creds]; ok {
		return client, nil
	}

	client, err := c.build(creds, c.timeout)
	if err != nil {
		return nil, err
	}

	if len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.clients, oldest)
	}
	c.clients[creds] = client
	c.order = append(c.order, creds)
	return client, nil
}

func (c *clientCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}
