package slackapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/require"

	"github.com/GolovachevS/dailybot/internal/config"
	"github.com/GolovachevS/dailybot/internal/domain"
	"github.com/GolovachevS/dailybot/internal/views"
)

type recorded struct {
	path string
	auth string
	body []byte
}

func newTestClient(t *testing.T, response string) (*Client, chan recorded) {
	t.Helper()
	calls := make(chan recorded, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		calls <- recorded{path: r.URL.Path, auth: r.Header.Get("Authorization"), body: body}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)

	cfg := config.SlackConfig{BotToken: "xoxb-test", Timeout: time.Second}
	return New(cfg, zerolog.Nop(), slack.OptionAPIURL(srv.URL+"/")), calls
}

func TestPublishView(t *testing.T) {
	client, calls := newTestClient(t, `{"ok":true}`)

	err := client.PublishView(context.Background(), "U1", views.Configured())
	require.NoError(t, err)

	call := <-calls
	require.Equal(t, "/views.publish", call.path)
	require.Equal(t, "Bearer xoxb-test", call.auth)

	var payload struct {
		UserID string `json:"user_id"`
		View   struct {
			Type string `json:"type"`
		} `json:"view"`
	}
	require.NoError(t, json.Unmarshal(call.body, &payload))
	require.Equal(t, "U1", payload.UserID)
	require.Equal(t, "home", payload.View.Type)
}

func TestOpenView(t *testing.T) {
	client, calls := newTestClient(t, `{"ok":true}`)

	err := client.OpenView(context.Background(), "trigger-1", views.NotConfiguredModal())
	require.NoError(t, err)

	call := <-calls
	require.Equal(t, "/views.open", call.path)

	var payload struct {
		TriggerID string `json:"trigger_id"`
	}
	require.NoError(t, json.Unmarshal(call.body, &payload))
	require.Equal(t, "trigger-1", payload.TriggerID)
}

func TestSlackErrorIsUpstream(t *testing.T) {
	client, _ := newTestClient(t, `{"ok":false,"error":"channel_not_found"}`)

	err := client.PostMessage(context.Background(), "C404", "Daily Report", nil)
	require.Error(t, err)
	require.True(t, domain.HasCode(err, domain.ErrCodeUpstream), "got %v", err)
	require.Contains(t, err.Error(), "channel_not_found")
}

