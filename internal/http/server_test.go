package transport

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/require"

	"github.com/GolovachevS/dailybot/internal/domain"
)

const testSecret = "signing-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(svc *fakeService) *gin.Engine {
	return NewServer(svc, testSecret, zerolog.Nop())
}

func signedRequest(t *testing.T, target, contentType, body string) *nethttp.Request {
	t.Helper()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(testSecret))
	_, err := mac.Write([]byte("v0:" + ts + ":" + body))
	require.NoError(t, err)

	req := httptest.NewRequest(nethttp.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

func interactionRequest(t *testing.T, payload string) *nethttp.Request {
	return signedRequest(t, "/slack/interactions", "application/x-www-form-urlencoded", "payload="+url.QueryEscape(payload))
}

func commandRequest(t *testing.T, command, text string) *nethttp.Request {
	form := url.Values{
		"command":    {command},
		"text":       {text},
		"user_id":    {"U1"},
		"channel_id": {"C9"},
		"team_id":    {"T1"},
	}
	return signedRequest(t, "/slack/commands", "application/x-www-form-urlencoded", form.Encode())
}

func serve(engine *gin.Engine, req *nethttp.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(newTestServer(&fakeService{}), httptest.NewRequest(nethttp.MethodGet, "/health", nil))
	require.Equal(t, nethttp.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSlackRoutesRejectUnsignedRequests(t *testing.T) {
	svc := &fakeService{}
	engine := newTestServer(svc)

	for _, target := range []string{"/slack/events", "/slack/interactions", "/slack/commands"} {
		req := httptest.NewRequest(nethttp.MethodPost, target, strings.NewReader(`{}`))
		rec := serve(engine, req)
		require.Equal(t, nethttp.StatusUnauthorized, rec.Code, target)
	}

	tampered := commandRequest(t, CommandAddTeam, "core C1")
	tampered.Header.Set("X-Slack-Signature", "v0="+strings.Repeat("0", 64))
	rec := serve(engine, tampered)
	require.Equal(t, nethttp.StatusUnauthorized, rec.Code)

	stale := commandRequest(t, CommandAddTeam, "core C1")
	stale.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10))
	rec = serve(engine, stale)
	require.Equal(t, nethttp.StatusUnauthorized, rec.Code)

	require.Empty(t, svc.calls)
}

func TestURLVerificationEchoesChallenge(t *testing.T) {
	body := `{"token":"tok","challenge":"3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P","type":"url_verification"}`
	rec := serve(newTestServer(&fakeService{}), signedRequest(t, "/slack/events", "application/json", body))

	require.Equal(t, nethttp.StatusOK, rec.Code)
	require.Equal(t, "3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P", rec.Body.String())
}

func TestAppHomeOpenedPublishesHome(t *testing.T) {
	svc := &fakeService{}
	body := `{"token":"tok","team_id":"T1","type":"event_callback","event":{"type":"app_home_opened","user":"U1","channel":"D1","tab":"home","event_ts":"1"}}`

	rec := serve(newTestServer(svc), signedRequest(t, "/slack/events", "application/json", body))

	require.Equal(t, nethttp.StatusOK, rec.Code)
	require.Equal(t, []string{"PublishHome U1"}, svc.calls)
}

func TestMessagesTabIsIgnored(t *testing.T) {
	svc := &fakeService{}
	body := `{"token":"tok","team_id":"T1","type":"event_callback","event":{"type":"app_home_opened","user":"U1","channel":"D1","tab":"messages","event_ts":"1"}}`

	rec := serve(newTestServer(svc), signedRequest(t, "/slack/events", "application/json", body))

	require.Equal(t, nethttp.StatusOK, rec.Code)
	require.Empty(t, svc.calls)
}

func TestShortcutOpensDaily(t *testing.T) {
	svc := &fakeService{}
	payload := `{"type":"shortcut","callback_id":"daily","trigger_id":"trig-1","user":{"id":"U1"},"team":{"id":"T1"}}`

	rec := serve(newTestServer(svc), interactionRequest(t, payload))

	require.Equal(t, nethttp.StatusOK, rec.Code)
	require.Equal(t, []string{"OpenDaily U1 trig-1"}, svc.calls)
}

func TestShortcutFailureMapsAppError(t *testing.T) {
	svc := &fakeService{openErr: domain.NewUpstreamError("open slack view", nil)}
	payload := `{"type":"shortcut","callback_id":"daily","trigger_id":"trig-1","user":{"id":"U1"}}`

	rec := serve(newTestServer(svc), interactionRequest(t, payload))

	require.Equal(t, nethttp.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), string(domain.ErrCodeUpstream))
}

func TestViewSubmission(t *testing.T) {
	payload := `{"type":"view_submission","user":{"id":"U1"},"view":{"callback_id":"daily_modal_submission","private_metadata":"2024-05-01",` +
		`"state":{"values":{"ABC|issue_summery_action":{"issue_summery_action":{"type":"plain_text_input","value":"working on it"}}}}}}`

	t.Run("saved", func(t *testing.T) {
		svc := &fakeService{}
		rec := serve(newTestServer(svc), interactionRequest(t, payload))

		require.Equal(t, nethttp.StatusOK, rec.Code)
		require.Empty(t, rec.Body.String())
		require.Equal(t, []string{"SubmitDaily U1 2024-05-01"}, svc.calls)
		require.Equal(t, "working on it", svc.submitted.State.Values["ABC|issue_summery_action"]["issue_summery_action"].Value)
	})

	t.Run("validation error is shown in the form", func(t *testing.T) {
		svc := &fakeService{submitErr: domain.NewValidationError(`malformed block id "ABC"`)}
		rec := serve(newTestServer(svc), interactionRequest(t, payload))

		require.Equal(t, nethttp.StatusOK, rec.Code)
		require.JSONEq(t, `{"response_action":"errors","errors":{"general_comments_action":"malformed block id \"ABC\""}}`, rec.Body.String())
	})
}

func TestBlockActionsRouting(t *testing.T) {
	svc := &fakeService{}
	payload := `{"type":"block_actions","trigger_id":"trig","user":{"id":"U1"},"actions":[` +
		`{"action_id":"select_user_board","block_id":"type_or_select_user_board","type":"multi_static_select","selected_options":[{"value":"ABC"},{"value":"DEF"},{"value":"ABC"}]},` +
		`{"action_id":"select_status_action","block_id":"ABC-1|select_status_action","type":"static_select","selected_option":{"value":"Done"}},` +
		`{"action_id":"issue_link_action","block_id":"ABC-1|select_status_action","type":"button","value":"link-issue-ABC-1"},` +
		`{"action_id":"somebody_elses_action","block_id":"x","type":"button"}]}`

	rec := serve(newTestServer(svc), interactionRequest(t, payload))

	require.Equal(t, nethttp.StatusOK, rec.Code)
	require.Equal(t, []string{
		"SaveBoards U1 ABC,DEF",
		"CheckStatus U1 ABC-1|select_status_action Done",
	}, svc.calls)
}

func TestSaveTypedBoards(t *testing.T) {
	svc := &fakeService{}
	payload := `{"type":"block_actions","user":{"id":"U1"},"actions":[{"action_id":"save_user_board","block_id":"b1","type":"button","value":"save_user_board"}],` +
		`"view":{"type":"home","state":{"values":{"type_or_select_user_board":{"type_user_board":{"type":"plain_text_input","value":"EDGE, ULT,,EDGE"}}}}}}`

	rec := serve(newTestServer(svc), interactionRequest(t, payload))

	require.Equal(t, nethttp.StatusOK, rec.Code)
	require.Equal(t, []string{"SaveBoards U1 EDGE,ULT"}, svc.calls)
}

func TestSaveConfigurationReceivesCallback(t *testing.T) {
	svc := &fakeService{}
	payload := `{"type":"block_actions","user":{"id":"U1","name":"alice"},"team":{"id":"T1","domain":"acme"},` +
		`"actions":[{"action_id":"save_user_configurations","block_id":"b1","type":"button","value":"save_user_configurations"}],` +
		`"view":{"type":"home","state":{"values":{"select_user_team":{"select_user_team":{"type":"static_select","selected_option":{"value":"core"}}}}}}}`

	rec := serve(newTestServer(svc), interactionRequest(t, payload))

	require.Equal(t, nethttp.StatusOK, rec.Code)
	require.Equal(t, []string{"SaveConfiguration U1"}, svc.calls)
	require.Equal(t, "acme", svc.configured.Team.Domain)
	require.Equal(t, "core", svc.configured.View.State.Values["select_user_team"]["select_user_team"].SelectedOption.Value)
}

func TestCommands(t *testing.T) {
	t.Run("add team replies ephemerally", func(t *testing.T) {
		svc := &fakeService{addTeamReply: "Added team core with daily channel C1"}
		rec := serve(newTestServer(svc), commandRequest(t, CommandAddTeam, "core C1"))

		require.Equal(t, nethttp.StatusOK, rec.Code)
		require.JSONEq(t, `{"response_type":"ephemeral","text":"Added team core with daily channel C1"}`, rec.Body.String())
		require.Equal(t, []string{"AddTeam core C1"}, svc.calls)
	})

	t.Run("add team error is shown to the caller", func(t *testing.T) {
		svc := &fakeService{addTeamErr: domain.NewTeamExistsError(nil)}
		rec := serve(newTestServer(svc), commandRequest(t, CommandAddTeam, "core C1"))

		require.Equal(t, nethttp.StatusOK, rec.Code)
		require.JSONEq(t, `{"response_type":"ephemeral","text":"team already exists"}`, rec.Body.String())
	})

	t.Run("show daily posts to the channel", func(t *testing.T) {
		svc := &fakeService{}
		rec := serve(newTestServer(svc), commandRequest(t, CommandShowDaily, "rich"))

		require.Equal(t, nethttp.StatusOK, rec.Code)
		require.Empty(t, rec.Body.String())
		require.Equal(t, []string{"ShowDaily U1 C9 rich"}, svc.calls)
	})

	t.Run("unexpected failures are not leaked", func(t *testing.T) {
		svc := &fakeService{showErr: context.DeadlineExceeded}
		rec := serve(newTestServer(svc), commandRequest(t, CommandShowDaily, ""))

		require.JSONEq(t, `{"response_type":"ephemeral","text":"Something went wrong, please try again later."}`, rec.Body.String())
	})
}

func TestCommandReplyCarriesOnlyTypeAndText(t *testing.T) {
	svc := &fakeService{addTeamReply: "Added team core with daily channel C1"}
	d := NewDispatcher(svc, zerolog.Nop())

	reply, err := d.Dispatch(context.Background(), Event{Kind: KindCommand, ID: CommandAddTeam, Text: "core C1"})
	require.NoError(t, err)

	raw, err := json.Marshal(reply)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	require.Equal(t, map[string]any{
		"response_type": "ephemeral",
		"text":          "Added team core with daily channel C1",
	}, fields)
}

func TestDispatchUnroutedEventIsAcknowledged(t *testing.T) {
	svc := &fakeService{}
	d := NewDispatcher(svc, zerolog.Nop())

	reply, err := d.Dispatch(context.Background(), Event{Kind: KindCommand, ID: "/unknown"})
	require.NoError(t, err)
	require.Nil(t, reply)
	require.Empty(t, svc.calls)
}

type fakeService struct {
	mu    sync.Mutex
	calls []string

	submitted  slack.View
	configured slack.InteractionCallback

	openErr      error
	submitErr    error
	showErr      error
	addTeamReply string
	addTeamErr   error
}

func (f *fakeService) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeService) PublishHome(_ context.Context, userID string) error {
	f.record("PublishHome " + userID)
	return nil
}

func (f *fakeService) SaveConfiguration(_ context.Context, callback slack.InteractionCallback) error {
	f.record("SaveConfiguration " + callback.User.ID)
	f.configured = callback
	return nil
}

func (f *fakeService) SaveBoards(_ context.Context, userID string, keys []string) error {
	f.record("SaveBoards " + userID + " " + strings.Join(keys, ","))
	return nil
}

func (f *fakeService) OpenDaily(_ context.Context, userID, triggerID string) error {
	f.record("OpenDaily " + userID + " " + triggerID)
	return f.openErr
}

func (f *fakeService) SubmitDaily(_ context.Context, userID string, view slack.View) error {
	f.record("SubmitDaily " + userID + " " + view.PrivateMetadata)
	f.submitted = view
	return f.submitErr
}

func (f *fakeService) CheckStatus(_ context.Context, userID, blockID, status string) error {
	f.record("CheckStatus " + userID + " " + blockID + " " + status)
	return domain.NewStaleTransitionError("ABC-1", status)
}

func (f *fakeService) ShowDaily(_ context.Context, userID, channelID, text string) error {
	f.record("ShowDaily " + userID + " " + channelID + " " + text)
	return f.showErr
}

func (f *fakeService) AddTeam(_ context.Context, text string) (string, error) {
	f.record("AddTeam " + text)
	return f.addTeamReply, f.addTeamErr
}
