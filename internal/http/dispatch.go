package transport

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/GolovachevS/dailybot/internal/domain"
	"github.com/GolovachevS/dailybot/internal/form"
	"github.com/GolovachevS/dailybot/internal/views"
)

// Kind is the family of a Slack request after normalization.
type Kind string

const (
	KindShortcut       Kind = "shortcut"
	KindBlockAction    Kind = "block_action"
	KindViewSubmission Kind = "view_submission"
	KindAppHomeOpened  Kind = "app_home_opened"
	KindCommand        Kind = "command"
)

const (
	CommandShowDaily = "/show-daily-report"
	CommandAddTeam   = "/add-team-daily"
)

// Event is a verified Slack request reduced to what the handlers need. ID is
// the callback id, action id or command name depending on Kind.
type Event struct {
	Kind       Kind
	ID         string
	UserID     string
	TeamID     string
	TeamDomain string
	UserName   string
	TriggerID  string
	ChannelID  string
	Text       string
	BlockID    string
	View       slack.View
	Action     slack.BlockAction
	Callback   slack.InteractionCallback
}

// BotService is the part of the service layer reachable from Slack.
type BotService interface {
	PublishHome(ctx context.Context, userID string) error
	SaveConfiguration(ctx context.Context, callback slack.InteractionCallback) error
	SaveBoards(ctx context.Context, userID string, keys []string) error
	OpenDaily(ctx context.Context, userID, triggerID string) error
	SubmitDaily(ctx context.Context, userID string, view slack.View) error
	CheckStatus(ctx context.Context, userID, blockID, status string) error
	ShowDaily(ctx context.Context, userID, channelID, text string) error
	AddTeam(ctx context.Context, text string) (string, error)
}

// handlerFunc returns the body Slack expects in the HTTP response, nil for an empty ack.
type handlerFunc func(ctx context.Context, ev Event) (any, error)

type routeKey struct {
	kind Kind
	id   string
}

// Dispatcher routes events through a fixed table keyed by kind and id.
type Dispatcher struct {
	svc    BotService
	log    zerolog.Logger
	routes map[routeKey]handlerFunc
}

func NewDispatcher(svc BotService, log zerolog.Logger) *Dispatcher {
	d := &Dispatcher{svc: svc, log: log.With().Str("component", "dispatcher").Logger()}

	d.routes = map[routeKey]handlerFunc{
		{KindShortcut, views.DailyShortcutID}:           d.openDaily,
		{KindViewSubmission, views.DailyModalCallbackID}: d.submitDaily,
		{KindBlockAction, views.SelectStatusAction}:      d.checkStatus,
		{KindBlockAction, views.SaveUserConfigurations}:  d.saveConfiguration,
		{KindBlockAction, views.SelectUserBoard}:         d.selectBoards,
		{KindBlockAction, views.SaveUserBoard}:           d.typedBoards,
		{KindAppHomeOpened, ""}:                          d.publishHome,
		{KindCommand, CommandShowDaily}:                  d.showDaily,
		{KindCommand, CommandAddTeam}:                    d.addTeam,
	}
	for _, id := range []string{
		views.IssueLinkAction,
		views.IssueSummeryAction,
		views.GeneralCommentsAction,
		views.SelectUserTeam,
		views.IgnoreIssueAction,
		views.JiraHostTypeAction,
	} {
		d.routes[routeKey{KindBlockAction, id}] = ack
	}
	return d
}

// Dispatch runs the handler bound to the event. Unrouted events are acknowledged.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (any, error) {
	h, ok := d.routes[routeKey{ev.Kind, ev.ID}]
	if !ok {
		d.log.Debug().Str("kind", string(ev.Kind)).Str("id", ev.ID).Msg("unrouted event")
		return nil, nil
	}
	return h(ctx, ev)
}

func ack(context.Context, Event) (any, error) {
	return nil, nil
}

func (d *Dispatcher) openDaily(ctx context.Context, ev Event) (any, error) {
	return nil, d.svc.OpenDaily(ctx, ev.UserID, ev.TriggerID)
}

func (d *Dispatcher) submitDaily(ctx context.Context, ev Event) (any, error) {
	err := d.svc.SubmitDaily(ctx, ev.UserID, ev.View)
	var appErr *domain.AppError
	if errors.As(err, &appErr) && (appErr.Code == domain.ErrCodeValidation || appErr.Code == domain.ErrCodeConfigurationMissing) {
		return slack.NewErrorsViewSubmissionResponse(map[string]string{
			views.GeneralCommentsAction: appErr.Message,
		}), nil
	}
	return nil, err
}

func (d *Dispatcher) checkStatus(ctx context.Context, ev Event) (any, error) {
	err := d.svc.CheckStatus(ctx, ev.UserID, ev.BlockID, ev.Action.SelectedOption.Value)
	if err != nil {
		d.log.Warn().Err(err).Str("user", ev.UserID).Str("block", ev.BlockID).Msg("status check failed")
	}
	return nil, nil
}

func (d *Dispatcher) saveConfiguration(ctx context.Context, ev Event) (any, error) {
	return nil, d.svc.SaveConfiguration(ctx, ev.Callback)
}

func (d *Dispatcher) selectBoards(ctx context.Context, ev Event) (any, error) {
	return nil, d.svc.SaveBoards(ctx, ev.UserID, form.SelectedBoardKeys(ev.Action))
}

func (d *Dispatcher) typedBoards(ctx context.Context, ev Event) (any, error) {
	typed, _ := form.StateFromView(ev.View).Value(views.TypeOrSelectUserBoard, views.TypeUserBoard)
	return nil, d.svc.SaveBoards(ctx, ev.UserID, form.BoardKeys(typed.Value))
}

func (d *Dispatcher) publishHome(ctx context.Context, ev Event) (any, error) {
	return nil, d.svc.PublishHome(ctx, ev.UserID)
}

func (d *Dispatcher) showDaily(ctx context.Context, ev Event) (any, error) {
	if err := d.svc.ShowDaily(ctx, ev.UserID, ev.ChannelID, ev.Text); err != nil {
		return d.commandError(ev, err), nil
	}
	return nil, nil
}

func (d *Dispatcher) addTeam(ctx context.Context, ev Event) (any, error) {
	reply, err := d.svc.AddTeam(ctx, ev.Text)
	if err != nil {
		return d.commandError(ev, err), nil
	}
	return ephemeral(reply), nil
}

// commandError turns a failure into a reply only the caller sees.
func (d *Dispatcher) commandError(ev Event, err error) commandReply {
	var appErr *domain.AppError
	if errors.As(err, &appErr) && appErr.Code != domain.ErrCodeInternal {
		return ephemeral(appErr.Message)
	}
	d.log.Error().Err(err).Str("command", ev.ID).Str("user", ev.UserID).Msg("command failed")
	return ephemeral("Something went wrong, please try again later.")
}

// commandReply is the slash command response body.
type commandReply struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}

func ephemeral(text string) commandReply {
	return commandReply{ResponseType: slack.ResponseTypeEphemeral, Text: text}
}

// eventsFromCallback normalizes an interactivity payload. Block action
// payloads may carry several actions and yield one event each.
func eventsFromCallback(cb slack.InteractionCallback) []Event {
	base := Event{
		UserID:     cb.User.ID,
		UserName:   cb.User.Name,
		TeamID:     cb.Team.ID,
		TeamDomain: cb.Team.Domain,
		TriggerID:  cb.TriggerID,
		ChannelID:  cb.Channel.ID,
		View:       cb.View,
		Callback:   cb,
	}

	switch cb.Type {
	case slack.InteractionTypeShortcut:
		base.Kind, base.ID = KindShortcut, cb.CallbackID
		return []Event{base}
	case slack.InteractionTypeViewSubmission:
		base.Kind, base.ID = KindViewSubmission, cb.View.CallbackID
		return []Event{base}
	case slack.InteractionTypeBlockActions:
		events := make([]Event, 0, len(cb.ActionCallback.BlockActions))
		for _, action := range cb.ActionCallback.BlockActions {
			ev := base
			ev.Kind, ev.ID = KindBlockAction, action.ActionID
			ev.BlockID = action.BlockID
			ev.Action = *action
			events = append(events, ev)
		}
		return events
	default:
		return nil
	}
}

func eventFromCommand(cmd slack.SlashCommand) Event {
	return Event{
		Kind:       KindCommand,
		ID:         cmd.Command,
		UserID:     cmd.UserID,
		UserName:   cmd.UserName,
		TeamID:     cmd.TeamID,
		TeamDomain: cmd.TeamDomain,
		TriggerID:  cmd.TriggerID,
		ChannelID:  cmd.ChannelID,
		Text:       cmd.Text,
	}
}
