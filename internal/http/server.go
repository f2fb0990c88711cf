package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/GolovachevS/dailybot/internal/domain"
)

const bodyKey = "slack_body"

// NewServer wires routes and returns a configured gin.Engine.
func NewServer(svc BotService, signingSecret string, log zerolog.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(requestLogger(log), gin.Recovery())

	h := handler{dispatcher: NewDispatcher(svc, log), log: log}

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(nethttp.StatusOK, gin.H{"status": "ok"})
	})

	slackRoutes := engine.Group("/slack", verifySignature(signingSecret))
	{
		slackRoutes.POST("/events", h.events)
		slackRoutes.POST("/interactions", h.interactions)
		slackRoutes.POST("/commands", h.commands)
	}

	return engine
}

type handler struct {
	dispatcher *Dispatcher
	log        zerolog.Logger
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request handled")
	}
}

// verifySignature checks the Slack request signature over the raw body and
// keeps the body readable for the handlers.
func verifySignature(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			writeError(c, nethttp.StatusBadRequest, domain.ErrCodeValidation, "unreadable body")
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		sv, err := slack.NewSecretsVerifier(c.Request.Header, secret)
		if err == nil {
			if _, err = sv.Write(body); err == nil {
				err = sv.Ensure()
			}
		}
		if err != nil {
			writeError(c, nethttp.StatusUnauthorized, domain.ErrCodeValidation, "invalid slack signature")
			c.Abort()
			return
		}

		c.Set(bodyKey, body)
		c.Next()
	}
}

func (h handler) events(c *gin.Context) {
	body := c.MustGet(bodyKey).([]byte)
	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		h.log.Debug().Err(err).Msg("ignore events api payload")
		c.Status(nethttp.StatusOK)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		challenge, ok := event.Data.(*slackevents.EventsAPIURLVerificationEvent)
		if !ok {
			respondValidationError(c, errors.New("malformed url verification"))
			return
		}
		c.String(nethttp.StatusOK, challenge.Challenge)
		return
	case slackevents.CallbackEvent:
		if opened, ok := event.InnerEvent.Data.(*slackevents.AppHomeOpenedEvent); ok && opened.Tab != "messages" {
			h.dispatch(c, Event{Kind: KindAppHomeOpened, UserID: opened.User, TeamID: event.TeamID})
			return
		}
	}
	c.Status(nethttp.StatusOK)
}

func (h handler) interactions(c *gin.Context) {
	payload := c.PostForm("payload")
	if payload == "" {
		respondValidationError(c, errors.New("payload is required"))
		return
	}
	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &callback); err != nil {
		respondValidationError(c, err)
		return
	}

	events := eventsFromCallback(callback)
	if len(events) == 1 {
		h.dispatch(c, events[0])
		return
	}
	for _, ev := range events {
		if _, err := h.dispatcher.Dispatch(c.Request.Context(), ev); err != nil {
			h.log.Error().Err(err).Str("action", ev.ID).Str("user", ev.UserID).Msg("block action failed")
		}
	}
	c.Status(nethttp.StatusOK)
}

func (h handler) commands(c *gin.Context) {
	cmd, err := slack.SlashCommandParse(c.Request)
	if err != nil {
		respondValidationError(c, err)
		return
	}
	h.dispatch(c, eventFromCommand(cmd))
}

func (h handler) dispatch(c *gin.Context, ev Event) {
	reply, err := h.dispatcher.Dispatch(c.Request.Context(), ev)
	if err != nil {
		h.log.Error().Err(err).Str("kind", string(ev.Kind)).Str("id", ev.ID).Str("user", ev.UserID).Msg("slack event failed")
		respondError(c, err)
		return
	}
	if reply == nil {
		c.Status(nethttp.StatusOK)
		return
	}
	c.JSON(nethttp.StatusOK, reply)
}

func respondValidationError(c *gin.Context, err error) {
	writeError(c, nethttp.StatusBadRequest, domain.ErrCodeValidation, err.Error())
}

func respondError(c *gin.Context, err error) {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		writeError(c, appErr.Status, appErr.Code, appErr.Message)
		return
	}
	writeError(c, nethttp.StatusInternalServerError, domain.ErrCodeInternal, "internal error")
}

func writeError(c *gin.Context, status int, code domain.ErrorCode, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
