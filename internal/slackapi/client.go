// Package slackapi sends views and messages through the Slack Web API.
package slackapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/GolovachevS/dailybot/internal/config"
	"github.com/GolovachevS/dailybot/internal/domain"
)

// Client wraps slack-go with a bounded HTTP client.
type Client struct {
	api *slack.Client
	log zerolog.Logger
}

func New(cfg config.SlackConfig, log zerolog.Logger, opts ...slack.Option) *Client {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	options := append([]slack.Option{slack.OptionHTTPClient(httpClient)}, opts...)
	return &Client{
		api: slack.New(cfg.BotToken, options...),
		log: log.With().Str("component", "slack").Logger(),
	}
}

// OpenView opens a modal in response to an interaction trigger.
func (c *Client) OpenView(ctx context.Context, triggerID string, view slack.ModalViewRequest) error {
	if _, err := c.api.OpenViewContext(ctx, triggerID, view); err != nil {
		return domain.NewUpstreamError("open slack view", err)
	}
	return nil
}

// PublishView replaces the user's home tab.
func (c *Client) PublishView(ctx context.Context, userID string, view slack.HomeTabViewRequest) error {
	_, err := c.api.PublishViewContext(ctx, slack.PublishViewContextRequest{UserID: userID, View: view})
	if err != nil {
		return domain.NewUpstreamError("publish slack home tab", err)
	}
	return nil
}

// PostMessage posts blocks to a channel. text is the notification fallback.
func (c *Client) PostMessage(ctx context.Context, channelID, text string, blocks []slack.Block) error {
	_, ts, err := c.api.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return domain.NewUpstreamError(fmt.Sprintf("post message to %s", channelID), err)
	}
	c.log.Debug().Str("channel", channelID).Str("ts", ts).Msg("message posted")
	return nil
}
