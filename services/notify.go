package services

import (
	"context"
	"fmt"
	"log"

	"github.com/slack-go/slack"
)

// Notifier delivers escalation messages. The concrete transport is irrelevant
// to the engine's correctness; delivery failures are integration failures,
// logged by the caller and never propagated to the primary operation.
type Notifier interface {
	Notify(ctx context.Context, workspaceID, channel, message string) error
}

// SlackNotifier posts escalation messages to the workspace's chat channels.
type SlackNotifier struct {
	client *slack.Client
}

func NewSlackNotifier(botToken string) *SlackNotifier {
	return &SlackNotifier{client: slack.New(botToken)}
}

func (n *SlackNotifier) Notify(ctx context.Context, workspaceID, channel, message string) error {
	_, _, err := n.client.PostMessageContext(ctx, channel,
		slack.MsgOptionText(message, false),
		slack.MsgOptionIconEmoji(":rotating_light:"),
	)
	if err != nil {
		return fmt.Errorf("failed to post message to %s: %w", channel, err)
	}
	return nil
}

// NopNotifier is used when no bot token is configured; it logs instead of
// delivering so the sweep keeps running.
type NopNotifier struct{}

func (NopNotifier) Notify(_ context.Context, workspaceID, channel, message string) error {
	log.Printf("Notify (no transport configured) workspace=%s channel=%s: %s", workspaceID, channel, message)
	return nil
}
