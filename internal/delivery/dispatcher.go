package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
)

// Mode selects where answers land.
type Mode string

const (
	// ModeEphemeral shows the answer only to the person who asked.
	ModeEphemeral Mode = "ephemeral"
	// ModeChannel posts the answer publicly to the channel the flow
	// started from, attributed to the asker.
	ModeChannel Mode = "channel"
)

// ParseMode validates a configured mode string. Empty means ModeEphemeral.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeEphemeral:
		return ModeEphemeral, nil
	case ModeChannel:
		return ModeChannel, nil
	}
	return "", fmt.Errorf("unknown delivery mode %q", s)
}

// Recipient identifies where an answer can go: the asking user, plus the
// originating channel when the flow started in one.
type Recipient struct {
	UserID    string
	ChannelID string
}

// MessagePoster is the slice of the Slack client the dispatcher needs.
type MessagePoster interface {
	PostEphemeralContext(ctx context.Context, channelID, userID string, options ...slack.MsgOption) (string, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Dispatcher is the terminal stage of the flow: completion results become
// chat messages. It never reports failure upward; by the time it runs there
// is nobody left to tell, so posting problems only reach the log.
type Dispatcher struct {
	client MessagePoster
	mode   Mode
	logger *slog.Logger
}

func NewDispatcher(client MessagePoster, mode Mode, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{client: client, mode: mode, logger: logger}
}

// DeliverAnswer posts a completed answer.
func (d *Dispatcher) DeliverAnswer(ctx context.Context, rcpt Recipient, answer string) {
	if answer == "" {
		answer = "_(the model returned an empty answer)_"
	}
	d.post(ctx, rcpt, "*Answer:*\n"+answer)
}

// DeliverError reports a failed completion to the same place the answer
// would have gone.
func (d *Dispatcher) DeliverError(ctx context.Context, rcpt Recipient, err error) {
	d.post(ctx, rcpt, "Error: "+err.Error())
}

func (d *Dispatcher) post(ctx context.Context, rcpt Recipient, text string) {
	if d.mode == ModeChannel && rcpt.ChannelID != "" {
		attributed := fmt.Sprintf("<@%s>\n%s", rcpt.UserID, text)
		if _, _, err := d.client.PostMessageContext(ctx, rcpt.ChannelID,
			slack.MsgOptionText(attributed, false)); err != nil {
			d.logger.Error("channel post failed",
				slog.String("channel_id", rcpt.ChannelID),
				slog.String("error", err.Error()))
		}
		return
	}

	// Ephemeral delivery. This is also the fallback for channel mode when
	// the flow began without a channel (global shortcut); the user's own
	// conversation stands in then.
	channel := rcpt.ChannelID
	if channel == "" {
		channel = rcpt.UserID
	}
	if _, err := d.client.PostEphemeralContext(ctx, channel, rcpt.UserID,
		slack.MsgOptionText(text, false)); err != nil {
		d.logger.Error("ephemeral post failed",
			slog.String("channel_id", channel),
			slog.String("user_id", rcpt.UserID),
			slog.String("error", err.Error()))
	}
}
