package commands

import (
	"context"
	"fmt"

	"github.com/pixil98/go-mudlink/internal/message"
	"github.com/pixil98/go-mudlink/internal/presence"
)

// MuteHandlerFactory creates handlers that mute or unmute the global chat
// channel for the invoking player. The preference persists across sessions.
// Config:
//   - muted (required): "true" to mute, "false" to unmute
type MuteHandlerFactory struct {
	tracker *presence.Tracker
	pub     Publisher
}

func NewMuteHandlerFactory(tracker *presence.Tracker, pub Publisher) *MuteHandlerFactory {
	return &MuteHandlerFactory{tracker: tracker, pub: pub}
}

func (f *MuteHandlerFactory) Spec() *HandlerSpec {
	return &HandlerSpec{
		Config: []ConfigRequirement{
			{Name: "muted", Required: true},
		},
	}
}

func (f *MuteHandlerFactory) ValidateConfig(config map[string]any) error {
	muted, _ := config["muted"].(string)
	if muted != "true" && muted != "false" {
		return fmt.Errorf("muted must be \"true\" or \"false\", got %v", config["muted"])
	}

	return nil
}

func (f *MuteHandlerFactory) Create() (CommandFunc, error) {
	return func(ctx context.Context, cmdCtx *CommandContext) error {
		actor := cmdCtx.Actor
		muted := cmdCtx.Config["muted"] == "true"

		changed, err := f.tracker.SetGlobalMuted(actor.ID(), actor.PlayerID(), muted)
		if err != nil {
			return fmt.Errorf("updating global mute for %q: %w", actor.PlayerID(), err)
		}

		var out string
		switch {
		case changed && muted:
			out = "Global chat muted."
		case changed && !muted:
			out = "Global chat unmuted."
		case muted:
			out = "Global chat is already muted."
		default:
			out = "Global chat is already unmuted."
		}

		return f.pub.PublishToPlayer(actor.PlayerID(), message.New(message.TypeCommandResult, out))
	}, nil
}
