package commands

import (
	"context"
	"fmt"

	"github.com/pixil98/go-mudlink/internal/message"
	"github.com/pixil98/go-mudlink/internal/world"
)

// MessageHandlerFactory creates handlers that publish chat messages to a
// broadcast scope. All the social commands (say, emote, whisper, shout,
// global) are configurations of this one handler.
//
// Config:
//   - scope (required): "room", "zone", "global", or "target"
//   - type (optional): envelope type, defaults per scope
//   - recipient_message (required): template for the message recipients see
//   - sender_message (optional): confirmation echoed to the sender
//   - exclude_sender (optional): "true"/"false", room and zone scopes only;
//     defaults to "true"
//   - no_location (optional): message shown when the sender is nowhere
type MessageHandlerFactory struct {
	pub   Publisher
	world *world.Manager
}

// defaultScopeTypes maps each scope to the envelope type used when the
// command doesn't override it.
var defaultScopeTypes = map[string]message.Type{
	"room":   message.TypeBroadcast,
	"zone":   message.TypeZoneBroadcast,
	"global": message.TypeGlobal,
	"target": message.TypeWhisper,
}

// NewMessageHandlerFactory creates a new MessageHandlerFactory.
func NewMessageHandlerFactory(pub Publisher, world *world.Manager) *MessageHandlerFactory {
	return &MessageHandlerFactory{pub: pub, world: world}
}

func (f *MessageHandlerFactory) Spec() *HandlerSpec {
	// Conditional requirements (e.g., target scope needing a target) are
	// handled by ValidateConfig below.
	return &HandlerSpec{
		Config: []ConfigRequirement{
			{Name: "scope", Required: true},
			{Name: "type", Required: false},
			{Name: "recipient_message", Required: true},
			{Name: "sender_message", Required: false},
			{Name: "exclude_sender", Required: false},
			{Name: "no_location", Required: false},
		},
		Targets: []TargetRequirement{
			{Name: "target", Required: false},
		},
	}
}

func (f *MessageHandlerFactory) ValidateConfig(config map[string]any) error {
	scope, _ := config["scope"].(string)
	if _, ok := defaultScopeTypes[scope]; !ok {
		return fmt.Errorf("scope must be one of room, zone, global, or target, got %q", scope)
	}

	if recipient, _ := config["recipient_message"].(string); recipient == "" {
		return fmt.Errorf("recipient_message must not be empty")
	}

	if exclude, set := config["exclude_sender"]; set {
		s, _ := exclude.(string)
		if s != "true" && s != "false" {
			return fmt.Errorf("exclude_sender must be \"true\" or \"false\", got %v", exclude)
		}
		if scope == "global" || scope == "target" {
			return fmt.Errorf("exclude_sender is not valid for scope %q", scope)
		}
	}

	return nil
}

func (f *MessageHandlerFactory) Create() (CommandFunc, error) {
	return func(ctx context.Context, cmdCtx *CommandContext) error {
		// Config values are already expanded by the framework
		scope := cmdCtx.Config["scope"]
		recipientMessage := cmdCtx.Config["recipient_message"]
		senderMessage := cmdCtx.Config["sender_message"]

		envType := defaultScopeTypes[scope]
		if t := cmdCtx.Config["type"]; t != "" {
			envType = message.Type(t)
		}

		actor := cmdCtx.Actor
		env := message.NewFrom(envType, actor.PlayerName(), recipientMessage)

		exclude := actor.ID()
		if cmdCtx.Config["exclude_sender"] == "false" {
			exclude = ""
		}

		switch scope {
		case "room", "zone":
			zone, room, ok := f.world.Location(actor.PlayerID())
			if !ok {
				return f.noLocation(cmdCtx.Config)
			}
			var err error
			if scope == "room" {
				err = f.pub.PublishToRoom(room, env, exclude)
			} else {
				err = f.pub.PublishToZone(zone, env, exclude)
			}
			if err != nil {
				return err
			}

		case "global":
			if err := f.pub.PublishGlobal(env); err != nil {
				return err
			}

		case "target":
			target := cmdCtx.Targets["target"]
			if target == nil || target.Player == nil {
				return fmt.Errorf("no target resolved for message with scope %q", scope)
			}
			if err := f.pub.PublishToPlayer(target.Player.Id, env); err != nil {
				return err
			}

		default:
			return fmt.Errorf("unknown message scope %q", scope)
		}

		// Confirmation goes out after the broadcast so a sender who is also
		// a recipient never sees the echo first.
		if senderMessage != "" {
			echo := message.New(message.TypeCommandResult, senderMessage)
			if err := f.pub.PublishToPlayer(actor.PlayerID(), echo); err != nil {
				return err
			}
		}

		return nil
	}, nil
}

func (f *MessageHandlerFactory) noLocation(config map[string]string) error {
	msg := config["no_location"]
	if msg == "" {
		msg = "You are nowhere."
	}
	return &UserError{Kind: KindNoLocation, Message: msg}
}
