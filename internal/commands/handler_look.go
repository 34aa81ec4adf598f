package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/pixil98/go-mudlink/internal/message"
	"github.com/pixil98/go-mudlink/internal/storage"
	"github.com/pixil98/go-mudlink/internal/world"
)

// LookHandlerFactory creates handlers that describe the current room, or a
// player in it when the optional target input is given. Targets are looked
// up against the room, not the whole roster, so a name that isn't here is
// "not seen" rather than a bad command.
type LookHandlerFactory struct {
	world *world.Manager
	pub   Publisher
}

// NewLookHandlerFactory creates a new LookHandlerFactory with access to world state.
func NewLookHandlerFactory(world *world.Manager, pub Publisher) *LookHandlerFactory {
	return &LookHandlerFactory{world: world, pub: pub}
}

func (f *LookHandlerFactory) Spec() *HandlerSpec {
	return &HandlerSpec{}
}

func (f *LookHandlerFactory) ValidateConfig(config map[string]any) error {
	return nil
}

func (f *LookHandlerFactory) Create() (CommandFunc, error) {
	return func(ctx context.Context, cmdCtx *CommandContext) error {
		actor := cmdCtx.Actor

		_, room, ok := f.world.Location(actor.PlayerID())
		if !ok {
			return NewUserError("You are in an invalid location.")
		}

		if name, _ := cmdCtx.Inputs["target"].(string); name != "" {
			return f.showTarget(actor, room, name)
		}

		return f.showRoom(actor, room)
	}, nil
}

// showRoom sends the current room description back to the actor.
func (f *LookHandlerFactory) showRoom(actor Actor, room storage.Identifier) error {
	desc, ok := f.world.Describe(room, actor.PlayerID())
	if !ok {
		return NewUserError("You are in an invalid location.")
	}
	return f.pub.PublishToPlayer(actor.PlayerID(), message.New(message.TypeCommandResult, desc))
}

// showTarget describes a player standing in the same room.
func (f *LookHandlerFactory) showTarget(actor Actor, room storage.Identifier, name string) error {
	for _, p := range f.world.PlayersInRoom(room) {
		if !strings.EqualFold(p.Name, name) {
			continue
		}
		desc := fmt.Sprintf("%s\n%s", p.Name, p.Description)
		return f.pub.PublishToPlayer(actor.PlayerID(), message.New(message.TypeCommandResult, desc))
	}

	return NewUserError(fmt.Sprintf("You don't see '%s' here.", name))
}
