package commands

import (
	"context"
	"fmt"

	"github.com/pixil98/go-mudlink/internal/message"
	"github.com/pixil98/go-mudlink/internal/presence"
	"github.com/pixil98/go-mudlink/internal/world"
)

// MoveHandlerFactory creates handlers that move players between rooms.
// Config:
//   - direction (required): the direction to move, or a template reading it
//     from an input
type MoveHandlerFactory struct {
	world   *world.Manager
	tracker *presence.Tracker
	pub     Publisher
}

// NewMoveHandlerFactory creates a new MoveHandlerFactory with access to world state.
func NewMoveHandlerFactory(world *world.Manager, tracker *presence.Tracker, pub Publisher) *MoveHandlerFactory {
	return &MoveHandlerFactory{world: world, tracker: tracker, pub: pub}
}

func (f *MoveHandlerFactory) Spec() *HandlerSpec {
	return &HandlerSpec{
		Config: []ConfigRequirement{
			{Name: "direction", Required: true},
		},
	}
}

func (f *MoveHandlerFactory) ValidateConfig(config map[string]any) error {
	direction, ok := config["direction"].(string)
	if !ok || direction == "" {
		return fmt.Errorf("direction is required")
	}

	return nil
}

func (f *MoveHandlerFactory) Create() (CommandFunc, error) {
	return func(ctx context.Context, cmdCtx *CommandContext) error {
		actor := cmdCtx.Actor

		// Read direction from expanded config
		direction := world.NormalizeDirection(cmdCtx.Config["direction"])
		if direction == "" {
			return fmt.Errorf("direction not set in config")
		}

		_, roomId, ok := f.world.Location(actor.PlayerID())
		if !ok {
			return NewUserError("You are in an invalid location.")
		}

		fromRoom := f.world.Room(roomId)
		if fromRoom == nil {
			return NewUserError("You are in an invalid location.")
		}

		// Check if exit exists
		exit, exists := fromRoom.Exits[direction]
		if !exists {
			return NewUserError(fmt.Sprintf("You cannot go %s from here.", direction))
		}

		toRoom := f.world.Room(exit.Room)
		if toRoom == nil {
			return NewUserError("Alas, you cannot go that way...")
		}

		// Move the player (updates location, group membership, and notices)
		if err := f.tracker.Relocate(actor.ID(), actor.PlayerID(), direction, toRoom.Zone.Id(), exit.Room); err != nil {
			return fmt.Errorf("moving %q: %w", actor.PlayerID(), err)
		}

		// Send the new room description to the player
		desc, ok := f.world.Describe(exit.Room, actor.PlayerID())
		if !ok {
			return NewUserError("You are in an invalid location.")
		}
		return f.pub.PublishToPlayer(actor.PlayerID(), message.New(message.TypeCommandResult, desc))
	}, nil
}
