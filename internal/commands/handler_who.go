package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/pixil98/go-mudlink/internal/message"
	"github.com/pixil98/go-mudlink/internal/world"
)

// WhoHandlerFactory creates handlers that list online players.
type WhoHandlerFactory struct {
	world *world.Manager
	pub   Publisher
}

// NewWhoHandlerFactory creates a new WhoHandlerFactory.
func NewWhoHandlerFactory(world *world.Manager, pub Publisher) *WhoHandlerFactory {
	return &WhoHandlerFactory{world: world, pub: pub}
}

func (f *WhoHandlerFactory) Spec() *HandlerSpec {
	return nil
}

func (f *WhoHandlerFactory) ValidateConfig(config map[string]any) error {
	return nil
}

func (f *WhoHandlerFactory) Create() (CommandFunc, error) {
	return func(ctx context.Context, cmdCtx *CommandContext) error {
		var lines []string
		for _, p := range f.world.OnlinePlayers() {
			lines = append(lines, fmt.Sprintf("  %s", p.Name))
		}

		output := "Players Online:\n" + strings.Join(lines, "\n")
		return f.pub.PublishToPlayer(cmdCtx.Actor.PlayerID(), message.New(message.TypeCommandResult, output))
	}, nil
}
