package commands

import (
	"context"

	"github.com/pixil98/go-mudlink/internal/message"
)

// QuitHandlerFactory creates handlers that say goodbye and close the session.
type QuitHandlerFactory struct {
	pub Publisher
}

func NewQuitHandlerFactory(pub Publisher) *QuitHandlerFactory {
	return &QuitHandlerFactory{pub: pub}
}

func (f *QuitHandlerFactory) Spec() *HandlerSpec {
	return nil
}

func (f *QuitHandlerFactory) ValidateConfig(config map[string]any) error {
	return nil
}

func (f *QuitHandlerFactory) Create() (CommandFunc, error) {
	return func(ctx context.Context, cmdCtx *CommandContext) error {
		if err := f.pub.PublishToPlayer(cmdCtx.Actor.PlayerID(), message.New(message.TypeCommandResult, "Goodbye!")); err != nil {
			return err
		}

		cmdCtx.Actor.Quit()
		return nil
	}, nil
}
