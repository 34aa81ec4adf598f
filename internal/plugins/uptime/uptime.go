package uptime

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pixil98/go-mudlink/internal/commands"
	"github.com/pixil98/go-mudlink/internal/message"
	"github.com/pixil98/go-mudlink/internal/plugins"
)

// Plugin reports how long the server has been running. It is also the
// reference plugin: one contributed handler factory, one tick hook.
type Plugin struct {
	pub     commands.Publisher
	started time.Time
	ticks   atomic.Int64
}

func New(pub commands.Publisher) *Plugin {
	return &Plugin{
		pub:     pub,
		started: time.Now(),
	}
}

func (p *Plugin) Key() string {
	return "uptime"
}

func (p *Plugin) Init(ctx context.Context, reg plugins.Registry) error {
	return reg.RegisterFactory("uptime", &handlerFactory{plugin: p})
}

func (p *Plugin) Tick(ctx context.Context) error {
	p.ticks.Add(1)
	return nil
}

type handlerFactory struct {
	plugin *Plugin
}

func (f *handlerFactory) Spec() *commands.HandlerSpec {
	return &commands.HandlerSpec{}
}

func (f *handlerFactory) ValidateConfig(config map[string]any) error {
	return nil
}

func (f *handlerFactory) Create() (commands.CommandFunc, error) {
	return func(ctx context.Context, cmdCtx *commands.CommandContext) error {
		up := time.Since(f.plugin.started).Round(time.Second)
		text := fmt.Sprintf("Server up %s (%d ticks).", up, f.plugin.ticks.Load())
		return f.plugin.pub.PublishToPlayer(cmdCtx.Actor.PlayerID(), message.New(message.TypeCommandResult, text))
	}, nil
}
