package plugins

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pixil98/go-mudlink/internal/commands"
)

// Registry is the surface a plugin extends at init time.
type Registry interface {
	RegisterFactory(name string, factory commands.HandlerFactory) error
}

// Plugin is a server extension: it contributes command handlers at init and
// gets a slot on the shared tick.
type Plugin interface {
	Key() string
	Init(ctx context.Context, reg Registry) error
	Tick(ctx context.Context) error
}

type PluginManager struct {
	registry Registry
	plugins  []Plugin
}

func NewPluginManager(registry Registry) *PluginManager {
	return &PluginManager{
		registry: registry,
		plugins:  []Plugin{},
	}
}

func (m *PluginManager) Register(ctx context.Context, p Plugin) error {
	if p == nil {
		return fmt.Errorf("plugin is nil")
	}

	m.plugins = append(m.plugins, p)
	slog.InfoContext(ctx, "registered plugin", "key", p.Key())

	return p.Init(ctx, m.registry)
}

func (m *PluginManager) Tick(ctx context.Context) error {
	for _, p := range m.plugins {
		err := p.Tick(ctx)
		if err != nil {
			return fmt.Errorf("ticking %s: %w", p.Key(), err)
		}
	}

	return nil
}
