package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pixil98/go-mudlink/internal/commands"
	"github.com/pixil98/go-mudlink/internal/driver"
	"github.com/pixil98/go-mudlink/internal/groups"
	"github.com/pixil98/go-mudlink/internal/listener"
	"github.com/pixil98/go-mudlink/internal/metrics"
	"github.com/pixil98/go-mudlink/internal/plugins"
	"github.com/pixil98/go-mudlink/internal/plugins/uptime"
	"github.com/pixil98/go-mudlink/internal/presence"
	"github.com/pixil98/go-mudlink/internal/world"
	"github.com/pixil98/go-service"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	stores, err := cfg.Storage.BuildStores()
	if err != nil {
		return nil, fmt.Errorf("creating stores: %w", err)
	}

	worldMgr, err := cfg.World.BuildWorldManager(stores)
	if err != nil {
		return nil, fmt.Errorf("creating world manager: %w", err)
	}

	// Players left online by an unclean shutdown would otherwise be
	// whisperable forever.
	if cleared, err := worldMgr.ClearStaleOnline(); err != nil {
		return nil, fmt.Errorf("clearing stale online flags: %w", err)
	} else if cleared > 0 {
		slog.Info("cleared stale online flags", "players", cleared)
	}

	nats, err := cfg.Nats.BuildNatsServer()
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}

	m := metrics.New()

	registry := groups.NewRegistry(nats, groups.WithRecorder(m))
	tracker := presence.NewTracker(worldMgr, registry)

	cmdHandler := commands.NewHandler(worldMgr)
	if err := registerHandlerFactories(cmdHandler, registry, worldMgr, tracker, stores); err != nil {
		return nil, fmt.Errorf("registering command handlers: %w", err)
	}

	pluginMgr := plugins.NewPluginManager(cmdHandler)
	if err := pluginMgr.Register(context.Background(), uptime.New(registry)); err != nil {
		return nil, fmt.Errorf("registering uptime plugin: %w", err)
	}

	if err := cmdHandler.CompileAll(stores.Commands); err != nil {
		return nil, fmt.Errorf("compiling commands: %w", err)
	}

	sessions, err := cfg.Session.BuildSessionManager(cmdHandler, tracker, m)
	if err != nil {
		return nil, fmt.Errorf("creating session manager: %w", err)
	}
	m.SetSessionSource(sessions)
	m.SetGroupSource(registry)

	authenticator, err := cfg.Auth.BuildAuthenticator(worldMgr)
	if err != nil {
		return nil, fmt.Errorf("creating authenticator: %w", err)
	}

	cm := listener.NewConnectionManager(authenticator, sessions, m)

	listeners := make(service.WorkerList, len(cfg.Listeners))
	for i, l := range cfg.Listeners {
		lst, err := l.BuildListener(cm, m.Handler())
		if err != nil {
			return nil, fmt.Errorf("creating listener %d: %w", i, err)
		}
		listeners[fmt.Sprintf("listener-%d", i)] = lst
	}

	var driverOpts []driver.DriverOpt
	if cfg.TickInterval != "" {
		d, err := time.ParseDuration(cfg.TickInterval)
		if err != nil {
			return nil, fmt.Errorf("parsing tick_interval: %w", err)
		}
		driverOpts = append(driverOpts, driver.WithTickInterval(d))
	}
	tick := driver.NewDriver([]driver.Ticker{sessions, pluginMgr, m}, driverOpts...)

	return service.WorkerList{
		"nats":      nats,
		"sessions":  sessions,
		"driver":    tick,
		"listeners": &listeners,
	}, nil
}

// registerHandlerFactories wires every built-in handler factory into the
// command handler. The names match the "handler" field in command assets.
func registerHandlerFactories(h *commands.Handler, registry *groups.Registry, worldMgr *world.Manager, tracker *presence.Tracker, stores *Stores) error {
	factories := map[string]commands.HandlerFactory{
		"message": commands.NewMessageHandlerFactory(registry, worldMgr),
		"look":    commands.NewLookHandlerFactory(worldMgr, registry),
		"move":    commands.NewMoveHandlerFactory(worldMgr, tracker, registry),
		"mute":    commands.NewMuteHandlerFactory(tracker, registry),
		"help":    commands.NewHelpHandlerFactory(stores.Commands, registry),
		"who":     commands.NewWhoHandlerFactory(worldMgr, registry),
		"quit":    commands.NewQuitHandlerFactory(registry),
	}

	for name, factory := range factories {
		if err := h.RegisterFactory(name, factory); err != nil {
			return err
		}
	}
	return nil
}
