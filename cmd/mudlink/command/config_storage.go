package command

import (
	"fmt"
	"os"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-mudlink/internal/commands"
	"github.com/pixil98/go-mudlink/internal/storage"
	"github.com/pixil98/go-mudlink/internal/world"
)

type StorageConfig struct {
	Players  AssetConfig[*world.PlayerSpec] `json:"players"`
	Rooms    AssetConfig[*world.RoomSpec]   `json:"rooms"`
	Zones    AssetConfig[*world.ZoneSpec]   `json:"zones"`
	Commands AssetConfig[*commands.Command] `json:"commands"`
}

func (c *StorageConfig) Validate() error {
	el := errors.NewErrorList()
	el.Add(c.Players.Validate("players"))
	el.Add(c.Rooms.Validate("rooms"))
	el.Add(c.Zones.Validate("zones"))
	el.Add(c.Commands.Validate("commands"))
	return el.Err()
}

// Stores holds the loaded asset stores BuildWorkers wires into the world
// manager and command handler.
type Stores struct {
	Players  *storage.FileStore[*world.PlayerSpec]
	Rooms    *storage.FileStore[*world.RoomSpec]
	Zones    *storage.FileStore[*world.ZoneSpec]
	Commands *storage.FileStore[*commands.Command]
}

func (c *StorageConfig) BuildStores() (*Stores, error) {
	players, err := c.Players.BuildFileStore()
	if err != nil {
		return nil, fmt.Errorf("creating player store: %w", err)
	}
	rooms, err := c.Rooms.BuildFileStore()
	if err != nil {
		return nil, fmt.Errorf("creating room store: %w", err)
	}
	zones, err := c.Zones.BuildFileStore()
	if err != nil {
		return nil, fmt.Errorf("creating zone store: %w", err)
	}
	cmds, err := c.Commands.BuildFileStore()
	if err != nil {
		return nil, fmt.Errorf("creating command store: %w", err)
	}

	return &Stores{
		Players:  players,
		Rooms:    rooms,
		Zones:    zones,
		Commands: cmds,
	}, nil
}

type AssetConfig[T storage.ValidatingSpec] struct {
	Path string `json:"path"`
}

func (c *AssetConfig[T]) Validate(name string) error {
	if c.Path == "" {
		return fmt.Errorf("%s: path is required", name)
	}
	_, err := os.Stat(c.Path)
	if err != nil {
		return fmt.Errorf("%s: invalid path %q: %w", name, c.Path, err)
	}

	return nil
}

func (c *AssetConfig[T]) BuildFileStore() (*storage.FileStore[T], error) {
	return storage.NewFileStore[T](c.Path)
}
