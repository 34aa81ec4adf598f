package command

import (
	"fmt"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-mudlink/internal/storage"
	"github.com/pixil98/go-mudlink/internal/world"
)

type WorldConfig struct {
	// DefaultRoom is where players with no usable persisted location are
	// placed at connect. The zone is taken from the room.
	DefaultRoom string `json:"default_room"`
}

func (c *WorldConfig) Validate() error {
	el := errors.NewErrorList()

	if c.DefaultRoom == "" {
		el.Add(fmt.Errorf("default_room is required"))
	}

	return el.Err()
}

func (c *WorldConfig) BuildWorldManager(stores *Stores) (*world.Manager, error) {
	return world.NewManager(stores.Players, stores.Rooms, stores.Zones, storage.Identifier(c.DefaultRoom))
}
