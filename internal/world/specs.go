package world

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"

	"github.com/pixil98/go-mudlink/internal/storage"
)

// PlayerSpec is a persisted player identity. Live connection state belongs to
// the session layer; this carries only what survives a disconnect.
type PlayerSpec struct {
	// Name is the player's display name, unique across the world
	Name string `json:"name"`

	// Description is shown when another player looks at this player
	Description string `json:"description,omitempty"`

	// Last known location, updated as the player moves
	Zone storage.Identifier `json:"zone,omitempty"`
	Room storage.Identifier `json:"room,omitempty"`

	// Online tracks whether a session is currently attached
	Online   bool      `json:"online,omitempty"`
	LastSeen time.Time `json:"last_seen"`

	// Ext holds per-player state owned by other components
	Ext storage.ExtensionState `json:"ext,omitempty"`
}

// Validate satisfies storage.ValidatingSpec.
func (p *PlayerSpec) Validate() error {
	el := errors.NewErrorList()

	if p.Name == "" {
		el.Add(fmt.Errorf("player name is required"))
	}

	return el.Err()
}

// Exit defines a destination for movement from a room.
type Exit struct {
	Zone storage.Identifier `json:"zone,omitempty"` // Optional; defaults to current zone
	Room storage.Identifier `json:"room"`
}

// RoomSpec is a location within a zone.
type RoomSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Zone        storage.Ref[*ZoneSpec] `json:"zone"`
	Exits       map[string]Exit        `json:"exits,omitempty"` // direction -> destination
}

// Validate satisfies storage.ValidatingSpec. Exit destinations are checked
// against the loaded stores in a post-load pass; see Manager.
func (r *RoomSpec) Validate() error {
	el := errors.NewErrorList()

	if r.Name == "" {
		el.Add(fmt.Errorf("room name is required"))
	}
	el.Add(r.Zone.Validate())

	for dir, exit := range r.Exits {
		if exit.Room == "" {
			el.Add(fmt.Errorf("exit %s: room is required", dir))
		}
		if !IsDirection(dir) {
			el.Add(fmt.Errorf("exit %s: unknown direction", dir))
		} else if dir != NormalizeDirection(dir) {
			el.Add(fmt.Errorf("exit %s: use the full direction name %q", dir, NormalizeDirection(dir)))
		}
	}

	return el.Err()
}

// ZoneSpec is a region of the world grouping rooms for zone-wide broadcasts.
type ZoneSpec struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Validate satisfies storage.ValidatingSpec.
func (z *ZoneSpec) Validate() error {
	el := errors.NewErrorList()

	if z.Name == "" {
		el.Add(fmt.Errorf("zone name is required"))
	}

	return el.Err()
}
