package world

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pixil98/go-errors"
	"golang.org/x/text/cases"

	"github.com/pixil98/go-mudlink/internal/storage"
)

// Manager owns the world's persisted state: players, rooms, and zones. All
// reads and writes of player fields go through it so sessions on different
// goroutines never touch a spec directly.
type Manager struct {
	players storage.Storer[*PlayerSpec]
	rooms   storage.Storer[*RoomSpec]
	zones   storage.Storer[*ZoneSpec]

	defaultZone storage.Identifier
	defaultRoom storage.Identifier

	mu     sync.RWMutex
	byName map[string]storage.Identifier
}

// NewManager wires the stores together and runs the cross-reference checks
// individual specs cannot do alone: zone refs resolve, exits lead to rooms
// that exist, and display names are unique.
func NewManager(players storage.Storer[*PlayerSpec], rooms storage.Storer[*RoomSpec], zones storage.Storer[*ZoneSpec], defaultRoom storage.Identifier) (*Manager, error) {
	m := &Manager{
		players: players,
		rooms:   rooms,
		zones:   zones,
		byName:  map[string]storage.Identifier{},
	}

	el := errors.NewErrorList()

	for id, room := range rooms.GetAll() {
		if err := room.Zone.Resolve(zones); err != nil {
			el.Add(fmt.Errorf("room %q: %w", id, err))
			continue
		}

		for dir, exit := range room.Exits {
			dest := rooms.Get(exit.Room)
			if dest == nil {
				el.Add(fmt.Errorf("room %q: exit %s leads to unknown room %q", id, dir, exit.Room))
				continue
			}
			if exit.Zone != "" && exit.Zone != dest.Zone.Id() {
				el.Add(fmt.Errorf("room %q: exit %s names zone %q but room %q is in zone %q", id, dir, exit.Zone, exit.Room, dest.Zone.Id()))
			}
		}
	}

	for id, player := range players.GetAll() {
		key := foldName(player.Name)
		if other, ok := m.byName[key]; ok {
			el.Add(fmt.Errorf("players %q and %q share the name %q", other, id, player.Name))
			continue
		}
		m.byName[key] = id
	}

	start := rooms.Get(defaultRoom)
	if start == nil {
		el.Add(fmt.Errorf("default room %q not found", defaultRoom))
	} else {
		m.defaultZone = start.Zone.Id()
	}
	m.defaultRoom = defaultRoom

	if err := el.Err(); err != nil {
		return nil, err
	}

	return m, nil
}

// DefaultLocation is where players without a usable persisted location start.
func (m *Manager) DefaultLocation() (zone, room storage.Identifier) {
	return m.defaultZone, m.defaultRoom
}

// Location returns a player's current location. ok is false when the player
// has no record, was never placed in a room, or their persisted room no
// longer exists. The zone always comes from the room itself.
func (m *Manager) Location(id storage.Identifier) (zone, room storage.Identifier, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p := m.players.Get(id)
	if p == nil || p.Room == "" {
		return "", "", false
	}

	r := m.rooms.Get(p.Room)
	if r == nil {
		return "", "", false
	}

	return r.Zone.Id(), p.Room, true
}

// StartLocation is where a connecting player should be placed: their current
// location when it is still valid, the default location otherwise.
func (m *Manager) StartLocation(id storage.Identifier) (zone, room storage.Identifier) {
	if zone, room, ok := m.Location(id); ok {
		return zone, room
	}
	return m.defaultZone, m.defaultRoom
}

// Player returns a copy of a player's persisted state.
func (m *Manager) Player(id storage.Identifier) (PlayerSpec, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p := m.players.Get(id)
	if p == nil {
		return PlayerSpec{}, false
	}
	return *p, true
}

// PlayerName resolves a player id to its display name.
func (m *Manager) PlayerName(id storage.Identifier) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p := m.players.Get(id)
	if p == nil {
		return "", false
	}
	return p.Name, true
}

// FindPlayer looks a player up by display name, case-insensitively.
func (m *Manager) FindPlayer(name string) (id storage.Identifier, display string, found, online bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byName[foldName(name)]
	if !ok {
		return "", "", false, false
	}

	p := m.players.Get(id)
	if p == nil {
		return "", "", false, false
	}
	return id, p.Name, true, p.Online
}

// SetOnline flips a player's online flag and stamps LastSeen.
func (m *Manager) SetOnline(id storage.Identifier, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.players.Get(id)
	if p == nil {
		return fmt.Errorf("player %q not found", id)
	}

	p.Online = online
	p.LastSeen = time.Now().UTC()

	return m.players.Save(id, p)
}

// SetLocation moves a player's persisted location.
func (m *Manager) SetLocation(id storage.Identifier, zone, room storage.Identifier) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.players.Get(id)
	if p == nil {
		return fmt.Errorf("player %q not found", id)
	}
	if m.rooms.Get(room) == nil {
		return fmt.Errorf("room %q not found", room)
	}

	p.Zone = zone
	p.Room = room

	return m.players.Save(id, p)
}

// OnlinePlayers returns copies of every player currently marked online,
// sorted by display name.
func (m *Manager) OnlinePlayers() []PlayerSpec {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []PlayerSpec
	for _, p := range m.players.GetAll() {
		if p.Online {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PlayersInRoom returns copies of the online players in a room, sorted by
// display name.
func (m *Manager) PlayersInRoom(room storage.Identifier) []PlayerSpec {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []PlayerSpec
	for _, p := range m.players.GetAll() {
		if p.Online && p.Room == room {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ClearStaleOnline marks every player offline. Run at startup so players left
// online by a crash do not appear connected forever.
func (m *Manager) ClearStaleOnline() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cleared := 0
	for id, p := range m.players.GetAll() {
		if !p.Online {
			continue
		}
		p.Online = false
		if err := m.players.Save(id, p); err != nil {
			return cleared, fmt.Errorf("clearing online flag for %q: %w", id, err)
		}
		cleared++
	}
	return cleared, nil
}

// Room returns the room spec, or nil if it does not exist.
func (m *Manager) Room(id storage.Identifier) *RoomSpec {
	return m.rooms.Get(id)
}

// Zone returns the zone spec, or nil if it does not exist.
func (m *Manager) Zone(id storage.Identifier) *ZoneSpec {
	return m.zones.Get(id)
}

// ResolveExit follows an exit out of a room. The destination zone comes from
// the destination room itself.
func (m *Manager) ResolveExit(from storage.Identifier, direction string) (zone, room storage.Identifier, ok bool) {
	r := m.rooms.Get(from)
	if r == nil {
		return "", "", false
	}

	exit, exists := r.Exits[NormalizeDirection(direction)]
	if !exists {
		return "", "", false
	}

	dest := m.rooms.Get(exit.Room)
	if dest == nil {
		return "", "", false
	}
	return dest.Zone.Id(), exit.Room, true
}

// Describe renders a room for a viewer: name, description, exits, and the
// other players present.
func (m *Manager) Describe(roomId, viewer storage.Identifier) (string, bool) {
	r := m.rooms.Get(roomId)
	if r == nil {
		return "", false
	}

	output := []string{
		"\n" + r.Name,
		strings.Repeat("-", len(r.Name)),
		r.Description,
	}

	if len(r.Exits) > 0 {
		dirs := make([]string, 0, len(r.Exits))
		for dir := range r.Exits {
			dirs = append(dirs, dir)
		}
		sort.Strings(dirs)
		output = append(output, fmt.Sprintf("\nExits: %s", strings.Join(dirs, ", ")))
	} else {
		output = append(output, "\nNo obvious exits.")
	}

	viewerName, _ := m.PlayerName(viewer)

	var here []string
	for _, p := range m.PlayersInRoom(roomId) {
		if p.Name == viewerName {
			continue
		}
		here = append(here, fmt.Sprintf("  %s is here.", p.Name))
	}
	if len(here) > 0 {
		output = append(output, "\nPlayers here:")
		output = append(output, here...)
	}

	return strings.Join(output, "\n"), true
}

// GetPlayerExt reads a component's per-player state into out.
func (m *Manager) GetPlayerExt(id storage.Identifier, key string, out any) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p := m.players.Get(id)
	if p == nil {
		return false, fmt.Errorf("player %q not found", id)
	}
	return p.Ext.Get(key, out)
}

// SetPlayerExt stores a component's per-player state and persists it.
func (m *Manager) SetPlayerExt(id storage.Identifier, key string, val any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.players.Get(id)
	if p == nil {
		return fmt.Errorf("player %q not found", id)
	}
	if err := p.Ext.Set(key, val); err != nil {
		return err
	}
	return m.players.Save(id, p)
}

func foldName(s string) string {
	return cases.Fold().String(s)
}
