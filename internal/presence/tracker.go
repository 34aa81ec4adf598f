package presence

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pixil98/go-mudlink/internal/groups"
	"github.com/pixil98/go-mudlink/internal/message"
	"github.com/pixil98/go-mudlink/internal/storage"
	"github.com/pixil98/go-mudlink/internal/world"
)

// chatPrefsKey is the player extension key chat preferences persist under.
const chatPrefsKey = "chat"

// ChatPrefs is per-player chat state carried on the player record.
type ChatPrefs struct {
	MuteGlobal bool `json:"mute_global,omitempty"`
}

// Tracker owns the mapping from connected sessions to group memberships and
// the online flag on player records. All membership changes after connect go
// through it so a session is never in two rooms at once.
type Tracker struct {
	world    *world.Manager
	registry *groups.Registry

	mu      sync.Mutex
	members map[string]groups.Member // session id -> member
}

func NewTracker(w *world.Manager, r *groups.Registry) *Tracker {
	return &Tracker{
		world:    w,
		registry: r,
		members:  map[string]groups.Member{},
	}
}

// Connect marks the player online, joins the session to its initial groups
// (player-private, room, zone, and global unless muted), and announces the
// arrival to the room. The join notice excludes the session itself since it
// gets its own welcome directly.
func (t *Tracker) Connect(m groups.Member, playerId storage.Identifier) error {
	name, ok := t.world.PlayerName(playerId)
	if !ok {
		return fmt.Errorf("player %q not found", playerId)
	}

	t.mu.Lock()
	if _, exists := t.members[m.ID()]; exists {
		t.mu.Unlock()
		return fmt.Errorf("session %q already connected", m.ID())
	}
	t.members[m.ID()] = m
	t.mu.Unlock()

	zone, room := t.world.StartLocation(playerId)

	var prefs ChatPrefs
	if _, err := t.world.GetPlayerExt(playerId, chatPrefsKey, &prefs); err != nil {
		slog.Warn("reading chat preferences", "player", playerId, "err", err)
	}

	keys := []groups.Key{
		groups.PlayerKey(playerId),
		groups.RoomKey(room),
		groups.ZoneKey(zone),
	}
	if !prefs.MuteGlobal {
		keys = append(keys, groups.KeyGlobal)
	}

	for _, key := range keys {
		if err := t.registry.Join(m, key); err != nil {
			t.abandon(m)
			return fmt.Errorf("joining %s: %w", key, err)
		}
	}

	// Persist the effective location so a player placed at the start room
	// actually lands there.
	if p, found := t.world.Player(playerId); found && (p.Zone != zone || p.Room != room) {
		if err := t.world.SetLocation(playerId, zone, room); err != nil {
			t.abandon(m)
			return fmt.Errorf("placing player: %w", err)
		}
	}

	if err := t.world.SetOnline(playerId, true); err != nil {
		t.abandon(m)
		return fmt.Errorf("marking player online: %w", err)
	}

	notice := message.NewSystem(fmt.Sprintf("%s has entered the game.", name))
	if err := t.registry.PublishToRoom(room, notice, m.ID()); err != nil {
		slog.Warn("publishing join notice", "player", playerId, "err", err)
	}

	return nil
}

// Disconnect announces the departure, removes the session from every group,
// and marks the player offline. It is idempotent and safe to call for a
// session whose Connect never completed.
func (t *Tracker) Disconnect(m groups.Member, playerId storage.Identifier) {
	t.mu.Lock()
	_, connected := t.members[m.ID()]
	delete(t.members, m.ID())
	t.mu.Unlock()

	if !connected {
		t.registry.LeaveAll(m)
		return
	}

	if name, ok := t.world.PlayerName(playerId); ok {
		if _, room, located := t.world.Location(playerId); located {
			notice := message.NewSystem(fmt.Sprintf("%s has left the game.", name))
			if err := t.registry.PublishToRoom(room, notice, m.ID()); err != nil {
				slog.Warn("publishing leave notice", "player", playerId, "err", err)
			}
		}
	}

	t.registry.LeaveAll(m)

	if err := t.world.SetOnline(playerId, false); err != nil {
		slog.Warn("marking player offline", "player", playerId, "err", err)
	}
}

// Relocate moves a connected session between rooms in one step: departure
// notice, group swap, persisted location, arrival notice. The caller has
// already validated the exit; direction should be a full direction name.
func (t *Tracker) Relocate(sessionId string, playerId storage.Identifier, direction string, destZone, destRoom storage.Identifier) error {
	t.mu.Lock()
	m, ok := t.members[sessionId]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %q not connected", sessionId)
	}

	name, ok := t.world.PlayerName(playerId)
	if !ok {
		return fmt.Errorf("player %q not found", playerId)
	}

	fromZone, fromRoom, located := t.world.Location(playerId)
	if !located {
		return fmt.Errorf("player %q has no location", playerId)
	}

	leave := message.New(message.TypeBroadcast, fmt.Sprintf("%s leaves %s.", name, direction))
	if err := t.registry.PublishToRoom(fromRoom, leave, sessionId); err != nil {
		slog.Warn("publishing departure notice", "player", playerId, "err", err)
	}

	if err := t.world.SetLocation(playerId, destZone, destRoom); err != nil {
		return fmt.Errorf("moving player: %w", err)
	}

	t.registry.Leave(m, groups.RoomKey(fromRoom))
	if err := t.registry.Join(m, groups.RoomKey(destRoom)); err != nil {
		return fmt.Errorf("joining %s: %w", groups.RoomKey(destRoom), err)
	}
	if destZone != fromZone {
		t.registry.Leave(m, groups.ZoneKey(fromZone))
		if err := t.registry.Join(m, groups.ZoneKey(destZone)); err != nil {
			return fmt.Errorf("joining %s: %w", groups.ZoneKey(destZone), err)
		}
	}

	arrive := message.New(message.TypeBroadcast, fmt.Sprintf("%s arrives from the %s.", name, world.OppositeDirection(direction)))
	if err := t.registry.PublishToRoom(destRoom, arrive, sessionId); err != nil {
		slog.Warn("publishing arrival notice", "player", playerId, "err", err)
	}

	update := message.New(message.TypePlayerUpdate, "")
	update.Data = map[string]any{
		"zone": destZone.String(),
		"room": destRoom.String(),
	}
	if err := t.registry.PublishToPlayer(playerId, update); err != nil {
		slog.Warn("publishing location update", "player", playerId, "err", err)
	}

	return nil
}

// SetGlobalMuted flips the player's global chat preference and joins or
// leaves the global group to match. Returns false when the preference
// already had the requested value.
func (t *Tracker) SetGlobalMuted(sessionId string, playerId storage.Identifier, muted bool) (bool, error) {
	t.mu.Lock()
	m, ok := t.members[sessionId]
	t.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("session %q not connected", sessionId)
	}

	var prefs ChatPrefs
	if _, err := t.world.GetPlayerExt(playerId, chatPrefsKey, &prefs); err != nil {
		return false, err
	}
	if prefs.MuteGlobal == muted {
		return false, nil
	}

	prefs.MuteGlobal = muted
	if err := t.world.SetPlayerExt(playerId, chatPrefsKey, prefs); err != nil {
		return false, err
	}

	if muted {
		t.registry.Leave(m, groups.KeyGlobal)
		return true, nil
	}
	if err := t.registry.Join(m, groups.KeyGlobal); err != nil {
		return true, fmt.Errorf("joining %s: %w", groups.KeyGlobal, err)
	}
	return true, nil
}

// Connected reports whether a session is currently registered.
func (t *Tracker) Connected(sessionId string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.members[sessionId]
	return ok
}

// abandon reverses a partial Connect.
func (t *Tracker) abandon(m groups.Member) {
	t.registry.LeaveAll(m)
	t.mu.Lock()
	delete(t.members, m.ID())
	t.mu.Unlock()
}
