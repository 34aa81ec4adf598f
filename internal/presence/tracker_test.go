package presence

import (
	"sync"
	"testing"

	"github.com/pixil98/go-testutil"

	"github.com/pixil98/go-mudlink/internal/groups"
	"github.com/pixil98/go-mudlink/internal/message"
	"github.com/pixil98/go-mudlink/internal/storage"
	"github.com/pixil98/go-mudlink/internal/world"
)

type mockStore[T storage.ValidatingSpec] struct {
	records map[storage.Identifier]T
}

func (s *mockStore[T]) Save(id storage.Identifier, v T) error {
	s.records[id] = v
	return nil
}

func (s *mockStore[T]) Get(id storage.Identifier) T {
	return s.records[id]
}

func (s *mockStore[T]) GetAll() map[storage.Identifier]T {
	out := make(map[storage.Identifier]T, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}

type mockMember struct {
	id string

	mu       sync.Mutex
	received []*message.Envelope
}

func (m *mockMember) ID() string { return m.id }

func (m *mockMember) Deliver(env *message.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, env)
}

// texts returns the message bodies of every received envelope of one type.
func (m *mockMember) texts(ty message.Type) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for _, env := range m.received {
		if env.Type == ty {
			out = append(out, env.Message)
		}
	}
	return out
}

func (m *mockMember) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}

func newTestTracker(t *testing.T) (*Tracker, *world.Manager, *groups.Registry) {
	t.Helper()

	zones := &mockStore[*world.ZoneSpec]{records: map[storage.Identifier]*world.ZoneSpec{
		"town":   {Name: "Town"},
		"forest": {Name: "Forest"},
	}}
	rooms := &mockStore[*world.RoomSpec]{records: map[storage.Identifier]*world.RoomSpec{
		"square": {
			Name:        "Town Square",
			Description: "The heart of town.",
			Zone:        storage.NewRef[*world.ZoneSpec]("town"),
			Exits: map[string]world.Exit{
				"north": {Room: "tavern"},
				"east":  {Zone: "forest", Room: "trail"},
			},
		},
		"tavern": {
			Name:        "The Rusty Tankard",
			Description: "A warm, noisy tavern.",
			Zone:        storage.NewRef[*world.ZoneSpec]("town"),
			Exits:       map[string]world.Exit{"south": {Room: "square"}},
		},
		"trail": {
			Name:        "Forest Trail",
			Description: "A narrow trail between old pines.",
			Zone:        storage.NewRef[*world.ZoneSpec]("forest"),
			Exits:       map[string]world.Exit{"west": {Room: "square"}},
		},
	}}
	players := &mockStore[*world.PlayerSpec]{records: map[storage.Identifier]*world.PlayerSpec{
		"alice": {Name: "Alice", Zone: "town", Room: "square"},
		"bob":   {Name: "Bob", Zone: "town", Room: "square"},
		"cara":  {Name: "Cara", Zone: "town", Room: "tavern"},
		"dave":  {Name: "Dave"},
	}}

	w, err := world.NewManager(players, rooms, zones, "square")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reg := groups.NewRegistry(groups.NewLoopback())
	return NewTracker(w, reg), w, reg
}

func connect(t *testing.T, tr *Tracker, id string, playerId storage.Identifier) *mockMember {
	t.Helper()

	m := &mockMember{id: id}
	if err := tr.Connect(m, playerId); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

func TestTracker_Connect(t *testing.T) {
	tr, w, reg := newTestTracker(t)

	alice := connect(t, tr, "sess-alice", "alice")
	bob := connect(t, tr, "sess-bob", "bob")

	p, _ := w.Player("alice")
	testutil.AssertEqual(t, "online", p.Online, true)
	testutil.AssertEqual(t, "connected", tr.Connected("sess-alice"), true)

	notices := alice.texts(message.TypeSystem)
	if len(notices) != 1 || notices[0] != "Bob has entered the game." {
		t.Errorf("unexpected join notices: %v", notices)
	}
	testutil.AssertEqual(t, "bob sees own notice", len(bob.texts(message.TypeSystem)), 0)

	// Connect joined all four groups.
	if err := reg.PublishToPlayer("alice", message.New(message.TypeWhisper, "psst")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.PublishToZone("town", message.New(message.TypeZoneBroadcast, "zone"), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.PublishGlobal(message.New(message.TypeGlobal, "hi all")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "whispers", len(alice.texts(message.TypeWhisper)), 1)
	testutil.AssertEqual(t, "zone messages", len(alice.texts(message.TypeZoneBroadcast)), 1)
	testutil.AssertEqual(t, "global messages", len(alice.texts(message.TypeGlobal)), 1)

	err := tr.Connect(&mockMember{id: "sess-alice"}, "alice")
	testutil.AssertErrorContains(t, err, `session "sess-alice" already connected`)
}

func TestTracker_Connect_PlacesUnplacedPlayer(t *testing.T) {
	tr, w, _ := newTestTracker(t)

	alice := connect(t, tr, "sess-alice", "alice")
	connect(t, tr, "sess-dave", "dave")

	p, _ := w.Player("dave")
	testutil.AssertEqual(t, "zone", p.Zone, storage.Identifier("town"))
	testutil.AssertEqual(t, "room", p.Room, storage.Identifier("square"))

	notices := alice.texts(message.TypeSystem)
	if len(notices) != 1 || notices[0] != "Dave has entered the game." {
		t.Errorf("unexpected join notices: %v", notices)
	}
}

func TestTracker_Connect_UnknownPlayer(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	err := tr.Connect(&mockMember{id: "sess-ghost"}, "ghost")
	testutil.AssertErrorContains(t, err, `player "ghost" not found`)
	testutil.AssertEqual(t, "connected", tr.Connected("sess-ghost"), false)
}

func TestTracker_Connect_MutedPlayerSkipsGlobal(t *testing.T) {
	tr, w, reg := newTestTracker(t)

	if err := w.SetPlayerExt("alice", chatPrefsKey, ChatPrefs{MuteGlobal: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	alice := connect(t, tr, "sess-alice", "alice")

	if err := reg.PublishGlobal(message.New(message.TypeGlobal, "hi all")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.PublishToRoom("square", message.New(message.TypeBroadcast, "local"), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "global messages", len(alice.texts(message.TypeGlobal)), 0)
	testutil.AssertEqual(t, "room messages", len(alice.texts(message.TypeBroadcast)), 1)
}

func TestTracker_Disconnect(t *testing.T) {
	tr, w, reg := newTestTracker(t)

	alice := connect(t, tr, "sess-alice", "alice")
	bob := connect(t, tr, "sess-bob", "bob")

	tr.Disconnect(bob, "bob")

	notices := alice.texts(message.TypeSystem)
	if len(notices) != 2 || notices[1] != "Bob has left the game." {
		t.Errorf("unexpected notices: %v", notices)
	}

	p, _ := w.Player("bob")
	testutil.AssertEqual(t, "online", p.Online, false)
	testutil.AssertEqual(t, "connected", tr.Connected("sess-bob"), false)

	before := bob.count()
	if err := reg.PublishToRoom("square", message.New(message.TypeBroadcast, "anyone?"), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "bob after disconnect", bob.count(), before)

	// A second disconnect must not emit a second notice.
	tr.Disconnect(bob, "bob")
	testutil.AssertEqual(t, "notices after repeat", len(alice.texts(message.TypeSystem)), 2)
}

func TestTracker_Disconnect_NeverConnected(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	alice := connect(t, tr, "sess-alice", "alice")

	tr.Disconnect(&mockMember{id: "sess-stray"}, "bob")
	testutil.AssertEqual(t, "notices", len(alice.texts(message.TypeSystem)), 0)
}

func TestTracker_Relocate(t *testing.T) {
	tr, w, reg := newTestTracker(t)

	alice := connect(t, tr, "sess-alice", "alice")
	bob := connect(t, tr, "sess-bob", "bob")
	cara := connect(t, tr, "sess-cara", "cara")

	if err := tr.Relocate("sess-alice", "alice", "north", "town", "tavern"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := bob.texts(message.TypeBroadcast); len(got) != 1 || got[0] != "Alice leaves north." {
		t.Errorf("unexpected departure notices: %v", got)
	}
	if got := cara.texts(message.TypeBroadcast); len(got) != 1 || got[0] != "Alice arrives from the south." {
		t.Errorf("unexpected arrival notices: %v", got)
	}

	updates := alice.texts(message.TypePlayerUpdate)
	testutil.AssertEqual(t, "updates", len(updates), 1)
	for _, env := range alice.received {
		if env.Type == message.TypePlayerUpdate {
			testutil.AssertEqual(t, "update zone", env.Data["zone"].(string), "town")
			testutil.AssertEqual(t, "update room", env.Data["room"].(string), "tavern")
		}
	}

	_, room, ok := w.Location("alice")
	testutil.AssertEqual(t, "located", ok, true)
	testutil.AssertEqual(t, "room", room, storage.Identifier("tavern"))

	// Alice left the square group and joined the tavern's.
	before := alice.count()
	if err := reg.PublishToRoom("square", message.New(message.TypeBroadcast, "old room"), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "old room traffic", alice.count(), before)

	if err := reg.PublishToRoom("tavern", message.New(message.TypeBroadcast, "new room"), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "new room traffic", alice.count(), before+1)

	// Same zone, so zone membership is untouched.
	if err := reg.PublishToZone("town", message.New(message.TypeZoneBroadcast, "zone"), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "zone messages", len(alice.texts(message.TypeZoneBroadcast)), 1)
}

func TestTracker_Relocate_CrossesZones(t *testing.T) {
	tr, _, reg := newTestTracker(t)

	alice := connect(t, tr, "sess-alice", "alice")

	if err := tr.Relocate("sess-alice", "alice", "east", "forest", "trail"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := reg.PublishToZone("town", message.New(message.TypeZoneBroadcast, "town zone"), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.PublishToZone("forest", message.New(message.TypeZoneBroadcast, "forest zone"), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := alice.texts(message.TypeZoneBroadcast)
	if len(got) != 1 || got[0] != "forest zone" {
		t.Errorf("unexpected zone messages: %v", got)
	}
}

func TestTracker_Relocate_NotConnected(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	err := tr.Relocate("sess-alice", "alice", "north", "town", "tavern")
	testutil.AssertErrorContains(t, err, `session "sess-alice" not connected`)
}

func TestTracker_SetGlobalMuted(t *testing.T) {
	tr, w, reg := newTestTracker(t)

	alice := connect(t, tr, "sess-alice", "alice")

	changed, err := tr.SetGlobalMuted("sess-alice", "alice", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "changed", changed, true)

	var prefs ChatPrefs
	if _, err := w.GetPlayerExt("alice", chatPrefsKey, &prefs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "persisted", prefs.MuteGlobal, true)

	if err := reg.PublishGlobal(message.New(message.TypeGlobal, "hi all")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "while muted", len(alice.texts(message.TypeGlobal)), 0)

	changed, err = tr.SetGlobalMuted("sess-alice", "alice", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "already muted", changed, false)

	changed, err = tr.SetGlobalMuted("sess-alice", "alice", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "unmuted", changed, true)

	if err := reg.PublishGlobal(message.New(message.TypeGlobal, "welcome back")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := alice.texts(message.TypeGlobal)
	if len(got) != 1 || got[0] != "welcome back" {
		t.Errorf("unexpected global messages: %v", got)
	}
}
