package commands

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/pixil98/go-mudlink/internal/message"
	"github.com/pixil98/go-mudlink/internal/storage"
	"github.com/pixil98/go-mudlink/internal/world"
)

// specStore is an in-memory Storer for building world fixtures.
type specStore[T storage.ValidatingSpec] struct {
	records map[storage.Identifier]T
}

func (s *specStore[T]) Save(id storage.Identifier, spec T) error {
	s.records[id] = spec
	return nil
}

func (s *specStore[T]) Get(id storage.Identifier) T {
	return s.records[id]
}

func (s *specStore[T]) GetAll() map[storage.Identifier]T {
	return s.records
}

type published struct {
	env     *message.Envelope
	exclude string
}

// mockPublisher records everything published through it, with call order.
type mockPublisher struct {
	players map[storage.Identifier][]*message.Envelope
	rooms   map[storage.Identifier][]published
	zones   map[storage.Identifier][]published
	global  []*message.Envelope
	calls   []string
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{
		players: map[storage.Identifier][]*message.Envelope{},
		rooms:   map[storage.Identifier][]published{},
		zones:   map[storage.Identifier][]published{},
	}
}

func (p *mockPublisher) PublishToPlayer(id storage.Identifier, env *message.Envelope) error {
	p.players[id] = append(p.players[id], env)
	p.calls = append(p.calls, fmt.Sprintf("player:%s", id))
	return nil
}

func (p *mockPublisher) PublishToRoom(id storage.Identifier, env *message.Envelope, excludeSession string) error {
	p.rooms[id] = append(p.rooms[id], published{env: env, exclude: excludeSession})
	p.calls = append(p.calls, fmt.Sprintf("room:%s", id))
	return nil
}

func (p *mockPublisher) PublishToZone(id storage.Identifier, env *message.Envelope, excludeSession string) error {
	p.zones[id] = append(p.zones[id], published{env: env, exclude: excludeSession})
	p.calls = append(p.calls, fmt.Sprintf("zone:%s", id))
	return nil
}

func (p *mockPublisher) PublishGlobal(env *message.Envelope) error {
	p.global = append(p.global, env)
	p.calls = append(p.calls, "global")
	return nil
}

// newCommandTestWorld builds a small two-zone world: alice and bob in the
// town square, cara in the tavern, eve out on the forest trail, and dan
// online but nowhere.
func newCommandTestWorld(t *testing.T) *world.Manager {
	t.Helper()

	zones := &specStore[*world.ZoneSpec]{records: map[storage.Identifier]*world.ZoneSpec{
		"town":   {Name: "Town"},
		"forest": {Name: "Forest"},
	}}

	rooms := &specStore[*world.RoomSpec]{records: map[storage.Identifier]*world.RoomSpec{
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
			Exits: map[string]world.Exit{
				"south": {Room: "square"},
			},
		},
		"trail": {
			Name:        "Forest Trail",
			Description: "A narrow trail under old pines.",
			Zone:        storage.NewRef[*world.ZoneSpec]("forest"),
			Exits: map[string]world.Exit{
				"west": {Zone: "town", Room: "square"},
			},
		},
	}}

	players := &specStore[*world.PlayerSpec]{records: map[storage.Identifier]*world.PlayerSpec{
		"alice": {Name: "Alice", Description: "A wiry woman with quick eyes.", Zone: "town", Room: "square", Online: true},
		"bob":   {Name: "Bob", Zone: "town", Room: "square", Online: true},
		"cara":  {Name: "Cara", Zone: "town", Room: "tavern", Online: true},
		"dan":   {Name: "Dan", Online: true},
		"eve":   {Name: "Eve", Zone: "forest", Room: "trail", Online: true},
	}}

	m, err := world.NewManager(players, rooms, zones, "square")
	if err != nil {
		t.Fatalf("building world: %v", err)
	}
	return m
}

func TestMessageHandlerFactory_ValidateConfig(t *testing.T) {
	f := NewMessageHandlerFactory(newMockPublisher(), nil)

	tests := map[string]struct {
		config map[string]any
		expErr string
	}{
		"valid room scope": {
			config: map[string]any{
				"scope":             "room",
				"recipient_message": "{{ .Actor.Name }} waves.",
			},
			expErr: "",
		},
		"missing scope": {
			config: map[string]any{
				"recipient_message": "hello",
			},
			expErr: `scope must be one of room, zone, global, or target, got ""`,
		},
		"bad scope": {
			config: map[string]any{
				"scope":             "continent",
				"recipient_message": "hello",
			},
			expErr: `scope must be one of room, zone, global, or target, got "continent"`,
		},
		"missing recipient message": {
			config: map[string]any{
				"scope": "room",
			},
			expErr: "recipient_message must not be empty",
		},
		"bad exclude_sender value": {
			config: map[string]any{
				"scope":             "room",
				"recipient_message": "hello",
				"exclude_sender":    "yes",
			},
			expErr: `exclude_sender must be "true" or "false", got yes`,
		},
		"exclude_sender with global scope": {
			config: map[string]any{
				"scope":             "global",
				"recipient_message": "hello",
				"exclude_sender":    "true",
			},
			expErr: `exclude_sender is not valid for scope "global"`,
		},
		"exclude_sender with room scope is fine": {
			config: map[string]any{
				"scope":             "room",
				"recipient_message": "hello",
				"exclude_sender":    "false",
			},
			expErr: "",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := f.ValidateConfig(tt.config)

			if tt.expErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}

			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.expErr)
			}
			if err.Error() != tt.expErr {
				t.Errorf("error = %q, expected %q", err.Error(), tt.expErr)
			}
		})
	}
}

func TestMessageHandlerFactory_RoomScope(t *testing.T) {
	pub := newMockPublisher()
	f := NewMessageHandlerFactory(pub, newCommandTestWorld(t))

	fn, err := f.Create()
	if err != nil {
		t.Fatalf("creating handler: %v", err)
	}

	err = fn(context.Background(), &CommandContext{
		Actor: &mockActor{id: "sess-alice", playerId: "alice", name: "Alice"},
		Config: map[string]string{
			"scope":             "room",
			"recipient_message": `Alice says, "hi"`,
			"sender_message":    `You say, "hi"`,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := pub.rooms["square"]
	if len(got) != 1 {
		t.Fatalf("published %d room messages, expected 1", len(got))
	}
	if got[0].env.Type != message.TypeBroadcast {
		t.Errorf("type = %q, expected broadcast", got[0].env.Type)
	}
	if got[0].env.Message != `Alice says, "hi"` {
		t.Errorf("message = %q", got[0].env.Message)
	}
	if got[0].env.Sender != "Alice" {
		t.Errorf("sender = %q, expected Alice", got[0].env.Sender)
	}
	if got[0].exclude != "sess-alice" {
		t.Errorf("exclude = %q, expected sess-alice", got[0].exclude)
	}

	echoes := pub.players["alice"]
	if len(echoes) != 1 {
		t.Fatalf("published %d echoes, expected 1", len(echoes))
	}
	if echoes[0].Type != message.TypeCommandResult {
		t.Errorf("echo type = %q, expected command_result", echoes[0].Type)
	}
	if echoes[0].Message != `You say, "hi"` {
		t.Errorf("echo = %q", echoes[0].Message)
	}

	// Broadcast goes out before the sender's echo
	if len(pub.calls) != 2 || pub.calls[0] != "room:square" || pub.calls[1] != "player:alice" {
		t.Errorf("call order = %v", pub.calls)
	}
}

func TestMessageHandlerFactory_ZoneScope(t *testing.T) {
	pub := newMockPublisher()
	f := NewMessageHandlerFactory(pub, newCommandTestWorld(t))

	fn, err := f.Create()
	if err != nil {
		t.Fatalf("creating handler: %v", err)
	}

	err = fn(context.Background(), &CommandContext{
		Actor: &mockActor{id: "sess-cara", playerId: "cara", name: "Cara"},
		Config: map[string]string{
			"scope":             "zone",
			"recipient_message": "Cara shouts: oi!",
			"sender_message":    "You shout: oi!",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := pub.zones["town"]
	if len(got) != 1 {
		t.Fatalf("published %d zone messages, expected 1", len(got))
	}
	if got[0].env.Type != message.TypeZoneBroadcast {
		t.Errorf("type = %q, expected zone_broadcast", got[0].env.Type)
	}
	if got[0].exclude != "sess-cara" {
		t.Errorf("exclude = %q, expected sess-cara", got[0].exclude)
	}
}

func TestMessageHandlerFactory_TypeOverride(t *testing.T) {
	pub := newMockPublisher()
	f := NewMessageHandlerFactory(pub, newCommandTestWorld(t))

	fn, err := f.Create()
	if err != nil {
		t.Fatalf("creating handler: %v", err)
	}

	err = fn(context.Background(), &CommandContext{
		Actor: &mockActor{id: "sess-cara", playerId: "cara", name: "Cara"},
		Config: map[string]string{
			"scope":             "zone",
			"type":              "shout",
			"recipient_message": "Cara shouts: oi!",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := pub.zones["town"]
	if len(got) != 1 {
		t.Fatalf("published %d zone messages, expected 1", len(got))
	}
	if got[0].env.Type != message.TypeShout {
		t.Errorf("type = %q, expected shout", got[0].env.Type)
	}
}

func TestMessageHandlerFactory_IncludeSender(t *testing.T) {
	pub := newMockPublisher()
	f := NewMessageHandlerFactory(pub, newCommandTestWorld(t))

	fn, err := f.Create()
	if err != nil {
		t.Fatalf("creating handler: %v", err)
	}

	err = fn(context.Background(), &CommandContext{
		Actor: &mockActor{id: "sess-alice", playerId: "alice", name: "Alice"},
		Config: map[string]string{
			"scope":             "room",
			"recipient_message": "Alice waves.",
			"exclude_sender":    "false",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := pub.rooms["square"]
	if len(got) != 1 {
		t.Fatalf("published %d room messages, expected 1", len(got))
	}
	if got[0].exclude != "" {
		t.Errorf("exclude = %q, expected no exclusion", got[0].exclude)
	}
}

func TestMessageHandlerFactory_GlobalScope(t *testing.T) {
	pub := newMockPublisher()
	f := NewMessageHandlerFactory(pub, newCommandTestWorld(t))

	fn, err := f.Create()
	if err != nil {
		t.Fatalf("creating handler: %v", err)
	}

	// Global chat has no echo: the sender hears their own message through
	// the same fan-out as everyone else.
	err = fn(context.Background(), &CommandContext{
		Actor: &mockActor{id: "sess-dan", playerId: "dan", name: "Dan"},
		Config: map[string]string{
			"scope":             "global",
			"recipient_message": "[Global] Dan: anyone around?",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pub.global) != 1 {
		t.Fatalf("published %d global messages, expected 1", len(pub.global))
	}
	if pub.global[0].Type != message.TypeGlobal {
		t.Errorf("type = %q, expected global", pub.global[0].Type)
	}
	if len(pub.players) != 0 {
		t.Errorf("global chat should not publish a separate echo")
	}
}

func TestMessageHandlerFactory_TargetScope(t *testing.T) {
	pub := newMockPublisher()
	f := NewMessageHandlerFactory(pub, newCommandTestWorld(t))

	fn, err := f.Create()
	if err != nil {
		t.Fatalf("creating handler: %v", err)
	}

	err = fn(context.Background(), &CommandContext{
		Actor: &mockActor{id: "sess-alice", playerId: "alice", name: "Alice"},
		Config: map[string]string{
			"scope":             "target",
			"recipient_message": "Alice whispers to you: psst",
			"sender_message":    "You whisper to Bob: psst",
		},
		Targets: map[string]*TargetRef{
			"target": {Player: &PlayerRef{Id: "bob", Name: "Bob"}},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := pub.players["bob"]
	if len(got) != 1 {
		t.Fatalf("target received %d messages, expected 1", len(got))
	}
	if got[0].Type != message.TypeWhisper {
		t.Errorf("type = %q, expected whisper", got[0].Type)
	}
	if got[0].Message != "Alice whispers to you: psst" {
		t.Errorf("message = %q", got[0].Message)
	}

	echoes := pub.players["alice"]
	if len(echoes) != 1 || echoes[0].Message != "You whisper to Bob: psst" {
		t.Errorf("echo = %v", echoes)
	}

	// Nothing reaches any shared group
	if len(pub.rooms) != 0 || len(pub.zones) != 0 || len(pub.global) != 0 {
		t.Errorf("whisper leaked to a shared group")
	}
}

func TestMessageHandlerFactory_TargetMissing(t *testing.T) {
	pub := newMockPublisher()
	f := NewMessageHandlerFactory(pub, newCommandTestWorld(t))

	fn, err := f.Create()
	if err != nil {
		t.Fatalf("creating handler: %v", err)
	}

	err = fn(context.Background(), &CommandContext{
		Actor: &mockActor{id: "sess-alice", playerId: "alice", name: "Alice"},
		Config: map[string]string{
			"scope":             "target",
			"recipient_message": "psst",
		},
	})
	if err == nil {
		t.Fatalf("expected error for unresolved target")
	}
	var userErr *UserError
	if errors.As(err, &userErr) {
		t.Errorf("misconfiguration should not be a user error, got %v", userErr)
	}
}

func TestMessageHandlerFactory_NoLocation(t *testing.T) {
	tests := map[string]struct {
		config map[string]string
		expMsg string
	}{
		"custom message": {
			config: map[string]string{
				"scope":             "room",
				"recipient_message": "Dan waves.",
				"no_location":       "You are nowhere and your voice echoes into the void.",
			},
			expMsg: "You are nowhere and your voice echoes into the void.",
		},
		"default message": {
			config: map[string]string{
				"scope":             "zone",
				"recipient_message": "Dan shouts: hello?",
			},
			expMsg: "You are nowhere.",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			pub := newMockPublisher()
			f := NewMessageHandlerFactory(pub, newCommandTestWorld(t))

			fn, err := f.Create()
			if err != nil {
				t.Fatalf("creating handler: %v", err)
			}

			err = fn(context.Background(), &CommandContext{
				Actor:  &mockActor{id: "sess-dan", playerId: "dan", name: "Dan"},
				Config: tt.config,
			})
			if err == nil {
				t.Fatalf("expected error, got nil")
			}

			var userErr *UserError
			if !errors.As(err, &userErr) {
				t.Fatalf("expected UserError, got %T: %v", err, err)
			}
			if userErr.Kind != KindNoLocation {
				t.Errorf("kind = %v, expected no_location", userErr.Kind)
			}
			if userErr.Message != tt.expMsg {
				t.Errorf("message = %q, expected %q", userErr.Message, tt.expMsg)
			}

			if len(pub.calls) != 0 {
				t.Errorf("nothing should be published, got %v", pub.calls)
			}
		})
	}
}
