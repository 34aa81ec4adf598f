package groups

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pixil98/go-mudlink/internal/message"
	"github.com/pixil98/go-mudlink/internal/storage"
)

// Member receives envelopes fanned out to groups it has joined. Deliver must
// not block; sessions enqueue and return.
type Member interface {
	ID() string
	Deliver(env *message.Envelope)
}

// frame is the wire form of a published envelope. Exclusion travels with the
// message and is evaluated at delivery, so it works across processes.
type frame struct {
	Exclude  string            `json:"exclude,omitempty"`
	Envelope *message.Envelope `json:"envelope"`
}

// Recorder counts publishes for operational visibility.
type Recorder interface {
	EnvelopePublished()
}

// Registry tracks which local members belong to which groups and fans
// published envelopes out to them. All publishes go through the broker, even
// to members in the same process, so delivery behaves identically whether a
// group spans one process or several.
type Registry struct {
	broker Broker
	rec    Recorder

	mu       sync.Mutex
	members  map[Key]map[string]Member
	byMember map[string]map[Key]struct{}
	unsubs   map[Key]func()
}

func NewRegistry(broker Broker, opts ...RegistryOpt) *Registry {
	r := &Registry{
		broker:   broker,
		members:  map[Key]map[string]Member{},
		byMember: map[string]map[Key]struct{}{},
		unsubs:   map[Key]func(){},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Join adds a member to a group. The first local member of a group opens the
// broker subscription carrying its traffic.
func (r *Registry) Join(m Member, key Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.members[key] == nil {
		unsub, err := r.broker.Subscribe(key.subject(), func(data []byte) {
			r.deliver(key, data)
		})
		if err != nil {
			return fmt.Errorf("subscribing to group %s: %w", key, err)
		}
		r.members[key] = map[string]Member{}
		r.unsubs[key] = unsub
	}

	r.members[key][m.ID()] = m

	if r.byMember[m.ID()] == nil {
		r.byMember[m.ID()] = map[Key]struct{}{}
	}
	r.byMember[m.ID()][key] = struct{}{}

	return nil
}

// Leave removes a member from a group. Leaving a group the member never
// joined is a no-op.
func (r *Registry) Leave(m Member, key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(m.ID(), key)
}

// LeaveAll removes a member from every group it has joined. Safe to call on
// a member that has already fully left.
func (r *Registry) LeaveAll(m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]Key, 0, len(r.byMember[m.ID()]))
	for key := range r.byMember[m.ID()] {
		keys = append(keys, key)
	}
	for _, key := range keys {
		r.leaveLocked(m.ID(), key)
	}
}

func (r *Registry) leaveLocked(id string, key Key) {
	members := r.members[key]
	if members == nil {
		return
	}
	if _, ok := members[id]; !ok {
		return
	}

	delete(members, id)
	delete(r.byMember[id], key)
	if len(r.byMember[id]) == 0 {
		delete(r.byMember, id)
	}

	// Last local member out closes the subscription
	if len(members) == 0 {
		delete(r.members, key)
		if unsub := r.unsubs[key]; unsub != nil {
			unsub()
		}
		delete(r.unsubs, key)
	}
}

// Publish sends an envelope to every member of a group. excludeID names a
// member to skip, for "everyone in the room except me" semantics; empty
// means no exclusion. Publishing to a group with no members is a no-op.
func (r *Registry) Publish(key Key, env *message.Envelope, excludeID string) error {
	payload, err := json.Marshal(frame{Exclude: excludeID, Envelope: env})
	if err != nil {
		return fmt.Errorf("marshalling envelope: %w", err)
	}
	if r.rec != nil {
		r.rec.EnvelopePublished()
	}
	return r.broker.Publish(key.subject(), payload)
}

func (r *Registry) PublishToPlayer(id storage.Identifier, env *message.Envelope) error {
	return r.Publish(PlayerKey(id), env, "")
}

func (r *Registry) PublishToRoom(id storage.Identifier, env *message.Envelope, excludeID string) error {
	return r.Publish(RoomKey(id), env, excludeID)
}

func (r *Registry) PublishToZone(id storage.Identifier, env *message.Envelope, excludeID string) error {
	return r.Publish(ZoneKey(id), env, excludeID)
}

func (r *Registry) PublishGlobal(env *message.Envelope) error {
	return r.Publish(KeyGlobal, env, "")
}

// GroupCount reports the number of groups with at least one local member.
func (r *Registry) GroupCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// deliver fans one wire frame out to the group's local members. The member
// set is snapshotted before delivery so a handler that joins, leaves, or
// publishes during fan-out never observes a mutating set.
func (r *Registry) deliver(key Key, data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		slog.Warn("dropping malformed group frame", "group", string(key), "error", err)
		return
	}
	if f.Envelope == nil {
		slog.Warn("dropping group frame without envelope", "group", string(key))
		return
	}

	r.mu.Lock()
	snapshot := make([]Member, 0, len(r.members[key]))
	for id, m := range r.members[key] {
		if id == f.Exclude {
			continue
		}
		snapshot = append(snapshot, m)
	}
	r.mu.Unlock()

	for _, m := range snapshot {
		m.Deliver(f.Envelope)
	}
}
