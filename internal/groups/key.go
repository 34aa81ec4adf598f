package groups

import (
	"fmt"

	"github.com/pixil98/go-mudlink/internal/storage"
)

// Key identifies a broadcast group. The key doubles as the broker subject
// carrying the group's traffic, so every process subscribed to a key sees
// the same stream.
type Key string

// KeyGlobal is the well-known group every session joins at connect.
const KeyGlobal Key = "global-chat"

func RoomKey(id storage.Identifier) Key {
	return Key(fmt.Sprintf("room-%s", id))
}

func ZoneKey(id storage.Identifier) Key {
	return Key(fmt.Sprintf("zone-%s", id))
}

func PlayerKey(id storage.Identifier) Key {
	return Key(fmt.Sprintf("player-%s", id))
}

func (k Key) subject() string {
	return string(k)
}
