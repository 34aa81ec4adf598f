package storage

import (
	"encoding/json"
	"fmt"
)

// ExtensionState is a bag of per-record state owned by other components,
// keyed by component name and persisted with the record. Values stay as raw
// JSON until a component asks for them, so the storage layer never learns
// their shapes. Chat preferences on a player record live here.
type ExtensionState map[string]json.RawMessage

// Set marshals v and stores it under key, replacing any previous value.
func (e *ExtensionState) Set(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal extension %q: %w", key, err)
	}

	if *e == nil {
		*e = ExtensionState{}
	}
	(*e)[key] = json.RawMessage(b)

	return nil
}

// Get unmarshals the value stored under key into out. A key that was never
// set reports found=false with no error and leaves out untouched.
func (e ExtensionState) Get(key string, out any) (bool, error) {
	raw, ok := e[key]
	if !ok || len(raw) == 0 {
		return false, nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("unmarshal extension %q: %w", key, err)
	}
	return true, nil
}

// Delete removes the value stored under key, if any.
func (e ExtensionState) Delete(key string) {
	delete(e, key)
}
