package storage

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"

	"github.com/pixil98/go-errors"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9-]*$`)

type ValidatingSpec interface {
	Validate() error
}

type Identifier string

func (id Identifier) String() string {
	return string(id)
}

type Asset[T ValidatingSpec] struct {
	Version    uint       `json:"version"`
	Identifier Identifier `json:"id"`
	Spec       T          `json:"spec"`
}

func (a *Asset[T]) Id() Identifier {
	return a.Identifier
}

func (a *Asset[T]) Validate() error {
	el := errors.NewErrorList()

	if a.Version == 0 {
		el.Add(fmt.Errorf("version must be set"))
	}

	if a.Identifier == "" {
		el.Add(fmt.Errorf("id must be set"))
	}

	if !identifierPattern.MatchString(a.Identifier.String()) {
		el.Add(fmt.Errorf("id must be alphanumeric"))
	}

	el.Add(a.Spec.Validate())

	return el.Err()
}

// Ref is a reference from one asset spec to another, stored as the target's
// identifier in JSON and resolved to the live spec after all stores are loaded.
type Ref[T ValidatingSpec] struct {
	key Identifier
	val T
}

func NewRef[T ValidatingSpec](key Identifier) Ref[T] {
	return Ref[T]{key: key}
}

func NewResolvedRef[T ValidatingSpec](key Identifier, val T) Ref[T] {
	return Ref[T]{key: key, val: val}
}

func (r *Ref[T]) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &r.key)
}

func (r Ref[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.key)
}

func (r Ref[T]) Validate() error {
	if r.key == "" {
		var zero T
		return fmt.Errorf("%s identifier is required", reflect.TypeOf(zero).Elem().Name())
	}
	return nil
}

func (r *Ref[T]) Resolve(st Storer[T]) error {
	r.val = st.Get(r.key)
	if reflect.ValueOf(r.val).IsNil() {
		var zero T
		return fmt.Errorf("%s %q not found", reflect.TypeOf(zero).Elem().Name(), r.key)
	}
	return nil
}

func (r Ref[T]) Id() Identifier {
	return r.key
}

func (r Ref[T]) Get() T {
	return r.val
}
