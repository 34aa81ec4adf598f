package commands

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/pixil98/go-errors"

	"github.com/pixil98/go-mudlink/internal/message"
	"github.com/pixil98/go-mudlink/internal/storage"
)

// Actor is the session-side identity a command runs as.
type Actor interface {
	// ID returns the session id, used to exclude the actor from its own
	// room and zone broadcasts.
	ID() string
	PlayerID() storage.Identifier
	PlayerName() string
	// Quit asks the session to close after the current command completes.
	Quit()
}

// PlayerRef identifies a player in template data and resolved targets.
type PlayerRef struct {
	Id   storage.Identifier
	Name string
}

// TargetRef is a resolved command target.
type TargetRef struct {
	Player *PlayerRef
}

// ParsedInput represents a validated and parsed command input.
type ParsedInput struct {
	Spec  *InputSpec
	Raw   string // Original player input
	Value any    // Parsed value: int for number, string for string
}

// CommandContext carries everything a compiled command needs at run time.
// Config has been template-expanded and Inputs escaped by the dispatcher.
type CommandContext struct {
	Actor   Actor
	Config  map[string]string
	Inputs  map[string]any
	Targets map[string]*TargetRef
}

// CommandFunc is the signature for compiled command functions.
type CommandFunc func(ctx context.Context, cmdCtx *CommandContext) error

// HandlerSpec declares the config keys and targets a handler understands,
// letting the compiler reject command definitions that would fail at run
// time.
type HandlerSpec struct {
	Config  []ConfigRequirement
	Targets []TargetRequirement
}

type ConfigRequirement struct {
	Name     string
	Required bool
}

type TargetRequirement struct {
	Name     string
	Required bool
}

// HandlerFactory creates CommandFuncs from command configurations.
type HandlerFactory interface {
	// Spec declares the factory's config and target surface. A nil spec
	// skips compile-time shape checking.
	Spec() *HandlerSpec
	// ValidateConfig validates factory-specific config constraints the
	// spec cannot express.
	ValidateConfig(config map[string]any) error
	// Create creates the CommandFunc.
	Create() (CommandFunc, error)
}

// Publisher provides the ability to publish envelopes into the group fan-out.
type Publisher interface {
	PublishToPlayer(id storage.Identifier, env *message.Envelope) error
	PublishToRoom(id storage.Identifier, env *message.Envelope, excludeSession string) error
	PublishToZone(id storage.Identifier, env *message.Envelope, excludeSession string) error
	PublishGlobal(env *message.Envelope) error
}

// Roster is the player lookup targets resolve against.
type Roster interface {
	FindPlayer(name string) (id storage.Identifier, display string, found, online bool)
}

// compiledCommand holds a command that's been validated and compiled.
// Aliases share the same instance with their primary name.
type compiledCommand struct {
	cmd *Command
	fn  CommandFunc
}

type Handler struct {
	roster    Roster
	factories map[string]HandlerFactory
	compiled  map[storage.Identifier]*compiledCommand
}

func NewHandler(roster Roster) *Handler {
	return &Handler{
		roster:    roster,
		factories: make(map[string]HandlerFactory),
		compiled:  make(map[storage.Identifier]*compiledCommand),
	}
}

// RegisterFactory registers a handler factory by name.
// The name must match the "handler" field in command JSON definitions.
func (h *Handler) RegisterFactory(name string, factory HandlerFactory) error {
	if name == "" {
		return fmt.Errorf("handler name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("handler factory cannot be nil")
	}
	if _, exists := h.factories[name]; exists {
		return fmt.Errorf("handler factory %q already registered", name)
	}
	h.factories[name] = factory
	return nil
}

// CompileAll compiles every command in the store, in a stable order so
// conflict errors are reproducible. Call after all handler factories have
// been registered.
func (h *Handler) CompileAll(store storage.Storer[*Command]) error {
	all := store.GetAll()

	ids := make([]storage.Identifier, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	el := errors.NewErrorList()
	for _, id := range ids {
		if err := h.compile(id, all[id]); err != nil {
			el.Add(fmt.Errorf("command %q: %w", id, err))
		}
	}
	return el.Err()
}

func (h *Handler) compile(id storage.Identifier, cmd *Command) error {
	factory, ok := h.factories[cmd.Handler]
	if !ok {
		return fmt.Errorf("unknown handler %q", cmd.Handler)
	}

	if err := h.validateSpec(cmd, factory.Spec()); err != nil {
		return err
	}

	if err := factory.ValidateConfig(cmd.Config); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	fn, err := factory.Create()
	if err != nil {
		return fmt.Errorf("creating handler %q: %w", cmd.Handler, err)
	}

	cc := &compiledCommand{cmd: cmd, fn: fn}

	key := storage.Identifier(strings.ToLower(id.String()))
	if _, exists := h.compiled[key]; exists {
		return fmt.Errorf("command %q conflicts with an existing command or alias", key)
	}
	h.compiled[key] = cc

	for _, alias := range cmd.Aliases {
		akey := storage.Identifier(strings.ToLower(alias))
		if _, exists := h.compiled[akey]; exists {
			return fmt.Errorf("alias %q conflicts with an existing command or alias", akey)
		}
		h.compiled[akey] = cc
	}

	return nil
}

// validateSpec checks a command definition against the shape its handler
// declared.
func (h *Handler) validateSpec(cmd *Command, spec *HandlerSpec) error {
	if spec == nil {
		return nil
	}

	declared := make(map[string]bool, len(cmd.Targets))
	for _, t := range cmd.Targets {
		declared[t.Name] = true
	}

	allowedTargets := make(map[string]bool, len(spec.Targets))
	for _, req := range spec.Targets {
		allowedTargets[req.Name] = true
		if req.Required && !declared[req.Name] {
			return fmt.Errorf("missing required target %q", req.Name)
		}
	}
	for _, t := range cmd.Targets {
		if !allowedTargets[t.Name] {
			return fmt.Errorf("unknown target %q", t.Name)
		}
	}

	allowedConfig := make(map[string]bool, len(spec.Config))
	for _, req := range spec.Config {
		allowedConfig[req.Name] = true
		if req.Required {
			if _, ok := cmd.Config[req.Name]; !ok {
				return fmt.Errorf("missing required config key %q", req.Name)
			}
		}
	}
	for key := range cmd.Config {
		if !allowedConfig[key] {
			return fmt.Errorf("unknown config key %q", key)
		}
	}

	return nil
}

// Dispatch parses one line of player input and runs the matching command.
// UserErrors from any stage are meant for the invoking session only.
func (h *Handler) Dispatch(ctx context.Context, actor Actor, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NewUserError("What do you want to do?")
	}

	verb, rest := splitWord(raw)

	cc, err := h.resolve(verb)
	if err != nil {
		return err
	}

	parsed, err := h.parseInputs(cc.cmd.Inputs, rest)
	if err != nil {
		return err
	}

	byName := make(map[string]*ParsedInput, len(parsed))
	for i := range parsed {
		byName[parsed[i].Spec.Name] = &parsed[i]
	}

	targets, err := h.resolveTargets(cc.cmd.Targets, byName)
	if err != nil {
		return err
	}

	// Neutralize markup before input values reach message templates.
	// Target resolution above matches against the raw text.
	inputs := make(map[string]any, len(parsed))
	for _, in := range parsed {
		if s, ok := in.Value.(string); ok {
			inputs[in.Spec.Name] = html.EscapeString(s)
			continue
		}
		inputs[in.Spec.Name] = in.Value
	}

	config, err := h.expandConfig(cc.cmd.Config, actor, targets, inputs)
	if err != nil {
		return err
	}

	return cc.fn(ctx, &CommandContext{
		Actor:   actor,
		Config:  config,
		Inputs:  inputs,
		Targets: targets,
	})
}

// resolve finds the command for a typed verb: exact match first, then a
// unique prefix match, with Priority breaking ties.
func (h *Handler) resolve(input string) (*compiledCommand, error) {
	key := storage.Identifier(strings.ToLower(input))

	if cc, ok := h.compiled[key]; ok {
		return cc, nil
	}

	// A command and its aliases share one compiledCommand, so collect one
	// display key per command.
	prefix := key.String()
	byCmd := make(map[*compiledCommand]storage.Identifier)
	for id, cc := range h.compiled {
		if !strings.HasPrefix(id.String(), prefix) {
			continue
		}
		if prev, ok := byCmd[cc]; !ok || id < prev {
			byCmd[cc] = id
		}
	}

	if len(byCmd) == 0 {
		return nil, &UserError{
			Kind:    KindUnknownCommand,
			Message: fmt.Sprintf("Command %q is unknown.", input),
		}
	}

	best := 0
	first := true
	for cc := range byCmd {
		if first || cc.cmd.Priority > best {
			best = cc.cmd.Priority
			first = false
		}
	}

	var match *compiledCommand
	var names []string
	for cc, id := range byCmd {
		if cc.cmd.Priority == best {
			match = cc
			names = append(names, id.String())
		}
	}

	if len(names) == 1 {
		return match, nil
	}

	sort.Strings(names)
	return nil, NewUserError(fmt.Sprintf("Did you mean: %s?", strings.Join(names, ", ")))
}

// splitWord splits the first whitespace-delimited word off the front of
// input, returning it and the remainder with leading whitespace trimmed.
// Interior whitespace in the remainder is preserved.
func splitWord(input string) (word, rest string) {
	if i := strings.IndexFunc(input, unicode.IsSpace); i >= 0 {
		return input[:i], strings.TrimLeftFunc(input[i:], unicode.IsSpace)
	}
	return input, ""
}

// parseInputs matches the argument text against the command's input specs.
// Non-rest inputs each consume one word; a Rest input takes the remainder
// verbatim, whitespace and all.
func (h *Handler) parseInputs(specs []InputSpec, args string) ([]ParsedInput, error) {
	required := 0
	for _, s := range specs {
		if s.Required {
			required++
		}
	}

	parsed := make([]ParsedInput, 0, len(specs))
	taken := 0

	for i := range specs {
		spec := &specs[i]

		if args == "" {
			if !spec.Required {
				continue
			}
			if spec.Missing != "" {
				return nil, NewUserError(spec.Missing)
			}
			return nil, NewUserError(fmt.Sprintf("Expected at least %d argument(s), got %d.", required, taken))
		}

		var raw string
		if spec.Rest {
			raw, args = args, ""
		} else {
			raw, args = splitWord(args)
		}
		taken++

		value, err := h.parseValue(spec.Type, raw)
		if err != nil {
			return nil, err
		}

		parsed = append(parsed, ParsedInput{Spec: spec, Raw: raw, Value: value})
	}

	if args != "" {
		got := taken + len(strings.Fields(args))
		return nil, NewUserError(fmt.Sprintf("Expected at most %d argument(s), got %d.", len(specs), got))
	}

	return parsed, nil
}

func (h *Handler) parseValue(t InputType, raw string) (any, error) {
	switch t {
	case InputTypeString:
		return raw, nil
	case InputTypeNumber:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, NewUserError(fmt.Sprintf("%q is not a valid number.", raw))
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unknown parameter type %q", t)
	}
}

// resolveTargets looks up each declared target by the raw value of its
// input. A target whose input was omitted resolves to nothing; a name that
// matches no online player is a user error.
func (h *Handler) resolveTargets(specs []TargetSpec, inputs map[string]*ParsedInput) (map[string]*TargetRef, error) {
	targets := make(map[string]*TargetRef, len(specs))

	for _, spec := range specs {
		in, ok := inputs[spec.Input]
		if !ok {
			continue
		}

		name := in.Raw
		id, display, found, online := h.roster.FindPlayer(name)
		if !found {
			return nil, &UserError{
				Kind:    KindTargetNotFound,
				Message: fmt.Sprintf("Player '%s' does not exist.", name),
			}
		}
		if !online {
			return nil, &UserError{
				Kind:    KindTargetOffline,
				Message: fmt.Sprintf("Player '%s' is not online.", name),
			}
		}

		targets[spec.Name] = &TargetRef{Player: &PlayerRef{Id: id, Name: display}}
	}

	return targets, nil
}

// expandConfig runs each config value through the template engine with the
// actor, resolved targets, and parsed inputs in scope. Values without
// template markers pass through untouched.
func (h *Handler) expandConfig(config map[string]any, actor Actor, targets map[string]*TargetRef, inputs map[string]any) (map[string]string, error) {
	data := &templateContext{
		Actor:   &PlayerRef{Id: actor.PlayerID(), Name: actor.PlayerName()},
		Targets: targets,
		Inputs:  inputs,
	}

	out := make(map[string]string, len(config))
	for key, val := range config {
		s, ok := val.(string)
		if !ok {
			out[key] = fmt.Sprintf("%v", val)
			continue
		}
		if !strings.Contains(s, "{{") {
			out[key] = s
			continue
		}

		expanded, err := ExpandTemplate(s, data)
		if err != nil {
			return nil, fmt.Errorf("expanding config %q: %w", key, err)
		}
		out[key] = expanded
	}

	return out, nil
}
