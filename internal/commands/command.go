package commands

import (
	"fmt"
	"strings"
)

// InputType represents the type of a command input parameter.
type InputType string

const (
	InputTypeString InputType = "string" // Text input (single word if rest=false, multi-word if rest=true)
	InputTypeNumber InputType = "number" // Integer
)

// InputSpec defines an input parameter that a command accepts from user input.
type InputSpec struct {
	Name     string    `json:"name"`
	Type     InputType `json:"type"`
	Required bool      `json:"required"`
	Rest     bool      `json:"rest"`              // If true, captures all remaining input
	Missing  string    `json:"missing,omitempty"` // Override for the error shown when a required input is absent
}

// TargetSpec names another player to be resolved at runtime from one of the
// command's inputs. Resolved targets are available to templates as
// .Targets.<name>.
type TargetSpec struct {
	Name  string `json:"name"`
	Input string `json:"input"` // Which input provides the name to resolve
}

// Command defines a command loaded from JSON.
type Command struct {
	Handler     string         `json:"handler"`
	Aliases     []string       `json:"aliases,omitempty"`
	Priority    int            `json:"priority,omitempty"` // Breaks ties on prefix matches
	Category    string         `json:"category,omitempty"`
	Description string         `json:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty"`  // Config passed to handler, may contain templates
	Targets     []TargetSpec   `json:"targets,omitempty"` // Targets to resolve at runtime
	Inputs      []InputSpec    `json:"inputs,omitempty"`  // User input parameters
}

func (c *Command) Validate() error {
	if c.Handler == "" {
		return fmt.Errorf("command handler not set")
	}

	for _, alias := range c.Aliases {
		if alias == "" {
			return fmt.Errorf("aliases must not be empty")
		}
		if strings.ContainsAny(alias, " \t") {
			return fmt.Errorf("alias %q: aliases must be a single word", alias)
		}
	}

	for i, input := range c.Inputs {
		if input.Name == "" {
			return fmt.Errorf("input %d: name is required", i)
		}
		if input.Type == "" {
			return fmt.Errorf("input %q: type is required", input.Name)
		}
		switch input.Type {
		case InputTypeString, InputTypeNumber:
			// Valid
		default:
			return fmt.Errorf("input %q: unknown type %q", input.Name, input.Type)
		}
		// Only the last input can have rest=true
		if input.Rest && i != len(c.Inputs)-1 {
			return fmt.Errorf("input %q: only the last input can have rest=true", input.Name)
		}
	}

	// Build set of valid input names for target validation
	validInputs := make(map[string]bool)
	for _, input := range c.Inputs {
		validInputs[input.Name] = true
	}

	for i, target := range c.Targets {
		if target.Name == "" {
			return fmt.Errorf("target %d: name is required", i)
		}
		if target.Input == "" {
			return fmt.Errorf("target %q: input is required", target.Name)
		}
		if !validInputs[target.Input] {
			return fmt.Errorf("target %q: input %q does not exist in inputs", target.Name, target.Input)
		}
	}

	return nil
}
