package core

import (
	"fmt"
	"strings"
)

// Action is a named operation a handler can run against a resource.
type Action int

const (
	ActionUnknown Action = iota
	ActionImport
	ActionStyleUpload
	ActionMetadataUpload
	ActionRollback
)

var actionNames = map[Action]string{
	ActionImport:         "import",
	ActionStyleUpload:    "resource_style_upload",
	ActionMetadataUpload: "resource_metadata_upload",
	ActionRollback:       "rollback",
}

// AllActions lists every known action in declaration order.
func AllActions() []Action {
	return []Action{ActionImport, ActionStyleUpload, ActionMetadataUpload, ActionRollback}
}

// String returns the wire name of the action.
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Compensating reports whether the action undoes a previous forward action.
func (a Action) Compensating() bool {
	return a == ActionRollback
}

// ParseAction converts a wire name to an Action. Matching ignores case and
// surrounding whitespace, so "RESOURCE_STYLE_UPLOAD" and "resource_style_upload"
// are the same action.
func ParseAction(s string) (Action, bool) {
	s = strings.TrimSpace(s)
	for a, name := range actionNames {
		if strings.EqualFold(name, s) {
			return a, true
		}
	}
	return ActionUnknown, false
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	if _, ok := actionNames[a]; !ok {
		return nil, fmt.Errorf("unknown action %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(b []byte) error {
	parsed, ok := ParseAction(string(b))
	if !ok {
		return fmt.Errorf("unknown action %q", string(b))
	}
	*a = parsed
	return nil
}
