// Package tasks submits handler task ids to an execution backend.
package tasks

import (
	"github.com/JonMunkholm/geoimport/internal/core"
)

// Input is the serializable view of an import handed to a task.
type Input struct {
	ImportID   string            `json:"import_id"`
	HandlerID  string            `json:"handler_id"`
	Action     string            `json:"action"`
	ResourceID string            `json:"resource_id,omitempty"`
	Files      map[string]string `json:"files"`
	User       string            `json:"user,omitempty"`
}

// NewInput flattens exec for a task backend.
func NewInput(exec *core.ExecutionContext) Input {
	in := Input{
		ImportID:  exec.ID.String(),
		HandlerID: exec.HandlerID,
		Action:    exec.Action.String(),
		Files:     map[string]string{},
		User:      exec.User.ID,
	}
	if exec.ResourceID != nil {
		in.ResourceID = exec.ResourceID.String()
	}
	for k, v := range exec.Files() {
		in.Files[k] = v
	}
	return in
}
