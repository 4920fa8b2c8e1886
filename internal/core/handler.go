package core

import "context"

// Handler validates and processes one category of uploaded file.
type Handler interface {
	// Descriptor advertises the handler's formats and actions.
	Descriptor() HandlerDescriptor

	// CanHandle reports whether the handler is competent for the payload.
	CanHandle(p Payload) bool

	// IsValid checks the structure of the uploaded files. It returns an
	// *InvalidInputError describing the failure rather than (false, nil).
	IsValid(ctx context.Context, files FileSet, user User, opts ValidateOptions) (bool, error)

	// Actions is the handler's action table.
	Actions() ActionTable
}

// MetadataHandler is a Handler for auxiliary documents (styles, metadata)
// applied to an existing dataset.
type MetadataHandler interface {
	Handler
	HandleMetadataResource(ctx context.Context, exec *ExecutionContext, dataset *Resource, original DataHandler) error
}

// DataHandler is the handler responsible for a dataset's primary data. When
// it supports inline style handling, metadata handlers hand styles to it
// instead of updating the resource themselves.
type DataHandler interface {
	ID() string
	SupportsInlineStyleHandling() bool
	HandleStyleFile(ctx context.Context, dataset *Resource, exec *ExecutionContext) error
}

// ValidateOptions tunes IsValid.
type ValidateOptions struct {
	MaxBytes int64 // 0 means DefaultMaxDocumentBytes
}

// StepFunc is a handler-local action implementation. last is the outcome of
// the import's most recent forward action; it is zero for forward actions.
type StepFunc func(ctx context.Context, exec *ExecutionContext, last Outcome) (Outcome, error)

// Step pairs a local implementation with the external task it hands off to.
type Step struct {
	Run    StepFunc
	TaskID string
}

// ActionTable maps each supported action to its step.
type ActionTable map[Action]Step

// Lookup returns the step for a, if supported.
func (t ActionTable) Lookup(a Action) (Step, bool) {
	s, ok := t[a]
	if !ok || s.Run == nil {
		return Step{}, false
	}
	return s, true
}

// Actions returns the supported actions in declaration order.
func (t ActionTable) Actions() []Action {
	var out []Action
	for _, a := range AllActions() {
		if _, ok := t[a]; ok {
			out = append(out, a)
		}
	}
	return out
}
