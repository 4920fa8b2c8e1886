// Package core provides the business logic for style and metadata imports.
//
// This package holds the domain logic independent of transport and storage.
// Web handlers, workers and tests drive it through the same types.
//
// # Architecture
//
//   - Registry: upload handlers in priority order, plus the dataset
//     data-handlers that may take over style handling.
//   - Handler: validates one category of file and exposes an ActionTable.
//   - Orchestrator: validates uploads and dispatches actions, tracking each
//     import's state.
//   - AssetStore: creates assets and keeps at most one "original" link per
//     resource.
//
// # Handler Registration
//
// Handlers are registered explicitly at startup with a priority. Resolution
// is first match in ascending priority; equal priorities keep registration
// order:
//
//	reg := core.NewRegistry(fallback)
//	reg.Register(handler.NewSLD(deps), 10)
//	reg.Register(handler.NewXML(deps), 20)
//
// # Import Flow
//
//  1. [Orchestrator.Prepare] resolves the handler and calls IsValid
//  2. [Orchestrator.Dispatch] runs the action's step from the handler's table
//  3. The step updates the resource, creates an asset and calls
//     [AssetStore.Assign], then submits its task id to the TaskRunner
//  4. [Orchestrator.Rollback] runs the compensating step; repeating it is a no-op
//
// # Original Links
//
// Assign holds the per-resource lock from a [Locker] around the
// lookup-then-create-or-update sequence, so concurrent assignments to one
// resource converge on a single link.
//
// # Error Handling
//
// Failures are typed: [InvalidInputError], [UnsupportedActionError],
// [NotFoundError] and [PersistenceError]. [MapError] turns them into coded
// user messages.
package core
