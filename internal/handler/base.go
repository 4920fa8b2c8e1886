// Package handler holds the concrete upload handlers: the SLD style and XML
// metadata handlers, and the dataset data-handlers they hand styles to.
package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/geoimport/internal/core"
	"github.com/JonMunkholm/geoimport/internal/logging"
)

// Task ids handed to the TaskRunner.
const (
	TaskImportResource = "geonode.upload.import_resource"
	TaskRollback       = "geonode.upload.rollback"
)

// Deps are the collaborators shared by the metadata handlers.
type Deps struct {
	Assets    *core.AssetStore
	Repo      core.Repository
	Resources core.ResourceManager
	Runner    core.TaskRunner
	Files     core.FileOpener
	Registry  *core.Registry // supplies data handlers; nil means none
}

// metadataBase implements the import and rollback steps common to every
// document applied to an existing dataset. Concrete handlers embed it and
// set self so the import step can call back into HandleMetadataResource.
type metadataBase struct {
	deps Deps
	self core.MetadataHandler
	kind core.AssetKind
}

// validateDocument opens the base file and checks that it is well-formed markup.
func (b *metadataBase) validateDocument(ctx context.Context, files core.FileSet, opts core.ValidateOptions, message string) (bool, error) {
	ref := files.Get(core.FileKeyBase)
	if ref == "" {
		return false, &core.InvalidInputError{Message: message, Reason: "no file provided"}
	}

	rc, err := b.deps.Files.Open(ctx, ref)
	if err != nil {
		return false, &core.InvalidInputError{Message: message, Reason: err.Error()}
	}
	defer rc.Close()

	if err := core.CheckWellFormed(rc, opts.MaxBytes); err != nil {
		return false, &core.InvalidInputError{Message: message, Reason: err.Error()}
	}
	return true, nil
}

// dataHandler returns the collaborating data handler for dataset.
func (b *metadataBase) dataHandler(dataset *core.Resource) core.DataHandler {
	if b.deps.Registry == nil {
		return Fallback()
	}
	if h := b.deps.Registry.DataHandlerFor(dataset); h != nil {
		return h
	}
	return Fallback()
}

// startImport applies the document to the target dataset (if any), stores
// it as an asset, binds the asset through the original link and submits
// the import task.
func (b *metadataBase) startImport(taskID string) core.StepFunc {
	return func(ctx context.Context, exec *core.ExecutionContext, _ core.Outcome) (core.Outcome, error) {
		log := logging.WithFields(ctx, "import_id", exec.ID, "handler", exec.HandlerID)

		var dataset *core.Resource
		if exec.ResourceID != nil {
			res, err := b.deps.Repo.GetResource(ctx, *exec.ResourceID)
			if err != nil {
				return core.Outcome{}, fmt.Errorf("load dataset: %w", err)
			}
			dataset = res

			original := b.dataHandler(dataset)
			if err := b.self.HandleMetadataResource(ctx, exec, dataset, original); err != nil {
				return core.Outcome{}, err
			}
		}

		asset, err := b.deps.Assets.Create(ctx, b.kind, core.AssetAttributes{
			Title: exec.Input.BaseName(),
			Owner: exec.User.ID,
			Files: uploadedFiles(exec.Files()),
		})
		if err != nil {
			return core.Outcome{}, err
		}

		assignment, err := b.deps.Assets.Assign(ctx, asset, dataset)
		if err != nil {
			return core.Outcome{AssetID: asset.ID}, err
		}

		out := core.Outcome{
			AssetID:         asset.ID,
			LinkID:          assignment.Link.ID,
			LinkCreated:     assignment.Created,
			PreviousAssetID: assignment.PreviousAssetID,
			TaskID:          taskID,
		}
		if err := b.deps.Runner.Submit(ctx, taskID, exec); err != nil {
			return out, err
		}

		log.Info("document imported",
			"asset_id", asset.ID,
			"link_id", assignment.Link.ID,
			"link_created", assignment.Created,
		)
		return out, nil
	}
}

// startRollback undoes the link change recorded by the import and submits
// the rollback task.
func (b *metadataBase) startRollback(taskID string) core.StepFunc {
	return func(ctx context.Context, exec *core.ExecutionContext, last core.Outcome) (core.Outcome, error) {
		out := core.Outcome{
			AssetID: last.AssetID,
			LinkID:  last.LinkID,
			TaskID:  taskID,
		}

		status, err := b.deps.Assets.Revert(ctx, last.Assignment())
		if err != nil {
			return out, fmt.Errorf("revert link: %w", err)
		}
		out.Detail = string(status)

		if err := b.deps.Runner.Submit(ctx, taskID, exec); err != nil {
			return out, err
		}

		logging.WithFields(ctx, "import_id", exec.ID, "handler", exec.HandlerID).
			Info("import rolled back", "link_id", last.LinkID, "detail", out.Detail)
		return out, nil
	}
}

// uploadedFiles lists the file references in a stable order, base file first.
func uploadedFiles(fs core.FileSet) []string {
	var out []string
	if v := fs.Get(core.FileKeyBase); v != "" {
		out = append(out, v)
	}
	for _, k := range []string{core.FileKeySLD, core.FileKeyMetadata} {
		if v := fs.Get(k); v != "" && v != fs.Get(core.FileKeyBase) {
			out = append(out, v)
		}
	}
	return out
}

// hasExt reports whether name ends in "."+ext. Matching is case-sensitive.
func hasExt(name, ext string) bool {
	return strings.HasSuffix(name, "."+ext)
}
