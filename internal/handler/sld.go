package handler

import (
	"context"

	"github.com/JonMunkholm/geoimport/internal/core"
)

// SLD imports Styled Layer Descriptor documents as a dataset's style.
type SLD struct {
	metadataBase
	actions core.ActionTable
}

// NewSLD creates the SLD handler.
func NewSLD(deps Deps) *SLD {
	h := &SLD{metadataBase: metadataBase{deps: deps, kind: core.AssetKindStyle}}
	h.self = h
	h.actions = core.ActionTable{
		core.ActionStyleUpload: {Run: h.startImport(TaskImportResource), TaskID: TaskImportResource},
		core.ActionRollback:    {Run: h.startRollback(TaskRollback), TaskID: TaskRollback},
	}
	return h
}

func (h *SLD) Descriptor() core.HandlerDescriptor {
	return core.HandlerDescriptor{
		ID: "sld",
		Formats: []core.Format{{
			Label:       "Styled Layer Descriptor 1.0, 1.1 (SLD)",
			RequiredExt: []string{"sld"},
		}},
		Actions: h.actions.Actions(),
		Type:    "metadata",
	}
}

// CanHandle requires both an .sld base file and the style upload action.
func (h *SLD) CanHandle(p core.Payload) bool {
	if p.BaseFile == "" {
		return false
	}
	action, ok := core.ParseAction(p.Action)
	if !ok {
		return false
	}
	return hasExt(p.BaseName(), "sld") && action == core.ActionStyleUpload
}

func (h *SLD) IsValid(ctx context.Context, files core.FileSet, _ core.User, opts core.ValidateOptions) (bool, error) {
	return h.validateDocument(ctx, files, opts, "Uploaded document is not SLD or is invalid")
}

func (h *SLD) Actions() core.ActionTable {
	return h.actions
}

// HandleMetadataResource hands the style to the dataset's data handler when
// it can apply styles itself, and otherwise records it on the resource.
func (h *SLD) HandleMetadataResource(ctx context.Context, exec *core.ExecutionContext, dataset *core.Resource, original core.DataHandler) error {
	if original != nil && original.SupportsInlineStyleHandling() {
		return original.HandleStyleFile(ctx, dataset, exec)
	}

	files := exec.Files()
	sldFile := files.Get(core.FileKeySLD)
	path := sldFile
	if path == "" {
		path = files.Get(core.FileKeyBase)
	}

	return h.deps.Resources.Exec(ctx, core.OpSetStyle, dataset,
		map[string]any{
			"sld_file":     sldFile,
			"sld_uploaded": path != "",
		},
		map[string]any{"dirty_state": true},
	)
}
