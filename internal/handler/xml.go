package handler

import (
	"context"

	"github.com/JonMunkholm/geoimport/internal/core"
)

// XML imports ISO/Dublin Core style metadata documents onto a dataset.
type XML struct {
	metadataBase
	actions core.ActionTable
}

// NewXML creates the XML metadata handler.
func NewXML(deps Deps) *XML {
	h := &XML{metadataBase: metadataBase{deps: deps, kind: core.AssetKindMetadata}}
	h.self = h
	h.actions = core.ActionTable{
		core.ActionMetadataUpload: {Run: h.startImport(TaskImportResource), TaskID: TaskImportResource},
		core.ActionRollback:       {Run: h.startRollback(TaskRollback), TaskID: TaskRollback},
	}
	return h
}

func (h *XML) Descriptor() core.HandlerDescriptor {
	return core.HandlerDescriptor{
		ID: "xml",
		Formats: []core.Format{{
			Label:       "XML Metadata File (XML - ISO, FGDC, ebRIM, Dublin Core)",
			RequiredExt: []string{"xml"},
		}},
		Actions: h.actions.Actions(),
		Type:    "metadata",
	}
}

// CanHandle requires both an .xml base file and the metadata upload action.
func (h *XML) CanHandle(p core.Payload) bool {
	if p.BaseFile == "" {
		return false
	}
	action, ok := core.ParseAction(p.Action)
	if !ok {
		return false
	}
	return hasExt(p.BaseName(), "xml") && action == core.ActionMetadataUpload
}

func (h *XML) IsValid(ctx context.Context, files core.FileSet, _ core.User, opts core.ValidateOptions) (bool, error) {
	return h.validateDocument(ctx, files, opts, "Uploaded document is not XML or is invalid")
}

func (h *XML) Actions() core.ActionTable {
	return h.actions
}

// HandleMetadataResource records the metadata document on the resource.
// Data handlers only take over styles, so original is not consulted.
func (h *XML) HandleMetadataResource(ctx context.Context, exec *core.ExecutionContext, dataset *core.Resource, _ core.DataHandler) error {
	files := exec.Files()
	xmlFile := files.Get(core.FileKeyMetadata)
	path := xmlFile
	if path == "" {
		path = files.Get(core.FileKeyBase)
	}

	return h.deps.Resources.Exec(ctx, core.OpSetMetadata, dataset,
		map[string]any{
			"xml_file":          path,
			"metadata_uploaded": path != "",
		},
		map[string]any{"dirty_state": true},
	)
}
