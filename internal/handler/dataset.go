package handler

import (
	"context"

	"github.com/JonMunkholm/geoimport/internal/core"
	"github.com/JonMunkholm/geoimport/internal/logging"
)

// Dataset is the data handler for one resource subtype. Subtypes whose
// publishing backend reads the style straight from the upload set Inline;
// the handler then records the style file itself without dirtying the
// resource, since nothing needs re-publishing.
type Dataset struct {
	Subtype   string
	Inline    bool
	Resources core.ResourceManager
}

// NewDataset creates a data handler for subtype.
func NewDataset(subtype string, inline bool, resources core.ResourceManager) *Dataset {
	return &Dataset{Subtype: subtype, Inline: inline, Resources: resources}
}

func (d *Dataset) ID() string {
	return "dataset:" + d.Subtype
}

func (d *Dataset) SupportsInlineStyleHandling() bool {
	return d.Inline
}

// HandleStyleFile stores the uploaded style path on dataset.
func (d *Dataset) HandleStyleFile(ctx context.Context, dataset *core.Resource, exec *core.ExecutionContext) error {
	files := exec.Files()
	path := files.Get(core.FileKeySLD)
	if path == "" {
		path = files.Get(core.FileKeyBase)
	}

	logging.WithFields(ctx, "import_id", exec.ID, "data_handler", d.ID()).
		Debug("applying style inline", "resource_id", dataset.ID, "file", path)

	return d.Resources.Exec(ctx, core.OpSetStyle, dataset,
		map[string]any{
			"sld_file":     path,
			"sld_uploaded": path != "",
		},
		nil,
	)
}

type fallback struct{}

func (fallback) ID() string                        { return "default" }
func (fallback) SupportsInlineStyleHandling() bool { return false }

func (fallback) HandleStyleFile(context.Context, *core.Resource, *core.ExecutionContext) error {
	return nil
}

// Fallback returns the data handler used for subtypes with no registered
// handler. It never applies styles inline.
func Fallback() core.DataHandler {
	return fallback{}
}

// Register adds the SLD and XML handlers to r at core.DefaultPriority and
// binds the inline-capable data handlers by subtype. Configured priorities
// are applied afterwards with Registry.ApplyPriorities.
func Register(r *core.Registry, deps Deps, inlineSubtypes []string) {
	if deps.Registry == nil {
		deps.Registry = r
	}
	r.Add(NewSLD(deps))
	r.Add(NewXML(deps))
	for _, st := range inlineSubtypes {
		r.RegisterDataHandler(st, NewDataset(st, true, deps.Resources))
	}
}
