package core

import "fmt"

// ApplyResourceOp applies a ResourceManager operation to r in place.
// Stores call it so that every backend interprets operations the same way.
func ApplyResourceOp(r *Resource, op string, attrs map[string]any, vals map[string]any) error {
	if r == nil {
		return fmt.Errorf("%s: resource is required", op)
	}

	switch op {
	case OpSetStyle:
		r.StyleFile = stringAttr(attrs, "sld_file", r.StyleFile)
		r.SLDUploaded = boolAttr(attrs, "sld_uploaded", r.SLDUploaded)
	case OpSetMetadata:
		r.MetadataFile = stringAttr(attrs, "xml_file", r.MetadataFile)
		r.MetadataUploaded = boolAttr(attrs, "metadata_uploaded", r.MetadataUploaded)
	default:
		return fmt.Errorf("unknown resource operation %q", op)
	}

	for field, v := range vals {
		switch field {
		case "dirty_state":
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("%s: dirty_state must be bool, got %T", op, v)
			}
			r.DirtyState = b
		default:
			return fmt.Errorf("%s: unknown field %q", op, field)
		}
	}
	return nil
}

func stringAttr(attrs map[string]any, key, fallback string) string {
	v, ok := attrs[key]
	if !ok {
		return fallback
	}
	s, _ := v.(string)
	return s
}

func boolAttr(attrs map[string]any, key string, fallback bool) bool {
	v, ok := attrs[key]
	if !ok {
		return fallback
	}
	b, _ := v.(bool)
	return b
}
