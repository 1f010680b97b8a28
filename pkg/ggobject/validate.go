package ggobject

import "github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggerr"

// FieldSchema describes one expected key in a Map passed to
// MapValidate, matching spec.md's `{key, required, expected_type,
// out_slot}` schema entries.
type FieldSchema struct {
	Key      string
	Required bool
	Kind     Kind
	// AnyKind skips the kind check entirely, for fields (like a config
	// value) that may legitimately hold any variant.
	AnyKind bool
	Out     *Value
}

// MapValidate is the single point at which every corebus handler
// validates its argument map (spec.md §4.1). It fails with ggerr.Invalid
// on a missing required key or a type mismatch, and otherwise populates
// each schema entry's Out pointer (left untouched if the key was
// optional and absent).
func MapValidate(v Value, schema []FieldSchema) error {
	if v.Kind() != KindMap {
		return ggerr.New(ggerr.Invalid, "expected a map, got kind %d", v.Kind())
	}
	for _, f := range schema {
		val, ok := v.Get(f.Key)
		if !ok {
			if f.Required {
				return ggerr.New(ggerr.Invalid, "missing required key %q", f.Key)
			}
			continue
		}
		if !f.AnyKind && val.Kind() != f.Kind {
			return ggerr.New(ggerr.Invalid, "key %q: expected kind %d, got %d", f.Key, f.Kind, val.Kind())
		}
		if f.Out != nil {
			*f.Out = val
		}
	}
	return nil
}
