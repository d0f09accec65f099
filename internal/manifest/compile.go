package manifest

import (
	"fmt"
	"slices"

	"cuelang.org/go/cue"

	"github.com/roach88/clusteval/internal/object"
)

// Compile turns a single plugin.<Label> value into a Class. kinds restricts
// the accepted base kinds; nil accepts any dynamic kind.
func Compile(v cue.Value, kinds []*object.Kind) (*object.Class, error) {
	if err := v.Err(); err != nil {
		return nil, fromCUE(ErrCodeBuildFailed, err)
	}

	var label string
	if sels := v.Path().Selectors(); len(sels) > 0 {
		label = sels[len(sels)-1].String()
	}

	name := label
	if nv := v.LookupPath(cue.ParsePath("name")); nv.Exists() {
		s, err := nv.String()
		if err != nil {
			return nil, &LoadError{Code: ErrCodeBadValue, Field: "name", Message: "name must be a string", Pos: nv.Pos()}
		}
		name = s
	}
	if name == "" {
		return nil, &LoadError{Code: ErrCodeMissing, Field: "name", Message: "plugin has no name", Pos: v.Pos()}
	}

	bv := v.LookupPath(cue.ParsePath("base"))
	if !bv.Exists() {
		return nil, &LoadError{Code: ErrCodeMissing, Field: "base", Message: fmt.Sprintf("plugin %s: base is required", name), Pos: v.Pos()}
	}
	baseName, err := bv.String()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeBadValue, Field: "base", Message: "base must be a string", Pos: bv.Pos()}
	}
	base, ok := object.LookupKind(baseName)
	if !ok || base.Flavor() != object.Dynamic {
		return nil, &LoadError{Code: ErrCodeUnknownBase, Field: "base", Message: fmt.Sprintf("plugin %s: unknown dynamic kind %q", name, baseName), Pos: bv.Pos()}
	}
	if kinds != nil && !slices.Contains(kinds, base) {
		return nil, &LoadError{Code: ErrCodeWrongBase, Field: "base", Message: fmt.Sprintf("plugin %s: kind %s is not accepted here", name, baseName), Pos: bv.Pos()}
	}

	var requires []string
	if rv := v.LookupPath(cue.ParsePath("requires")); rv.Exists() {
		if err := rv.Decode(&requires); err != nil {
			return nil, &LoadError{Code: ErrCodeBadValue, Field: "requires", Message: "requires must be a list of strings", Pos: rv.Pos()}
		}
	}

	return object.NewClass(name, base, requires...), nil
}
