package cueset

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// exportCUE unifies a CUE cue file with the schema and renders its "cues"
// field as JSON.
func exportCUE(data []byte, name string) ([]byte, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile cue schema: %w", err)
	}

	file := ctx.CompileBytes(data, cue.Filename(name))
	if err := file.Err(); err != nil {
		return nil, cueError(name, err)
	}

	v := schema.Unify(file)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(name, err)
	}
	cues := v.LookupPath(cue.ParsePath("cues"))
	if !cues.Exists() {
		return nil, &Error{Path: name, Index: -1, Message: `missing "cues" list`}
	}
	out, err := cues.MarshalJSON()
	if err != nil {
		return nil, cueError(name, err)
	}
	return out, nil
}

func cueError(name string, err error) *Error {
	msg := errors.Details(err, nil)
	return &Error{Path: name, Index: -1, Message: msg}
}
