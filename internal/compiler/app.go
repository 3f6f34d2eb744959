package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/appsim/internal/ir"
)

// CompileApp converts a CUE value into an AppDefinition.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the app struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`app: payments: { name: "Payments", actions: [...] }`)
//	def, err := CompileApp(v.LookupPath(cue.ParsePath("app.payments")))
//
// When appId is omitted it defaults to the struct label.
func CompileApp(v cue.Value) (*ir.AppDefinition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if !v.Exists() {
		return nil, &CompileError{Field: "app", Message: "value does not exist", Pos: v.Pos()}
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	for _, field := range []string{"name", "actions"} {
		if !v.LookupPath(cue.ParsePath(field)).Exists() {
			return nil, &CompileError{
				Field:   field,
				Message: field + " is required",
				Pos:     v.Pos(),
			}
		}
	}

	data, err := v.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	def, err := ir.ParseAppDefinition(data)
	if err != nil {
		return nil, &CompileError{Field: "app", Message: err.Error(), Pos: v.Pos()}
	}

	if def.AppID == "" {
		labels := v.Path().Selectors()
		if len(labels) > 0 {
			def.AppID = labels[len(labels)-1].String()
		}
	}
	return def, nil
}

// CompileApps compiles every struct under the top-level "app" field.
func CompileApps(root cue.Value) ([]*ir.AppDefinition, error) {
	if err := root.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	apps := root.LookupPath(cue.ParsePath("app"))
	if !apps.Exists() {
		return nil, &CompileError{Field: "app", Message: "no app definitions found", Pos: root.Pos()}
	}
	iter, err := apps.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []*ir.AppDefinition
	for iter.Next() {
		def, err := CompileApp(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("app.%s: %w", iter.Selector().String(), err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadFile reads app definitions from a .json or .cue file. A JSON file
// holds exactly one definition; a CUE file may hold several under "app".
func LoadFile(path string) ([]*ir.AppDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		def, err := ir.ParseAppDefinition(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return []*ir.AppDefinition{def}, nil
	case ".cue":
		v := cuecontext.New().CompileBytes(data, cue.Filename(path))
		return CompileApps(v)
	default:
		return nil, fmt.Errorf("%s: unsupported definition format (want .json or .cue)", path)
	}
}

// LoadDir loads every .json and .cue definition file directly inside dir,
// in lexical file order.
func LoadDir(dir string) ([]*ir.AppDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var defs []*ir.AppDefinition
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".cue":
		default:
			continue
		}
		loaded, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		defs = append(defs, loaded...)
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("no app definitions found in %s", dir)
	}
	return defs, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
