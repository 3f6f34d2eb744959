package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/appsim/internal/compiler"
	"github.com/roach88/appsim/internal/config"
	"github.com/roach88/appsim/internal/ir"
	"github.com/roach88/appsim/internal/store"
)

// LoadError represents an error that occurred while loading definitions.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Line returns the source line of the error, or 0.
func (e *LoadError) Line() int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// LoadDefinitions loads app definitions from a .json or .cue file, or from
// every definition file directly inside a directory.
func LoadDefinitions(path string) ([]*ir.AppDefinition, *LoadError) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("definition path not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", path, err)}
	}

	var defs []*ir.AppDefinition
	if info.IsDir() {
		defs, err = compiler.LoadDir(path)
	} else {
		defs, err = compiler.LoadFile(path)
	}
	if err != nil {
		return nil, asLoadError(err)
	}
	if len(defs) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("no app definitions found in %s", path)}
	}
	return defs, nil
}

func asLoadError(err error) *LoadError {
	var cErr *compiler.CompileError
	if errors.As(err, &cErr) {
		return &LoadError{
			Code:    ErrCodeLoadFailed,
			Message: fmt.Sprintf("%s: %s", cErr.Field, cErr.Message),
			Pos:     cErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
}

// pickApp selects the definition with appID, or the only definition when
// appID is empty.
func pickApp(defs []*ir.AppDefinition, appID string) (*ir.AppDefinition, *LoadError) {
	if appID == "" {
		if len(defs) == 1 {
			return defs[0], nil
		}
		ids := make([]string, len(defs))
		for i, d := range defs {
			ids[i] = d.AppID
		}
		return nil, &LoadError{
			Code:    ErrCodeBadInput,
			Message: fmt.Sprintf("%d apps defined (%s); choose one with --app", len(defs), strings.Join(ids, ", ")),
		}
	}
	for _, d := range defs {
		if d.AppID == appID {
			return d, nil
		}
	}
	return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("app %q not found", appID)}
}

// loadApp loads path, picks the app and validates it.
func loadApp(f *OutputFormatter, path, appID string) (*ir.AppDefinition, error) {
	defs, lerr := LoadDefinitions(path)
	if lerr != nil {
		return nil, failLoad(f, lerr)
	}
	def, lerr := pickApp(defs, appID)
	if lerr != nil {
		return nil, failLoad(f, lerr)
	}
	if errs := compiler.Validate(def); len(errs) > 0 {
		return nil, outputValidationErrors(f, errs)
	}
	return def, nil
}

func failLoad(f *OutputFormatter, lerr *LoadError) error {
	_ = f.Error(lerr.Code, lerr.Error(), nil)
	return WrapExitError(ExitCommandError, "failed to load definition", lerr)
}

// settings returns the resolved configuration. Commands built without the
// root command fall back to defaults plus the --db flag.
func (o *RootOptions) settings() config.Config {
	if o.Config != (config.Config{}) {
		return o.Config
	}
	cfg := config.Default()
	if o.DBPath != "" {
		cfg.Store.Path = o.DBPath
	}
	return cfg
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openStore opens the configured database.
func (o *RootOptions) openStore() (*store.Store, error) {
	path := o.settings().Store.Path
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to open database %s", path), err)
	}
	return st, nil
}
