package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/teddy"
	"github.com/vango-dev/teddy/internal/errors"
	"github.com/vango-dev/teddy/pkg/reactive"
)

// fileStore is the definition state files are loaded into.
var fileStore = teddy.Def("cli", "file")

type format int

const (
	formatJSON format = iota
	formatYAML
)

func formatOf(file string) (format, error) {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".json":
		return formatJSON, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	}
	return 0, errors.New("T112").WithDetail("Cannot tell the format of " + file + ".")
}

// stateFile is a state file loaded into a fresh Teddy.
type stateFile struct {
	path   string
	format format
	t      *teddy.Teddy
	store  *teddy.Store
}

// readState decodes a JSON or YAML state file. Empty files hold an empty
// object.
func readState(file string) (any, format, error) {
	f, err := formatOf(file)
	if err != nil {
		return nil, 0, err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, 0, errors.New("T110").Wrap(err)
	}

	var state any
	if len(strings.TrimSpace(string(data))) > 0 {
		if f == formatJSON {
			err = json.Unmarshal(data, &state)
		} else {
			err = yaml.Unmarshal(data, &state)
		}
		if err != nil {
			return nil, 0, errors.New("T111").WithDetail(err.Error())
		}
	}
	if state == nil {
		state = map[string]any{}
	}
	return state, f, nil
}

func openState(file string) (*stateFile, error) {
	state, f, err := readState(file)
	if err != nil {
		return nil, err
	}
	t := teddy.New()
	return &stateFile{
		path:   file,
		format: f,
		t:      t,
		store:  t.SetStore(fileStore, teddy.Config{State: state}),
	}, nil
}

func (s *stateFile) Close() {
	s.t.Close()
}

// save writes the current state back in the file's own format.
func (s *stateFile) save() error {
	data, err := encode(s.store.Raw(), s.format)
	if err != nil {
		return errors.New("T114").Wrap(err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return errors.New("T114").Wrap(err)
	}
	return nil
}

func encode(v any, f format) ([]byte, error) {
	if f == formatYAML {
		return yaml.Marshal(v)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// printResult writes v as JSON, or YAML when output is "yaml".
func printResult(w io.Writer, v any, output string) error {
	f := formatJSON
	switch output {
	case "", "json":
	case "yaml":
		f = formatYAML
	default:
		return errors.Newf(errors.CategoryCLI, "unknown output format %q", output).
			WithSuggestion("Use --output json or --output yaml")
	}
	data, err := encode(reactive.ToRaw(v), f)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// parseJSONArg decodes a command-line JSON value.
func parseJSONArg(arg string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(arg), &v); err != nil {
		return nil, errors.New("T113").
			WithDetail(err.Error()).
			WithInput(arg, 0)
	}
	return v, nil
}

// accessFlags holds the flags shared by path commands.
type accessFlags struct {
	vars   string
	output string
}

func (f *accessFlags) options() ([]teddy.AccessOption, error) {
	if f.vars == "" {
		return nil, nil
	}
	var vars map[string]any
	if err := json.Unmarshal([]byte(f.vars), &vars); err != nil {
		return nil, errors.New("T113").
			WithDetail(fmt.Sprintf("--vars must be a JSON object: %v", err)).
			WithInput(f.vars, 0)
	}
	return []teddy.AccessOption{teddy.WithVars(vars)}, nil
}
