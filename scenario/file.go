package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the on-disk form of a scenario. Parameters not present in the file
// keep the values they had before loading. Without a topology the built-in
// scenario named by the parameters is used.
type File struct {
	Params   Params    `json:"params" yaml:"params"`
	Topology *Topology `json:"topology,omitempty" yaml:"topology,omitempty"`
}

// LoadFile reads a scenario file on top of the given parameters. The format
// is selected by the extension: .yaml, .yml or .json.
func LoadFile(path string, base Params) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}

	f := File{Params: base}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	case ".json":
		err = json.Unmarshal(data, &f)
	default:
		return File{}, fmt.Errorf("%w: %s: unknown scenario file format",
			ErrInvalidConfig, path)
	}

	if err != nil {
		return File{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	return f, nil
}

// Resolve returns the topology of the file, falling back to the built-in
// scenario.
func (f File) Resolve() (Topology, error) {
	if f.Topology != nil {
		return *f.Topology, nil
	}

	return Canonical(f.Params)
}

// WriteFile stores a scenario, in YAML or JSON by the extension.
func WriteFile(path string, f File) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(f)
	case ".json":
		data, err = json.MarshalIndent(f, "", "\t")
	default:
		return fmt.Errorf("%w: %s: unknown scenario file format",
			ErrInvalidConfig, path)
	}

	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
