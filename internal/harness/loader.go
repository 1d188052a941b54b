package harness

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/715d/exttest/pkg/exttest"
)

//go:embed projects/*.yaml
var catalog embed.FS

// CatalogNames returns the names of the embedded project declarations.
func CatalogNames() []string {
	entries, err := fs.ReadDir(catalog, "projects")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	slices.Sort(names)
	return names
}

// LookupProject returns the embedded declaration called name.
func LookupProject(name string) (*Project, error) {
	data, err := catalog.ReadFile("projects/" + name + ".yaml")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, exttest.Configf("unknown project %q (available: %s)", name, strings.Join(CatalogNames(), ", "))
	}
	if err != nil {
		return nil, err
	}
	return decodeProject(data, name)
}

// LoadProject loads a declaration from a YAML file. The project name defaults
// to the file name without extension.
func LoadProject(file string) (*Project, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, exttest.Configf("read project declaration: %v", err)
	}
	return decodeProject(data, strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)))
}

func decodeProject(data []byte, name string) (*Project, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	p := &Project{}
	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: project %s: %w", exttest.ErrConfiguration, name, err)
	}
	if p.Name == "" {
		p.Name = name
	}
	if p.Runner == "" {
		p.Runner = RunnerFoundry
	}
	return p, nil
}
