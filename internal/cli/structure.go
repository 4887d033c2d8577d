package cli

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/commonwf/pkg/domain"
)

// structureFile is the YAML representation of a crystal structure.
//
//	cell: [[0, 2.7, 2.7], [2.7, 0, 2.7], [2.7, 2.7, 0]]
//	sites:
//	  - {symbol: Si, position: [0, 0, 0]}
//	  - {symbol: Si, position: [1.35, 1.35, 1.35], name: Si2}
type structureFile struct {
	Label string        `yaml:"label"`
	Cell  [3][3]float64 `yaml:"cell"`
	PBC   *[3]bool      `yaml:"pbc"`
	Sites []struct {
		Symbol   string     `yaml:"symbol"`
		Position [3]float64 `yaml:"position"`
		Name     string     `yaml:"name"`
	} `yaml:"sites"`
}

//go:embed structures/*.yaml
var builtinStructures embed.FS

// BuiltinStructures returns the names of the bundled structures.
func BuiltinStructures() []string {
	entries, _ := fs.ReadDir(builtinStructures, "structures")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// LoadStructure reads a structure from a YAML file, or one of the bundled
// structures (e.g. "Si") when no such file exists.
func LoadStructure(name string) (*domain.Structure, error) {
	data, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = builtinStructures.ReadFile(path.Join("structures", name+".yaml"))
		if err != nil {
			return nil, fmt.Errorf("structure %q is neither a file nor one of %v", name, BuiltinStructures())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read structure: %w", err)
	}
	return ParseStructure(data)
}

// ParseStructure decodes a YAML structure document.
func ParseStructure(data []byte) (*domain.Structure, error) {
	var f structureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse structure: %w", err)
	}
	if len(f.Sites) == 0 {
		return nil, fmt.Errorf("structure has no sites")
	}

	s := domain.NewStructure(f.Cell)
	if f.PBC != nil {
		if err := s.SetPBC(*f.PBC); err != nil {
			return nil, err
		}
	}
	for i, site := range f.Sites {
		if err := s.AppendAtom(site.Symbol, site.Position, site.Name); err != nil {
			return nil, fmt.Errorf("site %d: %w", i, err)
		}
	}
	if f.Label != "" {
		if err := s.SetLabel(f.Label); err != nil {
			return nil, err
		}
	}
	if _, err := s.ReciprocalCell(); err != nil {
		return nil, fmt.Errorf("invalid cell: %w", err)
	}
	return s, nil
}
