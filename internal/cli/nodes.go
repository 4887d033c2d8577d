package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/commonwf/pkg/domain"
)

type seedFile struct {
	Codes []struct {
		Label      string `yaml:"label"`
		Plugin     string `yaml:"plugin"`
		Computer   string `yaml:"computer"`
		Executable string `yaml:"executable"`
	} `yaml:"codes"`
	Groups []struct {
		Label   string   `yaml:"label"`
		Members []string `yaml:"members"`
	} `yaml:"groups"`
}

// LoadNodes reads the codes and groups (pseudopotential families) a store is seeded with.
//
//	codes:
//	  - {label: siesta, plugin: siesta.siesta, computer: localhost, executable: /usr/bin/siesta}
//	groups:
//	  - {label: PseudoDojo/0.4/PBE/FR/standard/psml}
func LoadNodes(path string) ([]domain.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	var nodes []domain.Node
	for _, c := range f.Codes {
		code, err := domain.NewCode(c.Label, c.Plugin, c.Computer, c.Executable)
		if err != nil {
			return nil, fmt.Errorf("code %q: %w", c.Label, err)
		}
		nodes = append(nodes, code)
	}
	for _, g := range f.Groups {
		if g.Label == "" {
			return nil, fmt.Errorf("group label is required")
		}
		nodes = append(nodes, domain.NewGroup(g.Label, g.Members...))
	}
	return nodes, nil
}
