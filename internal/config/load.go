package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked for when no plan file is given explicitly.
const DefaultFileName = "tierctl.yaml"

// Load reads and validates a plan document from the given path. An empty
// path selects DefaultFileName in the current directory.
func Load(path string) (*Document, error) {
	if path == "" {
		path = DefaultFileName
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan document: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a plan document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing plan document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the document's referential integrity. Graph-shape errors
// (cycles) are left to the graph builder; this pass catches everything that
// can be seen record by record.
func (d *Document) Validate() error {
	if len(d.Resources) == 0 {
		return fmt.Errorf("plan document declares no resources")
	}

	ids := make(map[string]bool, len(d.Resources))
	for _, r := range d.Resources {
		if r.ID == "" {
			return fmt.Errorf("resource with empty id")
		}
		if ids[r.ID] {
			return fmt.Errorf("duplicate resource id %q", r.ID)
		}
		ids[r.ID] = true
	}

	for _, b := range d.SecretBindings {
		if b.VaultRef == "" {
			return fmt.Errorf("secret binding with empty vault_ref")
		}
		if !ids[b.NodeID] {
			return fmt.Errorf("secret binding references unknown resource %q", b.NodeID)
		}
	}

	if d.Recovery != nil {
		if len(d.Recovery.Groups) == 0 {
			return fmt.Errorf("recovery section declares no groups")
		}
		for _, g := range d.Recovery.Groups {
			if g.Name == "" {
				return fmt.Errorf("recovery group with empty name")
			}
			if len(g.Members) == 0 {
				return fmt.Errorf("recovery group %q has no members", g.Name)
			}
			switch g.Gate {
			case "automatic", "manual", "":
			default:
				return fmt.Errorf("recovery group %q: unknown gate %q", g.Name, g.Gate)
			}
			for _, m := range g.Members {
				if !ids[m] {
					return fmt.Errorf("recovery group %q references unknown resource %q", g.Name, m)
				}
			}
		}
	}

	return nil
}
