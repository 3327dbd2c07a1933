// Package seed reads the metadata catalog (phone brands, models, colors,
// districts and towns) loaded by the "seed" run mode.
package seed

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// Catalog is the full metadata vocabulary.
type Catalog struct {
	Brands    []Brand    `yaml:"brands"`
	Districts []District `yaml:"districts"`
}

type Brand struct {
	Name   string  `yaml:"name"`
	Models []Model `yaml:"models"`
}

type Model struct {
	Name   string  `yaml:"name"`
	Colors []Color `yaml:"colors"`
}

type Color struct {
	Name    string `yaml:"name"`
	HexCode string `yaml:"hex"`
}

type District struct {
	Name  string   `yaml:"name"`
	Towns []string `yaml:"towns"`
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("seed: catalog is empty")
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("seed: decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile reads a catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("seed: %s: %w", filepath.Clean(path), err)
	}
	return c, nil
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded seed catalog is invalid: %v", err))
	}
	return c
}

// Load reads path, or the embedded catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// Validate rejects blank and duplicate names at every level.
func (c *Catalog) Validate() error {
	seenBrands := map[string]bool{}
	for i, b := range c.Brands {
		if err := checkName(seenBrands, b.Name, fmt.Sprintf("brands[%d]", i)); err != nil {
			return err
		}
		seenModels := map[string]bool{}
		for j, m := range b.Models {
			path := fmt.Sprintf("brands[%d].models[%d]", i, j)
			if err := checkName(seenModels, m.Name, path); err != nil {
				return err
			}
			seenColors := map[string]bool{}
			for k, col := range m.Colors {
				if err := checkName(seenColors, col.Name, fmt.Sprintf("%s.colors[%d]", path, k)); err != nil {
					return err
				}
			}
		}
	}
	seenDistricts := map[string]bool{}
	for i, d := range c.Districts {
		if err := checkName(seenDistricts, d.Name, fmt.Sprintf("districts[%d]", i)); err != nil {
			return err
		}
		seenTowns := map[string]bool{}
		for j, t := range d.Towns {
			if err := checkName(seenTowns, t, fmt.Sprintf("districts[%d].towns[%d]", i, j)); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkName(seen map[string]bool, name, path string) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return fmt.Errorf("seed: %s: name is required", path)
	}
	if seen[key] {
		return fmt.Errorf("seed: %s: duplicate name %q", path, name)
	}
	seen[key] = true
	return nil
}

// Counts reports how many entries of each kind the catalog holds.
func (c *Catalog) Counts() (brands, models, colors, districts, towns int) {
	brands, districts = len(c.Brands), len(c.Districts)
	for _, b := range c.Brands {
		models += len(b.Models)
		for _, m := range b.Models {
			colors += len(m.Colors)
		}
	}
	for _, d := range c.Districts {
		towns += len(d.Towns)
	}
	return
}
