package stats

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CatalogFile represents the structure of a stats.yaml file
type CatalogFile struct {
	Stats []Definition `yaml:"stats"`
}

// LoadCatalogFromYAML loads stat definitions from a YAML file
func LoadCatalogFromYAML(filename string) (*Catalog, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats file: %w", err)
	}
	return ParseCatalogYAML(data)
}

// ParseCatalogYAML builds a catalog from YAML bytes
func ParseCatalogYAML(data []byte) (*Catalog, error) {
	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse stats YAML: %w", err)
	}
	if len(file.Stats) == 0 {
		return nil, fmt.Errorf("stats YAML defines no stats")
	}
	return NewCatalog(file.Stats)
}

// MarshalCatalogYAML writes a catalog in the format LoadCatalogFromYAML reads
func MarshalCatalogYAML(c *Catalog) ([]byte, error) {
	return yaml.Marshal(CatalogFile{Stats: c.Definitions()})
}
