// Package taxonomy loads the fax category set from YAML. The clinical set is
// embedded and used when no file is configured.
package taxonomy

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

//go:embed default.yaml
var defaultYAML []byte

type file struct {
	Taxonomy struct {
		Unknown    domain.CategoryInfo   `yaml:"unknown"`
		Categories []domain.CategoryInfo `yaml:"categories"`
	} `yaml:"taxonomy"`
}

// Load reads the taxonomy at path, or the embedded default when path is empty.
func Load(path string) (*domain.Taxonomy, error) {
	if path == "" {
		return Parse(defaultYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: read %s: %w", path, err)
	}
	tx, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: %s: %w", path, err)
	}
	return tx, nil
}

func Default() *domain.Taxonomy {
	tx, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded taxonomy is invalid: %v", err))
	}
	return tx
}

func Parse(data []byte) (*domain.Taxonomy, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	all := append([]domain.CategoryInfo{f.Taxonomy.Unknown}, f.Taxonomy.Categories...)
	for _, c := range all {
		if c.Priority < 0 || c.Priority > 100 {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse taxonomy",
				fmt.Errorf("category %q priority %d out of range 0-100", c.Value, c.Priority))
		}
	}
	return domain.NewTaxonomy(f.Taxonomy.Categories, f.Taxonomy.Unknown)
}
