package funnels

import (
	"fmt"
	"os"

	"funnel-health/pkg/models"

	"gopkg.in/yaml.v3"
)

type definitionsFile struct {
	Funnels []models.Funnel `yaml:"funnels"`
}

// LoadDefinitions reads funnel definitions from a YAML (or JSON) file with a top-level
// "funnels" list. Every definition is normalized and validated.
func LoadDefinitions(path string) ([]models.Funnel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definitions: %w", err)
	}
	var file definitionsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse definitions %s: %w", path, err)
	}

	out := make([]models.Funnel, 0, len(file.Funnels))
	for i, f := range file.Funnels {
		f = Normalize(f)
		if err := Validate(f); err != nil {
			return nil, fmt.Errorf("funnel #%d (%s): %w", i+1, f.ExperienceID, err)
		}
		out = append(out, f)
	}
	return out, nil
}
