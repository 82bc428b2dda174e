package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/slidewizard/backend/internal/models"
)

// LoadPreset reads a YAML settings preset. Fill modes are validated the same
// way imported files are.
func LoadPreset(path string) (*models.Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset: %w", err)
	}

	var raw struct {
		Images map[string]models.ImageSlot `yaml:"images"`
		Texts  map[string]struct {
			FillMode     string  `yaml:"fillMode"`
			Value        *string `yaml:"value"`
			KeepOriginal bool    `yaml:"keepOriginal"`
		} `yaml:"texts"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse preset: %w", err)
	}

	cfg := models.NewConfiguration()
	for k, v := range raw.Images {
		if v.Order < 1 {
			return nil, fmt.Errorf("preset %s: order must be positive", k)
		}
		cfg.Images[k] = v
	}
	for k, v := range raw.Texts {
		mode := models.FillEmpty
		if v.FillMode != "" {
			m, err := models.ParseFillMode(v.FillMode)
			if err != nil {
				return nil, fmt.Errorf("preset %s: %w", k, err)
			}
			mode = m
		}
		cfg.Texts[k] = models.TextSlot{FillMode: mode, Value: v.Value, KeepOriginal: v.KeepOriginal}
	}
	return cfg, nil
}
