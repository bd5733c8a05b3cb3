package safety

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Policy is the YAML shape of an external safety rule set. When configured it
// replaces the built-in categories entirely.
type Policy struct {
	MinInputChars int                 `yaml:"min_input_chars"`
	MaxInputChars int                 `yaml:"max_input_chars"`
	Categories    map[string][]string `yaml:"categories"`
	// OutputCategories names the categories that also apply to model output.
	// Empty means the built-in output rules (personuppgifter and
	// säkerhetskänsligt, when present).
	OutputCategories []string `yaml:"output_categories"`
}

func loadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Policy{}, fmt.Errorf("read policy: %w", err)
	}
	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return Policy{}, fmt.Errorf("parse policy: %w", err)
	}
	if len(policy.Categories) == 0 {
		return Policy{}, fmt.Errorf("policy defines no categories")
	}
	for _, name := range policy.OutputCategories {
		if _, ok := policy.Categories[name]; !ok {
			return Policy{}, fmt.Errorf("output category %q has no pattern category", name)
		}
	}
	return policy, nil
}
