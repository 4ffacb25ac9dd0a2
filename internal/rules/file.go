package rules

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/quarantine-engine/internal/domain/quarantine"
)

// errPathRequired is returned when no rules file path is given.
var errPathRequired = errors.New("rules file path must be provided")

// LoadFile reads quarantine rules from a YAML file.
// Keys that are missing stay absent so that defaults apply.
func LoadFile(path string) (quarantine.Rules, error) {
	if path == "" {
		return quarantine.Rules{}, errPathRequired
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return quarantine.Rules{}, fmt.Errorf("read rules: %w", err)
	}

	var rules quarantine.Rules
	if err = yaml.Unmarshal(contents, &rules); err != nil {
		return quarantine.Rules{}, fmt.Errorf("unmarshal rules: %w", err)
	}

	if err = rules.Validate(); err != nil {
		return quarantine.Rules{}, fmt.Errorf("validate rules: %w", err)
	}

	return rules, nil
}

// SaveFile writes rules to a YAML file, omitting absent values.
func SaveFile(path string, rules quarantine.Rules) error {
	if path == "" {
		return errPathRequired
	}

	if err := rules.Validate(); err != nil {
		return fmt.Errorf("validate rules: %w", err)
	}

	data, err := yaml.Marshal(rules)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, 0o600); err != nil {
		return fmt.Errorf("write rules: %w", err)
	}

	return nil
}
