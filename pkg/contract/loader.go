// pkg/contract/loader.go
package contract

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a contract file, expands ${VAR} references against the
// environment, parses it, and validates the result.
func Load(path string) (*ContractSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contract file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var set ContractSet
	if err := yaml.Unmarshal([]byte(expanded), &set); err != nil {
		return nil, fmt.Errorf("failed to parse contract file %s: %w", path, err)
	}

	// Files written before the version field existed are treated as v1
	if set.Version == 0 {
		set.Version = 1
	}

	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("invalid contract file %s: %w", path, err)
	}

	return &set, nil
}
