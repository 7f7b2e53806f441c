package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// loadData reads render data from a YAML or JSON file. JSON is valid YAML,
// so one decoder handles both.
func loadData(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}

	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse data %s: %w", path, err)
	}
	return data, nil
}

// applyVars sets key=value pairs on data, overriding file values. Dotted
// keys are not split.
func applyVars(data map[string]any, vars []string) (map[string]any, error) {
	if len(vars) == 0 {
		return data, nil
	}
	if data == nil {
		data = make(map[string]any, len(vars))
	}
	for _, kv := range vars {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q, want key=value", kv)
		}
		data[key] = value
	}
	return data, nil
}
