package task

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/richhaase/autose/internal/api"
)

// Description is a task-description file. A description selects a dev task;
// source_file and test_file together select a cover task. JSON files parse
// as well since YAML is a superset.
type Description struct {
	Repo        string `yaml:"repo"`
	Description string `yaml:"description"`
	Token       string `yaml:"token"`
	SourceFile  string `yaml:"source_file"`
	TestFile    string `yaml:"test_file"`
}

// LoadDescription reads and validates a description file from fs.
func LoadDescription(fs afero.Fs, path string) (*Description, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task description: %w", err)
	}

	var d Description
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("invalid task description %s: %w", path, err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("task description %s: %w", path, err)
	}
	return &d, nil
}

// Validate checks that d describes exactly one kind of task.
func (d *Description) Validate() error {
	if strings.TrimSpace(d.Repo) == "" {
		return api.InvalidParameters("repo is required")
	}
	if strings.TrimSpace(d.Description) != "" {
		return nil
	}
	if d.SourceFile == "" || d.TestFile == "" {
		return api.InvalidParameters("either description, or both source_file and test_file, must be set")
	}
	return nil
}

// Lineage returns the task family d is submitted to.
func (d *Description) Lineage() api.Lineage {
	if strings.TrimSpace(d.Description) != "" {
		return api.Dev
	}
	return api.Cover
}
