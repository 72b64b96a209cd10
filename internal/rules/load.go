package rules

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Load reads a ruleset from a YAML file. Sections the file omits fall back
// to the built-in defaults, so a file can override just the seller domains
// or just the category table.
func Load(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rules: read %s", path)
	}

	// The YAML has a top-level "rules" key.
	var wrapper struct {
		Rules Ruleset `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrapf(err, "rules: parse %s", path)
	}

	rs := &wrapper.Rules
	def := Default()
	if len(rs.SystemSenderPrefixes) == 0 {
		rs.SystemSenderPrefixes = def.SystemSenderPrefixes
	}
	if len(rs.Categories) == 0 {
		rs.Categories = def.Categories
	}
	if len(rs.Stages) == 0 {
		rs.Stages = def.Stages
	}
	rs.normalize()

	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return rs, nil
}
