package policy

import "fmt"

// Overlay is an operator-supplied policy document layered on top of the
// built-in rules. It can only add block rules, never weaken anything:
// overlay rules are unconditional denials exactly like the built-ins.
type Overlay struct {
	Version     int    `yaml:"version"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	BlockRules []OverlayBlockRule `yaml:"block_rules"`
}

// OverlayBlockRule denies every command whose normalized text matches
// Pattern (a glob; matching is case-insensitive).
type OverlayBlockRule struct {
	Name       string `yaml:"name"`
	Pattern    string `yaml:"pattern"`
	Message    string `yaml:"message"`
	Suggestion string `yaml:"suggestion"`
}

// Validate performs minimal semantic validation of an overlay.
func (o Overlay) Validate() error {
	if o.Version <= 0 {
		return fmt.Errorf("version must be > 0")
	}
	if o.Name == "" {
		return fmt.Errorf("name is required")
	}
	for i, r := range o.BlockRules {
		if r.Name == "" {
			return fmt.Errorf("block_rules[%d]: name is required", i)
		}
		if r.Pattern == "" {
			return fmt.Errorf("block_rules[%d] (%s): pattern is required", i, r.Name)
		}
	}
	return nil
}
