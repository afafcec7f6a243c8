package policy

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadOverlay reads and validates an overlay document from path.
func LoadOverlay(path string) (*Overlay, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overlay: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var o Overlay
	if err := dec.Decode(&o); err != nil {
		return nil, fmt.Errorf("parse overlay: %w", err)
	}
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("validate overlay: %w", err)
	}
	return &o, nil
}

// LoadOverlayIfPresent returns nil without error when path is empty or
// the file does not exist. A present-but-broken overlay is still an
// error; silently ignoring it would weaken the policy the operator wrote.
func LoadOverlayIfPresent(path string) (*Overlay, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return LoadOverlay(path)
}
