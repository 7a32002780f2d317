package bridge

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest describes an operation library module. It is published next to
// the module as <artifact>-<version>.yaml.
type Manifest struct {
	// Name is the library coordinate without version.
	Name string `yaml:"name"`

	// Version is the library version.
	Version string `yaml:"version"`

	// Description is a short human-readable summary.
	Description string `yaml:"description,omitempty"`

	// Checksum is the hex-encoded SHA-256 of the module.
	Checksum string `yaml:"checksum,omitempty"`

	// MemoryLimitPages overrides the runtime memory limit when larger.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages,omitempty"`
}

// ParseManifest parses and validates a manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}
	return ParseManifest(data)
}

func (m *Manifest) validate() error {
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("version is required")
	}
	if m.Checksum != "" {
		if b, err := hex.DecodeString(m.Checksum); err != nil || len(b) != sha256.Size {
			return fmt.Errorf("checksum must be a hex-encoded SHA-256 digest")
		}
	}
	return nil
}

// VerifyChecksum checks module against the manifest checksum. A manifest
// without checksum accepts any module.
func (m *Manifest) VerifyChecksum(module []byte) error {
	if m.Checksum == "" {
		return nil
	}
	if computed := Checksum(module); computed != m.Checksum {
		return fmt.Errorf("module checksum mismatch: expected %s, got %s", m.Checksum, computed)
	}
	return nil
}

// Checksum returns the hex-encoded SHA-256 of module.
func Checksum(module []byte) string {
	hash := sha256.Sum256(module)
	return hex.EncodeToString(hash[:])
}
