package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultEndpoints are the operation libraries loaded when no endpoints are configured.
var DefaultEndpoints = []string{
	"net.imglib2:imglib2",
	"net.imglib2:imglib2-imglyb",
	"io.scif:scifio",
	"org.scijava:scijava-ops-engine:1.0.0",
	"org.scijava:scijava-ops-flim:1.0.0",
	"org.scijava:scijava-ops-image:1.0.0",
}

// PublicRepository is always added to the configured repositories.
var PublicRepository = Repository{
	Name: "scijava.public",
	URL:  "https://maven.scijava.org/content/groups/public",
}

// Repository is a maven-layout module repository.
type Repository struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// Config configures the runtime.
type Config struct {
	// Endpoints lists library coordinates to load. Empty means DefaultEndpoints.
	Endpoints []string

	// Repositories are searched in order after the local cache.
	Repositories []Repository

	// CacheDir holds downloaded modules. Empty means the user cache directory.
	CacheDir string

	// Offline disables repository access; only cached modules are used.
	Offline bool

	// Timeout bounds every call into a module.
	Timeout time.Duration

	// MemoryLimitPages caps module memory in 64KiB pages.
	MemoryLimitPages uint32
}

// DefaultConfig returns a configuration with the default endpoints and the
// public repository.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if len(c.Endpoints) == 0 {
		c.Endpoints = append([]string(nil), DefaultEndpoints...)
	}
	c.Repositories = withPublicRepository(c.Repositories)
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir()
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MemoryLimitPages == 0 {
		c.MemoryLimitPages = 256 // 16MiB
	}
	return c
}

func withPublicRepository(repos []Repository) []Repository {
	out := append([]Repository(nil), repos...)
	for _, r := range out {
		if r.Name == PublicRepository.Name || strings.TrimRight(r.URL, "/") == PublicRepository.URL {
			return out
		}
	}
	return append(out, PublicRepository)
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "opsgate", "modules")
}

// Coordinate identifies an operation library as group:artifact[:version].
type Coordinate struct {
	Group    string
	Artifact string
	Version  string
}

// ParseCoordinate parses "group:artifact" or "group:artifact:version".
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Coordinate{}, fmt.Errorf("invalid coordinate %q: want group:artifact[:version]", s)
	}
	for _, p := range parts {
		if p == "" || strings.ContainsAny(p, "/\\ ") {
			return Coordinate{}, fmt.Errorf("invalid coordinate %q: empty or malformed segment", s)
		}
	}
	c := Coordinate{Group: parts[0], Artifact: parts[1]}
	if len(parts) == 3 {
		c.Version = parts[2]
	}
	return c, nil
}

// String implements fmt.Stringer.
func (c Coordinate) String() string {
	if c.Version == "" {
		return c.Group + ":" + c.Artifact
	}
	return c.Group + ":" + c.Artifact + ":" + c.Version
}

// dir returns the maven directory of the artifact, without version.
func (c Coordinate) dir() string {
	return strings.ReplaceAll(c.Group, ".", "/") + "/" + c.Artifact
}

// file returns the file name of the artifact with the given extension.
func (c Coordinate) file(ext string) string {
	return c.Artifact + "-" + c.Version + "." + ext
}

// path returns the maven path of the artifact file with the given extension.
func (c Coordinate) path(ext string) string {
	return c.dir() + "/" + c.Version + "/" + c.file(ext)
}
