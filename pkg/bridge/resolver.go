package bridge

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/scijava/opsgate/pkg/telemetry"
)

// Source tells where a module was loaded from.
type Source string

const (
	SourceInline Source = "inline"
	SourceCache  Source = "cache"
	SourceRemote Source = "remote"
)

// Artifact is a resolved operation library module.
type Artifact struct {
	// Coordinate is the resolved coordinate, version included.
	Coordinate Coordinate

	// Module holds the WASM bytes.
	Module []byte

	// Manifest is nil when the library publishes none.
	Manifest *Manifest

	// Source is where Module came from.
	Source Source

	// Path is the cache file, empty for inline modules.
	Path string
}

// errNotFound reports that a repository does not carry a file.
var errNotFound = errors.New("not found")

// Resolver locates library modules in the local cache and in maven-layout
// repositories.
type Resolver struct {
	cacheDir string
	repos    []Repository
	offline  bool
	client   *http.Client
	logger   *telemetry.Logger
	metrics  *telemetry.Metrics
}

// NewResolver creates a resolver for cfg. A nil client uses http.DefaultClient.
func NewResolver(cfg Config, client *http.Client, logger *telemetry.Logger, metrics *telemetry.Metrics) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = telemetry.Nop()
	}
	return &Resolver{
		cacheDir: cfg.CacheDir,
		repos:    cfg.Repositories,
		offline:  cfg.Offline,
		client:   client,
		logger:   logger.NewComponentLogger("resolver"),
		metrics:  metrics,
	}
}

// Resolve returns the module for coord, downloading it into the cache when
// it is not there yet.
func (r *Resolver) Resolve(ctx context.Context, coord Coordinate) (*Artifact, error) {
	if coord.Version == "" {
		version, err := r.resolveVersion(ctx, coord)
		if err != nil {
			return nil, err
		}
		coord.Version = version
	}

	log := r.logger.WithModule(coord.String())
	path := r.cachePath(coord, "wasm")

	module, err := os.ReadFile(path)
	source := SourceCache
	switch {
	case err == nil:
		log.Debug("module found in cache")
	case errors.Is(err, os.ErrNotExist):
		if r.offline {
			return nil, fmt.Errorf("module %s is not cached and repositories are disabled", coord)
		}
		module, err = r.download(ctx, coord)
		if err != nil {
			return nil, err
		}
		source = SourceRemote
	default:
		return nil, fmt.Errorf("failed to read cached module %s: %w", coord, err)
	}

	manifest, err := r.manifest(coord)
	if err != nil {
		return nil, err
	}
	if manifest != nil {
		if err := manifest.VerifyChecksum(module); err != nil {
			return nil, fmt.Errorf("module %s: %w", coord, err)
		}
	}

	r.metrics.RecordModuleLoad(string(source))
	return &Artifact{
		Coordinate: coord,
		Module:     module,
		Manifest:   manifest,
		Source:     source,
		Path:       path,
	}, nil
}

func (r *Resolver) cachePath(coord Coordinate, ext string) string {
	return filepath.Join(r.cacheDir, filepath.FromSlash(coord.path(ext)))
}

func (r *Resolver) manifest(coord Coordinate) (*Manifest, error) {
	m, err := LoadManifest(r.cachePath(coord, "yaml"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("module %s: %w", coord, err)
	}
	return m, nil
}

// resolveVersion picks the highest cached version, falling back to the
// release version advertised by the first repository that knows the library.
func (r *Resolver) resolveVersion(ctx context.Context, coord Coordinate) (string, error) {
	if v := r.latestCached(coord); v != "" {
		return v, nil
	}
	if r.offline {
		return "", fmt.Errorf("no cached version of %s and repositories are disabled", coord)
	}

	for _, repo := range r.repos {
		data, err := r.fetch(ctx, repo, coord.dir()+"/maven-metadata.xml")
		if errors.Is(err, errNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		v, err := parseMetadataVersion(data)
		if err != nil {
			return "", fmt.Errorf("repository %s: %s: %w", repo.Name, coord, err)
		}
		return v, nil
	}
	return "", fmt.Errorf("no version of %s found in %d repositories", coord, len(r.repos))
}

func (r *Resolver) latestCached(coord Coordinate) string {
	entries, err := os.ReadDir(filepath.Join(r.cacheDir, filepath.FromSlash(coord.dir())))
	if err != nil {
		return ""
	}
	var latest string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		c := coord
		c.Version = e.Name()
		if _, err := os.Stat(r.cachePath(c, "wasm")); err != nil {
			continue
		}
		if latest == "" || compareVersions(e.Name(), latest) > 0 {
			latest = e.Name()
		}
	}
	return latest
}

// download fetches the module, and its manifest when published, from the
// first repository that has it and stores both in the cache.
func (r *Resolver) download(ctx context.Context, coord Coordinate) ([]byte, error) {
	for _, repo := range r.repos {
		module, err := r.fetch(ctx, repo, coord.path("wasm"))
		if errors.Is(err, errNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		r.logger.WithModule(coord.String()).WithField("repository", repo.Name).Info("downloaded module")

		if err := r.store(coord, "wasm", module); err != nil {
			return nil, err
		}
		manifest, err := r.fetch(ctx, repo, coord.path("yaml"))
		switch {
		case err == nil:
			if err := r.store(coord, "yaml", manifest); err != nil {
				return nil, err
			}
		case !errors.Is(err, errNotFound):
			return nil, err
		}
		return module, nil
	}
	return nil, fmt.Errorf("module %s not found in %d repositories", coord, len(r.repos))
}

func (r *Resolver) fetch(ctx context.Context, repo Repository, path string) ([]byte, error) {
	url := strings.TrimRight(repo.URL, "/") + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("repository %s: %w", repo.Name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("repository %s: GET %s: %s", repo.Name, url, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("repository %s: failed to read %s: %w", repo.Name, url, err)
	}
	return data, nil
}

func (r *Resolver) store(coord Coordinate, ext string, data []byte) error {
	path := r.cachePath(coord, ext)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

type mavenMetadata struct {
	Versioning struct {
		Latest   string   `xml:"latest"`
		Release  string   `xml:"release"`
		Versions []string `xml:"versions>version"`
	} `xml:"versioning"`
}

func parseMetadataVersion(data []byte) (string, error) {
	var md mavenMetadata
	if err := xml.Unmarshal(data, &md); err != nil {
		return "", fmt.Errorf("failed to parse maven metadata: %w", err)
	}
	v := md.Versioning
	switch {
	case v.Release != "":
		return v.Release, nil
	case v.Latest != "":
		return v.Latest, nil
	}
	var latest string
	for _, version := range v.Versions {
		if latest == "" || compareVersions(version, latest) > 0 {
			latest = version
		}
	}
	if latest == "" {
		return "", errors.New("maven metadata lists no versions")
	}
	return latest, nil
}

// compareVersions compares dotted versions segment by segment, numerically
// where both segments are numbers.
func compareVersions(a, b string) int {
	split := func(s string) []string {
		return strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == '-' })
	}
	as, bs := split(a), split(b)
	for i := 0; i < len(as) && i < len(bs); i++ {
		an, aerr := strconv.Atoi(as[i])
		bn, berr := strconv.Atoi(bs[i])
		switch {
		case aerr == nil && berr == nil:
			if an != bn {
				if an < bn {
					return -1
				}
				return 1
			}
		case as[i] != bs[i]:
			return strings.Compare(as[i], bs[i])
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}
