package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func TestParseCoordinate(t *testing.T) {
	tests := []struct {
		in      string
		want    Coordinate
		wantErr bool
	}{
		{"net.imglib2:imglib2", Coordinate{Group: "net.imglib2", Artifact: "imglib2"}, false},
		{"org.scijava:scijava-ops-image:1.0.0", Coordinate{"org.scijava", "scijava-ops-image", "1.0.0"}, false},
		{" io.scif:scifio ", Coordinate{Group: "io.scif", Artifact: "scifio"}, false},
		{"imglib2", Coordinate{}, true},
		{"a::1", Coordinate{}, true},
		{"a:b:c:d", Coordinate{}, true},
		{"a/b:c", Coordinate{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCoordinate(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCoordinate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseCoordinate() = %+v, want %+v", got, tt.want)
			}
		})
	}

	c := Coordinate{"org.scijava", "ops", "1.2"}
	if c.String() != "org.scijava:ops:1.2" {
		t.Errorf("String() = %q", c.String())
	}
	if c.path("wasm") != "org/scijava/ops/1.2/ops-1.2.wasm" {
		t.Errorf("path() = %q", c.path("wasm"))
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.10.0", "1.9.0", 1},
		{"2", "10", -1},
		{"1.0", "1.0.1", -1},
		{"1.0-beta", "1.0-alpha", 1},
	}
	for _, tt := range tests {
		if got := compareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func writeCached(t *testing.T, dir string, coord Coordinate, ext string, data []byte) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(coord.path(ext)))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolverCache(t *testing.T) {
	dir := t.TempDir()
	module := []byte("module-bytes")
	for _, v := range []string{"1.2.0", "1.10.0", "1.9.3"} {
		writeCached(t, dir, Coordinate{"org.example", "ops", v}, "wasm", module)
	}
	// A version directory without module is ignored.
	if err := os.MkdirAll(filepath.Join(dir, "org/example/ops/9.9.9"), 0o755); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(Config{CacheDir: dir, Offline: true}, nil, nil, nil)
	a, err := r.Resolve(context.Background(), Coordinate{Group: "org.example", Artifact: "ops"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if a.Coordinate.Version != "1.10.0" {
		t.Errorf("resolved version = %q, want 1.10.0", a.Coordinate.Version)
	}
	if a.Source != SourceCache || string(a.Module) != "module-bytes" {
		t.Errorf("artifact = %+v", a)
	}

	if _, err := r.Resolve(context.Background(), Coordinate{"org.example", "ops", "2.0"}); err == nil {
		t.Error("Resolve() of uncached version offline should fail")
	}
}

func TestResolverChecksum(t *testing.T) {
	dir := t.TempDir()
	coord := Coordinate{"org.example", "ops", "1.0"}
	module := []byte("module-bytes")
	writeCached(t, dir, coord, "wasm", module)

	r := NewResolver(Config{CacheDir: dir, Offline: true}, nil, nil, nil)

	good := "name: org.example:ops\nversion: \"1.0\"\nchecksum: " + Checksum(module) + "\n"
	writeCached(t, dir, coord, "yaml", []byte(good))
	a, err := r.Resolve(context.Background(), coord)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if a.Manifest == nil || a.Manifest.Name != "org.example:ops" {
		t.Errorf("manifest = %+v", a.Manifest)
	}

	bad := "name: org.example:ops\nversion: \"1.0\"\nchecksum: " + Checksum([]byte("other")) + "\n"
	writeCached(t, dir, coord, "yaml", []byte(bad))
	if _, err := r.Resolve(context.Background(), coord); err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("Resolve() error = %v, want checksum mismatch", err)
	}
}

func TestResolverDownload(t *testing.T) {
	module := []byte("remote-module")
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/empty/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/repo/org/example/ops/maven-metadata.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<metadata><versioning><release>2.1.0</release>` +
			`<versions><version>1.0.0</version><version>2.1.0</version></versions></versioning></metadata>`))
	})
	mux.HandleFunc("/repo/org/example/ops/2.1.0/ops-2.1.0.wasm", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(module)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	cfg := Config{
		CacheDir: dir,
		Repositories: []Repository{
			{Name: "empty", URL: srv.URL + "/empty"},
			{Name: "repo", URL: srv.URL + "/repo/"},
		},
	}
	r := NewResolver(cfg, srv.Client(), nil, nil)

	a, err := r.Resolve(context.Background(), Coordinate{Group: "org.example", Artifact: "ops"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if a.Coordinate.Version != "2.1.0" || a.Source != SourceRemote {
		t.Errorf("artifact = %+v", a)
	}

	cached, err := os.ReadFile(filepath.Join(dir, "org/example/ops/2.1.0/ops-2.1.0.wasm"))
	if err != nil || string(cached) != "remote-module" {
		t.Fatalf("cached module = %q, %v", cached, err)
	}

	// The second resolution is served from the cache.
	a, err = r.Resolve(context.Background(), Coordinate{Group: "org.example", Artifact: "ops"})
	if err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if a.Source != SourceCache || hits.Load() != 1 {
		t.Errorf("second resolution source = %s, downloads = %d", a.Source, hits.Load())
	}

	if _, err := r.Resolve(context.Background(), Coordinate{"org.example", "missing", "1.0"}); err == nil {
		t.Error("Resolve() of unknown module should fail")
	}
}

func TestParseManifest(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"minimal", "name: a:b\nversion: \"1\"\n", false},
		{"missing version", "name: a:b\n", true},
		{"missing name", "version: \"1\"\n", true},
		{"short checksum", "name: a:b\nversion: \"1\"\nchecksum: abcd\n", true},
		{"not yaml", "::", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseManifest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
