package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.Runtime.Timeout != 30*time.Second || cfg.Script.Timeout != 30*time.Second {
		t.Errorf("timeouts = %v, %v", cfg.Runtime.Timeout, cfg.Script.Timeout)
	}
	if cfg.Builtin {
		t.Error("builtin should default to false")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		format    Format
		data      string
		checkFunc func(*testing.T, *Config)
		wantErr   string
	}{
		{
			name:   "yaml",
			format: FormatYAML,
			data: `
runtime:
  endpoints:
    - org.scijava:scijava-ops-image:1.0.0
  repositories:
    - name: local
      url: http://localhost:8081/repo
  timeout: 5s
  offline: true
builtin: true
script:
  timeout: 2m
`,
			checkFunc: func(t *testing.T, c *Config) {
				if len(c.Runtime.Endpoints) != 1 || c.Runtime.Endpoints[0] != "org.scijava:scijava-ops-image:1.0.0" {
					t.Errorf("endpoints = %v", c.Runtime.Endpoints)
				}
				if len(c.Runtime.Repositories) != 1 || c.Runtime.Repositories[0].Name != "local" {
					t.Errorf("repositories = %v", c.Runtime.Repositories)
				}
				if c.Runtime.Timeout != 5*time.Second || !c.Runtime.Offline || !c.Builtin {
					t.Errorf("runtime = %+v, builtin = %v", c.Runtime, c.Builtin)
				}
				if c.Script.Timeout != 2*time.Minute {
					t.Errorf("script timeout = %v", c.Script.Timeout)
				}
				if c.Runtime.MemoryLimitPages != 256 {
					t.Errorf("unset memory limit = %d, want default 256", c.Runtime.MemoryLimitPages)
				}
			},
		},
		{
			name:   "json",
			format: FormatJSON,
			data:   `{"runtime": {"memory_limit_pages": 512, "timeout": "1s"}, "telemetry": {"logging": {"level": "debug"}}}`,
			checkFunc: func(t *testing.T, c *Config) {
				if c.Runtime.MemoryLimitPages != 512 || c.Runtime.Timeout != time.Second {
					t.Errorf("runtime = %+v", c.Runtime)
				}
				if c.Telemetry.Logging.Level != "debug" || c.Telemetry.Logging.Format != "console" {
					t.Errorf("logging = %+v", c.Telemetry.Logging)
				}
			},
		},
		{
			name:   "cue",
			format: FormatCUE,
			data: `
_version: "1.0.0"
runtime: {
	endpoints: ["org.scijava:scijava-ops-image:\(_version)", "net.imglib2:imglib2"]
	timeout:   "10s"
}
script: timeout: "45s"
`,
			checkFunc: func(t *testing.T, c *Config) {
				want := []string{"org.scijava:scijava-ops-image:1.0.0", "net.imglib2:imglib2"}
				if strings.Join(c.Runtime.Endpoints, ",") != strings.Join(want, ",") {
					t.Errorf("endpoints = %v, want %v", c.Runtime.Endpoints, want)
				}
				if c.Runtime.Timeout != 10*time.Second || c.Script.Timeout != 45*time.Second {
					t.Errorf("timeouts = %v, %v", c.Runtime.Timeout, c.Script.Timeout)
				}
			},
		},
		{
			name:    "cue unknown field",
			format:  FormatCUE,
			data:    `runtime: endpoint: "x:y"`,
			wantErr: "endpoint",
		},
		{
			name:    "cue bad duration",
			format:  FormatCUE,
			data:    `script: timeout: "soon"`,
			wantErr: "failed to evaluate",
		},
		{
			name:    "cue incomplete value",
			format:  FormatCUE,
			data:    `runtime: cache_dir: string`,
			wantErr: "failed to evaluate",
		},
		{
			name:    "yaml syntax",
			format:  FormatYAML,
			data:    "runtime: [",
			wantErr: "failed to parse",
		},
		{
			name:    "unknown format",
			format:  "toml",
			data:    "",
			wantErr: "unsupported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.data), tt.format)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Parse() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			tt.checkFunc(t, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad coordinate", func(c *Config) { c.Runtime.Endpoints = []string{"imglib2"} }, "coordinate"},
		{"repository without url", func(c *Config) {
			c.Runtime.Repositories = []RepositoryConfig{{Name: "local"}}
		}, "required"},
		{"repository bad url", func(c *Config) {
			c.Runtime.Repositories = []RepositoryConfig{{Name: "local", URL: "not a url"}}
		}, "url"},
		{"memory limit", func(c *Config) { c.Runtime.MemoryLimitPages = 70000 }, "lte"},
		{"negative timeout", func(c *Config) { c.Script.Timeout = -time.Second }, "gte"},
		{"telemetry", func(c *Config) { c.Telemetry.Logging.Level = "loud" }, "telemetry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "opsgate.yml")
	if err := os.WriteFile(good, []byte("builtin: true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(good)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Builtin {
		t.Error("builtin not loaded")
	}

	invalid := filepath.Join(dir, "invalid.json")
	if err := os.WriteFile(invalid, []byte(`{"runtime": {"endpoints": ["nope"]}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(invalid); err == nil || !strings.Contains(err.Error(), "invalid.json") {
		t.Errorf("Load() of invalid config error = %v", err)
	}

	if _, err := Load(filepath.Join(dir, "opsgate.toml")); err == nil {
		t.Error("Load() should reject unknown extensions")
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}

func TestBridgeConfig(t *testing.T) {
	cfg := Default()
	cfg.Runtime.Endpoints = []string{"a:b"}
	cfg.Runtime.Repositories = []RepositoryConfig{{Name: "local", URL: "http://localhost/repo"}}
	cfg.Runtime.Offline = true

	bc := cfg.BridgeConfig()
	if len(bc.Endpoints) != 1 || bc.Endpoints[0] != "a:b" {
		t.Errorf("endpoints = %v", bc.Endpoints)
	}
	if len(bc.Repositories) != 1 || bc.Repositories[0].URL != "http://localhost/repo" {
		t.Errorf("repositories = %v", bc.Repositories)
	}
	if !bc.Offline || bc.Timeout != 30*time.Second || bc.MemoryLimitPages != 256 {
		t.Errorf("bridge config = %+v", bc)
	}

	cfg.Runtime.Endpoints[0] = "c:d"
	if bc.Endpoints[0] != "a:b" {
		t.Error("BridgeConfig() shares the endpoint slice")
	}
}
