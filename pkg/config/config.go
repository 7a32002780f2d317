package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/scijava/opsgate/pkg/bridge"
	"github.com/scijava/opsgate/pkg/telemetry"
)

// Config is the opsgate configuration file.
type Config struct {
	// Runtime configures the foreign runtime and its module libraries.
	Runtime RuntimeConfig `yaml:"runtime" json:"runtime"`

	// Builtin serves the in-process operation registry instead of starting
	// the runtime.
	Builtin bool `yaml:"builtin" json:"builtin"`

	// Telemetry configures logging, metrics and tracing.
	Telemetry telemetry.Config `yaml:"telemetry" json:"telemetry" validate:"-"`

	// Script configures Starlark script runs.
	Script ScriptConfig `yaml:"script" json:"script"`
}

// RuntimeConfig configures the foreign runtime.
type RuntimeConfig struct {
	// Endpoints are library coordinates (group:artifact[:version]).
	Endpoints []string `yaml:"endpoints" json:"endpoints" validate:"dive,coordinate"`

	// Repositories are searched in order after the local cache.
	Repositories []RepositoryConfig `yaml:"repositories" json:"repositories" validate:"dive"`

	// CacheDir holds downloaded modules.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Timeout bounds every call into a module.
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`

	// MemoryLimitPages caps module memory in 64KiB pages.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages" json:"memory_limit_pages" validate:"lte=65536"`

	// Offline disables repository access.
	Offline bool `yaml:"offline" json:"offline"`
}

// RepositoryConfig is a maven-layout module repository.
type RepositoryConfig struct {
	Name string `yaml:"name" json:"name" validate:"required"`
	URL  string `yaml:"url" json:"url" validate:"required,url"`
}

// ScriptConfig configures Starlark script runs.
type ScriptConfig struct {
	// Timeout bounds a single run.
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`
}

// Default returns the default configuration.
func Default() *Config {
	tel := telemetry.DefaultConfig()
	return &Config{
		Runtime: RuntimeConfig{
			Timeout:          30 * time.Second,
			MemoryLimitPages: 256,
		},
		Telemetry: *tel,
		Script: ScriptConfig{
			Timeout: 30 * time.Second,
		},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("coordinate", func(fl validator.FieldLevel) bool {
		_, err := bridge.ParseCoordinate(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s: failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry configuration: %w", err)
	}
	return nil
}

// BridgeConfig returns the runtime configuration. Unset fields take the
// runtime's defaults when it is created.
func (c *Config) BridgeConfig() bridge.Config {
	repos := make([]bridge.Repository, len(c.Runtime.Repositories))
	for i, r := range c.Runtime.Repositories {
		repos[i] = bridge.Repository{Name: r.Name, URL: r.URL}
	}
	return bridge.Config{
		Endpoints:        append([]string(nil), c.Runtime.Endpoints...),
		Repositories:     repos,
		CacheDir:         c.Runtime.CacheDir,
		Offline:          c.Runtime.Offline,
		Timeout:          c.Runtime.Timeout,
		MemoryLimitPages: c.Runtime.MemoryLimitPages,
	}
}
