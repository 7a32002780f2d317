package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

// Format is a configuration file format.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
)

// FormatOf returns the format implied by a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".cue":
		return FormatCUE, nil
	}
	return "", fmt.Errorf("unsupported configuration file %s: want .yaml, .yml, .json or .cue", path)
}

// Load reads, parses and validates the configuration file at path.
func Load(path string) (*Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	cfg, err := parse(data, format, path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses data in the given format over Default. The result is not
// validated.
func Parse(data []byte, format Format) (*Config, error) {
	return parse(data, format, "config."+string(format))
}

func parse(data []byte, format Format, filename string) (*Config, error) {
	switch format {
	case FormatCUE:
		exported, err := exportCUE(data, filename)
		if err != nil {
			return nil, err
		}
		data = exported
	case FormatYAML, FormatJSON:
	default:
		return nil, fmt.Errorf("unsupported configuration format %q", format)
	}

	// JSON is decoded as YAML so that durations may be written as "30s".
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	return cfg, nil
}

// schema constrains CUE configuration files. Unknown top-level or runtime
// fields are rejected.
const schema = `
#Duration: =~"^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"

#Repository: {
	name: string & !=""
	url:  string & =~"^https?://"
}

#Config: {
	runtime?: {
		endpoints?: [...string]
		repositories?: [...#Repository]
		cache_dir?:          string
		timeout?:            #Duration
		memory_limit_pages?: int & >=0 & <=65536
		offline?:            bool
	}
	builtin?: bool
	telemetry?: {...}
	script?: {
		timeout?: #Duration
	}
}
`

// exportCUE evaluates a CUE configuration against the schema and exports it
// as JSON.
func exportCUE(data []byte, filename string) ([]byte, error) {
	ctx := cuecontext.New()

	def := ctx.CompileString(schema, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile configuration schema: %w", err)
	}

	val := ctx.CompileBytes(data, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return nil, cueError(filename, err)
	}

	val = def.Unify(val)
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(filename, err)
	}

	out, err := val.MarshalJSON()
	if err != nil {
		return nil, cueError(filename, err)
	}
	return out, nil
}

// cueError flattens CUE errors into one message with positions.
func cueError(filename string, err error) error {
	var msgs []string
	for _, e := range cueerrors.Errors(err) {
		msg := cueerrors.Details(e, nil)
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			msg = fmt.Sprintf("%s:%d:%d: %s", pos[0].Filename(), pos[0].Line(), pos[0].Column(), strings.TrimSpace(msg))
		}
		msgs = append(msgs, strings.TrimSpace(msg))
	}
	if len(msgs) == 0 {
		return fmt.Errorf("failed to evaluate %s: %w", filename, err)
	}
	return fmt.Errorf("failed to evaluate %s: %s", filename, strings.Join(msgs, "; "))
}
