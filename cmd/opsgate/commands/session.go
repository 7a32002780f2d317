package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/scijava/opsgate/pkg/bridge"
	"github.com/scijava/opsgate/pkg/config"
	"github.com/scijava/opsgate/pkg/gateway"
	"github.com/scijava/opsgate/pkg/ops"
	"github.com/scijava/opsgate/pkg/telemetry"
)

// session is a configured gateway with its telemetry and, unless the
// built-in operations are served, the runtime behind it.
type session struct {
	cfg     *config.Config
	tel     *telemetry.Telemetry
	runtime *bridge.Runtime
	gw      *gateway.Gateway
}

// openSession loads the configuration, applies the flag overrides and tune,
// then builds the gateway.
func openSession(ctx context.Context, opts *globalOptions, tune func(*config.Config)) (*session, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if len(opts.endpoints) > 0 {
		cfg.Runtime.Endpoints = append([]string(nil), opts.endpoints...)
	}
	if opts.builtin {
		cfg.Builtin = true
	}
	if opts.verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if tune != nil {
		tune(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	s := &session{cfg: cfg, tel: tel}

	var rt gateway.Runtime
	if cfg.Builtin {
		rt = gateway.StaticRuntime(ops.NewBuiltinRegistry())
	} else {
		s.runtime = bridge.New(cfg.BridgeConfig(),
			bridge.WithLogger(tel.Logger),
			bridge.WithMetrics(tel.Metrics),
			bridge.WithTracer(tel.Tracer),
		)
		rt = s.runtime
	}

	s.gw, err = gateway.Init(ctx, rt,
		gateway.WithLogger(tel.Logger),
		gateway.WithMetrics(tel.Metrics),
		gateway.WithTracer(tel.Tracer),
	)
	if err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	return s, nil
}

// Close releases the runtime and flushes telemetry.
func (s *session) Close(ctx context.Context) error {
	var errs []error
	if s.runtime != nil {
		errs = append(errs, s.runtime.Close(ctx))
	}
	errs = append(errs, s.tel.Shutdown(ctx))
	return errors.Join(errs...)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
