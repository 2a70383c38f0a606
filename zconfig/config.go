// Package zconfig loads the solver's run configuration from a YAML file
// with environment-variable overrides, the way the pack's config
// loaders lean on gopkg.in/yaml.v3 for the file and
// github.com/mitchellh/mapstructure for reconciling the loosely-typed
// YAML map onto a concrete struct. Environment overrides are parsed and
// applied to the struct directly.
package zconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Variant selects between the STANDARD and BALANCED search strategies
// of spec.md section 3.
type Variant string

const (
	VariantStandard Variant = "standard"
	VariantBalanced Variant = "balanced"
)

// FabricKind selects the messaging substrate.
type FabricKind string

const (
	FabricLocal FabricKind = "local"
	FabricTCP   FabricKind = "tcp"
)

// SolverConfig is the full set of knobs a run needs, covering both the
// core search (spec.md section 3) and the ambient stack SPEC_FULL.md
// section 10 adds around it.
type SolverConfig struct {
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	SolGatherPeriod time.Duration `mapstructure:"sol_gather_period" yaml:"sol_gather_period"`
	ExpectedChi     uint16        `mapstructure:"expected_chi" yaml:"expected_chi"`
	Variant         Variant       `mapstructure:"variant" yaml:"variant"`

	FabricKind FabricKind `mapstructure:"fabric_kind" yaml:"fabric_kind"`
	Peers      []string   `mapstructure:"peers" yaml:"peers"`

	EtcdEndpoints  []string `mapstructure:"etcd_endpoints" yaml:"etcd_endpoints"`
	RedisAddr      string   `mapstructure:"redis_addr" yaml:"redis_addr"`
	JaegerEndpoint string   `mapstructure:"jaeger_endpoint" yaml:"jaeger_endpoint"`
	MetricsAddr    string   `mapstructure:"metrics_addr" yaml:"metrics_addr"`
	DashboardAddr  string   `mapstructure:"dashboard_addr" yaml:"dashboard_addr"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns the configuration the solver falls back to when no
// file and no overrides are supplied: a single-process local run with
// no optional telemetry sinks enabled.
func Default() SolverConfig {
	return SolverConfig{
		Timeout:         0,
		SolGatherPeriod: 5 * time.Second,
		ExpectedChi:     0,
		Variant:         VariantStandard,
		FabricKind:      FabricLocal,
		LogLevel:        "info",
	}
}

// Load reads path (if non-empty) as YAML atop Default(), then applies
// any ZYKOV_* environment overrides, and returns the reconciled config.
func Load(path string) (SolverConfig, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("zconfig: read %s: %w", path, err)
		}
		var raw map[string]interface{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return cfg, fmt.Errorf("zconfig: parse %s: %w", path, err)
		}
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			TagName:          "mapstructure",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		})
		if err != nil {
			return cfg, err
		}
		if err := dec.Decode(raw); err != nil {
			return cfg, fmt.Errorf("zconfig: decode %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides lets a handful of ZYKOV_* environment variables
// override whatever the file set, the same override-after-file ordering
// the pack's other config loaders use so a deployment script can tweak
// one field without rewriting the whole file.
func applyEnvOverrides(cfg *SolverConfig) {
	if v := os.Getenv("ZYKOV_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = d
		}
	}
	if v := os.Getenv("ZYKOV_SOL_GATHER_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SolGatherPeriod = d
		}
	}
	if v := os.Getenv("ZYKOV_EXPECTED_CHI"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil {
			cfg.ExpectedChi = uint16(n)
		}
	}
	if v := os.Getenv("ZYKOV_VARIANT"); v != "" {
		cfg.Variant = Variant(strings.ToLower(v))
	}
	if v := os.Getenv("ZYKOV_FABRIC_KIND"); v != "" {
		cfg.FabricKind = FabricKind(strings.ToLower(v))
	}
	if v := os.Getenv("ZYKOV_PEERS"); v != "" {
		cfg.Peers = strings.Split(v, ",")
	}
	if v := os.Getenv("ZYKOV_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("ZYKOV_JAEGER_ENDPOINT"); v != "" {
		cfg.JaegerEndpoint = v
	}
	if v := os.Getenv("ZYKOV_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("ZYKOV_DASHBOARD_ADDR"); v != "" {
		cfg.DashboardAddr = v
	}
	if v := os.Getenv("ZYKOV_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
