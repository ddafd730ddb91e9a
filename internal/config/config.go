// Package config loads and validates the on-disk configuration: a list
// of profiles plus global settings (spec §6 "Configuration"). JSON is
// the primary format; a YAML sibling is also accepted, mirroring the
// teacher's `oma/config.OSSEAConfigInput` which carries both `json` and
// `yaml` struct tags on every field.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/robocurse/robocurse/internal/roboerr"
	"github.com/robocurse/robocurse/internal/state"
)

const component = "config"

// GlobalSettings holds the run-wide knobs that apply across all
// profiles (spec §6).
type GlobalSettings struct {
	MaxConcurrentJobs       int                    `json:"max_concurrent_jobs" yaml:"max_concurrent_jobs"`
	ThreadsPerJob           int                    `json:"threads_per_job" yaml:"threads_per_job"`
	BandwidthLimitMbps      float64                `json:"bandwidth_limit_mbps" yaml:"bandwidth_limit_mbps"`
	DefaultMismatchSeverity state.MismatchSeverity `json:"default_mismatch_severity" yaml:"default_mismatch_severity"`
	RetryCount              int                    `json:"retry_count" yaml:"retry_count"`
	RetryBaseWaitSeconds    int                    `json:"retry_base_wait_seconds" yaml:"retry_base_wait_seconds"`
	RetryMultiplier         float64                `json:"retry_multiplier" yaml:"retry_multiplier"`
	RetryMaxWaitSeconds     int                    `json:"retry_max_wait_seconds" yaml:"retry_max_wait_seconds"`
	CheckpointSaveFrequency int                    `json:"checkpoint_save_frequency" yaml:"checkpoint_save_frequency"`
	HealthCheckIntervalSeconds int                 `json:"health_check_interval_seconds" yaml:"health_check_interval_seconds"`
	CopierPath              string                 `json:"copier_path" yaml:"copier_path"`
}

// DefaultGlobalSettings returns the spec's documented defaults (§6).
func DefaultGlobalSettings() GlobalSettings {
	return GlobalSettings{
		MaxConcurrentJobs:          8,
		ThreadsPerJob:              16,
		BandwidthLimitMbps:         0,
		DefaultMismatchSeverity:    state.MismatchWarning,
		RetryCount:                 3,
		RetryBaseWaitSeconds:       5,
		RetryMultiplier:            2,
		RetryMaxWaitSeconds:        120,
		CheckpointSaveFrequency:    10,
		HealthCheckIntervalSeconds: 10,
	}
}

// File is the root shape of the configuration file.
type File struct {
	Global   GlobalSettings  `json:"global" yaml:"global"`
	Profiles []*state.Profile `json:"profiles" yaml:"profiles"`
}

// Load reads and validates a configuration file, choosing JSON or YAML
// by extension (`.yaml`/`.yml` -> YAML, anything else -> JSON, matching
// the spec's "JSON is the primary format" with a YAML sibling accepted).
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, roboerr.Wrap(roboerr.ConfigurationInvalid, component, "cannot read config file", err)
	}

	f := &File{Global: DefaultGlobalSettings()}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		if err := yaml.Unmarshal(data, f); err != nil {
			return nil, roboerr.Wrap(roboerr.ConfigurationInvalid, component, "cannot parse yaml config", err)
		}
	} else {
		dec := json.NewDecoder(strings.NewReader(string(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(f); err != nil {
			return nil, roboerr.Wrap(roboerr.ConfigurationInvalid, component, "cannot parse json config", err)
		}
	}

	if err := Validate(f); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"component": component,
		"profiles":  len(f.Profiles),
		"path":      path,
	}).Info("loaded configuration")

	return f, nil
}

// Validate checks range constraints named in spec §6 and rejects
// obviously malformed profiles. Unknown top-level JSON fields are
// already rejected by Load's DisallowUnknownFields; this only checks
// values that decoded successfully but fall outside the allowed range.
func Validate(f *File) error {
	g := &f.Global
	if g.MaxConcurrentJobs < 1 || g.MaxConcurrentJobs > 128 {
		return roboerr.New(roboerr.ConfigurationInvalid, component, fmt.Sprintf("max_concurrent_jobs %d out of range [1,128]", g.MaxConcurrentJobs))
	}
	if g.ThreadsPerJob < 1 || g.ThreadsPerJob > 128 {
		return roboerr.New(roboerr.ConfigurationInvalid, component, fmt.Sprintf("threads_per_job %d out of range [1,128]", g.ThreadsPerJob))
	}
	if g.BandwidthLimitMbps < 0 || g.BandwidthLimitMbps > 10000 {
		return roboerr.New(roboerr.ConfigurationInvalid, component, fmt.Sprintf("bandwidth_limit_mbps %v out of range [0,10000]", g.BandwidthLimitMbps))
	}
	switch g.DefaultMismatchSeverity {
	case state.MismatchWarning, state.MismatchError, state.MismatchSuccess:
	default:
		return roboerr.New(roboerr.ConfigurationInvalid, component, fmt.Sprintf("unknown default_mismatch_severity %q", g.DefaultMismatchSeverity))
	}
	if len(f.Profiles) == 0 {
		return roboerr.New(roboerr.ConfigurationInvalid, component, "no profiles defined")
	}
	seen := make(map[string]bool, len(f.Profiles))
	for _, p := range f.Profiles {
		if p.Name == "" {
			return roboerr.New(roboerr.ConfigurationInvalid, component, "profile missing name")
		}
		if seen[p.Name] {
			return roboerr.New(roboerr.ConfigurationInvalid, component, fmt.Sprintf("duplicate profile name %q", p.Name))
		}
		seen[p.Name] = true
		if p.Source == "" || p.Destination == "" {
			return roboerr.New(roboerr.ConfigurationInvalid, component, fmt.Sprintf("profile %q missing source or destination", p.Name))
		}
		switch p.ScanMode {
		case state.ScanFlat, state.ScanSmart, "":
		default:
			return roboerr.New(roboerr.ConfigurationInvalid, component, fmt.Sprintf("profile %q has unknown scan_mode %q", p.Name, p.ScanMode))
		}
	}
	return nil
}
