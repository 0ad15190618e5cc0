// Package config loads the AASC configuration surface described in
// spec §6: an on-disk YAML document overlaid with environment
// variables, mirroring the teacher's two-tier approach of
// core/pkg/config/profile_loader.go (YAML documents) and
// core/pkg/config/config.go (env-var overlay with hardcoded defaults).
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/openclaw/aasc/pkg/contracts"
)

// DefaultStateDirName resolves spec §9's open question in favor of the
// spec's own text: the persisted-state directory is "~/.openclaw",
// kept here as a single named constant so a future rebrand is a
// one-line change rather than a source-wide find-and-replace.
const DefaultStateDirName = ".openclaw"

// AutonomyConfig mirrors the `autonomy.*` keys from spec §6.
type AutonomyConfig struct {
	Level               string  `yaml:"level"`
	ConfidenceThreshold float64 `yaml:"confidenceThreshold"`
	ApprovalTimeoutMs   int64   `yaml:"approvalTimeoutMs"`
	Progression         ProgressionConfig `yaml:"progression"`
}

// ProgressionConfig mirrors `autonomy.progression.*`.
type ProgressionConfig struct {
	Enabled         *bool   `yaml:"enabled"`
	MinApprovals    int     `yaml:"minApprovals"`
	MinApprovalRate float64 `yaml:"minApprovalRate"`
	CooldownDays    int     `yaml:"cooldownDays"`
}

// FilesystemConfig mirrors `security.filesystem.*`.
type FilesystemConfig struct {
	Readable []string `yaml:"readable"`
	Writable []string `yaml:"writable"`
	Denied   []string `yaml:"denied"`
}

// DataFlowConfig mirrors `security.dataFlow.*`.
type DataFlowConfig struct {
	AllowedProviders  []string `yaml:"allowedProviders"`
	RedactionPatterns []string `yaml:"redactionPatterns"`
}

// OutputScanningConfig mirrors `security.outputScanning.*`.
type OutputScanningConfig struct {
	Enabled               bool     `yaml:"enabled"`
	SystemPromptFragments []string `yaml:"systemPromptFragments"`
}

// SecurityConfig mirrors the `security.*` key group.
type SecurityConfig struct {
	Filesystem        FilesystemConfig     `yaml:"filesystem"`
	DataFlow          DataFlowConfig       `yaml:"dataFlow"`
	SensitivePatterns []string             `yaml:"sensitivePatterns"`
	OutputScanning    OutputScanningConfig `yaml:"outputScanning"`
}

// ReasoningTraceConfig mirrors `diagnostics.reasoningTrace.*`.
type ReasoningTraceConfig struct {
	Enabled         bool   `yaml:"enabled"`
	BaseDir         string `yaml:"baseDir"`
	IncludeReasoning *bool `yaml:"includeReasoning"`
	MaxResultLength int    `yaml:"maxResultLength"`
}

// DiagnosticsConfig mirrors the `diagnostics.*` key group.
type DiagnosticsConfig struct {
	ReasoningTrace ReasoningTraceConfig `yaml:"reasoningTrace"`
}

// Config is the full AASC configuration surface consumed by the core.
type Config struct {
	Autonomy    AutonomyConfig    `yaml:"autonomy"`
	Security    SecurityConfig    `yaml:"security"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// StateDir returns the default persisted-state directory, $HOME/.openclaw.
func StateDir() string {
	return filepath.Join(homeDir(), DefaultStateDirName)
}

// Default returns the configuration surface's defaults, exactly as
// enumerated in spec §6.
func Default() Config {
	stateDir := StateDir()
	home := homeDir()

	return Config{
		Autonomy: AutonomyConfig{
			Level:               "low",
			ConfidenceThreshold: 0.7,
			ApprovalTimeoutMs:   120000,
			Progression: ProgressionConfig{
				MinApprovals:    50,
				MinApprovalRate: 0.95,
				CooldownDays:    7,
			},
		},
		Security: SecurityConfig{
			Filesystem: FilesystemConfig{
				Readable: []string{"~"},
				Writable: []string{filepath.Join(stateDir, "") + string(filepath.Separator)},
				Denied: []string{
					filepath.Join(home, ".ssh") + string(filepath.Separator),
					filepath.Join(home, ".gnupg") + string(filepath.Separator),
					filepath.Join(home, ".aws") + string(filepath.Separator),
					filepath.Join(home, ".config", "gcloud") + string(filepath.Separator),
					filepath.Join(home, ".docker") + string(filepath.Separator),
					filepath.Join(home, ".kube") + string(filepath.Separator),
					filepath.Join(home, ".netrc"),
					filepath.Join(home, ".npmrc"),
					filepath.Join(home, ".pypirc"),
				},
			},
			OutputScanning: OutputScanningConfig{Enabled: true},
		},
		Diagnostics: DiagnosticsConfig{
			ReasoningTrace: ReasoningTraceConfig{
				Enabled: false,
				BaseDir: filepath.Join(stateDir, "traces"),
			},
		},
	}
}

// Load reads a YAML document at path (if it exists) over the built-in
// defaults, then applies environment-variable overrides. A missing
// file is not an error; the defaults (plus env overlay) are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		} else if !os.IsNotExist(err) {
			return cfg, err
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AASC_AUTONOMY_LEVEL"); v != "" {
		cfg.Autonomy.Level = v
	}
	if v := os.Getenv("AASC_APPROVAL_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Autonomy.ApprovalTimeoutMs = ms
		}
	}
	if v := os.Getenv("AASC_TRACE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Diagnostics.ReasoningTrace.Enabled = b
		}
	}
	if v := os.Getenv("AASC_TRACE_BASE_DIR"); v != "" {
		cfg.Diagnostics.ReasoningTrace.BaseDir = v
	}
}

// ToFilesystemBoundaryConfig converts the YAML-shaped security section
// into the contracts type the Boundary constructor expects.
func (c Config) ToFilesystemBoundaryConfig() contracts.FilesystemBoundaryConfig {
	return contracts.FilesystemBoundaryConfig{
		Readable: c.Security.Filesystem.Readable,
		Writable: c.Security.Filesystem.Writable,
		Denied:   c.Security.Filesystem.Denied,
	}
}

// AutonomyRulesPath is the default path for the auto-approve rule file.
func AutonomyRulesPath() string {
	return filepath.Join(StateDir(), "autonomy-rules.json")
}

// AutonomyProgressionPath is the default path for the progression file.
func AutonomyProgressionPath() string {
	return filepath.Join(StateDir(), "autonomy-progression.json")
}
